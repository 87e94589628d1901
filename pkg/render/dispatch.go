package render

import (
	"context"

	"github.com/goliatone/go-dynform/pkg/schema"
)

// Strategy selects how a field is presented.
type Strategy string

const (
	// StrategyInput renders a free-form input.
	StrategyInput Strategy = "input"
	// StrategyChoice renders an enumerated choice over the field options.
	StrategyChoice Strategy = "choice"
)

// InputType is the presentation hint passed to free-form inputs.
type InputType string

const (
	InputText     InputType = "text"
	InputEmail    InputType = "email"
	InputPassword InputType = "password"
	InputDate     InputType = "date"
	InputNumber   InputType = "number"
	InputTel      InputType = "tel"
	InputURL      InputType = "url"
	InputTextarea InputType = "textarea"
)

// FieldState is the session state of a single field.
type FieldState struct {
	Value   string
	Error   string
	Touched bool
}

// Control is the presentation mapping of one field. It carries no
// validation logic.
type Control struct {
	Name        string
	Label       string
	Required    bool
	Strategy    Strategy
	Input       InputType
	Options     []string
	Placeholder string
	HelpText    string
	Value       string
	// Error is only populated once the field has been touched.
	Error   string
	Touched bool
}

// Invalid reports whether the control should be flagged to the user.
func (c Control) Invalid() bool {
	return c.Error != ""
}

// Selected reports whether option matches the current value.
func (c Control) Selected(option string) bool {
	return c.Strategy == StrategyChoice && c.Value == option
}

// Dispatch maps a field declaration and its state onto a control. Every field
// type resolves to exactly one strategy; unknown types render as text.
func Dispatch(field schema.FieldSpec, state FieldState) Control {
	ctl := Control{
		Name:        field.Name,
		Label:       field.DisplayLabel(),
		Required:    field.Required,
		Placeholder: field.Placeholder,
		HelpText:    field.HelpText,
		Value:       state.Value,
		Touched:     state.Touched,
	}
	if state.Touched {
		ctl.Error = state.Error
	}

	switch field.Type.Normalize() {
	case schema.FieldTypeSelect:
		ctl.Strategy = StrategyChoice
		ctl.Options = append([]string(nil), field.Options...)
		return ctl
	case schema.FieldTypeEmail:
		ctl.Input = InputEmail
	case schema.FieldTypePassword:
		ctl.Input = InputPassword
	case schema.FieldTypeDate:
		ctl.Input = InputDate
	case schema.FieldTypeNumber:
		ctl.Input = InputNumber
	case schema.FieldTypePhone:
		ctl.Input = InputTel
	case schema.FieldTypeURL:
		ctl.Input = InputURL
	case schema.FieldTypeTextArea:
		ctl.Input = InputTextarea
	default:
		ctl.Input = InputText
	}
	ctl.Strategy = StrategyInput
	return ctl
}

// Handlers receives the edits a renderer collects from the user.
type Handlers interface {
	Change(name, value string) error
	Blur(ctx context.Context, name string) error
}

// Commit feeds a completed edit of the control through h: the value change
// followed by the blur that triggers validation.
func (c Control) Commit(ctx context.Context, h Handlers, value string) error {
	if err := h.Change(c.Name, value); err != nil {
		return err
	}
	return h.Blur(ctx, c.Name)
}
