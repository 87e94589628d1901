package schema

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// FieldType enumerates the input kinds a schema can declare. Unknown values are
// preserved so newer schemas round-trip, but they behave like FieldTypeText.
type FieldType string

const (
	FieldTypeText     FieldType = "text"
	FieldTypeEmail    FieldType = "email"
	FieldTypePassword FieldType = "password"
	FieldTypeDate     FieldType = "date"
	FieldTypeNumber   FieldType = "number"
	FieldTypeSelect   FieldType = "select"
	FieldTypePhone    FieldType = "phone"
	FieldTypeURL      FieldType = "url"
	FieldTypeTextArea FieldType = "textarea"
)

// TodaySentinel resolves to the current date when a date bound is evaluated.
const TodaySentinel = "today"

// Known reports whether t is one of the declared field types.
func (t FieldType) Known() bool {
	switch t {
	case FieldTypeText, FieldTypeEmail, FieldTypePassword, FieldTypeDate,
		FieldTypeNumber, FieldTypeSelect, FieldTypePhone, FieldTypeURL, FieldTypeTextArea:
		return true
	default:
		return false
	}
}

// Normalize maps unknown or empty types to FieldTypeText.
func (t FieldType) Normalize() FieldType {
	normalized := FieldType(strings.ToLower(strings.TrimSpace(string(t))))
	if normalized.Known() {
		return normalized
	}
	return FieldTypeText
}

// StringLike reports whether length constraints apply to the type.
func (t FieldType) StringLike() bool {
	switch t.Normalize() {
	case FieldTypeNumber, FieldTypeDate:
		return false
	default:
		return true
	}
}

// FieldSpec describes one input of a form.
type FieldSpec struct {
	Name     string    `json:"name" jsonschema:"required,description=Unique field identifier"`
	Label    string    `json:"label,omitempty" jsonschema:"description=Display label; defaults to the name"`
	Type     FieldType `json:"type" jsonschema:"enum=text,enum=email,enum=password,enum=date,enum=number,enum=select,enum=phone,enum=url,enum=textarea"`
	Required bool      `json:"required,omitempty"`

	MinLength *int     `json:"minLength,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty"`
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`

	MinDate     string `json:"minDate,omitempty" jsonschema:"description=Lower date bound (YYYY-MM-DD or today)"`
	MaxDate     string `json:"maxDate,omitempty" jsonschema:"description=Upper date bound (YYYY-MM-DD or today)"`
	MaxDateHint string `json:"maxDateHint,omitempty" jsonschema:"description=Upper bound hint; today means the current date"`

	Options []string `json:"options,omitempty"`

	ConfirmPassword string `json:"confirmPassword,omitempty" jsonschema:"description=Name of the field this one must equal"`

	CustomValidation string `json:"customValidationFunctionString,omitempty" jsonschema:"description=Predicate expression evaluated against value"`
	CustomMessage    string `json:"customValidationMessage,omitempty"`

	Pattern        string `json:"pattern,omitempty"`
	PatternMessage string `json:"patternMessage,omitempty"`
	Placeholder    string `json:"placeholder,omitempty"`
	HelpText       string `json:"helpText,omitempty"`
}

// DisplayLabel returns the label, falling back to the field name.
func (f FieldSpec) DisplayLabel() string {
	if label := strings.TrimSpace(f.Label); label != "" {
		return label
	}
	return f.Name
}

// UpperDateBound returns the effective maximum date, preferring MaxDate.
func (f FieldSpec) UpperDateBound() string {
	if strings.TrimSpace(f.MaxDate) != "" {
		return strings.TrimSpace(f.MaxDate)
	}
	return strings.TrimSpace(f.MaxDateHint)
}

// Clone returns a deep copy of the field.
func (f FieldSpec) Clone() FieldSpec {
	out := f
	if f.MinLength != nil {
		v := *f.MinLength
		out.MinLength = &v
	}
	if f.MaxLength != nil {
		v := *f.MaxLength
		out.MaxLength = &v
	}
	if f.Min != nil {
		v := *f.Min
		out.Min = &v
	}
	if f.Max != nil {
		v := *f.Max
		out.Max = &v
	}
	if f.Options != nil {
		out.Options = append([]string(nil), f.Options...)
	}
	return out
}

// FormSchema is the wire shape of a form definition.
type FormSchema struct {
	Title  string      `json:"title" jsonschema:"required,minLength=1"`
	Fields []FieldSpec `json:"fields" jsonschema:"required"`
}

// Clone returns a deep copy of the schema.
func (s FormSchema) Clone() FormSchema {
	out := FormSchema{Title: s.Title}
	if s.Fields != nil {
		out.Fields = make([]FieldSpec, len(s.Fields))
		for i, f := range s.Fields {
			out.Fields[i] = f.Clone()
		}
	}
	return out
}

// Field looks up a field by name.
func (s FormSchema) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Names returns field names in declaration order.
func (s FormSchema) Names() []string {
	names := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}
	return names
}

// InvalidSchemaError lists every structural problem found by Validate.
type InvalidSchemaError struct {
	Problems []string
}

func (e *InvalidSchemaError) Error() string {
	return "schema: invalid schema: " + strings.Join(e.Problems, "; ")
}

// ErrInvalidSchema matches any *InvalidSchemaError via errors.Is.
var ErrInvalidSchema = errors.New("schema: invalid schema")

func (e *InvalidSchemaError) Is(target error) bool {
	return target == ErrInvalidSchema
}

// Validate checks the structural invariants of the schema.
func (s FormSchema) Validate() error {
	var problems []string
	if strings.TrimSpace(s.Title) == "" {
		problems = append(problems, "title is required")
	}
	seen := make(map[string]struct{}, len(s.Fields))
	for i, f := range s.Fields {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			problems = append(problems, fmt.Sprintf("fields[%d]: name is required", i))
			continue
		}
		if _, dup := seen[name]; dup {
			problems = append(problems, fmt.Sprintf("fields[%d]: duplicate name %q", i, name))
		}
		seen[name] = struct{}{}
		if f.Type.Normalize() == FieldTypeSelect && len(f.Options) == 0 {
			problems = append(problems, fmt.Sprintf("field %q: select requires options", name))
		}
		if f.MinLength != nil && f.MaxLength != nil && *f.MinLength > *f.MaxLength {
			problems = append(problems, fmt.Sprintf("field %q: minLength exceeds maxLength", name))
		}
		if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
			problems = append(problems, fmt.Sprintf("field %q: min exceeds max", name))
		}
	}
	for _, f := range s.Fields {
		if f.ConfirmPassword == "" {
			continue
		}
		if f.ConfirmPassword == f.Name {
			problems = append(problems, fmt.Sprintf("field %q: confirmPassword references itself", f.Name))
			continue
		}
		if _, ok := seen[f.ConfirmPassword]; !ok {
			problems = append(problems, fmt.Sprintf("field %q: confirmPassword references unknown field %q", f.Name, f.ConfirmPassword))
		}
	}
	if len(problems) > 0 {
		return &InvalidSchemaError{Problems: problems}
	}
	return nil
}

// Record is a persisted schema.
type Record struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Fields    []FieldSpec `json:"fields"`
	Active    bool        `json:"active"`
	CreatedAt time.Time   `json:"created_at"`
}

// Schema returns the form definition carried by the record.
func (r Record) Schema() FormSchema {
	return FormSchema{Title: r.Title, Fields: r.Fields}.Clone()
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	s := r.Schema()
	r.Fields = s.Fields
	return r
}
