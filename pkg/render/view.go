package render

import (
	"github.com/goliatone/go-dynform/pkg/session"
)

// Form is the renderable projection of a session snapshot.
type Form struct {
	Title    string
	Phase    string
	Busy     bool
	Success  string
	Failure  string
	Controls []Control
}

// BuildForm dispatches every field of state in schema order.
func BuildForm(state session.State) Form {
	form := Form{
		Title:    state.Schema.Title,
		Phase:    state.Phase.String(),
		Busy:     state.Phase.Busy(),
		Success:  state.Success,
		Failure:  state.Failure,
		Controls: make([]Control, 0, len(state.Schema.Fields)),
	}
	for _, field := range state.Schema.Fields {
		form.Controls = append(form.Controls, Dispatch(field, FieldState{
			Value:   state.Values[field.Name],
			Error:   state.Errors[field.Name],
			Touched: state.Touched[field.Name],
		}))
	}
	return form
}

// Control returns the control named name.
func (f Form) Control(name string) (Control, bool) {
	for _, ctl := range f.Controls {
		if ctl.Name == name {
			return ctl, true
		}
	}
	return Control{}, false
}
