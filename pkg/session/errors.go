package session

import (
	"errors"
	"fmt"
	"maps"
)

const (
	// MsgSubmitted is shown after a submission was stored.
	MsgSubmitted = "Form submitted successfully!"
	// MsgSubmitFailed is shown when storing a submission failed.
	MsgSubmitFailed = "Error submitting form. Please try again."
)

var (
	ErrNotLoaded      = errors.New("session: no schema loaded")
	ErrNotReady       = errors.New("session: not accepting edits")
	ErrSubmitInFlight = errors.New("session: submission already in flight")
	ErrUnknownField   = errors.New("session: unknown field")
	ErrCanceled       = errors.New("session: submit canceled by reset or reload")
)

// FormValidationError aggregates the field errors that blocked a submission.
type FormValidationError struct {
	Errors map[string]string
}

func (e *FormValidationError) Error() string {
	return fmt.Sprintf("session: %d invalid field(s)", len(e.Errors))
}

// Fields returns a copy of the per-field messages.
func (e *FormValidationError) Fields() map[string]string {
	return maps.Clone(e.Errors)
}

// SubmissionError wraps a failure of the submission gateway. Session state is
// preserved so the user can retry.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("session: submit: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}
