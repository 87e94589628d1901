package session

// Phase is the lifecycle state of a Session.
type Phase int

const (
	// PhaseUninitialized means no schema has been loaded yet.
	PhaseUninitialized Phase = iota
	// PhaseReady accepts edits and submit attempts.
	PhaseReady
	// PhaseValidating runs whole-form validation for a submit attempt.
	PhaseValidating
	// PhaseSubmitting has a submission in flight.
	PhaseSubmitting
	// PhaseSettledSuccess is entered when the submission was stored.
	PhaseSettledSuccess
	// PhaseSettledError is entered when the submission failed.
	PhaseSettledError
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseReady:
		return "ready"
	case PhaseValidating:
		return "validating"
	case PhaseSubmitting:
		return "submitting"
	case PhaseSettledSuccess:
		return "settled-success"
	case PhaseSettledError:
		return "settled-error"
	default:
		return "unknown"
	}
}

// Busy reports whether a submit attempt is underway.
func (p Phase) Busy() bool {
	switch p {
	case PhaseValidating, PhaseSubmitting, PhaseSettledSuccess, PhaseSettledError:
		return true
	default:
		return false
	}
}
