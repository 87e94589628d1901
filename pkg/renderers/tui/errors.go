package tui

import "errors"

var (
	// ErrAborted signals the user aborted input (e.g., Ctrl+C).
	ErrAborted = errors.New("tui: aborted")
	// ErrNoSchema is returned when the session has nothing to fill.
	ErrNoSchema = errors.New("tui: no schema loaded")
	// ErrGaveUp is returned when a field or the submission kept failing after
	// the configured number of attempts.
	ErrGaveUp = errors.New("tui: too many failed attempts")
)
