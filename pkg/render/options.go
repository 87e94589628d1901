package render

import (
	theme "github.com/goliatone/go-theme"
)

// RenderOptions describe per-request data that renderers can use without
// touching the session.
type RenderOptions struct {
	// Action is the URL the form posts to. Renderers fall back to the current
	// location when empty.
	Action string
	// Hidden fields are emitted alongside the schema fields, for example a
	// session token.
	Hidden []HiddenField
	// Theme carries resolved tokens and CSS variables.
	Theme *theme.RendererConfig
	// Submissions lists prior submissions to show below the form.
	Submissions []SubmissionRow
}

// SubmissionRow is a prior submission prepared for display.
type SubmissionRow struct {
	ID        string
	FormTitle string
	CreatedAt string
	Fields    []KeyValue
}

// KeyValue is one ordered entry of submitted data.
type KeyValue struct {
	Key   string
	Value string
}
