package tui

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/goliatone/go-dynform/pkg/render"
	"github.com/goliatone/go-dynform/pkg/schema"
	"github.com/goliatone/go-dynform/pkg/session"
)

// TextName is the registry name of TextRenderer.
const TextName = "text"

// TextRenderer prints a session snapshot as plain text, one line per field.
// Password values are masked.
type TextRenderer struct{}

var _ render.Renderer = TextRenderer{}

func (TextRenderer) Name() string {
	return TextName
}

func (TextRenderer) ContentType() string {
	return "text/plain; charset=utf-8"
}

func (TextRenderer) Render(_ context.Context, state session.State, options render.RenderOptions) ([]byte, error) {
	var buf bytes.Buffer
	if state.Phase == session.PhaseUninitialized {
		buf.WriteString("No active form schema found\n")
	} else {
		form := render.BuildForm(schemaSanitized(state))
		fmt.Fprintf(&buf, "%s\n%s\n", form.Title, strings.Repeat("=", len(form.Title)))
		if form.Success != "" {
			fmt.Fprintf(&buf, "[ok] %s\n", form.Success)
		}
		if form.Failure != "" {
			fmt.Fprintf(&buf, "[error] %s\n", form.Failure)
		}
		for _, ctl := range form.Controls {
			marker := " "
			if ctl.Required {
				marker = "*"
			}
			kind := string(ctl.Input)
			if ctl.Strategy == render.StrategyChoice {
				kind = "choice"
			}
			value := ctl.Value
			if ctl.Input == render.InputPassword && value != "" {
				value = strings.Repeat("*", len(value))
			}
			fmt.Fprintf(&buf, "%s %s (%s): %s\n", marker, ctl.Label, kind, value)
			if ctl.Invalid() {
				fmt.Fprintf(&buf, "    ! %s\n", ctl.Error)
			}
		}
	}

	if len(options.Submissions) > 0 {
		buf.WriteByte('\n')
		WriteSubmissions(&buf, options.Submissions)
	}
	return buf.Bytes(), nil
}

// WriteSubmissions prints rows as blank-line separated blocks.
func WriteSubmissions(w io.Writer, rows []render.SubmissionRow) {
	for i, row := range rows {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s  %s  %s\n", row.ID, row.CreatedAt, row.FormTitle)
		for _, kv := range row.Fields {
			fmt.Fprintf(w, "    %s: %s\n", kv.Key, kv.Value)
		}
	}
}

func schemaSanitized(state session.State) session.State {
	state.Schema = schema.SanitizeLabels(state.Schema)
	return state
}
