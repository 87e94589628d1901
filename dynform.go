// Package dynform is the convenience entry point to the form engine: parse a
// schema, compile its rules, drive a session and render it without wiring
// the individual packages by hand.
package dynform

import (
	"context"
	"fmt"
	"io/fs"
	"os"

	theme "github.com/goliatone/go-theme"

	"github.com/goliatone/go-dynform/internal/watch"
	"github.com/goliatone/go-dynform/pkg/render"
	"github.com/goliatone/go-dynform/pkg/renderers/html"
	"github.com/goliatone/go-dynform/pkg/renderers/tui"
	"github.com/goliatone/go-dynform/pkg/rules"
	"github.com/goliatone/go-dynform/pkg/schema"
	"github.com/goliatone/go-dynform/pkg/session"
)

// FormSchema aliases schema.FormSchema.
type FormSchema = schema.FormSchema

// FieldSpec aliases schema.FieldSpec.
type FieldSpec = schema.FieldSpec

// Session aliases session.Session.
type Session = session.Session

// State aliases session.State.
type State = session.State

// RenderOptions aliases render.RenderOptions.
type RenderOptions = render.RenderOptions

// ParseSchema decodes a JSON schema document.
func ParseSchema(raw []byte) (FormSchema, error) {
	return schema.Parse(raw)
}

// LoadSchemaFile reads a JSON or YAML schema, choosing the decoder by file
// extension, and validates it.
func LoadSchemaFile(path string) (FormSchema, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return FormSchema{}, fmt.Errorf("dynform: %w", err)
	}
	form, err := watch.Load(path, raw)
	if err != nil {
		return FormSchema{}, err
	}
	if err := form.Validate(); err != nil {
		return FormSchema{}, err
	}
	return form, nil
}

// Compile builds the validation ruleset of form.
func Compile(form FormSchema, opts ...rules.Option) *rules.Ruleset {
	return rules.Compile(form.Fields, opts...)
}

// NewSession returns a session already loaded with form.
func NewSession(submitter session.Submitter, form FormSchema, opts ...session.Option) *Session {
	s := session.New(submitter, opts...)
	s.Load(form)
	return s
}

// Renderers returns a registry holding the HTML renderer (the default) and
// the plain text renderer.
func Renderers(opts ...html.Option) (*render.Registry, error) {
	h, err := html.New(opts...)
	if err != nil {
		return nil, err
	}
	return render.NewRegistry(h, tui.TextRenderer{})
}

// RenderHTML renders state with the embedded HTML templates.
func RenderHTML(ctx context.Context, state State, options RenderOptions) ([]byte, error) {
	h, err := html.New()
	if err != nil {
		return nil, err
	}
	return h.Render(ctx, state, options)
}

// ThemeFromSelector resolves a theme and variant into renderer settings that
// can be passed as RenderOptions.Theme.
func ThemeFromSelector(selector theme.ThemeSelector, name, variant string) (*theme.RendererConfig, error) {
	if selector == nil {
		return nil, nil
	}
	selection, err := selector.Select(name, variant)
	if err != nil {
		return nil, fmt.Errorf("dynform: select theme %q: %w", name, err)
	}
	return render.ThemeConfig(selection), nil
}

// EmbeddedTemplates exposes the built-in HTML templates so callers can copy
// or override them.
func EmbeddedTemplates() fs.FS {
	return html.TemplatesFS()
}

// AssetsFS exposes the default stylesheet for mounting under /assets/.
func AssetsFS() fs.FS {
	return html.AssetsFS()
}
