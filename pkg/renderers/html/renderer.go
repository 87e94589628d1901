// Package html renders form sessions as server-side HTML pages.
package html

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goliatone/go-dynform/pkg/render"
	"github.com/goliatone/go-dynform/pkg/render/template"
	"github.com/goliatone/go-dynform/pkg/schema"
	"github.com/goliatone/go-dynform/pkg/session"
)

// Name is the registry name of this renderer.
const Name = "html"

// Option configures the renderer.
type Option func(*config)

type config struct {
	templatesDir string
	stylesheet   string
}

// WithTemplatesDir shadows the bundled templates with files from dir.
func WithTemplatesDir(dir string) Option {
	return func(cfg *config) {
		cfg.templatesDir = dir
	}
}

// WithStylesheet sets the stylesheet URL linked from the page head.
func WithStylesheet(href string) Option {
	return func(cfg *config) {
		cfg.stylesheet = href
	}
}

// Renderer renders a full HTML page for a session snapshot.
type Renderer struct {
	engine     *template.Engine
	stylesheet string
}

var _ render.Renderer = (*Renderer)(nil)

// New constructs the renderer.
func New(options ...Option) (*Renderer, error) {
	cfg := config{stylesheet: "/assets/" + StylesheetName}
	for _, opt := range options {
		if opt != nil {
			opt(&cfg)
		}
	}
	opts := []template.Option{template.WithFS(TemplatesFS())}
	if cfg.templatesDir != "" {
		opts = append(opts, template.WithBaseDir(cfg.templatesDir))
	}
	engine, err := template.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("html renderer: configure templates: %w", err)
	}
	return &Renderer{engine: engine, stylesheet: cfg.stylesheet}, nil
}

func (r *Renderer) Name() string {
	return Name
}

func (r *Renderer) ContentType() string {
	return "text/html; charset=utf-8"
}

// Render produces the page. Labels and other display text are stripped of
// markup before they reach the templates; the templates escape everything
// else, option values included.
func (r *Renderer) Render(_ context.Context, state session.State, options render.RenderOptions) ([]byte, error) {
	state.Schema = schema.SanitizeLabels(state.Schema)
	form := render.BuildForm(state)

	controls := make([]map[string]any, 0, len(form.Controls))
	for _, ctl := range form.Controls {
		controls = append(controls, controlView(ctl))
	}

	data := map[string]any{
		"form":        form,
		"controls":    controls,
		"loaded":      state.Phase != session.PhaseUninitialized,
		"action":      options.Action,
		"hidden":      render.CleanHiddenFields(options.Hidden...),
		"submissions": options.Submissions,
		"stylesheet":  r.stylesheet,
		"theme_style": render.CSSVarsStyle(options.Theme),
		"theme_name":  "",
	}
	if options.Theme != nil {
		data["theme_name"] = options.Theme.Theme
		if href := options.Theme.AssetURL; href != nil {
			if url := href("stylesheet"); url != "" {
				data["stylesheet"] = url
			}
		}
	}

	var buf bytes.Buffer
	if err := r.engine.Render(&buf, "page", data); err != nil {
		return nil, fmt.Errorf("html renderer: %w", err)
	}
	return buf.Bytes(), nil
}

// controlView flattens a control into plain template values.
func controlView(ctl render.Control) map[string]any {
	options := make([]map[string]any, 0, len(ctl.Options))
	for _, opt := range ctl.Options {
		options = append(options, map[string]any{
			"value":    opt,
			"selected": ctl.Selected(opt),
		})
	}
	return map[string]any{
		"name":        ctl.Name,
		"id":          "field-" + ctl.Name,
		"label":       ctl.Label,
		"required":    ctl.Required,
		"choice":      ctl.Strategy == render.StrategyChoice,
		"textarea":    ctl.Input == render.InputTextarea,
		"input":       string(ctl.Input),
		"options":     options,
		"value":       ctl.Value,
		"error":       ctl.Error,
		"invalid":     ctl.Invalid(),
		"placeholder": ctl.Placeholder,
		"help":        ctl.HelpText,
	}
}
