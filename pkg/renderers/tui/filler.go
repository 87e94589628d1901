// Package tui fills form sessions interactively on a terminal.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/goliatone/go-dynform/pkg/render"
	"github.com/goliatone/go-dynform/pkg/session"
)

const noneOption = "(none)"

// Session is the part of a form session the filler drives.
type Session interface {
	render.Handlers
	Snapshot() session.State
	Submit(ctx context.Context) error
}

// Filler walks a session field by field, re-prompting until each field
// passes its blur validation, and then submits.
type Filler struct {
	driver      PromptDriver
	theme       Theme
	maxAttempts int
	logger      *slog.Logger
}

// New constructs a Filler that prompts on the terminal unless another driver
// is configured.
func New(options ...Option) *Filler {
	f := &Filler{
		theme:       Theme{ErrorPrefix: "! ", SuccessPrefix: "* "},
		maxAttempts: 3,
		logger:      slog.Default(),
	}
	for _, opt := range options {
		if opt != nil {
			opt(f)
		}
	}
	if f.driver == nil {
		f.driver = NewSurveyDriver(nil)
	}
	return f
}

// Fill prompts for every field of s and submits the result. Declining the
// final confirmation leaves the session untouched and returns nil.
func (f *Filler) Fill(ctx context.Context, s Session) error {
	state := s.Snapshot()
	if state.Phase == session.PhaseUninitialized {
		return ErrNoSchema
	}
	if err := f.info(ctx, f.theme.InfoPrefix+state.Schema.Title); err != nil {
		return err
	}

	pending := state.Schema.Names()
	for attempt := 1; ; attempt++ {
		for _, name := range pending {
			if err := f.fillField(ctx, s, name); err != nil {
				return err
			}
		}

		ok, err := f.driver.Confirm(ctx, ConfirmConfig{Message: "Submit " + state.Schema.Title + "?", Default: true})
		if err != nil {
			return err
		}
		if !ok {
			return f.info(ctx, f.theme.InfoPrefix+"Submission skipped.")
		}

		err = s.Submit(ctx)
		var invalid *session.FormValidationError
		var failed *session.SubmissionError
		switch {
		case err == nil:
			return f.info(ctx, f.theme.SuccessPrefix+s.Snapshot().Success)
		case errors.As(err, &invalid):
			pending = pending[:0]
			for _, name := range state.Schema.Names() {
				if msg := invalid.Errors[name]; msg != "" {
					pending = append(pending, name)
					if err := f.info(ctx, f.theme.ErrorPrefix+name+": "+msg); err != nil {
						return err
					}
				}
			}
		case errors.As(err, &failed):
			f.logger.WarnContext(ctx, "tui: submission failed", "err", failed.Err)
			pending = nil
			if err := f.info(ctx, f.theme.ErrorPrefix+s.Snapshot().Failure); err != nil {
				return err
			}
		default:
			return err
		}
		if attempt >= f.maxAttempts {
			return fmt.Errorf("%w: submit", ErrGaveUp)
		}
	}
}

func (f *Filler) fillField(ctx context.Context, s Session, name string) error {
	for attempt := 0; attempt < f.maxAttempts; attempt++ {
		ctl, ok := render.BuildForm(s.Snapshot()).Control(name)
		if !ok {
			return fmt.Errorf("%w: %q", session.ErrUnknownField, name)
		}
		value, err := f.prompt(ctx, ctl)
		if err != nil {
			return err
		}
		if err := ctl.Commit(ctx, s, value); err != nil {
			return err
		}
		ctl, _ = render.BuildForm(s.Snapshot()).Control(name)
		if !ctl.Invalid() {
			return nil
		}
		if err := f.info(ctx, f.theme.ErrorPrefix+ctl.Error); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: %s", ErrGaveUp, name)
}

func (f *Filler) prompt(ctx context.Context, ctl render.Control) (string, error) {
	message := ctl.Label
	if ctl.Required {
		message += " *"
	}

	if ctl.Strategy == render.StrategyChoice {
		options := ctl.Options
		if !ctl.Required {
			options = append([]string{noneOption}, ctl.Options...)
		}
		def := indexOf(options, ctl.Value)
		if def < 0 {
			def = 0
		}
		idx, err := f.driver.Select(ctx, SelectConfig{Message: message, Options: options, DefaultIndex: def, Help: ctl.HelpText})
		if err != nil {
			return "", err
		}
		if idx < 0 || idx >= len(options) || (!ctl.Required && idx == 0) {
			return "", nil
		}
		return options[idx], nil
	}

	help := inputHelp(ctl)
	switch ctl.Input {
	case render.InputPassword:
		return f.driver.Password(ctx, InputConfig{Message: message, Help: help})
	case render.InputTextarea:
		return f.driver.TextArea(ctx, TextAreaConfig{Message: message, Default: ctl.Value, Help: help})
	default:
		return f.driver.Input(ctx, InputConfig{Message: message, Default: ctl.Value, Help: help})
	}
}

func (f *Filler) info(ctx context.Context, msg string) error {
	if msg == "" {
		return nil
	}
	return f.driver.Info(ctx, msg)
}

func inputHelp(ctl render.Control) string {
	if ctl.HelpText != "" {
		return ctl.HelpText
	}
	switch ctl.Input {
	case render.InputDate:
		return "YYYY-MM-DD"
	case render.InputNumber:
		return "a number"
	case render.InputTel:
		return "e.g. +1 555-123-4567"
	case render.InputURL:
		return "e.g. https://example.com"
	default:
		return ""
	}
}
