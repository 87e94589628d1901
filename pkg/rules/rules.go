// Package rules compiles form field specifications into a validation ruleset.
// Compilation never fails: malformed optional constraints are logged and
// dropped so the remaining rules still apply.
package rules

import (
	"context"
	"log/slog"
	"time"

	"github.com/goliatone/go-dynform/pkg/schema"
)

// Check is an additional field check that may block, for example a
// network-backed uniqueness lookup. It returns a non-empty message when the
// value is invalid. Errors abort validation of the field. values is shared
// between concurrent checks and must not be modified.
type Check func(ctx context.Context, value string, values map[string]string) (string, error)

// Option configures compilation.
type Option func(*config)

type config struct {
	clock  func() time.Time
	logger *slog.Logger
	checks map[string][]Check
}

// WithClock overrides the time source used to resolve "today" date bounds.
func WithClock(clock func() time.Time) Option {
	return func(c *config) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithLogger sets the logger used to report dropped constraints.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCheck appends an extra check for field. Extra checks run after every
// built-in rule passed, in registration order.
func WithCheck(field string, check Check) Option {
	return func(c *config) {
		if field == "" || check == nil {
			return
		}
		if c.checks == nil {
			c.checks = make(map[string][]Check)
		}
		c.checks[field] = append(c.checks[field], check)
	}
}

// Ruleset validates values against a compiled schema. It is safe for
// concurrent use.
type Ruleset struct {
	order  []string
	fields map[string]*fieldRules
	clock  func() time.Time
}

// FieldResult is the outcome of validating one field.
type FieldResult struct {
	Valid   bool
	Message string
}

// Result is the outcome of validating a whole form. Errors holds exactly one
// entry per invalid field.
type Result struct {
	Valid  bool
	Errors map[string]string
}

// Compile builds a Ruleset for fields.
func Compile(fields []schema.FieldSpec, opts ...Option) *Ruleset {
	cfg := config{clock: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	rs := &Ruleset{
		fields: make(map[string]*fieldRules, len(fields)),
		clock:  cfg.clock,
	}
	for _, spec := range fields {
		if spec.Name == "" {
			continue
		}
		if _, dup := rs.fields[spec.Name]; dup {
			cfg.logger.Warn("rules: duplicate field ignored", "field", spec.Name)
			continue
		}
		rs.order = append(rs.order, spec.Name)
		rs.fields[spec.Name] = compileField(spec, cfg)
	}

	// Confirmation fields are rewritten after every field has been compiled.
	for _, name := range rs.order {
		fr := rs.fields[name]
		if fr.spec.ConfirmPassword == "" {
			continue
		}
		fr.required = true
		fr.requiredMsg = MsgConfirmRequired
		fr.steps = []step{equalsField(fr.spec.ConfirmPassword, MsgPasswordsDiffer)}
		fr.extra = nil
	}
	return rs
}

// Fields returns the compiled field names in schema order.
func (rs *Ruleset) Fields() []string {
	return append([]string(nil), rs.order...)
}

// Has reports whether name is a compiled field.
func (rs *Ruleset) Has(name string) bool {
	_, ok := rs.fields[name]
	return ok
}
