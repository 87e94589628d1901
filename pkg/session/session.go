// Package session implements the per-form state machine that ties rendering,
// validation and submission together.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/goliatone/go-dynform/pkg/gateway"
	"github.com/goliatone/go-dynform/pkg/rules"
	"github.com/goliatone/go-dynform/pkg/schema"
)

// Submitter stores a completed form.
type Submitter interface {
	CreateSubmission(ctx context.Context, formTitle string, data map[string]string) (gateway.Created, error)
}

// Option configures a Session.
type Option func(*Session)

// WithRefresher registers the collaborator invoked after a successful
// submission, typically to re-fetch the submission list.
func WithRefresher(fn func(ctx context.Context)) Option {
	return func(s *Session) {
		s.refresher = fn
	}
}

// WithObserver registers a callback for every phase transition. It runs
// outside the session lock.
func WithObserver(fn func(from, to Phase)) Option {
	return func(s *Session) {
		s.observer = fn
	}
}

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRuleOptions forwards options to the rule compiler on every Load.
func WithRuleOptions(opts ...rules.Option) Option {
	return func(s *Session) {
		s.ruleOpts = append(s.ruleOpts, opts...)
	}
}

// State is a point-in-time copy of a session.
type State struct {
	Phase   Phase
	Schema  schema.FormSchema
	Values  map[string]string
	Errors  map[string]string
	Touched map[string]bool
	Success string
	Failure string
}

type transition struct {
	from, to Phase
}

// Session holds the mutable state of one rendered form. Validation and
// submission run outside the lock; results are applied only when no newer
// edit or reset happened meanwhile.
type Session struct {
	submitter Submitter
	refresher func(ctx context.Context)
	observer  func(from, to Phase)
	logger    *slog.Logger
	ruleOpts  []rules.Option

	mu         sync.Mutex
	phase      Phase
	form       schema.FormSchema
	ruleset    *rules.Ruleset
	values     map[string]string
	errors     map[string]string
	touched    map[string]bool
	seq        map[string]uint64
	generation uint64
	attempt    uint64
	success    string
	failure    string
	pending    []transition
}

// New creates an uninitialized session that stores submissions through
// submitter.
func New(submitter Submitter, opts ...Option) *Session {
	s := &Session{
		submitter: submitter,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Load compiles form and enters the ready phase with empty values. Loading a
// new schema discards in-flight validation results of the previous one.
func (s *Session) Load(form schema.FormSchema) {
	form = form.Clone()
	opts := append([]rules.Option{rules.WithLogger(s.logger)}, s.ruleOpts...)
	rs := rules.Compile(form.Fields, opts...)

	s.mu.Lock()
	defer s.unlock()
	s.form = form
	s.ruleset = rs
	s.success, s.failure = "", ""
	s.resetLocked()
	s.transition(PhaseReady)
}

// Change records a new value for name. A visible error is cleared
// optimistically; it is re-validated on blur.
func (s *Session) Change(name, value string) error {
	s.mu.Lock()
	defer s.unlock()
	if err := s.editableLocked(name); err != nil {
		return err
	}
	s.values[name] = value
	if s.errors[name] != "" {
		s.errors[name] = ""
	}
	s.seq[name]++
	return nil
}

// Blur marks name as touched and validates it against the current values.
// The result is discarded if the field changed or the session was reset
// while the check ran.
func (s *Session) Blur(ctx context.Context, name string) error {
	s.mu.Lock()
	if s.phase == PhaseUninitialized {
		s.unlock()
		return ErrNotLoaded
	}
	if !s.ruleset.Has(name) {
		s.unlock()
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	s.touched[name] = true
	s.seq[name]++
	ticket, gen := s.seq[name], s.generation
	value, values, rs := s.values[name], maps.Clone(s.values), s.ruleset
	s.unlock()

	res, err := rs.ValidateOne(ctx, name, value, values)
	if err != nil {
		s.logger.WarnContext(ctx, "session: field validation failed", "field", name, "err", err)
		return err
	}

	s.mu.Lock()
	defer s.unlock()
	if gen != s.generation || ticket != s.seq[name] {
		s.logger.DebugContext(ctx, "session: dropping stale validation", "field", name)
		return nil
	}
	s.errors[name] = res.Message
	return nil
}

// Submit validates every field and, when the form is valid, stores it. An
// invalid form returns *FormValidationError; a gateway failure returns
// *SubmissionError with the form state preserved. Attempts while another
// submit is underway return ErrSubmitInFlight and change nothing. If Reset or
// Load runs before the attempt settles, its outcome is dropped and Submit
// returns ErrCanceled.
func (s *Session) Submit(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.phase == PhaseUninitialized:
		s.unlock()
		return ErrNotLoaded
	case s.phase.Busy():
		s.unlock()
		return ErrSubmitInFlight
	}
	s.transition(PhaseValidating)
	s.attempt++
	gen, attempt := s.generation, s.attempt
	title, values, rs := s.form.Title, maps.Clone(s.values), s.ruleset
	s.unlock()

	res, err := rs.ValidateAll(ctx, values)

	s.mu.Lock()
	switch {
	case gen != s.generation:
		s.settleLocked(attempt, PhaseReady)
		s.unlock()
		return ErrCanceled
	case err != nil:
		s.transition(PhaseReady)
		s.unlock()
		return fmt.Errorf("session: validate: %w", err)
	case !res.Valid:
		for _, name := range rs.Fields() {
			s.errors[name] = res.Errors[name]
			s.touched[name] = true
		}
		s.transition(PhaseReady)
		s.unlock()
		return &FormValidationError{Errors: res.Errors}
	}
	s.success, s.failure = "", ""
	s.transition(PhaseSubmitting)
	s.unlock()

	created, err := s.submitter.CreateSubmission(ctx, title, values)

	s.mu.Lock()
	if gen != s.generation {
		s.settleLocked(attempt, PhaseReady)
		s.unlock()
		s.logger.WarnContext(ctx, "session: dropping submit outcome after reset", "form", title, "err", err)
		return ErrCanceled
	}
	if err != nil {
		s.failure = MsgSubmitFailed
		s.settleLocked(attempt, PhaseSettledError)
		s.settleLocked(attempt, PhaseReady)
		s.unlock()
		s.logger.ErrorContext(ctx, "session: submission failed", "form", title, "err", err)
		return &SubmissionError{Err: err}
	}
	s.success = MsgSubmitted
	s.settleLocked(attempt, PhaseSettledSuccess)
	refresher := s.refresher
	s.unlock()
	s.logger.InfoContext(ctx, "session: submission stored", "form", title, "id", created.ID)

	if refresher != nil {
		refresher(ctx)
	}

	s.mu.Lock()
	defer s.unlock()
	if gen == s.generation {
		s.resetLocked()
	}
	s.settleLocked(attempt, PhaseReady)
	return nil
}

// settleLocked moves attempt's phase forward. It does nothing once a Load
// returned the session to ready or a newer attempt owns the phase.
func (s *Session) settleLocked(attempt uint64, to Phase) {
	if attempt == s.attempt && s.phase.Busy() {
		s.transition(to)
	}
}

// Reset clears values, errors and touched flags. It is idempotent and valid
// in any phase. A submit attempt underway keeps its phase but will not apply
// its results to the cleared form.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.unlock()
	if s.phase == PhaseUninitialized {
		return
	}
	s.resetLocked()
}

// DismissMessages clears the success and failure banners.
func (s *Session) DismissMessages() {
	s.mu.Lock()
	defer s.unlock()
	s.success, s.failure = "", ""
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Snapshot returns a deep copy of the session state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Phase:   s.phase,
		Schema:  s.form.Clone(),
		Values:  maps.Clone(s.values),
		Errors:  maps.Clone(s.errors),
		Touched: maps.Clone(s.touched),
		Success: s.success,
		Failure: s.failure,
	}
}

func (s *Session) editableLocked(name string) error {
	switch {
	case s.phase == PhaseUninitialized:
		return ErrNotLoaded
	case s.phase != PhaseReady:
		return ErrNotReady
	case !s.ruleset.Has(name):
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return nil
}

func (s *Session) resetLocked() {
	s.generation++
	s.values = make(map[string]string, len(s.form.Fields))
	s.errors = make(map[string]string, len(s.form.Fields))
	s.touched = make(map[string]bool, len(s.form.Fields))
	s.seq = make(map[string]uint64, len(s.form.Fields))
	for _, name := range s.ruleset.Fields() {
		s.values[name] = ""
		s.errors[name] = ""
		s.touched[name] = false
	}
}

func (s *Session) transition(to Phase) {
	if s.phase == to {
		return
	}
	s.pending = append(s.pending, transition{from: s.phase, to: to})
	s.phase = to
}

// unlock releases the lock and then reports queued transitions.
func (s *Session) unlock() {
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, t := range pending {
		s.logger.Debug("session: phase", "from", t.from.String(), "to", t.to.String())
		if s.observer != nil {
			s.observer(t.from, t.to)
		}
	}
}
