package session

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-dynform/pkg/gateway"
	"github.com/goliatone/go-dynform/pkg/rules"
	"github.com/goliatone/go-dynform/pkg/schema"
)

type submitCall struct {
	title string
	data  map[string]string
}

type fakeSubmitter struct {
	mu      sync.Mutex
	calls   []submitCall
	err     error
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeSubmitter) CreateSubmission(ctx context.Context, title string, data map[string]string) (gateway.Created, error) {
	f.mu.Lock()
	f.calls = append(f.calls, submitCall{title: title, data: data})
	block, entered := f.block, f.entered
	f.mu.Unlock()
	if entered != nil {
		close(entered)
	}
	if block != nil {
		<-block
	}
	if f.err != nil {
		return gateway.Created{}, f.err
	}
	return gateway.Created{ID: "sub-1", CreatedAt: time.Unix(0, 0)}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func emailSchema() schema.FormSchema {
	return schema.FormSchema{
		Title:  "T",
		Fields: []schema.FieldSpec{{Name: "e", Label: "Email", Type: schema.FieldTypeEmail, Required: true}},
	}
}

func TestSession_EndToEndEmailFlow(t *testing.T) {
	t.Parallel()

	sub := &fakeSubmitter{}
	refreshed := 0
	var phases []string
	s := New(sub,
		WithLogger(quietLogger()),
		WithRefresher(func(context.Context) { refreshed++ }),
		WithObserver(func(from, to Phase) { phases = append(phases, from.String()+">"+to.String()) }),
	)
	ctx := context.Background()

	s.Load(emailSchema())
	if s.Phase() != PhaseReady {
		t.Fatalf("expected ready, got %s", s.Phase())
	}

	if err := s.Change("e", "x"); err != nil {
		t.Fatalf("change: %v", err)
	}
	if err := s.Blur(ctx, "e"); err != nil {
		t.Fatalf("blur: %v", err)
	}
	if got := s.Snapshot().Errors["e"]; got != "Invalid email format" {
		t.Fatalf("want invalid email error, got %q", got)
	}

	if err := s.Change("e", "a@b.com"); err != nil {
		t.Fatalf("change: %v", err)
	}
	if got := s.Snapshot().Errors["e"]; got != "" {
		t.Fatalf("error must clear optimistically on change, got %q", got)
	}
	if err := s.Blur(ctx, "e"); err != nil {
		t.Fatalf("blur: %v", err)
	}
	if got := s.Snapshot().Errors["e"]; got != "" {
		t.Fatalf("want no error after blur, got %q", got)
	}

	if err := s.Submit(ctx); err != nil {
		t.Fatalf("submit: %v", err)
	}

	wantCalls := []submitCall{{title: "T", data: map[string]string{"e": "a@b.com"}}}
	if diff := cmp.Diff(wantCalls, sub.calls, cmp.AllowUnexported(submitCall{})); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
	if refreshed != 1 {
		t.Fatalf("expected one refresh, got %d", refreshed)
	}

	want := State{
		Phase:   PhaseReady,
		Schema:  emailSchema(),
		Values:  map[string]string{"e": ""},
		Errors:  map[string]string{"e": ""},
		Touched: map[string]bool{"e": false},
		Success: MsgSubmitted,
	}
	if diff := cmp.Diff(want, s.Snapshot()); diff != "" {
		t.Fatalf("state mismatch (-want +got):\n%s", diff)
	}

	wantPhases := []string{
		"uninitialized>ready",
		"ready>validating",
		"validating>submitting",
		"submitting>settled-success",
		"settled-success>ready",
	}
	if diff := cmp.Diff(wantPhases, phases); diff != "" {
		t.Fatalf("transitions mismatch (-want +got):\n%s", diff)
	}
}

func TestSession_InvalidSubmitTouchesEveryField(t *testing.T) {
	t.Parallel()

	sub := &fakeSubmitter{}
	s := New(sub, WithLogger(quietLogger()))
	minAge := 5.0
	s.Load(schema.FormSchema{
		Title: "T",
		Fields: []schema.FieldSpec{
			{Name: "name", Label: "Name", Type: schema.FieldTypeText, Required: true},
			{Name: "age", Label: "Age", Type: schema.FieldTypeNumber, Min: &minAge},
			{Name: "note", Label: "Note", Type: schema.FieldTypeText},
		},
	})
	if err := s.Change("age", "3"); err != nil {
		t.Fatalf("change: %v", err)
	}

	err := s.Submit(context.Background())
	var invalid *FormValidationError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected FormValidationError, got %v", err)
	}
	if diff := cmp.Diff(map[string]string{"name": "Name is required", "age": "Minimum value is 5"}, invalid.Fields()); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
	if len(sub.calls) != 0 {
		t.Fatalf("submission must not be attempted")
	}

	snap := s.Snapshot()
	if snap.Phase != PhaseReady {
		t.Fatalf("expected ready, got %s", snap.Phase)
	}
	if diff := cmp.Diff(map[string]bool{"name": true, "age": true, "note": true}, snap.Touched); diff != "" {
		t.Fatalf("touched mismatch (-want +got):\n%s", diff)
	}
	if snap.Values["age"] != "3" {
		t.Fatalf("values must be kept, got %v", snap.Values)
	}
}

func TestSession_SubmissionFailurePreservesState(t *testing.T) {
	t.Parallel()

	boom := errors.New("server down")
	s := New(&fakeSubmitter{err: boom}, WithLogger(quietLogger()))
	s.Load(emailSchema())
	_ = s.Change("e", "a@b.com")
	_ = s.Blur(context.Background(), "e")

	err := s.Submit(context.Background())
	var subErr *SubmissionError
	if !errors.As(err, &subErr) || !errors.Is(err, boom) {
		t.Fatalf("expected SubmissionError wrapping cause, got %v", err)
	}

	snap := s.Snapshot()
	if snap.Phase != PhaseReady || snap.Failure != MsgSubmitFailed || snap.Success != "" {
		t.Fatalf("unexpected state: %+v", snap)
	}
	if snap.Values["e"] != "a@b.com" || !snap.Touched["e"] {
		t.Fatalf("form state must survive failure: %+v", snap)
	}

	s.DismissMessages()
	if got := s.Snapshot().Failure; got != "" {
		t.Fatalf("expected dismissed failure, got %q", got)
	}
}

func TestSession_ReentrantSubmitIsIgnored(t *testing.T) {
	t.Parallel()

	sub := &fakeSubmitter{block: make(chan struct{}), entered: make(chan struct{})}
	s := New(sub, WithLogger(quietLogger()))
	s.Load(emailSchema())
	_ = s.Change("e", "a@b.com")

	done := make(chan error, 1)
	go func() { done <- s.Submit(context.Background()) }()
	<-sub.entered

	if s.Phase() != PhaseSubmitting {
		t.Fatalf("expected submitting, got %s", s.Phase())
	}
	if err := s.Submit(context.Background()); !errors.Is(err, ErrSubmitInFlight) {
		t.Fatalf("want ErrSubmitInFlight, got %v", err)
	}
	if err := s.Change("e", "other@b.com"); !errors.Is(err, ErrNotReady) {
		t.Fatalf("edits are rejected while submitting, got %v", err)
	}

	close(sub.block)
	if err := <-done; err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(sub.calls) != 1 {
		t.Fatalf("expected exactly one submission, got %d", len(sub.calls))
	}
}

func TestSession_StaleBlurResultIsDropped(t *testing.T) {
	t.Parallel()

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	slowCheck := func(ctx context.Context, value string, _ map[string]string) (string, error) {
		if value == "taken" {
			started <- struct{}{}
			<-release
			return "Name is taken", nil
		}
		return "", nil
	}

	s := New(&fakeSubmitter{}, WithLogger(quietLogger()), WithRuleOptions(rules.WithCheck("user", slowCheck)))
	s.Load(schema.FormSchema{Title: "T", Fields: []schema.FieldSpec{{Name: "user", Label: "User", Type: schema.FieldTypeText}}})

	_ = s.Change("user", "taken")
	done := make(chan error, 1)
	go func() { done <- s.Blur(context.Background(), "user") }()
	<-started

	// A newer edit lands while the check for "taken" is still running.
	_ = s.Change("user", "fresh")
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("blur: %v", err)
	}
	if got := s.Snapshot().Errors["user"]; got != "" {
		t.Fatalf("stale result applied: %q", got)
	}

	if err := s.Blur(context.Background(), "user"); err != nil {
		t.Fatalf("blur: %v", err)
	}
	if got := s.Snapshot().Errors["user"]; got != "" {
		t.Fatalf("expected fresh value to be valid, got %q", got)
	}
}

func TestSession_ResetIsIdempotent(t *testing.T) {
	t.Parallel()

	s := New(&fakeSubmitter{}, WithLogger(quietLogger()))
	s.Reset()
	if s.Phase() != PhaseUninitialized {
		t.Fatalf("reset must not initialize the session")
	}

	s.Load(emailSchema())
	_ = s.Change("e", "x")
	_ = s.Blur(context.Background(), "e")

	s.Reset()
	once := s.Snapshot()
	s.Reset()
	twice := s.Snapshot()
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Fatalf("reset not idempotent (-once +twice):\n%s", diff)
	}
	if once.Values["e"] != "" || once.Errors["e"] != "" || once.Touched["e"] {
		t.Fatalf("reset did not clear state: %+v", once)
	}
}

func TestSession_GuardsBeforeLoad(t *testing.T) {
	t.Parallel()

	s := New(&fakeSubmitter{}, WithLogger(quietLogger()))
	if err := s.Change("e", "x"); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("want ErrNotLoaded, got %v", err)
	}
	if err := s.Submit(context.Background()); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("want ErrNotLoaded, got %v", err)
	}

	s.Load(emailSchema())
	if err := s.Change("missing", "x"); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("want ErrUnknownField, got %v", err)
	}
	if err := s.Blur(context.Background(), "missing"); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("want ErrUnknownField, got %v", err)
	}
}

// gatedSubmitter holds every call until the test releases it.
type gatedSubmitter struct {
	mu      sync.Mutex
	calls   int
	entered chan int
	release []chan error
}

func newGatedSubmitter(n int) *gatedSubmitter {
	g := &gatedSubmitter{entered: make(chan int, n), release: make([]chan error, n)}
	for i := range g.release {
		g.release[i] = make(chan error, 1)
	}
	return g
}

func (g *gatedSubmitter) CreateSubmission(_ context.Context, _ string, _ map[string]string) (gateway.Created, error) {
	g.mu.Lock()
	call := g.calls
	g.calls++
	g.mu.Unlock()

	g.entered <- call
	if err := <-g.release[call]; err != nil {
		return gateway.Created{}, err
	}
	return gateway.Created{ID: "sub", CreatedAt: time.Unix(0, 0)}, nil
}

func TestSession_ResetDuringSubmitDropsOutcome(t *testing.T) {
	t.Parallel()

	sub := &fakeSubmitter{block: make(chan struct{}), entered: make(chan struct{})}
	s := New(sub, WithLogger(quietLogger()))
	s.Load(emailSchema())
	_ = s.Change("e", "a@b.com")

	done := make(chan error, 1)
	go func() { done <- s.Submit(context.Background()) }()
	<-sub.entered

	s.Reset()
	close(sub.block)
	if err := <-done; !errors.Is(err, ErrCanceled) {
		t.Fatalf("want ErrCanceled, got %v", err)
	}

	got := s.Snapshot()
	if got.Phase != PhaseReady {
		t.Fatalf("expected ready, got %s", got.Phase)
	}
	if got.Success != "" || got.Failure != "" {
		t.Fatalf("stale banner after reset: success=%q failure=%q", got.Success, got.Failure)
	}
	if diff := cmp.Diff(map[string]string{"e": ""}, got.Values); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestSession_ResetDuringValidationDropsSubmit(t *testing.T) {
	t.Parallel()

	entered, release := make(chan struct{}), make(chan struct{})
	slow := func(ctx context.Context, _ string, _ map[string]string) (string, error) {
		close(entered)
		<-release
		return "", nil
	}
	sub := &fakeSubmitter{}
	s := New(sub, WithLogger(quietLogger()), WithRuleOptions(rules.WithCheck("e", slow)))
	s.Load(emailSchema())
	_ = s.Change("e", "a@b.com")

	done := make(chan error, 1)
	go func() { done <- s.Submit(context.Background()) }()
	<-entered

	if s.Phase() != PhaseValidating {
		t.Fatalf("expected validating, got %s", s.Phase())
	}
	s.Reset()
	close(release)
	if err := <-done; !errors.Is(err, ErrCanceled) {
		t.Fatalf("want ErrCanceled, got %v", err)
	}
	if s.Phase() != PhaseReady {
		t.Fatalf("expected ready, got %s", s.Phase())
	}
	if len(sub.calls) != 0 {
		t.Fatalf("canceled submit reached the gateway %d time(s)", len(sub.calls))
	}
}

func TestSession_ReloadDuringSubmitKeepsOneInFlight(t *testing.T) {
	t.Parallel()

	sub := newGatedSubmitter(3)
	s := New(sub, WithLogger(quietLogger()))
	ctx := context.Background()

	s.Load(emailSchema())
	_ = s.Change("e", "a@b.com")
	first := make(chan error, 1)
	go func() { first <- s.Submit(ctx) }()
	if call := <-sub.entered; call != 0 {
		t.Fatalf("expected first call, got %d", call)
	}

	s.Load(emailSchema())
	if err := s.Change("e", "b@c.com"); err != nil {
		t.Fatalf("change after reload: %v", err)
	}
	second := make(chan error, 1)
	go func() { second <- s.Submit(ctx) }()
	if call := <-sub.entered; call != 1 {
		t.Fatalf("expected second call, got %d", call)
	}

	sub.release[0] <- errors.New("gateway down")
	if err := <-first; !errors.Is(err, ErrCanceled) {
		t.Fatalf("want ErrCanceled for the reloaded attempt, got %v", err)
	}
	if s.Phase() != PhaseSubmitting {
		t.Fatalf("stale attempt moved the phase to %s", s.Phase())
	}
	if err := s.Submit(ctx); !errors.Is(err, ErrSubmitInFlight) {
		t.Fatalf("want ErrSubmitInFlight, got %v", err)
	}
	if got := s.Snapshot().Failure; got != "" {
		t.Fatalf("stale failure banner %q on reloaded form", got)
	}

	sub.release[1] <- nil
	if err := <-second; err != nil {
		t.Fatalf("second submit: %v", err)
	}
	got := s.Snapshot()
	if got.Phase != PhaseReady || got.Success != MsgSubmitted {
		t.Fatalf("after second submit: phase=%s success=%q", got.Phase, got.Success)
	}
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.calls != 2 {
		t.Fatalf("expected 2 gateway calls, got %d", sub.calls)
	}
}
