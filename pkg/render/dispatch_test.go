package render

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-dynform/pkg/gateway"
	"github.com/goliatone/go-dynform/pkg/schema"
	"github.com/goliatone/go-dynform/pkg/session"
)

func TestDispatch_SelectsStrategyPerType(t *testing.T) {
	t.Parallel()

	cases := []struct {
		typ      schema.FieldType
		strategy Strategy
		input    InputType
	}{
		{schema.FieldTypeText, StrategyInput, InputText},
		{schema.FieldTypeEmail, StrategyInput, InputEmail},
		{schema.FieldTypePassword, StrategyInput, InputPassword},
		{schema.FieldTypeDate, StrategyInput, InputDate},
		{schema.FieldTypeNumber, StrategyInput, InputNumber},
		{schema.FieldTypePhone, StrategyInput, InputTel},
		{schema.FieldTypeURL, StrategyInput, InputURL},
		{schema.FieldTypeTextArea, StrategyInput, InputTextarea},
		{schema.FieldType("colour"), StrategyInput, InputText},
		{schema.FieldTypeSelect, StrategyChoice, ""},
	}
	for _, tc := range cases {
		t.Run(string(tc.typ), func(t *testing.T) {
			ctl := Dispatch(schema.FieldSpec{Name: "f", Type: tc.typ, Options: []string{"a"}}, FieldState{})
			if ctl.Strategy != tc.strategy || ctl.Input != tc.input {
				t.Fatalf("want %s/%s, got %s/%s", tc.strategy, tc.input, ctl.Strategy, ctl.Input)
			}
		})
	}
}

func TestDispatch_ChoiceDefaultsToEmptySentinel(t *testing.T) {
	t.Parallel()

	field := schema.FieldSpec{Name: "country", Label: "Country", Type: schema.FieldTypeSelect, Options: []string{"Canada", "Mexico"}}
	ctl := Dispatch(field, FieldState{})
	if ctl.Value != "" {
		t.Fatalf("expected empty sentinel, got %q", ctl.Value)
	}
	for _, opt := range ctl.Options {
		if ctl.Selected(opt) {
			t.Fatalf("no option must be selected, %q was", opt)
		}
	}

	ctl = Dispatch(field, FieldState{Value: "Mexico"})
	if !ctl.Selected("Mexico") || ctl.Selected("Canada") {
		t.Fatalf("unexpected selection for %q", ctl.Value)
	}
}

func TestDispatch_ErrorsOnlyShownWhenTouched(t *testing.T) {
	t.Parallel()

	field := schema.FieldSpec{Name: "e", Label: "Email", Type: schema.FieldTypeEmail}
	if ctl := Dispatch(field, FieldState{Error: "Invalid email format"}); ctl.Invalid() {
		t.Fatalf("untouched field must not show its error")
	}
	if ctl := Dispatch(field, FieldState{Error: "Invalid email format", Touched: true}); ctl.Error != "Invalid email format" {
		t.Fatalf("touched field must show its error, got %q", ctl.Error)
	}
}

type recordingHandlers struct {
	events []string
	err    error
}

func (h *recordingHandlers) Change(name, value string) error {
	h.events = append(h.events, "change:"+name+"="+value)
	return h.err
}

func (h *recordingHandlers) Blur(_ context.Context, name string) error {
	h.events = append(h.events, "blur:"+name)
	return nil
}

func TestControl_CommitChangesThenBlurs(t *testing.T) {
	t.Parallel()

	h := &recordingHandlers{}
	ctl := Control{Name: "e"}
	if err := ctl.Commit(context.Background(), h, "a@b.com"); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if diff := cmp.Diff([]string{"change:e=a@b.com", "blur:e"}, h.events); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}

	rejected := &recordingHandlers{err: errors.New("busy")}
	if err := ctl.Commit(context.Background(), rejected, "x"); err == nil || len(rejected.events) != 1 {
		t.Fatalf("blur must not run after a rejected change: %v %v", err, rejected.events)
	}
}

func TestBuildForm_FollowsSchemaOrder(t *testing.T) {
	t.Parallel()

	state := session.State{
		Phase: session.PhaseReady,
		Schema: schema.FormSchema{Title: "T", Fields: []schema.FieldSpec{
			{Name: "b", Label: "B"},
			{Name: "a", Label: "A", Type: schema.FieldTypeSelect, Options: []string{"x"}},
		}},
		Values:  map[string]string{"a": "x", "b": "hi"},
		Errors:  map[string]string{"b": "B is required"},
		Touched: map[string]bool{"b": true},
		Success: "ok",
	}
	form := BuildForm(state)
	if form.Title != "T" || form.Busy || form.Success != "ok" {
		t.Fatalf("unexpected form header: %+v", form)
	}
	if len(form.Controls) != 2 || form.Controls[0].Name != "b" || form.Controls[1].Name != "a" {
		t.Fatalf("unexpected control order: %+v", form.Controls)
	}
	if ctl, ok := form.Control("b"); !ok || ctl.Error != "B is required" || ctl.Value != "hi" {
		t.Fatalf("unexpected control b: %+v", ctl)
	}
}

func TestSubmissionRows_SortsDataKeys(t *testing.T) {
	t.Parallel()

	rows := SubmissionRows([]gateway.Submission{{
		ID:        "s1",
		FormTitle: "T",
		Data:      map[string]string{"z": "1", "a": "2"},
		CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}})
	want := []SubmissionRow{{
		ID:        "s1",
		FormTitle: "T",
		CreatedAt: "2024-01-02T03:04:05Z",
		Fields:    []KeyValue{{Key: "a", Value: "2"}, {Key: "z", Value: "1"}},
	}}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestCleanHiddenFields(t *testing.T) {
	t.Parallel()

	got := CleanHiddenFields(SessionField("abc"), HiddenField{Name: " ", Value: "skip"}, HiddenField{Name: " _csrf ", Value: "t"}, SessionField("def"))
	want := []HiddenField{{Name: "_csrf", Value: "t"}, {Name: "_session", Value: "def"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("hidden fields mismatch (-want +got):\n%s", diff)
	}
}
