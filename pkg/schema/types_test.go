package schema

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFieldType_NormalizeDefaultsToText(t *testing.T) {
	t.Parallel()

	if got := FieldType("Email").Normalize(); got != FieldTypeEmail {
		t.Fatalf("want email, got %s", got)
	}
	if got := FieldType("color").Normalize(); got != FieldTypeText {
		t.Fatalf("want text for unknown type, got %s", got)
	}
	if FieldTypeNumber.StringLike() || FieldTypeDate.StringLike() {
		t.Fatalf("number and date must not be string-like")
	}
	if !FieldType("color").StringLike() {
		t.Fatalf("unknown types behave like text")
	}
}

func TestFormSchema_ValidateReportsEveryProblem(t *testing.T) {
	t.Parallel()

	form := FormSchema{
		Title: "T",
		Fields: []FieldSpec{
			{Name: "a", Type: FieldTypeText},
			{Name: "a", Type: FieldTypeText},
			{Name: "", Type: FieldTypeText},
			{Name: "choice", Type: FieldTypeSelect},
			{Name: "confirm", Type: FieldTypePassword, ConfirmPassword: "missing"},
		},
	}

	err := form.Validate()
	if !errors.Is(err, ErrInvalidSchema) {
		t.Fatalf("want ErrInvalidSchema, got %v", err)
	}
	var invalid *InvalidSchemaError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected *InvalidSchemaError, got %T", err)
	}
	if len(invalid.Problems) != 4 {
		t.Fatalf("expected 4 problems, got %d: %v", len(invalid.Problems), invalid.Problems)
	}
	for _, want := range []string{"duplicate name", "name is required", "select requires options", "unknown field"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q missing %q", err.Error(), want)
		}
	}
}

func TestDefaultSchemaIsValid(t *testing.T) {
	t.Parallel()

	if err := Default().Validate(); err != nil {
		t.Fatalf("default schema invalid: %v", err)
	}
}

func TestRecordCloneIsDeep(t *testing.T) {
	t.Parallel()

	rec := Record{ID: "x", Title: "T", Fields: []FieldSpec{{Name: "c", Type: FieldTypeSelect, Options: []string{"a"}}}}
	clone := rec.Clone()
	clone.Fields[0].Options[0] = "changed"
	if rec.Fields[0].Options[0] != "a" {
		t.Fatalf("clone shares option storage")
	}
}

func TestSanitizeStripsMarkup(t *testing.T) {
	t.Parallel()

	form := Sanitize(FormSchema{
		Title:  `<script>alert(1)</script>Signup`,
		Fields: []FieldSpec{{Name: "x<y", Label: `<b>Name</b> & more`, Options: []string{`<i>A</i>`}}},
	})
	if form.Title != "Signup" {
		t.Fatalf("unexpected title %q", form.Title)
	}
	if form.Fields[0].Label != "Name & more" {
		t.Fatalf("unexpected label %q", form.Fields[0].Label)
	}
	if form.Fields[0].Options[0] != "A" {
		t.Fatalf("unexpected option %q", form.Fields[0].Options[0])
	}
	if form.Fields[0].Name != "x<y" {
		t.Fatalf("names must not be rewritten, got %q", form.Fields[0].Name)
	}
}

func TestSanitizeLabelsKeepsOptions(t *testing.T) {
	t.Parallel()

	raw := FormSchema{
		Title:  "<b>Plans</b>",
		Fields: []FieldSpec{{Name: "tier", Label: "<i>Tier</i>", Type: FieldTypeSelect, Options: []string{"<b>Gold</b>", "<script>x</script>"}}},
	}

	labels := SanitizeLabels(raw)
	if labels.Title != "Plans" || labels.Fields[0].Label != "Tier" {
		t.Fatalf("labels not stripped: %+v", labels)
	}
	if diff := cmp.Diff([]string{"<b>Gold</b>", "<script>x</script>"}, labels.Fields[0].Options); diff != "" {
		t.Fatalf("options mismatch (-want +got):\n%s", diff)
	}

	full := Sanitize(raw)
	if diff := cmp.Diff([]string{"Gold"}, full.Fields[0].Options); diff != "" {
		t.Fatalf("options mismatch (-want +got):\n%s", diff)
	}
	if raw.Fields[0].Options[0] != "<b>Gold</b>" {
		t.Fatalf("Sanitize modified its input")
	}
}
