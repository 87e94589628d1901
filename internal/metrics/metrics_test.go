package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersAndHandler(t *testing.T) {
	t.Parallel()

	m := New()
	m.Submissions.WithLabelValues(OutcomeCreated).Inc()
	m.Submissions.WithLabelValues(OutcomeCreated).Inc()
	m.Submissions.WithLabelValues(OutcomeInvalid).Inc()
	m.RejectedUploads.WithLabelValues("size").Inc()

	if got := testutil.ToFloat64(m.Submissions.WithLabelValues(OutcomeCreated)); got != 2 {
		t.Fatalf("created = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.SchemaPublishes); got != 0 {
		t.Fatalf("publishes = %v, want 0", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`dynform_submissions_total{outcome="created"} 2`,
		`dynform_submissions_total{outcome="invalid"} 1`,
		`dynform_schema_rejections_total{reason="size"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("exposition missing %q:\n%s", want, body)
		}
	}
}

func TestNew_IndependentRegistries(t *testing.T) {
	t.Parallel()

	a, b := New(), New()
	a.SchemaPublishes.Inc()
	if got := testutil.ToFloat64(b.SchemaPublishes); got != 0 {
		t.Fatalf("registries must not share counters, got %v", got)
	}
}
