package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/goliatone/go-dynform/internal/config"
	"github.com/goliatone/go-dynform/internal/metrics"
	"github.com/goliatone/go-dynform/internal/store"
	"github.com/goliatone/go-dynform/pkg/gateway"
	"github.com/goliatone/go-dynform/pkg/gateway/httpclient"
	"github.com/goliatone/go-dynform/pkg/schema"
)

type harness struct {
	srv     *httptest.Server
	store   *store.Store
	metrics *metrics.Metrics
}

func newHarness(t *testing.T, mutate func(*config.HTTPConfig)) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := store.Open(t.TempDir(), store.WithLogger(logger))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	cfg := config.Default().HTTP
	cfg.RateLimit.Requests = 0
	if mutate != nil {
		mutate(&cfg)
	}
	m := metrics.New()
	s, err := New(st.Schemas, st.Submissions, WithLogger(logger), WithHTTPConfig(cfg), WithMetrics(m))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})
	return &harness{srv: ts, store: st, metrics: m}
}

func emailForm() schema.FormSchema {
	return schema.FormSchema{
		Title:  "Newsletter",
		Fields: []schema.FieldSpec{{Name: "email", Label: "Email", Type: schema.FieldTypeEmail, Required: true}},
	}
}

func (h *harness) publish(t *testing.T, form schema.FormSchema) gateway.Published {
	t.Helper()
	pub, err := h.store.Schemas.PublishSchema(context.Background(), form)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	return pub
}

func (h *harness) do(t *testing.T, method, path, contentType string, body io.Reader) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, h.srv.URL+path, body)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := h.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func decodeError(t *testing.T, data []byte) errorBody {
	t.Helper()
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("decode error body %q: %v", data, err)
	}
	return body
}

func TestActiveSchema_NotFound(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	resp, data := h.do(t, http.MethodGet, "/api/schemas/active", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if got := decodeError(t, data).Message; got != msgNoActiveSchema {
		t.Fatalf("message = %q", got)
	}
	if resp.Header.Get(RequestIDHeader) == "" {
		t.Fatalf("missing request id header")
	}

	resp, data = h.do(t, http.MethodGet, "/form", "", nil)
	if resp.StatusCode != http.StatusNotFound || !strings.Contains(string(data), "No active form schema found") {
		t.Fatalf("form page = %d %s", resp.StatusCode, data)
	}
}

func TestSchemas_ThroughHTTPClient(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	client, err := httpclient.New(h.srv.URL)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	ctx := context.Background()

	first, err := client.PublishSchema(ctx, emailForm())
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	second := emailForm()
	second.Title = "Second"
	if _, err := client.PublishSchema(ctx, second); err != nil {
		t.Fatalf("publish second: %v", err)
	}

	rec, err := client.GetActiveSchema(ctx)
	if err != nil || rec.Title != "Second" {
		t.Fatalf("active = %+v (%v)", rec, err)
	}

	rec, err = client.ActivateSchema(ctx, first.ID)
	if err != nil || !rec.Active || rec.Title != "Newsletter" {
		t.Fatalf("activate = %+v (%v)", rec, err)
	}
	recs, err := client.ListSchemas(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var active []string
	for _, r := range recs {
		if r.Active {
			active = append(active, r.Title)
		}
	}
	if diff := cmp.Diff([]string{"Newsletter"}, active); diff != "" {
		t.Fatalf("active schemas mismatch (-want +got):\n%s", diff)
	}

	if _, err := client.ActivateSchema(ctx, "missing"); !errors.Is(err, gateway.ErrNotFound) {
		t.Fatalf("activate missing = %v, want ErrNotFound", err)
	}
	if got := testutil.ToFloat64(h.metrics.SchemaPublishes); got != 3 {
		t.Fatalf("publish counter = %v, want 3", got)
	}
}

func TestPublishSchema_RejectsBadShape(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	resp, data := h.do(t, http.MethodPost, "/api/schemas", "application/json", strings.NewReader(`{"title":"x"}`))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	body := decodeError(t, data)
	if body.Reason != string(gateway.ReasonShape) || !strings.Contains(body.Message, "Must include a title and fields array") {
		t.Fatalf("unexpected body %+v", body)
	}
}

func upload(t *testing.T, h *harness, contentType string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if payload != nil {
		part, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Disposition": {`form-data; name="schemaFile"; filename="form.json"`},
			"Content-Type":        {contentType},
		})
		if err != nil {
			t.Fatalf("part: %v", err)
		}
		_, _ = part.Write(payload)
	} else {
		_ = mw.WriteField("other", "x")
	}
	_ = mw.Close()
	return h.do(t, http.MethodPost, uploadPath, mw.FormDataContentType(), &buf)
}

func TestUploadSchema(t *testing.T) {
	t.Parallel()
	h := newHarness(t, func(cfg *config.HTTPConfig) { cfg.MaxUploadBytes = 128 })

	valid := []byte(`{"title":"Up","fields":[{"name":"a","type":"text"}]}`)
	tests := []struct {
		name        string
		contentType string
		payload     []byte
		status      int
		reason      gateway.PublishReason
	}{
		{name: "missing file", status: http.StatusBadRequest, reason: gateway.ReasonMissingFile},
		{name: "not json", contentType: "text/plain", payload: valid, status: http.StatusBadRequest, reason: gateway.ReasonContentType},
		{name: "too large", contentType: "application/json", payload: bytes.Repeat([]byte(" "), 129), status: http.StatusBadRequest, reason: gateway.ReasonTooLarge},
		{name: "malformed", contentType: "application/json", payload: []byte(`{"title":`), status: http.StatusBadRequest, reason: gateway.ReasonMalformed},
		{name: "bad shape", contentType: "application/json", payload: []byte(`{"title":"x","fields":{}}`), status: http.StatusBadRequest, reason: gateway.ReasonShape},
		{name: "ok", contentType: "application/json; charset=utf-8", payload: valid, status: http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := upload(t, h, tt.contentType, tt.payload)
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d (%s)", resp.StatusCode, tt.status, data)
			}
			if tt.reason != "" {
				if got := decodeError(t, data).Reason; got != string(tt.reason) {
					t.Fatalf("reason = %q, want %q", got, tt.reason)
				}
			}
		})
	}

	rec, err := h.store.Schemas.GetActiveSchema(context.Background())
	if err != nil || rec.Title != "Up" {
		t.Fatalf("active after upload = %+v (%v)", rec, err)
	}
	if got := testutil.ToFloat64(h.metrics.RejectedUploads.WithLabelValues(string(gateway.ReasonTooLarge))); got != 1 {
		t.Fatalf("too_large counter = %v, want 1", got)
	}
}

func TestCreateSubmission(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.publish(t, emailForm())

	resp, data := h.do(t, http.MethodPost, "/api/submissions", "application/json", strings.NewReader(`{"formTitle":"Newsletter"}`))
	if resp.StatusCode != http.StatusBadRequest || decodeError(t, data).Message != msgTitleAndData {
		t.Fatalf("missing data = %d %s", resp.StatusCode, data)
	}

	resp, data = h.do(t, http.MethodPost, "/api/submissions", "application/json", strings.NewReader(`{"formTitle":"Newsletter","data":{"email":"x"}}`))
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422 (%s)", resp.StatusCode, data)
	}
	if diff := cmp.Diff(map[string]string{"email": "Invalid email format"}, decodeError(t, data).Errors); diff != "" {
		t.Fatalf("field errors mismatch (-want +got):\n%s", diff)
	}

	// Titles other than the active form are stored as given.
	resp, _ = h.do(t, http.MethodPost, "/api/submissions", "application/json", strings.NewReader(`{"formTitle":"Legacy","data":{"any":"thing"}}`))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("legacy status = %d", resp.StatusCode)
	}

	resp, data = h.do(t, http.MethodPost, "/api/submissions", "application/json", strings.NewReader(`{"formTitle":"Newsletter","data":{"email":"a@b.com"}}`))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (%s)", resp.StatusCode, data)
	}
	var created gateway.Submission
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == "" || created.FormTitle != "Newsletter" || created.Data["email"] != "a@b.com" {
		t.Fatalf("unexpected submission %+v", created)
	}

	client, err := httpclient.New(h.srv.URL)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	subs, err := client.ListSubmissions(context.Background())
	if err != nil || len(subs) != 2 || subs[0].ID != created.ID {
		t.Fatalf("list = %+v (%v)", subs, err)
	}
	got, err := client.GetSubmission(context.Background(), created.ID)
	if err != nil || got.Data["email"] != "a@b.com" {
		t.Fatalf("get = %+v (%v)", got, err)
	}
	if _, err := client.GetSubmission(context.Background(), "nope"); !errors.Is(err, gateway.ErrNotFound) {
		t.Fatalf("get missing = %v", err)
	}

	if got := testutil.ToFloat64(h.metrics.Submissions.WithLabelValues(metrics.OutcomeInvalid)); got != 1 {
		t.Fatalf("invalid counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(h.metrics.Submissions.WithLabelValues(metrics.OutcomeCreated)); got != 2 {
		t.Fatalf("created counter = %v, want 2", got)
	}
}

func TestCreateSubmission_AcceptsJSONScalars(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	minAge := 18.0
	h.publish(t, schema.FormSchema{
		Title:  "Survey",
		Fields: []schema.FieldSpec{{Name: "age", Label: "Age", Type: schema.FieldTypeNumber, Min: &minAge}},
	})

	resp, data := h.do(t, http.MethodPost, "/api/submissions", "application/json", strings.NewReader(`{"formTitle":"Survey","data":{"age":17}}`))
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422 (%s)", resp.StatusCode, data)
	}
	if diff := cmp.Diff(map[string]string{"age": "Minimum value is 18"}, decodeError(t, data).Errors); diff != "" {
		t.Fatalf("field errors mismatch (-want +got):\n%s", diff)
	}

	body := `{"formTitle":"Legacy","data":{"name":"Ada","age":42,"ratio":1.5,"ok":true,"note":null,"tags":["a","b"]}}`
	resp, data = h.do(t, http.MethodPost, "/api/submissions", "application/json", strings.NewReader(body))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (%s)", resp.StatusCode, data)
	}
	var created gateway.Submission
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := map[string]string{"name": "Ada", "age": "42", "ratio": "1.5", "ok": "true", "note": "", "tags": `["a","b"]`}
	if diff := cmp.Diff(want, created.Data); diff != "" {
		t.Fatalf("stored data mismatch (-want +got):\n%s", diff)
	}
}

var sessionInput = regexp.MustCompile(`name="_session" value="([^"]+)"`)

func TestFormPage_SubmitLifecycle(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.publish(t, emailForm())

	resp, page := h.do(t, http.MethodGet, "/form", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	m := sessionInput.FindSubmatch(page)
	if m == nil {
		t.Fatalf("no session field in %s", page)
	}
	id := string(m[1])

	post := func(values url.Values) (*http.Response, string) {
		values.Set("_session", id)
		resp, data := h.do(t, http.MethodPost, "/form", "application/x-www-form-urlencoded", strings.NewReader(values.Encode()))
		return resp, string(data)
	}

	resp, body := post(url.Values{"email": {"x"}, "_action": {"submit"}})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
	for _, want := range []string{`value="x"`, "Invalid email format", `aria-invalid="true"`} {
		if !strings.Contains(body, want) {
			t.Fatalf("invalid page missing %q:\n%s", want, body)
		}
	}

	resp, body = post(url.Values{"email": {"a@b.com"}, "_action": {"submit"}})
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "Form submitted successfully!") {
		t.Fatalf("submit = %d:\n%s", resp.StatusCode, body)
	}
	if strings.Contains(body, `value="a@b.com"`) {
		t.Fatalf("values must reset after a stored submission")
	}

	subs, err := h.store.Submissions.ListSubmissions(context.Background())
	if err != nil || len(subs) != 1 || subs[0].Data["email"] != "a@b.com" {
		t.Fatalf("stored = %+v (%v)", subs, err)
	}

	resp, body = post(url.Values{"email": {"typed"}, "_action": {"reset"}})
	if resp.StatusCode != http.StatusOK || strings.Contains(body, `value="typed"`) || strings.Contains(body, "Form submitted successfully!") {
		t.Fatalf("reset = %d:\n%s", resp.StatusCode, body)
	}
}

func TestFormPost_UnknownSessionStartsFresh(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.publish(t, emailForm())

	form := url.Values{"_session": {"stale"}, "email": {""}}
	resp, data := h.do(t, http.MethodPost, "/form", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if resp.StatusCode != http.StatusUnprocessableEntity || !strings.Contains(string(data), "Email is required") {
		t.Fatalf("status = %d:\n%s", resp.StatusCode, data)
	}
	if sessionInput.FindSubmatch(data) == nil {
		t.Fatalf("re-rendered page must carry a session")
	}
}

func TestRateLimit_MutatingRequests(t *testing.T) {
	t.Parallel()
	h := newHarness(t, func(cfg *config.HTTPConfig) {
		cfg.RateLimit = config.RateLimit{Requests: 1, Window: time.Hour, Burst: 1}
	})

	for i := 0; i < 3; i++ {
		if resp, _ := h.do(t, http.MethodGet, "/healthz", "", nil); resp.StatusCode != http.StatusOK {
			t.Fatalf("reads must not be limited, got %d", resp.StatusCode)
		}
	}

	resp, _ := h.do(t, http.MethodPost, "/api/submissions", "application/json", strings.NewReader(`{}`))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("first post = %d, want 400", resp.StatusCode)
	}
	resp, data := h.do(t, http.MethodPost, "/api/submissions", "application/json", strings.NewReader(`{}`))
	if resp.StatusCode != http.StatusTooManyRequests || decodeError(t, data).Message != msgTooManyRequests {
		t.Fatalf("second post = %d %s", resp.StatusCode, data)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After")
	}
	if got := testutil.ToFloat64(h.metrics.RequestsLimited); got != 1 {
		t.Fatalf("limited counter = %v, want 1", got)
	}
}

func TestBodyLimit(t *testing.T) {
	t.Parallel()
	h := newHarness(t, func(cfg *config.HTTPConfig) { cfg.MaxBodyBytes = 16 })

	resp, _ := h.do(t, http.MethodPost, "/api/schemas", "application/json", strings.NewReader(`{"title":"far too long for the limit","fields":[]}`))
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", resp.StatusCode)
	}
}

func TestDescriptiveEndpoints(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.publish(t, emailForm())

	resp, data := h.do(t, http.MethodGet, "/api/schemas/active/openapi", "", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(data), `"openapi":"3.`) || !strings.Contains(string(data), schema.SubmissionPath) {
		t.Fatalf("openapi = %d %s", resp.StatusCode, data)
	}

	resp, data = h.do(t, http.MethodGet, "/api/schemas/meta", "", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(data), "customValidationFunctionString") {
		t.Fatalf("meta = %d %s", resp.StatusCode, data)
	}

	resp, data = h.do(t, http.MethodGet, "/metrics", "", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(data), "dynform_http_request_duration_seconds") {
		t.Fatalf("metrics = %d", resp.StatusCode)
	}

	resp, data = h.do(t, http.MethodGet, "/assets/dynform.css", "", nil)
	if resp.StatusCode != http.StatusOK || len(data) == 0 {
		t.Fatalf("stylesheet = %d", resp.StatusCode)
	}
}

func TestRecovery(t *testing.T) {
	t.Parallel()

	s, err := New(panicking{}, panicking{}, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer s.Close()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/schemas", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

type panicking struct {
	gateway.SchemaGateway
	gateway.SubmissionGateway
}

func (panicking) ListSchemas(context.Context) ([]schema.Record, error) {
	panic("boom")
}
