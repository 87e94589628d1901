// Package httpclient implements the schema and submission gateways against
// the dynform HTTP API.
package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/goliatone/go-dynform/pkg/gateway"
	"github.com/goliatone/go-dynform/pkg/schema"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = 30 * time.Second

// APIError is a non-2xx response. A 404 matches gateway.ErrNotFound.
type APIError struct {
	Status  int
	Message string            `json:"message"`
	Reason  string            `json:"reason,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("httpclient: status %d", e.Status)
	}
	return fmt.Sprintf("httpclient: status %d: %s", e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == gateway.ErrNotFound && e.Status == http.StatusNotFound
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// Client talks to a dynform server. Fetches of the active schema and of the
// submission list are superseding: a newer call cancels the one in flight.
type Client struct {
	base *url.URL
	http *http.Client

	active      gateway.Latest[schema.Record]
	submissions gateway.Latest[[]gateway.Submission]
}

var (
	_ gateway.SchemaGateway     = (*Client)(nil)
	_ gateway.SubmissionGateway = (*Client)(nil)
)

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("httpclient: parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("httpclient: base url %q must be absolute", baseURL)
	}
	c := &Client{
		base: base,
		http: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

func (c *Client) GetActiveSchema(ctx context.Context) (schema.Record, error) {
	rec, err := c.active.Fetch(ctx, func(ctx context.Context) (schema.Record, error) {
		var rec schema.Record
		err := c.doJSON(ctx, http.MethodGet, "/api/schemas/active", nil, &rec)
		return rec, err
	})
	if err != nil && !errors.Is(err, gateway.ErrSuperseded) {
		return schema.Record{}, &gateway.SchemaFetchError{Err: err}
	}
	return rec, err
}

func (c *Client) PublishSchema(ctx context.Context, form schema.FormSchema) (gateway.Published, error) {
	var out gateway.Published
	if err := c.doJSON(ctx, http.MethodPost, "/api/schemas", form, &out); err != nil {
		return gateway.Published{}, publishErr(err)
	}
	return out, nil
}

func (c *Client) PublishSchemaFile(ctx context.Context, filename, contentType string, raw []byte) (gateway.Published, error) {
	if len(raw) > gateway.MaxSchemaFileBytes {
		return gateway.Published{}, &gateway.SchemaPublishError{Reason: gateway.ReasonTooLarge, Message: gateway.MsgTooLarge}
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="schemaFile"; filename=%q`, filename))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return gateway.Published{}, fmt.Errorf("httpclient: build upload: %w", err)
	}
	if _, err := part.Write(raw); err != nil {
		return gateway.Published{}, fmt.Errorf("httpclient: build upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return gateway.Published{}, fmt.Errorf("httpclient: build upload: %w", err)
	}

	var out gateway.Published
	if err := c.do(ctx, http.MethodPost, "/api/upload/schema", mw.FormDataContentType(), &body, &out); err != nil {
		return gateway.Published{}, publishErr(err)
	}
	return out, nil
}

func (c *Client) ListSchemas(ctx context.Context) ([]schema.Record, error) {
	var out []schema.Record
	if err := c.doJSON(ctx, http.MethodGet, "/api/schemas", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ActivateSchema(ctx context.Context, id string) (schema.Record, error) {
	var out schema.Record
	if err := c.doJSON(ctx, http.MethodPut, "/api/schemas/"+url.PathEscape(id)+"/activate", nil, &out); err != nil {
		return schema.Record{}, err
	}
	return out, nil
}

type createRequest struct {
	FormTitle string            `json:"formTitle"`
	Data      map[string]string `json:"data"`
}

func (c *Client) CreateSubmission(ctx context.Context, formTitle string, data map[string]string) (gateway.Created, error) {
	var out gateway.Submission
	if err := c.doJSON(ctx, http.MethodPost, "/api/submissions", createRequest{FormTitle: formTitle, Data: data}, &out); err != nil {
		return gateway.Created{}, err
	}
	return gateway.Created{ID: out.ID, CreatedAt: out.CreatedAt}, nil
}

func (c *Client) ListSubmissions(ctx context.Context) ([]gateway.Submission, error) {
	return c.submissions.Fetch(ctx, func(ctx context.Context) ([]gateway.Submission, error) {
		var out []gateway.Submission
		err := c.doJSON(ctx, http.MethodGet, "/api/submissions", nil, &out)
		return out, err
	})
}

func (c *Client) GetSubmission(ctx context.Context, id string) (gateway.Submission, error) {
	var out gateway.Submission
	if err := c.doJSON(ctx, http.MethodGet, "/api/submissions/"+url.PathEscape(id), nil, &out); err != nil {
		return gateway.Submission{}, err
	}
	return out, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("httpclient: encode request: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, contentType, body, out)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return fmt.Errorf("httpclient: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("httpclient: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("httpclient: read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		apiErr := &APIError{}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, apiErr); err != nil {
				apiErr.Message = strings.TrimSpace(string(payload))
			}
		}
		apiErr.Status = resp.StatusCode
		return apiErr
	}
	if out == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("httpclient: decode response: %w", err)
	}
	return nil
}

// publishErr maps 400 responses to gateway.SchemaPublishError using the
// reason reported by the server.
func publishErr(err error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
		return err
	}
	reason := gateway.PublishReason(apiErr.Reason)
	if reason == "" {
		reason = gateway.ReasonShape
	}
	return &gateway.SchemaPublishError{Reason: reason, Message: apiErr.Message, Err: apiErr}
}
