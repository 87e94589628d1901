package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Message string            `json:"message"`
	Reason  string            `json:"reason,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

const (
	msgNoActiveSchema   = "No active form schema found"
	msgSchemaNotFound   = "Schema not found"
	msgSubmissionAbsent = "Submission not found"
	msgTitleAndData     = "Form title and data are required"
	msgValidationFailed = "Validation failed"
	msgInvalidJSON      = "Invalid JSON body"
	msgBodyTooLarge     = "Request body too large"
	msgTooManyRequests  = "Too many requests"
	msgInternal         = "Internal server error"
)

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "server: encode response", "err", err)
		http.Error(w, msgInternal, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, body errorBody) {
	s.writeJSON(w, r, status, body)
}

// fail logs err and answers with a generic 500.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.ErrorContext(r.Context(), "server: request failed", "path", r.URL.Path, "err", err)
	s.writeError(w, r, http.StatusInternalServerError, errorBody{Message: msgInternal})
}

// decodeJSON reads the request body into v. It reports whether the body was
// usable; on failure the error response has been written.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) ([]byte, bool) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, http.StatusRequestEntityTooLarge, errorBody{Message: msgBodyTooLarge})
			return nil, false
		}
		s.fail(w, r, err)
		return nil, false
	}
	if v == nil {
		return raw, true
	}
	if err := json.Unmarshal(raw, v); err != nil {
		s.writeError(w, r, http.StatusBadRequest, errorBody{Message: msgInvalidJSON})
		return nil, false
	}
	return raw, true
}
