package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/goliatone/go-dynform/internal/metrics"
	"github.com/goliatone/go-dynform/pkg/gateway"
	"github.com/goliatone/go-dynform/pkg/rules"
)

type createSubmissionRequest struct {
	FormTitle string         `json:"formTitle"`
	Data      map[string]any `json:"data"`
}

func (s *Server) handleCreateSubmission(w http.ResponseWriter, r *http.Request) {
	var req createSubmissionRequest
	if _, ok := s.decodeJSON(w, r, &req); !ok {
		return
	}
	if strings.TrimSpace(req.FormTitle) == "" || req.Data == nil {
		s.writeError(w, r, http.StatusBadRequest, errorBody{Message: msgTitleAndData})
		return
	}
	data, err := submissionValues(req.Data)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	// Submissions for the active form are held to its rules.
	rec, err := s.schemas.GetActiveSchema(r.Context())
	switch {
	case err == nil && rec.Title == req.FormTitle:
		result, err := rules.Compile(rec.Fields, rules.WithLogger(s.logger)).ValidateAll(r.Context(), data)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if !result.Valid {
			s.countSubmission(metrics.OutcomeInvalid)
			s.writeError(w, r, http.StatusUnprocessableEntity, errorBody{Message: msgValidationFailed, Errors: result.Errors})
			return
		}
	case err != nil && !errors.Is(err, gateway.ErrNotFound):
		s.fail(w, r, err)
		return
	}

	sub, err := s.store(r.Context(), req.FormTitle, data)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusCreated, sub)
}

func (s *Server) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	subs, err := s.submissions.ListSubmissions(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if subs == nil {
		subs = []gateway.Submission{}
	}
	s.writeJSON(w, r, http.StatusOK, subs)
}

func (s *Server) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := s.submissions.GetSubmission(r.Context(), r.PathValue("id"))
	if errors.Is(err, gateway.ErrNotFound) {
		s.writeError(w, r, http.StatusNotFound, errorBody{Message: msgSubmissionAbsent})
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, sub)
}

// store persists a submission and reports it to metrics and events.
func (s *Server) store(ctx context.Context, formTitle string, data map[string]string) (gateway.Submission, error) {
	created, err := s.submissions.CreateSubmission(ctx, formTitle, data)
	if err != nil {
		s.countSubmission(metrics.OutcomeFailed)
		return gateway.Submission{}, err
	}
	s.countSubmission(metrics.OutcomeCreated)
	if err := s.events.SubmissionCreated(ctx, formTitle, created); err != nil {
		s.logger.WarnContext(ctx, "server: submission event", "id", created.ID, "err", err)
	}
	return gateway.Submission{ID: created.ID, FormTitle: formTitle, Data: data, CreatedAt: created.CreatedAt}, nil
}

func (s *Server) countSubmission(outcome string) {
	if s.metrics != nil {
		s.metrics.Submissions.WithLabelValues(outcome).Inc()
	}
}

// submitter routes form sessions through store.
type submitter struct {
	s *Server
}

func (sub submitter) CreateSubmission(ctx context.Context, formTitle string, data map[string]string) (gateway.Created, error) {
	stored, err := sub.s.store(ctx, formTitle, data)
	if err != nil {
		return gateway.Created{}, err
	}
	return gateway.Created{ID: stored.ID, CreatedAt: stored.CreatedAt}, nil
}

// submissionValues flattens decoded JSON into the string values submissions
// store. Numbers and booleans keep their JSON spelling, null becomes empty and
// objects or arrays are kept as compact JSON text.
func submissionValues(raw map[string]any) (map[string]string, error) {
	out := make(map[string]string, len(raw))
	for key, v := range raw {
		switch v := v.(type) {
		case nil:
			out[key] = ""
		case string:
			out[key] = v
		case bool:
			out[key] = strconv.FormatBool(v)
		case float64:
			out[key] = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			b, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("server: encode submission value %q: %w", key, err)
			}
			out[key] = string(b)
		}
	}
	return out, nil
}
