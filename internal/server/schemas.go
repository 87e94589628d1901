package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/goliatone/go-dynform/pkg/gateway"
	"github.com/goliatone/go-dynform/pkg/schema"
)

func (s *Server) handleActiveSchema(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.activeSchema(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, r, http.StatusOK, rec)
}

func (s *Server) handleActiveOpenAPI(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.activeSchema(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, r, http.StatusOK, schema.ExportOpenAPI(rec.Schema(), s.version))
}

func (s *Server) handleMetaSchema(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, schema.MetaSchema())
}

func (s *Server) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	recs, err := s.schemas.ListSchemas(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if recs == nil {
		recs = []schema.Record{}
	}
	s.writeJSON(w, r, http.StatusOK, recs)
}

// handlePublishSchema accepts a schema document as the request body.
func (s *Server) handlePublishSchema(w http.ResponseWriter, r *http.Request) {
	raw, ok := s.decodeJSON(w, r, nil)
	if !ok {
		return
	}
	form, err := schema.Parse(raw)
	if err != nil {
		s.rejectSchema(w, r, gateway.PublishError(err))
		return
	}
	published, err := s.schemas.PublishSchema(r.Context(), form)
	if err != nil {
		s.rejectSchema(w, r, err)
		return
	}
	s.schemaPublished(r, published)
	s.writeJSON(w, r, http.StatusCreated, published)
}

// handleUploadSchema accepts a multipart upload in the schemaFile part.
func (s *Server) handleUploadSchema(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+uploadSlack)
	tooLarge := &gateway.SchemaPublishError{Reason: gateway.ReasonTooLarge, Message: gateway.MsgTooLarge}

	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.rejectSchema(w, r, tooLarge)
			return
		}
		s.writeError(w, r, http.StatusBadRequest, errorBody{Message: gateway.MsgMissingFile, Reason: string(gateway.ReasonMissingFile)})
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("schemaFile")
	if errors.Is(err, http.ErrMissingFile) {
		_, err = s.schemas.PublishSchemaFile(r.Context(), "", "", nil)
		s.rejectSchema(w, r, err)
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer func() { _ = file.Close() }()

	raw, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if int64(len(raw)) > s.cfg.MaxUploadBytes {
		s.rejectSchema(w, r, tooLarge)
		return
	}

	published, err := s.schemas.PublishSchemaFile(r.Context(), header.Filename, header.Header.Get("Content-Type"), raw)
	if err != nil {
		s.rejectSchema(w, r, err)
		return
	}
	s.schemaPublished(r, published)
	s.writeJSON(w, r, http.StatusCreated, published)
}

func (s *Server) handleActivateSchema(w http.ResponseWriter, r *http.Request) {
	rec, err := s.schemas.ActivateSchema(r.Context(), r.PathValue("id"))
	if errors.Is(err, gateway.ErrNotFound) {
		s.writeError(w, r, http.StatusNotFound, errorBody{Message: msgSchemaNotFound})
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.schemaPublished(r, gateway.Published{ID: rec.ID, Title: rec.Title})
	s.writeJSON(w, r, http.StatusOK, rec)
}

// activeSchema writes the 404 or 500 response itself when it reports false.
func (s *Server) activeSchema(w http.ResponseWriter, r *http.Request) (schema.Record, bool) {
	rec, err := s.schemas.GetActiveSchema(r.Context())
	if errors.Is(err, gateway.ErrNotFound) {
		s.writeError(w, r, http.StatusNotFound, errorBody{Message: msgNoActiveSchema})
		return schema.Record{}, false
	}
	if err != nil {
		s.fail(w, r, err)
		return schema.Record{}, false
	}
	return rec, true
}

// rejectSchema answers 400 for publish errors and 500 for anything else.
func (s *Server) rejectSchema(w http.ResponseWriter, r *http.Request, err error) {
	var pubErr *gateway.SchemaPublishError
	if !errors.As(err, &pubErr) {
		s.fail(w, r, err)
		return
	}
	if s.metrics != nil {
		s.metrics.RejectedUploads.WithLabelValues(string(pubErr.Reason)).Inc()
	}
	s.logger.WarnContext(r.Context(), "server: schema rejected", "reason", pubErr.Reason, "err", err)
	s.writeError(w, r, http.StatusBadRequest, errorBody{Message: pubErr.Message, Reason: string(pubErr.Reason)})
}

func (s *Server) schemaPublished(r *http.Request, published gateway.Published) {
	if s.metrics != nil {
		s.metrics.SchemaPublishes.Inc()
	}
	if err := s.events.SchemaPublished(r.Context(), published); err != nil {
		s.logger.WarnContext(r.Context(), "server: schema event", "id", published.ID, "err", err)
	}
}
