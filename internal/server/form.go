package server

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-dynform/pkg/gateway"
	"github.com/goliatone/go-dynform/pkg/render"
	"github.com/goliatone/go-dynform/pkg/session"
)

const (
	actionField = "_action"
	actionReset = "reset"
)

// formSession is one browser's form, bound to the schema it was loaded with.
type formSession struct {
	session  *session.Session
	schemaID string
	lastUsed time.Time
}

// formSessions keeps server-side sessions keyed by the ID carried in the
// hidden session field. Idle entries expire after ttl.
type formSessions struct {
	mu      sync.Mutex
	entries map[string]*formSession
	ttl     time.Duration
	now     func() time.Time
}

func newFormSessions(ttl time.Duration, now func() time.Time) *formSessions {
	return &formSessions{entries: make(map[string]*formSession), ttl: ttl, now: now}
}

// get returns the session for id when it exists and still follows schemaID.
func (f *formSessions) get(id, schemaID string) (*formSession, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.entries[id]
	if !ok || entry.schemaID != schemaID {
		return nil, false
	}
	entry.lastUsed = f.now()
	return entry, true
}

func (f *formSessions) put(id string, entry *formSession) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now()
	for key, e := range f.entries {
		if now.Sub(e.lastUsed) > f.ttl {
			delete(f.entries, key)
		}
	}
	entry.lastUsed = now
	f.entries[id] = entry
}

func (f *formSessions) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

// handleFormPage renders a fresh form for the active schema.
func (s *Server) handleFormPage(w http.ResponseWriter, r *http.Request) {
	rec, err := s.schemas.GetActiveSchema(r.Context())
	if errors.Is(err, gateway.ErrNotFound) {
		s.renderForm(w, r, http.StatusNotFound, session.State{}, "")
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	id, entry := s.newFormSession(rec.ID)
	entry.session.Load(rec.Schema())
	s.renderForm(w, r, http.StatusOK, entry.session.Snapshot(), id)
}

// handleFormPost applies an urlencoded submission to the browser's session
// and re-renders it. Values are preserved when validation or storage fails.
func (s *Server) handleFormPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, http.StatusRequestEntityTooLarge, errorBody{Message: msgBodyTooLarge})
			return
		}
		s.writeError(w, r, http.StatusBadRequest, errorBody{Message: err.Error()})
		return
	}
	rec, err := s.schemas.GetActiveSchema(r.Context())
	if errors.Is(err, gateway.ErrNotFound) {
		s.renderForm(w, r, http.StatusNotFound, session.State{}, "")
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	id := r.PostForm.Get(render.SessionFieldName)
	entry, ok := s.forms.get(id, rec.ID)
	if !ok {
		id, entry = s.newFormSession(rec.ID)
		entry.session.Load(rec.Schema())
	}
	sess := entry.session
	sess.DismissMessages()

	if r.PostForm.Get(actionField) == actionReset {
		sess.Reset()
		s.renderForm(w, r, http.StatusOK, sess.Snapshot(), id)
		return
	}

	for _, name := range rec.Schema().Names() {
		if err := sess.Change(name, r.PostForm.Get(name)); err != nil {
			s.renderForm(w, r, http.StatusConflict, sess.Snapshot(), id)
			return
		}
	}

	status := http.StatusOK
	var (
		invalid  *session.FormValidationError
		storeErr *session.SubmissionError
	)
	switch err := sess.Submit(r.Context()); {
	case err == nil:
	case errors.As(err, &invalid):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &storeErr):
		status = http.StatusBadGateway
	case errors.Is(err, session.ErrSubmitInFlight), errors.Is(err, session.ErrCanceled):
		status = http.StatusConflict
	default:
		s.fail(w, r, err)
		return
	}
	s.renderForm(w, r, status, sess.Snapshot(), id)
}

func (s *Server) newFormSession(schemaID string) (string, *formSession) {
	id := uuid.NewString()
	entry := &formSession{
		session:  session.New(submitter{s: s}, session.WithLogger(s.logger)),
		schemaID: schemaID,
	}
	s.forms.put(id, entry)
	return id, entry
}

func (s *Server) renderForm(w http.ResponseWriter, r *http.Request, status int, state session.State, sessionID string) {
	opts := render.RenderOptions{Action: "/form", Theme: s.theme}
	if sessionID != "" {
		opts.Hidden = []render.HiddenField{render.SessionField(sessionID)}
	}
	if subs, err := s.submissions.ListSubmissions(r.Context()); err != nil {
		s.logger.WarnContext(r.Context(), "server: list submissions for form page", "err", err)
	} else {
		opts.Submissions = render.SubmissionRows(subs)
	}

	body, err := s.renderer.Render(r.Context(), state, opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", s.renderer.ContentType())
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
