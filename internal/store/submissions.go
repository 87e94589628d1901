package store

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/goliatone/go-dynform/pkg/gateway"
)

// ErrInvalidSubmission is returned when the title or data is missing.
var ErrInvalidSubmission = errors.New("store: form title and data are required")

// SubmissionStore appends submissions; records are never modified.
type SubmissionStore struct {
	table *Table[gateway.Submission]
	store *Store
}

var _ gateway.SubmissionGateway = (*SubmissionStore)(nil)

func (s *SubmissionStore) CreateSubmission(ctx context.Context, formTitle string, data map[string]string) (gateway.Created, error) {
	if strings.TrimSpace(formTitle) == "" || data == nil {
		return gateway.Created{}, ErrInvalidSubmission
	}
	sub := gateway.Submission{
		ID:        s.store.newID(),
		FormTitle: formTitle,
		Data:      maps.Clone(data),
		CreatedAt: s.store.now().UTC(),
	}
	if err := s.table.Append(sub); err != nil {
		return gateway.Created{}, fmt.Errorf("store: create submission: %w", err)
	}
	s.store.logger.DebugContext(ctx, "store: submission created", "id", sub.ID, "form", formTitle)
	return gateway.Created{ID: sub.ID, CreatedAt: sub.CreatedAt}, nil
}

// ListSubmissions returns every submission, newest first.
func (s *SubmissionStore) ListSubmissions(_ context.Context) ([]gateway.Submission, error) {
	out := slices.Collect(s.table.All())
	slices.Reverse(out)
	return out, nil
}

func (s *SubmissionStore) GetSubmission(_ context.Context, id string) (gateway.Submission, error) {
	for sub := range s.table.All() {
		if sub.ID == id {
			return sub, nil
		}
	}
	return gateway.Submission{}, gateway.ErrNotFound
}
