// Package store persists schemas and submissions as JSONL tables under a
// data directory. It implements the gateway contracts used by the server.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/maruel/ksid"

	"github.com/goliatone/go-dynform/pkg/gateway"
	"github.com/goliatone/go-dynform/pkg/schema"
)

const (
	schemasFile     = "schemas.jsonl"
	submissionsFile = "submissions.jsonl"
)

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for created_at stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithIDs overrides the ID generator.
func WithIDs(next func() string) Option {
	return func(s *Store) {
		if next != nil {
			s.newID = next
		}
	}
}

// Store bundles the schema and submission tables of one data directory.
type Store struct {
	Schemas     *SchemaStore
	Submissions *SubmissionStore

	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

// Open loads (or creates) the tables in dir.
func Open(dir string, opts ...Option) (*Store, error) {
	s := &Store{
		now:    time.Now,
		newID:  func() string { return ksid.NewID().String() },
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	schemas, err := NewTable[schema.Record](filepath.Join(dir, schemasFile))
	if err != nil {
		return nil, err
	}
	submissions, err := NewTable[gateway.Submission](filepath.Join(dir, submissionsFile))
	if err != nil {
		return nil, err
	}
	s.Schemas = &SchemaStore{table: schemas, store: s}
	s.Submissions = &SubmissionStore{table: submissions, store: s}
	return s, nil
}

// SeedDefault publishes the built-in registration schema when no schema has
// been stored yet.
func (s *Store) SeedDefault(ctx context.Context) error {
	if s.Schemas.table.Len() > 0 {
		return nil
	}
	pub, err := s.Schemas.PublishSchema(ctx, schema.Default())
	if err != nil {
		return fmt.Errorf("store: seed default schema: %w", err)
	}
	s.logger.InfoContext(ctx, "store: seeded default schema", "id", pub.ID, "title", pub.Title)
	return nil
}
