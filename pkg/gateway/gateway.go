// Package gateway defines the persistence contracts the form engine depends
// on: fetching and publishing schemas, and creating and listing submissions.
package gateway

import (
	"context"
	"errors"
	"maps"
	"time"

	"github.com/goliatone/go-dynform/pkg/schema"
)

// ErrNotFound is returned when a schema or submission does not exist.
var ErrNotFound = errors.New("gateway: not found")

// Published identifies a stored schema.
type Published struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Created identifies a stored submission.
type Created struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// Submission is a persisted form response.
type Submission struct {
	ID        string            `json:"id"`
	FormTitle string            `json:"formTitle"`
	Data      map[string]string `json:"data"`
	CreatedAt time.Time         `json:"created_at"`
}

// Clone returns a deep copy of the submission.
func (s Submission) Clone() Submission {
	s.Data = maps.Clone(s.Data)
	return s
}

// SchemaGateway reads and writes form schemas.
type SchemaGateway interface {
	// GetActiveSchema returns the active schema or ErrNotFound.
	GetActiveSchema(ctx context.Context) (schema.Record, error)
	// PublishSchema stores form and makes it the only active schema.
	PublishSchema(ctx context.Context, form schema.FormSchema) (Published, error)
	// PublishSchemaFile publishes an uploaded JSON document.
	PublishSchemaFile(ctx context.Context, filename, contentType string, raw []byte) (Published, error)
	// ListSchemas returns every stored schema, newest first.
	ListSchemas(ctx context.Context) ([]schema.Record, error)
	// ActivateSchema makes an existing schema the only active one.
	ActivateSchema(ctx context.Context, id string) (schema.Record, error)
}

// SubmissionGateway reads and writes submissions.
type SubmissionGateway interface {
	CreateSubmission(ctx context.Context, formTitle string, data map[string]string) (Created, error)
	// ListSubmissions returns every submission, newest first.
	ListSubmissions(ctx context.Context) ([]Submission, error)
	// GetSubmission returns one submission or ErrNotFound.
	GetSubmission(ctx context.Context, id string) (Submission, error)
}
