package store

import (
	"context"
	"fmt"
	"mime"
	"slices"

	"github.com/goliatone/go-dynform/pkg/gateway"
	"github.com/goliatone/go-dynform/pkg/schema"
)

// SchemaStore keeps every published schema. Exactly one of them is active
// once anything was published.
type SchemaStore struct {
	table *Table[schema.Record]
	store *Store
}

var _ gateway.SchemaGateway = (*SchemaStore)(nil)

func (s *SchemaStore) GetActiveSchema(_ context.Context) (schema.Record, error) {
	for rec := range s.table.All() {
		if rec.Active {
			return rec, nil
		}
	}
	return schema.Record{}, gateway.ErrNotFound
}

// PublishSchema sanitizes and validates form, stores it and activates it.
// Deactivating the previous schema and inserting the new one happen in one
// table write.
func (s *SchemaStore) PublishSchema(ctx context.Context, form schema.FormSchema) (gateway.Published, error) {
	form = schema.Sanitize(form)
	if err := form.Validate(); err != nil {
		return gateway.Published{}, gateway.PublishError(err)
	}
	rec := schema.Record{
		ID:        s.store.newID(),
		Title:     form.Title,
		Fields:    form.Fields,
		Active:    true,
		CreatedAt: s.store.now().UTC(),
	}
	err := s.table.Modify(func(rows []schema.Record) ([]schema.Record, error) {
		for i := range rows {
			rows[i].Active = false
		}
		return append(rows, rec), nil
	})
	if err != nil {
		return gateway.Published{}, fmt.Errorf("store: publish schema: %w", err)
	}
	s.store.logger.InfoContext(ctx, "store: schema published", "id", rec.ID, "title", rec.Title, "fields", len(rec.Fields))
	return gateway.Published{ID: rec.ID, Title: rec.Title}, nil
}

// PublishSchemaFile accepts an uploaded JSON document.
func (s *SchemaStore) PublishSchemaFile(ctx context.Context, filename, contentType string, raw []byte) (gateway.Published, error) {
	if raw == nil {
		return gateway.Published{}, &gateway.SchemaPublishError{Reason: gateway.ReasonMissingFile, Message: gateway.MsgMissingFile}
	}
	if mediaType, _, err := mime.ParseMediaType(contentType); err != nil || mediaType != "application/json" {
		return gateway.Published{}, &gateway.SchemaPublishError{Reason: gateway.ReasonContentType, Message: gateway.MsgOnlyJSON}
	}
	if len(raw) > gateway.MaxSchemaFileBytes {
		return gateway.Published{}, &gateway.SchemaPublishError{Reason: gateway.ReasonTooLarge, Message: gateway.MsgTooLarge}
	}
	form, err := schema.Parse(raw)
	if err != nil {
		s.store.logger.WarnContext(ctx, "store: rejected schema upload", "file", filename, "err", err)
		return gateway.Published{}, gateway.PublishError(err)
	}
	return s.PublishSchema(ctx, form)
}

// ListSchemas returns every schema, newest first.
func (s *SchemaStore) ListSchemas(_ context.Context) ([]schema.Record, error) {
	out := slices.Collect(s.table.All())
	slices.Reverse(out)
	return out, nil
}

// ActivateSchema switches the active flag to id in one table write.
func (s *SchemaStore) ActivateSchema(ctx context.Context, id string) (schema.Record, error) {
	var activated schema.Record
	err := s.table.Modify(func(rows []schema.Record) ([]schema.Record, error) {
		idx := slices.IndexFunc(rows, func(r schema.Record) bool { return r.ID == id })
		if idx < 0 {
			return nil, gateway.ErrNotFound
		}
		for i := range rows {
			rows[i].Active = i == idx
		}
		activated = rows[idx].Clone()
		return rows, nil
	})
	if err != nil {
		return schema.Record{}, err
	}
	s.store.logger.InfoContext(ctx, "store: schema activated", "id", id, "title", activated.Title)
	return activated, nil
}
