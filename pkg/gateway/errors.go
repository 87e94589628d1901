package gateway

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-dynform/pkg/schema"
)

// MaxSchemaFileBytes is the upload ceiling for schema files.
const MaxSchemaFileBytes = 1 << 20

// PublishReason classifies why a schema was rejected.
type PublishReason string

const (
	ReasonMalformed   PublishReason = "malformed"
	ReasonShape       PublishReason = "shape"
	ReasonInvalid     PublishReason = "invalid"
	ReasonContentType PublishReason = "content_type"
	ReasonTooLarge    PublishReason = "too_large"
	ReasonMissingFile PublishReason = "missing_file"
)

const (
	MsgMalformedJSON = "Invalid JSON format in uploaded file"
	MsgInvalidShape  = "Invalid schema format. Must include a title and fields array"
	MsgOnlyJSON      = "Only JSON files are allowed!"
	MsgTooLarge      = "File too large. Maximum size is 1MB"
	MsgMissingFile   = "No file uploaded"
)

// SchemaPublishError reports a rejected schema. Message is suitable for
// display next to the upload control.
type SchemaPublishError struct {
	Reason  PublishReason
	Message string
	Err     error
}

func (e *SchemaPublishError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway: publish schema: %s: %v", e.Message, e.Err)
	}
	return "gateway: publish schema: " + e.Message
}

func (e *SchemaPublishError) Unwrap() error {
	return e.Err
}

// SchemaFetchError reports a failure to load the active schema. It blocks
// rendering; ErrNotFound is wrapped when no schema is active.
type SchemaFetchError struct {
	Err error
}

func (e *SchemaFetchError) Error() string {
	return fmt.Sprintf("gateway: fetch schema: %v", e.Err)
}

func (e *SchemaFetchError) Unwrap() error {
	return e.Err
}

// PublishError converts a schema parse or validation failure into a
// SchemaPublishError. Other errors are returned unchanged.
func PublishError(err error) error {
	if err == nil {
		return nil
	}
	var already *SchemaPublishError
	if errors.As(err, &already) {
		return err
	}
	var invalid *schema.InvalidSchemaError
	switch {
	case errors.Is(err, schema.ErrMalformedJSON), errors.Is(err, schema.ErrMalformedYAML):
		return &SchemaPublishError{Reason: ReasonMalformed, Message: MsgMalformedJSON, Err: err}
	case errors.Is(err, schema.ErrInvalidShape), errors.Is(err, schema.ErrEmptyDocument):
		return &SchemaPublishError{Reason: ReasonShape, Message: MsgInvalidShape, Err: err}
	case errors.As(err, &invalid):
		return &SchemaPublishError{Reason: ReasonInvalid, Message: "Invalid schema: " + strings.Join(invalid.Problems, "; "), Err: err}
	default:
		return err
	}
}
