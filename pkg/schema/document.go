package schema

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

var (
	// ErrEmptyDocument is returned when a document has no payload.
	ErrEmptyDocument = errors.New("schema: document is empty")
	// ErrMalformedJSON is returned when the payload is not valid JSON.
	ErrMalformedJSON = errors.New("schema: malformed JSON")
	// ErrMalformedYAML is returned when the payload is not valid YAML.
	ErrMalformedYAML = errors.New("schema: malformed YAML")
	// ErrInvalidShape is returned when the payload lacks a title or a fields array.
	ErrInvalidShape = errors.New("schema: must include a title and fields array")
)

// Document wraps the raw schema payload and its origin.
type Document struct {
	source Source
	format Format
	raw    []byte
}

// NewDocument constructs a Document, inferring the format from the source.
func NewDocument(src Source, raw []byte) (Document, error) {
	if src == nil {
		return Document{}, errors.New("schema: source is required")
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return Document{}, ErrEmptyDocument
	}
	clone := append([]byte(nil), raw...)
	return Document{source: src, format: FormatFromLocation(src.Location()), raw: clone}, nil
}

// Source returns the origin metadata for the document.
func (d Document) Source() Source {
	return d.source
}

// Format reports the detected encoding.
func (d Document) Format() Format {
	return d.format
}

// Raw returns a defensive copy of the payload.
func (d Document) Raw() []byte {
	return append([]byte(nil), d.raw...)
}

// Decode parses the document according to its format.
func (d Document) Decode() (FormSchema, error) {
	if d.format == FormatYAML {
		return ParseYAML(d.raw)
	}
	return Parse(d.raw)
}

type shapeProbe struct {
	Title  *string         `json:"title"`
	Fields json.RawMessage `json:"fields"`
}

// Parse decodes a JSON schema document and enforces the boundary shape check:
// a non-empty string title and a fields array.
func Parse(raw []byte) (FormSchema, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return FormSchema{}, ErrEmptyDocument
	}
	if trimmed[0] != '{' {
		if !json.Valid(trimmed) {
			return FormSchema{}, ErrMalformedJSON
		}
		return FormSchema{}, ErrInvalidShape
	}

	var probe shapeProbe
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		if json.Valid(trimmed) {
			return FormSchema{}, fmt.Errorf("%w: %v", ErrInvalidShape, err)
		}
		return FormSchema{}, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	fields := bytes.TrimSpace(probe.Fields)
	if probe.Title == nil || strings.TrimSpace(*probe.Title) == "" || len(fields) == 0 || fields[0] != '[' {
		return FormSchema{}, ErrInvalidShape
	}

	var specs []FieldSpec
	if err := json.Unmarshal(fields, &specs); err != nil {
		return FormSchema{}, fmt.Errorf("%w: %v", ErrInvalidShape, err)
	}
	if specs == nil {
		specs = []FieldSpec{}
	}
	return FormSchema{Title: strings.TrimSpace(*probe.Title), Fields: specs}, nil
}

// ParseYAML decodes a YAML schema document with the same shape rules as Parse.
func ParseYAML(raw []byte) (FormSchema, error) {
	var generic any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return FormSchema{}, fmt.Errorf("%w: %v", ErrMalformedYAML, err)
	}
	if generic == nil {
		return FormSchema{}, ErrEmptyDocument
	}
	payload, err := json.Marshal(generic)
	if err != nil {
		return FormSchema{}, fmt.Errorf("%w: %v", ErrMalformedYAML, err)
	}
	return Parse(payload)
}
