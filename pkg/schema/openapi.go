package schema

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// SubmissionPath is the endpoint documented by ExportOpenAPI.
const SubmissionPath = "/api/submissions"

// ExportOpenAPI describes the submission endpoint of a form as an OpenAPI 3
// document. The request body is {formTitle, data} where data mirrors the
// form's fields and constraints.
func ExportOpenAPI(form FormSchema, version string) *openapi3.T {
	if version == "" {
		version = "1.0.0"
	}

	data := openapi3.NewObjectSchema()
	var required []string
	for _, field := range form.Fields {
		data.WithProperty(field.Name, fieldSchema(field))
		if field.Required || field.ConfirmPassword != "" {
			required = append(required, field.Name)
		}
	}
	data.Required = required

	title := openapi3.NewStringSchema()
	title.Enum = []any{form.Title}

	body := openapi3.NewObjectSchema().
		WithProperty("formTitle", title).
		WithProperty("data", data)
	body.Required = []string{"formTitle", "data"}

	created := openapi3.NewObjectSchema().
		WithProperty("id", openapi3.NewStringSchema()).
		WithProperty("formTitle", openapi3.NewStringSchema()).
		WithProperty("data", data).
		WithProperty("created_at", openapi3.NewDateTimeSchema())

	op := openapi3.NewOperation()
	op.OperationID = "createSubmission"
	op.Summary = "Submit " + form.Title
	op.RequestBody = &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchema(body)}
	op.Responses = openapi3.NewResponses(
		openapi3.WithStatus(http.StatusCreated, &openapi3.ResponseRef{Value: openapi3.NewResponse().WithDescription("Submission stored").WithJSONSchema(created)}),
		openapi3.WithStatus(http.StatusBadRequest, &openapi3.ResponseRef{Value: openapi3.NewResponse().WithDescription("Form title and data are required")}),
		openapi3.WithStatus(http.StatusUnprocessableEntity, &openapi3.ResponseRef{Value: openapi3.NewResponse().WithDescription("Field validation failed")}),
	)

	return &openapi3.T{
		OpenAPI: "3.0.3",
		Info:    &openapi3.Info{Title: form.Title, Version: version},
		Paths:   openapi3.NewPaths(openapi3.WithPath(SubmissionPath, &openapi3.PathItem{Post: op})),
	}
}

func fieldSchema(field FieldSpec) *openapi3.Schema {
	var s *openapi3.Schema
	switch field.Type.Normalize() {
	case FieldTypeNumber:
		s = openapi3.NewFloat64Schema()
		s.Min = field.Min
		s.Max = field.Max
		// Submissions carry raw input strings; numbers are accepted as text too.
		s = openapi3.NewOneOfSchema(s, openapi3.NewStringSchema())
	case FieldTypeDate:
		s = openapi3.NewStringSchema().WithFormat("date")
	case FieldTypeEmail:
		s = openapi3.NewStringSchema().WithFormat("email")
	case FieldTypeURL:
		s = openapi3.NewStringSchema().WithFormat("uri")
	case FieldTypePassword:
		s = openapi3.NewStringSchema().WithFormat("password")
	case FieldTypePhone:
		s = openapi3.NewStringSchema().WithPattern(PhonePattern)
	case FieldTypeSelect:
		s = openapi3.NewStringSchema()
		for _, opt := range field.Options {
			s.Enum = append(s.Enum, opt)
		}
	default:
		s = openapi3.NewStringSchema()
	}
	if field.Type.StringLike() {
		if field.MinLength != nil && *field.MinLength > 0 {
			s.MinLength = uint64(*field.MinLength)
		}
		if field.MaxLength != nil && *field.MaxLength >= 0 {
			s.WithMaxLength(int64(*field.MaxLength))
		}
		if field.Pattern != "" && s.Pattern == "" {
			s.Pattern = field.Pattern
		}
	}
	s.Title = field.DisplayLabel()
	s.Description = field.HelpText
	return s
}

// PhonePattern is the accepted phone number shape.
const PhonePattern = `^[+]?[(]?\d{3}[)]?[-\s]?\d{3}[-\s]?\d{4,6}$`

// ErrOperationNotFound is returned when ImportOpenAPI cannot find the operation.
var ErrOperationNotFound = errors.New("schema: operation not found")

// ImportOpenAPI derives a form from the JSON request body of an OpenAPI
// operation. Properties are emitted in name order since OpenAPI objects are
// unordered.
func ImportOpenAPI(ctx context.Context, raw []byte, operationID string) (FormSchema, error) {
	if err := ctx.Err(); err != nil {
		return FormSchema{}, err
	}
	loader := &openapi3.Loader{Context: ctx}
	spec, err := loader.LoadFromData(raw)
	if err != nil {
		return FormSchema{}, fmt.Errorf("schema: load openapi document: %w", err)
	}
	if spec.Paths == nil {
		return FormSchema{}, ErrOperationNotFound
	}

	var target *openapi3.Operation
	for _, item := range spec.Paths.Map() {
		if item == nil {
			continue
		}
		for _, op := range item.Operations() {
			if op != nil && op.OperationID == operationID {
				target = op
			}
		}
	}
	if target == nil {
		return FormSchema{}, fmt.Errorf("%w: %q", ErrOperationNotFound, operationID)
	}
	if target.RequestBody == nil || target.RequestBody.Value == nil {
		return FormSchema{}, fmt.Errorf("schema: operation %q has no request body", operationID)
	}
	media := target.RequestBody.Value.Content.Get("application/json")
	if media == nil || media.Schema == nil || media.Schema.Value == nil {
		return FormSchema{}, fmt.Errorf("schema: operation %q has no JSON request schema", operationID)
	}
	body := media.Schema.Value

	required := make(map[string]bool, len(body.Required))
	for _, name := range body.Required {
		required[name] = true
	}
	names := make([]string, 0, len(body.Properties))
	for name := range body.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	form := FormSchema{Title: firstNonEmpty(target.Summary, body.Title, operationID)}
	for _, name := range names {
		ref := body.Properties[name]
		if ref == nil || ref.Value == nil {
			continue
		}
		field := importField(name, ref.Value)
		field.Required = required[name]
		form.Fields = append(form.Fields, field)
	}
	if form.Fields == nil {
		form.Fields = []FieldSpec{}
	}
	return form, nil
}

func importField(name string, src *openapi3.Schema) FieldSpec {
	field := FieldSpec{
		Name:     name,
		Label:    src.Title,
		HelpText: src.Description,
		Type:     FieldTypeText,
	}
	kind := ""
	if src.Type != nil && len(src.Type.Slice()) > 0 {
		kind = src.Type.Slice()[0]
	}

	switch kind {
	case openapi3.TypeInteger, openapi3.TypeNumber:
		field.Type = FieldTypeNumber
		field.Min = src.Min
		field.Max = src.Max
		return field
	case openapi3.TypeBoolean:
		field.Type = FieldTypeSelect
		field.Options = []string{"true", "false"}
		return field
	}

	if len(src.Enum) > 0 {
		field.Type = FieldTypeSelect
		for _, v := range src.Enum {
			field.Options = append(field.Options, fmt.Sprint(v))
		}
		return field
	}

	switch strings.ToLower(src.Format) {
	case "email":
		field.Type = FieldTypeEmail
	case "date", "date-time":
		field.Type = FieldTypeDate
	case "uri", "url":
		field.Type = FieldTypeURL
	case "password":
		field.Type = FieldTypePassword
	case "phone", "tel":
		field.Type = FieldTypePhone
	case "textarea":
		field.Type = FieldTypeTextArea
	}
	if src.MinLength > 0 {
		v := int(src.MinLength)
		field.MinLength = &v
	}
	if src.MaxLength != nil {
		v := int(*src.MaxLength)
		field.MaxLength = &v
	}
	field.Pattern = src.Pattern
	return field
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
