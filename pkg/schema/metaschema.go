package schema

import (
	"sync"

	"github.com/invopop/jsonschema"
)

var (
	metaOnce   sync.Once
	metaSchema *jsonschema.Schema
)

// MetaSchema returns the JSON Schema describing the FormSchema wire shape, for
// editors and upload tooling.
func MetaSchema() *jsonschema.Schema {
	metaOnce.Do(func() {
		r := jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
		s := r.Reflect(&FormSchema{})
		s.Title = "Form schema"
		s.Description = "Declarative definition of a dynamically rendered form"
		metaSchema = s
	})
	return metaSchema
}
