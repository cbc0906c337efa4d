package validator

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/roach88/docmap/internal/model"
)

// DocumentError lists the constraints a document violates.
type DocumentError struct {
	Model      string
	Violations []string
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("document does not match model %s: %s", e.Model, strings.Join(e.Violations, "; "))
}

// Checker validates decoded JSON documents against a model.
type Checker struct {
	model  *model.Model
	schema *gojsonschema.Schema
}

// JSONSchema renders m as a draft-4 JSON Schema document.
func JSONSchema(m *model.Model) (map[string]any, error) {
	doc, err := BuildDialect(m, JSON)
	if err != nil {
		return nil, err
	}
	return toMap(doc), nil
}

// NewChecker compiles m's JSON Schema rendering.
func NewChecker(m *model.Model) (*Checker, error) {
	doc, err := JSONSchema(m)
	if err != nil {
		return nil, err
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("invalid json schema for model %s: %w", m.Name, err)
	}
	return &Checker{model: m, schema: schema}, nil
}

// Check validates doc, typically a map decoded from JSON. It returns a
// *DocumentError listing every violation.
func (c *Checker) Check(doc any) error {
	result, err := c.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}
	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	return &DocumentError{Model: c.model.Name, Violations: violations}
}

// Check validates doc against m without keeping the compiled schema.
func Check(m *model.Model, doc any) error {
	c, err := NewChecker(m)
	if err != nil {
		return err
	}
	return c.Check(doc)
}

// toMap converts ordered documents to plain maps for JSON encoding.
func toMap(v any) map[string]any {
	doc, _ := v.(bson.D)
	out := make(map[string]any, len(doc))
	for _, e := range doc {
		out[e.Key] = plain(e.Value)
	}
	return out
}

func plain(v any) any {
	switch val := v.(type) {
	case bson.D:
		return toMap(val)
	case bson.A:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = plain(item)
		}
		return out
	default:
		return v
	}
}
