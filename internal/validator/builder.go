// Package validator compiles model descriptors into structural validators:
// the $jsonSchema document a collection enforces on write, and a draft-4
// JSON Schema rendering of the same constraints for offline checks.
package validator

import (
	"slices"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/roach88/docmap/internal/model"
)

// Dialect selects the schema vocabulary.
type Dialect int

const (
	// BSON emits bsonType keywords as understood by $jsonSchema.
	BSON Dialect = iota

	// JSON emits draft-4 type keywords for plain JSON documents.
	JSON
)

var bsonTypes = map[model.Format]string{
	model.FormatID:          "objectId",
	model.FormatNull:        "null",
	model.FormatBinary:      "binData",
	model.FormatBoolean:     "bool",
	model.FormatInteger:     "int",
	model.FormatDecimal:     "double",
	model.FormatNumber:      "number",
	model.FormatString:      "string",
	model.FormatEnumeration: "string",
	model.FormatPattern:     "string",
	model.FormatTimestamp:   "timestamp",
	model.FormatDate:        "date",
	model.FormatArray:       "array",
	model.FormatMap:         "object",
	model.FormatObject:      "object",
}

var jsonTypes = map[model.Format]string{
	model.FormatID:          "string",
	model.FormatNull:        "null",
	model.FormatBinary:      "string",
	model.FormatBoolean:     "boolean",
	model.FormatInteger:     "integer",
	model.FormatDecimal:     "number",
	model.FormatNumber:      "number",
	model.FormatString:      "string",
	model.FormatEnumeration: "string",
	model.FormatPattern:     "string",
	model.FormatTimestamp:   "string",
	model.FormatDate:        "string",
	model.FormatArray:       "array",
	model.FormatMap:         "object",
	model.FormatObject:      "object",
}

var bsonPrimitives = map[model.Primitive]string{
	model.PrimitiveString:  "string",
	model.PrimitiveNumber:  "number",
	model.PrimitiveBoolean: "bool",
	model.PrimitiveDate:    "date",
	model.PrimitiveID:      "objectId",
	model.PrimitiveObject:  "object",
}

var jsonPrimitives = map[model.Primitive]string{
	model.PrimitiveString:  "string",
	model.PrimitiveNumber:  "number",
	model.PrimitiveBoolean: "boolean",
	model.PrimitiveDate:    "string",
	model.PrimitiveID:      "string",
	model.PrimitiveObject:  "object",
}

// Build compiles m into a $jsonSchema body. Foreign relation columns are
// filled by joins at read time and are not part of the stored document, so
// they are left out.
func Build(m *model.Model) (bson.D, error) {
	return newBuilder(BSON).object(m)
}

// Validator wraps Build's output as the collection validator option.
func Validator(m *model.Model) (bson.D, error) {
	schema, err := Build(m)
	if err != nil {
		return nil, err
	}
	return bson.D{{Key: "$jsonSchema", Value: schema}}, nil
}

// BuildDialect compiles m in the given dialect.
func BuildDialect(m *model.Model, d Dialect) (bson.D, error) {
	return newBuilder(d).object(m)
}

type builder struct {
	typeKey    string
	types      map[model.Format]string
	primitives map[model.Primitive]string
	trail      []*model.Model
}

func newBuilder(d Dialect) *builder {
	if d == JSON {
		return &builder{typeKey: "type", types: jsonTypes, primitives: jsonPrimitives}
	}
	return &builder{typeKey: "bsonType", types: bsonTypes, primitives: bsonPrimitives}
}

// object builds the schema of one document shape. Required columns are
// listed in declaration order.
func (b *builder) object(m *model.Model) (bson.D, error) {
	if slices.Contains(b.trail, m) {
		path := make([]string, 0, len(b.trail)+1)
		for _, seen := range b.trail {
			path = append(path, seen.Name)
		}
		return nil, &model.CyclicModelError{Path: append(path, m.Name)}
	}
	b.trail = append(b.trail, m)
	defer func() { b.trail = b.trail[:len(b.trail)-1] }()

	properties := bson.D{}
	var required bson.A
	for _, col := range m.Columns() {
		if col.Relation() == model.RelationForeign {
			continue
		}
		schema, err := b.property(col)
		if err != nil {
			return nil, err
		}
		properties = append(properties, bson.E{Key: col.StorageName(), Value: schema})
		if col.Required {
			required = append(required, col.StorageName())
		}
	}

	doc := bson.D{
		{Key: b.typeKey, Value: "object"},
		{Key: "properties", Value: properties},
		{Key: "additionalProperties", Value: false},
	}
	if len(required) > 0 {
		doc = append(doc, bson.E{Key: "required", Value: required})
	}
	return doc, nil
}

// property builds one column's schema. Each format adds its type to the
// union and its constraints to the same document.
func (b *builder) property(col *model.Column) (bson.D, error) {
	types := bson.A{}
	doc := bson.D{{Key: b.typeKey, Value: nil}}

	for _, f := range col.Formats {
		name, ok := b.types[f]
		if !ok {
			return nil, &model.UnsupportedFormatError{Column: col.Name, Tag: f.String()}
		}
		if !slices.Contains(types, any(name)) {
			types = append(types, name)
		}

		switch f {
		case model.FormatInteger, model.FormatDecimal, model.FormatNumber:
			doc = setBound(doc, "minimum", col.Minimum)
			doc = setBound(doc, "maximum", col.Maximum)
		case model.FormatString:
			doc = setBound(doc, "minLength", col.Minimum)
			doc = setBound(doc, "maxLength", col.Maximum)
		case model.FormatEnumeration:
			values := make(bson.A, len(col.Values))
			for i, v := range col.Values {
				values[i] = v
			}
			doc = set(doc, "enum", values)
		case model.FormatPattern:
			doc = set(doc, "pattern", stripDelimiters(col.Pattern))
		case model.FormatArray:
			doc = setBound(doc, "minItems", col.Minimum)
			doc = setBound(doc, "maxItems", col.Maximum)
			if col.Unique {
				doc = set(doc, "uniqueItems", true)
			}
			items, err := b.element(col)
			if err != nil {
				return nil, err
			}
			if items != nil {
				doc = set(doc, "items", items)
			}
		case model.FormatMap:
			values, err := b.element(col)
			if err != nil {
				return nil, err
			}
			if values != nil {
				doc = set(doc, "additionalProperties", values)
			}
		case model.FormatObject:
			target := col.Target()
			if target == nil {
				doc = set(doc, "additionalProperties", true)
				continue
			}
			nested, err := b.object(target)
			if err != nil {
				return nil, err
			}
			for _, e := range nested[1:] {
				doc = set(doc, e.Key, e.Value)
			}
		}
	}

	doc[0].Value = types
	return doc, nil
}

// element builds the schema of array items or map values: primitive markers
// map to a bare type, composite models recurse. Columns without a model get
// no element schema.
func (b *builder) element(col *model.Column) (bson.D, error) {
	switch {
	case col.Model == nil:
		return nil, nil
	case col.Model.IsComposite():
		return b.object(col.Model.Model)
	default:
		name, ok := b.primitives[col.Model.Primitive]
		if !ok {
			return nil, &model.UnsupportedFormatError{Column: col.Name, Tag: col.Model.Primitive.String()}
		}
		return bson.D{{Key: b.typeKey, Value: name}}, nil
	}
}

func set(doc bson.D, key string, value any) bson.D {
	for i := range doc {
		if doc[i].Key == key {
			doc[i].Value = value
			return doc
		}
	}
	return append(doc, bson.E{Key: key, Value: value})
}

func setBound(doc bson.D, key string, bound *float64) bson.D {
	if bound == nil {
		return doc
	}
	return set(doc, key, *bound)
}

// stripDelimiters turns a /source/flags literal into its source.
func stripDelimiters(pattern string) string {
	if strings.HasPrefix(pattern, "/") {
		if end := strings.LastIndex(pattern, "/"); end > 0 {
			return pattern[1:end]
		}
	}
	return pattern
}
