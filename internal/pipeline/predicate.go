package pipeline

import (
	"fmt"
	"reflect"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/roach88/docmap/internal/model"
	"github.com/roach88/docmap/internal/query"
)

var comparisonOperators = map[query.Operator]string{
	query.Less:           "$lt",
	query.LessOrEqual:    "$lte",
	query.Equal:          "$eq",
	query.NotEqual:       "$ne",
	query.GreaterOrEqual: "$gte",
	query.Greater:        "$gt",
}

// Predicate compiles a filter into a match document over m's stored field
// names.
//
// Every filter key is checked before anything is emitted; an unknown key
// fails with UnknownColumnError. Foreign relation columns are filled by joins
// after the match runs and fail with InvalidOperationError. Entries follow
// the model's column order.
// Values of Id-format columns are coerced through the identifier codec when
// they are well-formed, including each element of BETWEEN and CONTAIN
// sequences; anything else passes through unchanged.
func (c *Compiler) Predicate(m *model.Model, filter query.Filter) (bson.D, error) {
	for _, name := range filter.Columns() {
		col := m.Column(name)
		if col == nil {
			return nil, &model.UnknownColumnError{Model: m.Name, Column: name}
		}
		if col.Relation() == model.RelationForeign {
			return nil, &model.InvalidOperationError{Column: name, Message: "cannot filter on a joined relation"}
		}
	}

	predicate := bson.D{}
	for _, col := range m.Columns() {
		op, ok := filter[col.Name]
		if !ok {
			continue
		}
		cond, err := c.condition(col, op)
		if err != nil {
			return nil, err
		}
		predicate = append(predicate, bson.E{Key: col.StorageName(), Value: cond})
	}
	return predicate, nil
}

// PrimaryIDMatch builds an equality predicate on m's primary identifier.
// A value that is neither a well-formed identifier string nor the native
// identifier type fails with InvalidIdentifierError.
func (c *Compiler) PrimaryIDMatch(m *model.Model, value any) (bson.D, error) {
	col := m.PrimaryColumn()
	if col == nil {
		return nil, &model.DescriptorError{Model: m.Name, Message: "model has no primary column"}
	}
	if col.Has(model.FormatID) {
		native, ok := c.codec.Coerce(value)
		if !ok {
			return nil, &model.InvalidIdentifierError{Model: m.Name, Value: value}
		}
		value = native
	}
	return bson.D{{Key: col.StorageName(), Value: bson.D{{Key: "$eq", Value: value}}}}, nil
}

func (c *Compiler) condition(col *model.Column, op query.Operation) (bson.D, error) {
	if name, ok := comparisonOperators[op.Operator]; ok {
		return bson.D{{Key: name, Value: c.coerce(col, op.Value)}}, nil
	}

	switch op.Operator {
	case query.Between:
		bounds, ok := sequence(op.Value)
		if !ok || len(bounds) != 2 {
			return nil, &model.InvalidOperationError{
				Column:  col.Name,
				Message: fmt.Sprintf("BETWEEN needs a two-element sequence, got %T", op.Value),
			}
		}
		return bson.D{
			{Key: "$gte", Value: c.coerce(col, bounds[0])},
			{Key: "$lte", Value: c.coerce(col, bounds[1])},
		}, nil

	case query.Contain, query.NotContain:
		items, ok := sequence(op.Value)
		if !ok {
			return nil, &model.InvalidOperationError{
				Column:  col.Name,
				Message: fmt.Sprintf("%s needs a sequence, got %T", op.Operator, op.Value),
			}
		}
		values := make(bson.A, len(items))
		for i, item := range items {
			values[i] = c.coerce(col, item)
		}
		name := "$in"
		if op.Operator == query.NotContain {
			name = "$nin"
		}
		return bson.D{{Key: name, Value: values}}, nil
	}

	return nil, &model.InvalidOperationError{Column: col.Name, Message: fmt.Sprintf("unknown operator %s", op.Operator)}
}

func (c *Compiler) coerce(col *model.Column, v any) any {
	if !col.Has(model.FormatID) {
		return v
	}
	if native, ok := c.codec.Coerce(v); ok {
		return native
	}
	return v
}

// sequence flattens slice and array values into []any, keeping order and
// duplicates. Byte slices and byte arrays (object ids, uuids) are scalars.
func sequence(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case bson.A:
		return []any(s), true
	case nil, string:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
