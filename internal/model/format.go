package model

import (
	"strings"
)

// Format is a storage-format tag carried by a column.
// A column can carry several formats; the validator emits them as a union.
type Format int

const (
	FormatID Format = iota + 1
	FormatNull
	FormatBinary
	FormatBoolean
	FormatInteger
	FormatDecimal
	FormatNumber
	FormatString
	FormatEnumeration
	FormatPattern
	FormatTimestamp
	FormatDate
	FormatArray
	FormatMap
	FormatObject
)

var formatNames = map[Format]string{
	FormatID:          "Id",
	FormatNull:        "Null",
	FormatBinary:      "Binary",
	FormatBoolean:     "Boolean",
	FormatInteger:     "Integer",
	FormatDecimal:     "Decimal",
	FormatNumber:      "Number",
	FormatString:      "String",
	FormatEnumeration: "Enumeration",
	FormatPattern:     "Pattern",
	FormatTimestamp:   "Timestamp",
	FormatDate:        "Date",
	FormatArray:       "Array",
	FormatMap:         "Map",
	FormatObject:      "Object",
}

// String returns the tag name used in model declarations.
func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return "Unknown"
}

// ParseFormat converts a declared tag (case-insensitive) to a Format.
// "objectid" is accepted as an alias of Id.
func ParseFormat(s string) (Format, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "objectid" {
		return FormatID, nil
	}
	for f, name := range formatNames {
		if strings.ToLower(name) == key {
			return f, nil
		}
	}
	return 0, &UnsupportedFormatError{Tag: s}
}

// Primitive is a marker standing in for a composite model when an array or
// map holds scalar elements.
type Primitive int

const (
	PrimitiveNone Primitive = iota
	PrimitiveString
	PrimitiveNumber
	PrimitiveBoolean
	PrimitiveDate
	PrimitiveID
	PrimitiveObject // generic object, shape unchecked
)

var primitiveNames = map[Primitive]string{
	PrimitiveString:  "string",
	PrimitiveNumber:  "number",
	PrimitiveBoolean: "boolean",
	PrimitiveDate:    "date",
	PrimitiveID:      "id",
	PrimitiveObject:  "object",
}

func (p Primitive) String() string {
	if name, ok := primitiveNames[p]; ok {
		return name
	}
	return "none"
}

// ParsePrimitive returns the marker named by s, or false when s names no
// primitive (and therefore refers to a composite model).
func ParsePrimitive(s string) (Primitive, bool) {
	key := strings.ToLower(s)
	if key == "objectid" {
		return PrimitiveID, true
	}
	for p, name := range primitiveNames {
		if name == key {
			return p, true
		}
	}
	return PrimitiveNone, false
}

// Ref points a column at either a composite model or a primitive marker.
// Exactly one of Model and Primitive is set.
type Ref struct {
	Model     *Model
	Primitive Primitive
}

// Composite returns a reference to a composite model.
func Composite(m *Model) *Ref {
	return &Ref{Model: m}
}

// Marker returns a reference to a primitive marker.
func Marker(p Primitive) *Ref {
	return &Ref{Primitive: p}
}

// IsComposite reports whether the reference names a composite model.
func (r *Ref) IsComposite() bool {
	return r != nil && r.Model != nil
}

func (r *Ref) String() string {
	switch {
	case r == nil:
		return "<nil>"
	case r.Model != nil:
		return r.Model.Name
	default:
		return r.Primitive.String()
	}
}
