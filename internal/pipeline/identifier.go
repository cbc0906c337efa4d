package pipeline

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IdentifierCodec converts identifier values from their external form to
// the native stored representation.
type IdentifierCodec interface {
	// Name identifies the codec in configuration.
	Name() string

	// Coerce returns the native form of v. ok is false when v is neither the
	// native type nor a well-formed external form; v is then returned as is.
	Coerce(v any) (native any, ok bool)
}

// ObjectIDCodec handles 12-byte object identifiers written as 24 hex digits.
type ObjectIDCodec struct{}

func (ObjectIDCodec) Name() string { return "objectid" }

func (ObjectIDCodec) Coerce(v any) (any, bool) {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id, true
	case string:
		if !primitive.IsValidObjectID(id) {
			return v, false
		}
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return v, false
		}
		return oid, true
	}
	return v, false
}

// UUIDCodec handles RFC 4122 identifiers stored as binary subtype 4.
type UUIDCodec struct{}

func (UUIDCodec) Name() string { return "uuid" }

func (UUIDCodec) Coerce(v any) (any, bool) {
	switch id := v.(type) {
	case primitive.Binary:
		if id.Subtype == bson.TypeBinaryUUID && len(id.Data) == 16 {
			return id, true
		}
	case uuid.UUID:
		return uuidBinary(id), true
	case string:
		parsed, err := uuid.Parse(id)
		if err != nil {
			return v, false
		}
		return uuidBinary(parsed), true
	}
	return v, false
}

func uuidBinary(id uuid.UUID) primitive.Binary {
	data := make([]byte, len(id))
	copy(data, id[:])
	return primitive.Binary{Subtype: bson.TypeBinaryUUID, Data: data}
}

// CodecByName returns the codec registered under name.
func CodecByName(name string) (IdentifierCodec, error) {
	switch strings.ToLower(name) {
	case "", "objectid":
		return ObjectIDCodec{}, nil
	case "uuid":
		return UUIDCodec{}, nil
	}
	return nil, fmt.Errorf("unknown identifier codec %q (want objectid or uuid)", name)
}
