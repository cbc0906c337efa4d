package document

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Domain prefixes for fingerprints. The version suffix leaves room for a
// future change of canonical form.
const (
	DomainPipeline  = "docmap/pipeline/v1"
	DomainValidator = "docmap/validator/v1"
	DomainPredicate = "docmap/predicate/v1"
)

// Fingerprint hashes v's canonical form with domain separation:
// SHA256(domain || 0x00 || canonical(v)).
func Fingerprint(domain string, v any) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// PipelineFingerprint identifies a compiled pipeline.
func PipelineFingerprint(p mongo.Pipeline) (string, error) {
	return Fingerprint(DomainPipeline, p)
}

// DecodePipeline parses a canonical pipeline back into stages.
func DecodePipeline(data []byte) (mongo.Pipeline, error) {
	wrapped := append(append([]byte(`{"stages":`), data...), '}')
	var doc struct {
		Stages []bson.D `bson:"stages"`
	}
	if err := bson.UnmarshalExtJSON(wrapped, false, &doc); err != nil {
		return nil, fmt.Errorf("decode pipeline: %w", err)
	}
	return mongo.Pipeline(doc.Stages), nil
}

// DecodeDocument parses a canonical document back into a bson.D.
func DecodeDocument(data []byte) (bson.D, error) {
	var doc bson.D
	if err := bson.UnmarshalExtJSON(data, false, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}
