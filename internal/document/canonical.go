// Package document renders compiled stage and validator documents as
// deterministic relaxed Extended JSON, and fingerprints them.
package document

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"time"
	"unicode/utf16"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces the canonical form of a stage, predicate or
// validator document.
//
//   - bson.D keeps its key order; order is significant in stage documents
//   - maps are written with keys sorted by UTF-16 code units (RFC 8785)
//   - strings are NFC normalized and never HTML-escaped
//   - ObjectID, Binary, DateTime and time.Time use Extended JSON wrappers
//   - NaN and infinities are rejected
func MarshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Indent renders v canonically with two-space indentation.
func Indent(v any) ([]byte, error) {
	raw, err := MarshalCanonical(v)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

func writeValue(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		buf.WriteString(strconv.FormatBool(val))
	case string:
		return writeString(buf, val)
	case int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int32:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case float64:
		return writeFloat(buf, val)
	case float32:
		return writeFloat(buf, float64(val))
	case bson.D:
		return writeDocument(buf, val)
	case bson.E:
		return writeDocument(buf, bson.D{val})
	case bson.M:
		return writeMap(buf, val)
	case map[string]any:
		return writeMap(buf, val)
	case bson.A:
		return writeArray(buf, []any(val))
	case []any:
		return writeArray(buf, val)
	case mongo.Pipeline:
		items := make([]any, len(val))
		for i, stage := range val {
			items[i] = stage
		}
		return writeArray(buf, items)
	case primitive.ObjectID:
		return writeDocument(buf, bson.D{{Key: "$oid", Value: val.Hex()}})
	case primitive.Binary:
		return writeDocument(buf, bson.D{{Key: "$binary", Value: bson.D{
			{Key: "base64", Value: base64.StdEncoding.EncodeToString(val.Data)},
			{Key: "subType", Value: fmt.Sprintf("%02x", val.Subtype)},
		}}})
	case primitive.DateTime:
		return writeDate(buf, val.Time())
	case time.Time:
		return writeDate(buf, val)
	default:
		return writeReflect(buf, v)
	}
	return nil
}

// writeReflect handles typed slices such as []string.
func writeReflect(buf *bytes.Buffer, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8 {
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return writeArray(buf, items)
	}
	return fmt.Errorf("unsupported type for canonical document: %T", v)
}

func writeFloat(buf *bytes.Buffer, f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("non-finite number %v is not representable", f)
	}
	buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	return nil
}

func writeDate(buf *bytes.Buffer, t time.Time) error {
	return writeDocument(buf, bson.D{{Key: "$date", Value: t.UTC().Format(time.RFC3339Nano)}})
}

func writeDocument(buf *bytes.Buffer, doc bson.D) error {
	buf.WriteByte('{')
	for i, e := range doc {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(buf, e.Key); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := writeValue(buf, e.Value); err != nil {
			return fmt.Errorf("value for key %q: %w", e.Key, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeMap(buf *bytes.Buffer, m map[string]any) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return lessUTF16(keys[i], keys[j]) })

	doc := make(bson.D, len(keys))
	for i, k := range keys {
		doc[i] = bson.E{Key: k, Value: m[k]}
	}
	return writeDocument(buf, doc)
}

func writeArray(buf *bytes.Buffer, items []any) error {
	buf.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeValue(buf, item); err != nil {
			return fmt.Errorf("array[%d]: %w", i, err)
		}
	}
	buf.WriteByte(']')
	return nil
}

// writeString writes s NFC normalized, escaping only what JSON requires.
func writeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return err
	}
	out := bytes.TrimSuffix(tmp.Bytes(), []byte{'\n'})
	buf.Write(unescapeLineSeparators(out))
	return nil
}

// unescapeLineSeparators undoes encoding/json's escaping of U+2028 and
// U+2029. An escape preceded by an odd number of backslashes is literal text
// and is kept.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if i+6 <= len(data) && bytes.HasPrefix(data[i:], []byte(`\u202`)) && (data[i+5] == '8' || data[i+5] == '9') {
			backslashes := 0
			for j := len(out) - 1; j >= 0 && out[j] == '\\'; j-- {
				backslashes++
			}
			if backslashes%2 == 0 {
				if data[i+5] == '8' {
					out = append(out, "\u2028"...)
				} else {
					out = append(out, "\u2029"...)
				}
				i += 5
				continue
			}
		}
		out = append(out, data[i])
	}
	return out
}

// lessUTF16 orders strings by UTF-16 code units as RFC 8785 requires.
func lessUTF16(a, b string) bool {
	ua := utf16.Encode([]rune(a))
	ub := utf16.Encode([]rune(b))
	for i := 0; i < len(ua) && i < len(ub); i++ {
		if ua[i] != ub[i] {
			return ua[i] < ub[i]
		}
	}
	return len(ua) < len(ub)
}
