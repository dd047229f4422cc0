package payload

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"fortio.org/safecast"

	errspkg "github.com/drblury/diagflow/internal/runtime/errors"
	jsoncodec "github.com/drblury/diagflow/internal/runtime/jsoncodec"
)

// Document is the JSON-like form of a record: one key per field. Byte blocks
// are rendered as lowercase hex strings.
type Document map[string]any

// ToDocument renders r as a document. Numeric values keep their exact Go
// type so FromDocument can restore the record without loss. NaN and infinite
// floats have no JSON form and are rejected as malformed.
func ToDocument(r Record) (Document, error) {
	if r.schema == nil {
		return nil, errspkg.ErrSchemaRequired
	}
	doc := make(Document, len(r.values))
	for i, f := range r.schema.fields {
		v := r.values[i]
		if err := checkValue(f, v); err != nil {
			return nil, err
		}
		if b, ok := v.([]byte); ok {
			doc[f.Name] = hex.EncodeToString(b)
			continue
		}
		if nonFinite(v) {
			return nil, fmt.Errorf("%w: field %q is %v, which a document cannot carry", errspkg.ErrMalformedPayload, f.Name, v)
		}
		doc[f.Name] = v
	}
	return doc, nil
}

// FromDocument converts doc into a record of schema s. Every declared field
// must be present and no other keys are accepted. Numbers are narrowed with
// range and integrality checks; a number never becomes a string or vice versa.
func FromDocument(s *Schema, doc Document) (Record, error) {
	if s == nil {
		return Record{}, errspkg.ErrSchemaRequired
	}
	for key := range doc {
		if _, ok := s.index[key]; !ok {
			return Record{}, fmt.Errorf("%w: %q has no field %q", errspkg.ErrMalformedPayload, s.name, key)
		}
	}

	rec := Record{schema: s, values: make([]any, len(s.fields))}
	for i, f := range s.fields {
		raw, ok := doc[f.Name]
		if !ok {
			return Record{}, fmt.Errorf("%w: %q is missing field %q", errspkg.ErrMalformedPayload, s.name, f.Name)
		}
		v, err := fromDocumentValue(f, raw)
		if err != nil {
			return Record{}, fmt.Errorf("%w: field %q: %v", errspkg.ErrMalformedPayload, f.Name, err)
		}
		if err := checkValue(f, v); err != nil {
			return Record{}, err
		}
		rec.values[i] = v
	}
	return rec, nil
}

func fromDocumentValue(f Field, raw any) (any, error) {
	switch f.Type {
	case TypeBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("expected boolean, got %T", raw)
		}
		return b, nil
	case TypeUint8:
		return toInteger[uint8](raw)
	case TypeUint16:
		return toInteger[uint16](raw)
	case TypeUint32:
		return toInteger[uint32](raw)
	case TypeUint64:
		return toInteger[uint64](raw)
	case TypeInt8:
		return toInteger[int8](raw)
	case TypeInt16:
		return toInteger[int16](raw)
	case TypeInt32:
		return toInteger[int32](raw)
	case TypeInt64:
		return toInteger[int64](raw)
	case TypeFloat32:
		v, err := toFloat(raw, 32)
		return float32(v), err
	case TypeFloat64:
		return toFloat(raw, 64)
	case TypeASCII:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", raw)
		}
		return s, nil
	default:
		switch b := raw.(type) {
		case []byte:
			out := make([]byte, len(b))
			copy(out, b)
			return out, nil
		case string:
			return hex.DecodeString(b)
		default:
			return nil, fmt.Errorf("expected hex string, got %T", raw)
		}
	}
}

type integer interface {
	int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64
}

func toInteger[T integer](raw any) (T, error) {
	switch n := raw.(type) {
	case int:
		return safecast.Conv[T](n)
	case int8:
		return safecast.Conv[T](n)
	case int16:
		return safecast.Conv[T](n)
	case int32:
		return safecast.Conv[T](n)
	case int64:
		return safecast.Conv[T](n)
	case uint:
		return safecast.Conv[T](n)
	case uint8:
		return safecast.Conv[T](n)
	case uint16:
		return safecast.Conv[T](n)
	case uint32:
		return safecast.Conv[T](n)
	case uint64:
		return safecast.Conv[T](n)
	case float32:
		return floatToInteger[T](float64(n))
	case float64:
		return floatToInteger[T](n)
	case json.Number:
		if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
			return safecast.Conv[T](i)
		}
		if u, err := strconv.ParseUint(n.String(), 10, 64); err == nil {
			return safecast.Conv[T](u)
		}
		f, err := strconv.ParseFloat(n.String(), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number %q", n.String())
		}
		return floatToInteger[T](f)
	default:
		return 0, fmt.Errorf("expected integer, got %T", raw)
	}
}

func floatToInteger[T integer](f float64) (T, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("%v is not an integer", f)
	}
	return safecast.Convert[T](f)
}

func nonFinite(v any) bool {
	switch n := v.(type) {
	case float32:
		return math.IsNaN(float64(n)) || math.IsInf(float64(n), 0)
	case float64:
		return math.IsNaN(n) || math.IsInf(n, 0)
	}
	return false
}

func toFloat(raw any, bits int) (float64, error) {
	f, err := parseFloat(raw, bits)
	if err == nil && nonFinite(f) {
		return 0, fmt.Errorf("%v is not a finite number", f)
	}
	return f, err
}

func parseFloat(raw any, bits int) (float64, error) {
	switch n := raw.(type) {
	case float32:
		return float64(n), nil
	case float64:
		if bits == 32 && float64(float32(n)) != n && !math.IsNaN(n) {
			return 0, fmt.Errorf("%v does not fit float32", n)
		}
		return n, nil
	case json.Number:
		f, err := strconv.ParseFloat(n.String(), bits)
		if err != nil {
			return 0, fmt.Errorf("invalid number %q", n.String())
		}
		return f, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return 0, fmt.Errorf("expected %d-bit float, got %T", bits, raw)
	default:
		return 0, fmt.Errorf("expected number, got %T", raw)
	}
}

// MarshalDocument encodes doc as JSON. Values JSON cannot carry are
// reported as malformed.
func MarshalDocument(doc Document) ([]byte, error) {
	raw, err := jsoncodec.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errspkg.ErrMalformedPayload, err)
	}
	return raw, nil
}

// ParseDocument decodes a JSON object. Numbers stay json.Number so no
// precision is lost before FromDocument narrows them.
func ParseDocument(data []byte) (Document, error) {
	var doc Document
	if err := jsoncodec.UnmarshalNumbers(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", errspkg.ErrMalformedPayload, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: document is not a JSON object", errspkg.ErrMalformedPayload)
	}
	return doc, nil
}
