package payload

import (
	"bytes"
	"fmt"
	"math"

	errspkg "github.com/drblury/diagflow/internal/runtime/errors"
)

// Record holds one value per schema field, in declaration order.
//
// Values use exactly one Go type per semantic type: bool, uint8..uint64,
// int8..int64, float32, float64, []byte for Bytes/VarBytes and string for
// ASCII. Set rejects anything else.
type Record struct {
	schema *Schema
	values []any
}

// NewRecord returns a record with every field set to its zero value.
func (s *Schema) NewRecord() Record {
	r := Record{schema: s, values: make([]any, len(s.fields))}
	for i, f := range s.fields {
		r.values[i] = zeroValue(f)
	}
	return r
}

func zeroValue(f Field) any {
	switch f.Type {
	case TypeBool:
		return false
	case TypeUint8:
		return uint8(0)
	case TypeUint16:
		return uint16(0)
	case TypeUint32:
		return uint32(0)
	case TypeUint64:
		return uint64(0)
	case TypeInt8:
		return int8(0)
	case TypeInt16:
		return int16(0)
	case TypeInt32:
		return int32(0)
	case TypeInt64:
		return int64(0)
	case TypeFloat32:
		return float32(0)
	case TypeFloat64:
		return float64(0)
	case TypeBytes:
		return make([]byte, f.Size)
	case TypeASCII:
		return ""
	default:
		return []byte{}
	}
}

// Schema returns the descriptor the record was built from.
func (r Record) Schema() *Schema { return r.schema }

// IsZero reports whether the record was never initialised from a schema.
func (r Record) IsZero() bool { return r.schema == nil }

// Set assigns a field value. The value's Go type must match the field type.
func (r Record) Set(name string, value any) error {
	if r.schema == nil {
		return fmt.Errorf("%w: record has no schema", errspkg.ErrMalformedPayload)
	}
	i, ok := r.schema.index[name]
	if !ok {
		return fmt.Errorf("%w: schema %q has no field %q", errspkg.ErrMalformedPayload, r.schema.name, name)
	}
	if err := checkValue(r.schema.fields[i], value); err != nil {
		return err
	}
	if b, ok := value.([]byte); ok {
		owned := make([]byte, len(b))
		copy(owned, b)
		value = owned
	}
	r.values[i] = value
	return nil
}

// MustSet is Set for tests and static fixtures.
func (r Record) MustSet(name string, value any) Record {
	if err := r.Set(name, value); err != nil {
		panic(err)
	}
	return r
}

// Get returns a field value.
func (r Record) Get(name string) (any, bool) {
	if r.schema == nil {
		return nil, false
	}
	i, ok := r.schema.index[name]
	if !ok {
		return nil, false
	}
	return r.values[i], true
}

// Values returns the field values in declaration order.
func (r Record) Values() []any {
	out := make([]any, len(r.values))
	copy(out, r.values)
	return out
}

// Equal compares schema identity and every value.
func (r Record) Equal(other Record) bool {
	if r.schema != other.schema || len(r.values) != len(other.values) {
		return false
	}
	for i, v := range r.values {
		if !valueEqual(v, other.values[i]) {
			return false
		}
	}
	return true
}

func valueEqual(a, b any) bool {
	switch av := a.(type) {
	case []byte:
		bv, ok := b.([]byte)
		return ok && bytes.Equal(av, bv)
	case float32:
		bv, ok := b.(float32)
		return ok && math.Float32bits(av) == math.Float32bits(bv)
	case float64:
		bv, ok := b.(float64)
		return ok && math.Float64bits(av) == math.Float64bits(bv)
	default:
		return a == b
	}
}

func checkValue(f Field, value any) error {
	ok := false
	switch f.Type {
	case TypeBool:
		_, ok = value.(bool)
	case TypeUint8:
		_, ok = value.(uint8)
	case TypeUint16:
		_, ok = value.(uint16)
	case TypeUint32:
		_, ok = value.(uint32)
	case TypeUint64:
		_, ok = value.(uint64)
	case TypeInt8:
		_, ok = value.(int8)
	case TypeInt16:
		_, ok = value.(int16)
	case TypeInt32:
		_, ok = value.(int32)
	case TypeInt64:
		_, ok = value.(int64)
	case TypeFloat32:
		_, ok = value.(float32)
	case TypeFloat64:
		_, ok = value.(float64)
	case TypeBytes:
		var b []byte
		if b, ok = value.([]byte); ok && len(b) != f.Size {
			return fmt.Errorf("%w: field %q expects %d bytes, got %d", errspkg.ErrMalformedPayload, f.Name, f.Size, len(b))
		}
	case TypeASCII:
		var s string
		if s, ok = value.(string); ok {
			if len(s) > f.Size {
				return fmt.Errorf("%w: field %q holds at most %d characters, got %d", errspkg.ErrMalformedPayload, f.Name, f.Size, len(s))
			}
			if i := nonASCII(s); i >= 0 {
				return fmt.Errorf("%w: field %q has non-ASCII byte 0x%02X at offset %d", errspkg.ErrMalformedPayload, f.Name, s[i], i)
			}
		}
	case TypeVarBytes:
		_, ok = value.([]byte)
	}
	if !ok {
		return fmt.Errorf("%w: field %q is %s, got %T", errspkg.ErrMalformedPayload, f.Name, f.Type, value)
	}
	return nil
}

// nonASCII returns the offset of the first byte above 0x7F, or -1.
func nonASCII(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7F {
			return i
		}
	}
	return -1
}
