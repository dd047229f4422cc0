package payload

import (
	"encoding/binary"
	"fmt"
	"math"

	errspkg "github.com/drblury/diagflow/internal/runtime/errors"
)

// Decode parses data into a record. Buffers shorter than MinSize, or longer
// than MinSize for schemas without a VarBytes tail, are malformed, as are
// ASCII fields holding bytes above 0x7F.
func Decode(s *Schema, data []byte) (Record, error) {
	if s == nil {
		return Record{}, errspkg.ErrSchemaRequired
	}
	if len(data) < s.minSize {
		return Record{}, fmt.Errorf("%w: %q needs at least %d bytes, got %d", errspkg.ErrMalformedPayload, s.name, s.minSize, len(data))
	}
	if !s.tail && len(data) > s.minSize {
		return Record{}, fmt.Errorf("%w: %q expects %d bytes, got %d excess", errspkg.ErrMalformedPayload, s.name, s.minSize, len(data)-s.minSize)
	}

	rec := Record{schema: s, values: make([]any, len(s.fields))}
	off := 0
	for i, f := range s.fields {
		w := f.Width()
		if f.Type == TypeVarBytes {
			w = len(data) - off
		}
		chunk := data[off : off+w]
		v := decodeValue(f, chunk)
		if f.Type == TypeASCII {
			if err := checkValue(f, v); err != nil {
				return Record{}, err
			}
		}
		rec.values[i] = v
		off += w
	}
	return rec, nil
}

func decodeValue(f Field, chunk []byte) any {
	switch f.Type {
	case TypeBool:
		return chunk[0] != 0
	case TypeUint8:
		return chunk[0]
	case TypeUint16:
		return binary.BigEndian.Uint16(chunk)
	case TypeUint32:
		return binary.BigEndian.Uint32(chunk)
	case TypeUint64:
		return binary.BigEndian.Uint64(chunk)
	case TypeInt8:
		return int8(chunk[0])
	case TypeInt16:
		return int16(binary.BigEndian.Uint16(chunk))
	case TypeInt32:
		return int32(binary.BigEndian.Uint32(chunk))
	case TypeInt64:
		return int64(binary.BigEndian.Uint64(chunk))
	case TypeFloat32:
		return math.Float32frombits(binary.BigEndian.Uint32(chunk))
	case TypeFloat64:
		return math.Float64frombits(binary.BigEndian.Uint64(chunk))
	case TypeASCII:
		return string(chunk)
	default:
		out := make([]byte, len(chunk))
		copy(out, chunk)
		return out
	}
}

// EncodedSize returns the number of bytes Encode will produce for r.
func EncodedSize(r Record) (int, error) {
	if r.schema == nil {
		return 0, errspkg.ErrSchemaRequired
	}
	n := r.schema.minSize
	if r.schema.tail {
		tail, _ := r.values[len(r.values)-1].([]byte)
		n += len(tail)
	}
	return n, nil
}

// Encode serialises r into a freshly allocated buffer.
func Encode(r Record) ([]byte, error) {
	n, err := EncodedSize(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := EncodeInto(buf, r); err != nil {
		return nil, err
	}
	return buf, nil
}

// EncodeInto serialises r into dst, which must hold at least EncodedSize(r)
// bytes, and returns the number of bytes written. Callers use it to encode
// straight into arena memory.
func EncodeInto(dst []byte, r Record) (int, error) {
	n, err := EncodedSize(r)
	if err != nil {
		return 0, err
	}
	if len(dst) < n {
		return 0, fmt.Errorf("%w: destination holds %d bytes, %d needed", errspkg.ErrAllocationFailure, len(dst), n)
	}

	off := 0
	for i, f := range r.schema.fields {
		v := r.values[i]
		if err := checkValue(f, v); err != nil {
			return 0, err
		}
		off += encodeValue(dst[off:], f, v)
	}
	return off, nil
}

func encodeValue(dst []byte, f Field, v any) int {
	switch f.Type {
	case TypeBool:
		dst[0] = 0
		if v.(bool) {
			dst[0] = 1
		}
	case TypeUint8:
		dst[0] = v.(uint8)
	case TypeUint16:
		binary.BigEndian.PutUint16(dst, v.(uint16))
	case TypeUint32:
		binary.BigEndian.PutUint32(dst, v.(uint32))
	case TypeUint64:
		binary.BigEndian.PutUint64(dst, v.(uint64))
	case TypeInt8:
		dst[0] = byte(v.(int8))
	case TypeInt16:
		binary.BigEndian.PutUint16(dst, uint16(v.(int16)))
	case TypeInt32:
		binary.BigEndian.PutUint32(dst, uint32(v.(int32)))
	case TypeInt64:
		binary.BigEndian.PutUint64(dst, uint64(v.(int64)))
	case TypeFloat32:
		binary.BigEndian.PutUint32(dst, math.Float32bits(v.(float32)))
	case TypeFloat64:
		binary.BigEndian.PutUint64(dst, math.Float64bits(v.(float64)))
	case TypeASCII:
		s := v.(string)
		copy(dst[:f.Size], s)
		clear(dst[len(s):f.Size])
	case TypeBytes:
		copy(dst[:f.Size], v.([]byte))
	case TypeVarBytes:
		return copy(dst, v.([]byte))
	}
	return f.Width()
}
