// Package payload bridges raw byte sequences, declared structured records and
// JSON-like documents.
//
// A Schema is an explicit, ordered field descriptor built once at registration
// time. Every conversion in this package walks that descriptor; nothing relies
// on runtime type introspection of user structs.
//
// Binary layout is big-endian and packed in declaration order, which matches
// the data-identifier layouts used by UDS ReadDataByIdentifier and
// WriteDataByIdentifier.
package payload

import (
	"fmt"
	"strings"

	errspkg "github.com/drblury/diagflow/internal/runtime/errors"
)

// Type is the semantic type of a record field.
type Type uint8

const (
	TypeInvalid Type = iota
	TypeBool
	TypeUint8
	TypeUint16
	TypeUint32
	TypeUint64
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt64
	TypeFloat32
	TypeFloat64
	// TypeBytes is a fixed-size opaque byte block.
	TypeBytes
	// TypeASCII is a fixed-size text field, zero padded on encode.
	TypeASCII
	// TypeVarBytes consumes the rest of the buffer and must be the last field.
	TypeVarBytes
)

var typeNames = map[Type]string{
	TypeBool:     "bool",
	TypeUint8:    "uint8",
	TypeUint16:   "uint16",
	TypeUint32:   "uint32",
	TypeUint64:   "uint64",
	TypeInt8:     "int8",
	TypeInt16:    "int16",
	TypeInt32:    "int32",
	TypeInt64:    "int64",
	TypeFloat32:  "float32",
	TypeFloat64:  "float64",
	TypeBytes:    "bytes",
	TypeASCII:    "ascii",
	TypeVarBytes: "varbytes",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// fixedWidth returns the encoded width of scalar types and zero otherwise.
func (t Type) fixedWidth() int {
	switch t {
	case TypeBool, TypeUint8, TypeInt8:
		return 1
	case TypeUint16, TypeInt16:
		return 2
	case TypeUint32, TypeInt32, TypeFloat32:
		return 4
	case TypeUint64, TypeInt64, TypeFloat64:
		return 8
	default:
		return 0
	}
}

// Field declares one record member.
type Field struct {
	Name string
	Type Type
	// Size is only read for TypeBytes and TypeASCII.
	Size int
}

// Width returns the encoded size of the field; zero for TypeVarBytes.
func (f Field) Width() int {
	switch f.Type {
	case TypeBytes, TypeASCII:
		return f.Size
	default:
		return f.Type.fixedWidth()
	}
}

func Bool(name string) Field    { return Field{Name: name, Type: TypeBool} }
func Uint8(name string) Field   { return Field{Name: name, Type: TypeUint8} }
func Uint16(name string) Field  { return Field{Name: name, Type: TypeUint16} }
func Uint32(name string) Field  { return Field{Name: name, Type: TypeUint32} }
func Uint64(name string) Field  { return Field{Name: name, Type: TypeUint64} }
func Int8(name string) Field    { return Field{Name: name, Type: TypeInt8} }
func Int16(name string) Field   { return Field{Name: name, Type: TypeInt16} }
func Int32(name string) Field   { return Field{Name: name, Type: TypeInt32} }
func Int64(name string) Field   { return Field{Name: name, Type: TypeInt64} }
func Float32(name string) Field { return Field{Name: name, Type: TypeFloat32} }
func Float64(name string) Field { return Field{Name: name, Type: TypeFloat64} }

// Bytes declares a fixed-size byte block of size bytes.
func Bytes(name string, size int) Field { return Field{Name: name, Type: TypeBytes, Size: size} }

// ASCII declares a fixed-size text field such as a VIN.
func ASCII(name string, size int) Field { return Field{Name: name, Type: TypeASCII, Size: size} }

// VarBytes declares a trailing variable-length byte block.
func VarBytes(name string) Field { return Field{Name: name, Type: TypeVarBytes} }

// Schema is an immutable, validated field list.
type Schema struct {
	name    string
	fields  []Field
	index   map[string]int
	minSize int
	tail    bool
}

// NewSchema validates the field list. Names must be unique and non-empty,
// fixed blocks need a positive size and only the last field may be VarBytes.
func NewSchema(name string, fields ...Field) (*Schema, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: schema %q declares no fields", errspkg.ErrInvalidConfiguration, name)
	}

	s := &Schema{
		name:   name,
		fields: make([]Field, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	copy(s.fields, fields)

	for i, f := range s.fields {
		if strings.TrimSpace(f.Name) == "" {
			return nil, fmt.Errorf("%w: schema %q field %d has no name", errspkg.ErrInvalidConfiguration, name, i)
		}
		if _, dup := s.index[f.Name]; dup {
			return nil, fmt.Errorf("%w: schema %q declares field %q twice", errspkg.ErrInvalidConfiguration, name, f.Name)
		}
		s.index[f.Name] = i

		switch f.Type {
		case TypeBytes, TypeASCII:
			if f.Size <= 0 {
				return nil, fmt.Errorf("%w: schema %q field %q needs a positive size", errspkg.ErrInvalidConfiguration, name, f.Name)
			}
		case TypeVarBytes:
			if i != len(s.fields)-1 {
				return nil, fmt.Errorf("%w: schema %q field %q: varbytes must be the last field", errspkg.ErrInvalidConfiguration, name, f.Name)
			}
			s.tail = true
		case TypeInvalid:
			return nil, fmt.Errorf("%w: schema %q field %q has no type", errspkg.ErrInvalidConfiguration, name, f.Name)
		default:
			if f.Type.fixedWidth() == 0 {
				return nil, fmt.Errorf("%w: schema %q field %q has unknown type %s", errspkg.ErrInvalidConfiguration, name, f.Name, f.Type)
			}
		}
		s.minSize += f.Width()
	}

	return s, nil
}

// MustSchema is NewSchema for package-level declarations; it panics on error.
func MustSchema(name string, fields ...Field) *Schema {
	s, err := NewSchema(name, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the schema name.
func (s *Schema) Name() string { return s.name }

// Fields returns a copy of the declared fields.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Len returns the number of fields.
func (s *Schema) Len() int { return len(s.fields) }

// MinSize is the smallest valid encoding in bytes.
func (s *Schema) MinSize() int { return s.minSize }

// HasTail reports whether the last field is VarBytes.
func (s *Schema) HasTail() bool { return s.tail }

// Field looks a field up by name.
func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}
