package payload

import (
	"encoding/json"
	"fmt"
	"strconv"

	"google.golang.org/protobuf/types/known/structpb"

	errspkg "github.com/drblury/diagflow/internal/runtime/errors"
)

// ToStruct renders r as a protobuf Struct for bindings that carry documents
// over protobuf. 64-bit integers are written as decimal strings, following
// the protobuf JSON mapping, so they keep full precision.
func ToStruct(r Record) (*structpb.Struct, error) {
	doc, err := ToDocument(r)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(doc))}
	for _, f := range r.schema.fields {
		out.Fields[f.Name] = structValue(doc[f.Name])
	}
	return out, nil
}

func structValue(v any) *structpb.Value {
	switch n := v.(type) {
	case bool:
		return structpb.NewBoolValue(n)
	case string:
		return structpb.NewStringValue(n)
	case uint8:
		return structpb.NewNumberValue(float64(n))
	case uint16:
		return structpb.NewNumberValue(float64(n))
	case uint32:
		return structpb.NewNumberValue(float64(n))
	case int8:
		return structpb.NewNumberValue(float64(n))
	case int16:
		return structpb.NewNumberValue(float64(n))
	case int32:
		return structpb.NewNumberValue(float64(n))
	case float32:
		return structpb.NewNumberValue(float64(n))
	case float64:
		return structpb.NewNumberValue(n)
	case uint64:
		return structpb.NewStringValue(strconv.FormatUint(n, 10))
	case int64:
		return structpb.NewStringValue(strconv.FormatInt(n, 10))
	default:
		return structpb.NewNullValue()
	}
}

// FromStruct converts a protobuf Struct back into a record of schema s.
func FromStruct(s *Schema, st *structpb.Struct) (Record, error) {
	if s == nil {
		return Record{}, errspkg.ErrSchemaRequired
	}
	if st == nil {
		return Record{}, fmt.Errorf("%w: struct is nil", errspkg.ErrMalformedPayload)
	}
	doc := make(Document, len(st.GetFields()))
	for key, v := range st.GetFields() {
		f, known := s.Field(key)
		switch kind := v.GetKind().(type) {
		case *structpb.Value_BoolValue:
			doc[key] = kind.BoolValue
		case *structpb.Value_NumberValue:
			doc[key] = kind.NumberValue
		case *structpb.Value_StringValue:
			if known && (f.Type == TypeInt64 || f.Type == TypeUint64) {
				doc[key] = json.Number(kind.StringValue)
				continue
			}
			doc[key] = kind.StringValue
		default:
			return Record{}, fmt.Errorf("%w: field %q has unsupported struct value %T", errspkg.ErrMalformedPayload, key, kind)
		}
	}
	return FromDocument(s, doc)
}
