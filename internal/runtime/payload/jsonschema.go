package payload

import (
	"fmt"
	"math"
)

// JSONSchema derives a JSON Schema (draft 2020-12) describing the document
// form of s. Resources that declare a record but no explicit schema are
// validated against it.
func (s *Schema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.fields))
	required := make([]any, 0, len(s.fields))
	for _, f := range s.fields {
		props[f.Name] = fieldJSONSchema(f)
		required = append(required, f.Name)
	}
	return map[string]any{
		"$schema":              "https://json-schema.org/draft/2020-12/schema",
		"title":                s.name,
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

func fieldJSONSchema(f Field) map[string]any {
	switch f.Type {
	case TypeBool:
		return map[string]any{"type": "boolean"}
	case TypeUint8:
		return intRange(0, math.MaxUint8)
	case TypeUint16:
		return intRange(0, math.MaxUint16)
	case TypeUint32:
		return intRange(0, math.MaxUint32)
	case TypeUint64:
		return map[string]any{"type": "integer", "minimum": 0, "maximum": uint64(math.MaxUint64)}
	case TypeInt8:
		return intRange(math.MinInt8, math.MaxInt8)
	case TypeInt16:
		return intRange(math.MinInt16, math.MaxInt16)
	case TypeInt32:
		return intRange(math.MinInt32, math.MaxInt32)
	case TypeInt64:
		return intRange(math.MinInt64, math.MaxInt64)
	case TypeFloat32, TypeFloat64:
		return map[string]any{"type": "number"}
	case TypeASCII:
		return map[string]any{"type": "string", "maxLength": f.Size, "pattern": `^[\x00-\x7F]*$`}
	case TypeBytes:
		return map[string]any{"type": "string", "pattern": fmt.Sprintf("^(?:[0-9a-fA-F]{2}){%d}$", f.Size)}
	default:
		return map[string]any{"type": "string", "pattern": "^(?:[0-9a-fA-F]{2})*$"}
	}
}

func intRange(lo, hi int64) map[string]any {
	return map[string]any{"type": "integer", "minimum": lo, "maximum": hi}
}
