// Package schema enforces the JSON Schema attached to a SOVD resource at
// registration time.
package schema

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	errspkg "github.com/drblury/diagflow/internal/runtime/errors"
	jsoncodec "github.com/drblury/diagflow/internal/runtime/jsoncodec"
	"github.com/drblury/diagflow/internal/runtime/payload"
)

// Validator checks documents against one compiled schema.
type Validator struct {
	ref    string
	schema *jsonschema.Schema
}

// Compile builds a Validator from raw JSON Schema text. ref names the schema
// in error messages, typically the resource identifier.
func Compile(ref string, raw []byte) (*Validator, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: empty schema for %s", errspkg.ErrInvalidConfiguration, ref)
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	if err := compiler.AddResource("schema.json", bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("%w: schema for %s: %v", errspkg.ErrInvalidConfiguration, ref, err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("%w: schema for %s: %v", errspkg.ErrInvalidConfiguration, ref, err)
	}
	return &Validator{ref: ref, schema: compiled}, nil
}

// FromRecordSchema compiles the JSON Schema derived from a record descriptor.
func FromRecordSchema(ref string, s *payload.Schema) (*Validator, error) {
	if s == nil {
		return nil, errspkg.ErrSchemaRequired
	}
	raw, err := jsoncodec.Marshal(s.JSONSchema())
	if err != nil {
		return nil, fmt.Errorf("%w: schema for %s: %v", errspkg.ErrInvalidConfiguration, ref, err)
	}
	return Compile(ref, raw)
}

// Ref returns the name the validator was compiled under.
func (v *Validator) Ref() string { return v.ref }

// Validate checks a decoded document. Documents should come from
// payload.ParseDocument so numbers arrive as json.Number.
func (v *Validator) Validate(doc payload.Document) error {
	if v == nil || v.schema == nil {
		return nil
	}
	if err := v.schema.Validate(map[string]any(doc)); err != nil {
		return &ViolationError{Ref: v.ref, Violations: collectViolations(err)}
	}
	return nil
}

// Violation is one failed schema keyword.
type Violation struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// ViolationError lists every violation found in a document.
type ViolationError struct {
	Ref        string
	Violations []Violation
}

func (e *ViolationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		if v.Field != "" {
			parts = append(parts, v.Field+": "+v.Message)
			continue
		}
		parts = append(parts, v.Message)
	}
	return fmt.Sprintf("diagflow: schema violation for %s: %s", e.Ref, strings.Join(parts, "; "))
}

func (e *ViolationError) Unwrap() error { return errspkg.ErrSchemaViolation }

func collectViolations(err error) []Violation {
	validationErr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []Violation{{Message: err.Error()}}
	}
	var out []Violation
	walkValidationError(validationErr, &out)
	return out
}

func walkValidationError(err *jsonschema.ValidationError, out *[]Violation) {
	if len(err.Causes) == 0 {
		*out = append(*out, Violation{
			Field:   strings.TrimPrefix(err.InstanceLocation, "/"),
			Message: err.Message,
		})
		return
	}
	for _, cause := range err.Causes {
		walkValidationError(cause, out)
	}
}
