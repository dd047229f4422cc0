package errors

import (
	sterrors "errors"
	"fmt"
)

// Kind classifies every error the core returns so bindings can map it onto a
// protocol-level response (UDS negative response code, SOVD error document).
type Kind uint8

const (
	KindNone Kind = iota
	DuplicateIdentifier
	InvalidConfiguration
	NotFound
	OperationBusy
	InvalidTransition
	MalformedPayload
	SchemaViolation
	AllocationFailure
	HandlerFailure
)

var kindNames = [...]string{
	KindNone:             "none",
	DuplicateIdentifier:  "duplicate_identifier",
	InvalidConfiguration: "invalid_configuration",
	NotFound:             "not_found",
	OperationBusy:        "operation_busy",
	InvalidTransition:    "invalid_transition",
	MalformedPayload:     "malformed_payload",
	SchemaViolation:      "schema_violation",
	AllocationFailure:    "allocation_failure",
	HandlerFailure:       "handler_failure",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

var (
	ErrDuplicateIdentifier  = sterrors.New("diagflow: duplicate identifier")
	ErrInvalidConfiguration = sterrors.New("diagflow: invalid configuration")
	ErrNotFound             = sterrors.New("diagflow: identifier not found")
	ErrOperationBusy        = sterrors.New("diagflow: operation busy")
	ErrInvalidTransition    = sterrors.New("diagflow: invalid transition")
	ErrMalformedPayload     = sterrors.New("diagflow: malformed payload")
	ErrSchemaViolation      = sterrors.New("diagflow: schema violation")
	ErrAllocationFailure    = sterrors.New("diagflow: arena exhausted")
	ErrHandlerFailure       = sterrors.New("diagflow: handler failed")
)

// Derived sentinels. Each one matches its own text and, through Unwrap, the
// kind sentinel it belongs to.
var (
	ErrHandlerRequired    = derive(ErrInvalidConfiguration, "handler is required")
	ErrIdentifierRequired = derive(ErrInvalidConfiguration, "identifier is required")
	ErrEntityRequired     = derive(ErrInvalidConfiguration, "entity is required")
	ErrArenaRequired      = derive(ErrInvalidConfiguration, "arena is required")
	ErrSchemaRequired     = derive(ErrInvalidConfiguration, "record schema is required")
	ErrBuilderConsumed    = derive(ErrInvalidConfiguration, "builder already built")
	ErrKindMismatch       = derive(ErrInvalidConfiguration, "identifier resolves to a different handler kind")
	ErrRegistryClosed     = derive(ErrNotFound, "registry closed")
	ErrNotWritable        = derive(ErrInvalidTransition, "resource is read-only")
	ErrUnsupported        = derive(ErrInvalidTransition, "handler does not support this request")
	ErrConfigRequired     = derive(ErrInvalidConfiguration, "configuration is required")
	ErrLoggerRequired     = derive(ErrInvalidConfiguration, "logger is required")
)

var sentinels = map[Kind]error{
	DuplicateIdentifier:  ErrDuplicateIdentifier,
	InvalidConfiguration: ErrInvalidConfiguration,
	NotFound:             ErrNotFound,
	OperationBusy:        ErrOperationBusy,
	InvalidTransition:    ErrInvalidTransition,
	MalformedPayload:     ErrMalformedPayload,
	SchemaViolation:      ErrSchemaViolation,
	AllocationFailure:    ErrAllocationFailure,
	HandlerFailure:       ErrHandlerFailure,
}

type derivedError struct {
	parent error
	msg    string
}

func derive(parent error, msg string) error {
	return &derivedError{parent: parent, msg: "diagflow: " + msg}
}

func (e *derivedError) Error() string { return e.msg }
func (e *derivedError) Unwrap() error { return e.parent }

// Sentinel returns the kind sentinel for k, or nil for KindNone.
func Sentinel(k Kind) error {
	return sentinels[k]
}

// DiagnosticError attaches the failing identifier and operation to an error of
// a known kind.
type DiagnosticError struct {
	Kind       Kind
	Identifier string
	Op         string
	Err        error
}

func (e *DiagnosticError) Error() string {
	msg := "diagflow: " + e.Kind.String()
	if e.Op != "" {
		msg += " during " + e.Op
	}
	if e.Identifier != "" {
		msg += " on " + e.Identifier
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the cause so errors.Is matches
// either.
func (e *DiagnosticError) Unwrap() []error {
	out := make([]error, 0, 2)
	if s := Sentinel(e.Kind); s != nil {
		out = append(out, s)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// New builds a DiagnosticError. A nil cause is allowed.
func New(kind Kind, op, identifier string, cause error) error {
	return &DiagnosticError{Kind: kind, Identifier: identifier, Op: op, Err: cause}
}

// Wrap attributes err to an identifier and operation, keeping the kind already
// carried by err. Errors without a kind are classified as HandlerFailure.
func Wrap(err error, op, identifier string) error {
	if err == nil {
		return nil
	}
	var de *DiagnosticError
	if sterrors.As(err, &de) && de.Identifier != "" {
		return err
	}
	return &DiagnosticError{Kind: kindOrFailure(err), Identifier: identifier, Op: op, Err: err}
}

// KindOf reports the kind carried by err. Nil maps to KindNone and errors that
// match no sentinel map to HandlerFailure.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	return kindOrFailure(err)
}

func kindOrFailure(err error) Kind {
	var de *DiagnosticError
	if sterrors.As(err, &de) {
		return de.Kind
	}
	for k := DuplicateIdentifier; k <= HandlerFailure; k++ {
		if sterrors.Is(err, sentinels[k]) {
			return k
		}
	}
	return HandlerFailure
}

// ConfigValidationError wraps configuration problems detected by Config.Validate.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return "diagflow: invalid configuration: " + e.Err.Error()
}

func (e ConfigValidationError) Unwrap() []error {
	return []error{ErrInvalidConfiguration, e.Err}
}

// NewConfigValidationError returns nil when err is nil.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}
