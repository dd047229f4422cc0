package diagflow

import (
	runtimepkg "github.com/drblury/diagflow/internal/runtime"
	arenapkg "github.com/drblury/diagflow/internal/runtime/arena"
	configpkg "github.com/drblury/diagflow/internal/runtime/config"
	errspkg "github.com/drblury/diagflow/internal/runtime/errors"
	handlerpkg "github.com/drblury/diagflow/internal/runtime/handlers"
	idspkg "github.com/drblury/diagflow/internal/runtime/ids"
	jsoncodec "github.com/drblury/diagflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/diagflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/diagflow/internal/runtime/metadata"
	operationpkg "github.com/drblury/diagflow/internal/runtime/operation"
	payloadpkg "github.com/drblury/diagflow/internal/runtime/payload"
	schemapkg "github.com/drblury/diagflow/internal/runtime/schema"
)

type (
	Config = configpkg.Config
	Arena  = arenapkg.Arena
	Entity = runtimepkg.Entity

	Builder            = runtimepkg.Builder
	BuilderOption      = runtimepkg.BuilderOption
	Registry           = runtimepkg.Registry
	Registration       = runtimepkg.Registration
	RegistrationInfo   = runtimepkg.RegistrationInfo
	Description        = runtimepkg.Description
	HandlerKind        = runtimepkg.HandlerKind
	ResourceOptions    = runtimepkg.ResourceOptions
	OperationOptions   = runtimepkg.OperationOptions
	ResourceAdapter    = runtimepkg.ResourceAdapter
	LegacyAdapter      = runtimepkg.LegacyAdapter
	Dispatcher         = runtimepkg.Dispatcher
	DispatcherOption   = runtimepkg.DispatcherOption
	DispatchMetrics    = runtimepkg.DispatchMetrics
	HandlerStats       = runtimepkg.HandlerStats
	StatsSnapshot      = runtimepkg.StatsSnapshot
	ErrorDocument      = runtimepkg.ErrorDocument
	RoutineSubFunction = runtimepkg.RoutineSubFunction

	// Dispatch hooks
	CallContext   = runtimepkg.CallContext
	DispatchHooks = runtimepkg.DispatchHooks

	// Handler capability sets
	ResourceReader   = handlerpkg.ResourceReader
	ResourceWriter   = handlerpkg.ResourceWriter
	PutRequest       = handlerpkg.PutRequest
	OperationHandler = handlerpkg.OperationHandler
	OperationFunc    = handlerpkg.OperationFunc
	ReadHandler      = handlerpkg.ReadHandler
	WriteHandler     = handlerpkg.WriteHandler
	RecordReader     = handlerpkg.RecordReader
	RecordWriter     = handlerpkg.RecordWriter
	RoutineHandler   = handlerpkg.RoutineHandler
	Releaser         = handlerpkg.Releaser
	ReadFunc         = handlerpkg.ReadFunc
	WriteFunc        = handlerpkg.WriteFunc
	RecordReadFunc   = handlerpkg.RecordReadFunc
	RecordWriteFunc  = handlerpkg.RecordWriteFunc
	RoutineFunc      = handlerpkg.RoutineFunc
	Routines         = handlerpkg.Routines
	Resource         = handlerpkg.Resource
	RequestContext   = handlerpkg.RequestContext
	Action           = handlerpkg.Action

	// Operations
	Execution           = operationpkg.Execution
	OperationState      = operationpkg.State
	InvocationPolicy    = operationpkg.Policy
	OperationInfo       = operationpkg.Info
	OperationSnapshot   = operationpkg.Snapshot
	OperationRuntime    = operationpkg.Runtime
	OperationTransition = operationpkg.Transition

	// Payloads
	Schema           = payloadpkg.Schema
	Field            = payloadpkg.Field
	Record           = payloadpkg.Record
	Document         = payloadpkg.Document
	SchemaValidator  = schemapkg.Validator
	SchemaViolations = schemapkg.ViolationError

	Metadata = metadatapkg.Metadata

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	ErrorKind             = errspkg.Kind
	DiagnosticError       = errspkg.DiagnosticError
	ConfigValidationError = errspkg.ConfigValidationError
)

var (
	NewArena             = arenapkg.New
	NewBuilder           = runtimepkg.NewBuilder
	NewLegacyBuilder     = runtimepkg.NewLegacyBuilder
	NewBuilderFromConfig = runtimepkg.NewBuilderFromConfig
	NewDispatcher        = runtimepkg.NewDispatcher
	NewDispatchMetrics   = runtimepkg.NewDispatchMetrics
	NewMessageHandler    = runtimepkg.NewMessageHandler
	IntrospectionHandler = runtimepkg.IntrospectionHandler
	ValidateConfig       = configpkg.ValidateConfig

	WithLogger  = runtimepkg.WithLogger
	WithMetrics = runtimepkg.WithMetrics
	WithConfig  = runtimepkg.WithConfig

	WithHooks          = runtimepkg.WithHooks
	WithTracerProvider = runtimepkg.WithTracerProvider
	WithPayloadLogging = runtimepkg.WithPayloadLogging

	LoggingHooks  = runtimepkg.LoggingHooks
	MetricsHooks  = runtimepkg.MetricsHooks
	AlertingHooks = runtimepkg.AlertingHooks

	UDSIdentifier      = runtimepkg.UDSIdentifier
	ParseUDSIdentifier = runtimepkg.ParseUDSIdentifier

	// Record schemas
	NewSchema     = payloadpkg.NewSchema
	MustSchema    = payloadpkg.MustSchema
	Bool          = payloadpkg.Bool
	Uint8         = payloadpkg.Uint8
	Uint16        = payloadpkg.Uint16
	Uint32        = payloadpkg.Uint32
	Uint64        = payloadpkg.Uint64
	Int8          = payloadpkg.Int8
	Int16         = payloadpkg.Int16
	Int32         = payloadpkg.Int32
	Int64         = payloadpkg.Int64
	Float32       = payloadpkg.Float32
	Float64       = payloadpkg.Float64
	Bytes         = payloadpkg.Bytes
	ASCII         = payloadpkg.ASCII
	VarBytes      = payloadpkg.VarBytes
	DecodeRecord  = payloadpkg.Decode
	EncodeRecord  = payloadpkg.Encode
	ToDocument    = payloadpkg.ToDocument
	FromDocument  = payloadpkg.FromDocument
	ParseDocument = payloadpkg.ParseDocument
	ToStruct      = payloadpkg.ToStruct
	FromStruct    = payloadpkg.FromStruct
	CompileSchema = schemapkg.Compile

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal
	Encode        = jsoncodec.Encode
	Decode        = jsoncodec.Decode

	KindOf = errspkg.KindOf

	ErrDuplicateIdentifier  = errspkg.ErrDuplicateIdentifier
	ErrInvalidConfiguration = errspkg.ErrInvalidConfiguration
	ErrNotFound             = errspkg.ErrNotFound
	ErrOperationBusy        = errspkg.ErrOperationBusy
	ErrInvalidTransition    = errspkg.ErrInvalidTransition
	ErrMalformedPayload     = errspkg.ErrMalformedPayload
	ErrSchemaViolation      = errspkg.ErrSchemaViolation
	ErrAllocationFailure    = errspkg.ErrAllocationFailure
	ErrHandlerFailure       = errspkg.ErrHandlerFailure
	ErrHandlerRequired      = errspkg.ErrHandlerRequired
	ErrEntityRequired       = errspkg.ErrEntityRequired
	ErrBuilderConsumed      = errspkg.ErrBuilderConsumed
	ErrKindMismatch         = errspkg.ErrKindMismatch
	ErrRegistryClosed       = errspkg.ErrRegistryClosed
	ErrNotWritable          = errspkg.ErrNotWritable
	ErrUnsupported          = errspkg.ErrUnsupported
	ErrConfigRequired       = errspkg.ErrConfigRequired
	ErrIdentifierRequired   = errspkg.ErrIdentifierRequired
	ErrArenaRequired        = errspkg.ErrArenaRequired
	ErrSchemaRequired       = errspkg.ErrSchemaRequired
	ErrLoggerRequired       = errspkg.ErrLoggerRequired

	NewConfigValidationError = errspkg.NewConfigValidationError

	NewSlogServiceLogger      = loggingpkg.NewSlogServiceLogger
	NewWatermillServiceLogger = loggingpkg.NewWatermillServiceLogger
	NopLogger                 = loggingpkg.NopLogger
	NewWatermillAdapter       = loggingpkg.NewWatermillAdapter

	NewMetadata = metadatapkg.New

	CreateULID = idspkg.CreateULID

	WithRequestContext = handlerpkg.WithRequestContext
	RequestFromContext = handlerpkg.RequestFromContext
	LoggerFromContext  = handlerpkg.LoggerFromContext
)

// Dispatch actions carried in MetadataKeyAction.
const (
	ActionRead           = handlerpkg.ActionRead
	ActionWrite          = handlerpkg.ActionWrite
	ActionRoutineStart   = handlerpkg.ActionRoutineStart
	ActionRoutineStop    = handlerpkg.ActionRoutineStop
	ActionRoutineResults = handlerpkg.ActionRoutineResults
	ActionGet            = handlerpkg.ActionGet
	ActionPut            = handlerpkg.ActionPut
	ActionExecute        = handlerpkg.ActionExecute
	ActionStatus         = handlerpkg.ActionStatus
	ActionResume         = handlerpkg.ActionResume
	ActionStop           = handlerpkg.ActionStop
	ActionReset          = handlerpkg.ActionReset
	ActionInfo           = handlerpkg.ActionInfo
)

// Handler kinds.
const (
	KindResource         = runtimepkg.KindResource
	KindWritableResource = runtimepkg.KindWritableResource
	KindOperation        = runtimepkg.KindOperation
	KindRead             = runtimepkg.KindRead
	KindWrite            = runtimepkg.KindWrite
	KindSerializedRead   = runtimepkg.KindSerializedRead
	KindSerializedWrite  = runtimepkg.KindSerializedWrite
	KindRoutine          = runtimepkg.KindRoutine
)

// Operation states and invocation policies.
const (
	Idle      = operationpkg.Idle
	Executing = operationpkg.Executing
	Suspended = operationpkg.Suspended
	Completed = operationpkg.Completed
	Stopped   = operationpkg.Stopped
	Failed    = operationpkg.Failed

	SynchronousInvocation = operationpkg.SynchronousInvocation
	AsyncInvocation       = operationpkg.AsyncInvocation
)

// RoutineControl sub-functions.
const (
	RoutineStart          = runtimepkg.RoutineStart
	RoutineStop           = runtimepkg.RoutineStop
	RoutineRequestResults = runtimepkg.RoutineRequestResults
)

// Error kinds.
const (
	KindNone             = errspkg.KindNone
	DuplicateIdentifier  = errspkg.DuplicateIdentifier
	InvalidConfiguration = errspkg.InvalidConfiguration
	NotFound             = errspkg.NotFound
	OperationBusy        = errspkg.OperationBusy
	InvalidTransition    = errspkg.InvalidTransition
	MalformedPayload     = errspkg.MalformedPayload
	SchemaViolation      = errspkg.SchemaViolation
	AllocationFailure    = errspkg.AllocationFailure
	HandlerFailure       = errspkg.HandlerFailure
)

// Metadata keys - use these constants for standard metadata fields.
const (
	MetadataKeyCorrelationID = handlerpkg.MetadataKeyCorrelationID
	MetadataKeyIdentifier    = handlerpkg.MetadataKeyIdentifier
	MetadataKeyAction        = handlerpkg.MetadataKeyAction
	MetadataKeyStatus        = handlerpkg.MetadataKeyStatus
	MetadataKeyError         = handlerpkg.MetadataKeyError
	MetadataKeyExecutionID   = handlerpkg.MetadataKeyExecutionID
	MetadataKeyContentType   = handlerpkg.MetadataKeyContentType
	MetadataKeyTraceID       = handlerpkg.MetadataKeyTraceID
	MetadataKeySpanID        = handlerpkg.MetadataKeySpanID

	StatusOK = handlerpkg.StatusOK

	ContentTypeJSON     = handlerpkg.ContentTypeJSON
	ContentTypeProtobuf = handlerpkg.ContentTypeProtobuf
)
