package handlers

// Metadata keys carried by diagnostic requests and replies on a message
// binding. They are reserved and should not be reused for custom headers.
const (
	// MetadataKeyCorrelationID ties a reply to its request.
	MetadataKeyCorrelationID = "correlation_id"

	// MetadataKeyIdentifier names the registered handler a request targets.
	MetadataKeyIdentifier = "diag_identifier"

	// MetadataKeyAction selects the adapter call, see Action.
	MetadataKeyAction = "diag_action"

	// MetadataKeyStatus is "ok" on success or the error kind on failure.
	MetadataKeyStatus = "diag_status"

	// MetadataKeyError carries the error message of a failed request.
	MetadataKeyError = "diag_error"

	// MetadataKeyExecutionID is the operation execution a reply refers to.
	MetadataKeyExecutionID = "diag_execution_id"

	// MetadataKeyContentType selects the document encoding of get and put
	// bodies, see ContentTypeJSON and ContentTypeProtobuf.
	MetadataKeyContentType = "diag_content_type"

	// MetadataKeyTraceID stores the distributed tracing ID.
	MetadataKeyTraceID = "trace_id"

	// MetadataKeySpanID stores the distributed tracing span ID.
	MetadataKeySpanID = "span_id"
)

// StatusOK is the MetadataKeyStatus value of a successful reply.
const StatusOK = "ok"

// Document encodings for MetadataKeyContentType. JSON is the default.
const (
	ContentTypeJSON     = "application/json"
	ContentTypeProtobuf = "application/protobuf"
)

// Action is the dispatch call a request asks for.
type Action string

const (
	ActionRead           Action = "read"
	ActionWrite          Action = "write"
	ActionRoutineStart   Action = "routine_start"
	ActionRoutineStop    Action = "routine_stop"
	ActionRoutineResults Action = "routine_results"
	ActionGet            Action = "get"
	ActionPut            Action = "put"
	ActionExecute        Action = "execute"
	ActionStatus         Action = "status"
	ActionResume         Action = "resume"
	ActionStop           Action = "stop"
	ActionReset          Action = "reset"
	ActionInfo           Action = "info"
)

var knownActions = map[Action]struct{}{
	ActionRead: {}, ActionWrite: {},
	ActionRoutineStart: {}, ActionRoutineStop: {}, ActionRoutineResults: {},
	ActionGet: {}, ActionPut: {},
	ActionExecute: {}, ActionStatus: {}, ActionResume: {}, ActionStop: {}, ActionReset: {}, ActionInfo: {},
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	_, ok := knownActions[a]
	return ok
}
