// Package diagflow is a small diagnostic dispatch core for vehicle and device
// diagnostics. It maps identifiers to handlers for SOVD style data resources
// and long running operations, and for UDS style read/write data identifiers
// and routine control, behind one Dispatcher.
//
// Handlers are staged on a Builder against an Entity and a bounded Arena.
// Build validates every registration at once, releases everything it staged
// when a problem is found, and returns an immutable Registry. The Dispatcher
// resolves identifiers, decodes and validates payloads, drives the operation
// state machine and reports failures as *DiagnosticError values carrying an
// ErrorKind. A minimal setup involves creating an Arena, registering handlers,
// calling Build and serving requests through a Dispatcher.
//
// # Payloads
//
// Resources carry fixed layout records described by a Schema. A record can be
// written as its exact binary encoding or as a JSON object, and is read back
// as a Document. Documents are validated against JSON Schema before they reach
// a handler.
//
// # Operations
//
// Operations run synchronously or asynchronously and move through the idle,
// executing, suspended, completed, stopped and failed states. Only one
// execution of an operation is active at a time.
//
// # Bindings
//
// NewMessageHandler serves requests arriving as Watermill messages and replies
// with the status and correlation ID in the message metadata.
// IntrospectionHandler exposes the registry description over HTTP.
//
// # Observability
//
// DispatchMetrics publishes Prometheus collectors for requests, operation
// transitions and arena usage. When TracingEnabled is set every dispatch call
// runs in an OpenTelemetry span. DispatchHooks add custom logging, metrics or
// alerting around each call.
package diagflow
