/*
Package runtime provides the core diagnostic dispatch infrastructure for diagflow.

# Architecture Overview

The runtime package maps diagnostic identifiers to handler adapters. A Builder
stages handlers against an Entity and an arena, Build turns them into an
immutable Registry, and a Dispatcher serves read, write, routine, resource and
operation requests against it. Bindings (for example a Watermill message
handler) sit on top of the Dispatcher and never touch handlers directly.

# Package Structure

The runtime package is organized into the following components:

## Registration (builder.go, registry.go, registration.go)

The Builder collects registrations and reports every configuration problem at
once when Build is called:
  - Identifiers must be unique within one build
  - Staged handlers are released in reverse order when Build fails
  - A Builder is consumed by Build, successful or not

The Registry resolves identifiers and releases handlers on Close.

## Adapters (resource.go, legacy.go)

  - ResourceAdapter: data resources exposed as JSON documents and binary records
  - LegacyAdapter: UDS style read/write data identifiers and routine control

Operations are served by operation.Runtime, which owns the operation state machine.

## Dispatch (dispatch.go, hooks.go)

The Dispatcher wraps each call in an OpenTelemetry span, a request scoped
logger and the configured DispatchHooks. Every error it returns is a
*errors.DiagnosticError carrying the kind, operation and identifier.

## Stats & Monitoring (models.go, metrics.go)

Per handler statistics and Prometheus collectors:
  - Call counts, in-flight high water mark
  - Latency percentiles (p50, p95, p99)
  - Error breakdown by kind
  - Operation state transitions and arena usage

## Bindings (binding.go, webui.go)

  - NewMessageHandler: serves requests arriving as Watermill messages
  - IntrospectionHandler: HTTP API describing the registry

# Sub-packages

  - arena/: Bounded byte arena for request scoped buffers
  - config/: Registry configuration with validation
  - errors/: Error kinds, sentinels and DiagnosticError
  - handlers/: Handler capability interfaces and request context
  - ids/: ULID generation for replies and executions
  - jsoncodec/: JSON marshaling utilities
  - logging/: Logger interface and adapters
  - metadata/: Request metadata utilities
  - operation/: Long running operation state machine
  - payload/: Record schemas with binary and JSON codecs
  - schema/: JSON Schema validation for resource documents

# Usage Example

	a := arena.New(4096)
	reg, err := runtime.NewBuilder(&runtime.Entity{Name: "engine"}, a).
		WithResource("identData/vin", vinReader, runtime.ResourceOptions{Schema: vinSchema}).
		WithOperation("selftest", selfTest, runtime.OperationOptions{Policy: operation.AsyncInvocation}).
		WithRead("0xF190", readVIN).
		Build()
	if err != nil {
		return err
	}
	defer reg.Close(ctx)

	d, err := runtime.NewDispatcher(reg)
	if err != nil {
		return err
	}
	vin, err := d.ReadData(ctx, "0xF190")
*/
package runtime
