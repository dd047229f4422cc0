// Package handlers declares the capability contracts user code implements to
// serve diagnostic requests. A handler implements only the shape it needs; the
// runtime wraps it in the matching adapter at registration time.
package handlers

import (
	"context"

	errspkg "github.com/drblury/diagflow/internal/runtime/errors"
	"github.com/drblury/diagflow/internal/runtime/operation"
	"github.com/drblury/diagflow/internal/runtime/payload"
)

// ResourceReader serves a read-only SOVD data resource. The runtime converts
// the returned record into a document.
type ResourceReader interface {
	Get(ctx context.Context) (payload.Record, error)
}

// PutRequest is what a writable resource receives. Record is nil when the
// resource declares no record schema; Raw always holds the request body.
type PutRequest struct {
	Raw    []byte
	Record *payload.Record
}

// ResourceWriter serves a writable SOVD data resource.
type ResourceWriter interface {
	ResourceReader
	Put(ctx context.Context, req PutRequest) error
}

// OperationHandler performs the work behind a SOVD operation.
type OperationHandler = operation.Handler

// ReadHandler answers a legacy read request with raw bytes.
type ReadHandler interface {
	Read(ctx context.Context) ([]byte, error)
}

// WriteHandler accepts a legacy write request.
type WriteHandler interface {
	Write(ctx context.Context, data []byte) error
}

// RecordReader answers a legacy read with a structured record that the runtime
// encodes to bytes.
type RecordReader interface {
	ReadRecord(ctx context.Context) (payload.Record, error)
}

// RecordWriter receives a legacy write already decoded into a record.
type RecordWriter interface {
	WriteRecord(ctx context.Context, rec payload.Record) error
}

// RoutineHandler implements the three RoutineControl sub-functions. They are
// independent entry points; the runtime imposes no ordering between them.
type RoutineHandler interface {
	Start(ctx context.Context, req []byte) ([]byte, error)
	Stop(ctx context.Context, req []byte) ([]byte, error)
	RequestResults(ctx context.Context, req []byte) ([]byte, error)
}

// Releaser is implemented by handlers holding resources that must be freed
// when the registry is torn down or a build is discarded.
type Releaser interface {
	Release() error
}

// ReadFunc adapts a function to ReadHandler.
type ReadFunc func(ctx context.Context) ([]byte, error)

func (f ReadFunc) Read(ctx context.Context) ([]byte, error) { return f(ctx) }

// WriteFunc adapts a function to WriteHandler.
type WriteFunc func(ctx context.Context, data []byte) error

func (f WriteFunc) Write(ctx context.Context, data []byte) error { return f(ctx, data) }

// RecordReadFunc adapts a function to RecordReader.
type RecordReadFunc func(ctx context.Context) (payload.Record, error)

func (f RecordReadFunc) ReadRecord(ctx context.Context) (payload.Record, error) { return f(ctx) }

// RecordWriteFunc adapts a function to RecordWriter.
type RecordWriteFunc func(ctx context.Context, rec payload.Record) error

func (f RecordWriteFunc) WriteRecord(ctx context.Context, rec payload.Record) error {
	return f(ctx, rec)
}

// OperationFunc adapts a function to OperationHandler.
type OperationFunc = operation.HandlerFunc

// RoutineFunc is the signature of a single RoutineControl sub-function.
type RoutineFunc func(ctx context.Context, req []byte) ([]byte, error)

// Routines assembles a RoutineHandler from individual functions. Missing
// sub-functions answer with ErrUnsupported.
type Routines struct {
	OnStart   RoutineFunc
	OnStop    RoutineFunc
	OnResults RoutineFunc
}

func (r Routines) Start(ctx context.Context, req []byte) ([]byte, error) {
	return callRoutine(ctx, r.OnStart, req)
}

func (r Routines) Stop(ctx context.Context, req []byte) ([]byte, error) {
	return callRoutine(ctx, r.OnStop, req)
}

func (r Routines) RequestResults(ctx context.Context, req []byte) ([]byte, error) {
	return callRoutine(ctx, r.OnResults, req)
}

func callRoutine(ctx context.Context, f RoutineFunc, req []byte) ([]byte, error) {
	if f == nil {
		return nil, errspkg.ErrUnsupported
	}
	return f(ctx, req)
}

// Resource assembles a resource handler from functions. Without OnPut it
// still satisfies ResourceWriter but rejects writes with ErrNotWritable, so
// register it with WithResource in that case.
type Resource struct {
	OnGet func(ctx context.Context) (payload.Record, error)
	OnPut func(ctx context.Context, req PutRequest) error
}

func (r Resource) Get(ctx context.Context) (payload.Record, error) {
	if r.OnGet == nil {
		return payload.Record{}, errspkg.ErrUnsupported
	}
	return r.OnGet(ctx)
}

func (r Resource) Put(ctx context.Context, req PutRequest) error {
	if r.OnPut == nil {
		return errspkg.ErrNotWritable
	}
	return r.OnPut(ctx, req)
}
