package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	arenapkg "github.com/drblury/diagflow/internal/runtime/arena"
	errspkg "github.com/drblury/diagflow/internal/runtime/errors"
	handlerpkg "github.com/drblury/diagflow/internal/runtime/handlers"
	"github.com/drblury/diagflow/internal/runtime/payload"
	schemapkg "github.com/drblury/diagflow/internal/runtime/schema"
)

// ResourceOptions describe a SOVD data resource at registration time.
type ResourceOptions struct {
	// Category groups resources in introspection output, e.g. "identData".
	Category string
	// Schema declares the record the resource reads and writes. Put requests
	// are converted into it before the handler runs.
	Schema *payload.Schema
	// JSONSchema overrides the schema derived from Schema for Put validation.
	JSONSchema []byte
}

// ResourceAdapter serves Get and Put for one resource. Calls on the same
// adapter are serialized.
type ResourceAdapter struct {
	id        string
	reader    handlerpkg.ResourceReader
	writer    handlerpkg.ResourceWriter
	schema    *payload.Schema
	validator *schemapkg.Validator
	arena     *arenapkg.Arena

	mu sync.Mutex
}

func newResourceAdapter(id string, reader handlerpkg.ResourceReader, writer handlerpkg.ResourceWriter, opts ResourceOptions, a *arenapkg.Arena) (*ResourceAdapter, error) {
	adapter := &ResourceAdapter{
		id:     id,
		reader: reader,
		writer: writer,
		schema: opts.Schema,
		arena:  a,
	}

	var err error
	switch {
	case len(opts.JSONSchema) > 0:
		adapter.validator, err = schemapkg.Compile(id, opts.JSONSchema)
	case opts.Schema != nil:
		adapter.validator, err = schemapkg.FromRecordSchema(id, opts.Schema)
	}
	if err != nil {
		return nil, err
	}
	return adapter, nil
}

// Identifier returns the resource identifier.
func (r *ResourceAdapter) Identifier() string { return r.id }

// Writable reports whether Put is accepted.
func (r *ResourceAdapter) Writable() bool { return r.writer != nil }

// Schema returns the declared record schema, or nil.
func (r *ResourceAdapter) Schema() *payload.Schema { return r.schema }

// Get reads the resource and converts the handler's record into a document.
func (r *ResourceAdapter) Get(ctx context.Context) (payload.Document, error) {
	rec, err := r.read(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := payload.ToDocument(rec)
	if err != nil {
		return nil, errspkg.Wrap(err, "get", r.id)
	}
	return doc, nil
}

// GetJSON reads the resource and returns its document as JSON placed in the
// arena.
func (r *ResourceAdapter) GetJSON(ctx context.Context) ([]byte, error) {
	doc, err := r.Get(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := payload.MarshalDocument(doc)
	if err != nil {
		return nil, errspkg.Wrap(err, "get", r.id)
	}
	return r.place("get", raw)
}

// GetProto reads the resource and returns its record as a serialized
// google.protobuf.Struct placed in the arena.
func (r *ResourceAdapter) GetProto(ctx context.Context) ([]byte, error) {
	rec, err := r.read(ctx)
	if err != nil {
		return nil, err
	}
	st, err := payload.ToStruct(rec)
	if err != nil {
		return nil, errspkg.Wrap(err, "get", r.id)
	}
	raw, err := proto.MarshalOptions{Deterministic: true}.Marshal(st)
	if err != nil {
		return nil, errspkg.New(errspkg.MalformedPayload, "get", r.id, err)
	}
	return r.place("get", raw)
}

func (r *ResourceAdapter) read(ctx context.Context) (payload.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var rec payload.Record
	err := safeCall(func() error {
		var err error
		rec, err = r.reader.Get(ctx)
		return err
	})
	if err != nil {
		return payload.Record{}, errspkg.Wrap(err, "get", r.id)
	}
	if err := r.checkRecord(rec); err != nil {
		return payload.Record{}, errspkg.New(errspkg.MalformedPayload, "get", r.id, err)
	}
	return rec, nil
}

func (r *ResourceAdapter) place(op string, raw []byte) ([]byte, error) {
	out, err := r.arena.Copy(raw)
	if err != nil {
		return nil, errspkg.Wrap(err, op, r.id)
	}
	return out, nil
}

// Put writes a request body. With a declared schema the body is converted
// into a record first, from a JSON document or from the record's binary
// encoding, and validated; any failure there returns before the handler runs.
// Without one the raw body is passed through.
func (r *ResourceAdapter) Put(ctx context.Context, raw []byte) error {
	if r.writer == nil {
		return errspkg.New(errspkg.InvalidTransition, "put", r.id, errspkg.ErrNotWritable)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	req := handlerpkg.PutRequest{Raw: raw}
	switch {
	case r.schema != nil:
		rec, err := r.decodeRecord(raw)
		if err != nil {
			return errspkg.Wrap(err, "put", r.id)
		}
		req.Record = &rec
	case r.validator != nil:
		doc, err := payload.ParseDocument(raw)
		if err != nil {
			return errspkg.Wrap(err, "put", r.id)
		}
		if err := r.validator.Validate(doc); err != nil {
			return errspkg.Wrap(err, "put", r.id)
		}
	}

	return r.write(ctx, req)
}

// PutProto writes a body holding a serialized google.protobuf.Struct. It is
// converted and validated like a JSON document; without any schema the body
// is passed through.
func (r *ResourceAdapter) PutProto(ctx context.Context, raw []byte) error {
	if r.writer == nil {
		return errspkg.New(errspkg.InvalidTransition, "put", r.id, errspkg.ErrNotWritable)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	req := handlerpkg.PutRequest{Raw: raw}
	if r.schema != nil || r.validator != nil {
		st := &structpb.Struct{}
		if err := proto.Unmarshal(raw, st); err != nil {
			return errspkg.Wrap(fmt.Errorf("%w: %v", errspkg.ErrMalformedPayload, err), "put", r.id)
		}
		if r.schema != nil {
			rec, err := payload.FromStruct(r.schema, st)
			if err == nil {
				err = r.validateRecord(rec)
			}
			if err != nil {
				return errspkg.Wrap(err, "put", r.id)
			}
			req.Record = &rec
		} else {
			text, err := protojson.Marshal(st)
			if err != nil {
				return errspkg.Wrap(fmt.Errorf("%w: %v", errspkg.ErrMalformedPayload, err), "put", r.id)
			}
			if err := r.validateJSON(text); err != nil {
				return errspkg.Wrap(err, "put", r.id)
			}
		}
	}
	return r.write(ctx, req)
}

func (r *ResourceAdapter) write(ctx context.Context, req handlerpkg.PutRequest) error {
	err := safeCall(func() error {
		return r.writer.Put(ctx, req)
	})
	return errspkg.Wrap(err, "put", r.id)
}

// decodeRecord accepts a JSON object or the binary record encoding. Bodies
// whose first non-blank byte is '{' are treated as JSON.
func (r *ResourceAdapter) decodeRecord(raw []byte) (payload.Record, error) {
	if !looksLikeJSONObject(raw) {
		rec, err := payload.Decode(r.schema, raw)
		if err != nil {
			return payload.Record{}, err
		}
		if err := r.validateRecord(rec); err != nil {
			return payload.Record{}, err
		}
		return rec, nil
	}

	doc, err := payload.ParseDocument(raw)
	if err != nil {
		return payload.Record{}, err
	}
	if err := r.validator.Validate(doc); err != nil {
		return payload.Record{}, err
	}
	return payload.FromDocument(r.schema, doc)
}

// validateRecord checks rec against the validator through its JSON form, so
// records that JSON cannot carry fail as malformed.
func (r *ResourceAdapter) validateRecord(rec payload.Record) error {
	doc, err := payload.ToDocument(rec)
	if err != nil {
		return err
	}
	text, err := payload.MarshalDocument(doc)
	if err != nil {
		return err
	}
	return r.validateJSON(text)
}

func (r *ResourceAdapter) validateJSON(text []byte) error {
	doc, err := payload.ParseDocument(text)
	if err != nil {
		return err
	}
	return r.validator.Validate(doc)
}

func looksLikeJSONObject(raw []byte) bool {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func (r *ResourceAdapter) checkRecord(rec payload.Record) error {
	if rec.IsZero() {
		return errors.New("handler returned an empty record")
	}
	if r.schema != nil && rec.Schema() != r.schema {
		return fmt.Errorf("handler returned record %q, declared %q", rec.Schema().Name(), r.schema.Name())
	}
	return nil
}
