package runtime

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	arenapkg "github.com/drblury/diagflow/internal/runtime/arena"
	errspkg "github.com/drblury/diagflow/internal/runtime/errors"
	handlerpkg "github.com/drblury/diagflow/internal/runtime/handlers"
	"github.com/drblury/diagflow/internal/runtime/payload"
)

// RoutineSubFunction is the RoutineControl sub-function byte.
type RoutineSubFunction uint8

const (
	RoutineStart          RoutineSubFunction = 0x01
	RoutineStop           RoutineSubFunction = 0x02
	RoutineRequestResults RoutineSubFunction = 0x03
)

func (s RoutineSubFunction) String() string {
	switch s {
	case RoutineStart:
		return "start"
	case RoutineStop:
		return "stop"
	case RoutineRequestResults:
		return "request_results"
	default:
		return fmt.Sprintf("sub_function(0x%02X)", uint8(s))
	}
}

// UDSIdentifier formats a 16-bit data or routine identifier as "0xF190".
func UDSIdentifier(did uint16) string {
	return fmt.Sprintf("0x%04X", did)
}

// ParseUDSIdentifier is the inverse of UDSIdentifier. The hex digits may be
// in either case.
func ParseUDSIdentifier(id string) (uint16, error) {
	hex, ok := strings.CutPrefix(id, "0x")
	if !ok {
		hex, ok = strings.CutPrefix(id, "0X")
	}
	if !ok || len(hex) != 4 {
		return 0, fmt.Errorf("%w: %q is not a 0xHHHH identifier", errspkg.ErrInvalidConfiguration, id)
	}
	v, err := strconv.ParseUint(hex, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", errspkg.ErrInvalidConfiguration, id, err)
	}
	return uint16(v), nil
}

// LegacyAdapter serves the byte-oriented protocol for one identifier. Which
// calls succeed depends on the handler shape it was registered with; the rest
// answer ErrUnsupported. Replies are placed in the arena.
type LegacyAdapter struct {
	id     string
	kind   HandlerKind
	schema *payload.Schema
	arena  *arenapkg.Arena

	read        handlerpkg.ReadHandler
	write       handlerpkg.WriteHandler
	recordRead  handlerpkg.RecordReader
	recordWrite handlerpkg.RecordWriter
	routine     handlerpkg.RoutineHandler
}

// Identifier returns the service identifier.
func (l *LegacyAdapter) Identifier() string { return l.id }

// Kind returns the handler shape.
func (l *LegacyAdapter) Kind() HandlerKind { return l.kind }

// Read answers a read request. Serialized readers have their record encoded
// straight into the arena.
func (l *LegacyAdapter) Read(ctx context.Context) ([]byte, error) {
	switch l.kind {
	case KindRead:
		var out []byte
		err := safeCall(func() error {
			var err error
			out, err = l.read.Read(ctx)
			return err
		})
		if err != nil {
			return nil, errspkg.Wrap(err, "read", l.id)
		}
		return l.reply("read", out)
	case KindSerializedRead:
		var rec payload.Record
		err := safeCall(func() error {
			var err error
			rec, err = l.recordRead.ReadRecord(ctx)
			return err
		})
		if err != nil {
			return nil, errspkg.Wrap(err, "read", l.id)
		}
		return l.encode(rec)
	default:
		return nil, l.unsupported("read")
	}
}

func (l *LegacyAdapter) encode(rec payload.Record) ([]byte, error) {
	if rec.Schema() != l.schema {
		return nil, errspkg.New(errspkg.MalformedPayload, "read", l.id, fmt.Errorf("handler returned a record not built from schema %q", l.schema.Name()))
	}
	n, err := payload.EncodedSize(rec)
	if err != nil {
		return nil, errspkg.Wrap(err, "read", l.id)
	}
	buf, err := l.arena.Alloc(n)
	if err != nil {
		return nil, errspkg.Wrap(err, "read", l.id)
	}
	if _, err := payload.EncodeInto(buf, rec); err != nil {
		return nil, errspkg.Wrap(err, "read", l.id)
	}
	return buf, nil
}

// Write delivers a write request. Serialized writers only run once data has
// been decoded into their record; short, excess, or mistyped data is rejected
// with MalformedPayload and the handler is not called.
func (l *LegacyAdapter) Write(ctx context.Context, data []byte) error {
	switch l.kind {
	case KindWrite:
		err := safeCall(func() error {
			return l.write.Write(ctx, data)
		})
		return errspkg.Wrap(err, "write", l.id)
	case KindSerializedWrite:
		rec, err := payload.Decode(l.schema, data)
		if err != nil {
			return errspkg.Wrap(err, "write", l.id)
		}
		err = safeCall(func() error {
			return l.recordWrite.WriteRecord(ctx, rec)
		})
		return errspkg.Wrap(err, "write", l.id)
	default:
		return l.unsupported("write")
	}
}

// Start runs the routine's start sub-function.
func (l *LegacyAdapter) Start(ctx context.Context, req []byte) ([]byte, error) {
	return l.Routine(ctx, RoutineStart, req)
}

// Stop runs the routine's stop sub-function.
func (l *LegacyAdapter) Stop(ctx context.Context, req []byte) ([]byte, error) {
	return l.Routine(ctx, RoutineStop, req)
}

// RequestResults runs the routine's request-results sub-function.
func (l *LegacyAdapter) RequestResults(ctx context.Context, req []byte) ([]byte, error) {
	return l.Routine(ctx, RoutineRequestResults, req)
}

// Routine dispatches a RoutineControl request by sub-function. Sub-functions
// are independent; RequestResults before Start is left to the handler.
func (l *LegacyAdapter) Routine(ctx context.Context, sub RoutineSubFunction, req []byte) ([]byte, error) {
	op := "routine_" + sub.String()
	if l.kind != KindRoutine {
		return nil, l.unsupported(op)
	}

	var call func(context.Context, []byte) ([]byte, error)
	switch sub {
	case RoutineStart:
		call = l.routine.Start
	case RoutineStop:
		call = l.routine.Stop
	case RoutineRequestResults:
		call = l.routine.RequestResults
	default:
		return nil, l.unsupported(op)
	}

	var out []byte
	err := safeCall(func() error {
		var err error
		out, err = call(ctx, req)
		return err
	})
	if err != nil {
		return nil, errspkg.Wrap(err, op, l.id)
	}
	return l.reply(op, out)
}

func (l *LegacyAdapter) reply(op string, out []byte) ([]byte, error) {
	buf, err := l.arena.Copy(out)
	if err != nil {
		return nil, errspkg.Wrap(err, op, l.id)
	}
	return buf, nil
}

func (l *LegacyAdapter) unsupported(op string) error {
	return errspkg.New(errspkg.InvalidTransition, op, l.id, fmt.Errorf("%w: %s handler", errspkg.ErrUnsupported, l.kind))
}
