package diagflow

import (
	"context"
	"errors"
	"testing"
)

func TestBuildAndDispatchThroughExports(t *testing.T) {
	ctx := context.Background()
	reg, err := NewBuilder(&Entity{Name: "engine"}, NewArena(64)).
		WithRead("0xF190", ReadFunc(func(context.Context) ([]byte, error) {
			return []byte("VIN"), nil
		})).
		Build()
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}
	t.Cleanup(func() { _ = reg.Close(ctx) })

	d, err := NewDispatcher(reg)
	if err != nil {
		t.Fatalf("unexpected dispatcher error: %v", err)
	}
	got, err := d.ReadData(ctx, "0xF190")
	if err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	if string(got) != "VIN" {
		t.Fatalf("expected VIN, got %q", got)
	}

	if _, err := d.ReadData(ctx, "0xF191"); !errors.Is(err, ErrNotFound) || KindOf(err) != NotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestBuilderExportsPropagateErrors(t *testing.T) {
	_, err := NewBuilder(&Entity{Name: "engine"}, NewArena(64)).
		WithRead("0xF190", nil).
		Build()
	if !errors.Is(err, ErrHandlerRequired) {
		t.Fatalf("expected handler required error, got %v", err)
	}

	if _, err := NewDispatcher(nil); !errors.Is(err, ErrConfigRequired) {
		t.Fatalf("expected config required error, got %v", err)
	}
}

func TestSchemaExports(t *testing.T) {
	schema := MustSchema("limits", Uint16("interval"), Uint32("threshold"))
	rec := schema.NewRecord().MustSet("interval", uint16(10)).MustSet("threshold", uint32(20))

	raw, err := EncodeRecord(rec)
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}
	if len(raw) != 6 {
		t.Fatalf("expected 6 bytes, got %d", len(raw))
	}
	back, err := DecodeRecord(schema, raw)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if !back.Equal(rec) {
		t.Fatalf("expected decoded record to equal original")
	}
}

func TestUDSIdentifierExport(t *testing.T) {
	if got := UDSIdentifier(0xF190); got != "0xF190" {
		t.Fatalf("expected 0xF190, got %q", got)
	}
	did, err := ParseUDSIdentifier("0xF190")
	if err != nil || did != 0xF190 {
		t.Fatalf("expected 0xF190, got %#x (%v)", did, err)
	}
}

func TestLoggerExports(t *testing.T) {
	logger := NopLogger()
	logger.Info("boot", LogFields{"component": "test"})
}

func TestEncodingExportAliases(t *testing.T) {
	payload := map[string]string{"hello": "world"}
	if _, err := Marshal(payload); err != nil {
		t.Fatalf("marshal alias failed: %v", err)
	}
	if _, err := MarshalIndent(payload, "", "  "); err != nil {
		t.Fatalf("marshal indent alias failed: %v", err)
	}
	if err := Unmarshal([]byte(`{"hello":"world"}`), &payload); err != nil {
		t.Fatalf("unmarshal alias failed: %v", err)
	}
}

func TestMetadataExport(t *testing.T) {
	md := NewMetadata("key", "value")
	if md["key"] != "value" {
		t.Fatalf("expected metadata to contain key, got %#v", md)
	}
}

func TestCreateULIDExport(t *testing.T) {
	if id := CreateULID(); len(id) != 26 {
		t.Fatalf("expected 26 character ULID, got %q", id)
	}
}
