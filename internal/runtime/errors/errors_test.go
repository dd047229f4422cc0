package errors

import (
	"errors"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"ErrDuplicateIdentifier", ErrDuplicateIdentifier, "diagflow: duplicate identifier"},
		{"ErrInvalidConfiguration", ErrInvalidConfiguration, "diagflow: invalid configuration"},
		{"ErrNotFound", ErrNotFound, "diagflow: identifier not found"},
		{"ErrOperationBusy", ErrOperationBusy, "diagflow: operation busy"},
		{"ErrInvalidTransition", ErrInvalidTransition, "diagflow: invalid transition"},
		{"ErrMalformedPayload", ErrMalformedPayload, "diagflow: malformed payload"},
		{"ErrSchemaViolation", ErrSchemaViolation, "diagflow: schema violation"},
		{"ErrAllocationFailure", ErrAllocationFailure, "diagflow: arena exhausted"},
		{"ErrHandlerRequired", ErrHandlerRequired, "diagflow: handler is required"},
		{"ErrRegistryClosed", ErrRegistryClosed, "diagflow: registry closed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestDerivedSentinelsCarryKind(t *testing.T) {
	tests := []struct {
		err  error
		kind Kind
	}{
		{ErrHandlerRequired, InvalidConfiguration},
		{ErrBuilderConsumed, InvalidConfiguration},
		{ErrRegistryClosed, NotFound},
		{ErrNotWritable, InvalidTransition},
		{ErrUnsupported, InvalidTransition},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.kind {
			t.Errorf("KindOf(%v) = %s, want %s", tt.err, got, tt.kind)
		}
	}
}

func TestDiagnosticErrorMatchesKindAndCause(t *testing.T) {
	cause := errors.New("short buffer")
	err := New(MalformedPayload, "write", "0xF190", cause)

	if !errors.Is(err, ErrMalformedPayload) {
		t.Fatal("expected kind sentinel to match")
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected cause to match")
	}
	if KindOf(err) != MalformedPayload {
		t.Fatalf("KindOf = %s", KindOf(err))
	}
	want := "diagflow: malformed_payload during write on 0xF190: short buffer"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestWrapClassifiesUnknownErrorsAsHandlerFailure(t *testing.T) {
	if Wrap(nil, "read", "x") != nil {
		t.Fatal("expected nil for nil error")
	}

	plain := errors.New("sensor offline")
	wrapped := Wrap(plain, "read", "0xF190")
	if KindOf(wrapped) != HandlerFailure {
		t.Fatalf("KindOf = %s, want handler_failure", KindOf(wrapped))
	}
	if !errors.Is(wrapped, plain) {
		t.Fatal("expected cause to survive wrapping")
	}

	busy := Wrap(ErrOperationBusy, "execute", "selftest")
	if KindOf(busy) != OperationBusy {
		t.Fatalf("KindOf = %s, want operation_busy", KindOf(busy))
	}

	again := Wrap(busy, "dispatch", "other")
	if again != busy {
		t.Fatal("expected already attributed error to be returned unchanged")
	}
}

func TestKindString(t *testing.T) {
	if KindNone.String() != "none" || AllocationFailure.String() != "allocation_failure" {
		t.Fatal("unexpected kind names")
	}
	if Kind(200).String() != "kind(200)" {
		t.Fatalf("unexpected fallback name %q", Kind(200).String())
	}
	if KindOf(nil) != KindNone {
		t.Fatal("expected KindNone for nil")
	}
}

func TestConfigValidationError(t *testing.T) {
	inner := errors.New("invalid arena size")
	err := ConfigValidationError{Err: inner}

	want := "diagflow: invalid configuration: invalid arena size"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, inner) || !errors.Is(err, ErrInvalidConfiguration) {
		t.Error("expected wrapped error and kind to match")
	}
}

func TestNewConfigValidationError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if err := NewConfigValidationError(nil); err != nil {
			t.Errorf("NewConfigValidationError(nil) = %v, want nil", err)
		}
	})

	t.Run("wraps error correctly", func(t *testing.T) {
		inner := errors.New("bad config")
		err := NewConfigValidationError(inner)

		var cfgErr ConfigValidationError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("expected ConfigValidationError, got %T", err)
		}
		if cfgErr.Err != inner {
			t.Errorf("wrapped error = %v, want %v", cfgErr.Err, inner)
		}
		if KindOf(err) != InvalidConfiguration {
			t.Errorf("KindOf = %s", KindOf(err))
		}
	})
}
