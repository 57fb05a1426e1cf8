package logging

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestRecoveryHandler_WrapErrorPassesThrough(t *testing.T) {
	SetOutput(io.Discard)
	defer SetOutput(nil)

	handler := NewRecoveryHandler("dispatch")

	if err := handler.WrapError(func() error { return nil }); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	plain := errors.New("plain failure")
	if err := handler.WrapError(func() error { return plain }); err != plain {
		t.Errorf("expected plain failure to pass through, got %v", err)
	}
}

func TestRecoveryHandler_WrapErrorPanic(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(nil)

	handler := NewRecoveryHandler("dispatch")

	err := handler.WrapError(func() error {
		var m map[string]int
		m["x"] = 1
		return nil
	})
	var panicErr *PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("expected PanicError, got %T: %v", err, err)
	}
	if panicErr.Component != "dispatch" {
		t.Errorf("expected component 'dispatch', got %q", panicErr.Component)
	}
	if !strings.Contains(err.Error(), "panic in dispatch") {
		t.Errorf("unexpected message: %s", err.Error())
	}
	if !strings.Contains(panicErr.Stack, "TestRecoveryHandler_WrapErrorPanic") {
		t.Error("stack trace should contain test function name")
	}
	if !strings.Contains(buf.String(), `"event":"panic_recovered"`) {
		t.Errorf("panic was not logged: %s", buf.String())
	}
}
