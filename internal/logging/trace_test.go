package logging

import (
	"context"
	"testing"
)

func TestNewRequestID(t *testing.T) {
	id1 := NewRequestID()
	id2 := NewRequestID()

	if len(id1) != 16 {
		t.Errorf("expected 16 char ID, got %d: %s", len(id1), id1)
	}

	if id1 == id2 {
		t.Error("request IDs should be unique")
	}
}

func TestWithRequestID(t *testing.T) {
	ctx := context.Background()

	ctx1 := WithRequestID(ctx, "test-id-123")
	if got := GetRequestID(ctx1); got != "test-id-123" {
		t.Errorf("expected 'test-id-123', got '%s'", got)
	}

	ctx2 := WithRequestID(ctx, "")
	if got := GetRequestID(ctx2); len(got) != 16 {
		t.Errorf("expected generated 16 char ID, got '%s'", got)
	}

	if got := GetRequestID(ctx); got != "" {
		t.Errorf("expected empty ID on bare context, got '%s'", got)
	}
}
