package services_test

import (
	"context"
	"testing"

	"reelkeep/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithTaskID(ctx, "5f0c")
	ctx = services.WithTaskName(ctx, "scan")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.TaskIDFromContext(ctx); !ok || id != "5f0c" {
		t.Fatalf("unexpected task id: %v %v", id, ok)
	}
	if name, ok := services.TaskNameFromContext(ctx); !ok || name != "scan" {
		t.Fatalf("unexpected task name: %v %v", name, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithTaskName(ctx, "")
	ctx = services.WithTaskID(ctx, "")
	if _, ok := services.TaskNameFromContext(ctx); ok {
		t.Fatal("expected blank task name to be ignored")
	}
	if _, ok := services.TaskIDFromContext(ctx); ok {
		t.Fatal("expected blank task id to be ignored")
	}
}
