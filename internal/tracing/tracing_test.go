package tracing

import (
	"context"
	"testing"
)

func TestInitDisabledReturnsNoOpShutdown(t *testing.T) {
	shutdown, err := Init(Config{Enabled: false})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if shutdown == nil {
		t.Fatal("expected a non-nil shutdown func")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("no-op shutdown returned an error: %v", err)
	}
}

func TestSpanHelpersUsableWithoutInit(t *testing.T) {
	ctx := context.Background()

	if _, span := StartCycle(ctx, 7); span == nil {
		t.Fatal("StartCycle returned a nil span")
	} else {
		span.End()
	}

	if _, span := StartProviderCall(ctx, "openai"); span == nil {
		t.Fatal("StartProviderCall returned a nil span")
	} else {
		span.SetAttributes()
		span.End()
	}

	if _, span := StartForgeCall(ctx, "create_discussion"); span == nil {
		t.Fatal("StartForgeCall returned a nil span")
	} else {
		span.RecordError(nil)
		span.End()
	}
}
