package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/not-nullexception/team-classifier/config"
)

func TestInitDisabledKeepsNoopTracer(t *testing.T) {
	cleanup, err := Init(context.Background(), &config.TracingConfig{Enabled: false})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer cleanup()

	ctx, span := StartSpan(context.Background(), "test")
	defer span.End()
	if ctx == nil {
		t.Fatal("nil context")
	}
	// Must not panic on a non-recording span.
	RecordError(ctx, errors.New("ignored"))
}

func TestInitRequiresEndpoint(t *testing.T) {
	_, err := Init(context.Background(), &config.TracingConfig{Enabled: true})
	if err == nil {
		t.Fatal("expected error without OTLP endpoint")
	}
}
