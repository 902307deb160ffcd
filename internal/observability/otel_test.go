package observability

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/config"
)

func TestSetupOTelDisabled(t *testing.T) {
	shutdown, err := SetupOTel(context.Background(), config.OTELConfig{Enabled: false}, "test")
	if err != nil {
		t.Fatalf("SetupOTel disabled: %v", err)
	}
	if shutdown == nil {
		t.Fatal("shutdown must not be nil when disabled")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("no-op shutdown returned error: %v", err)
	}
}

func TestSetupOTelEnabled(t *testing.T) {
	shutdown, err := SetupOTel(context.Background(), config.OTELConfig{
		Enabled:     true,
		Endpoint:    "localhost:4317",
		Insecure:    true,
		ServiceName: "test-svc",
		SampleRatio: 1.0,
	}, "test")
	if err != nil {
		t.Fatalf("SetupOTel enabled: %v", err)
	}
	// The gRPC exporter dials lazily; shutdown with a background context
	// must still return cleanly without a collector present.
	_ = shutdown(context.Background())
}

func TestSetupOTelExporterError(t *testing.T) {
	orig := newOTLPExporterFn
	defer func() { newOTLPExporterFn = orig }()
	newOTLPExporterFn = func(ctx context.Context, client otlptrace.Client) (*otlptrace.Exporter, error) {
		return nil, errors.New("boom")
	}

	_, err := SetupOTel(context.Background(), config.OTELConfig{Enabled: true, Insecure: true}, "test")
	if err == nil {
		t.Fatal("expected exporter error to propagate")
	}
}

func TestSetupOTelResourceError(t *testing.T) {
	orig := newServiceResourceFn
	defer func() { newServiceResourceFn = orig }()
	newServiceResourceFn = func(ctx context.Context, serviceName, version string) (*resource.Resource, error) {
		return nil, errors.New("boom")
	}

	_, err := SetupOTel(context.Background(), config.OTELConfig{Enabled: true, Insecure: true}, "test")
	if err == nil {
		t.Fatal("expected resource error to propagate")
	}
}
