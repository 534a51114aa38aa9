package telemetry

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSamplerFor(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1, "AlwaysOnSampler"},
		{2, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{-1, "AlwaysOffSampler"},
		{0.25, "TraceIDRatioBased{0.25}"},
	}
	for _, tc := range tests {
		got := samplerFor(tc.rate).Description()
		if !strings.HasPrefix(got, "ParentBased{root:"+tc.want) {
			t.Fatalf("samplerFor(%v): got %q want root %s", tc.rate, got, tc.want)
		}
	}
}

func TestDisabledTracerIsNoop(t *testing.T) {
	tp, err := InitTracer(context.Background(), TracerConfig{ServiceName: "test"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("init: %v", err)
	}

	_, span := StartSpan(context.Background(), "test", "noop")
	if span.SpanContext().IsValid() {
		t.Fatal("disabled tracing produced a recording span")
	}
	RecordError(span, errors.New("ignored"))
	RecordError(span, nil)
	span.End()

	if err := tp.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSpanPathRedactsTokens(t *testing.T) {
	tests := map[string]string{
		"/view/abc-123":     "/view/{token}",
		"/view/abc-123/ws":  "/view/{token}/ws",
		"/api/v1/devices":   "/api/v1/devices",
		"/static/viewer.js": "/static/viewer.js",
	}
	for in, want := range tests {
		if got := spanPath(in); got != want {
			t.Fatalf("spanPath(%q): got %q want %q", in, got, want)
		}
	}
}
