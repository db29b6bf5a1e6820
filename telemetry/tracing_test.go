package telemetry

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return rec
}

func attrValue(attrs []attribute.KeyValue, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range attrs {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestStartSpanTagsCorrelation(t *testing.T) {
	rec := recordSpans(t)

	ctx, id := NewCorrelation(context.Background())
	_, span := StartSpan(ctx, "replay.resolve", ReplayCode("abcde-fghij"), Conversation("#prismata"), Private(false))
	span.End()

	ended := rec.Ended()
	if len(ended) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(ended))
	}
	s := ended[0]
	if s.Name() != "replay.resolve" || s.InstrumentationScope().Name != tracerName {
		t.Errorf("span %q from %q", s.Name(), s.InstrumentationScope().Name)
	}
	want := map[attribute.Key]string{
		KeyCorrelation:  id,
		KeyReplayCode:   "abcde-fghij",
		KeyConversation: "#prismata",
	}
	for k, v := range want {
		got, ok := attrValue(s.Attributes(), k)
		if !ok || got.AsString() != v {
			t.Errorf("attribute %s = %v (present %v), want %q", k, got.Emit(), ok, v)
		}
	}
	if got, ok := attrValue(s.Attributes(), KeyPrivate); !ok || got.AsBool() {
		t.Errorf("attribute %s = %v (present %v), want false", KeyPrivate, got.Emit(), ok)
	}
}

func TestStartSpanWithoutCorrelation(t *testing.T) {
	rec := recordSpans(t)

	_, span := StartSpan(context.Background(), "bot.handle_message")
	span.End()

	if _, ok := attrValue(rec.Ended()[0].Attributes(), KeyCorrelation); ok {
		t.Error("correlation attribute set without a correlation id")
	}
}

func TestSpanStatusHelpers(t *testing.T) {
	rec := recordSpans(t)

	_, span := StartSpan(context.Background(), "fails")
	RecordError(span, errors.New("boom"))
	span.End()
	_, span = StartSpan(context.Background(), "works")
	RecordError(span, nil)
	SetSpanSuccess(span)
	span.End()

	ended := rec.Ended()
	if len(ended) != 2 {
		t.Fatalf("ended spans = %d, want 2", len(ended))
	}
	if ended[0].Status().Code != codes.Error {
		t.Errorf("failing span status = %v", ended[0].Status().Code)
	}
	if ended[1].Status().Code != codes.Ok {
		t.Errorf("working span status = %v", ended[1].Status().Code)
	}
}

func TestSampleRatio(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"", 1, false},
		{"0.25", 0.25, false},
		{"1", 1, false},
		{"0", 0, true},
		{"1.5", 0, true},
		{"half", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := sampleRatio(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("sampleRatio(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("sampleRatio(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestInitTracingDisabledWithoutEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	shutdown, err := InitTracing("replaybot", "test")
	if err != nil {
		t.Fatalf("InitTracing() error = %v", err)
	}
	shutdown()
}

func TestInitTracingRejectsBadRatio(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "2")
	if _, err := InitTracing("replaybot", "test"); err == nil {
		t.Error("InitTracing() accepted sampler ratio 2")
	}
}
