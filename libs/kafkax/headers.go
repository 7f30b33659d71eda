package kafkax

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Header keys stamped on every published event.
const (
	HeaderEventID     = "event_id"
	HeaderEventType   = "event_type"
	HeaderAggregateID = "aggregate_id"
)

// Headers is a Kafka header list usable as an OpenTelemetry carrier.
type Headers []kafka.Header

var _ propagation.TextMapCarrier = (*Headers)(nil)

func (h Headers) Get(key string) string {
	for _, kv := range h {
		if kv.Key == key {
			return string(kv.Value)
		}
	}
	return ""
}

func (h Headers) Keys() []string {
	keys := make([]string, len(h))
	for i, kv := range h {
		keys[i] = kv.Key
	}
	return keys
}

// Set replaces an existing key in place so re-injection never duplicates
// trace headers.
func (h *Headers) Set(key, value string) {
	for i := range *h {
		if (*h)[i].Key == key {
			(*h)[i].Value = []byte(value)
			return
		}
	}
	*h = append(*h, kafka.Header{Key: key, Value: []byte(value)})
}

// EventHeaders builds the headers for one event and injects the trace
// context carried by ctx.
func EventHeaders(ctx context.Context, eventID, eventType, aggregateID string) []kafka.Header {
	h := Headers{
		{Key: HeaderEventID, Value: []byte(eventID)},
		{Key: HeaderEventType, Value: []byte(eventType)},
	}
	if aggregateID != "" {
		h.Set(HeaderAggregateID, aggregateID)
	}
	otel.GetTextMapPropagator().Inject(ctx, &h)
	return h
}

// ExtractTraceContext continues the producer's trace for a consumed message.
func ExtractTraceContext(ctx context.Context, msg kafka.Message) context.Context {
	h := Headers(msg.Headers)
	return otel.GetTextMapPropagator().Extract(ctx, &h)
}

func HeaderValue(headers []kafka.Header, key string) string {
	return Headers(headers).Get(key)
}
