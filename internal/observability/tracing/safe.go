package tracing

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

// Query strings and request bodies can carry search text and prices; spans keep
// only routing metadata.
var forbiddenAttributeKeys = map[attribute.Key]struct{}{
	"http.url":          {},
	"http.target":       {},
	"http.query":        {},
	"http.request.body": {},
	"search.query":      {},
	"auth.token":        {},
}

// SafeAttributes removes attributes that may leak user input or credentials.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := forbiddenAttributeKeys[attr.Key]; ok {
			continue
		}
		out = append(out, attr)
	}
	return out
}

const maxErrorMessage = 256

// SafeError returns an error whose message is trimmed to a bounded length.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.TrimSpace(err.Error())
	if len(msg) > maxErrorMessage {
		msg = msg[:maxErrorMessage]
	}
	return errors.New(msg)
}

// ExtractContext reads inbound trace headers using the global propagator.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}
