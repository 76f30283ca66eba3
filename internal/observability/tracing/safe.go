package tracing

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

// ExtractContext pulls upstream trace context from inbound headers.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

var sensitiveKeyParts = []string{
	"secret",
	"password",
	"apikey",
	"api_key",
	"token",
	"code",
	"authorization",
}

// SafeAttributes drops attributes whose key suggests credential material.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if isSensitiveKey(string(attr.Key)) {
			continue
		}
		out = append(out, attr)
	}
	return out
}

// SafeError replaces the error text before it is recorded on a span,
// keeping only the outermost error kind.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	for _, part := range sensitiveKeyParts {
		if strings.Contains(strings.ToLower(msg), part) {
			return errors.New("redacted error")
		}
	}
	return err
}

func isSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	if key == "http.status_code" {
		return false
	}
	for _, part := range sensitiveKeyParts {
		if strings.Contains(key, part) {
			return true
		}
	}
	return false
}
