// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	RequestIDKey      = "http.request_id"

	SessionIDKey  = "playback.session_id"
	ContentIDKey  = "playback.content_id"
	ViewerIDKey   = "playback.viewer_id"
	QualityKey    = "playback.quality"
	GenerationKey = "playback.generation"
	StartAtKey    = "playback.start_at_s"

	ProviderKey = "media.provider"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// SessionAttributes describes a playback session. Empty values are omitted.
func SessionAttributes(sessionID, contentID, viewerID, quality string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 4)
	for _, kv := range []struct{ key, val string }{
		{SessionIDKey, sessionID},
		{ContentIDKey, contentID},
		{ViewerIDKey, viewerID},
		{QualityKey, quality},
	} {
		if kv.val != "" {
			attrs = append(attrs, attribute.String(kv.key, kv.val))
		}
	}
	return attrs
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
