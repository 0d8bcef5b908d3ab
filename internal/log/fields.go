// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID = "session_id"
	FieldRequestID = "request_id"
	FieldContentID = "content_id"
	FieldViewerID  = "viewer_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Playback fields
	FieldGeneration = "generation"
	FieldPhase      = "phase"
	FieldOldPhase   = "old_phase"
	FieldNewPhase   = "new_phase"
	FieldQuality    = "quality"
	FieldSource     = "source"
	FieldPosition   = "position_s"

	// Transport fields
	FieldTopic  = "topic"
	FieldPath   = "path"
	FieldStatus = "status"
)
