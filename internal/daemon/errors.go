// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import "errors"

var (
	// ErrMissingLogger is returned when the logger is disabled or missing.
	ErrMissingLogger = errors.New("logger is required")

	// ErrMissingHandler is returned when no HTTP handler is provided.
	ErrMissingHandler = errors.New("HTTP handler is required")

	// ErrMissingManager is returned when an App is created without a manager.
	ErrMissingManager = errors.New("manager is required")

	// ErrManagerNotStarted is returned when shutting down a manager that never started.
	ErrManagerNotStarted = errors.New("manager not started")
)
