// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package playback

import (
	"errors"
	"fmt"
)

var (
	// ErrContractViolation marks caller errors: the request references
	// something the session does not contain. State is left unchanged.
	ErrContractViolation = errors.New("contract violation")

	ErrUnknownQuality  = fmt.Errorf("%w: unknown quality label", ErrContractViolation)
	ErrUnknownSubtitle = fmt.Errorf("%w: unknown subtitle track", ErrContractViolation)
	ErrInvalidVolume   = fmt.Errorf("%w: volume must be within [0, 1]", ErrContractViolation)
	ErrInvalidSession  = fmt.Errorf("%w: invalid session", ErrContractViolation)

	ErrRetryRequired    = errors.New("playback failed: retry required")
	ErrNotFailed        = errors.New("playback has not failed")
	ErrNotStarted       = errors.New("playback not started")
	ErrAlreadyStarted   = errors.New("playback already started")
	ErrClosed           = errors.New("playback session closed")
	ErrFullscreenDenied = errors.New("fullscreen request denied")
)

// LoadError is a load or decode failure reported for a source.
type LoadError struct {
	Source     string
	Generation Generation
	Cause      error
}

func (e *LoadError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("load %s (generation %d) failed", e.Source, e.Generation)
	}
	return fmt.Sprintf("load %s (generation %d) failed: %v", e.Source, e.Generation, e.Cause)
}

func (e *LoadError) Unwrap() error { return e.Cause }
