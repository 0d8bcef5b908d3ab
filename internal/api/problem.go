// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ManuGH/streamplay/internal/api/middleware"
	"github.com/ManuGH/streamplay/internal/catalog"
	xglog "github.com/ManuGH/streamplay/internal/log"
	"github.com/ManuGH/streamplay/internal/media"
	"github.com/ManuGH/streamplay/internal/playback"
	"github.com/ManuGH/streamplay/internal/resilience"
	"github.com/ManuGH/streamplay/internal/session"
)

// Problem codes are stable; clients switch on them.
const (
	CodeBadRequest        = "BAD_REQUEST"
	CodeNotFound          = "NOT_FOUND"
	CodeContractViolation = "CONTRACT_VIOLATION"
	CodeRetryRequired     = "RETRY_REQUIRED"
	CodeInvalidState      = "INVALID_STATE"
	CodeFullscreenDenied  = "FULLSCREEN_DENIED"
	CodeTooManySessions   = "TOO_MANY_SESSIONS"
	CodeUpstreamFailed    = "UPSTREAM_FAILED"
	CodeUnavailable       = "UNAVAILABLE"
	CodeInternal          = "INTERNAL"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		xglog.L().Error().Err(err).Int(xglog.FieldStatus, code).Msg("failed to encode JSON response")
	}
}

// writeProblem writes an RFC 7807 problem details response. code is the
// stable machine-readable identifier, detail the human explanation.
func writeProblem(w http.ResponseWriter, r *http.Request, status int, code, detail string) {
	reqID := xglog.RequestIDFromContext(r.Context())
	if reqID == "" {
		reqID = w.Header().Get(middleware.HeaderRequestID)
	}
	res := map[string]any{
		"type":      "about:blank",
		"title":     http.StatusText(status),
		"status":    status,
		"code":      code,
		"instance":  r.URL.EscapedPath(),
		"requestId": reqID,
	}
	if detail != "" {
		res["detail"] = detail
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(res); err != nil {
		xglog.FromContext(r.Context()).Error().Err(err).
			Int(xglog.FieldStatus, status).
			Msg("failed to encode problem response")
	}
}

// classify maps a domain error to its HTTP status and problem code. ok is
// false for errors without a mapping.
func classify(err error) (status int, code string, ok bool) {
	switch {
	case errors.Is(err, session.ErrNotFound),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, media.ErrNotFound):
		return http.StatusNotFound, CodeNotFound, true
	case errors.Is(err, session.ErrTooManySessions):
		return http.StatusTooManyRequests, CodeTooManySessions, true
	case errors.Is(err, playback.ErrContractViolation),
		errors.Is(err, catalog.ErrInvalid):
		return http.StatusUnprocessableEntity, CodeContractViolation, true
	case errors.Is(err, playback.ErrRetryRequired):
		return http.StatusConflict, CodeRetryRequired, true
	case errors.Is(err, playback.ErrNotFailed),
		errors.Is(err, playback.ErrNotStarted),
		errors.Is(err, playback.ErrAlreadyStarted),
		errors.Is(err, playback.ErrClosed):
		return http.StatusConflict, CodeInvalidState, true
	case errors.Is(err, playback.ErrFullscreenDenied):
		return http.StatusConflict, CodeFullscreenDenied, true
	case errors.Is(err, resilience.ErrCircuitOpen):
		return http.StatusServiceUnavailable, CodeUnavailable, true
	}
	return 0, "", false
}

// writeError writes the mapped problem for err. Unmapped errors become
// fallback (500 when zero) and are logged; their text is not exposed.
func writeError(w http.ResponseWriter, r *http.Request, err error, fallback int) {
	if status, code, ok := classify(err); ok {
		writeProblem(w, r, status, code, err.Error())
		return
	}
	if fallback == 0 {
		fallback = http.StatusInternalServerError
	}
	code := CodeInternal
	if fallback == http.StatusBadGateway {
		code = CodeUpstreamFailed
	}
	xglog.FromContext(r.Context()).Error().Err(err).
		Str(xglog.FieldEvent, "api.request_failed").
		Int(xglog.FieldStatus, fallback).
		Msg("request failed")
	writeProblem(w, r, fallback, code, http.StatusText(fallback))
}
