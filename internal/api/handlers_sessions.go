// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/streamplay/internal/session"
)

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var req session.OpenRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeProblem(w, r, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	if req.ContentID == "" {
		writeProblem(w, r, http.StatusBadRequest, CodeBadRequest, "contentId is required")
		return
	}
	info, err := s.sessions.Open(r.Context(), req)
	if err != nil {
		writeError(w, r, err, http.StatusBadGateway)
		return
	}
	w.Header().Set("Location", "/api/v1/sessions/"+info.ID)
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	info, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Close(chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err, 0)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCommand applies one user intent and returns the resulting state.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var cmd session.Command
	if err := decodeBody(w, r, &cmd); err != nil {
		writeProblem(w, r, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	st, err := s.sessions.Command(chi.URLParam(r, "id"), cmd)
	if err != nil {
		writeError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleSignal feeds one media or platform signal. Stale generations are
// not an error; the unchanged state is returned.
func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	var sig session.Signal
	if err := decodeBody(w, r, &sig); err != nil {
		writeProblem(w, r, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	st, err := s.sessions.Signal(chi.URLParam(r, "id"), sig)
	if err != nil {
		writeError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
