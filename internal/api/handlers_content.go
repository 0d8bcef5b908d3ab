// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/streamplay/internal/catalog"
	xglog "github.com/ManuGH/streamplay/internal/log"
)

func (s *Server) handleListContent(w http.ResponseWriter, r *http.Request) {
	items, err := s.catalog.List(r.Context())
	if err != nil {
		writeError(w, r, err, http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []catalog.Content{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleGetContent(w http.ResponseWriter, r *http.Request) {
	c, err := s.catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handlePutContent upserts a content item. The body id may be omitted; if
// present it must match the path.
func (s *Server) handlePutContent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var c catalog.Content
	if err := decodeBody(w, r, &c); err != nil {
		writeProblem(w, r, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	if c.ID == "" {
		c.ID = id
	}
	if c.ID != id {
		writeError(w, r, fmt.Errorf("%w: body id %q does not match path id %q", catalog.ErrInvalid, c.ID, id), 0)
		return
	}
	_, getErr := s.catalog.Get(r.Context(), id)
	created := getErr != nil

	stored, err := s.catalog.Put(r.Context(), c)
	if err != nil {
		writeError(w, r, err, http.StatusInternalServerError)
		return
	}
	xglog.FromContext(r.Context()).Info().
		Str(xglog.FieldEvent, "catalog.upserted").
		Str(xglog.FieldContentID, id).
		Bool("created", created).
		Msg("content upserted")
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, stored)
}

func (s *Server) handleDeleteContent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.catalog.Delete(r.Context(), id); err != nil {
		writeError(w, r, err, http.StatusInternalServerError)
		return
	}
	xglog.FromContext(r.Context()).Info().
		Str(xglog.FieldEvent, "catalog.deleted").
		Str(xglog.FieldContentID, id).
		Msg("content deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetMedia(w http.ResponseWriter, r *http.Request) {
	res, err := s.provider.Resources(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
