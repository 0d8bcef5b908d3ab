// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package api serves the HTTP surface of streamplay: catalog management,
// media resources, playback sessions and their websocket event streams.
package api

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ManuGH/streamplay/internal/api/middleware"
	"github.com/ManuGH/streamplay/internal/catalog"
	"github.com/ManuGH/streamplay/internal/health"
	"github.com/ManuGH/streamplay/internal/media"
	"github.com/ManuGH/streamplay/internal/session"
)

// Config wires a Server.
type Config struct {
	Catalog  catalog.Repository
	Provider media.Provider
	Sessions *session.Manager
	Health   *health.Manager
	Stack    middleware.StackConfig
	Logger   zerolog.Logger
}

// Server owns the router and the websocket connections it upgraded.
type Server struct {
	catalog  catalog.Repository
	provider media.Provider
	sessions *session.Manager
	health   *health.Manager
	logger   zerolog.Logger
	stack    middleware.StackConfig

	// streams is cancelled by Shutdown; hijacked connections are not
	// tracked by http.Server.Shutdown.
	streams context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup

	router chi.Router
}

func New(cfg Config) (*Server, error) {
	switch {
	case cfg.Catalog == nil:
		return nil, errors.New("api: catalog is required")
	case cfg.Provider == nil:
		return nil, errors.New("api: media provider is required")
	case cfg.Sessions == nil:
		return nil, errors.New("api: session manager is required")
	case cfg.Health == nil:
		return nil, errors.New("api: health manager is required")
	}
	streams, stop := context.WithCancel(context.Background())
	s := &Server{
		catalog:  cfg.Catalog,
		provider: cfg.Provider,
		sessions: cfg.Sessions,
		health:   cfg.Health,
		logger:   cfg.Logger,
		stack:    cfg.Stack,
		streams:  streams,
		stop:     stop,
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Shutdown closes every websocket stream and waits for their goroutines.
func (s *Server) Shutdown() {
	s.stop()
	s.wg.Wait()
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	middleware.ApplyStack(r, s.stack)

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/content", func(r chi.Router) {
			r.Get("/", s.handleListContent)
			r.Get("/{id}", s.handleGetContent)
			r.Put("/{id}", s.handlePutContent)
			r.Delete("/{id}", s.handleDeleteContent)
			r.Get("/{id}/media", s.handleGetMedia)
		})
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.handleOpenSession)
			r.Get("/{id}", s.handleGetSession)
			r.Delete("/{id}", s.handleCloseSession)
			r.Post("/{id}/commands", s.handleCommand)
			r.Post("/{id}/signals", s.handleSignal)
			r.Get("/{id}/ws", s.handleStream)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusNotFound, CodeNotFound, "no such route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})
	return r
}
