// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	xglog "github.com/ManuGH/streamplay/internal/log"
	"github.com/ManuGH/streamplay/internal/metrics"
	"github.com/ManuGH/streamplay/internal/playback"
	"github.com/ManuGH/streamplay/internal/session"
)

const (
	wsWriteWait    = 10 * time.Second
	wsPongWait     = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsReadLimit    = 4096
)

// wsInbound is a client frame. Exactly one of Command or Signal is set;
// ID is echoed in the reply so the client can correlate.
type wsInbound struct {
	ID      string           `json:"id,omitempty"`
	Command *session.Command `json:"command,omitempty"`
	Signal  *session.Signal  `json:"signal,omitempty"`
}

// wsReply answers an inbound frame.
type wsReply struct {
	Type  string          `json:"type"`
	ID    string          `json:"id,omitempty"`
	Code  string          `json:"code,omitempty"`
	Error string          `json:"error,omitempty"`
	State *playback.State `json:"state,omitempty"`
}

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
}

// checkOrigin accepts same-host origins, clients without an Origin header
// and the configured CORS origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	for _, allowed := range s.stack.AllowedOrigins {
		if allowed == "*" || strings.TrimRight(allowed, "/") == origin {
			return true
		}
	}
	return false
}

// handleStream upgrades to a websocket carrying the session's envelopes.
// The first frame is a state envelope with the current source and
// generation so a late subscriber can load the media. Clients may send
// commands and signals on the same connection.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sub, err := s.sessions.Subscribe(r.Context(), id)
	if err != nil {
		writeError(w, r, err, http.StatusServiceUnavailable)
		return
	}
	defer func() { _ = sub.Close() }()

	// Snapshot after subscribing so no envelope falls in between.
	info, err := s.sessions.Get(id)
	if err != nil {
		writeError(w, r, err, 0)
		return
	}

	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		// The upgrader already wrote the error response.
		xglog.FromContext(r.Context()).Debug().Err(err).
			Str(xglog.FieldSessionID, id).
			Msg("websocket upgrade failed")
		return
	}

	metrics.WebsocketClients.Inc()
	defer metrics.WebsocketClients.Dec()
	s.wg.Add(1)
	defer s.wg.Done()

	logger := xglog.FromContext(r.Context()).With().
		Str(xglog.FieldComponent, "ws").
		Str(xglog.FieldSessionID, id).
		Logger()
	logger.Debug().Str(xglog.FieldEvent, "ws.connected").Msg("session stream connected")

	replies := make(chan wsReply, 16)
	readDone := make(chan struct{})
	quit := make(chan struct{})
	go s.readPump(conn, id, replies, readDone, quit)
	defer func() {
		close(quit)
		_ = conn.Close()
		<-readDone
	}()

	initial := session.Envelope{
		Type:      session.EnvelopeState,
		SessionID: id,
		State:     &info.State,
		ContentID: info.State.ContentID,
	}
	if err := writeFrame(conn, initial); err != nil {
		return
	}

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()
	reason := "client gone"
	defer func() {
		logger.Debug().Str(xglog.FieldEvent, "ws.disconnected").Str("reason", reason).Msg("session stream disconnected")
	}()

	for {
		select {
		case msg, ok := <-sub.C():
			if !ok {
				reason = "subscription ended"
				closeConn(conn, websocket.CloseNormalClosure, reason)
				return
			}
			if err := writeRaw(conn, msg); err != nil {
				return
			}
			if envelopeType(msg) == session.EnvelopeClosed {
				reason = "session closed"
				closeConn(conn, websocket.CloseNormalClosure, reason)
				return
			}
		case rep := <-replies:
			if err := writeFrame(conn, rep); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		case <-readDone:
			return
		case <-s.streams.Done():
			reason = "server shutting down"
			closeConn(conn, websocket.CloseGoingAway, reason)
			return
		}
	}
}

// readPump applies inbound frames until the connection fails. Replies are
// handed to the writer; the pump never writes itself.
func (s *Server) readPump(conn *websocket.Conn, id string, replies chan<- wsReply, done chan<- struct{}, quit <-chan struct{}) {
	defer close(done)
	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		rep := s.applyFrame(id, data)
		select {
		case replies <- rep:
		case <-quit:
			return
		}
	}
}

func (s *Server) applyFrame(id string, data []byte) wsReply {
	var in wsInbound
	if err := json.Unmarshal(data, &in); err != nil {
		return wsReply{Type: "error", Code: CodeBadRequest, Error: "malformed frame"}
	}
	var (
		st  playback.State
		err error
	)
	switch {
	case in.Command != nil && in.Signal == nil:
		st, err = s.sessions.Command(id, *in.Command)
	case in.Signal != nil && in.Command == nil:
		st, err = s.sessions.Signal(id, *in.Signal)
	default:
		return wsReply{Type: "error", ID: in.ID, Code: CodeBadRequest, Error: "frame needs exactly one of command or signal"}
	}
	if err != nil {
		code := CodeInternal
		if _, c, ok := classify(err); ok {
			code = c
		}
		return wsReply{Type: "error", ID: in.ID, Code: code, Error: err.Error()}
	}
	return wsReply{Type: "ack", ID: in.ID, State: &st}
}

func writeFrame(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(v)
}

func writeRaw(conn *websocket.Conn, msg []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteMessage(websocket.TextMessage, msg)
}

func closeConn(conn *websocket.Conn, code int, reason string) {
	err := conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(wsWriteWait))
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		xglog.L().Debug().Err(err).Msg("websocket close frame not sent")
	}
}

func envelopeType(msg []byte) session.EnvelopeType {
	var head struct {
		Type session.EnvelopeType `json:"type"`
	}
	_ = json.Unmarshal(msg, &head)
	return head.Type
}
