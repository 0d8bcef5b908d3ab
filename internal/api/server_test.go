// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/streamplay/internal/bus"
	"github.com/ManuGH/streamplay/internal/catalog"
	"github.com/ManuGH/streamplay/internal/health"
	"github.com/ManuGH/streamplay/internal/media"
	"github.com/ManuGH/streamplay/internal/playback"
	"github.com/ManuGH/streamplay/internal/session"
)

type testServer struct {
	srv      *Server
	http     *httptest.Server
	catalog  *catalog.MemoryRepository
	sessions *session.Manager
}

func movie() catalog.Content {
	return catalog.Content{
		ID:    "movie-1",
		Title: "Big Buck Bunny",
		Renditions: []catalog.Rendition{
			{Label: "720p", SourceURL: "https://cdn.example/bbb/720.mp4", Height: 720},
			{Label: "480p", SourceURL: "https://cdn.example/bbb/480.mp4", Height: 480},
		},
		Subtitles: []catalog.Subtitle{
			{Language: "en", SourceURL: "https://cdn.example/bbb/en.vtt"},
		},
	}
}

func newTestServer(t *testing.T, maxSessions int) *testServer {
	t.Helper()
	repo := catalog.NewMemoryRepository()
	_, err := repo.Put(context.Background(), movie())
	require.NoError(t, err)

	provider := media.NewCatalogProvider(repo)
	mgr, err := session.NewManager(session.Config{
		Provider: provider,
		Bus:      bus.NewMemoryBus(),
		Settings: session.Settings{MaxSessions: maxSessions, ControlsHideDelay: time.Hour},
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	srv, err := New(Config{
		Catalog:  repo,
		Provider: provider,
		Sessions: mgr,
		Health:   health.NewManager("test"),
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	ts := &testServer{srv: srv, http: httptest.NewServer(srv.Handler()), catalog: repo, sessions: mgr}
	t.Cleanup(func() {
		srv.Shutdown()
		ts.http.Close()
		mgr.CloseAll()
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.http.URL+path, rd)
	require.NoError(t, err)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

type problemBody struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`
	Detail    string `json:"detail"`
	RequestID string `json:"requestId"`
}

func requireProblem(t *testing.T, resp *http.Response, status int, code string) problemBody {
	t.Helper()
	require.Equal(t, status, resp.StatusCode)
	require.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))
	p := decode[problemBody](t, resp)
	assert.Equal(t, status, p.Status)
	assert.Equal(t, code, p.Code)
	assert.NotEmpty(t, p.RequestID)
	return p
}

func (ts *testServer) open(t *testing.T, req session.OpenRequest) session.Info {
	t.Helper()
	resp := ts.do(t, http.MethodPost, "/api/v1/sessions", req)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	info := decode[session.Info](t, resp)
	assert.Equal(t, "/api/v1/sessions/"+info.ID, resp.Header.Get("Location"))
	return info
}

func TestProbes(t *testing.T) {
	ts := newTestServer(t, 4)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/healthz", nil).StatusCode)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/readyz", nil).StatusCode)

	resp := ts.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "streamplay_")
}

func TestUnknownRouteIsProblem(t *testing.T) {
	ts := newTestServer(t, 4)
	requireProblem(t, ts.do(t, http.MethodGet, "/api/v1/nope", nil), http.StatusNotFound, CodeNotFound)
}

func TestContentCRUD(t *testing.T) {
	ts := newTestServer(t, 4)

	c := movie()
	c.ID = ""
	c.Title = "Sintel"
	resp := ts.do(t, http.MethodPut, "/api/v1/content/sintel", c)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	stored := decode[catalog.Content](t, resp)
	assert.Equal(t, "sintel", stored.ID)

	c.Title = "Sintel (2010)"
	resp = ts.do(t, http.MethodPut, "/api/v1/content/sintel", c)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/v1/content/sintel", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Sintel (2010)", decode[catalog.Content](t, resp).Title)

	resp = ts.do(t, http.MethodGet, "/api/v1/content", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[struct {
		Items []catalog.Content `json:"items"`
	}](t, resp)
	assert.Len(t, list.Items, 2)

	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, "/api/v1/content/sintel", nil).StatusCode)
	requireProblem(t, ts.do(t, http.MethodGet, "/api/v1/content/sintel", nil), http.StatusNotFound, CodeNotFound)
	requireProblem(t, ts.do(t, http.MethodDelete, "/api/v1/content/sintel", nil), http.StatusNotFound, CodeNotFound)
}

func TestContentPutRejections(t *testing.T) {
	ts := newTestServer(t, 4)

	t.Run("invalid content", func(t *testing.T) {
		c := movie()
		c.Title = ""
		requireProblem(t, ts.do(t, http.MethodPut, "/api/v1/content/movie-1", c), http.StatusUnprocessableEntity, CodeContractViolation)
	})
	t.Run("id mismatch", func(t *testing.T) {
		requireProblem(t, ts.do(t, http.MethodPut, "/api/v1/content/other", movie()), http.StatusUnprocessableEntity, CodeContractViolation)
	})
	t.Run("unknown field", func(t *testing.T) {
		requireProblem(t, ts.do(t, http.MethodPut, "/api/v1/content/movie-1", `{"title":"x","rating":5}`), http.StatusBadRequest, CodeBadRequest)
	})
	t.Run("trailing data", func(t *testing.T) {
		requireProblem(t, ts.do(t, http.MethodPut, "/api/v1/content/movie-1", `{"title":"x"} {}`), http.StatusBadRequest, CodeBadRequest)
	})
}

func TestMediaResources(t *testing.T) {
	ts := newTestServer(t, 4)

	resp := ts.do(t, http.MethodGet, "/api/v1/content/movie-1/media", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[media.Resources](t, resp)
	require.Len(t, res.QualityOptions, 2)
	assert.Equal(t, "480p", res.QualityOptions[0].Label)
	require.Len(t, res.SubtitleTracks, 1)
	assert.Equal(t, "English", res.SubtitleTracks[0].Label)

	requireProblem(t, ts.do(t, http.MethodGet, "/api/v1/content/missing/media", nil), http.StatusNotFound, CodeNotFound)
}

func TestSessionLifecycle(t *testing.T) {
	ts := newTestServer(t, 4)

	info := ts.open(t, session.OpenRequest{ContentID: "movie-1", Autoplay: true, Quality: "720p"})
	assert.Equal(t, playback.PhaseLoading, info.State.Phase)
	assert.Equal(t, "https://cdn.example/bbb/720.mp4", info.State.Source)
	gen := info.State.Generation
	base := "/api/v1/sessions/" + info.ID

	resp := ts.do(t, http.MethodPost, base+"/signals", session.Signal{Type: session.SigReady, Generation: gen, DurationSeconds: 600})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, playback.PhasePlaying, decode[playback.State](t, resp).Phase)

	resp = ts.do(t, http.MethodPost, base+"/commands", session.Command{Type: session.CmdTogglePlay})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, playback.PhasePaused, decode[playback.State](t, resp).Phase)

	// A signal for an older generation changes nothing.
	resp = ts.do(t, http.MethodPost, base+"/commands", session.Command{Type: session.CmdChangeQuality, Quality: "480p"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decode[playback.State](t, resp)
	assert.Equal(t, playback.PhaseLoading, st.Phase)
	resp = ts.do(t, http.MethodPost, base+"/signals", session.Signal{Type: session.SigReady, Generation: gen, DurationSeconds: 600})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, playback.PhaseLoading, decode[playback.State](t, resp).Phase)

	resp = ts.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "480p", decode[session.Info](t, resp).State.CurrentQuality)

	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, base, nil).StatusCode)
	requireProblem(t, ts.do(t, http.MethodGet, base, nil), http.StatusNotFound, CodeNotFound)
	requireProblem(t, ts.do(t, http.MethodDelete, base, nil), http.StatusNotFound, CodeNotFound)
}

func TestSessionErrorMapping(t *testing.T) {
	ts := newTestServer(t, 4)
	info := ts.open(t, session.OpenRequest{ContentID: "movie-1"})
	base := "/api/v1/sessions/" + info.ID

	cases := []struct {
		name   string
		path   string
		body   any
		status int
		code   string
	}{
		{"unknown quality", "/commands", session.Command{Type: session.CmdChangeQuality, Quality: "4K"}, http.StatusUnprocessableEntity, CodeContractViolation},
		{"unknown subtitle", "/commands", session.Command{Type: session.CmdChangeSubtitle, Subtitle: "nope.vtt"}, http.StatusUnprocessableEntity, CodeContractViolation},
		{"unknown command", "/commands", session.Command{Type: "dance"}, http.StatusUnprocessableEntity, CodeContractViolation},
		{"missing volume", "/commands", session.Command{Type: session.CmdSetVolume}, http.StatusUnprocessableEntity, CodeContractViolation},
		{"retry without failure", "/commands", session.Command{Type: session.CmdRetry}, http.StatusConflict, CodeInvalidState},
		{"unknown signal", "/signals", session.Signal{Type: "teleport"}, http.StatusUnprocessableEntity, CodeContractViolation},
		{"malformed body", "/commands", `{"type":`, http.StatusBadRequest, CodeBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			requireProblem(t, ts.do(t, http.MethodPost, base+tc.path, tc.body), tc.status, tc.code)
		})
	}

	t.Run("retry required after failure", func(t *testing.T) {
		gen := info.State.Generation
		resp := ts.do(t, http.MethodPost, base+"/signals", session.Signal{Type: session.SigError, Generation: gen, Message: "decode failed"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, playback.PhaseError, decode[playback.State](t, resp).Phase)

		requireProblem(t, ts.do(t, http.MethodPost, base+"/commands", session.Command{Type: session.CmdTogglePlay}), http.StatusConflict, CodeRetryRequired)
		requireProblem(t, ts.do(t, http.MethodPost, base+"/commands", session.Command{Type: session.CmdChangeQuality, Quality: "720p"}), http.StatusConflict, CodeRetryRequired)

		resp = ts.do(t, http.MethodPost, base+"/commands", session.Command{Type: session.CmdRetry})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		st := decode[playback.State](t, resp)
		assert.Equal(t, playback.PhaseLoading, st.Phase)
		assert.Greater(t, st.Generation, gen)
	})

	t.Run("unknown session", func(t *testing.T) {
		requireProblem(t, ts.do(t, http.MethodPost, "/api/v1/sessions/nope/commands", session.Command{Type: session.CmdTogglePlay}), http.StatusNotFound, CodeNotFound)
	})
}

func TestOpenSessionRejections(t *testing.T) {
	ts := newTestServer(t, 1)

	requireProblem(t, ts.do(t, http.MethodPost, "/api/v1/sessions", session.OpenRequest{}), http.StatusBadRequest, CodeBadRequest)
	requireProblem(t, ts.do(t, http.MethodPost, "/api/v1/sessions", session.OpenRequest{ContentID: "missing"}), http.StatusNotFound, CodeNotFound)
	requireProblem(t, ts.do(t, http.MethodPost, "/api/v1/sessions", session.OpenRequest{ContentID: "movie-1", Quality: "4K"}), http.StatusUnprocessableEntity, CodeContractViolation)

	ts.open(t, session.OpenRequest{ContentID: "movie-1"})
	requireProblem(t, ts.do(t, http.MethodPost, "/api/v1/sessions", session.OpenRequest{ContentID: "movie-1"}), http.StatusTooManyRequests, CodeTooManySessions)
}

func TestClassify(t *testing.T) {
	_, _, ok := classify(io.EOF)
	assert.False(t, ok)

	status, code, ok := classify(playback.ErrFullscreenDenied)
	assert.True(t, ok)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, CodeFullscreenDenied, code)
}
