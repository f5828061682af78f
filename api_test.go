/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Seednode/killerpool/games/killerpool"
	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPassword = "s3cret"

	testPlayers = `knownPlayers:
  - id: a
    name: Alice
  - id: b
    name: "🎱 Bob"
  - id: c
    name: Carol
`
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))

	return p
}

func newTestRouter(t *testing.T, cfg *Config) (*httprouter.Router, *Game) {
	t.Helper()

	dir := newDirectory(cfg, writeFile(t, "players.yaml", testPlayers))
	game := newGame(cfg, killerpool.New(dir, testPassword), dir, newMetrics(), nil)

	return newRouter(cfg, game, make(chan error, 64)), game
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	return doFrom(t, h, "", method, path, body)
}

// doFrom is do with the request coming from addr.
func doFrom(t *testing.T, h http.Handler, addr, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, r)
	if addr != "" {
		req.RemoteAddr = addr
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec
}

func state(t *testing.T, h http.Handler) killerpool.Snapshot {
	t.Helper()

	rec := do(t, h, http.MethodGet, "/api/state", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var s killerpool.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))

	return s
}

func TestKnownPlayers(t *testing.T) {
	mux, _ := newTestRouter(t, &Config{})

	rec := do(t, mux, http.MethodGet, "/api/players/known", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Players []killerpool.Profile `json:"players"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Players, 3)
	assert.Equal(t, "a", body.Players[0].ID)
	assert.Equal(t, "🎱", body.Players[1].Emoji)
}

func TestMatchOverHTTP(t *testing.T) {
	mux, _ := newTestRouter(t, &Config{})

	assert.Equal(t, http.StatusOK, do(t, mux, http.MethodPost, "/api/players/select", `{"id":"a"}`).Code)
	assert.Equal(t, http.StatusOK, do(t, mux, http.MethodPost, "/api/players/select", `{"id":"b"}`).Code)
	assert.Equal(t, http.StatusConflict, do(t, mux, http.MethodPost, "/api/players/select", `{"id":"a"}`).Code)
	assert.Equal(t, http.StatusNotFound, do(t, mux, http.MethodPost, "/api/players/select", `{"id":"zz"}`).Code)

	assert.Equal(t, http.StatusBadRequest, do(t, mux, http.MethodPost, "/api/action", `{"type":"miss"}`).Code)

	assert.Equal(t, http.StatusOK, do(t, mux, http.MethodPost, "/api/start", "").Code)
	assert.Equal(t, http.StatusConflict, do(t, mux, http.MethodPost, "/api/start", "").Code)
	assert.Equal(t, http.StatusConflict, do(t, mux, http.MethodPost, "/api/players/select", `{"id":"c"}`).Code)
	assert.Equal(t, http.StatusConflict, do(t, mux, http.MethodPost, "/api/players/remove", `{"id":"a"}`).Code)
	assert.Equal(t, http.StatusConflict, do(t, mux, http.MethodPost, "/api/players/randomize", "").Code)

	s := state(t, mux)
	assert.True(t, s.Started)
	assert.Equal(t, "a", s.CurrentPlayerID)
	assert.Equal(t, "Alice", s.CurrentPlayer)

	var last *httptest.ResponseRecorder
	for _, action := range []string{"miss", "hit", "miss", "hit", "miss"} {
		last = do(t, mux, http.MethodPost, "/api/action", `{"type":"`+action+`"}`)
		require.Equal(t, http.StatusOK, last.Code, last.Body.String())
	}

	var resp okResponse
	require.NoError(t, json.Unmarshal(last.Body.Bytes(), &resp))
	require.NotNil(t, resp.Outcome)
	assert.True(t, resp.Outcome.Over)
	assert.Equal(t, 5, resp.Outcome.Seq)

	s = state(t, mux)
	require.True(t, s.Over)
	require.NotNil(t, s.Winner)
	assert.Equal(t, "b", s.Winner.ID)
	assert.Equal(t, "🎱", s.Winner.Emoji)
	assert.Empty(t, s.CurrentPlayerID)

	assert.Equal(t, http.StatusBadRequest, do(t, mux, http.MethodPost, "/api/action", `{"type":"hit"}`).Code)

	assert.Equal(t, http.StatusUnauthorized, do(t, mux, http.MethodPost, "/api/admin/newgame", `{"password":"nope"}`).Code)
	assert.Equal(t, http.StatusOK, do(t, mux, http.MethodPost, "/api/admin/newgame", `{"password":"`+testPassword+`"}`).Code)

	s = state(t, mux)
	assert.False(t, s.Started)
	assert.False(t, s.Over)
	assert.Nil(t, s.Winner)
	require.Len(t, s.Players, 2)
	for _, p := range s.Players {
		assert.Zero(t, p.Misses)
		assert.False(t, p.Eliminated)
	}

	assert.Equal(t, http.StatusOK, do(t, mux, http.MethodPost, "/api/players/remove", `{"id":"a"}`).Code)
	assert.Equal(t, http.StatusNotFound, do(t, mux, http.MethodPost, "/api/players/remove", `{"id":"a"}`).Code)
}

func TestBadRequests(t *testing.T) {
	mux, _ := newTestRouter(t, &Config{})

	tests := []struct {
		name string
		path string
		body string
	}{
		{name: "malformed select", path: "/api/players/select", body: `{"id":`},
		{name: "missing id", path: "/api/players/select", body: `{}`},
		{name: "empty remove", path: "/api/players/remove", body: ""},
		{name: "unknown action", path: "/api/action", body: `{"type":"foul"}`},
		{name: "malformed reset", path: "/api/admin/newgame", body: `password`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, mux, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestResetIsRateLimited(t *testing.T) {
	mux, _ := newTestRouter(t, &Config{})

	codes := make([]int, 0, 8)
	for range 8 {
		codes = append(codes, do(t, mux, http.MethodPost, "/api/admin/newgame", `{"password":"guess"}`).Code)
	}

	assert.Equal(t, http.StatusUnauthorized, codes[0])
	assert.Contains(t, codes, http.StatusTooManyRequests)
}

func TestResetLimitIsPerClient(t *testing.T) {
	mux, _ := newTestRouter(t, &Config{})

	const (
		guesser = "192.0.2.10:1111"
		admin   = "198.51.100.7:5555"
		reset   = "/api/admin/newgame"
		wrong   = `{"password":"guess"}`
		right   = `{"password":"` + testPassword + `"}`
	)

	for i := range resetBurst {
		assert.Equal(t, http.StatusUnauthorized, doFrom(t, mux, guesser, http.MethodPost, reset, wrong).Code, "guess %d", i+1)
	}
	assert.Equal(t, http.StatusTooManyRequests, doFrom(t, mux, guesser, http.MethodPost, reset, wrong).Code)

	// A new port on the same host is still the same client.
	assert.Equal(t, http.StatusTooManyRequests, doFrom(t, mux, "192.0.2.10:2222", http.MethodPost, reset, right).Code)

	assert.Equal(t, http.StatusOK, doFrom(t, mux, admin, http.MethodPost, reset, right).Code)

	// Correct passwords are not charged.
	for range resetBurst + 2 {
		assert.Equal(t, http.StatusOK, doFrom(t, mux, admin, http.MethodPost, reset, right).Code)
	}
}

func TestStaticRoutes(t *testing.T) {
	mux, _ := newTestRouter(t, &Config{})

	tests := []struct {
		path        string
		status      int
		contentType string
	}{
		{path: "/", status: http.StatusOK, contentType: "text/html; charset=utf-8"},
		{path: "/game", status: http.StatusOK, contentType: "text/html; charset=utf-8"},
		{path: "/assets/game.js", status: http.StatusOK, contentType: "text/javascript; charset=utf-8"},
		{path: "/assets/killerpool.css", status: http.StatusOK, contentType: "text/css; charset=utf-8"},
		{path: "/assets/missing.js", status: http.StatusNotFound},
		{path: "/healthz", status: http.StatusOK, contentType: "text/plain; charset=utf-8"},
		{path: "/robots.txt", status: http.StatusOK, contentType: "text/plain; charset=utf-8"},
		{path: "/version", status: http.StatusOK, contentType: "text/plain; charset=utf-8"},
		{path: "/qr.png", status: http.StatusOK, contentType: "image/png"},
		{path: "/metrics", status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := do(t, mux, http.MethodGet, tt.path, "")
			assert.Equal(t, tt.status, rec.Code)
			if tt.contentType != "" {
				assert.Equal(t, tt.contentType, rec.Header().Get("Content-Type"))
			}
		})
	}
}

func TestPrefixedRoutes(t *testing.T) {
	mux, _ := newTestRouter(t, &Config{prefix: "/pool"})

	assert.Equal(t, http.StatusOK, do(t, mux, http.MethodGet, "/pool/api/state", "").Code)
	assert.Equal(t, http.StatusOK, do(t, mux, http.MethodGet, "/pool/game", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, mux, http.MethodGet, "/api/state", "").Code)
}

func TestMetricsRoute(t *testing.T) {
	mux, _ := newTestRouter(t, &Config{metrics: true})

	do(t, mux, http.MethodPost, "/api/players/select", `{"id":"a"}`)
	do(t, mux, http.MethodPost, "/api/players/select", `{"id":"c"}`)
	do(t, mux, http.MethodPost, "/api/start", "")
	do(t, mux, http.MethodPost, "/api/action", `{"type":"miss"}`)

	rec := do(t, mux, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `killerpool_actions_total{action="miss"} 1`)
	assert.Contains(t, body, "killerpool_roster_size 2")
}

func TestShareURL(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/qr.png", nil)
	req.Host = "pool.example:3000"

	assert.Equal(t, "http://pool.example:3000/game", shareURL(&Config{}, req))
	assert.Equal(t, "http://pool.example:3000/kp/game", shareURL(&Config{prefix: "/kp"}, req))

	req.Header.Set("X-Forwarded-Proto", "https")
	assert.Equal(t, "https://pool.example:3000/game", shareURL(&Config{}, req))
}
