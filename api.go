/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Seednode/killerpool/games/killerpool"
	"github.com/julienschmidt/httprouter"
	"golang.org/x/time/rate"
)

const maxBodySize = 4 << 10

var errTooManyAttempts = errors.New("too many attempts, try again shortly")

const (
	resetBurst      = 5
	maxResetClients = 1024
)

// resetLimiter throttles failed admin reset attempts per client address.
type resetLimiter struct {
	mu      sync.Mutex
	clients map[string]*rate.Limiter
}

func newResetLimiter() *resetLimiter {
	return &resetLimiter{clients: make(map[string]*rate.Limiter)}
}

func (l *resetLimiter) limiterLocked(addr string) *rate.Limiter {
	lim, ok := l.clients[addr]
	if !ok {
		if len(l.clients) >= maxResetClients {
			l.pruneLocked()
		}
		lim = rate.NewLimiter(rate.Every(time.Second), resetBurst)
		l.clients[addr] = lim
	}

	return lim
}

// allowed reports whether addr may try a password right now. It does not
// spend a token.
func (l *resetLimiter) allowed(addr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.limiterLocked(addr).Tokens() >= 1
}

// failed charges addr for a wrong password.
func (l *resetLimiter) failed(addr string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.limiterLocked(addr).Allow()
}

// pruneLocked forgets clients whose bucket has refilled.
func (l *resetLimiter) pruneLocked() {
	for addr, lim := range l.clients {
		if lim.Tokens() >= resetBurst {
			delete(l.clients, addr)
		}
	}
}

// clientHost is the requesting address without its port.
func clientHost(r *http.Request) string {
	addr := realIP(r)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}

	return addr
}

// Game wires the engine to its collaborators: the player directory,
// scoreboard pushes, metrics and home assistant forwarding.
type Game struct {
	cfg       *Config
	engine    *killerpool.Engine
	directory *Directory
	hub       *Hub
	metrics   *Metrics
	events    *EventSink
	resets    *resetLimiter
}

func newGame(cfg *Config, engine *killerpool.Engine, dir *Directory, metrics *Metrics, events *EventSink) *Game {
	return &Game{
		cfg:       cfg,
		engine:    engine,
		directory: dir,
		hub:       newHub(engine),
		metrics:   metrics,
		events:    events,
		resets:    newResetLimiter(),
	}
}

type playerRequest struct {
	ID string `json:"id"`
}

type actionRequest struct {
	Type string `json:"type"`
}

type resetRequest struct {
	Password string `json:"password"`
}

type okResponse struct {
	OK      bool                `json:"ok"`
	Outcome *killerpool.Outcome `json:"outcome,omitempty"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}

	return nil
}

// changed is called after every successful mutation.
func (g *Game) changed() {
	g.metrics.observeRoster(g.engine.Snapshot())
	g.hub.notify()
}

func (g *Game) respond(w http.ResponseWriter, errs chan<- error, status int, v any) {
	if err := writeJSON(w, status, v); err != nil {
		errs <- err
	}
}

func (g *Game) fail(w http.ResponseWriter, r *http.Request, errs chan<- error, status int, err error) {
	logf(g.cfg, "GAMES: %s %s from %s failed: %v", r.Method, r.URL.Path, realIP(r), err)

	if err := writeError(w, status, err); err != nil {
		errs <- err
	}
}

func (g *Game) serveState(errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		securityHeaders(g.cfg, w)
		w.Header().Set("Cache-Control", "no-store")

		g.respond(w, errs, http.StatusOK, g.engine.Snapshot())
	}
}

func (g *Game) serveKnown(errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		securityHeaders(g.cfg, w)

		g.respond(w, errs, http.StatusOK, map[string][]killerpool.Profile{
			"players": g.directory.List(),
		})
	}
}

// playerOp adapts an engine call taking a player id into a handler.
func (g *Game) playerOp(verb string, op func(string) error, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		securityHeaders(g.cfg, w)

		var req playerRequest
		if err := decodeBody(w, r, &req); err != nil {
			g.fail(w, r, errs, http.StatusBadRequest, err)
			return
		}

		if req.ID == "" {
			g.fail(w, r, errs, http.StatusBadRequest, errors.New("missing player id"))
			return
		}

		if err := op(req.ID); err != nil {
			g.fail(w, r, errs, statusFor(err), err)
			return
		}

		g.changed()

		logf(g.cfg, "GAMES: %s player %s", verb, req.ID)

		g.respond(w, errs, http.StatusOK, okResponse{OK: true})
	}
}

func (g *Game) serveSelect(errs chan<- error) httprouter.Handle {
	return g.playerOp("Selected", g.engine.SelectPlayer, errs)
}

func (g *Game) serveRemove(errs chan<- error) httprouter.Handle {
	return g.playerOp("Removed", g.engine.RemovePlayer, errs)
}

func (g *Game) serveShuffle(errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		securityHeaders(g.cfg, w)

		if err := g.engine.Shuffle(); err != nil {
			g.fail(w, r, errs, statusFor(err), err)
			return
		}

		g.changed()

		logf(g.cfg, "GAMES: Shuffled roster")

		g.respond(w, errs, http.StatusOK, okResponse{OK: true})
	}
}

func (g *Game) serveStart(errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		securityHeaders(g.cfg, w)

		if err := g.engine.StartMatch(); err != nil {
			g.fail(w, r, errs, statusFor(err), err)
			return
		}

		g.changed()

		s := g.engine.Snapshot()
		logf(g.cfg, "GAMES: Started match %s with %d players", s.MatchID, len(s.Players))

		g.respond(w, errs, http.StatusOK, okResponse{OK: true})
	}
}

func (g *Game) serveAction(errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		securityHeaders(g.cfg, w)

		var req actionRequest
		if err := decodeBody(w, r, &req); err != nil {
			g.fail(w, r, errs, http.StatusBadRequest, err)
			return
		}

		action, err := killerpool.ParseAction(req.Type)
		if err != nil {
			g.fail(w, r, errs, http.StatusBadRequest, err)
			return
		}

		out, err := g.engine.Apply(action)
		if err != nil {
			g.fail(w, r, errs, statusFor(err), err)
			return
		}

		g.metrics.observe(out)
		g.events.publish(out)
		g.changed()

		alive := g.engine.Snapshot().Alive()

		switch {
		case out.Skipped:
			logf(g.cfg, "GAMES: Skipped %q, already out", out.PlayerName)
		case out.Over && out.Winner != nil:
			logf(g.cfg, "GAMES: %s %q wins match %s", out.Winner.Emoji, out.Winner.Name, out.MatchID)
		case out.Eliminated:
			logf(g.cfg, "GAMES: %q eliminated in match %s, %d still in", out.PlayerName, out.MatchID, alive)
		default:
			logf(g.cfg, "GAMES: %q %s (%d/%d misses, %d still in)", out.PlayerName, out.Action, out.Misses, killerpool.MaxMisses, alive)
		}

		g.respond(w, errs, http.StatusOK, okResponse{OK: true, Outcome: &out})
	}
}

func (g *Game) serveReset(errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		securityHeaders(g.cfg, w)

		addr := clientHost(r)
		if !g.resets.allowed(addr) {
			g.metrics.resets.WithLabelValues("limited").Inc()
			g.fail(w, r, errs, http.StatusTooManyRequests, errTooManyAttempts)
			return
		}

		var req resetRequest
		if err := decodeBody(w, r, &req); err != nil {
			g.fail(w, r, errs, http.StatusBadRequest, err)
			return
		}

		if err := g.engine.Reset(req.Password); err != nil {
			g.resets.failed(addr)
			g.metrics.resets.WithLabelValues("denied").Inc()
			g.fail(w, r, errs, statusFor(err), errors.New("invalid password"))
			return
		}

		g.metrics.resets.WithLabelValues("ok").Inc()
		g.changed()

		logf(g.cfg, "ADMIN: New game requested by %s", realIP(r))

		g.respond(w, errs, http.StatusOK, okResponse{OK: true})
	}
}

func (g *Game) register(mux *httprouter.Router, errs chan<- error) {
	p := g.cfg.prefix

	mux.GET(p+"/api/state", g.serveState(errs))
	mux.GET(p+"/api/players/known", g.serveKnown(errs))
	mux.POST(p+"/api/players/select", g.serveSelect(errs))
	mux.POST(p+"/api/players/remove", g.serveRemove(errs))
	mux.POST(p+"/api/players/randomize", g.serveShuffle(errs))
	mux.POST(p+"/api/start", g.serveStart(errs))
	mux.POST(p+"/api/action", g.serveAction(errs))
	mux.POST(p+"/api/admin/newgame", g.serveReset(errs))
	mux.GET(p+"/api/ws", serveWS(g.cfg, g.hub))
}
