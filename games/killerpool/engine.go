/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package killerpool keeps score for a game of killer pool.
//
// Players are picked from a directory of known players into an ordered
// roster. Once a match starts, each turn ends in a hit or a miss. Three
// misses eliminate a player, and the last player standing wins. The
// roster is frozen from the start of a match until an admin reset.
package killerpool

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"
)

// MaxMisses is the number of misses that eliminates a player.
const MaxMisses = 3

// Action is the result of a single turn.
type Action string

const (
	Hit  Action = "hit"
	Miss Action = "miss"
)

// ParseAction accepts "hit" or "miss".
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case Hit, Miss:
		return Action(s), nil
	}

	return "", fmt.Errorf("unknown action %q", s)
}

// Profile is a known player as stored in the directory.
type Profile struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Emoji string `json:"emoji,omitempty" yaml:"emoji,omitempty"`
}

// Directory resolves player ids to known players.
type Directory interface {
	Lookup(id string) (Profile, bool)
}

type player struct {
	id         string
	name       string
	emoji      string
	misses     int
	eliminated bool
}

// Winner is the sole survivor of a finished match.
type Winner struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Emoji string `json:"emoji"`
}

// Outcome describes one applied action.
type Outcome struct {
	MatchID    string  `json:"matchId"`
	Seq        int     `json:"seq"`
	PlayerID   string  `json:"playerId"`
	PlayerName string  `json:"playerName"`
	Action     Action  `json:"action"`
	Misses     int     `json:"misses"`
	Eliminated bool    `json:"eliminated"`
	Over       bool    `json:"over"`
	Winner     *Winner `json:"winner,omitempty"`
	NextID     string  `json:"nextPlayerId,omitempty"`

	// Skipped is set when the player at the turn pointer was already
	// out and the turn moved on without applying the action.
	Skipped bool `json:"skipped,omitempty"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithRand sets the source used to shuffle the roster.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) {
		e.intN = r.IntN
	}
}

// Engine holds the roster and match state. All methods are safe for
// concurrent use; mutations are serialized.
type Engine struct {
	mu sync.RWMutex

	directory Directory
	secret    string
	intN      func(int) int

	roster  []*player
	started bool
	over    bool
	current int
	winner  *Winner

	matchID string
	seq     int
}

// New returns an engine resolving players through dir. Resets are
// authorized by secret; an empty secret authorizes nothing.
func New(dir Directory, secret string, opts ...Option) *Engine {
	e := &Engine{
		directory: dir,
		secret:    secret,
		intN:      rand.IntN,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

func (e *Engine) indexOf(id string) int {
	for i, p := range e.roster {
		if p.id == id {
			return i
		}
	}

	return -1
}

// SelectPlayer appends a known player to the roster.
func (e *Engine) SelectPlayer(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return fmt.Errorf("%w: cannot select players during a match", ErrConflict)
	}

	profile, ok := e.directory.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	if e.indexOf(id) >= 0 {
		return fmt.Errorf("%w: %q", ErrAlreadySelected, profile.Name)
	}

	e.roster = append(e.roster, &player{
		id:    profile.ID,
		name:  profile.Name,
		emoji: profile.Emoji,
	})

	return nil
}

// RemovePlayer drops a player from the roster.
func (e *Engine) RemovePlayer(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return fmt.Errorf("%w: cannot remove players during a match", ErrConflict)
	}

	i := e.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %q is not in the roster", ErrNotFound, id)
	}

	e.roster = append(e.roster[:i], e.roster[i+1:]...)

	switch {
	case i < e.current:
		e.current--
	case e.current >= len(e.roster):
		e.current = 0
	}

	return nil
}

// Shuffle randomizes the turn order.
func (e *Engine) Shuffle() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return fmt.Errorf("%w: cannot shuffle during a match", ErrConflict)
	}

	for i := len(e.roster) - 1; i > 0; i-- {
		j := e.intN(i + 1)
		e.roster[i], e.roster[j] = e.roster[j], e.roster[i]
	}

	e.current = 0

	return nil
}

// StartMatch begins a match with the current roster.
func (e *Engine) StartMatch() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return fmt.Errorf("%w: match already started", ErrConflict)
	}

	if len(e.roster) < 2 {
		return fmt.Errorf("%w: need at least 2 players, have %d", ErrInvalidState, len(e.roster))
	}

	e.clearLocked()
	e.started = true
	e.matchID = uuid.NewString()

	return nil
}

// Apply records the current player's turn and moves play on.
func (e *Engine) Apply(action Action) (Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case !e.started:
		return Outcome{}, fmt.Errorf("%w: match has not started", ErrInvalidState)
	case e.over:
		return Outcome{}, fmt.Errorf("%w: match is over", ErrInvalidState)
	case e.current < 0 || e.current >= len(e.roster):
		return Outcome{}, fmt.Errorf("%w: no current player", ErrInvalidState)
	}

	p := e.roster[e.current]

	if p.eliminated {
		e.advanceLocked()

		return Outcome{
			MatchID:    e.matchID,
			Seq:        e.seq,
			PlayerID:   p.id,
			PlayerName: p.name,
			Action:     action,
			Misses:     p.misses,
			Eliminated: true,
			NextID:     e.roster[e.current].id,
			Skipped:    true,
		}, nil
	}

	e.seq++

	if action == Miss {
		p.misses++
		if p.misses >= MaxMisses {
			p.eliminated = true
		}
	}

	e.checkOverLocked()

	if !e.over {
		e.advanceLocked()
	}

	out := Outcome{
		MatchID:    e.matchID,
		Seq:        e.seq,
		PlayerID:   p.id,
		PlayerName: p.name,
		Action:     action,
		Misses:     p.misses,
		Eliminated: p.eliminated,
		Over:       e.over,
	}

	if e.winner != nil {
		w := *e.winner
		out.Winner = &w
	}

	if !e.over {
		out.NextID = e.roster[e.current].id
	}

	return out, nil
}

// Reset returns the engine to the pre-match state, keeping the roster.
func (e *Engine) Reset(credential string) error {
	if e.secret == "" || credential != e.secret {
		return ErrUnauthorized
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.clearLocked()
	e.started = false
	e.matchID = ""

	return nil
}

func (e *Engine) clearLocked() {
	for _, p := range e.roster {
		p.misses = 0
		p.eliminated = false
	}

	e.over = false
	e.winner = nil
	e.current = 0
	e.seq = 0
}

func (e *Engine) aliveLocked() []*player {
	alive := make([]*player, 0, len(e.roster))
	for _, p := range e.roster {
		if !p.eliminated {
			alive = append(alive, p)
		}
	}

	return alive
}

// checkOverLocked ends the match once at most one player is left.
func (e *Engine) checkOverLocked() {
	if e.over {
		return
	}

	alive := e.aliveLocked()

	switch len(alive) {
	case 0:
		e.over = true
	case 1:
		e.over = true
		e.winner = &Winner{
			ID:    alive[0].id,
			Name:  alive[0].name,
			Emoji: Glyph(alive[0].name),
		}
	}
}

// advanceLocked moves the pointer to the next player still in, wrapping
// around. It stays put when nobody else is left.
func (e *Engine) advanceLocked() {
	n := len(e.roster)
	for i := 1; i < n; i++ {
		next := (e.current + i) % n
		if !e.roster[next].eliminated {
			e.current = next
			return
		}
	}
}
