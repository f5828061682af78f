/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package killerpool

// Phase names the state of the match.
type Phase string

const (
	NotStarted Phase = "not_started"
	InProgress Phase = "in_progress"
	Over       Phase = "over"
)

// PlayerState is a roster entry as seen by clients.
type PlayerState struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Emoji      string `json:"emoji,omitempty"`
	Misses     int    `json:"misses"`
	Eliminated bool   `json:"eliminated"`
}

// Snapshot is a point-in-time copy of the engine state.
type Snapshot struct {
	Players         []PlayerState `json:"players"`
	Phase           Phase         `json:"phase"`
	Started         bool          `json:"gameStarted"`
	Over            bool          `json:"gameOver"`
	CurrentPlayerID string        `json:"currentPlayerId,omitempty"`
	CurrentPlayer   string        `json:"currentPlayer,omitempty"`
	Winner          *Winner       `json:"winner"`
	MatchID         string        `json:"matchId,omitempty"`
}

// Alive counts players who are not eliminated.
func (s Snapshot) Alive() int {
	n := 0
	for _, p := range s.Players {
		if !p.Eliminated {
			n++
		}
	}

	return n
}

// Snapshot copies the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := Snapshot{
		Players: make([]PlayerState, 0, len(e.roster)),
		Started: e.started,
		Over:    e.over,
		MatchID: e.matchID,
	}

	for _, p := range e.roster {
		s.Players = append(s.Players, PlayerState{
			ID:         p.id,
			Name:       p.name,
			Emoji:      p.emoji,
			Misses:     p.misses,
			Eliminated: p.eliminated,
		})
	}

	switch {
	case e.over:
		s.Phase = Over
	case e.started:
		s.Phase = InProgress
	default:
		s.Phase = NotStarted
	}

	if !e.over && e.current >= 0 && e.current < len(e.roster) {
		s.CurrentPlayerID = e.roster[e.current].id
		s.CurrentPlayer = e.roster[e.current].name
	}

	if e.winner != nil {
		w := *e.winner
		s.Winner = &w
	}

	return s
}
