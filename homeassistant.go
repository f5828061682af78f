/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Seednode/killerpool/games/killerpool"
	"golang.org/x/oauth2"
)

const haEventType = "killer_pool_action"

type actionEvent struct {
	GameID     string `json:"game_id"`
	Seq        int    `json:"seq"`
	Timestamp  int64  `json:"timestamp"`
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	Action     string `json:"action"`
}

func newActionEvent(out killerpool.Outcome, at time.Time) actionEvent {
	return actionEvent{
		GameID:     out.MatchID,
		Seq:        out.Seq,
		Timestamp:  at.UnixMilli(),
		PlayerID:   out.PlayerID,
		PlayerName: out.PlayerName,
		Action:     string(out.Action),
	}
}

// EventSink forwards actions to home assistant's event API in the
// background. A nil *EventSink discards everything.
type EventSink struct {
	cfg      *Config
	client   *http.Client
	endpoint string
	metrics  *Metrics
	queue    chan actionEvent
}

func newEventSink(ctx context.Context, cfg *Config, metrics *Metrics) *EventSink {
	if cfg.haURL == "" || cfg.haToken == "" {
		return nil
	}

	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cfg.haToken,
		TokenType:   "Bearer",
	}))
	client.Timeout = timeout

	return &EventSink{
		cfg:      cfg,
		client:   client,
		endpoint: strings.TrimSuffix(cfg.haURL, "/") + "/api/events/" + haEventType,
		metrics:  metrics,
		queue:    make(chan actionEvent, 64),
	}
}

// publish queues an outcome without blocking; it is dropped when the
// queue is full.
func (s *EventSink) publish(out killerpool.Outcome) {
	if s == nil || out.Skipped {
		return
	}

	select {
	case s.queue <- newActionEvent(out, time.Now()):
	default:
		s.metrics.events.WithLabelValues("dropped").Inc()
		errorf("EVENTS: queue full, dropped %s #%d", out.MatchID, out.Seq)
	}
}

func (s *EventSink) run(ctx context.Context) {
	if s == nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.queue:
			if err := s.send(ctx, ev); err != nil {
				s.metrics.events.WithLabelValues("failed").Inc()
				errorf("EVENTS: %v", err)
				continue
			}

			s.metrics.events.WithLabelValues("sent").Inc()
			logf(s.cfg, "EVENTS: Sent %s #%d (%s by %q)", ev.GameID, ev.Seq, ev.Action, ev.PlayerName)
		}
	}
}

func (s *EventSink) send(ctx context.Context, ev actionEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("home assistant returned %s", resp.Status)
	}

	return nil
}
