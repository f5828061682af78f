/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"

	"github.com/Seednode/killerpool/games/killerpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	actions         *prometheus.CounterVec
	eliminations    prometheus.Counter
	matchesFinished prometheus.Counter
	rosterSize      prometheus.Gauge
	resets          *prometheus.CounterVec
	events          *prometheus.CounterVec
}

func newMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "killerpool",
			Name:      "actions_total",
			Help:      "Turns played, by action.",
		}, []string{"action"}),
		eliminations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "killerpool",
			Name:      "eliminations_total",
			Help:      "Players knocked out after three misses.",
		}),
		matchesFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "killerpool",
			Name:      "matches_finished_total",
			Help:      "Matches that ended with a winner.",
		}),
		rosterSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "killerpool",
			Name:      "roster_size",
			Help:      "Players currently in the roster.",
		}),
		resets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "killerpool",
			Name:      "admin_resets_total",
			Help:      "Admin reset attempts, by result.",
		}, []string{"result"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "killerpool",
			Name:      "events_total",
			Help:      "Action events forwarded to home assistant, by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.actions,
		m.eliminations,
		m.matchesFinished,
		m.rosterSize,
		m.resets,
		m.events,
	)

	return m
}

func (m *Metrics) observe(out killerpool.Outcome) {
	if out.Skipped {
		return
	}

	m.actions.WithLabelValues(string(out.Action)).Inc()

	if out.Eliminated {
		m.eliminations.Inc()
	}

	if out.Over {
		m.matchesFinished.Inc()
	}
}

func (m *Metrics) observeRoster(s killerpool.Snapshot) {
	m.rosterSize.Set(float64(len(s.Players)))
}

func (m *Metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
