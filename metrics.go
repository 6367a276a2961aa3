package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "ringside"

// Metrics exposes arena counters on a private Prometheus registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	stageTransitions *prometheus.CounterVec
	roundsFinished   *prometheus.CounterVec
	population       *prometheus.GaugeVec
	moves            *prometheus.CounterVec
	droppedIntents   *prometheus.CounterVec
	connections      prometheus.Gauge
	ledgerWrites     *prometheus.CounterVec
}

// NewMetrics registers every collector on a fresh registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		stageTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "stage_transitions_total",
			Help:      "Stage entries by stage.",
		}, []string{"stage"}),
		roundsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rounds_finished_total",
			Help:      "Finished rounds by reason.",
		}, []string{"reason"}),
		population: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "population",
			Help:      "Participants by role bucket and kind.",
		}, []string{"bucket"}),
		moves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "moves_total",
			Help:      "Resolved moves by actor kind.",
		}, []string{"actor"}),
		droppedIntents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "dropped_intents_total",
			Help:      "Inbound intents dropped without state change.",
		}, []string{"reason"}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "ws_connections",
			Help:      "Open websocket connections.",
		}),
		ledgerWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "ledger_writes_total",
			Help:      "Match ledger rows by result.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(
		m.stageTransitions,
		m.roundsFinished,
		m.population,
		m.moves,
		m.droppedIntents,
		m.connections,
		m.ledgerWrites,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StageEntered counts a transition into s
func (m *Metrics) StageEntered(s Stage) {
	if m == nil {
		return
	}
	m.stageTransitions.WithLabelValues(string(s)).Inc()
}

// RoundFinished counts a decided or drawn round
func (m *Metrics) RoundFinished(reason string) {
	if m == nil {
		return
	}
	m.roundsFinished.WithLabelValues(reason).Inc()
}

// Population mirrors a playerCountUpdate
func (m *Metrics) Population(c PopulationCounts) {
	if m == nil {
		return
	}
	m.population.WithLabelValues("total").Set(float64(c.Total))
	m.population.WithLabelValues("viewers").Set(float64(c.Viewers))
	m.population.WithLabelValues("fighters").Set(float64(c.Fighters))
	m.population.WithLabelValues("referee").Set(float64(c.Referee))
	m.population.WithLabelValues("real").Set(float64(c.RealUsers))
	m.population.WithLabelValues("bots").Set(float64(c.BotCount.Total))
}

// MoveApplied counts a resolved move
func (m *Metrics) MoveApplied(bot bool) {
	if m == nil {
		return
	}
	actor := "human"
	if bot {
		actor = "bot"
	}
	m.moves.WithLabelValues(actor).Inc()
}

// IntentDropped counts an intent that was ignored
func (m *Metrics) IntentDropped(reason string) {
	if m == nil {
		return
	}
	m.droppedIntents.WithLabelValues(reason).Inc()
}

// SetConnections tracks open sockets
func (m *Metrics) SetConnections(n int) {
	if m == nil {
		return
	}
	m.connections.Set(float64(n))
}

// LedgerWrite counts persisted or failed ledger rows
func (m *Metrics) LedgerWrite(ok bool, n int) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.ledgerWrites.WithLabelValues(result).Add(float64(n))
}
