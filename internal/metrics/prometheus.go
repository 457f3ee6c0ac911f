package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusOnce     sync.Once
	prometheusInstance *PrometheusCollector
)

// PrometheusCollector provides Prometheus metrics for the bot.
type PrometheusCollector struct {
	// Engine metrics
	engineStatus        *prometheus.GaugeVec
	engineEOFTotal      *prometheus.CounterVec
	engineUnparsedLines *prometheus.CounterVec
	engineSearchSecs    *prometheus.HistogramVec

	// Arbitration metrics
	decisionsTotal   *prometheus.CounterVec
	vetoesTotal      *prometheus.CounterVec
	decisionDuration *prometheus.HistogramVec
	movesTotal       *prometheus.CounterVec

	// Scheduling metrics
	admissionsTotal *prometheus.CounterVec
	challengesTotal *prometheus.CounterVec
	activeGame      prometheus.Gauge
	gamesFinished   *prometheus.CounterVec

	// Remote service metrics
	remoteRequestsTotal *prometheus.CounterVec

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Operator tool metrics
	toolCallsTotal     *prometheus.CounterVec
	toolDurationSecs   *prometheus.HistogramVec
	rateLimitHitsTotal *prometheus.CounterVec
}

// NewPrometheusCollector returns the process-wide collector, registering it on first use.
func NewPrometheusCollector() *PrometheusCollector {
	prometheusOnce.Do(func() {
		prometheusInstance = &PrometheusCollector{
			engineStatus: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "chess_arbiter_engine_status",
					Help: "Status of an analysis engine (1=running, 0=stopped)",
				},
				[]string{"engine"},
			),
			engineEOFTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "chess_arbiter_engine_eof_total",
					Help: "Total number of engine output streams that reached EOF",
				},
				[]string{"engine"},
			),
			engineUnparsedLines: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "chess_arbiter_engine_unparsed_lines_total",
					Help: "Engine output lines that produced no analysis event",
				},
				[]string{"engine"},
			),
			engineSearchSecs: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "chess_arbiter_engine_search_duration_seconds",
					Help:    "Duration of a single engine search in seconds",
					Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
				},
				[]string{"engine", "kind"},
			),

			decisionsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "chess_arbiter_decisions_total",
					Help: "Total number of arbitration decisions",
				},
				[]string{"strategy", "outcome"},
			),
			vetoesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "chess_arbiter_vetoes_total",
					Help: "Decisions where the played move differed from the primary's proposal",
				},
				[]string{"strategy"},
			),
			decisionDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "chess_arbiter_decision_duration_seconds",
					Help:    "Wall time spent choosing a move",
					Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
				},
				[]string{"strategy"},
			),
			movesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "chess_arbiter_moves_total",
					Help: "Moves submitted, by source",
				},
				[]string{"source"},
			),

			admissionsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "chess_arbiter_admissions_total",
					Help: "Game admission attempts",
				},
				[]string{"result"},
			),
			challengesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "chess_arbiter_challenges_total",
					Help: "Incoming challenges by decision",
				},
				[]string{"decision", "reason"},
			),
			activeGame: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "chess_arbiter_active_game",
					Help: "1 while a game holds the admission slot",
				},
			),
			gamesFinished: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "chess_arbiter_games_finished_total",
					Help: "Finished game sessions by reason",
				},
				[]string{"reason"},
			),

			remoteRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "chess_arbiter_remote_requests_total",
					Help: "Requests made to the game service",
				},
				[]string{"action", "status"},
			),

			httpRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "chess_arbiter_http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			httpRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "chess_arbiter_http_request_duration_seconds",
					Help:    "Duration of HTTP requests in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"method", "path"},
			),

			toolCallsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "chess_arbiter_tool_calls_total",
					Help: "Total number of operator tool calls",
				},
				[]string{"tool", "status"},
			),
			toolDurationSecs: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "chess_arbiter_tool_duration_seconds",
					Help:    "Duration of operator tool calls in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
			rateLimitHitsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "chess_arbiter_rate_limit_hits_total",
					Help: "Total number of rate limit hits",
				},
				[]string{"client", "tool"},
			),
		}
	})
	return prometheusInstance
}

// RecordEngineStatus records whether an engine process is running.
func (p *PrometheusCollector) RecordEngineStatus(engine string, running bool) {
	value := 0.0
	if running {
		value = 1.0
	}
	p.engineStatus.WithLabelValues(engine).Set(value)
}

// RecordEngineEOF records an engine's stdout reaching end of stream.
func (p *PrometheusCollector) RecordEngineEOF(engine string) {
	p.engineEOFTotal.WithLabelValues(engine).Inc()
	p.RecordEngineStatus(engine, false)
}

// RecordUnparsedLine counts an engine line that produced no event.
func (p *PrometheusCollector) RecordUnparsedLine(engine string) {
	p.engineUnparsedLines.WithLabelValues(engine).Inc()
}

// RecordSearch records how long one engine search took.
func (p *PrometheusCollector) RecordSearch(engine, kind string, durationSecs float64) {
	p.engineSearchSecs.WithLabelValues(engine, kind).Observe(durationSecs)
}

// RecordDecision records an arbitration outcome.
func (p *PrometheusCollector) RecordDecision(strategy string, agreed, vetoed bool, durationSecs float64) {
	outcome := "kept"
	switch {
	case agreed:
		outcome = "agreed"
	case vetoed:
		outcome = "vetoed"
	}
	p.decisionsTotal.WithLabelValues(strategy, outcome).Inc()
	if vetoed {
		p.vetoesTotal.WithLabelValues(strategy).Inc()
	}
	p.decisionDuration.WithLabelValues(strategy).Observe(durationSecs)
}

// RecordMove records a submitted move by source ("book" or "arbiter").
func (p *PrometheusCollector) RecordMove(source string) {
	p.movesTotal.WithLabelValues(source).Inc()
}

// RecordAdmission records a slot admission attempt.
func (p *PrometheusCollector) RecordAdmission(admitted bool) {
	result := "admitted"
	if !admitted {
		result = "denied"
	}
	p.admissionsTotal.WithLabelValues(result).Inc()
}

// RecordChallenge records a challenge screening decision.
func (p *PrometheusCollector) RecordChallenge(accepted bool, reason string) {
	decision := "accepted"
	if !accepted {
		decision = "declined"
	}
	p.challengesTotal.WithLabelValues(decision, reason).Inc()
}

// SetActiveGame sets whether a game currently holds the slot.
func (p *PrometheusCollector) SetActiveGame(active bool) {
	value := 0.0
	if active {
		value = 1.0
	}
	p.activeGame.Set(value)
}

// RecordGameFinished records why a game session ended.
func (p *PrometheusCollector) RecordGameFinished(reason string) {
	p.gamesFinished.WithLabelValues(reason).Inc()
}

// RecordRemoteRequest records a request to the game service.
func (p *PrometheusCollector) RecordRemoteRequest(action, status string) {
	p.remoteRequestsTotal.WithLabelValues(action, status).Inc()
}

// RecordHTTPRequest records an HTTP request.
func (p *PrometheusCollector) RecordHTTPRequest(method, path, status string, durationSecs float64) {
	p.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	p.httpRequestDuration.WithLabelValues(method, path).Observe(durationSecs)
}

// RecordToolCall records an operator tool call.
func (p *PrometheusCollector) RecordToolCall(tool, status string, durationSecs float64) {
	p.toolCallsTotal.WithLabelValues(tool, status).Inc()
	p.toolDurationSecs.WithLabelValues(tool).Observe(durationSecs)
}

// RecordRateLimit records a rate limit hit.
func (p *PrometheusCollector) RecordRateLimit(client, tool string) {
	p.rateLimitHitsTotal.WithLabelValues(client, tool).Inc()
}
