package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics is a MetricsCollector backed by client_golang, exposing
// counters and histograms for commands, transfers, connections, and
// authentication attempts.
type PrometheusMetrics struct {
	commands      *prometheus.CounterVec
	commandDur    *prometheus.HistogramVec
	transferBytes *prometheus.CounterVec
	transferDur   *prometheus.HistogramVec
	connections   *prometheus.CounterVec
	authAttempts  *prometheus.CounterVec
}

// NewPrometheusMetrics builds and registers a PrometheusMetrics collector
// against reg. Pass prometheus.DefaultRegisterer for the global registry.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	m := &PrometheusMetrics{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ftpd",
			Name:      "commands_total",
			Help:      "FTP commands processed, by verb and outcome.",
		}, []string{"command", "success"}),
		commandDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ftpd",
			Name:      "command_duration_seconds",
			Help:      "Time to execute an FTP command.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command"}),
		transferBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ftpd",
			Name:      "transfer_bytes_total",
			Help:      "Bytes moved over data connections, by operation.",
		}, []string{"operation"}),
		transferDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ftpd",
			Name:      "transfer_duration_seconds",
			Help:      "Wall-clock duration of a data transfer, successful or not.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		connections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ftpd",
			Name:      "connections_total",
			Help:      "Accepted/rejected control connections, by reason.",
		}, []string{"accepted", "reason"}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ftpd",
			Name:      "authentication_attempts_total",
			Help:      "USER/PASS attempts, by outcome.",
		}, []string{"success"}),
	}
	reg.MustRegister(m.commands, m.commandDur, m.transferBytes, m.transferDur, m.connections, m.authAttempts)
	return m
}

func (m *PrometheusMetrics) RecordCommand(cmd string, success bool, duration time.Duration) {
	m.commands.WithLabelValues(cmd, boolLabel(success)).Inc()
	m.commandDur.WithLabelValues(cmd).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) RecordTransfer(operation string, bytes int64, duration time.Duration) {
	m.transferBytes.WithLabelValues(operation).Add(float64(bytes))
	m.transferDur.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) RecordConnection(accepted bool, reason string) {
	m.connections.WithLabelValues(boolLabel(accepted), reason).Inc()
}

func (m *PrometheusMetrics) RecordAuthentication(success bool, user string) {
	m.authAttempts.WithLabelValues(boolLabel(success)).Inc()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
