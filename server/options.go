package server

import (
	"fmt"
	"log/slog"

	"github.com/quietsol/ftpd/internal/ratelimit"
)

// WithDriver sets the authentication/filesystem driver. Required.
func WithDriver(d Driver) Option {
	return func(s *Server) error {
		if d == nil {
			return fmt.Errorf("server: nil driver")
		}
		s.driver = d
		return nil
	}
}

// WithLogger overrides the default slog.Logger, the diagnostic sink every
// session and the server itself log through.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		if logger == nil {
			return fmt.Errorf("server: nil logger")
		}
		s.logger = logger
		return nil
	}
}

// WithStatusSink installs the optional one-line status publisher.
func WithStatusSink(sink StatusSink) Option {
	return func(s *Server) error {
		s.statusSink = sink
		return nil
	}
}

// WithMetricsCollector installs a MetricsCollector implementation (e.g. the
// Prometheus-backed one in metrics_prometheus.go).
func WithMetricsCollector(m MetricsCollector) Option {
	return func(s *Server) error {
		s.metricsCollector = m
		return nil
	}
}

// WithPathRedactor installs a path redaction function applied to the paths
// in the Debug-level audit lines of path-mutating commands.
func WithPathRedactor(fn PathRedactor) Option {
	return func(s *Server) error {
		s.pathRedactor = fn
		return nil
	}
}

// WithBandwidthLimit caps aggregate RETR/STOR throughput across all
// sessions to bytesPerSecond; LIST output is not limited. Zero or negative
// disables the limit.
func WithBandwidthLimit(bytesPerSecond int64) Option {
	return func(s *Server) error {
		s.limiter = ratelimit.New(bytesPerSecond)
		return nil
	}
}

// WithMaxSessions caps the number of simultaneous sessions; beyond this,
// new connections are accepted and immediately closed. Zero means
// unlimited.
func WithMaxSessions(n int) Option {
	return func(s *Server) error {
		if n < 0 {
			return fmt.Errorf("server: negative max sessions")
		}
		s.maxSessions = n
		return nil
	}
}

// WithPasvPortRange restricts PASV's listening port to a cycling range
// [min, max]. Without this option the OS assigns an ephemeral port, which
// is the default.
func WithPasvPortRange(min, max int) Option {
	return func(s *Server) error {
		if min <= 0 || max <= 0 || max < min {
			return fmt.Errorf("server: invalid passive port range [%d, %d]", min, max)
		}
		s.pasvMinPort = min
		s.pasvMaxPort = max
		s.nextPasvPort = min
		return nil
	}
}
