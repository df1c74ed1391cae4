// Command ftpd runs the single-threaded, poll-driven FTP server rooted at
// a local directory.
package main

import (
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/quietsol/ftpd/server"
)

func main() {
	var (
		listenAddr  = pflag.StringP("listen", "l", ":2121", "address to listen on")
		rootDir     = pflag.StringP("root", "r", ".", "root directory to serve")
		maxSessions = pflag.Int("max-sessions", 0, "maximum simultaneous sessions (0 = unlimited)")
		bandwidth   = pflag.Int64("bandwidth-limit", 0, "aggregate transfer rate limit in bytes/sec (0 = unlimited)")
		pasvMin     = pflag.Int("pasv-min-port", 0, "lower bound of the PASV port range (0 = OS-assigned)")
		pasvMax     = pflag.Int("pasv-max-port", 0, "upper bound of the PASV port range (0 = OS-assigned)")
		metricsAddr = pflag.String("metrics-addr", "", "address to serve Prometheus metrics on (empty disables)")
		readOnly    = pflag.Bool("read-only", false, "reject all write operations")
		logLevel    = pflag.String("log-level", "info", "log level: debug, info, warn, error")
	)
	pflag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(*logLevel)}))
	slog.SetDefault(logger)

	driver, err := server.NewFSDriver(*rootDir, server.WithReadOnly(*readOnly))
	if err != nil {
		logger.Error("failed to create filesystem driver", "error", err)
		os.Exit(1)
	}

	options := []server.Option{
		server.WithDriver(driver),
		server.WithLogger(logger),
		server.WithMaxSessions(*maxSessions),
	}
	if *bandwidth > 0 {
		options = append(options, server.WithBandwidthLimit(*bandwidth))
	}
	if *pasvMin > 0 && *pasvMax > 0 {
		options = append(options, server.WithPasvPortRange(*pasvMin, *pasvMax))
	}

	var registry *prometheus.Registry
	if *metricsAddr != "" {
		registry = prometheus.NewRegistry()
		options = append(options, server.WithMetricsCollector(server.NewPrometheusMetrics(registry)))
	}

	srv, err := server.NewServer(options...)
	if err != nil {
		logger.Error("failed to construct server", "error", err)
		os.Exit(1)
	}
	if err := srv.Listen(*listenAddr); err != nil {
		logger.Error("failed to listen", "addr", *listenAddr, "error", err)
		os.Exit(1)
	}

	if *metricsAddr != "" {
		go serveMetrics(logger, *metricsAddr, registry)
	}

	stop := make(chan struct{})
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		close(stop)
	}()

	logger.Info("ftpd starting", "listen", *listenAddr, "root", *rootDir)
	if err := srv.Run(stop); err != nil && err != server.ErrServerClosed {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func serveMetrics(logger *slog.Logger, addr string, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	logger.Info("metrics listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server failed", "error", err)
	}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
