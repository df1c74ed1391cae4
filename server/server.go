// Package server implements a single-process FTP server: a cooperative,
// single-threaded session engine that multiplexes one command channel and
// one data channel per client over a non-blocking poll loop.
package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/quietsol/ftpd/internal/ratelimit"
)

// ErrServerClosed is returned by Run and PollOnce after Close.
var ErrServerClosed = errors.New("server: closed")

// StatusSink publishes a one-line persistent status string for an operator
// to see. It is optional, nil by default, since library code has no console
// dependency of its own.
type StatusSink interface {
	SetStatus(text string)
}

// Option configures a Server, following the functional-options pattern.
type Option func(*Server) error

// Server owns the listening socket and the set of live sessions. There is
// no process-wide global state: everything the loop touches is a field on a
// Server value threaded through PollOnce.
type Server struct {
	driver           Driver
	logger           *slog.Logger
	statusSink       StatusSink
	metricsCollector MetricsCollector
	pathRedactor     PathRedactor
	limiter          *ratelimit.Limiter
	maxSessions      int

	pasvMinPort  int
	pasvMaxPort  int
	nextPasvPort int

	listener   *net.TCPListener
	listenerFD int

	sessions *sessionList

	closed bool
}

// NewServer constructs a Server from options (not yet listening; call
// Listen, then Run or PollOnce).
func NewServer(options ...Option) (*Server, error) {
	s := &Server{
		logger:   slog.Default(),
		sessions: newSessionList(),
	}
	for _, opt := range options {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.driver == nil {
		return nil, errors.New("server: WithDriver is required")
	}
	return s, nil
}

// Listen binds addr over IPv4, with SO_REUSEADDR-equivalent behavior and
// backlog handled by the Go runtime's listener.
func (s *Server) Listen(addr string) error {
	tcpAddr, err := net.ResolveTCPAddr("tcp4", addr)
	if err != nil {
		return err
	}
	listener, err := net.ListenTCP("tcp4", tcpAddr)
	if err != nil {
		return err
	}
	fd, err := rawFD(listener)
	if err != nil {
		listener.Close()
		return err
	}
	s.listener = listener
	s.listenerFD = fd
	if s.statusSink != nil {
		s.statusSink.SetStatus(fmt.Sprintf("listening on %s", listener.Addr()))
	}
	s.logger.Info("listening", "addr", listener.Addr().String())
	return nil
}

// Close stops accepting new connections and destroys every live session.
func (s *Server) Close() error {
	s.closed = true
	if s.listener != nil {
		s.listener.Close()
	}
	for _, sess := range s.sessions.snapshot() {
		sess.destroy()
		s.sessions.remove(sess.id)
	}
	return nil
}

// Run drives PollOnce in a loop with a small sleep between ticks when there
// is nothing to do, until stop is closed or Close is called. This is a
// convenience for callers who don't need to embed the loop in their own
// process-lifecycle driver; PollOnce itself is the real contract and
// cmd/ftpd is free to drive it directly instead.
func (s *Server) Run(stop <-chan struct{}) error {
	for {
		select {
		case <-stop:
			return s.Close()
		default:
		}
		if s.closed {
			return ErrServerClosed
		}
		did, err := s.PollOnce()
		if err != nil {
			return err
		}
		if !did {
			time.Sleep(5 * time.Millisecond)
		}
	}
}

// PollOnce polls the listening socket plus every active session exactly
// once, accepts new clients, and reaps closed ones. It returns true if any
// readiness fired this tick, so Run can avoid busy-spinning when the server
// is idle.
func (s *Server) PollOnce() (bool, error) {
	if s.closed {
		return false, ErrServerClosed
	}

	sessions := s.sessions.snapshot()
	targets := make([]pollTarget, 0, len(sessions)+1)
	targets = append(targets, pollTarget{fd: s.listenerFD, want: pollRead})
	for _, sess := range sessions {
		targets = append(targets, sess.relevantTarget())
	}

	results, err := pollReady(targets)
	if err != nil {
		return false, err
	}

	any := false
	if len(results) > 0 && results[0] != 0 {
		any = true
		s.acceptOne(results[0])
	}
	for i, sess := range sessions {
		got := results[i+1]
		if got == 0 {
			continue
		}
		any = true
		sess.onReady(got)
		if sess.destroyed {
			s.sessions.remove(sess.id)
		}
	}
	return any, nil
}

func (s *Server) acceptOne(got pollGot) {
	if got&gotErrHup != 0 {
		return
	}
	if got&gotRead == 0 {
		return
	}

	s.listener.SetDeadline(time.Now())
	conn, err := s.listener.AcceptTCP()
	if err != nil {
		if !isWouldBlock(err) {
			s.logger.Warn("accept failed", "error", err)
		}
		return
	}

	if s.maxSessions > 0 && s.sessions.len() >= s.maxSessions {
		conn.Close()
		if s.metricsCollector != nil {
			s.metricsCollector.RecordConnection(false, "max_sessions_reached")
		}
		return
	}

	sess, err := newSession(s, conn)
	if err != nil {
		s.logger.Warn("session setup failed", "error", err)
		conn.Close()
		return
	}
	s.sessions.add(sess)
	if s.metricsCollector != nil {
		s.metricsCollector.RecordConnection(true, "accepted")
	}
	sess.reply(200, "Hello!")
}
