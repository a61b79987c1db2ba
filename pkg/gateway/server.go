// Package gateway implements the SSH-facing front of xgate: a TCP accept
// loop, per-connection SSH bootstrap, and the channel router that turns exec
// requests into proxy sessions.
package gateway

import (
	"context"
	"fmt"
	"net"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/xgate/internal/logger"
	"github.com/marmos91/xgate/pkg/metrics"
)

// Config holds the listener-level settings of the gateway.
type Config struct {
	// Listen is the TCP address to accept SSH connections on.
	Listen string
	// MaxConnections caps concurrent connections. Zero means unlimited.
	MaxConnections int
	// ShutdownTimeout bounds the graceful drain before connections are
	// forced closed.
	ShutdownTimeout time.Duration
	// MetricsLogInterval enables periodic connection stats logging when
	// positive.
	MetricsLogInterval time.Duration
}

// SessionHandler consumes direct-handoff sessions. The handler owns the
// connection and must close it.
type SessionHandler interface {
	Handle(ctx context.Context, conn *ChannelConn) error
}

// SessionInfo describes one live session for status listings.
type SessionInfo struct {
	ID         string    `json:"id"`
	User       string    `json:"user"`
	RemoteAddr string    `json:"remote_addr"`
	Outcome    string    `json:"outcome"`
	Mode       string    `json:"mode,omitempty"`
	StartedAt  time.Time `json:"started_at"`
}

// Server accepts TCP connections and runs each through the SSH bootstrap.
// Direct-handoff sessions are passed to the configured SessionHandler;
// subprocess sessions detach from the accept loop and never block shutdown.
type Server struct {
	cfg       Config
	bootstrap *Bootstrap
	handler   SessionHandler
	rec       metrics.GatewayMetrics

	listener   net.Listener
	listenerMu sync.Mutex
	ready      chan struct{}

	shutdown     chan struct{}
	shutdownOnce sync.Once
	shutdownCtx  context.Context
	cancel       context.CancelFunc

	activeConns   sync.WaitGroup
	connCount     atomic.Int32
	connSemaphore chan struct{}
	sockets       sync.Map
	sessions      sync.Map
}

// New builds a Server. A nil recorder disables metrics; the bootstrap
// inherits the recorder unless it already carries one.
func New(cfg Config, bs *Bootstrap, handler SessionHandler, rec metrics.GatewayMetrics) *Server {
	if rec == nil {
		rec = metrics.NopGatewayMetrics{}
	}
	if bs.Metrics == nil {
		bs.Metrics = rec
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:         cfg,
		bootstrap:   bs,
		handler:     handler,
		rec:         rec,
		ready:       make(chan struct{}),
		shutdown:    make(chan struct{}),
		shutdownCtx: ctx,
		cancel:      cancel,
	}
	if cfg.MaxConnections > 0 {
		s.connSemaphore = make(chan struct{}, cfg.MaxConnections)
	}
	return s
}

// Serve listens and accepts until ctx is cancelled or Stop is called. It
// returns after the graceful drain completes.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Listen, err)
	}
	s.listenerMu.Lock()
	s.listener = ln
	s.listenerMu.Unlock()
	close(s.ready)
	logger.Info("SSH gateway listening", "address", ln.Addr().String())

	if s.cfg.MetricsLogInterval > 0 {
		go s.logMetrics()
	}
	go func() {
		select {
		case <-ctx.Done():
			s.initiateShutdown()
		case <-s.shutdown:
		}
	}()

	return s.acceptLoop(ln)
}

func (s *Server) acceptLoop(ln net.Listener) error {
	for {
		if s.connSemaphore != nil {
			select {
			case s.connSemaphore <- struct{}{}:
			case <-s.shutdown:
				return s.gracefulShutdown()
			}
		}

		conn, err := ln.Accept()
		if err != nil {
			if s.connSemaphore != nil {
				<-s.connSemaphore
			}
			select {
			case <-s.shutdown:
				return s.gracefulShutdown()
			default:
			}
			logger.Debug("Accept failed", "error", err)
			continue
		}

		if tcpConn, ok := conn.(*net.TCPConn); ok {
			_ = tcpConn.SetNoDelay(true)
		}

		addr := conn.RemoteAddr().String()
		s.activeConns.Add(1)
		count := s.connCount.Add(1)
		s.sockets.Store(addr, conn)
		s.rec.RecordConnectionAccepted()
		s.rec.SetActiveSessions(count)
		logger.Debug("Connection accepted", "remote", addr, "active", count)

		go s.handleConn(conn, addr)
	}
}

func (s *Server) handleConn(conn net.Conn, addr string) {
	detached := false
	defer func() {
		if !detached {
			_ = conn.Close()
		}
		s.sockets.Delete(addr)
		s.activeConns.Done()
		count := s.connCount.Add(-1)
		if s.connSemaphore != nil {
			<-s.connSemaphore
		}
		s.rec.RecordConnectionClosed()
		s.rec.SetActiveSessions(count)
		logger.Debug("Connection released", "remote", addr, "active", count)
	}()

	res, err := s.bootstrap.Handle(s.shutdownCtx, conn)
	if err != nil {
		logger.Warn("Session setup failed", "remote", addr, "error", err)
		return
	}

	switch res.Outcome {
	case OutcomeSubprocessBridge:
		// The subprocess owns the channel from here on. Let the
		// transport outlive this accept slot.
		detached = true
		s.trackSession(res, conn)

	case OutcomeDirectHandoff:
		s.trackSession(res, conn)
		defer s.sessions.Delete(res.SessionID)
		if s.handler == nil {
			logger.Warn("No session handler configured, closing handed-off channel",
				"session_id", res.SessionID)
			_ = res.Conn.Close()
			return
		}
		if err := s.handler.Handle(s.shutdownCtx, res.Conn); err != nil {
			logger.Warn("Session handler failed",
				"session_id", res.SessionID,
				"error", err)
		}
	}
}

func (s *Server) trackSession(res Result, raw net.Conn) {
	info := SessionInfo{
		ID:         res.SessionID,
		User:       res.User,
		RemoteAddr: raw.RemoteAddr().String(),
		Outcome:    res.Outcome.String(),
		StartedAt:  time.Now(),
	}
	if res.Bridge != nil {
		info.Mode = res.Bridge.Mode()
	}
	s.sessions.Store(res.SessionID, info)

	if res.Bridge != nil {
		go func() {
			<-res.Bridge.Done()
			s.sessions.Delete(res.SessionID)
			_ = raw.Close()
		}()
	}
}

// Stop shuts the server down, waiting for tracked connections to drain until
// ctx expires, after which they are forced closed.
func (s *Server) Stop(ctx context.Context) error {
	s.initiateShutdown()
	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.forceCloseConnections()
		return ctx.Err()
	}
}

func (s *Server) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		logger.Info("Shutting down SSH gateway")
		close(s.shutdown)
		s.listenerMu.Lock()
		if s.listener != nil {
			_ = s.listener.Close()
		}
		s.listenerMu.Unlock()
		s.interruptBlockingReads()
		s.cancel()
	})
}

// interruptBlockingReads nudges connections parked in blocking reads so their
// handlers can observe the shutdown.
func (s *Server) interruptBlockingReads() {
	deadline := time.Now().Add(100 * time.Millisecond)
	s.sockets.Range(func(_, value any) bool {
		if conn, ok := value.(net.Conn); ok {
			_ = conn.SetReadDeadline(deadline)
		}
		return true
	})
}

func (s *Server) gracefulShutdown() error {
	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Info("All gateway connections drained")
		return nil
	case <-time.After(s.cfg.ShutdownTimeout):
		logger.Warn("Shutdown timeout reached, forcing connections closed",
			"timeout", s.cfg.ShutdownTimeout.String())
		s.forceCloseConnections()
		return fmt.Errorf("shutdown timed out after %s", s.cfg.ShutdownTimeout)
	}
}

func (s *Server) forceCloseConnections() {
	s.sockets.Range(func(_, value any) bool {
		if conn, ok := value.(net.Conn); ok {
			_ = conn.Close()
			s.rec.RecordConnectionForceClosed()
		}
		return true
	})
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr blocks until the listener is bound and returns its address.
func (s *Server) Addr() net.Addr {
	<-s.ready
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ActiveConnections reports connections currently held by the accept loop.
func (s *Server) ActiveConnections() int32 {
	return s.connCount.Load()
}

// Sessions snapshots the live sessions, oldest first.
func (s *Server) Sessions() []SessionInfo {
	var out []SessionInfo
	s.sessions.Range(func(_, value any) bool {
		if info, ok := value.(SessionInfo); ok {
			out = append(out, info)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

func (s *Server) logMetrics() {
	ticker := time.NewTicker(s.cfg.MetricsLogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
			logger.Info("Gateway connection stats",
				"active_connections", s.connCount.Load(),
				"live_sessions", len(s.Sessions()))
		}
	}
}
