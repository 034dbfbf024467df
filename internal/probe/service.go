package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/danmuck/edgetun/internal/observability"
	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/danmuck/edgetun/internal/probe"

const (
	TransportTCP       = "tcp"
	TransportWebSocket = "ws"
)

// Service accepts tunnel sessions over TCP and websocket and runs each one
// on a bounded worker pool.
type Service struct {
	cfg    ServiceConfig
	logger zerolog.Logger
	pool   *ants.Pool
	tracer trace.Tracer
	obs    observability.CodecObserver

	connsMu sync.Mutex
	conns   map[io.Closer]struct{}

	active atomic.Int64
	served atomic.Uint64
	ready  atomic.Bool
	closed atomic.Bool
}

// NewService validates cfg and allocates the session pool.
func NewService(cfg ServiceConfig) (*Service, error) {
	cfg.Stream = cfg.Stream.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := log.Logger.With().Str("probe", cfg.ProbeID).Logger()
	pool, err := ants.NewPool(
		cfg.MaxSessions,
		ants.WithNonblocking(true),
		ants.WithLogger(&logger),
		ants.WithPanicHandler(func(p any) {
			logger.Error().Interface("panic", p).Msg("probe.session panic")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("probe: session pool: %w", err)
	}
	return &Service{
		cfg:    cfg,
		logger: logger,
		pool:   pool,
		tracer: otel.Tracer(tracerName),
		obs:    observability.NewCodecObserver(cfg.ProbeID),
		conns:  make(map[io.Closer]struct{}),
	}, nil
}

func (s *Service) Config() ServiceConfig {
	return s.cfg
}

// ActiveSessions returns the number of sessions currently being served.
func (s *Service) ActiveSessions() int64 {
	return s.active.Load()
}

// Ready reports whether the session listener is accepting.
func (s *Service) Ready() bool {
	return s.ready.Load() && !s.closed.Load()
}

// Run listens on the configured addresses and blocks until SIGINT/SIGTERM.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer s.Close()

	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("probe: listen %s: %w", s.cfg.ListenAddr, err)
	}
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("probe.Service.Run listening")

	adminErr := make(chan error, 1)
	if addr := strings.TrimSpace(s.cfg.AdminListenAddr); addr != "" {
		go func() {
			adminErr <- s.ServeAdmin(ctx, addr)
		}()
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.Serve(ctx, ln)
	}()

	select {
	case err := <-serveErr:
		return err
	case err := <-adminErr:
		if err != nil {
			stop()
			<-serveErr
			return err
		}
		return <-serveErr
	}
}

// Serve runs the accept loop on ln until ctx is cancelled. Connections
// beyond MaxSessions are closed without a session.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	defer s.ready.Store(false)
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.ready.Store(false)
			s.closeAllConns()
			_ = ln.Close()
		case <-done:
		}
	}()

	s.ready.Store(true)
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.trackConn(conn)
		err = s.pool.Submit(func() {
			defer s.untrackConn(conn)
			s.ServeConn(ctx, conn, TransportTCP, conn.RemoteAddr().String())
		})
		if err != nil {
			s.refuse(conn, TransportTCP, err)
		}
	}
}

// ServeAdmin serves the admin router on addr until ctx is cancelled.
func (s *Service) ServeAdmin(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.AdminHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.logger.Info().Str("addr", addr).Msg("probe.Service.ServeAdmin listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("probe: admin listen %s: %w", addr, err)
	}
	return nil
}

// Close stops accepting work, closes live sessions and waits briefly for
// workers to drain.
func (s *Service) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.ready.Store(false)
	s.closeAllConns()
	if err := s.pool.ReleaseTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("probe: release pool: %w", err)
	}
	return nil
}

func (s *Service) refuse(conn io.Closer, transport string, err error) {
	s.untrackConn(conn)
	_ = conn.Close()
	if errors.Is(err, ants.ErrPoolOverload) {
		s.logger.Warn().Str("transport", transport).Int("max_sessions", s.cfg.MaxSessions).Msg("probe.session refused: at capacity")
		return
	}
	s.logger.Warn().Err(err).Str("transport", transport).Msg("probe.session refused")
}

func (s *Service) trackConn(conn io.Closer) {
	s.connsMu.Lock()
	s.conns[conn] = struct{}{}
	s.connsMu.Unlock()
}

func (s *Service) untrackConn(conn io.Closer) {
	s.connsMu.Lock()
	delete(s.conns, conn)
	s.connsMu.Unlock()
}

func (s *Service) closeAllConns() {
	s.connsMu.Lock()
	conns := make([]io.Closer, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.connsMu.Unlock()
	for _, c := range conns {
		_ = c.Close()
	}
}
