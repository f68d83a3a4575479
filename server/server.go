// Package server hosts the signature gate in front of an upstream service
// and exposes an admin listener for health checks and metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/vitalvas/sigauth/config"
	"github.com/vitalvas/sigauth/logger"
	"github.com/vitalvas/sigauth/metrics"
	"github.com/vitalvas/sigauth/replay"
	"github.com/vitalvas/sigauth/signedreq"
)

// DefaultShutdownTimeout bounds graceful shutdown.
const DefaultShutdownTimeout = 15 * time.Second

// Server runs the public and admin listeners.
type Server struct {
	cfg      *config.Config
	log      *zap.Logger
	metrics  *metrics.Metrics
	verifier *signedreq.Verifier
	redis    *replay.Redis

	public *http.Server
	admin  *http.Server

	publicLn net.Listener
	adminLn  net.Listener

	shutdownTimeout time.Duration
	now             func() time.Time
}

// Option customises a Server.
type Option func(*Server)

// WithShutdownTimeout overrides DefaultShutdownTimeout.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) { s.shutdownTimeout = d }
}

// WithClock overrides the verifier clock.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New builds the server from cfg. Any invalid key entry fails here, before a
// listener is opened.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:             cfg,
		log:             logger.Named("server"),
		shutdownTimeout: DefaultShutdownTimeout,
	}

	for _, opt := range opts {
		opt(s)
	}

	upstream, err := ParseUpstream(cfg.Upstream.URL)
	if err != nil {
		return nil, err
	}

	if s.metrics, err = metrics.New(); err != nil {
		return nil, fmt.Errorf("server: metrics: %w", err)
	}

	settings := cfg.SecuritySettings()
	settings.Now = s.now

	if settings.Enabled && cfg.Replay.Enabled {
		cache, err := s.replayCache(ctx)
		if err != nil {
			return nil, err
		}

		settings.ReplayCache = cache
	}

	if s.verifier, err = signedreq.Load(settings); err != nil {
		s.closeRedis()
		return nil, fmt.Errorf("server: load verifier: %w", err)
	}

	s.logVerifierState()

	public, err := NewPublicRouter(RouterConfig{
		Verifier:       s.verifier,
		Metrics:        s.metrics,
		Upstream:       NewProxy(upstream, cfg.Upstream.Timeout.Std()),
		MaxBodyBytes:   cfg.Security.MaxBodyBytes,
		TrustedProxies: cfg.Server.TrustedProxies,
	})
	if err != nil {
		s.closeRedis()
		return nil, err
	}

	s.public = &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      public,
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
		IdleTimeout:  cfg.Server.IdleTimeout.Std(),
		ErrorLog:     zap.NewStdLog(s.log),
	}

	if cfg.Admin.Addr != "" {
		s.admin = &http.Server{
			Addr:              cfg.Admin.Addr,
			Handler:           NewAdminRouter(s.metrics, s.ready),
			ReadHeaderTimeout: 5 * time.Second,
			ErrorLog:          zap.NewStdLog(s.log),
		}
	}

	return s, nil
}

func (s *Server) replayCache(ctx context.Context) (signedreq.ReplayCache, error) {
	switch s.cfg.Replay.Backend {
	case config.BackendRedis:
		rc := s.cfg.Replay.Redis

		r, err := replay.DialRedis(ctx, replay.RedisConfig{
			Addr:     rc.Addr,
			Username: rc.Username,
			Password: rc.Password,
			DB:       rc.DB,
			Prefix:   rc.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("server: replay cache: %w", err)
		}

		s.redis = r
		s.log.Info("replay cache enabled", zap.String("backend", config.BackendRedis), logger.Addr(rc.Addr))

		return r, nil
	default:
		s.log.Info("replay cache enabled", zap.String("backend", config.BackendMemory))

		return replay.NewMemory(0), nil
	}
}

func (s *Server) logVerifierState() {
	if s.verifier == nil {
		s.metrics.SetVerifierState(false, 0)
		s.log.Warn("request signature verification disabled, all requests pass through")

		return
	}

	keys := s.verifier.Keys()
	s.metrics.SetVerifierState(true, keys.Len())
	s.log.Info("request signature verification enabled",
		zap.Strings("key_ids", keys.KeyIDs()),
		zap.String("required_key_id", s.cfg.Security.RequiredKeyID),
		zap.Duration("tolerance", s.verifier.Tolerance()),
	)

	if s.cfg.Security.MaxBodyBytes == 0 {
		s.log.Warn("request body size is not limited, set security.max_body_bytes")
	}
}

func (s *Server) ready(ctx context.Context) error {
	if s.redis == nil {
		return nil
	}

	return s.redis.Ping(ctx)
}

// Verifier returns the configured verifier, or nil when verification is
// disabled.
func (s *Server) Verifier() *signedreq.Verifier { return s.verifier }

// Metrics returns the server collectors.
func (s *Server) Metrics() *metrics.Metrics { return s.metrics }

// Listen binds the listeners. Run calls it when it has not been called.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.public.Addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.public.Addr, err)
	}

	if limit := s.cfg.Server.MaxConnections; limit > 0 {
		ln = netutil.LimitListener(ln, limit)
	}

	s.publicLn = ln

	if s.admin != nil {
		adminLn, err := net.Listen("tcp", s.admin.Addr)
		if err != nil {
			s.publicLn.Close()
			s.publicLn = nil

			return fmt.Errorf("server: listen %s: %w", s.admin.Addr, err)
		}

		s.adminLn = adminLn
	}

	return nil
}

// PublicAddr returns the bound public address after Listen.
func (s *Server) PublicAddr() net.Addr {
	if s.publicLn == nil {
		return nil
	}

	return s.publicLn.Addr()
}

// AdminAddr returns the bound admin address after Listen.
func (s *Server) AdminAddr() net.Addr {
	if s.adminLn == nil {
		return nil
	}

	return s.adminLn.Addr()
}

// Run serves until ctx is cancelled or a listener fails, then shuts both
// listeners down gracefully and releases the replay cache.
func (s *Server) Run(ctx context.Context) error {
	defer s.closeRedis()

	if s.publicLn == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("public listener started", logger.Addr(s.publicLn.Addr().String()))
		return serve(s.public, s.publicLn)
	})

	if s.admin != nil {
		g.Go(func() error {
			s.log.Info("admin listener started", logger.Addr(s.adminLn.Addr().String()))
			return serve(s.admin, s.adminLn)
		})
	}

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
		defer cancel()

		s.log.Info("shutting down")

		var errs []error
		for _, srv := range []*http.Server{s.public, s.admin} {
			if srv == nil {
				continue
			}

			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("server: shutdown %s: %w", srv.Addr, err))
			}
		}

		return errors.Join(errs...)
	})

	return g.Wait()
}

func serve(srv *http.Server, ln net.Listener) error {
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: serve %s: %w", ln.Addr(), err)
	}

	return nil
}

func (s *Server) closeRedis() {
	if s.redis == nil {
		return
	}

	if err := s.redis.Close(); err != nil {
		s.log.Warn("close replay cache", logger.Err(err))
	}

	s.redis = nil
}
