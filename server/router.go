package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vitalvas/sigauth/logger"
	"github.com/vitalvas/sigauth/metrics"
	"github.com/vitalvas/sigauth/middleware"
	"github.com/vitalvas/sigauth/problem"
	"github.com/vitalvas/sigauth/signedreq"
)

// RouterConfig wires the public router.
type RouterConfig struct {
	// Verifier gates every request. Nil passes requests through unverified.
	Verifier *signedreq.Verifier

	// Metrics is optional.
	Metrics *metrics.Metrics

	// Upstream receives verified requests.
	Upstream http.Handler

	// MaxBodyBytes, when positive, caps every request body.
	MaxBodyBytes int64

	// TrustedProxies enables client address rewriting from forwarding
	// headers sent by these peers.
	TrustedProxies []string
}

// NewPublicRouter builds the chain real ip, request id, recovery, access
// log, body cap, signature gate, upstream.
func NewPublicRouter(cfg RouterConfig) (chi.Router, error) {
	r := chi.NewRouter()

	if len(cfg.TrustedProxies) > 0 {
		realIP, err := middleware.RealIP(middleware.RealIPConfig{TrustedProxies: cfg.TrustedProxies})
		if err != nil {
			return nil, err
		}

		r.Use(realIP)
	}

	r.Use(middleware.RequestID(middleware.RequestIDConfig{}))
	r.Use(middleware.Recovery(middleware.RecoveryConfig{}))
	r.Use(middleware.AccessLog(middleware.AccessLogConfig{
		Observe: observeRequest(cfg.Metrics),
	}))

	if cfg.MaxBodyBytes > 0 {
		limit, err := middleware.RequestSizeLimit(middleware.RequestSizeLimitConfig{MaxBytes: cfg.MaxBodyBytes})
		if err != nil {
			return nil, err
		}

		r.Use(limit)
	}

	r.Use(signedreq.Middleware(signedreq.MiddlewareConfig{
		Verifier: cfg.Verifier,
		OnReject: onReject(cfg.Metrics),
		OnAccept: onAccept(cfg.Metrics),
	}))

	r.Handle("/*", cfg.Upstream)

	return r, nil
}

func observeRequest(m *metrics.Metrics) func(*http.Request, int, time.Duration) {
	if m == nil {
		return nil
	}

	return func(r *http.Request, status int, d time.Duration) {
		m.Request(methodLabel(r.Method), status, d)
	}
}

func onReject(m *metrics.Metrics) func(http.ResponseWriter, *http.Request, error) {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		reason := signedreq.Reason(err)

		logger.From(r.Context()).Warn("request signature rejected",
			logger.Reason(reason),
			logger.KeyID(r.Header.Get(signedreq.HeaderKeyID)),
			logger.Method(r.Method),
			logger.Path(r.URL.Path),
			logger.Err(err),
		)

		if m != nil {
			m.Rejected(reason)
		}

		signedreq.DefaultOnReject(w, r, err)
	}
}

func onAccept(m *metrics.Metrics) func(*http.Request, string) {
	return func(r *http.Request, keyID string) {
		logger.From(r.Context()).Debug("request signature verified", logger.KeyID(keyID))

		if m != nil {
			m.Accepted(r.ContentLength)
		}
	}
}

// methodLabel keeps arbitrary client methods out of metric labels.
func methodLabel(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions:
		return method
	default:
		return "OTHER"
	}
}

// ReadyFunc reports whether a dependency is usable.
type ReadyFunc func(ctx context.Context) error

// NewAdminRouter serves liveness, readiness and metrics.
func NewAdminRouter(m *metrics.Metrics, ready ReadyFunc) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(middleware.RecoveryConfig{}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeText(w, http.StatusOK, "ok")
	})

	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		if ready != nil {
			if err := ready(req.Context()); err != nil {
				logger.From(req.Context()).Warn("readiness check failed", logger.Err(err))
				problem.New(http.StatusServiceUnavailable).WithDetail("dependency unavailable").Write(w)
				return
			}
		}

		writeText(w, http.StatusOK, "ready")
	})

	if m != nil {
		r.Handle("/metrics", m.Handler())
	}

	return r
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(body))
}
