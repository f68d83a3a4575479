package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vitalvas/sigauth/logger"
)

// statusRecorder captures the status code and bytes written.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.wroteHeader {
		return
	}

	s.status = code
	s.wroteHeader = true
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if !s.wroteHeader {
		s.WriteHeader(http.StatusOK)
	}

	n, err := s.ResponseWriter.Write(b)
	s.bytes += n

	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// AccessLogConfig configures the AccessLog middleware.
type AccessLogConfig struct {
	// Observe is called after every request, e.g. to record metrics.
	Observe func(r *http.Request, status int, d time.Duration)
}

// AccessLog logs every completed request with the request-scoped logger.
// 5xx responses log at error level, 4xx at warn and the rest at info.
func AccessLog(cfg AccessLogConfig) func(http.Handler) http.Handler {
	observe := cfg.Observe

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			dur := time.Since(start)
			if observe != nil {
				observe(r, rec.status, dur)
			}

			log := logger.From(r.Context())
			fields := []zap.Field{
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.Status(rec.status),
				logger.Bytes(rec.bytes),
				logger.DurationMs(dur),
				logger.ClientIP(r.RemoteAddr),
			}

			switch {
			case rec.status >= http.StatusInternalServerError:
				log.Error("request failed", fields...)
			case rec.status >= http.StatusBadRequest:
				log.Warn("request completed with client error", fields...)
			default:
				log.Info("request completed", fields...)
			}
		})
	}
}
