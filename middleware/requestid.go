package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/vitalvas/sigauth/logger"
)

// DefaultRequestIDHeader carries the request id.
const DefaultRequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestIDFromContext returns the request id stored by RequestID, or an
// empty string.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}

	return ""
}

// RequestIDConfig configures the RequestID middleware.
type RequestIDConfig struct {
	// HeaderName overrides DefaultRequestIDHeader.
	HeaderName string

	// Generate returns a new id. Defaults to a UUID v7 so ids sort by time.
	Generate func(r *http.Request) string

	// TrustIncoming reuses an id sent by the client.
	TrustIncoming bool
}

// RequestID assigns every request an id, sets it on the request and response
// headers, and stores it in the context together with a request-scoped
// logger.
//
// The request header is written on the inbound request, so a signed request
// must not cover it; only X-Key-Id, X-Signature and X-Signed-Timestamp take
// part in verification.
func RequestID(cfg RequestIDConfig) func(http.Handler) http.Handler {
	headerName := cfg.HeaderName
	if headerName == "" {
		headerName = DefaultRequestIDHeader
	}

	generate := cfg.Generate
	if generate == nil {
		generate = GenerateUUIDv7
	}

	trustIncoming := cfg.TrustIncoming

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if trustIncoming {
				id = r.Header.Get(headerName)
			}

			if id == "" {
				id = generate(r)
			}

			r.Header.Set(headerName, id)
			w.Header().Set(headerName, id)

			ctx := context.WithValue(r.Context(), requestIDKey{}, id)
			ctx = logger.ToContext(ctx, logger.From(ctx).With(logger.RequestID(id)))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GenerateUUIDv7 returns a new time-ordered UUID v7 string.
func GenerateUUIDv7(_ *http.Request) string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}
