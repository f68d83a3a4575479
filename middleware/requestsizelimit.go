package middleware

import (
	"errors"
	"net/http"
)

// ErrInvalidMaxSize is returned when RequestSizeLimitConfig.MaxBytes is not
// greater than zero.
var ErrInvalidMaxSize = errors.New("middleware: request size limit must be greater than zero")

// RequestSizeLimitConfig configures the RequestSizeLimit middleware.
type RequestSizeLimitConfig struct {
	// MaxBytes is the maximum request body size. Must be greater than zero.
	MaxBytes int64
}

// RequestSizeLimit wraps every request body with http.MaxBytesReader. Reads
// past the limit fail with *http.MaxBytesError, which the signature gate
// reports as an oversized body.
func RequestSizeLimit(cfg RequestSizeLimitConfig) (func(http.Handler) http.Handler, error) {
	if cfg.MaxBytes <= 0 {
		return nil, ErrInvalidMaxSize
	}

	maxBytes := cfg.MaxBytes

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && r.Body != http.NoBody {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}
