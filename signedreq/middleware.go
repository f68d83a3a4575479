package signedreq

import (
	"net/http"
	"time"

	"github.com/vitalvas/sigauth/problem"
)

// RejectionDetail is the only detail ever sent to a rejected client.
const RejectionDetail = "request signature verification failed"

// Settings is the static security configuration a Verifier is loaded from.
type Settings struct {
	// Enabled turns verification on. When false the gate passes every
	// request through.
	Enabled bool

	// RequiredKeyID pins the accepted key id.
	RequiredKeyID string

	// PublicKeys lists "<keyId>:<base64-public-key>" entries.
	PublicKeys []string

	// Tolerance is the clock skew tolerance, used as given.
	Tolerance time.Duration

	// MaxBodyBytes caps the buffered body. Zero means no limit.
	MaxBodyBytes int64

	// ReplayCache optionally rejects reused signatures.
	ReplayCache ReplayCache

	// Now overrides the verifier clock.
	Now func() time.Time
}

// Load builds a Verifier from s. It returns a nil Verifier and a nil error
// when verification is disabled or no keys are configured; a nil Verifier
// makes Middleware a pass-through. Any invalid key entry is an error.
func Load(s Settings) (*Verifier, error) {
	if !s.Enabled || len(s.PublicKeys) == 0 {
		return nil, nil
	}

	keys, err := ParseKeySet(s.PublicKeys)
	if err != nil {
		return nil, err
	}

	return NewVerifier(Config{
		Keys:          keys,
		RequiredKeyID: s.RequiredKeyID,
		Tolerance:     s.Tolerance,
		MaxBodyBytes:  s.MaxBodyBytes,
		ReplayCache:   s.ReplayCache,
		Now:           s.Now,
	})
}

// MiddlewareConfig configures the verification gate.
type MiddlewareConfig struct {
	// Verifier verifies requests. When nil the middleware is a pass-through.
	Verifier *Verifier

	// OnReject is called when verification fails. When nil, a 401
	// problem+json response with a generic detail is written. The error is
	// never meant to reach the client.
	OnReject func(w http.ResponseWriter, r *http.Request, err error)

	// OnAccept is called with the verified request before it is forwarded.
	OnAccept func(r *http.Request, keyID string)
}

// Middleware returns a middleware that verifies request signatures before
// calling next. Downstream handlers receive the verified request with its
// body already buffered.
func Middleware(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	verifier := cfg.Verifier
	if verifier == nil {
		return func(next http.Handler) http.Handler { return next }
	}

	onReject := cfg.OnReject
	if onReject == nil {
		onReject = DefaultOnReject
	}

	onAccept := cfg.OnAccept

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			verified, err := verifier.Verify(r)
			if err != nil {
				onReject(w, r, err)
				return
			}

			if onAccept != nil {
				onAccept(verified, KeyIDFromContext(verified.Context()))
			}

			next.ServeHTTP(w, verified)
		})
	}
}

// DefaultOnReject writes a 401 problem document that does not reveal which
// check failed.
func DefaultOnReject(w http.ResponseWriter, _ *http.Request, _ error) {
	problem.New(http.StatusUnauthorized).WithDetail(RejectionDetail).Write(w)
}
