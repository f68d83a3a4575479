package signedreq

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

// Request headers carrying the signature.
const (
	HeaderKeyID     = "X-Key-Id"
	HeaderSignature = "X-Signature"
	HeaderTimestamp = "X-Signed-Timestamp"
)

// ReplayCache records signatures that have already been accepted.
//
// Remember stores key for ttl and reports whether it was absent before the
// call. Implementations must make the check-and-store atomic.
type ReplayCache interface {
	Remember(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Config configures a Verifier.
type Config struct {
	// Keys holds the accepted public keys. Required.
	Keys *KeySet

	// RequiredKeyID, when non-empty, restricts acceptance to that key id
	// even when other keys are registered.
	RequiredKeyID string

	// Tolerance is the maximum accepted difference between the verifier
	// clock and the signed timestamp. It is used as given: zero accepts only
	// an exact match. Pass DefaultClockSkewTolerance for the usual window.
	Tolerance time.Duration

	// MaxBodyBytes caps the body buffered for verification. Zero means no
	// limit.
	MaxBodyBytes int64

	// ReplayCache, when set, rejects a signature presented more than once
	// within twice the tolerance, and for at least minReplayTTL.
	ReplayCache ReplayCache

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Verifier checks Ed25519 request signatures. It holds no mutable state and
// is safe for concurrent use.
type Verifier struct {
	keys          *KeySet
	requiredKeyID string
	tolerance     time.Duration
	maxBodyBytes  int64
	replay        ReplayCache
	now           func() time.Time
}

// NewVerifier returns a Verifier for cfg.
func NewVerifier(cfg Config) (*Verifier, error) {
	if cfg.Keys.Len() == 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, ErrNoKeys)
	}

	if cfg.Tolerance < 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, ErrInvalidTolerance)
	}

	if cfg.RequiredKeyID != "" {
		if _, ok := cfg.Keys.Lookup(cfg.RequiredKeyID); !ok {
			return nil, fmt.Errorf("%w: %w: %q", ErrInvalidConfig, ErrRequiredKeyUnknown, cfg.RequiredKeyID)
		}
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Verifier{
		keys:          cfg.Keys,
		requiredKeyID: cfg.RequiredKeyID,
		tolerance:     cfg.Tolerance,
		maxBodyBytes:  cfg.MaxBodyBytes,
		replay:        cfg.ReplayCache,
		now:           now,
	}, nil
}

// Tolerance returns the configured clock skew tolerance.
func (v *Verifier) Tolerance() time.Duration { return v.tolerance }

// Keys returns the key set the verifier resolves key ids against.
func (v *Verifier) Keys() *KeySet { return v.keys }

// Verify authenticates r. On success it returns a request carrying the same
// method, target and headers with the body replaced by the buffered bytes,
// and the accepted key id stored in its context. Every failure wraps
// ErrVerification.
func (v *Verifier) Verify(r *http.Request) (*http.Request, error) {
	keyID, err := requireHeader(r, HeaderKeyID)
	if err != nil {
		return nil, err
	}

	if v.requiredKeyID != "" && keyID != v.requiredKeyID {
		return nil, fmt.Errorf("%w: %q", ErrKeyIDMismatch, keyID)
	}

	key, ok := v.keys.Lookup(keyID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKeyID, keyID)
	}

	signature, err := decodeSignature(r)
	if err != nil {
		return nil, err
	}

	rawTimestamp, err := requireHeader(r, HeaderTimestamp)
	if err != nil {
		return nil, err
	}

	ts, err := ParseTimestamp(rawTimestamp)
	if err != nil {
		return nil, err
	}

	if err := checkSkew(ts, v.now(), v.tolerance); err != nil {
		return nil, err
	}

	body, err := v.readBody(r)
	if err != nil {
		return nil, err
	}

	msg := CanonicalMessage(rawTimestamp, r.Method, PathAndQuery(r), body)
	if !ed25519.Verify(key, msg, signature) {
		return nil, ErrSignatureMismatch
	}

	if v.replay != nil {
		fresh, err := v.replay.Remember(r.Context(), replayKey(keyID, signature), replayTTL(v.tolerance))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrReplayCache, err)
		}

		if !fresh {
			return nil, ErrReplayed
		}
	}

	return rebuildRequest(r, keyID, body), nil
}

func requireHeader(r *http.Request, name string) (string, error) {
	value := r.Header.Get(name)
	if value == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingHeader, name)
	}

	return value, nil
}

func decodeSignature(r *http.Request) ([]byte, error) {
	encoded, err := requireHeader(r, HeaderSignature)
	if err != nil {
		return nil, err
	}

	raw, err := base64Strict.DecodeString(encoded)
	if err != nil {
		return nil, ErrSignatureEncoding
	}

	if len(raw) != ed25519.SignatureSize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrSignatureLength, len(raw))
	}

	return raw, nil
}

// readBody buffers the whole body. The read is abandoned when the request
// context is cancelled.
func (v *Verifier) readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}

	if v.maxBodyBytes > 0 && r.ContentLength > v.maxBodyBytes {
		return nil, fmt.Errorf("%w: content length %d exceeds %d", ErrBodyTooLarge, r.ContentLength, v.maxBodyBytes)
	}

	var src io.Reader = r.Body
	if v.maxBodyBytes > 0 {
		src = io.LimitReader(r.Body, v.maxBodyBytes+1)
	}

	body, err := io.ReadAll(contextReader{ctx: r.Context(), r: src})
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, fmt.Errorf("%w: %w", ErrBodyTooLarge, err)
		}

		return nil, fmt.Errorf("%w: %w", ErrBodyRead, err)
	}

	if v.maxBodyBytes > 0 && int64(len(body)) > v.maxBodyBytes {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", ErrBodyTooLarge, v.maxBodyBytes)
	}

	r.Body.Close()

	return body, nil
}

// contextReader stops reading once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}

	return c.r.Read(p)
}

func rebuildRequest(r *http.Request, keyID string, body []byte) *http.Request {
	out := r.WithContext(context.WithValue(r.Context(), keyIDKey{}, keyID))
	out.ContentLength = int64(len(body))

	if len(body) == 0 {
		out.Body = http.NoBody
		out.GetBody = func() (io.ReadCloser, error) { return http.NoBody, nil }

		return out
	}

	out.Body = io.NopCloser(bytes.NewReader(body))
	out.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}

	return out
}

// minReplayTTL keeps replay entries expiring when the tolerance is zero.
const minReplayTTL = time.Second

// replayTTL covers both sides of the tolerance window, saturating instead of
// overflowing for very large tolerances.
func replayTTL(tolerance time.Duration) time.Duration {
	if tolerance > math.MaxInt64/2 {
		return math.MaxInt64
	}

	return max(2*tolerance, minReplayTTL)
}

func replayKey(keyID string, signature []byte) string {
	return keyID + ":" + base64Strict.EncodeToString(signature)
}

type keyIDKey struct{}

// KeyIDFromContext returns the key id that authenticated the request, or an
// empty string when the request was not verified.
func KeyIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(keyIDKey{}).(string); ok {
		return id
	}

	return ""
}
