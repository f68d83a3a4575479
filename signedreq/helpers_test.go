package signedreq

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var (
	testSignedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	testNow      = testSignedAt.Add(2 * time.Second)
)

func testKey(seed byte) (ed25519.PublicKey, ed25519.PrivateKey) {
	priv := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{seed}, ed25519.SeedSize))
	return priv.Public().(ed25519.PublicKey), priv
}

func keyEntry(keyID string, pub ed25519.PublicKey) string {
	return keyID + ":" + base64.StdEncoding.EncodeToString(pub)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

type signedRequest struct {
	keyID     string
	method    string
	target    string
	timestamp string
	body      []byte
}

// sign builds the request described by s and signs it with priv.
func (s signedRequest) sign(t *testing.T, priv ed25519.PrivateKey) *http.Request {
	t.Helper()

	msg := CanonicalMessage(s.timestamp, s.method, s.target, s.body)
	sig := ed25519.Sign(priv, msg)

	return s.build(t, base64.StdEncoding.EncodeToString(sig))
}

// build builds the request described by s carrying signature as is.
func (s signedRequest) build(t *testing.T, signature string) *http.Request {
	t.Helper()

	var body io.Reader
	if s.body != nil {
		body = bytes.NewReader(s.body)
	}

	req := httptest.NewRequest(s.method, s.target, body)

	require.Equal(t, s.target, PathAndQuery(req))

	if s.keyID != "" {
		req.Header.Set(HeaderKeyID, s.keyID)
	}
	if signature != "" {
		req.Header.Set(HeaderSignature, signature)
	}
	if s.timestamp != "" {
		req.Header.Set(HeaderTimestamp, s.timestamp)
	}

	return req
}

func articleRequest() signedRequest {
	return signedRequest{
		keyID:     "k1",
		method:    http.MethodPost,
		target:    "/articles?x=1",
		timestamp: "2024-01-01T00:00:00Z",
		body:      []byte(`{"title":"a"}`),
	}
}

type fakeReplayCache struct {
	mu   sync.Mutex
	seen map[string]time.Duration
	err  error
}

func newFakeReplayCache() *fakeReplayCache {
	return &fakeReplayCache{seen: make(map[string]time.Duration)}
}

func (c *fakeReplayCache) Remember(_ context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return false, c.err
	}

	if _, ok := c.seen[key]; ok {
		return false, nil
	}

	c.seen[key] = ttl

	return true, nil
}
