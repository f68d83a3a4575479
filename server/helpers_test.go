package server

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vitalvas/sigauth/signedreq"
)

var (
	testSignedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	testNow      = testSignedAt.Add(2 * time.Second)
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func testKey(seed byte) (ed25519.PublicKey, ed25519.PrivateKey) {
	priv := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{seed}, ed25519.SeedSize))
	return priv.Public().(ed25519.PublicKey), priv
}

func keyEntry(id string, pub ed25519.PublicKey) string {
	return id + ":" + base64.StdEncoding.EncodeToString(pub)
}

// signHeaders sets the signature headers for a request to target.
func signHeaders(h http.Header, priv ed25519.PrivateKey, keyID, method, target, body string) {
	ts := testSignedAt.Format(time.RFC3339)
	sig := ed25519.Sign(priv, signedreq.CanonicalMessage(ts, method, target, []byte(body)))

	h.Set(signedreq.HeaderKeyID, keyID)
	h.Set(signedreq.HeaderTimestamp, ts)
	h.Set(signedreq.HeaderSignature, base64.StdEncoding.EncodeToString(sig))
}

func signedRequest(priv ed25519.PrivateKey, keyID, method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	signHeaders(req.Header, priv, keyID, method, target, body)

	return req
}

type seenRequest struct {
	method        string
	uri           string
	body          string
	verifiedKeyID string
	requestID     string
	forwardedFor  string
}

// recordingUpstream echoes the body and records what it received.
type recordingUpstream struct {
	*httptest.Server

	mu   sync.Mutex
	seen []seenRequest
}

func newRecordingUpstream(t *testing.T) *recordingUpstream {
	t.Helper()

	u := &recordingUpstream{}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)

		u.mu.Lock()
		u.seen = append(u.seen, seenRequest{
			method:        r.Method,
			uri:           r.RequestURI,
			body:          string(body),
			verifiedKeyID: r.Header.Get(HeaderVerifiedKeyID),
			requestID:     r.Header.Get("X-Request-ID"),
			forwardedFor:  r.Header.Get("X-Forwarded-For"),
		})
		u.mu.Unlock()

		w.WriteHeader(http.StatusCreated)
		w.Write(body)
	}))
	t.Cleanup(u.Close)

	return u
}

func (u *recordingUpstream) requests() []seenRequest {
	u.mu.Lock()
	defer u.mu.Unlock()

	return append([]seenRequest(nil), u.seen...)
}
