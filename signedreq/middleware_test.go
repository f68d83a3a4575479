package signedreq

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		w.Header().Set("X-Seen-Key-Id", KeyIDFromContext(r.Context()))
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	})
}

func TestLoad(t *testing.T) {
	pub, _ := testKey(1)

	t.Run("disabled", func(t *testing.T) {
		v, err := Load(Settings{Enabled: false, PublicKeys: []string{keyEntry("k1", pub)}})
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("enabled without keys is disabled", func(t *testing.T) {
		v, err := Load(Settings{Enabled: true})
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("disabled ignores malformed keys", func(t *testing.T) {
		v, err := Load(Settings{Enabled: false, PublicKeys: []string{"garbage"}})
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("enabled with malformed key fails", func(t *testing.T) {
		_, err := Load(Settings{Enabled: true, PublicKeys: []string{keyEntry("k1", pub), "garbage"}})
		assert.ErrorIs(t, err, ErrInvalidKeyEntry)
	})

	t.Run("enabled", func(t *testing.T) {
		v, err := Load(Settings{
			Enabled:       true,
			RequiredKeyID: "k1",
			PublicKeys:    []string{keyEntry("k1", pub)},
			Tolerance:     30 * time.Second,
		})
		require.NoError(t, err)
		require.NotNil(t, v)
		assert.Equal(t, 30*time.Second, v.Tolerance())
		assert.Equal(t, []string{"k1"}, v.Keys().KeyIDs())
	})

	t.Run("pinned key missing from set", func(t *testing.T) {
		_, err := Load(Settings{
			Enabled:       true,
			RequiredKeyID: "k2",
			PublicKeys:    []string{keyEntry("k1", pub)},
		})
		assert.ErrorIs(t, err, ErrRequiredKeyUnknown)
	})
}

func TestMiddleware(t *testing.T) {
	pub, priv := testKey(1)

	verifier, err := Load(Settings{
		Enabled:    true,
		PublicKeys: []string{keyEntry("k1", pub)},
		Tolerance:  5 * time.Second,
		Now:        fixedClock(testNow),
	})
	require.NoError(t, err)

	newRouter := func(cfg MiddlewareConfig) *chi.Mux {
		r := chi.NewRouter()
		r.Use(Middleware(cfg))
		r.Method(http.MethodPost, "/articles", echoHandler(t))
		return r
	}

	t.Run("valid signed request passes through with body", func(t *testing.T) {
		r := newRouter(MiddlewareConfig{Verifier: verifier})

		w := httptest.NewRecorder()
		r.ServeHTTP(w, articleRequest().sign(t, priv))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, `{"title":"a"}`, w.Body.String())
		assert.Equal(t, "k1", w.Header().Get("X-Seen-Key-Id"))
	})

	t.Run("unsigned request returns uniform 401", func(t *testing.T) {
		r := newRouter(MiddlewareConfig{Verifier: verifier})

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/articles?x=1", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	})

	t.Run("all rejection reasons produce identical responses", func(t *testing.T) {
		r := newRouter(MiddlewareConfig{Verifier: verifier})

		unknown := articleRequest()
		unknown.keyID = "k2"

		stale := articleRequest()
		stale.timestamp = "2023-12-31T23:00:00Z"

		tampered := articleRequest().sign(t, priv)
		tampered.Header.Set(HeaderTimestamp, "1704067200")

		requests := []*http.Request{
			httptest.NewRequest(http.MethodPost, "/articles?x=1", nil),
			unknown.sign(t, priv),
			stale.sign(t, priv),
			articleRequest().build(t, "AAAA"),
			tampered,
		}

		var first string
		for i, req := range requests {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			require.Equal(t, http.StatusUnauthorized, w.Code, "request %d", i)

			if i == 0 {
				first = w.Body.String()
				continue
			}

			assert.Equal(t, first, w.Body.String(), "request %d", i)
		}

		var body map[string]any
		require.NoError(t, json.Unmarshal([]byte(first), &body))
		assert.Equal(t, RejectionDetail, body["detail"])
		assert.Equal(t, "Unauthorized", body["title"])
	})

	t.Run("handler is not reached on rejection", func(t *testing.T) {
		reached := false
		r := chi.NewRouter()
		r.Use(Middleware(MiddlewareConfig{Verifier: verifier}))
		r.Post("/articles", func(http.ResponseWriter, *http.Request) { reached = true })

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/articles", nil))

		assert.False(t, reached)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("hooks receive reason and key id", func(t *testing.T) {
		var rejected error
		var accepted string

		r := newRouter(MiddlewareConfig{
			Verifier: verifier,
			OnReject: func(w http.ResponseWriter, _ *http.Request, err error) {
				rejected = err
				w.WriteHeader(http.StatusForbidden)
			},
			OnAccept: func(_ *http.Request, keyID string) {
				accepted = keyID
			},
		})

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/articles", nil))
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.ErrorIs(t, rejected, ErrMissingHeader)
		assert.Equal(t, "missing_header", Reason(rejected))

		w = httptest.NewRecorder()
		r.ServeHTTP(w, articleRequest().sign(t, priv))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "k1", accepted)
	})
}

func TestMiddlewareDisabled(t *testing.T) {
	verifier, err := Load(Settings{Enabled: false})
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(Middleware(MiddlewareConfig{Verifier: verifier}))
	r.Method(http.MethodPost, "/articles", echoHandler(t))

	t.Run("unsigned request passes unchanged", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, articleRequest().build(t, ""))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, `{"title":"a"}`, w.Body.String())
		assert.Empty(t, w.Header().Get("X-Seen-Key-Id"))
	})

	t.Run("garbage signature passes unchanged", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, articleRequest().build(t, "garbage"))

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("middleware returns next as is", func(t *testing.T) {
		next := http.NotFoundHandler()
		got := Middleware(MiddlewareConfig{})(next)

		w := httptest.NewRecorder()
		got.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
