package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	m.Accepted(128)
	m.Accepted(0)
	m.Rejected("unknown_key_id")
	m.Request(http.MethodPost, http.StatusUnauthorized, 10*time.Millisecond)
	m.SetVerifierState(true, 3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.verifications.WithLabelValues(ResultAccepted, "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.verifications.WithLabelValues(ResultRejected, "unknown_key_id")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("POST", "401")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.registeredKeys))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.verifierDisabled))

	m.SetVerifierState(false, 0)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.verifierDisabled))
}

func TestHandler(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	m.Rejected("signature_mismatch")

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)

	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `sigauth_verifications_total{reason="signature_mismatch",result="rejected"} 1`))
	assert.True(t, strings.Contains(string(body), "go_goroutines"))
}

func TestNewUsesIndependentRegistries(t *testing.T) {
	_, err := New()
	require.NoError(t, err)

	_, err = New()
	assert.NoError(t, err)
}
