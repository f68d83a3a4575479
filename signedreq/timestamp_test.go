package signedreq

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	valid := []struct {
		name  string
		value string
		want  time.Time
	}{
		{"rfc3339 utc", "2024-01-01T00:00:00Z", testSignedAt},
		{"rfc3339 offset", "2024-01-01T02:00:00+02:00", testSignedAt},
		{"rfc3339 lowercase separators", "2024-01-01t00:00:00z", testSignedAt},
		{"rfc3339 lowercase t with offset", "2024-01-01t02:00:00+02:00", testSignedAt},
		{"rfc3339 fractional", "2024-01-01T00:00:00.5Z", testSignedAt.Add(500 * time.Millisecond)},
		{"epoch seconds", "1704067200", testSignedAt},
		{"epoch zero", "0", time.Unix(0, 0).UTC()},
		{"negative epoch", "-1", time.Unix(-1, 0).UTC()},
	}

	for _, tc := range valid {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseTimestamp(tc.value)
			require.NoError(t, err)
			assert.True(t, tc.want.Equal(got), "want %s, got %s", tc.want, got)
		})
	}

	invalid := []string{
		"",
		"yesterday",
		"2024-01-01",
		"2024-01-01 00:00:00",
		"2024-01-01x00:00:00Z",
		"2024-01-01T00:00:00",
		"z",
		"1704067200.5",
		"0x10",
		" 1704067200",
		"99999999999999999999",
	}

	for _, value := range invalid {
		t.Run("invalid "+value, func(t *testing.T) {
			_, err := ParseTimestamp(value)
			assert.ErrorIs(t, err, ErrTimestampFormat)
			assert.ErrorIs(t, err, ErrVerification)
		})
	}
}

func TestCheckSkew(t *testing.T) {
	const tolerance = 5 * time.Second

	tests := []struct {
		name   string
		offset time.Duration
		ok     bool
	}{
		{"exact", 0, true},
		{"past within", -2 * time.Second, true},
		{"future within", 2 * time.Second, true},
		{"past boundary", -tolerance, true},
		{"future boundary", tolerance, true},
		{"past beyond", -tolerance - time.Nanosecond, false},
		{"future beyond", tolerance + time.Nanosecond, false},
		{"far past", -24 * time.Hour, false},
		{"far future", 24 * time.Hour, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := checkSkew(testSignedAt.Add(tc.offset), testSignedAt, tolerance)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrTimestampSkew)
			}
		})
	}

	t.Run("saturated difference", func(t *testing.T) {
		far := time.Unix(math.MaxInt64/2, 0)
		assert.ErrorIs(t, checkSkew(far, testSignedAt, tolerance), ErrTimestampSkew)
		assert.ErrorIs(t, checkSkew(testSignedAt, far, tolerance), ErrTimestampSkew)
	})

	t.Run("zero tolerance accepts only equality", func(t *testing.T) {
		assert.NoError(t, checkSkew(testSignedAt, testSignedAt, 0))
		assert.ErrorIs(t, checkSkew(testSignedAt.Add(time.Second), testSignedAt, 0), ErrTimestampSkew)
	})
}
