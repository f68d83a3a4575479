package signedreq

import (
	"fmt"
	"strconv"
	"time"
)

// DefaultClockSkewTolerance is the tolerance applied when the configuration
// does not set one.
const DefaultClockSkewTolerance = 5 * time.Second

// timestampParsers are tried in order. An RFC 3339 value always contains
// '-' and ':' after the first digit while an epoch value is digits only, so
// at most one of them can succeed for a given input.
var timestampParsers = []func(string) (time.Time, bool){
	parseRFC3339,
	parseEpochSeconds,
}

// ParseTimestamp parses a signed timestamp, either an RFC 3339 date-time or a
// base-10 count of seconds since the Unix epoch.
func ParseTimestamp(value string) (time.Time, error) {
	for _, parse := range timestampParsers {
		if ts, ok := parse(value); ok {
			return ts, nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrTimestampFormat, value)
}

func parseRFC3339(value string) (time.Time, bool) {
	ts, err := time.Parse(time.RFC3339, upperRFC3339Separators(value))
	if err != nil {
		return time.Time{}, false
	}

	return ts.UTC(), true
}

// upperRFC3339Separators uppercases the date-time separator and the UTC
// designator, which RFC 3339 section 5.6 allows in lowercase. The signed
// header value itself is never rewritten.
func upperRFC3339Separators(value string) string {
	if len(value) > 10 && value[10] == 't' {
		value = value[:10] + "T" + value[11:]
	}

	if n := len(value); n > 0 && value[n-1] == 'z' {
		value = value[:n-1] + "Z"
	}

	return value
}

func parseEpochSeconds(value string) (time.Time, bool) {
	secs, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, false
	}

	return time.Unix(secs, 0).UTC(), true
}

// checkSkew accepts ts when |now - ts| <= tolerance. The boundary is
// inclusive and the check applies in both directions.
func checkSkew(ts, now time.Time, tolerance time.Duration) error {
	delta := now.Sub(ts)
	if delta < 0 {
		delta = -delta
	}

	// Sub saturates at the minimum duration, whose negation overflows.
	if delta < 0 || delta > tolerance {
		return fmt.Errorf("%w: skew %s exceeds %s", ErrTimestampSkew, delta, tolerance)
	}

	return nil
}
