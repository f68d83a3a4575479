package signedreq

import (
	"net/http"
	"strings"
)

// CanonicalMessage returns the bytes a request signature covers:
//
//	timestamp "\n" method "\n" path-and-query "\n" body
//
// The timestamp is the raw header value and the body is appended verbatim.
// Header values cannot contain a bare newline, so field boundaries are
// unambiguous without length prefixes.
func CanonicalMessage(timestamp, method, pathAndQuery string, body []byte) []byte {
	msg := make([]byte, 0, len(timestamp)+len(method)+len(pathAndQuery)+3+len(body))
	msg = append(msg, timestamp...)
	msg = append(msg, '\n')
	msg = append(msg, method...)
	msg = append(msg, '\n')
	msg = append(msg, pathAndQuery...)
	msg = append(msg, '\n')
	msg = append(msg, body...)

	return msg
}

// PathAndQuery returns the path and query of the request exactly as the
// client sent them. Server requests use the raw request-target; requests built
// in-process fall back to the encoded form of r.URL.
func PathAndQuery(r *http.Request) string {
	target := r.RequestURI
	if target == "" {
		return r.URL.RequestURI()
	}

	// Absolute-form targets ("http://host/path?q") keep only path and query.
	if !strings.HasPrefix(target, "/") {
		if _, rest, ok := strings.Cut(target, "://"); ok {
			idx := strings.IndexAny(rest, "/?")
			if idx < 0 {
				return "/"
			}

			target = rest[idx:]
			if strings.HasPrefix(target, "?") {
				target = "/" + target
			}
		}
	}

	return target
}
