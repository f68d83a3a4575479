package server

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/vitalvas/sigauth/logger"
	"github.com/vitalvas/sigauth/problem"
	"github.com/vitalvas/sigauth/signedreq"
)

// HeaderVerifiedKeyID tells the upstream which key authenticated the
// request. Inbound values are always dropped.
const HeaderVerifiedKeyID = "X-Verified-Key-Id"

var ErrInvalidUpstream = errors.New("server: invalid upstream url")

// ParseUpstream parses raw as an absolute http or https URL.
func ParseUpstream(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidUpstream, err)
	}

	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUpstream, raw)
	}

	return u, nil
}

// NewProxy forwards requests to target. A positive timeout bounds the wait
// for upstream response headers.
func NewProxy(target *url.URL, timeout time.Duration) *httputil.ReverseProxy {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if timeout > 0 {
		transport.ResponseHeaderTimeout = timeout
	}

	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()

			pr.Out.Header.Del(HeaderVerifiedKeyID)
			if keyID := signedreq.KeyIDFromContext(pr.In.Context()); keyID != "" {
				pr.Out.Header.Set(HeaderVerifiedKeyID, keyID)
			}
		},
		Transport: transport,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.From(r.Context()).Error("upstream request failed",
				logger.Component("proxy"),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.Err(err),
			)

			problem.New(http.StatusBadGateway).Write(w)
		},
	}
}
