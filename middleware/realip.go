package middleware

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ErrInvalidProxy is returned for a trusted proxy entry that is neither an IP
// address nor a CIDR prefix.
var ErrInvalidProxy = errors.New("middleware: invalid trusted proxy")

// RealIPConfig configures the RealIP middleware.
type RealIPConfig struct {
	// TrustedProxies lists peer addresses and CIDR prefixes whose
	// X-Forwarded-For and X-Real-IP headers are honoured.
	TrustedProxies []string
}

// RealIP replaces the host part of r.RemoteAddr with the client address
// reported by a trusted peer; the peer port is kept. X-Forwarded-For is
// walked from the right and the first address outside the trusted set wins;
// X-Real-IP is the fallback. Requests from other peers are left untouched.
func RealIP(cfg RealIPConfig) (func(http.Handler) http.Handler, error) {
	trusted, err := parsePrefixes(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if peer, port, ok := remoteIP(r.RemoteAddr); ok && containsAddr(trusted, peer) {
				if ip, ok := forwardedClient(r.Header, trusted); ok {
					r.RemoteAddr = net.JoinHostPort(ip.String(), port)
				}
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}

func parsePrefixes(entries []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(entries))

	for _, entry := range entries {
		entry = strings.TrimSpace(entry)

		if strings.Contains(entry, "/") {
			p, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("%w: %q", ErrInvalidProxy, entry)
			}

			out = append(out, p.Masked())

			continue
		}

		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidProxy, entry)
		}

		out = append(out, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
	}

	return out, nil
}

func remoteIP(remoteAddr string) (netip.Addr, string, bool) {
	host, port, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host, port = remoteAddr, "0"
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, "", false
	}

	return addr.Unmap(), port, true
}

func containsAddr(prefixes []netip.Prefix, addr netip.Addr) bool {
	for _, p := range prefixes {
		if p.Contains(addr) {
			return true
		}
	}

	return false
}

func forwardedClient(h http.Header, trusted []netip.Prefix) (netip.Addr, bool) {
	if xff := h.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")

		for i := len(hops) - 1; i >= 0; i-- {
			addr, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				return netip.Addr{}, false
			}

			addr = addr.Unmap()
			if !containsAddr(trusted, addr) {
				return addr, true
			}
		}

		return netip.Addr{}, false
	}

	if realIP := strings.TrimSpace(h.Get("X-Real-IP")); realIP != "" {
		if addr, err := netip.ParseAddr(realIP); err == nil {
			return addr.Unmap(), true
		}
	}

	return netip.Addr{}, false
}
