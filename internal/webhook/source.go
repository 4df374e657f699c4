package webhook

import (
	"net"
	"net/http"
	"strings"

	"github.com/porter-gw/porter/internal/policy"
)

const headerXForwardedFor = "X-Forwarded-For"

// sourceAddr resolves a request's origin address and checks it against a
// policy's allowlist. The extractor half handles X-Forwarded-For behind
// trusted proxies; with no trusted proxies configured only RemoteAddr is
// believed (secure default, prevents allowlist bypass by header spoofing).
type sourceAddr struct {
	trusted policy.SourceSet
}

// newSourceAddr compiles the trusted proxy list. Entries follow the same
// CIDR-or-single-address form as policy allowlists.
func newSourceAddr(trustedProxies []string) (*sourceAddr, error) {
	set, err := policy.ParseSources(trustedProxies)
	if err != nil {
		return nil, err
	}
	return &sourceAddr{trusted: set}, nil
}

// extract returns the origin IP for r.
func (s *sourceAddr) extract(r *http.Request) net.IP {
	remote := net.ParseIP(stripPort(r.RemoteAddr))
	if remote == nil {
		return nil
	}
	if s.trusted.Empty() || !s.trusted.Contains(remote) {
		return remote
	}

	// Direct peer is a trusted proxy: walk X-Forwarded-For right to
	// left and take the first address we do not trust.
	xff := r.Header.Get(headerXForwardedFor)
	if xff == "" {
		return remote
	}
	parts := strings.Split(xff, ",")
	for i := len(parts) - 1; i >= 0; i-- {
		ip := net.ParseIP(strings.TrimSpace(parts[i]))
		if ip == nil {
			continue
		}
		if !s.trusted.Contains(ip) {
			return ip
		}
	}
	return remote
}

// allowed reports whether r's origin is permitted by pol's allowlist.
func (s *sourceAddr) allowed(r *http.Request, pol *policy.Policy) bool {
	return pol.Sources.Contains(s.extract(r))
}

// stripPort removes the port from an address, handling both
// "192.168.1.1:8080" and "[::1]:8080".
func stripPort(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
