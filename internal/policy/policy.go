// Package policy defines the per-plugin webhook policy: how inbound
// webhook traffic for a plugin is authenticated, which source addresses
// may send it, and where validated payloads are forwarded.
package policy

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
)

// ErrMalformed marks a policy rejected at registration time. It never
// reaches webhook senders; the administrative API surfaces the wrapped
// detail to the console instead.
var ErrMalformed = errors.New("malformed webhook policy")

// AuthType selects the credential check applied to inbound webhooks.
type AuthType string

const (
	AuthNone  AuthType = "none"
	AuthPlain AuthType = "plain"
	AuthBasic AuthType = "basic"
	AuthHMAC  AuthType = "hmac-sha256"
)

// ParseAuthType normalizes a wire auth-type string. Empty means none.
func ParseAuthType(s string) (AuthType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(AuthNone):
		return AuthNone, nil
	case string(AuthPlain):
		return AuthPlain, nil
	case string(AuthBasic):
		return AuthBasic, nil
	case string(AuthHMAC):
		return AuthHMAC, nil
	default:
		return "", fmt.Errorf("%w: unknown auth type %q", ErrMalformed, s)
	}
}

// nameRE constrains plugin names because the name doubles as the public
// path segment /plugin/<name>.
var nameRE = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)

// Policy is the compiled webhook policy for one registered plugin.
// Instances are immutable once built; the route table replaces whole
// values rather than mutating fields in place.
type Policy struct {
	Name        string
	Description string
	Destination string
	AuthType    AuthType
	Secret      string
	Sources     SourceSet
}

// Compile validates raw plugin fields and builds an immutable Policy.
// All failures wrap ErrMalformed so callers can reject the registration
// before the route table or the registry sees it.
func Compile(name, description, destination, authType, secret string, allowedSources []string) (*Policy, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: plugin name is empty", ErrMalformed)
	}
	if !nameRE.MatchString(name) {
		return nil, fmt.Errorf("%w: plugin name %q is not a valid path segment", ErrMalformed, name)
	}

	u, err := url.Parse(destination)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: destination for %q is not an absolute URL", ErrMalformed, name)
	}

	at, err := ParseAuthType(authType)
	if err != nil {
		return nil, err
	}

	switch at {
	case AuthNone:
		secret = ""
	case AuthPlain, AuthHMAC:
		if secret == "" {
			return nil, fmt.Errorf("%w: auth type %s requires a secret", ErrMalformed, at)
		}
	case AuthBasic:
		if !strings.Contains(secret, ":") {
			return nil, fmt.Errorf("%w: auth type basic requires a username:password secret", ErrMalformed)
		}
	}

	sources, err := ParseSources(allowedSources)
	if err != nil {
		return nil, err
	}

	return &Policy{
		Name:        name,
		Description: strings.TrimSpace(description),
		Destination: destination,
		AuthType:    at,
		Secret:      secret,
		Sources:     sources,
	}, nil
}

// SourceSet is a compiled CIDR allowlist. The zero value permits all
// addresses.
type SourceSet struct {
	nets []*net.IPNet
	raw  []string
}

// ParseSources compiles allowlist entries. Entries may be CIDR ranges or
// single addresses (widened to /32 or /128). A malformed entry is a
// registration-time error, never a per-request one.
func ParseSources(entries []string) (SourceSet, error) {
	set := SourceSet{}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		_, cidr, err := net.ParseCIDR(entry)
		if err != nil {
			ip := net.ParseIP(entry)
			if ip == nil {
				return SourceSet{}, fmt.Errorf("%w: invalid source %q", ErrMalformed, entry)
			}
			cidr = singleIPToCIDR(ip)
		}
		set.nets = append(set.nets, cidr)
		set.raw = append(set.raw, entry)
	}
	return set, nil
}

func singleIPToCIDR(ip net.IP) *net.IPNet {
	bits := 32
	if ip.To4() == nil {
		bits = 128
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}
}

// Contains reports whether ip is permitted. An empty set permits all.
func (s SourceSet) Contains(ip net.IP) bool {
	if len(s.nets) == 0 {
		return true
	}
	if ip == nil {
		return false
	}
	for _, cidr := range s.nets {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}

// Empty reports whether the set is the unrestricted default.
func (s SourceSet) Empty() bool {
	return len(s.nets) == 0
}

// Entries returns the entries as configured, for display in the console.
func (s SourceSet) Entries() []string {
	return append([]string(nil), s.raw...)
}
