package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/porter-gw/porter/internal/policy"
)

// Headers carrying credentials for the gateway itself. Both are stripped
// before forwarding.
const (
	// HeaderPlainToken carries the shared token for plain auth.
	HeaderPlainToken = "X-Webhook-Token"

	// HeaderSignature carries the HMAC-SHA256 body signature
	// (GitHub's X-Hub-Signature-256 convention).
	HeaderSignature = "X-Hub-Signature-256"
)

// authenticate checks an inbound request against pol's auth type.
// body is the raw request body as received, before any decoding.
//
// Every failure returns the same generic error: the caller responds with
// a uniform 401 and must not reveal which check failed.
func authenticate(r *http.Request, body []byte, pol *policy.Policy) error {
	switch pol.AuthType {
	case policy.AuthNone:
		return nil

	case policy.AuthPlain:
		return verifyToken(r.Header.Get(HeaderPlainToken), pol.Secret)

	case policy.AuthBasic:
		user, pass, ok := r.BasicAuth()
		if !ok {
			return errAuthFailed()
		}
		return verifyToken(user+":"+pass, pol.Secret)

	case policy.AuthHMAC:
		return verifyHMACSignature(body, r.Header.Get(HeaderSignature), pol.Secret)

	default:
		return errAuthFailed()
	}
}

// verifyToken compares a supplied credential against the expected secret
// in constant time.
func verifyToken(provided, expected string) error {
	if provided == "" || expected == "" {
		return errAuthFailed()
	}
	if len(provided) != len(expected) {
		return errAuthFailed()
	}
	if subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
		return errAuthFailed()
	}
	return nil
}

// verifyHMACSignature verifies an HMAC-SHA256 signature over the exact
// raw request body.
//
// Supported signature formats:
//   - "sha256=<hex>" (GitHub X-Hub-Signature-256 style)
//   - "<hex>" (plain hex)
func verifyHMACSignature(body []byte, signature, secret string) error {
	if secret == "" || signature == "" || len(body) == 0 {
		return errAuthFailed()
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	actual, err := parseSignature(signature)
	if err != nil {
		return errAuthFailed()
	}

	if subtle.ConstantTimeCompare(expected, actual) != 1 {
		return errAuthFailed()
	}
	return nil
}

// parseSignature decodes the supplied signature, accepting an optional
// "sha256=" prefix.
func parseSignature(signature string) ([]byte, error) {
	hexSig := strings.TrimPrefix(signature, "sha256=")
	return hex.DecodeString(hexSig)
}

// computeSignature returns the hex HMAC-SHA256 of body. Test helper.
func computeSignature(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// errAuthFailed is deliberately detail-free.
func errAuthFailed() error {
	return fmt.Errorf("webhook authentication failed")
}
