package webhook

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/porter-gw/porter/internal/policy"
)

// Sentinel forward errors. Deliberately bare: the underlying transport
// error embeds the destination URL, which must appear in neither the
// caller-visible response nor the gateway's own logs.
var (
	ErrUpstreamUnreachable = errors.New("upstream unreachable")
	ErrUpstreamTimeout     = errors.New("upstream timeout")
)

// hopHeaders are dropped in both directions per RFC 7230 section 6.1.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// gatewayHeaders carried credentials for the gateway itself and are not
// the plugin's business.
var gatewayHeaders = []string{
	"Authorization",
	HeaderPlainToken,
	HeaderSignature,
}

// HeaderDelivery tags each forwarded webhook with a unique ID so a plugin
// and the gateway log can be correlated.
const HeaderDelivery = "X-Webhook-Delivery"

// Forwarder relays accepted webhooks to plugin destinations. One attempt
// per inbound webhook; retries are the sender's concern.
type Forwarder struct {
	client  *http.Client
	timeout time.Duration
}

// NewForwarder builds a Forwarder with a per-request timeout. The
// timeout is applied via request context so a caller disconnect also
// abandons the in-progress forward.
func NewForwarder(timeout time.Duration) *Forwarder {
	return &Forwarder{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		timeout: timeout,
	}
}

// Forward relays body to pol.Destination and streams the destination's
// status and body back to w verbatim. Returns the delivery ID, the
// upstream status on success, and ErrUpstreamTimeout or
// ErrUpstreamUnreachable on transport failure (in which case nothing has
// been written to w).
func (f *Forwarder) Forward(w http.ResponseWriter, r *http.Request, pol *policy.Policy, body []byte) (string, int, error) {
	ctx, cancel := context.WithTimeout(r.Context(), f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, r.Method, pol.Destination, bytes.NewReader(body))
	if err != nil {
		return "", 0, ErrUpstreamUnreachable
	}

	copySafeHeaders(req.Header, r.Header)
	deliveryID := uuid.NewString()
	req.Header.Set(HeaderDelivery, deliveryID)

	resp, err := f.client.Do(req)
	if err != nil {
		return deliveryID, 0, classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	dst := w.Header()
	for name, values := range resp.Header {
		if isHopHeader(name) {
			continue
		}
		dst[name] = values
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)

	return deliveryID, resp.StatusCode, nil
}

// copySafeHeaders copies inbound headers, excluding hop-by-hop headers
// and credentials addressed to the gateway.
func copySafeHeaders(dst, src http.Header) {
	for name, values := range src {
		if isHopHeader(name) || isGatewayHeader(name) {
			continue
		}
		dst[name] = values
	}
}

func isHopHeader(name string) bool {
	for _, h := range hopHeaders {
		if http.CanonicalHeaderKey(name) == h {
			return true
		}
	}
	return false
}

func isGatewayHeader(name string) bool {
	for _, h := range gatewayHeaders {
		if http.CanonicalHeaderKey(name) == http.CanonicalHeaderKey(h) {
			return true
		}
	}
	return false
}

// classifyTransportError collapses transport failures into the two
// destination-free sentinels.
func classifyTransportError(ctx context.Context, err error) error {
	if ctx.Err() == context.DeadlineExceeded {
		return ErrUpstreamTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrUpstreamTimeout
	}
	return ErrUpstreamUnreachable
}
