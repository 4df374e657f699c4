package webhook

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/porter-gw/porter/internal/events"
	"github.com/porter-gw/porter/internal/policy"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestServer(t *testing.T, table *RouteTable) *Server {
	t.Helper()
	s, err := New(Config{
		Listen:         "127.0.0.1:0",
		ForwardTimeout: 2 * time.Second,
		MaxBodyBytes:   1 << 20,
	}, table, nil, testLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

func postWebhook(s *Server, path, from, body string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.RemoteAddr = from + ":43210"
	for name, values := range header {
		req.Header[name] = values
	}
	rec := httptest.NewRecorder()
	s.setupRoutes().ServeHTTP(rec, req)
	return rec
}

func TestGateway_UnknownPlugin(t *testing.T) {
	s := newTestServer(t, NewRouteTable())

	rec := postWebhook(s, "/plugin/ghost", "10.1.2.3", "{}", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}

	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Result != "error" || resp.Error != "not found" {
		t.Errorf("body = %+v, want uniform not found", resp)
	}
}

// End-to-end: plain auth with a 10.0.0.0/8 allowlist.
func TestGateway_ScenarioAlertsBot(t *testing.T) {
	var upstreamCalls int
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamCalls++
		_, _ = w.Write([]byte(`{"handled":true}`))
	}))
	defer upstream.Close()

	pol, err := policy.Compile("alerts-bot", "", upstream.URL, "plain", "s3cr3t", []string{"10.0.0.0/8"})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	table := NewRouteTable()
	table.Upsert(pol)
	s := newTestServer(t, table)

	withToken := http.Header{HeaderPlainToken: []string{"s3cr3t"}}

	// Allowed source, correct secret: forwarded once, response relayed.
	rec := postWebhook(s, "/plugin/alerts-bot", "10.1.2.3", `{"n":1}`, withToken)
	if rec.Code != http.StatusOK {
		t.Errorf("accepted webhook: status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != `{"handled":true}` {
		t.Errorf("relayed body = %q", rec.Body.String())
	}
	if upstreamCalls != 1 {
		t.Errorf("upstream calls = %d, want exactly 1", upstreamCalls)
	}

	// Disallowed source: forbidden regardless of credential correctness.
	rec = postWebhook(s, "/plugin/alerts-bot", "192.168.1.1", `{"n":1}`, withToken)
	if rec.Code != http.StatusForbidden {
		t.Errorf("bad source: status = %d, want 403", rec.Code)
	}

	// Allowed source, wrong secret: unauthorized.
	rec = postWebhook(s, "/plugin/alerts-bot", "10.1.2.3", `{"n":1}`,
		http.Header{HeaderPlainToken: []string{"wrong"}})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad secret: status = %d, want 401", rec.Code)
	}

	// Rejected requests never cost an upstream call.
	if upstreamCalls != 1 {
		t.Errorf("upstream calls after rejections = %d, want 1", upstreamCalls)
	}
}

func TestGateway_HMACBodyTampering(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer upstream.Close()

	secret := "signing-key"
	pol, err := policy.Compile("deploy-bot", "", upstream.URL, "hmac-sha256", secret, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	table := NewRouteTable()
	table.Upsert(pol)
	s := newTestServer(t, table)

	body := `{"ref":"main"}`
	sig := "sha256=" + computeSignature([]byte(body), secret)
	header := http.Header{HeaderSignature: []string{sig}}

	rec := postWebhook(s, "/plugin/deploy-bot", "10.1.2.3", body, header)
	if rec.Code != http.StatusOK {
		t.Errorf("valid signature: status = %d, want 200", rec.Code)
	}

	// Same signature over a tampered body must fail.
	rec = postWebhook(s, "/plugin/deploy-bot", "10.1.2.3", `{"ref":"evil"}`, header)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("tampered body: status = %d, want 401", rec.Code)
	}
}

func TestGateway_UpstreamDown(t *testing.T) {
	pol, err := policy.Compile("flaky", "", "http://127.0.0.1:1/webhook", "none", "", nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	table := NewRouteTable()
	table.Upsert(pol)
	s := newTestServer(t, table)

	rec := postWebhook(s, "/plugin/flaky", "10.1.2.3", "{}", nil)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}

	// The destination must not appear in the caller-visible error.
	raw, _ := io.ReadAll(rec.Body)
	if bytes.Contains(raw, []byte("127.0.0.1:1")) {
		t.Errorf("response leaks destination: %s", raw)
	}
}

func TestGateway_DeleteTakesEffect(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer upstream.Close()

	pol, err := policy.Compile("bot", "", upstream.URL, "none", "", nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	table := NewRouteTable()
	table.Upsert(pol)
	s := newTestServer(t, table)

	if rec := postWebhook(s, "/plugin/bot", "10.1.2.3", "{}", nil); rec.Code != http.StatusOK {
		t.Fatalf("pre-delete status = %d, want 200", rec.Code)
	}

	table.Remove("bot")

	if rec := postWebhook(s, "/plugin/bot", "10.1.2.3", "{}", nil); rec.Code != http.StatusNotFound {
		t.Errorf("post-delete status = %d, want 404", rec.Code)
	}
}

func TestGateway_BodyTooLarge(t *testing.T) {
	pol, err := policy.Compile("bot", "", "http://bot:5000/webhook", "none", "", nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	table := NewRouteTable()
	table.Upsert(pol)

	s, err := New(Config{Listen: "127.0.0.1:0", ForwardTimeout: time.Second, MaxBodyBytes: 64}, table, nil, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rec := postWebhook(s, "/plugin/bot", "10.1.2.3", strings.Repeat("a", 128), nil)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestGateway_ForwardPublishesDeliveryEvent(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer upstream.Close()

	pol, err := policy.Compile("alerts-bot", "", upstream.URL, "none", "", nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	table := NewRouteTable()
	table.Upsert(pol)

	hub := events.NewHub(8)
	ch, cancel := hub.Subscribe()
	defer cancel()

	s, err := New(Config{
		Listen:         "127.0.0.1:0",
		ForwardTimeout: 2 * time.Second,
		MaxBodyBytes:   1 << 20,
	}, table, hub, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if rec := postWebhook(s, "/plugin/alerts-bot", "10.1.2.3", "{}", nil); rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}

	select {
	case ev := <-ch:
		if ev.Kind != events.KindDelivery {
			t.Fatalf("event kind = %q, want %q", ev.Kind, events.KindDelivery)
		}
		var payload struct {
			Plugin         string `json:"plugin"`
			DeliveryID     string `json:"delivery_id"`
			UpstreamStatus int    `json:"upstream_status"`
		}
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			t.Fatalf("payload: %v", err)
		}
		if payload.Plugin != "alerts-bot" {
			t.Errorf("payload plugin = %q, want alerts-bot", payload.Plugin)
		}
		if payload.DeliveryID == "" {
			t.Error("payload missing delivery_id")
		}
		if payload.UpstreamStatus != http.StatusAccepted {
			t.Errorf("payload upstream_status = %d, want 202", payload.UpstreamStatus)
		}
	case <-time.After(time.Second):
		t.Fatal("no delivery event published")
	}
}

func TestGateway_MethodRestrictedToPost(t *testing.T) {
	s := newTestServer(t, NewRouteTable())

	req := httptest.NewRequest("GET", "/plugin/bot", nil)
	rec := httptest.NewRecorder()
	s.setupRoutes().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}
