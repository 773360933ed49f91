//go:build integration

package integration

import (
	"context"
	"net/http"
	"strings"
	"testing"
)

func doWithHeaders(t *testing.T, method, path string, headers map[string]string) *http.Response {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), method, baseURL+path, nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func TestRequestID_Generated(t *testing.T) {
	resp := doGet(t, "/livez")
	defer resp.Body.Close()

	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("X-Request-ID header not present")
	}
}

func TestRequestID_Echoed(t *testing.T) {
	const id = "agent-trace-7b9f2c"
	resp := doWithHeaders(t, http.MethodGet, "/livez", map[string]string{"X-Request-ID": id})
	defer resp.Body.Close()

	if got := resp.Header.Get("X-Request-ID"); got != id {
		t.Errorf("X-Request-ID: got %q, want %q", got, id)
	}
}

func TestCORS_PreflightAllowsBearerAuth(t *testing.T) {
	// Browser-based agents send the bearer token cross-origin, so the
	// preflight must clear the Authorization header for the API subtree.
	resp := doWithHeaders(t, http.MethodOptions, "/ucp/v1/checkout-sessions", map[string]string{
		"Origin":                         "https://agent.example.com",
		"Access-Control-Request-Method":  "POST",
		"Access-Control-Request-Headers": "Authorization, Content-Type",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") == "" {
		t.Error("Access-Control-Allow-Origin header not present")
	}

	allowHeaders := resp.Header.Get("Access-Control-Allow-Headers")
	if !strings.Contains(strings.ToLower(allowHeaders), "authorization") {
		t.Errorf("Access-Control-Allow-Headers %q does not clear Authorization", allowHeaders)
	}
	allowMethods := resp.Header.Get("Access-Control-Allow-Methods")
	if !strings.Contains(allowMethods, "POST") {
		t.Errorf("Access-Control-Allow-Methods %q does not include POST", allowMethods)
	}
}

func TestCORS_DiscoveryIsReadableCrossOrigin(t *testing.T) {
	resp := doWithHeaders(t, http.MethodGet, "/.well-known/ucp", map[string]string{
		"Origin": "https://agent.example.com",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") == "" {
		t.Error("Access-Control-Allow-Origin header not present")
	}
}

func TestRateLimit_HeadersOnAPIResponses(t *testing.T) {
	resp := doGet(t, "/ucp/v1/items")
	defer resp.Body.Close()

	for _, h := range []string{"X-RateLimit-Limit", "X-RateLimit-Remaining"} {
		if resp.Header.Get(h) == "" {
			t.Errorf("%s header not present", h)
		}
	}
}
