//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"
)

func TestProtectedAPI_RequiresBearer(t *testing.T) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, baseURL+"/ucp/v1/items", nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
	if www := resp.Header.Get("WWW-Authenticate"); www == "" {
		t.Error("WWW-Authenticate header not present")
	}
}

func TestOAuth_ServerMetadata(t *testing.T) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet,
		baseURL+"/.well-known/oauth-authorization-server", nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	meta := decodeJSON[struct {
		Issuer                string   `json:"issuer"`
		TokenEndpoint         string   `json:"token_endpoint"`
		AuthorizationEndpoint string   `json:"authorization_endpoint"`
		GrantTypes            []string `json:"grant_types_supported"`
	}](t, resp)
	if meta.Issuer == "" || meta.TokenEndpoint == "" || meta.AuthorizationEndpoint == "" {
		t.Fatalf("incomplete metadata: %+v", meta)
	}
}

func TestOAuth_RefreshGrant(t *testing.T) {
	_, refresh, err := mintTokenPair()
	if err != nil {
		t.Fatalf("mint pair: %v", err)
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refresh},
		"client_id":     {clientID},
		"client_secret": {clientSecret},
	}
	resp, err := httpClient.PostForm(baseURL+"/oauth2/token", form)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d", resp.StatusCode)
	}
	pair := decodeJSON[tokenResponse](t, resp)
	if pair.AccessToken == "" {
		t.Fatal("refresh: empty access token")
	}
	if pair.RefreshToken != refresh {
		t.Error("refresh: token was rotated")
	}
}

func TestOAuth_CodeIsSingleUse(t *testing.T) {
	form := url.Values{
		"action":       {"allow"},
		"client_id":    {clientID},
		"redirect_uri": {"https://agent.example.com/callback"},
		"user_id":      {"integration_user"},
	}
	resp, err := httpClient.PostForm(baseURL+"/oauth2/authorize", form)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	loc, _ := url.Parse(resp.Header.Get("Location"))
	resp.Body.Close()
	code := loc.Query().Get("code")
	if code == "" {
		t.Fatalf("no code in redirect %q", loc)
	}

	exchange := func() *http.Response {
		resp, err := httpClient.PostForm(baseURL+"/oauth2/token", url.Values{
			"grant_type":    {"authorization_code"},
			"code":          {code},
			"redirect_uri":  {"https://agent.example.com/callback"},
			"client_id":     {clientID},
			"client_secret": {clientSecret},
		})
		if err != nil {
			t.Fatalf("token: %v", err)
		}
		return resp
	}

	resp = exchange()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first exchange: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = exchange()
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("replayed exchange: expected 400, got %d", resp.StatusCode)
	}
	body := decodeJSON[tokenResponse](t, resp)
	if body.Error != "invalid_grant" {
		t.Errorf("replayed exchange: error %q, want invalid_grant", body.Error)
	}
}

func TestOAuth_RevokedTokenIsRejected(t *testing.T) {
	access, _, err := mintTokenPair()
	if err != nil {
		t.Fatalf("mint pair: %v", err)
	}

	resp, err := httpClient.PostForm(baseURL+"/oauth2/revoke", url.Values{
		"token":         {access},
		"client_id":     {clientID},
		"client_secret": {clientSecret},
	})
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("revoke: expected 200, got %d", resp.StatusCode)
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, baseURL+"/ucp/v1/items", nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+access)

	resp, err = httpClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with revoked token, got %d", resp.StatusCode)
	}
}

func TestWellKnown_UCPProfile(t *testing.T) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, baseURL+"/.well-known/ucp", nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var profile map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	for _, key := range []string{"version", "services", "payment_handlers"} {
		if _, ok := profile[key]; !ok {
			t.Errorf("profile missing %q", key)
		}
	}
}
