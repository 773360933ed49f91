package handler

import (
	"html/template"
	"net/http"
	"net/url"

	"github.com/go-faster/errors"

	"github.com/ucpify/ucpify/internal/oauth"
)

// oauthError is the RFC 6749 error envelope for token-endpoint failures.
type oauthError struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func respondOAuthError(w http.ResponseWriter, status int, code, description string) {
	respondJSON(w, status, oauthError{Error: code, Description: description})
}

var consentTemplate = template.Must(template.New("consent").Parse(`<!DOCTYPE html>
<html>
<head><title>Authorize {{.ClientName}}</title></head>
<body>
<h1>{{.MerchantName}}</h1>
<p><strong>{{.ClientName}}</strong> is requesting access to your checkout sessions.</p>
<p>Scope: <code>{{.Scope}}</code></p>
<form method="POST" action="/oauth2/authorize">
  <input type="hidden" name="client_id" value="{{.ClientID}}">
  <input type="hidden" name="redirect_uri" value="{{.RedirectURI}}">
  <input type="hidden" name="scope" value="{{.Scope}}">
  <input type="hidden" name="state" value="{{.State}}">
  <input type="hidden" name="code_challenge" value="{{.CodeChallenge}}">
  <input type="hidden" name="code_challenge_method" value="{{.CodeChallengeMethod}}">
  <label>Your account ID: <input type="text" name="user_id" required></label>
  <button type="submit" name="action" value="allow">Allow</button>
  <button type="submit" name="action" value="deny">Deny</button>
</form>
</body>
</html>
`))

type consentData struct {
	MerchantName        string
	ClientName          string
	ClientID            string
	RedirectURI         string
	Scope               string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// authorizePage validates the authorization request and renders the consent
// form. Client and redirect URI errors are shown to the user, never
// redirected: redirecting errors to an unvalidated URI is an open redirect.
func (h *Handler) authorizePage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	client, errCode := h.checkAuthorizeRequest(r, q.Get("client_id"), q.Get("redirect_uri"))
	if errCode != "" {
		http.Error(w, errCode, http.StatusBadRequest)
		return
	}
	if rt := q.Get("response_type"); rt != "code" {
		h.redirectAuthorizeError(w, r, q.Get("redirect_uri"), q.Get("state"), "unsupported_response_type")
		return
	}

	scope := q.Get("scope")
	if scope == "" {
		scope = oauth.ScopeCheckoutSession
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = consentTemplate.Execute(w, consentData{
		MerchantName:        h.merchant.Name,
		ClientName:          client.Name,
		ClientID:            client.ID,
		RedirectURI:         q.Get("redirect_uri"),
		Scope:               scope,
		State:               q.Get("state"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
	})
}

// authorizeDecision handles the consent form submission: deny redirects with
// access_denied, allow issues a single-use code bound to the submitted user.
func (h *Handler) authorizeDecision(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid_request", http.StatusBadRequest)
		return
	}

	redirectURI := r.PostFormValue("redirect_uri")
	state := r.PostFormValue("state")

	client, errCode := h.checkAuthorizeRequest(r, r.PostFormValue("client_id"), redirectURI)
	if errCode != "" {
		http.Error(w, errCode, http.StatusBadRequest)
		return
	}

	if r.PostFormValue("action") != "allow" {
		h.redirectAuthorizeError(w, r, redirectURI, state, "access_denied")
		return
	}

	userID := r.PostFormValue("user_id")
	if userID == "" {
		h.redirectAuthorizeError(w, r, redirectURI, state, "invalid_request")
		return
	}

	scope := r.PostFormValue("scope")
	if scope == "" {
		scope = oauth.ScopeCheckoutSession
	}

	code, err := h.oauth.IssueAuthorizationCode(r.Context(),
		client.ID, userID, scope, redirectURI,
		r.PostFormValue("code_challenge"), r.PostFormValue("code_challenge_method"),
	)
	if err != nil {
		logError(r, "issue authorization code failed", err)
		h.redirectAuthorizeError(w, r, redirectURI, state, "server_error")
		return
	}

	u, _ := url.Parse(redirectURI)
	q := u.Query()
	q.Set("code", code)
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	http.Redirect(w, r, u.String(), http.StatusFound)
}

// checkAuthorizeRequest resolves the client and verifies the redirect URI is
// whitelisted. It returns an error code suitable for direct display.
func (h *Handler) checkAuthorizeRequest(r *http.Request, clientID, redirectURI string) (*oauth.Client, string) {
	if clientID == "" || redirectURI == "" {
		return nil, "invalid_request"
	}
	client, err := h.oauth.GetClient(r.Context(), clientID)
	if err != nil {
		return nil, "invalid_client"
	}
	if !client.AllowsRedirect(redirectURI) {
		return nil, "invalid_redirect_uri"
	}
	return client, ""
}

func (h *Handler) redirectAuthorizeError(w http.ResponseWriter, r *http.Request, redirectURI, state, code string) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		http.Error(w, code, http.StatusBadRequest)
		return
	}
	q := u.Query()
	q.Set("error", code)
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	http.Redirect(w, r, u.String(), http.StatusFound)
}

// token implements the token endpoint: authorization_code and refresh_token
// grants, client authentication via HTTP Basic or form fields.
func (h *Handler) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondOAuthError(w, http.StatusBadRequest, "invalid_request", "malformed form body")
		return
	}

	clientID, ok := h.authenticateTokenClient(r)
	if !ok {
		w.Header().Set("WWW-Authenticate", `Basic realm="oauth2"`)
		respondOAuthError(w, http.StatusUnauthorized, "invalid_client", "client authentication failed")
		return
	}

	var (
		pair *oauth.TokenPair
		err  error
	)
	switch grant := r.PostFormValue("grant_type"); grant {
	case "authorization_code":
		pair, err = h.oauth.ExchangeCode(r.Context(),
			r.PostFormValue("code"), clientID,
			r.PostFormValue("redirect_uri"), r.PostFormValue("code_verifier"),
		)
	case "refresh_token":
		pair, err = h.oauth.RefreshAccessToken(r.Context(), r.PostFormValue("refresh_token"), clientID)
	default:
		respondOAuthError(w, http.StatusBadRequest, "unsupported_grant_type", "grant_type must be authorization_code or refresh_token")
		return
	}

	if err != nil {
		if errors.Is(err, oauth.ErrInvalidGrant) {
			respondOAuthError(w, http.StatusBadRequest, "invalid_grant", "")
			return
		}
		logError(r, "token grant failed", err)
		respondOAuthError(w, http.StatusInternalServerError, "server_error", "")
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	respondJSON(w, http.StatusOK, pair)
}

// revoke implements RFC 7009: authenticated clients always get 200, whether
// or not the token was known.
func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondOAuthError(w, http.StatusBadRequest, "invalid_request", "malformed form body")
		return
	}

	if _, ok := h.authenticateTokenClient(r); !ok {
		w.Header().Set("WWW-Authenticate", `Basic realm="oauth2"`)
		respondOAuthError(w, http.StatusUnauthorized, "invalid_client", "client authentication failed")
		return
	}

	token := r.PostFormValue("token")
	if token != "" {
		if _, err := h.oauth.RevokeToken(r.Context(), token); err != nil {
			logError(r, "revoke failed", err)
			respondOAuthError(w, http.StatusInternalServerError, "server_error", "")
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}

// authenticateTokenClient extracts client credentials from HTTP Basic auth or
// the form body and verifies them.
func (h *Handler) authenticateTokenClient(r *http.Request) (string, bool) {
	clientID, secret, ok := r.BasicAuth()
	if !ok {
		clientID = r.PostFormValue("client_id")
		secret = r.PostFormValue("client_secret")
	}
	if clientID == "" || secret == "" {
		return "", false
	}
	if !h.oauth.AuthenticateClient(r.Context(), clientID, secret) {
		return "", false
	}
	return clientID, true
}
