package handler

import (
	"net/http"

	"github.com/ucpify/ucpify/internal/merchant"
	"github.com/ucpify/ucpify/internal/oauth"
)

// ucpProfile serves the discovery document agents fetch before opening a
// checkout session: merchant identity, the REST endpoint, declared payment
// handlers, and where to find the authorization server metadata.
func (h *Handler) ucpProfile(w http.ResponseWriter, _ *http.Request) {
	m := h.merchant

	handlers := make([]map[string]any, 0, len(m.PaymentHandlers))
	for _, ph := range m.PaymentHandlers {
		entry := map[string]any{
			"namespace": ph.Namespace,
			"id":        ph.ID,
		}
		if len(ph.Config) > 0 {
			entry["config"] = publicHandlerConfig(ph)
		}
		handlers = append(handlers, entry)
	}

	profile := map[string]any{
		"version": "2026-01-11",
		"merchant": map[string]any{
			"name":        m.Name,
			"domain":      m.Domain,
			"currency":    m.Currency,
			"terms_url":   m.TermsURL,
			"privacy_url": m.PrivacyURL,
		},
		"services": map[string]any{
			"checkout_sessions": map[string]any{
				"endpoint": m.Domain + "/ucp/v1/checkout-sessions",
				"version":  "v1",
			},
		},
		"payment_handlers": handlers,
	}
	if m.OAuth != nil {
		profile["authorization"] = map[string]any{
			"metadata_endpoint": m.Domain + "/.well-known/oauth-authorization-server",
		}
	}

	respondJSON(w, http.StatusOK, profile)
}

// publicHandlerConfig strips secret-bearing keys before exposing a payment
// handler config in the profile.
func publicHandlerConfig(ph merchant.PaymentHandler) map[string]string {
	out := make(map[string]string, len(ph.Config))
	for k, v := range ph.Config {
		switch k {
		case "secret_key", "client_secret", "webhook_secret":
			continue
		}
		out[k] = v
	}
	return out
}

// oauthMetadata serves the RFC 8414 document: built from the merchant domain
// for the built-in provider, or passed through from the external provider
// block.
func (h *Handler) oauthMetadata(w http.ResponseWriter, _ *http.Request) {
	cfg := h.merchant.OAuth
	if cfg == nil {
		respondError(w, http.StatusNotFound, "not_found", "no oauth provider configured")
		return
	}

	if cfg.Provider == merchant.OAuthExternal {
		respondJSON(w, http.StatusOK, &oauth.Metadata{
			Issuer:                        cfg.Issuer,
			AuthorizationEndpoint:         cfg.AuthorizationEndpoint,
			TokenEndpoint:                 cfg.TokenEndpoint,
			RevocationEndpoint:            cfg.RevocationEndpoint,
			JWKSURI:                       cfg.JWKSURI,
			ScopesSupported:               []string{oauth.ScopeCheckoutSession},
			ResponseTypesSupported:        []string{"code"},
			GrantTypesSupported:           []string{"authorization_code", "refresh_token"},
			TokenEndpointAuthMethods:      []string{"client_secret_basic"},
			CodeChallengeMethodsSupported: []string{oauth.MethodS256},
		})
		return
	}

	respondJSON(w, http.StatusOK, oauth.ServerMetadata(h.merchant.Domain))
}
