package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// requireBearer protects the /ucp/v1 subtree. With the built-in provider
// enabled, every request must carry a valid, unrevoked, unexpired access
// token with the checkout-session scope. Without it the subtree is open; an
// external provider is expected to terminate auth in front of the server.
func (h *Handler) requireBearer(next http.Handler) http.Handler {
	if h.oauth == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="ucp"`)
			respondError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}

		claims, err := h.oauth.ValidateAccessToken(r.Context(), token)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			respondError(w, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
			return
		}
		if !hasScope(claims.Scope, "ucp:scopes:checkout_session") {
			respondError(w, http.StatusForbidden, "insufficient_scope", "token lacks required scope")
			return
		}

		ctx := zctx.With(r.Context(),
			zap.String("oauth_client_id", claims.ClientID),
			zap.String("oauth_user_id", claims.UserID),
		)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return "", false
	}
	return auth[len(prefix):], true
}

func hasScope(granted, want string) bool {
	for _, s := range strings.Fields(granted) {
		if s == want {
			return true
		}
	}
	return false
}
