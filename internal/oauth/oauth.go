// Package oauth implements the built-in OAuth 2.0 authorization server:
// client registration, authorization-code issuance with PKCE, token issuance
// and refresh, and cascading revocation.
//
// Implements the relevant parts of RFC 6749 (authorization code flow),
// RFC 7636 (PKCE), RFC 7009 (revocation), and RFC 8414 (server metadata).
package oauth

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Token and code lifetimes.
const (
	AccessTokenTTL  = time.Hour
	RefreshTokenTTL = 30 * 24 * time.Hour
	AuthCodeTTL     = 10 * time.Minute
)

// ScopeCheckoutSession is the only scope the server grants.
const ScopeCheckoutSession = "ucp:scopes:checkout_session"

// Token kinds.
const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"
)

// PKCE challenge methods.
const (
	MethodS256  = "S256"
	MethodPlain = "plain"
)

var (
	// ErrInvalidGrant is the uniform failure for every code or token
	// validation error. Deliberately non-specific: callers must not learn
	// which check failed.
	ErrInvalidGrant = errors.New("invalid_grant")
	// ErrClientNotFound is returned when a client ID is unknown.
	ErrClientNotFound = errors.New("oauth client not found")
)

// Client is a registered application. Only the SHA-256 hash of the secret is
// stored; the plaintext exists exactly once, in the registration response.
type Client struct {
	ID           string    `json:"client_id"`
	SecretHash   string    `json:"-"`
	Name         string    `json:"name"`
	RedirectURIs []string  `json:"redirect_uris"`
	CreatedAt    time.Time `json:"created_at"`
}

// AllowsRedirect reports whether uri is whitelisted for the client.
func (c *Client) AllowsRedirect(uri string) bool {
	for _, u := range c.RedirectURIs {
		if u == uri {
			return true
		}
	}
	return false
}

// AuthorizationCode is a single-use grant bound to a client, user, scope,
// redirect URI, and optional PKCE challenge. Once used it is permanently
// invalid, even before its natural expiry.
type AuthorizationCode struct {
	Code                string
	ClientID            string
	UserID              string
	Scope               string
	RedirectURI         string
	CodeChallenge       string
	CodeChallengeMethod string
	ExpiresAt           time.Time
	Used                bool
	CreatedAt           time.Time
}

// Token is an opaque access or refresh credential.
type Token struct {
	Token     string
	Type      string
	ClientID  string
	UserID    string
	Scope     string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// Claims are the validated facts about an access token, consumed by the
// endpoint-protection layer.
type Claims struct {
	ClientID string
	UserID   string
	Scope    string
}

// TokenPair is the token endpoint's successful response payload.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
}

// Metadata is the RFC 8414 authorization server metadata document.
type Metadata struct {
	Issuer                        string   `json:"issuer"`
	AuthorizationEndpoint         string   `json:"authorization_endpoint"`
	TokenEndpoint                 string   `json:"token_endpoint"`
	RevocationEndpoint            string   `json:"revocation_endpoint"`
	JWKSURI                       string   `json:"jwks_uri,omitempty"`
	ScopesSupported               []string `json:"scopes_supported"`
	ResponseTypesSupported        []string `json:"response_types_supported"`
	GrantTypesSupported           []string `json:"grant_types_supported"`
	TokenEndpointAuthMethods      []string `json:"token_endpoint_auth_methods_supported"`
	CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported"`
}

// ClientRepository persists registered clients.
type ClientRepository interface {
	Create(ctx context.Context, c *Client) error
	Get(ctx context.Context, id string) (*Client, error)
}

// CodeRepository persists authorization codes, addressed by code value.
type CodeRepository interface {
	Create(ctx context.Context, c *AuthorizationCode) error
	Get(ctx context.Context, code string) (*AuthorizationCode, error)
	// MarkUsed consumes an unused code. It returns ErrInvalidGrant when the
	// code is unknown or already consumed, making the consume atomic.
	MarkUsed(ctx context.Context, code string) error
}

// TokenRepository persists access and refresh tokens, addressed by token
// value.
type TokenRepository interface {
	Create(ctx context.Context, t *Token) error
	Get(ctx context.Context, token string) (*Token, error)
	Revoke(ctx context.Context, token string) error
	// RevokeAccessTokensFor marks revoked every active access token for the
	// (clientID, userID) pair, observing a consistent snapshot, and returns
	// how many were swept.
	RevokeAccessTokensFor(ctx context.Context, clientID, userID string) (int, error)
}
