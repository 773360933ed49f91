package oauth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/ucpify/ucpify/internal/ids"
	"github.com/ucpify/ucpify/pkg/keylock"
)

// RegisteredClient is the registration response: the stored client plus the
// plaintext secret, computed exactly once.
type RegisteredClient struct {
	Client *Client
	Secret string
}

// Service is the authorization server core. Per-key locks serialize exchange
// of the same code and refresh/revocation of the same token, guaranteeing
// single-use semantics under concurrent double-submission.
type Service struct {
	clients ClientRepository
	codes   CodeRepository
	tokens  TokenRepository

	locks *keylock.KeyLock
	now   func() time.Time
}

// NewService creates the OAuth service over the given stores.
func NewService(clients ClientRepository, codes CodeRepository, tokens TokenRepository) *Service {
	return &Service{
		clients: clients,
		codes:   codes,
		tokens:  tokens,
		locks:   keylock.New(),
		now:     time.Now,
	}
}

// RegisterClient generates credentials for a new client application and
// stores the secret hash. The plaintext secret is returned once and never
// recomputed.
func (s *Service) RegisterClient(ctx context.Context, name string, redirectURIs []string) (*RegisteredClient, error) {
	secret := ids.ClientSecret + ids.Token(24)
	c := &Client{
		ID:           ids.Client + ids.Token(16),
		SecretHash:   hashSecret(secret),
		Name:         name,
		RedirectURIs: redirectURIs,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.clients.Create(ctx, c); err != nil {
		return nil, errors.Wrap(err, "store client")
	}

	zctx.From(ctx).Info("oauth client registered",
		zap.String("client_id", c.ID),
		zap.String("name", name),
	)
	return &RegisteredClient{Client: c, Secret: secret}, nil
}

// GetClient returns the stored client or ErrClientNotFound.
func (s *Service) GetClient(ctx context.Context, id string) (*Client, error) {
	return s.clients.Get(ctx, id)
}

// AuthenticateClient verifies a client secret against the stored hash using a
// constant-time comparison.
func (s *Service) AuthenticateClient(ctx context.Context, id, secret string) bool {
	c, err := s.clients.Get(ctx, id)
	if err != nil {
		return false
	}
	stored, err := hex.DecodeString(c.SecretHash)
	if err != nil {
		return false
	}
	computed := sha256.Sum256([]byte(secret))
	return subtle.ConstantTimeCompare(computed[:], stored) == 1
}

// IssueAuthorizationCode mints a single-use code bound to the given client,
// user, scope, redirect URI, and optional PKCE challenge.
func (s *Service) IssueAuthorizationCode(
	ctx context.Context,
	clientID, userID, scope, redirectURI string,
	codeChallenge, codeChallengeMethod string,
) (string, error) {
	now := s.now().UTC()
	code := &AuthorizationCode{
		Code:                ids.Token(32),
		ClientID:            clientID,
		UserID:              userID,
		Scope:               scope,
		RedirectURI:         redirectURI,
		CodeChallenge:       codeChallenge,
		CodeChallengeMethod: codeChallengeMethod,
		ExpiresAt:           now.Add(AuthCodeTTL),
		CreatedAt:           now,
	}
	if err := s.codes.Create(ctx, code); err != nil {
		return "", errors.Wrap(err, "store code")
	}

	zctx.From(ctx).Info("authorization code issued",
		zap.String("client_id", clientID),
		zap.String("user_id", userID),
		zap.String("scope", scope),
	)
	return code.Code, nil
}

// ExchangeCode consumes an authorization code and mints an access/refresh
// token pair carrying the code's original scope. Every validation failure is
// the uniform ErrInvalidGrant; the caller never learns which check failed.
func (s *Service) ExchangeCode(ctx context.Context, code, clientID, redirectURI, codeVerifier string) (*TokenPair, error) {
	unlock := s.locks.Lock(code)
	defer unlock()

	ac, err := s.codes.Get(ctx, code)
	if err != nil {
		return nil, ErrInvalidGrant
	}
	if ac.Used {
		return nil, ErrInvalidGrant
	}
	if ac.ClientID != clientID {
		return nil, ErrInvalidGrant
	}
	if ac.RedirectURI != redirectURI {
		return nil, ErrInvalidGrant
	}
	if ac.ExpiresAt.Before(s.now()) {
		return nil, ErrInvalidGrant
	}
	if ac.CodeChallenge != "" {
		if !verifyPKCE(ac.CodeChallenge, ac.CodeChallengeMethod, codeVerifier) {
			return nil, ErrInvalidGrant
		}
	}

	// Permanently consumed, even if resubmitted before natural expiry. When
	// another process already won the consume, the caller gets the same
	// uniform error as any other failed check.
	if err := s.codes.MarkUsed(ctx, code); err != nil {
		if errors.Is(err, ErrInvalidGrant) {
			return nil, ErrInvalidGrant
		}
		return nil, errors.Wrap(err, "mark code used")
	}

	access, err := s.mintToken(ctx, TokenAccess, clientID, ac.UserID, ac.Scope)
	if err != nil {
		return nil, err
	}
	refresh, err := s.mintToken(ctx, TokenRefresh, clientID, ac.UserID, ac.Scope)
	if err != nil {
		return nil, err
	}

	zctx.From(ctx).Info("authorization code exchanged",
		zap.String("client_id", clientID),
		zap.String("user_id", ac.UserID),
	)
	return &TokenPair{
		AccessToken:  access.Token,
		RefreshToken: refresh.Token,
		TokenType:    "Bearer",
		ExpiresIn:    int64(AccessTokenTTL.Seconds()),
		Scope:        ac.Scope,
	}, nil
}

// RefreshAccessToken mints a new access token from a refresh token. Refresh
// tokens are non-rotating: the same token remains valid until revoked or
// expired.
func (s *Service) RefreshAccessToken(ctx context.Context, refreshToken, clientID string) (*TokenPair, error) {
	unlock := s.locks.Lock(refreshToken)
	defer unlock()

	rt, err := s.tokens.Get(ctx, refreshToken)
	if err != nil || rt.Type != TokenRefresh {
		return nil, ErrInvalidGrant
	}
	if rt.Revoked {
		return nil, ErrInvalidGrant
	}
	if rt.ClientID != clientID {
		return nil, ErrInvalidGrant
	}
	if rt.ExpiresAt.Before(s.now()) {
		return nil, ErrInvalidGrant
	}

	access, err := s.mintToken(ctx, TokenAccess, clientID, rt.UserID, rt.Scope)
	if err != nil {
		return nil, err
	}

	zctx.From(ctx).Info("access token refreshed",
		zap.String("client_id", clientID),
		zap.String("user_id", rt.UserID),
	)
	return &TokenPair{
		AccessToken: access.Token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(AccessTokenTTL.Seconds()),
		Scope:       rt.Scope,
	}, nil
}

// ValidateAccessToken returns the token's claims when it exists, is an access
// token, is not revoked, and is not expired.
func (s *Service) ValidateAccessToken(ctx context.Context, token string) (*Claims, error) {
	t, err := s.tokens.Get(ctx, token)
	if err != nil || t.Type != TokenAccess {
		return nil, ErrInvalidGrant
	}
	if t.Revoked || t.ExpiresAt.Before(s.now()) {
		return nil, ErrInvalidGrant
	}
	return &Claims{ClientID: t.ClientID, UserID: t.UserID, Scope: t.Scope}, nil
}

// RevokeToken revokes a known access or refresh token, returning whether the
// token matched either store. Revoking a refresh token cascades: every active
// access token sharing its (client, user) pair is swept, including tokens
// minted from a sibling refresh token for the same pair.
func (s *Service) RevokeToken(ctx context.Context, token string) (bool, error) {
	unlock := s.locks.Lock(token)
	defer unlock()

	t, err := s.tokens.Get(ctx, token)
	if err != nil {
		return false, nil
	}

	if err := s.tokens.Revoke(ctx, token); err != nil {
		return false, errors.Wrap(err, "revoke token")
	}

	lg := zctx.From(ctx)
	if t.Type == TokenRefresh {
		swept, err := s.tokens.RevokeAccessTokensFor(ctx, t.ClientID, t.UserID)
		if err != nil {
			return false, errors.Wrap(err, "cascade revocation")
		}
		lg.Info("refresh token revoked",
			zap.String("client_id", t.ClientID),
			zap.String("user_id", t.UserID),
			zap.Int("access_tokens_swept", swept),
		)
		return true, nil
	}

	lg.Info("access token revoked", zap.String("client_id", t.ClientID))
	return true, nil
}

// ServerMetadata builds the RFC 8414 discovery document for the built-in
// provider rooted at domain.
func ServerMetadata(domain string) *Metadata {
	return &Metadata{
		Issuer:                        domain,
		AuthorizationEndpoint:         domain + "/oauth2/authorize",
		TokenEndpoint:                 domain + "/oauth2/token",
		RevocationEndpoint:            domain + "/oauth2/revoke",
		ScopesSupported:               []string{ScopeCheckoutSession},
		ResponseTypesSupported:        []string{"code"},
		GrantTypesSupported:           []string{"authorization_code", "refresh_token"},
		TokenEndpointAuthMethods:      []string{"client_secret_basic"},
		CodeChallengeMethodsSupported: []string{MethodS256},
	}
}

func (s *Service) mintToken(ctx context.Context, kind, clientID, userID, scope string) (*Token, error) {
	now := s.now().UTC()
	ttl := AccessTokenTTL
	if kind == TokenRefresh {
		ttl = RefreshTokenTTL
	}
	t := &Token{
		Token:     ids.Token(32),
		Type:      kind,
		ClientID:  clientID,
		UserID:    userID,
		Scope:     scope,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := s.tokens.Create(ctx, t); err != nil {
		return nil, errors.Wrap(err, "store token")
	}
	return t, nil
}

// verifyPKCE compares the stored challenge against the supplied verifier.
// S256 hashes the verifier (SHA-256, base64url, no padding); plain compares
// directly. A missing verifier always fails.
func verifyPKCE(challenge, method, verifier string) bool {
	if verifier == "" {
		return false
	}
	var computed string
	switch method {
	case MethodPlain:
		computed = verifier
	default: // S256 is the default when the method is absent
		digest := sha256.Sum256([]byte(verifier))
		computed = base64.RawURLEncoding.EncodeToString(digest[:])
	}
	return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1
}

func hashSecret(secret string) string {
	digest := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(digest[:])
}
