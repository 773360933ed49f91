package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ucpify/ucpify/internal/oauth"
)

const (
	insertClientSQL = `INSERT INTO oauth_clients (id, secret_hash, name, redirect_uris, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	getClientSQL = `SELECT id, secret_hash, name, redirect_uris, created_at
		FROM oauth_clients WHERE id = $1`

	insertCodeSQL = `INSERT INTO oauth_codes
		(code, client_id, user_id, scope, redirect_uri, code_challenge, code_challenge_method, expires_at, used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	getCodeSQL = `SELECT code, client_id, user_id, scope, redirect_uri, code_challenge, code_challenge_method, expires_at, used, created_at
		FROM oauth_codes WHERE code = $1`

	markCodeUsedSQL = `UPDATE oauth_codes SET used = TRUE WHERE code = $1 AND NOT used`

	insertTokenSQL = `INSERT INTO oauth_tokens (token, type, client_id, user_id, scope, expires_at, revoked, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	getTokenSQL = `SELECT token, type, client_id, user_id, scope, expires_at, revoked, created_at
		FROM oauth_tokens WHERE token = $1`

	revokeTokenSQL = `UPDATE oauth_tokens SET revoked = TRUE WHERE token = $1`

	revokeOwnerAccessSQL = `UPDATE oauth_tokens SET revoked = TRUE
		WHERE client_id = $1 AND user_id = $2 AND type = $3 AND NOT revoked`
)

var (
	_ oauth.ClientRepository = (*ClientRepository)(nil)
	_ oauth.CodeRepository   = (*CodeRepository)(nil)
	_ oauth.TokenRepository  = (*TokenRepository)(nil)
)

// ClientRepository implements oauth.ClientRepository backed by PostgreSQL.
type ClientRepository struct {
	pool *pgxpool.Pool
}

// NewClientRepository returns a ClientRepository that uses the given pool.
func NewClientRepository(pool *pgxpool.Pool) *ClientRepository {
	return &ClientRepository{pool: pool}
}

func (r *ClientRepository) Create(ctx context.Context, c *oauth.Client) error {
	_, err := r.pool.Exec(ctx, insertClientSQL,
		c.ID, c.SecretHash, c.Name, c.RedirectURIs, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating client %q: %w", c.ID, err)
	}
	return nil
}

func (r *ClientRepository) Get(ctx context.Context, id string) (*oauth.Client, error) {
	var c oauth.Client
	err := r.pool.QueryRow(ctx, getClientSQL, id).Scan(
		&c.ID, &c.SecretHash, &c.Name, &c.RedirectURIs, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, oauth.ErrClientNotFound
		}
		return nil, fmt.Errorf("getting client %q: %w", id, err)
	}
	return &c, nil
}

// CodeRepository implements oauth.CodeRepository backed by PostgreSQL.
type CodeRepository struct {
	pool *pgxpool.Pool
}

// NewCodeRepository returns a CodeRepository that uses the given pool.
func NewCodeRepository(pool *pgxpool.Pool) *CodeRepository {
	return &CodeRepository{pool: pool}
}

func (r *CodeRepository) Create(ctx context.Context, c *oauth.AuthorizationCode) error {
	_, err := r.pool.Exec(ctx, insertCodeSQL,
		c.Code, c.ClientID, c.UserID, c.Scope, c.RedirectURI,
		c.CodeChallenge, c.CodeChallengeMethod, c.ExpiresAt, c.Used, c.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "creating authorization code")
	}
	return nil
}

func (r *CodeRepository) Get(ctx context.Context, code string) (*oauth.AuthorizationCode, error) {
	var c oauth.AuthorizationCode
	err := r.pool.QueryRow(ctx, getCodeSQL, code).Scan(
		&c.Code, &c.ClientID, &c.UserID, &c.Scope, &c.RedirectURI,
		&c.CodeChallenge, &c.CodeChallengeMethod, &c.ExpiresAt, &c.Used, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, oauth.ErrInvalidGrant
		}
		return nil, errors.Wrap(err, "getting authorization code")
	}
	return &c, nil
}

// MarkUsed consumes the code with a conditional update, so concurrent
// exchanges across processes agree on a single winner.
func (r *CodeRepository) MarkUsed(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, markCodeUsedSQL, code)
	if err != nil {
		return errors.Wrap(err, "marking authorization code used")
	}
	if tag.RowsAffected() == 0 {
		return oauth.ErrInvalidGrant
	}
	return nil
}

// TokenRepository implements oauth.TokenRepository backed by PostgreSQL.
type TokenRepository struct {
	pool *pgxpool.Pool
}

// NewTokenRepository returns a TokenRepository that uses the given pool.
func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

func (r *TokenRepository) Create(ctx context.Context, t *oauth.Token) error {
	_, err := r.pool.Exec(ctx, insertTokenSQL,
		t.Token, t.Type, t.ClientID, t.UserID, t.Scope, t.ExpiresAt, t.Revoked, t.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "creating token")
	}
	return nil
}

func (r *TokenRepository) Get(ctx context.Context, token string) (*oauth.Token, error) {
	var t oauth.Token
	err := r.pool.QueryRow(ctx, getTokenSQL, token).Scan(
		&t.Token, &t.Type, &t.ClientID, &t.UserID, &t.Scope, &t.ExpiresAt, &t.Revoked, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, oauth.ErrInvalidGrant
		}
		return nil, errors.Wrap(err, "getting token")
	}
	return &t, nil
}

func (r *TokenRepository) Revoke(ctx context.Context, token string) error {
	tag, err := r.pool.Exec(ctx, revokeTokenSQL, token)
	if err != nil {
		return errors.Wrap(err, "revoking token")
	}
	if tag.RowsAffected() == 0 {
		return oauth.ErrInvalidGrant
	}
	return nil
}

// RevokeAccessTokensFor sweeps every active access token for the pair in a
// single statement; the row set is consistent by statement-level snapshot.
func (r *TokenRepository) RevokeAccessTokensFor(ctx context.Context, clientID, userID string) (int, error) {
	tag, err := r.pool.Exec(ctx, revokeOwnerAccessSQL, clientID, userID, oauth.TokenAccess)
	if err != nil {
		return 0, errors.Wrap(err, "revoking access tokens")
	}
	return int(tag.RowsAffected()), nil
}
