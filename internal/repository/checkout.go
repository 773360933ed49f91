package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ucpify/ucpify/internal/checkout"
	"github.com/ucpify/ucpify/internal/order"
)

const (
	getSessionSQL = `SELECT record FROM checkout_sessions WHERE id = $1`

	upsertSessionSQL = `INSERT INTO checkout_sessions (id, record, status, payment_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET record = EXCLUDED.record, status = EXCLUDED.status,
		    payment_status = EXCLUDED.payment_status, updated_at = EXCLUDED.updated_at`

	insertOrderSQL = `INSERT INTO orders (id, checkout_id, record, payment_status, payment_provider, provider_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	setSessionPaymentSQL = `UPDATE checkout_sessions
		SET payment_status = $2,
		    record = jsonb_set(record, '{payment_status}', to_jsonb($2::text)),
		    updated_at = now()
		WHERE id = $1`
)

var _ checkout.Repository = (*SessionRepository)(nil)

// SessionRepository implements checkout.Repository backed by PostgreSQL.
// Whole session records are stored as JSONB documents.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository returns a SessionRepository that uses the given pool.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Get returns the session record or checkout.ErrNotFound.
func (r *SessionRepository) Get(ctx context.Context, id string) (*checkout.Session, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, getSessionSQL, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, checkout.ErrNotFound
		}
		return nil, fmt.Errorf("getting session %q: %w", id, err)
	}

	var sess checkout.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decoding session %q: %w", id, err)
	}
	return &sess, nil
}

// Save upserts the whole session record.
func (r *SessionRepository) Save(ctx context.Context, sess *checkout.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session %q: %w", sess.ID, err)
	}

	_, err = r.pool.Exec(ctx, upsertSessionSQL,
		sess.ID, raw, string(sess.Status), sess.PaymentStatus, sess.CreatedAt, sess.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving session %q: %w", sess.ID, err)
	}
	return nil
}

// Complete writes the completed session and its order in one transaction.
func (r *SessionRepository) Complete(ctx context.Context, sess *checkout.Session, o *order.Order) error {
	rawSess, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session %q: %w", sess.ID, err)
	}
	rawOrder, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("encoding order %q: %w", o.ID, err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, upsertSessionSQL,
		sess.ID, rawSess, string(sess.Status), sess.PaymentStatus, sess.CreatedAt, sess.UpdatedAt,
	); err != nil {
		return fmt.Errorf("saving session %q: %w", sess.ID, err)
	}
	if _, err := tx.Exec(ctx, insertOrderSQL,
		o.ID, o.CheckoutID, rawOrder, o.PaymentStatus, o.PaymentProvider, o.ProviderRef, o.CreatedAt,
	); err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing completion of %q: %w", sess.ID, err)
	}
	return nil
}

// SetPaymentStatus records a webhook-reported payment outcome on the session
// row and inside its JSONB record.
func (r *SessionRepository) SetPaymentStatus(ctx context.Context, id, status string) error {
	tag, err := r.pool.Exec(ctx, setSessionPaymentSQL, id, status)
	if err != nil {
		return fmt.Errorf("updating payment status of %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return checkout.ErrNotFound
	}
	return nil
}
