package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ucpify/ucpify/internal/order"
)

const (
	getOrderSQL   = `SELECT record FROM orders WHERE id = $1`
	listOrdersSQL = `SELECT record FROM orders ORDER BY created_at, id`

	setOrderPaymentSQL = `UPDATE orders
		SET payment_status = $2,
		    record = jsonb_set(record, '{payment_status}', to_jsonb($2::text))
		WHERE id = $1`

	setOrderPaymentByRefSQL = `UPDATE orders
		SET payment_status = $2,
		    record = jsonb_set(record, '{payment_status}', to_jsonb($2::text))
		WHERE provider_ref = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Orders
// are written inside the session completion transaction; this type covers
// reads and payment-status updates.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Get returns the order record or order.ErrNotFound.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, getOrderSQL, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return decodeOrder(raw)
}

// List returns all orders in creation order.
func (r *OrderRepository) List(ctx context.Context) ([]*order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*order.Order, error) {
		var raw []byte
		if err := row.Scan(&raw); err != nil {
			return nil, err
		}
		return decodeOrder(raw)
	})
}

// SetPaymentStatus updates the payment status by order ID.
func (r *OrderRepository) SetPaymentStatus(ctx context.Context, id, status string) error {
	tag, err := r.pool.Exec(ctx, setOrderPaymentSQL, id, status)
	if err != nil {
		return fmt.Errorf("updating payment status of %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// SetPaymentStatusByProviderRef updates the payment status by the provider's
// payment reference.
func (r *OrderRepository) SetPaymentStatusByProviderRef(ctx context.Context, providerRef, status string) error {
	tag, err := r.pool.Exec(ctx, setOrderPaymentByRefSQL, providerRef, status)
	if err != nil {
		return fmt.Errorf("updating payment status by ref %q: %w", providerRef, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func decodeOrder(raw []byte) (*order.Order, error) {
	var o order.Order
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, fmt.Errorf("decoding order: %w", err)
	}
	return &o, nil
}
