package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	sessionStatusCountSQL = `SELECT status, count(*) FROM checkout_sessions GROUP BY status`

	orderPaymentCountSQL = `SELECT
			CASE WHEN payment_provider = '' THEN 'none' ELSE payment_provider END,
			CASE WHEN payment_status = '' THEN 'none' ELSE payment_status END,
			count(*)
		FROM orders GROUP BY 1, 2`

	ordersTodaySQL = `SELECT count(*) FROM orders WHERE created_at >= $1 AND created_at < $2`
)

// StatsRepository aggregates the counters served by the admin endpoint.
type StatsRepository struct {
	pool *pgxpool.Pool
}

// NewStatsRepository returns a StatsRepository that uses the given pool.
func NewStatsRepository(pool *pgxpool.Pool) *StatsRepository {
	return &StatsRepository{pool: pool}
}

// Stats returns session counts by status, order counts by provider and
// payment status, and how many orders were created on the UTC day of now.
func (r *StatsRepository) Stats(ctx context.Context, now time.Time) (map[string]int, map[string]int, int, error) {
	byStatus := make(map[string]int)
	rows, err := r.pool.Query(ctx, sessionStatusCountSQL)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("counting sessions: %w", err)
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return nil, nil, 0, fmt.Errorf("scanning session counts: %w", err)
		}
		byStatus[status] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, 0, fmt.Errorf("counting sessions: %w", err)
	}

	byPayment := make(map[string]int)
	rows, err = r.pool.Query(ctx, orderPaymentCountSQL)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("counting orders: %w", err)
	}
	for rows.Next() {
		var provider, status string
		var n int
		if err := rows.Scan(&provider, &status, &n); err != nil {
			rows.Close()
			return nil, nil, 0, fmt.Errorf("scanning order counts: %w", err)
		}
		byPayment[provider+"_"+status] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, 0, fmt.Errorf("counting orders: %w", err)
	}

	dayStart := now.UTC().Truncate(24 * time.Hour)
	var today int
	if err := r.pool.QueryRow(ctx, ordersTodaySQL, dayStart, dayStart.Add(24*time.Hour)).Scan(&today); err != nil {
		return nil, nil, 0, fmt.Errorf("counting today's orders: %w", err)
	}

	return byStatus, byPayment, today, nil
}
