package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/casavia/payments-gateway/internal/payments/domain"
)

var ErrSessionNotFound = errors.New("payment session not found")

// Repository persists the current payment session per order. Relay events
// themselves stay in memory; only the session record survives a restart.
type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) Save(ctx context.Context, s domain.PaymentSession) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO payment_sessions (id, order_id, url, status, amount_cents, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT (order_id) DO UPDATE SET id=$1, url=$3, status=$4, amount_cents=$5, updated_at=$7
		`, s.ID, s.OrderID, s.URL, s.Status, s.AmountCents, s.CreatedAt, s.UpdatedAt)
	return err
}

func (r *Repository) UpdateStatus(ctx context.Context, orderID string, status domain.SessionStatus) error {
	ct, err := r.pool.Exec(ctx, `UPDATE payment_sessions SET status=$2, updated_at=$3 WHERE order_id=$1`,
		orderID, status, time.Now().UTC())
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		// A webhook can outlive the process that created the session, or
		// reference an order we never saw. Not fatal.
		r.log.Warn("status update for unknown session", "order_id", orderID, "status", status)
	}
	return nil
}

func (r *Repository) GetByOrder(ctx context.Context, orderID string) (domain.PaymentSession, error) {
	var s domain.PaymentSession
	err := r.pool.QueryRow(ctx, `SELECT id, order_id, url, status, amount_cents, created_at, updated_at
			FROM payment_sessions WHERE order_id=$1`, orderID).
		Scan(&s.ID, &s.OrderID, &s.URL, &s.Status, &s.AmountCents, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PaymentSession{}, ErrSessionNotFound
	}
	if err != nil {
		return domain.PaymentSession{}, err
	}
	return s, nil
}
