package store

import (
	"context"
	"fmt"

	"github.com/nidhogg/nuka-resort/internal/ledger"
)

// SavePayment inserts a payment. Saving the same id twice is a no-op.
func (s *Store) SavePayment(ctx context.Context, p ledger.Payment) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO payments (id, visitor_id, amount, item_id, reputation_delta, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		p.ID, p.VisitorID, p.Amount, p.ItemID, p.ReputationDelta, p.At,
	)
	if err != nil {
		return fmt.Errorf("save payment %s: %w", p.ID, err)
	}
	return nil
}

// ListPayments returns the latest payments, newest first.
func (s *Store) ListPayments(ctx context.Context, limit int) ([]ledger.Payment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT id::text, visitor_id, amount, item_id, reputation_delta, paid_at
		FROM payments
		ORDER BY paid_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var out []ledger.Payment
	for rows.Next() {
		var p ledger.Payment
		if err := rows.Scan(&p.ID, &p.VisitorID, &p.Amount, &p.ItemID, &p.ReputationDelta, &p.At); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Revenue sums every stored payment.
func (s *Store) Revenue(ctx context.Context) (int, error) {
	var total int
	if err := s.db.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM payments`).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum revenue: %w", err)
	}
	return total, nil
}
