package store

import (
	"context"
	"fmt"

	"github.com/nidhogg/nuka-resort/internal/visitor"
	"github.com/nidhogg/nuka-resort/internal/world"
)

// SaveVisit upserts a finished visit.
func (s *Store) SaveVisit(ctx context.Context, v visitor.Visit) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO visits (visitor_id, name, spawned_minute, left_minute, exit_reason, spent)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (visitor_id) DO UPDATE SET
			left_minute = EXCLUDED.left_minute,
			exit_reason = EXCLUDED.exit_reason,
			spent = EXCLUDED.spent`,
		v.VisitorID, v.Name, v.SpawnedAt.TotalMinutes(), v.LeftAt.TotalMinutes(), v.ExitReason, v.Spent,
	)
	if err != nil {
		return fmt.Errorf("save visit %s: %w", v.VisitorID, err)
	}
	return nil
}

// ListVisits returns the latest finished visits, newest first.
func (s *Store) ListVisits(ctx context.Context, limit int) ([]visitor.Visit, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT visitor_id, name, spawned_minute, left_minute, exit_reason, spent
		FROM visits
		ORDER BY recorded_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list visits: %w", err)
	}
	defer rows.Close()

	var out []visitor.Visit
	for rows.Next() {
		var v visitor.Visit
		var spawned, left int
		if err := rows.Scan(&v.VisitorID, &v.Name, &spawned, &left, &v.ExitReason, &v.Spent); err != nil {
			return nil, fmt.Errorf("scan visit: %w", err)
		}
		v.SpawnedAt = world.FromMinutes(spawned)
		v.LeftAt = world.FromMinutes(left)
		out = append(out, v)
	}
	return out, rows.Err()
}
