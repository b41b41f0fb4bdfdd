package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/ignite/postmark-bridge/internal/domain"
	"github.com/ignite/postmark-bridge/internal/service/suppression"
)

// SuppressionRepo implements suppression.Repository against PostgreSQL.
// Rows are soft-deleted so a reactivated address keeps its history.
type SuppressionRepo struct{ db *sql.DB }

// NewSuppressionRepo creates a Postgres-backed suppression repository.
func NewSuppressionRepo(db *sql.DB) *SuppressionRepo { return &SuppressionRepo{db: db} }

func (r *SuppressionRepo) IsSuppressed(ctx context.Context, email, channel string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM postmark_suppressions WHERE email = $1 AND channel = $2 AND active = true)`,
		email, channel,
	).Scan(&exists)
	return exists, err
}

// Suppress inserts the entry, or revives a soft-deleted one. An active
// entry for the same email and channel is left untouched.
func (r *SuppressionRepo) Suppress(ctx context.Context, s *domain.Suppression) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO postmark_suppressions (id, email, channel, reason, source, comment, email_id, message_id, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), true, NOW(), NOW())
		ON CONFLICT (email, channel) DO UPDATE
		SET reason = $4, source = $5, comment = $6, email_id = $7, message_id = NULLIF($8, ''), active = true, updated_at = NOW()
		WHERE postmark_suppressions.active = false
	`, s.ID, s.Email, s.Channel, s.Reason, s.Source, s.Comment, nullableInt64(s.EmailID), s.MessageID)
	if err != nil {
		return fmt.Errorf("suppress: %w", err)
	}
	return nil
}

func (r *SuppressionRepo) Remove(ctx context.Context, email, channel string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE postmark_suppressions SET active = false, updated_at = NOW() WHERE email = $1 AND channel = $2 AND active = true`,
		email, channel,
	)
	if err != nil {
		return fmt.Errorf("remove suppression: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return suppression.ErrNotFound
	}
	return nil
}

func (r *SuppressionRepo) List(ctx context.Context, f suppression.ListFilter) ([]domain.Suppression, int, error) {
	where := ` WHERE active = true`
	var args []interface{}
	idx := 1
	for _, c := range []struct{ col, val string }{
		{"channel", f.Channel},
		{"reason", f.Reason},
		{"source", f.Source},
	} {
		if c.val == "" {
			continue
		}
		where += fmt.Sprintf(" AND %s = $%d", c.col, idx)
		args = append(args, c.val)
		idx++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM postmark_suppressions`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count suppressions: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = total
	}

	q := `SELECT id, email, channel, reason, source, COALESCE(comment,''), email_id, COALESCE(message_id,''), created_at
		FROM postmark_suppressions` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	rows, err := r.db.QueryContext(ctx, q, append(args, limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list suppressions: %w", err)
	}
	defer rows.Close()

	var out []domain.Suppression
	for rows.Next() {
		var (
			s       domain.Suppression
			emailID sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &s.Email, &s.Channel, &s.Reason, &s.Source, &s.Comment, &emailID, &s.MessageID, &s.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan suppression: %w", err)
		}
		if emailID.Valid {
			id := emailID.Int64
			s.EmailID = &id
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

func (r *SuppressionRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM postmark_suppressions WHERE active = true`,
	).Scan(&n)
	return n, err
}

func nullableInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
