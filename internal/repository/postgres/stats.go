package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/postmark-bridge/internal/domain"
)

// StatsRepo implements suppression.StatsRecorder. It marks the historical
// send row that a suppression originated from as failed.
type StatsRepo struct{ db *sql.DB }

// NewStatsRepo creates a Postgres-backed stats recorder.
func NewStatsRepo(db *sql.DB) *StatsRepo { return &StatsRepo{db: db} }

// RecordSuppression matches by email id and recipient when the correlation
// id is known, otherwise by provider message id. No matching row is not an error.
func (r *StatsRepo) RecordSuppression(ctx context.Context, stat domain.SuppressionStat) error {
	var (
		q    string
		args []interface{}
	)
	switch {
	case stat.EmailID != nil:
		q = `UPDATE email_stats SET is_failed = true, failure_reason = $1, failure_source = $2, updated_at = NOW()
			WHERE email_id = $3 AND LOWER(email_address) = LOWER($4)`
		args = []interface{}{stat.Comment, stat.Source, *stat.EmailID, stat.Recipient}
	case stat.MessageID != "":
		q = `UPDATE email_stats SET is_failed = true, failure_reason = $1, failure_source = $2, updated_at = NOW()
			WHERE message_id = $3`
		args = []interface{}{stat.Comment, stat.Source, stat.MessageID}
	default:
		return nil
	}

	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("record suppression stat: %w", err)
	}
	return nil
}
