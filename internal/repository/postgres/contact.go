package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/postmark-bridge/internal/domain"
)

// ContactRepo implements suppression.ContactFinder against the contacts table.
type ContactRepo struct{ db *sql.DB }

// NewContactRepo creates a Postgres-backed contact finder.
func NewContactRepo(db *sql.DB) *ContactRepo { return &ContactRepo{db: db} }

// FindByEmail returns every contact whose address matches email case-insensitively.
func (r *ContactRepo) FindByEmail(ctx context.Context, email string) ([]domain.Contact, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, email FROM contacts WHERE LOWER(email) = LOWER($1) ORDER BY id`,
		email,
	)
	if err != nil {
		return nil, fmt.Errorf("find contacts: %w", err)
	}
	defer rows.Close()

	var out []domain.Contact
	for rows.Next() {
		var c domain.Contact
		if err := rows.Scan(&c.ID, &c.Email); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
