package suppression

import (
	"context"

	"github.com/ignite/postmark-bridge/internal/domain"
)

// Repository defines the data access contract for the suppression list.
// Emails are passed lower-cased and trimmed.
type Repository interface {
	// IsSuppressed returns true if the email is suppressed on the channel.
	IsSuppressed(ctx context.Context, email, channel string) (bool, error)

	// Suppress adds an email to the suppression list. If it already exists
	// for the channel, the existing record is preserved (idempotent).
	Suppress(ctx context.Context, s *domain.Suppression) error

	// Remove deletes a suppression entry. Returns ErrNotFound if it doesn't exist.
	Remove(ctx context.Context, email, channel string) error

	// List returns suppression entries matching the filter and the total match count.
	List(ctx context.Context, filter ListFilter) ([]domain.Suppression, int, error)

	// Count returns the total number of suppressed emails.
	Count(ctx context.Context) (int, error)
}

// ListFilter controls pagination and filtering for suppression lists.
type ListFilter struct {
	Channel string
	Reason  string
	Source  string
	Limit   int
	Offset  int
}

// ContactFinder resolves an address to the contacts that own it.
type ContactFinder interface {
	FindByEmail(ctx context.Context, email string) ([]domain.Contact, error)
}

// StatsRecorder annotates the historical send a suppression originated from.
type StatsRecorder interface {
	RecordSuppression(ctx context.Context, stat domain.SuppressionStat) error
}

// Publisher emits applied actions to an external event stream.
type Publisher interface {
	Publish(ctx context.Context, action domain.SuppressionAction) error
}
