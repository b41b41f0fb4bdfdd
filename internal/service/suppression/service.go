package suppression

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ignite/postmark-bridge/internal/domain"
	"github.com/ignite/postmark-bridge/internal/pkg/logger"
)

// Service implements suppression business logic. It is safe for concurrent use.
type Service struct {
	repo      Repository
	contacts  ContactFinder
	stats     StatsRecorder
	publisher Publisher
	log       *logger.Logger
}

// Option configures optional collaborators of the Service.
type Option func(*Service)

// WithContactFinder resolves reactivated addresses through their contacts.
func WithContactFinder(f ContactFinder) Option { return func(s *Service) { s.contacts = f } }

// WithStatsRecorder annotates send statistics for correlated suppressions.
func WithStatsRecorder(r StatsRecorder) Option { return func(s *Service) { s.stats = r } }

// WithPublisher emits every applied action.
func WithPublisher(p Publisher) Option { return func(s *Service) { s.publisher = p } }

// WithLogger sets the service logger.
func WithLogger(l *logger.Logger) Option { return func(s *Service) { s.log = l } }

// NewService creates a suppression service backed by the given repository.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{repo: repo, log: logger.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Apply executes a suppression decision. Adds are idempotent per address
// and channel; removing an address that is not suppressed succeeds.
func (s *Service) Apply(ctx context.Context, action domain.SuppressionAction) error {
	var err error
	switch action.Kind {
	case domain.ActionNone:
		return nil
	case domain.ActionAdd:
		err = s.applyAdd(ctx, action)
	case domain.ActionRemove:
		err = s.applyRemove(ctx, action)
	default:
		return fmt.Errorf("unknown action kind %d", action.Kind)
	}
	if err != nil {
		return err
	}

	if s.publisher != nil {
		if perr := s.publisher.Publish(ctx, action); perr != nil {
			s.log.Warn("suppression: publish failed", "action", action.Kind, "recipient", action.Address, "error", perr)
		}
	}
	return nil
}

func (s *Service) applyAdd(ctx context.Context, action domain.SuppressionAction) error {
	entry := &domain.Suppression{
		Email:     action.Address,
		Channel:   action.Channel,
		Reason:    action.Reason,
		Source:    action.Source,
		Comment:   action.Comment,
		EmailID:   action.CorrelationID,
		MessageID: action.MessageID,
	}
	if err := s.Suppress(ctx, entry); err != nil {
		return err
	}

	if s.stats == nil || (action.CorrelationID == nil && action.MessageID == "") {
		return nil
	}
	stat := domain.SuppressionStat{
		EmailID:   action.CorrelationID,
		MessageID: action.MessageID,
		Recipient: entry.Email,
		Reason:    action.Reason,
		Comment:   action.Comment,
		Source:    action.Source,
	}
	if err := s.stats.RecordSuppression(ctx, stat); err != nil {
		s.log.Warn("suppression: stat annotation failed", "recipient", entry.Email, "message_id", action.MessageID, "error", err)
	}
	return nil
}

func (s *Service) applyRemove(ctx context.Context, action domain.SuppressionAction) error {
	emails := []string{normalizeEmail(action.Address)}
	if s.contacts != nil {
		contacts, err := s.contacts.FindByEmail(ctx, emails[0])
		if err != nil {
			return fmt.Errorf("find contacts: %w", err)
		}
		if len(contacts) > 0 {
			emails = contactEmails(contacts)
		}
	}

	for _, email := range emails {
		err := s.Remove(ctx, email, action.Channel)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}
	return nil
}

// IsSuppressed checks whether an email address should be blocked on channel.
func (s *Service) IsSuppressed(ctx context.Context, email, channel string) (bool, error) {
	return s.repo.IsSuppressed(ctx, normalizeEmail(email), channelOrDefault(channel))
}

// Suppress adds an entry to the suppression list. Idempotent: if the email
// is already suppressed on the channel, the existing record is preserved.
func (s *Service) Suppress(ctx context.Context, entry *domain.Suppression) error {
	entry.Email = normalizeEmail(entry.Email)
	if entry.Email == "" {
		return ErrEmailRequired
	}
	entry.Channel = channelOrDefault(entry.Channel)
	return s.repo.Suppress(ctx, entry)
}

// Remove deletes a suppression entry. Returns ErrNotFound if the email is not suppressed.
func (s *Service) Remove(ctx context.Context, email, channel string) error {
	email = normalizeEmail(email)
	if email == "" {
		return ErrEmailRequired
	}
	return s.repo.Remove(ctx, email, channelOrDefault(channel))
}

// List returns suppression entries matching the given filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]domain.Suppression, int, error) {
	return s.repo.List(ctx, filter)
}

// Count returns the total number of suppressed emails.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// Stats returns aggregate counts grouped by reason and source.
type Stats struct {
	Total    int            `json:"total"`
	ByReason map[string]int `json:"by_reason"`
	BySource map[string]int `json:"by_source"`
}

// GetStats computes suppression statistics across every entry.
func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	entries, total, err := s.repo.List(ctx, ListFilter{Limit: 0})
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		Total:    total,
		ByReason: make(map[string]int),
		BySource: make(map[string]int),
	}
	for _, e := range entries {
		stats.ByReason[string(e.Reason)]++
		stats.BySource[string(e.Source)]++
	}
	return stats, nil
}

func contactEmails(contacts []domain.Contact) []string {
	seen := make(map[string]bool, len(contacts))
	out := make([]string, 0, len(contacts))
	for _, c := range contacts {
		email := normalizeEmail(c.Email)
		if email == "" || seen[email] {
			continue
		}
		seen[email] = true
		out = append(out, email)
	}
	return out
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func channelOrDefault(channel string) string {
	if channel == "" {
		return domain.DefaultChannel
	}
	return channel
}
