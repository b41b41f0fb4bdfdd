package suppression

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ignite/postmark-bridge/internal/domain"
)

// mockRepo is an in-memory repository for testing.
type mockRepo struct {
	mu    sync.RWMutex
	store map[string]*domain.Suppression // keyed by "channel:email"
}

func newMockRepo() *mockRepo {
	return &mockRepo{store: make(map[string]*domain.Suppression)}
}

func (m *mockRepo) key(email, channel string) string {
	return channel + ":" + email
}

func (m *mockRepo) IsSuppressed(_ context.Context, email, channel string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.store[m.key(email, channel)]
	return ok, nil
}

func (m *mockRepo) Suppress(_ context.Context, s *domain.Suppression) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := m.key(s.Email, s.Channel)
	if _, exists := m.store[k]; exists {
		return nil
	}
	cp := *s
	m.store[k] = &cp
	return nil
}

func (m *mockRepo) Remove(_ context.Context, email, channel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := m.key(email, channel)
	if _, ok := m.store[k]; !ok {
		return ErrNotFound
	}
	delete(m.store, k)
	return nil
}

func (m *mockRepo) List(_ context.Context, f ListFilter) ([]domain.Suppression, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []domain.Suppression
	for _, s := range m.store {
		if f.Reason != "" && string(s.Reason) != f.Reason {
			continue
		}
		result = append(result, *s)
	}
	return result, len(result), nil
}

func (m *mockRepo) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.store), nil
}

func (m *mockRepo) get(email, channel string) *domain.Suppression {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.store[m.key(email, channel)]
}

type stubContacts struct{ contacts []domain.Contact }

func (s stubContacts) FindByEmail(context.Context, string) ([]domain.Contact, error) {
	return s.contacts, nil
}

type recordingStats struct{ stats []domain.SuppressionStat }

func (r *recordingStats) RecordSuppression(_ context.Context, stat domain.SuppressionStat) error {
	r.stats = append(r.stats, stat)
	return nil
}

type recordingPublisher struct {
	actions []domain.SuppressionAction
	err     error
}

func (p *recordingPublisher) Publish(_ context.Context, a domain.SuppressionAction) error {
	p.actions = append(p.actions, a)
	return p.err
}

func int64Ptr(v int64) *int64 { return &v }

func TestApply_AddSuppressesNormalizedAddress(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	action := domain.AddSuppression(" BOUNCE@Example.com ", domain.ReasonBounced, "hard bounce", int64Ptr(42))
	action.Source = domain.SourceWebhook
	if err := svc.Apply(ctx, action); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	ok, err := svc.IsSuppressed(ctx, "bounce@example.com", "")
	if err != nil {
		t.Fatalf("IsSuppressed: %v", err)
	}
	if !ok {
		t.Fatal("expected email to be suppressed after Apply(add)")
	}

	got := repo.get("bounce@example.com", domain.DefaultChannel)
	if got.Reason != domain.ReasonBounced || got.Comment != "hard bounce" || got.Source != domain.SourceWebhook {
		t.Errorf("unexpected entry: %+v", got)
	}
	if got.EmailID == nil || *got.EmailID != 42 {
		t.Errorf("expected email_id 42, got %v", got.EmailID)
	}
}

func TestApply_AddIdempotent(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		action := domain.AddSuppression("dup@example.com", domain.ReasonUnsubscribed, "spam complaint", nil)
		if err := svc.Apply(ctx, action); err != nil {
			t.Fatalf("Apply #%d: %v", i, err)
		}
	}

	count, _ := svc.Count(ctx)
	if count != 1 {
		t.Errorf("expected 1 suppression, got %d", count)
	}
}

func TestApply_AddEmptyEmailFails(t *testing.T) {
	svc := NewService(newMockRepo())

	err := svc.Apply(context.Background(), domain.AddSuppression("", domain.ReasonBounced, "", nil))
	if !errors.Is(err, ErrEmailRequired) {
		t.Errorf("expected ErrEmailRequired, got %v", err)
	}
}

func TestApply_RemoveReactivates(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	_ = svc.Apply(ctx, domain.AddSuppression("back@example.com", domain.ReasonUnsubscribed, "manual unsubscribe", nil))

	if err := svc.Apply(ctx, domain.RemoveSuppression("Back@example.com", "")); err != nil {
		t.Fatalf("Apply(remove): %v", err)
	}

	ok, _ := svc.IsSuppressed(ctx, "back@example.com", domain.DefaultChannel)
	if ok {
		t.Error("expected email to no longer be suppressed after Apply(remove)")
	}
}

func TestApply_RemoveMissingIsNotAnError(t *testing.T) {
	svc := NewService(newMockRepo())

	if err := svc.Apply(context.Background(), domain.RemoveSuppression("ghost@example.com", "")); err != nil {
		t.Errorf("expected reactivation of unknown address to succeed, got %v", err)
	}
}

func TestApply_RemoveThroughContacts(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, WithContactFinder(stubContacts{contacts: []domain.Contact{
		{ID: "c1", Email: "Owner@Example.com"},
		{ID: "c2", Email: "owner@example.com"},
	}}))
	ctx := context.Background()

	_ = svc.Suppress(ctx, &domain.Suppression{Email: "owner@example.com", Reason: domain.ReasonBounced})

	if err := svc.Apply(ctx, domain.RemoveSuppression("OWNER@example.com", "")); err != nil {
		t.Fatalf("Apply(remove): %v", err)
	}
	if repo.get("owner@example.com", domain.DefaultChannel) != nil {
		t.Error("expected contact suppression to be removed")
	}
}

func TestApply_RecordsStatsOnlyWhenCorrelated(t *testing.T) {
	stats := &recordingStats{}
	svc := NewService(newMockRepo(), WithStatsRecorder(stats))
	ctx := context.Background()

	_ = svc.Apply(ctx, domain.AddSuppression("a@example.com", domain.ReasonBounced, "hard bounce", int64Ptr(7)))
	_ = svc.Apply(ctx, domain.AddSuppression("b@example.com", domain.ReasonBounced, "hard bounce", nil))
	withMessage := domain.AddSuppression("c@example.com", domain.ReasonUnsubscribed, "spam complaint", nil)
	withMessage.MessageID = "m-3"
	_ = svc.Apply(ctx, withMessage)

	if len(stats.stats) != 2 {
		t.Fatalf("expected 2 stat annotations, got %d", len(stats.stats))
	}
	if *stats.stats[0].EmailID != 7 || stats.stats[0].Recipient != "a@example.com" {
		t.Errorf("unexpected first stat: %+v", stats.stats[0])
	}
	if stats.stats[1].MessageID != "m-3" {
		t.Errorf("unexpected second stat: %+v", stats.stats[1])
	}
}

func TestApply_PublishFailureIsNotFatal(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("queue unavailable")}
	svc := NewService(newMockRepo(), WithPublisher(pub))

	err := svc.Apply(context.Background(), domain.AddSuppression("a@example.com", domain.ReasonBounced, "hard bounce", nil))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(pub.actions) != 1 {
		t.Errorf("expected 1 published action, got %d", len(pub.actions))
	}
}

func TestApply_NoActionIsNoop(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewService(newMockRepo(), WithPublisher(pub))

	if err := svc.Apply(context.Background(), domain.NoAction()); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(pub.actions) != 0 {
		t.Error("expected nothing published for a no-op")
	}
}

func TestList_FiltersByReason(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	_ = svc.Apply(ctx, domain.AddSuppression("bounce1@example.com", domain.ReasonBounced, "", nil))
	_ = svc.Apply(ctx, domain.AddSuppression("unsub1@example.com", domain.ReasonUnsubscribed, "", nil))
	_ = svc.Apply(ctx, domain.AddSuppression("bounce2@example.com", domain.ReasonBounced, "", nil))

	results, total, err := svc.List(ctx, ListFilter{Reason: "bounced"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 2 {
		t.Errorf("expected 2 bounces, got %d", total)
	}
	for _, r := range results {
		if r.Reason != domain.ReasonBounced {
			t.Errorf("unexpected reason: %s", r.Reason)
		}
	}
}

func TestGetStats_AggregatesByReasonAndSource(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	webhook := domain.AddSuppression("a@example.com", domain.ReasonBounced, "", nil)
	webhook.Source = domain.SourceWebhook
	sendTime := domain.AddSuppression("b@example.com", domain.ReasonBounced, "", nil)
	sendTime.Source = domain.SourceSendTime
	unsub := domain.AddSuppression("c@example.com", domain.ReasonUnsubscribed, "", nil)
	unsub.Source = domain.SourceWebhook

	for _, a := range []domain.SuppressionAction{webhook, sendTime, unsub} {
		_ = svc.Apply(ctx, a)
	}

	stats, err := svc.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("expected total=3, got %d", stats.Total)
	}
	if stats.ByReason["bounced"] != 2 {
		t.Errorf("expected 2 bounces, got %d", stats.ByReason["bounced"])
	}
	if stats.BySource["postmark_send"] != 1 {
		t.Errorf("expected 1 postmark_send, got %d", stats.BySource["postmark_send"])
	}
}
