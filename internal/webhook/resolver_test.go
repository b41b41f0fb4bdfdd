package webhook

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ignite/postmark-bridge/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 { return &v }

func TestResolveSubscriptionChange_ReactivationAlwaysRemoves(t *testing.T) {
	for _, reason := range []string{"", "HardBounce", "ManualSuppression", "SpamComplaint", "Whatever"} {
		t.Run(reason, func(t *testing.T) {
			ev := &domain.WebhookEvent{
				RecordType:      domain.RecordSubscriptionChange,
				Recipient:       "a@x.com",
				Reason:          reason,
				SuppressSending: false,
			}

			action, err := Resolve(context.Background(), ev)
			require.NoError(t, err)
			assert.Equal(t, domain.ActionRemove, action.Kind)
			assert.Equal(t, "a@x.com", action.Address)
		})
	}
}

func TestResolveSubscriptionChange_Reasons(t *testing.T) {
	tests := []struct {
		reason      string
		wantReason  domain.SuppressionReason
		wantComment string
	}{
		{ReasonManualSuppression, domain.ReasonUnsubscribed, "manual unsubscribe"},
		{ReasonHardBounce, domain.ReasonBounced, "hard bounce"},
		{ReasonSpamComplaint, domain.ReasonUnsubscribed, "spam complaint"},
	}

	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			ev := &domain.WebhookEvent{
				RecordType:      domain.RecordSubscriptionChange,
				Recipient:       "a@x.com",
				Reason:          tt.reason,
				SuppressSending: true,
				MessageID:       "m-1",
				Metadata:        map[string]string{"email_id": "42"},
			}

			action, err := Resolve(context.Background(), ev)
			require.NoError(t, err)
			assert.Equal(t, domain.SuppressionAction{
				Kind:          domain.ActionAdd,
				Address:       "a@x.com",
				Reason:        tt.wantReason,
				Comment:       tt.wantComment,
				CorrelationID: int64Ptr(42),
				MessageID:     "m-1",
				Source:        domain.SourceWebhook,
			}, action)
		})
	}
}

func TestResolveSubscriptionChange_MissingCorrelationStillSuppresses(t *testing.T) {
	ev := &domain.WebhookEvent{
		RecordType:      domain.RecordSubscriptionChange,
		Recipient:       "a@x.com",
		Reason:          ReasonHardBounce,
		SuppressSending: true,
		Metadata:        map[string]string{"email_id": "not-a-number"},
	}

	action, err := Resolve(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionAdd, action.Kind)
	assert.Nil(t, action.CorrelationID)
}

func TestResolveSubscriptionChange_UnknownReason(t *testing.T) {
	ev := &domain.WebhookEvent{
		RecordType:      domain.RecordSubscriptionChange,
		Recipient:       "a@x.com",
		Reason:          "hardbounce",
		SuppressSending: true,
	}

	action, err := Resolve(context.Background(), ev)

	var unknown *UnknownReasonError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "hardbounce", unknown.Reason)
	assert.Equal(t, domain.ActionNone, action.Kind)
}

func TestResolve_MissingRecipient(t *testing.T) {
	for _, rt := range []domain.RecordType{domain.RecordSubscriptionChange, domain.RecordBounce} {
		_, err := Resolve(context.Background(), &domain.WebhookEvent{RecordType: rt, Reason: ReasonHardBounce, SuppressSending: true})

		var missing *MissingRecipientError
		require.True(t, errors.As(err, &missing), string(rt))
		assert.Equal(t, rt, missing.RecordType)
	}
}

func TestResolveBounce_Types(t *testing.T) {
	tests := []struct {
		bounceType string
		wantKind   domain.ActionKind
		wantReason domain.SuppressionReason
	}{
		{ReasonHardBounce, domain.ActionAdd, domain.ReasonBounced},
		{ReasonSpamComplaint, domain.ActionAdd, domain.ReasonUnsubscribed},
		{"SoftBounce", domain.ActionNone, ""},
		{"Transient", domain.ActionNone, ""},
	}

	for _, tt := range tests {
		t.Run(tt.bounceType, func(t *testing.T) {
			ev := &domain.WebhookEvent{RecordType: domain.RecordBounce, Recipient: "b@x.com", Reason: tt.bounceType}

			action, err := Resolve(context.Background(), ev)
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, action.Kind)
			assert.Equal(t, tt.wantReason, action.Reason)
		})
	}
}

func TestResolveBounce_MissingTypeWarns(t *testing.T) {
	_, err := Resolve(context.Background(), &domain.WebhookEvent{RecordType: domain.RecordBounce, Recipient: "b@x.com"})

	var unknown *UnknownReasonError
	assert.True(t, errors.As(err, &unknown))
}

func TestBounceDetail_OrderAndTruncation(t *testing.T) {
	long := strings.Repeat("x", 600)
	ev := &domain.WebhookEvent{
		Name:        "Hard bounce",
		Description: "Unknown user",
		Details:     "smtp;550 5.1.1",
		Content:     long,
		BouncedAt:   "2024-01-01T00:00:00Z",
	}

	detail := BounceDetail(ev)
	lines := strings.Split(detail, "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "Type: Hard bounce", lines[0])
	assert.Equal(t, "Description: Unknown user", lines[1])
	assert.Equal(t, "Details: smtp;550 5.1.1", lines[2])
	assert.Equal(t, "Content: "+strings.Repeat("x", 500)+truncationMarker, lines[3])
	assert.Equal(t, "Bounced at: 2024-01-01T00:00:00Z", lines[4])
}

func TestBounceDetail_SkipsEmptyFields(t *testing.T) {
	assert.Equal(t, "Type: Spam complaint\nBounced at: now",
		BounceDetail(&domain.WebhookEvent{Name: "Spam complaint", BouncedAt: "now"}))
	assert.Equal(t, "Content: short", BounceDetail(&domain.WebhookEvent{Content: "short"}))
	assert.Equal(t, bounceFallbackNote, BounceDetail(&domain.WebhookEvent{}))
}

func TestResolve_Idempotent(t *testing.T) {
	ev := &domain.WebhookEvent{
		RecordType: domain.RecordBounce,
		Recipient:  "b@x.com",
		Reason:     ReasonHardBounce,
		Name:       "Hard bounce",
		Metadata:   map[string]string{"email_id": "5"},
	}

	first, err := Resolve(context.Background(), ev)
	require.NoError(t, err)
	second, err := Resolve(context.Background(), ev)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
