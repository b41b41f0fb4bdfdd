package webhook

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/ignite/postmark-bridge/internal/correlation"
	"github.com/ignite/postmark-bridge/internal/domain"
)

// SubscriptionChange reasons and Bounce types that lead to a suppression.
const (
	ReasonManualSuppression = "ManualSuppression"
	ReasonHardBounce        = "HardBounce"
	ReasonSpamComplaint     = "SpamComplaint"
)

const (
	maxBounceContent   = 500
	truncationMarker   = "... [truncated]"
	bounceFallbackNote = "Postmark bounce notification"
)

// Resolve maps a classified event to at most one suppression action. It
// is stateless: the same event always yields the same action. Deduplication
// across record types is left to the suppression store, whose add is
// idempotent per address and channel.
func Resolve(ctx context.Context, ev *domain.WebhookEvent) (domain.SuppressionAction, error) {
	switch ev.RecordType {
	case domain.RecordSubscriptionChange:
		return ResolveSubscriptionChange(ctx, ev)
	case domain.RecordBounce:
		return ResolveBounce(ctx, ev)
	default:
		return domain.NoAction(), &UnsupportedRecordTypeError{RecordType: ev.RawRecordType}
	}
}

// ResolveSubscriptionChange handles SubscriptionChange notifications.
// Reactivation (SuppressSending false) always removes the suppression.
func ResolveSubscriptionChange(ctx context.Context, ev *domain.WebhookEvent) (domain.SuppressionAction, error) {
	if ev.Recipient == "" {
		return domain.NoAction(), &MissingRecipientError{RecordType: domain.RecordSubscriptionChange}
	}

	if !ev.SuppressSending {
		action := domain.RemoveSuppression(ev.Recipient, "")
		return stamp(action, ev), nil
	}

	emailID := correlation.FromMetadata(ctx, ev.Metadata).EmailID

	var action domain.SuppressionAction
	switch ev.Reason {
	case ReasonManualSuppression:
		action = domain.AddSuppression(ev.Recipient, domain.ReasonUnsubscribed, "manual unsubscribe", emailID)
	case ReasonHardBounce:
		action = domain.AddSuppression(ev.Recipient, domain.ReasonBounced, "hard bounce", emailID)
	case ReasonSpamComplaint:
		action = domain.AddSuppression(ev.Recipient, domain.ReasonUnsubscribed, "spam complaint", emailID)
	default:
		return domain.NoAction(), &UnknownReasonError{RecordType: domain.RecordSubscriptionChange, Reason: ev.Reason}
	}
	return stamp(action, ev), nil
}

// ResolveBounce handles Bounce notifications. Only hard bounces and spam
// complaints suppress; soft and transient bounces are ignored.
func ResolveBounce(ctx context.Context, ev *domain.WebhookEvent) (domain.SuppressionAction, error) {
	if ev.Recipient == "" {
		return domain.NoAction(), &MissingRecipientError{RecordType: domain.RecordBounce}
	}

	emailID := correlation.FromMetadata(ctx, ev.Metadata).EmailID
	detail := BounceDetail(ev)

	var action domain.SuppressionAction
	switch ev.Reason {
	case ReasonHardBounce:
		action = domain.AddSuppression(ev.Recipient, domain.ReasonBounced, detail, emailID)
	case ReasonSpamComplaint:
		action = domain.AddSuppression(ev.Recipient, domain.ReasonUnsubscribed, detail, emailID)
	case "":
		return domain.NoAction(), &UnknownReasonError{RecordType: domain.RecordBounce}
	default:
		return domain.NoAction(), nil
	}
	return stamp(action, ev), nil
}

// BounceDetail joins the populated bounce fields, one per line, in fixed
// order: Name, Description, Details, Content (capped), BouncedAt.
func BounceDetail(ev *domain.WebhookEvent) string {
	var lines []string
	if ev.Name != "" {
		lines = append(lines, "Type: "+ev.Name)
	}
	if ev.Description != "" {
		lines = append(lines, "Description: "+ev.Description)
	}
	if ev.Details != "" {
		lines = append(lines, "Details: "+ev.Details)
	}
	if ev.Content != "" {
		lines = append(lines, "Content: "+truncate(ev.Content, maxBounceContent))
	}
	if ev.BouncedAt != "" {
		lines = append(lines, "Bounced at: "+ev.BouncedAt)
	}
	if len(lines) == 0 {
		return bounceFallbackNote
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + truncationMarker
}

func stamp(action domain.SuppressionAction, ev *domain.WebhookEvent) domain.SuppressionAction {
	action.Source = domain.SourceWebhook
	action.MessageID = ev.MessageID
	return action
}
