package domain

import "time"

// SuppressionReason is the reason code recorded with a suppression.
type SuppressionReason string

const (
	ReasonBounced      SuppressionReason = "bounced"
	ReasonUnsubscribed SuppressionReason = "unsubscribed"
)

// SuppressionSource indicates where the suppression signal originated.
type SuppressionSource string

const (
	SourceWebhook  SuppressionSource = "postmark_webhook"
	SourceSendTime SuppressionSource = "postmark_send"
)

// DefaultChannel is the channel suppressions apply to when none is given.
const DefaultChannel = "email"

// ActionKind discriminates SuppressionAction.
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionAdd
	ActionRemove
)

func (k ActionKind) String() string {
	switch k {
	case ActionAdd:
		return "add"
	case ActionRemove:
		return "remove"
	default:
		return "none"
	}
}

// SuppressionAction is the decision handed to the suppression store.
// Reason, Comment and CorrelationID are only meaningful for ActionAdd.
type SuppressionAction struct {
	Kind          ActionKind        `json:"kind"`
	Address       string            `json:"address,omitempty"`
	Channel       string            `json:"channel,omitempty"`
	Reason        SuppressionReason `json:"reason,omitempty"`
	Comment       string            `json:"comment,omitempty"`
	CorrelationID *int64            `json:"correlation_id,omitempty"`
	MessageID     string            `json:"message_id,omitempty"`
	Source        SuppressionSource `json:"source,omitempty"`
}

// NoAction is the zero decision.
func NoAction() SuppressionAction { return SuppressionAction{Kind: ActionNone} }

// AddSuppression builds an ActionAdd decision.
func AddSuppression(address string, reason SuppressionReason, comment string, correlationID *int64) SuppressionAction {
	return SuppressionAction{
		Kind:          ActionAdd,
		Address:       address,
		Reason:        reason,
		Comment:       comment,
		CorrelationID: correlationID,
	}
}

// RemoveSuppression builds an ActionRemove decision. An empty channel means DefaultChannel.
func RemoveSuppression(address, channel string) SuppressionAction {
	return SuppressionAction{Kind: ActionRemove, Address: address, Channel: channel}
}

// Suppression is a persisted entry in the suppression list.
type Suppression struct {
	ID        string            `json:"id" db:"id"`
	Email     string            `json:"email" db:"email"`
	Channel   string            `json:"channel" db:"channel"`
	Reason    SuppressionReason `json:"reason" db:"reason"`
	Source    SuppressionSource `json:"source" db:"source"`
	Comment   string            `json:"comment,omitempty" db:"comment"`
	EmailID   *int64            `json:"email_id,omitempty" db:"email_id"`
	MessageID string            `json:"message_id,omitempty" db:"message_id"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
}

// SuppressionStat annotates a historical send with the suppression it caused.
type SuppressionStat struct {
	EmailID   *int64            `json:"email_id,omitempty"`
	MessageID string            `json:"message_id,omitempty"`
	Recipient string            `json:"recipient"`
	Reason    SuppressionReason `json:"reason"`
	Comment   string            `json:"comment"`
	Source    SuppressionSource `json:"source"`
}
