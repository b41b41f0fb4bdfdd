package domain

// OutcomeStatus discriminates DispatchOutcome.
type OutcomeStatus string

const (
	OutcomeSent       OutcomeStatus = "sent"
	OutcomeSuppressed OutcomeStatus = "suppressed"
	OutcomeFailed     OutcomeStatus = "failed"
)

// DispatchOutcome is the result of one provider call. Exactly one of
// MessageID, Action or Err is set, according to Status.
type DispatchOutcome struct {
	Recipient string             `json:"recipient"`
	Status    OutcomeStatus      `json:"status"`
	MessageID string             `json:"message_id,omitempty"`
	Action    *SuppressionAction `json:"action,omitempty"`
	Err       error              `json:"-"`
}

// Sent builds a successful outcome.
func Sent(recipient, messageID string) DispatchOutcome {
	return DispatchOutcome{Recipient: recipient, Status: OutcomeSent, MessageID: messageID}
}

// Suppressed builds an outcome recovered into a suppression action.
func Suppressed(recipient string, action SuppressionAction) DispatchOutcome {
	return DispatchOutcome{Recipient: recipient, Status: OutcomeSuppressed, Action: &action}
}

// Failed builds a terminal failure outcome.
func Failed(recipient string, err error) DispatchOutcome {
	return DispatchOutcome{Recipient: recipient, Status: OutcomeFailed, Err: err}
}
