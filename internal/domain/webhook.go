package domain

// RecordType is Postmark's top-level webhook discriminator.
type RecordType string

const (
	RecordSubscriptionChange RecordType = "SubscriptionChange"
	RecordBounce             RecordType = "Bounce"
)

// WebhookEvent is a normalized inbound notification.
type WebhookEvent struct {
	RecordType      RecordType        `json:"record_type"`
	RawRecordType   string            `json:"raw_record_type,omitempty"`
	Recipient       string            `json:"recipient"`
	Reason          string            `json:"reason"`
	SuppressSending bool              `json:"suppress_sending"`
	MessageID       string            `json:"message_id,omitempty"`
	Tag             string            `json:"tag,omitempty"`
	MessageStream   string            `json:"message_stream,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`

	// Bounce detail
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Details     string `json:"details,omitempty"`
	Content     string `json:"content,omitempty"`
	BouncedAt   string `json:"bounced_at,omitempty"`
}
