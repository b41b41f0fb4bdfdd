// Package events publishes applied suppression actions to an SQS queue so
// downstream systems can mirror the suppression list.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/ignite/postmark-bridge/internal/domain"
)

const publishTimeout = 5 * time.Second

// SuppressionEvent is the JSON message body.
type SuppressionEvent struct {
	Action    string    `json:"action"`
	Email     string    `json:"email"`
	Channel   string    `json:"channel"`
	Reason    string    `json:"reason,omitempty"`
	Comment   string    `json:"comment,omitempty"`
	EmailID   *int64    `json:"email_id,omitempty"`
	MessageID string    `json:"message_id,omitempty"`
	Source    string    `json:"source,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SQSAPI is the subset of the SQS client the publisher uses.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Publisher sends one SQS message per applied action.
type Publisher struct {
	client   SQSAPI
	queueURL string
	now      func() time.Time
}

// NewPublisher creates a publisher for queueURL.
func NewPublisher(client SQSAPI, queueURL string) *Publisher {
	return &Publisher{client: client, queueURL: queueURL, now: time.Now}
}

// Publish sends the action synchronously, bounded by a short timeout so a
// slow queue cannot hold a webhook request open.
func (p *Publisher) Publish(ctx context.Context, action domain.SuppressionAction) error {
	channel := action.Channel
	if channel == "" {
		channel = domain.DefaultChannel
	}
	evt := SuppressionEvent{
		Action:    action.Kind.String(),
		Email:     action.Address,
		Channel:   channel,
		Reason:    string(action.Reason),
		Comment:   action.Comment,
		EmailID:   action.CorrelationID,
		MessageID: action.MessageID,
		Source:    string(action.Source),
		Timestamp: p.now().UTC(),
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal suppression event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"action": {DataType: aws.String("String"), StringValue: aws.String(evt.Action)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish suppression event: %w", err)
	}
	return nil
}
