package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/ignite/postmark-bridge/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (f *fakeSQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if _, ok := ctx.Deadline(); !ok {
		return nil, errors.New("publish without deadline")
	}
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("sqs-1")}, nil
}

func TestPublisher_Publish(t *testing.T) {
	client := &fakeSQS{}
	p := NewPublisher(client, "https://sqs.us-east-1.amazonaws.com/123/suppressions")
	p.now = func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }

	emailID := int64(42)
	action := domain.AddSuppression("a@x.com", domain.ReasonBounced, "hard bounce", &emailID)
	action.Source = domain.SourceWebhook

	require.NoError(t, p.Publish(context.Background(), action))
	require.Len(t, client.inputs, 1)

	in := client.inputs[0]
	assert.Equal(t, "https://sqs.us-east-1.amazonaws.com/123/suppressions", aws.ToString(in.QueueUrl))
	assert.Equal(t, "add", aws.ToString(in.MessageAttributes["action"].StringValue))

	var evt SuppressionEvent
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(in.MessageBody)), &evt))
	assert.Equal(t, "add", evt.Action)
	assert.Equal(t, "a@x.com", evt.Email)
	assert.Equal(t, domain.DefaultChannel, evt.Channel)
	assert.Equal(t, "bounced", evt.Reason)
	assert.Equal(t, "postmark_webhook", evt.Source)
	require.NotNil(t, evt.EmailID)
	assert.Equal(t, int64(42), *evt.EmailID)
	assert.True(t, evt.Timestamp.Equal(p.now()))
}

func TestPublisher_PublishError(t *testing.T) {
	p := NewPublisher(&fakeSQS{err: errors.New("throttled")}, "queue")

	err := p.Publish(context.Background(), domain.RemoveSuppression("a@x.com", ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}
