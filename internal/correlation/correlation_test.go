package correlation

import (
	"bytes"
	"context"
	"testing"

	"github.com/ignite/postmark-bridge/internal/domain"
	"github.com/ignite/postmark-bridge/internal/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromHeaders_EmailIDAndTracking(t *testing.T) {
	info := FromHeaders(context.Background(), []domain.Header{
		{Name: "X-EMAIL-ID", Value: " 7 "},
		{Name: "X-Tracking-Campaign", Value: "spring"},
		{Name: "X-Other", Value: "ignored"},
	})

	require.NotNil(t, info.EmailID)
	assert.Equal(t, int64(7), *info.EmailID)
	assert.Equal(t, map[string]string{"campaign": "spring"}, info.Auxiliary)
}

func TestFromMetadata_EmailID(t *testing.T) {
	info := FromMetadata(context.Background(), map[string]string{
		"email_id":          "42",
		"tracking_Segment":  "vip",
		"unrelated_setting": "x",
	})

	require.NotNil(t, info.EmailID)
	assert.Equal(t, int64(42), *info.EmailID)
	assert.Equal(t, map[string]string{"segment": "vip"}, info.Auxiliary)
}

func TestExtract_NonNumericIsSoftFailure(t *testing.T) {
	var buf bytes.Buffer
	ctx := logger.WithContext(context.Background(), logger.New(&buf, logger.DEBUG, false))

	info := Extract(ctx, []Pair{
		{Key: "email_id", Value: "abc"},
		{Key: "tracking_list", Value: "news"},
	})

	assert.Nil(t, info.EmailID)
	assert.Equal(t, "news", info.Auxiliary["list"])
	assert.Contains(t, buf.String(), "non-numeric email id")
}

func TestExtract_FirstValidIDWins(t *testing.T) {
	info := Extract(context.Background(), []Pair{
		{Key: "X-Email-ID", Value: "nope"},
		{Key: "email-id", Value: "11"},
		{Key: "email_id", Value: "12"},
	})

	require.NotNil(t, info.EmailID)
	assert.Equal(t, int64(11), *info.EmailID)
}

func TestExtract_Empty(t *testing.T) {
	info := Extract(context.Background(), nil)
	assert.Nil(t, info.EmailID)
	assert.Empty(t, info.Auxiliary)
}

func TestIsCorrelationKey(t *testing.T) {
	for _, k := range []string{"X-Email-ID", "x-email-id", "email_id", "EMAIL-ID"} {
		assert.True(t, IsCorrelationKey(k), k)
	}
	for _, k := range []string{"X-Email-IDs", "emailid", "X-PM-Metadata-email_id"} {
		assert.False(t, IsCorrelationKey(k), k)
	}
}
