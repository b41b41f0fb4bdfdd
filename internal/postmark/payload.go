package postmark

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/ignite/postmark-bridge/internal/correlation"
	"github.com/ignite/postmark-bridge/internal/domain"
	"github.com/ignite/postmark-bridge/internal/pkg/logger"
)

// Header conventions recognized on outbound messages.
const (
	HeaderTag            = "X-PM-Tag"
	HeaderMessageStream  = "X-PM-Message-Stream"
	HeaderMetadataPrefix = "X-PM-Metadata-"

	trackingMetadataPrefix = "tracking_"
)

// ErrDuplicateTag is returned when a message carries more than one tag.
var ErrDuplicateTag = errors.New("postmark only allows a single tag per email")

// Headers already represented by typed payload fields.
var reservedHeaders = map[string]bool{
	"from":         true,
	"to":           true,
	"cc":           true,
	"bcc":          true,
	"subject":      true,
	"content-type": true,
	"sender":       true,
	"reply-to":     true,
}

// Builder converts outbound messages into Postmark wire payloads.
type Builder struct {
	defaultStream string
}

// NewBuilder creates a builder that falls back to defaultStream when a
// message selects no stream of its own.
func NewBuilder(defaultStream string) *Builder {
	return &Builder{defaultStream: defaultStream}
}

// Build maps msg onto a wire payload addressed to recipients. Recipients
// already listed in Cc or Bcc are left out of To.
func (b *Builder) Build(ctx context.Context, msg *domain.OutboundMessage, recipients []domain.Address) (*WirePayload, error) {
	payload := &WirePayload{
		From:        msg.From.String(),
		To:          joinAddresses(excludeAddresses(recipients, msg.Cc, msg.Bcc)),
		Cc:          joinAddresses(msg.Cc),
		Bcc:         joinAddresses(msg.Bcc),
		ReplyTo:     joinAddresses(msg.ReplyTo),
		Subject:     msg.Subject,
		TextBody:    msg.TextBody,
		HtmlBody:    msg.HTMLBody,
		Attachments: buildAttachments(msg.Attachments),
		Tag:         msg.Tag,
	}

	metadata := make(map[string]string, len(msg.Metadata)+1)
	for k, v := range msg.Metadata {
		metadata[k] = v
	}

	var stream, emailID string
	var haveEmailID bool
	for _, h := range msg.Headers {
		name := strings.ToLower(strings.TrimSpace(h.Name))

		switch {
		case reservedHeaders[name]:
			continue
		case name == strings.ToLower(HeaderTag):
			if payload.Tag != "" {
				return nil, ErrDuplicateTag
			}
			payload.Tag = h.Value
			continue
		case strings.HasPrefix(name, strings.ToLower(HeaderMetadataPrefix)):
			metadata[strings.TrimSpace(h.Name)[len(HeaderMetadataPrefix):]] = h.Value
			continue
		case name == strings.ToLower(HeaderMessageStream):
			stream = h.Value
			continue
		case name == strings.ToLower(correlation.HeaderEmailID):
			if !haveEmailID {
				emailID, haveEmailID = h.Value, true
			}
		}

		payload.Headers = append(payload.Headers, WireHeader{Name: h.Name, Value: h.Value})
	}

	if haveEmailID {
		metadata[correlation.MetadataEmailID] = emailID
	}

	info := correlation.FromHeaders(ctx, msg.Headers)
	for k, v := range info.Auxiliary {
		key := trackingMetadataPrefix + k
		if _, exists := metadata[key]; !exists {
			metadata[key] = v
		}
	}

	switch {
	case stream != "":
		payload.MessageStream = stream
	case msg.MessageStream != "":
		payload.MessageStream = msg.MessageStream
	default:
		payload.MessageStream = b.defaultStream
	}

	// Postmark rejects an empty Metadata object.
	if len(metadata) > 0 {
		payload.Metadata = metadata
		logger.FromContext(ctx).Debug("postmark: metadata captured", "keys", strings.Join(sortedKeys(metadata), ","))
	}

	return payload, nil
}

func excludeAddresses(recipients []domain.Address, exclude ...[]domain.Address) []domain.Address {
	out := make([]domain.Address, 0, len(recipients))
outer:
	for _, r := range recipients {
		for _, list := range exclude {
			for _, e := range list {
				if r.Equal(e) {
					continue outer
				}
			}
		}
		out = append(out, r)
	}
	return out
}

func joinAddresses(addrs []domain.Address) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		parts = append(parts, a.String())
	}
	return strings.Join(parts, ",")
}

func buildAttachments(in []domain.Attachment) []WireAttachment {
	if len(in) == 0 {
		return nil
	}
	out := make([]WireAttachment, 0, len(in))
	for _, a := range in {
		att := WireAttachment{Name: a.Name, Content: a.Content, ContentType: a.ContentType}
		if a.ContentID != "" {
			att.ContentID = "cid:" + strings.TrimPrefix(a.ContentID, "cid:")
		}
		out = append(out, att)
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
