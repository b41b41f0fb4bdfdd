// Package correlation ties provider events back to the outbound send that
// produced them. The join key is the numeric email_id that outbound
// messages carry in the X-Email-ID header and that Postmark echoes back in
// webhook Metadata.
package correlation

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/ignite/postmark-bridge/internal/domain"
	"github.com/ignite/postmark-bridge/internal/pkg/logger"
)

const (
	// HeaderEmailID is the outbound header carrying the originating send record id.
	HeaderEmailID = "X-Email-ID"
	// MetadataEmailID is the provider metadata key the id is echoed under.
	MetadataEmailID = "email_id"

	headerTrackingPrefix   = "x-tracking-"
	metadataTrackingPrefix = "tracking_"
)

// Info is what a header or metadata collection says about its origin.
type Info struct {
	EmailID   *int64
	Auxiliary map[string]string
}

// Pair is one key/value entry of a header list or metadata map.
type Pair struct {
	Key   string
	Value string
}

// FromHeaders extracts correlation data from outbound message headers.
func FromHeaders(ctx context.Context, headers []domain.Header) Info {
	pairs := make([]Pair, 0, len(headers))
	for _, h := range headers {
		pairs = append(pairs, Pair{Key: h.Name, Value: h.Value})
	}
	return Extract(ctx, pairs)
}

// FromMetadata extracts correlation data from webhook metadata. Keys are
// visited in sorted order so the result does not depend on map iteration.
func FromMetadata(ctx context.Context, metadata map[string]string) Info {
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]Pair, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, Pair{Key: k, Value: metadata[k]})
	}
	return Extract(ctx, pairs)
}

// Extract scans pairs once. The first numeric correlation key wins; a
// non-numeric value is logged and skipped. Absence of correlation data is
// normal and yields an empty Info.
func Extract(ctx context.Context, pairs []Pair) Info {
	info := Info{Auxiliary: map[string]string{}}
	log := logger.FromContext(ctx)

	for _, p := range pairs {
		if IsCorrelationKey(p.Key) {
			if info.EmailID != nil {
				continue
			}
			id, err := strconv.ParseInt(strings.TrimSpace(p.Value), 10, 64)
			if err != nil {
				log.Warn("correlation: non-numeric email id ignored", "key", p.Key, "value", p.Value)
				continue
			}
			info.EmailID = &id
			continue
		}
		if key, ok := auxiliaryKey(p.Key); ok {
			info.Auxiliary[key] = p.Value
		}
	}
	return info
}

// IsCorrelationKey reports whether key names the email id, in header
// (X-Email-ID) or metadata (email_id) spelling.
func IsCorrelationKey(key string) bool {
	k := strings.ToLower(strings.TrimSpace(key))
	k = strings.TrimPrefix(k, "x-")
	k = strings.ReplaceAll(k, "-", "_")
	return k == MetadataEmailID
}

func auxiliaryKey(key string) (string, bool) {
	k := strings.ToLower(strings.TrimSpace(key))
	for _, prefix := range []string{headerTrackingPrefix, metadataTrackingPrefix} {
		if strings.HasPrefix(k, prefix) && len(k) > len(prefix) {
			return k[len(prefix):], true
		}
	}
	return "", false
}
