// Package redis stores the suppression list in Redis. Each entry is a hash
// keyed by channel and email; a sorted set indexes entries by creation time.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/postmark-bridge/internal/domain"
	"github.com/ignite/postmark-bridge/internal/service/suppression"
	goredis "github.com/redis/go-redis/v9"
)

const defaultPrefix = "postmark"

// suppressScript writes the entry only when no entry exists for the key.
var suppressScript = goredis.NewScript(`
	if redis.call("exists", KEYS[1]) == 1 then
		return 0
	end
	redis.call("hset", KEYS[1], unpack(ARGV, 3))
	redis.call("zadd", KEYS[2], ARGV[1], ARGV[2])
	return 1
`)

// SuppressionRepo implements suppression.Repository against Redis.
type SuppressionRepo struct {
	client *goredis.Client
	prefix string
}

// NewSuppressionRepo creates a Redis-backed suppression repository. Keys
// are namespaced under prefix ("postmark" when empty).
func NewSuppressionRepo(client *goredis.Client, prefix string) *SuppressionRepo {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &SuppressionRepo{client: client, prefix: prefix}
}

func (r *SuppressionRepo) entryKey(email, channel string) string {
	return fmt.Sprintf("%s:suppression:%s:%s", r.prefix, channel, email)
}

func (r *SuppressionRepo) indexKey() string {
	return r.prefix + ":suppressions"
}

func member(email, channel string) string { return channel + ":" + email }

func (r *SuppressionRepo) IsSuppressed(ctx context.Context, email, channel string) (bool, error) {
	n, err := r.client.Exists(ctx, r.entryKey(email, channel)).Result()
	if err != nil {
		return false, fmt.Errorf("check suppression: %w", err)
	}
	return n == 1, nil
}

func (r *SuppressionRepo) Suppress(ctx context.Context, s *domain.Suppression) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}

	emailID := ""
	if s.EmailID != nil {
		emailID = strconv.FormatInt(*s.EmailID, 10)
	}

	args := []interface{}{
		s.CreatedAt.UnixNano(), member(s.Email, s.Channel),
		"id", s.ID,
		"email", s.Email,
		"channel", s.Channel,
		"reason", string(s.Reason),
		"source", string(s.Source),
		"comment", s.Comment,
		"email_id", emailID,
		"message_id", s.MessageID,
		"created_at", s.CreatedAt.Format(time.RFC3339Nano),
	}
	keys := []string{r.entryKey(s.Email, s.Channel), r.indexKey()}
	if err := suppressScript.Run(ctx, r.client, keys, args...).Err(); err != nil {
		return fmt.Errorf("suppress: %w", err)
	}
	return nil
}

func (r *SuppressionRepo) Remove(ctx context.Context, email, channel string) error {
	var del *goredis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		del = p.Del(ctx, r.entryKey(email, channel))
		p.ZRem(ctx, r.indexKey(), member(email, channel))
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove suppression: %w", err)
	}
	if del.Val() == 0 {
		return suppression.ErrNotFound
	}
	return nil
}

// List scans the index newest first. Filtering happens client side, so it
// is intended for operator tooling rather than hot paths.
func (r *SuppressionRepo) List(ctx context.Context, f suppression.ListFilter) ([]domain.Suppression, int, error) {
	members, err := r.client.ZRevRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("list suppressions: %w", err)
	}

	cmds := make([]*goredis.MapStringStringCmd, len(members))
	_, err = r.client.Pipelined(ctx, func(p goredis.Pipeliner) error {
		for i, m := range members {
			cmds[i] = p.HGetAll(ctx, r.prefix+":suppression:"+m)
		}
		return nil
	})
	if err != nil && !errors.Is(err, goredis.Nil) {
		return nil, 0, fmt.Errorf("load suppressions: %w", err)
	}

	var matched []domain.Suppression
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		s := fromHash(fields)
		if (f.Channel != "" && s.Channel != f.Channel) ||
			(f.Reason != "" && string(s.Reason) != f.Reason) ||
			(f.Source != "" && string(s.Source) != f.Source) {
			continue
		}
		matched = append(matched, s)
	}

	total := len(matched)
	start := min(max(f.Offset, 0), total)
	end := total
	if f.Limit > 0 {
		end = min(start+f.Limit, total)
	}
	return matched[start:end], total, nil
}

func (r *SuppressionRepo) Count(ctx context.Context) (int, error) {
	n, err := r.client.ZCard(ctx, r.indexKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("count suppressions: %w", err)
	}
	return int(n), nil
}

func fromHash(h map[string]string) domain.Suppression {
	s := domain.Suppression{
		ID:        h["id"],
		Email:     h["email"],
		Channel:   h["channel"],
		Reason:    domain.SuppressionReason(h["reason"]),
		Source:    domain.SuppressionSource(h["source"]),
		Comment:   h["comment"],
		MessageID: h["message_id"],
	}
	if id, err := strconv.ParseInt(h["email_id"], 10, 64); err == nil {
		s.EmailID = &id
	}
	if t, err := time.Parse(time.RFC3339Nano, h["created_at"]); err == nil {
		s.CreatedAt = t
	}
	return s
}
