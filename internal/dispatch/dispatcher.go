// Package dispatch sends outbound messages through Postmark, one provider
// call per logical recipient, and classifies each synchronous result.
package dispatch

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/ignite/postmark-bridge/internal/correlation"
	"github.com/ignite/postmark-bridge/internal/domain"
	"github.com/ignite/postmark-bridge/internal/pkg/logger"
	"github.com/ignite/postmark-bridge/internal/postmark"
	"golang.org/x/sync/errgroup"
)

const defaultSuppressionMessage = "Recipient on suppression list"

// Provider sends one wire payload. Implementations must be safe for
// concurrent use when the dispatcher runs with more than one worker.
type Provider interface {
	Send(ctx context.Context, payload *postmark.WirePayload) (*postmark.SendResponse, error)
}

// ActionSink receives suppression actions recovered from send-time errors.
type ActionSink interface {
	Apply(ctx context.Context, action domain.SuppressionAction) error
}

// Dispatcher turns one OutboundMessage into per-recipient outcomes.
type Dispatcher struct {
	builder  *postmark.Builder
	provider Provider
	sink     ActionSink
	workers  int
	log      *logger.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithSink forwards every Suppressed action to sink.
func WithSink(sink ActionSink) Option {
	return func(d *Dispatcher) { d.sink = sink }
}

// WithWorkers bounds fanout parallelism. Values below 1 mean sequential.
func WithWorkers(n int) Option {
	return func(d *Dispatcher) { d.workers = n }
}

// WithLogger sets the dispatcher's logger.
func WithLogger(l *logger.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// New creates a dispatcher.
func New(builder *postmark.Builder, provider Provider, opts ...Option) *Dispatcher {
	d := &Dispatcher{builder: builder, provider: provider, workers: 1, log: logger.Default()}
	for _, opt := range opts {
		opt(d)
	}
	if d.workers < 1 {
		d.workers = 1
	}
	d.log = d.log.With("component", "postmark_dispatch")
	return d
}

// Dispatch sends msg. Without per-recipient tokens it performs a single
// send and returns one outcome. With tokens it fans out, one send per
// token key, and returns outcomes in fanout order. A failure is confined
// to its own outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *domain.OutboundMessage) []domain.DispatchOutcome {
	ctx = logger.WithContext(ctx, d.log)

	if len(msg.Tokens) == 0 {
		return []domain.DispatchOutcome{d.sendOne(ctx, msg, msg.Recipients())}
	}

	sends := Plan(msg)
	outcomes := make([]domain.DispatchOutcome, len(sends))

	var g errgroup.Group
	g.SetLimit(d.workers)
	for i, s := range sends {
		if err := ctx.Err(); err != nil {
			outcomes[i] = cancelled(outcomeRecipient(s.Recipients), err)
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes[i] = cancelled(outcomeRecipient(s.Recipients), err)
				return nil
			}
			outcomes[i] = d.sendOne(ctx, s.Message, s.Recipients)
			return nil
		})
	}
	_ = g.Wait()

	d.log.Debug("fanout complete", "recipients", len(sends))
	return outcomes
}

// Send is one provider call planned for a message.
type Send struct {
	Message    *domain.OutboundMessage
	Recipients []domain.Address
}

// Plan expands msg into the provider calls Dispatch makes, in outcome
// order. A message with tokens yields one personalized clone per token key.
func Plan(msg *domain.OutboundMessage) []Send {
	if len(msg.Tokens) == 0 {
		return []Send{{Message: msg, Recipients: msg.Recipients()}}
	}
	targets := fanoutTargets(msg)
	sends := make([]Send, 0, len(targets))
	for _, target := range targets {
		clone := personalize(msg, target, msg.Tokens[target.key])
		sends = append(sends, Send{Message: clone, Recipients: clone.To})
	}
	return sends
}

func (d *Dispatcher) sendOne(ctx context.Context, msg *domain.OutboundMessage, recipients []domain.Address) domain.DispatchOutcome {
	label := outcomeRecipient(recipients)

	payload, err := d.builder.Build(ctx, msg, recipients)
	if err != nil {
		d.log.Error("payload build failed", "recipient", label, "error", err)
		return domain.Failed(label, err)
	}

	resp, err := d.provider.Send(ctx, payload)
	if err == nil {
		if resp == nil || resp.MessageID == "" {
			err = &postmark.TransportError{Message: "response carried no MessageID"}
		} else {
			d.log.Info("message sent", "recipient", label, "message_id", resp.MessageID, "stream", payload.MessageStream)
			return domain.Sent(label, resp.MessageID)
		}
	}

	var apiErr *postmark.APIError
	if errors.As(err, &apiErr) && apiErr.InactiveRecipient() {
		return d.resyncSuppression(ctx, msg, recipients, label, apiErr)
	}

	terr := asTransportError(err)
	d.log.Error("send failed",
		"recipient", label,
		"status", terr.StatusCode,
		"error_code", terr.ErrorCode,
		"connectivity", terr.Connectivity,
		"error", terr,
	)
	return domain.Failed(label, terr)
}

// resyncSuppression treats Postmark's suppression list as authoritative:
// the recipient is suppressed locally instead of failing the send.
func (d *Dispatcher) resyncSuppression(ctx context.Context, msg *domain.OutboundMessage, recipients []domain.Address, label string, apiErr *postmark.APIError) domain.DispatchOutcome {
	address := "unknown"
	if len(recipients) > 0 {
		address = recipients[0].Address
	}

	reason := apiErr.Message
	if reason == "" {
		reason = defaultSuppressionMessage
	}

	emailID := correlation.FromHeaders(ctx, msg.Headers).EmailID
	action := domain.AddSuppression(address, domain.ReasonBounced, "provider suppression: "+reason, emailID)
	action.Source = domain.SourceSendTime

	d.log.Warn("recipient suppressed at Postmark, re-synced to local suppression list",
		"recipient", address,
		"email_id", formatEmailID(emailID),
		"postmark_error", apiErr.Message,
		"postmark_error_code", apiErr.ErrorCode,
		"note", "remove from the Postmark suppression list if the local reactivation was intentional",
	)

	if d.sink != nil {
		if err := d.sink.Apply(ctx, action); err != nil {
			d.log.Error("suppression sync failed", "recipient", address, "error", err)
		}
	}
	return domain.Suppressed(label, action)
}

func asTransportError(err error) *postmark.TransportError {
	var terr *postmark.TransportError
	if errors.As(err, &terr) {
		return terr
	}
	var apiErr *postmark.APIError
	if errors.As(err, &apiErr) {
		return &postmark.TransportError{StatusCode: apiErr.StatusCode, ErrorCode: apiErr.ErrorCode, Message: apiErr.Message, Err: err}
	}
	return &postmark.TransportError{
		Message:      err.Error(),
		Connectivity: errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded),
		Err:          err,
	}
}

func cancelled(recipient string, err error) domain.DispatchOutcome {
	return domain.Failed(recipient, &postmark.TransportError{Connectivity: true, Err: err})
}

type fanoutTarget struct {
	domain.Address
	key string
}

// fanoutTargets orders token keys by their position in To, Cc, Bcc, then
// appends keys naming no listed recipient in sorted order.
func fanoutTargets(msg *domain.OutboundMessage) []fanoutTarget {
	keys := make([]string, 0, len(msg.Tokens))
	for key := range msg.Tokens {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	used := make(map[string]bool, len(keys))
	targets := make([]fanoutTarget, 0, len(keys))

	for _, r := range msg.Recipients() {
		key, ok := tokenKey(keys, used, r.Address)
		if !ok {
			continue
		}
		used[key] = true
		targets = append(targets, fanoutTarget{Address: r, key: key})
	}

	for _, key := range keys {
		if !used[key] {
			targets = append(targets, fanoutTarget{Address: domain.Address{Address: key}, key: key})
		}
	}
	return targets
}

// tokenKey binds address to an unused key: the exact key first, else the
// first case-insensitive match in sorted key order.
func tokenKey(keys []string, used map[string]bool, address string) (string, bool) {
	for _, key := range keys {
		if key == address && !used[key] {
			return key, true
		}
	}
	for _, key := range keys {
		if !used[key] && strings.EqualFold(key, address) {
			return key, true
		}
	}
	return "", false
}

// personalize clones msg for a single recipient and substitutes its tokens
// in the subject and both bodies.
func personalize(msg *domain.OutboundMessage, target fanoutTarget, tokens map[string]string) *domain.OutboundMessage {
	clone := msg.Clone()
	clone.To = []domain.Address{target.Address}
	clone.Cc = nil
	clone.Bcc = nil

	if r := tokenReplacer(tokens); r != nil {
		clone.Subject = r.Replace(clone.Subject)
		clone.HTMLBody = r.Replace(clone.HTMLBody)
		clone.TextBody = r.Replace(clone.TextBody)
	}
	return clone
}

// tokenReplacer substitutes placeholders longest first so a token that is
// a prefix of another never shadows it.
func tokenReplacer(tokens map[string]string) *strings.Replacer {
	keys := make([]string, 0, len(tokens))
	for k := range tokens {
		if k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, k, tokens[k])
	}
	return strings.NewReplacer(pairs...)
}

func outcomeRecipient(recipients []domain.Address) string {
	addrs := make([]string, 0, len(recipients))
	for _, r := range recipients {
		addrs = append(addrs, r.Address)
	}
	return strings.Join(addrs, ",")
}

func formatEmailID(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}
