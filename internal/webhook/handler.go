// Package webhook receives Postmark delivery-event notifications and turns
// them into suppression actions. One request yields one classification, at
// most one action and one plain-text response; nothing runs in the background.
package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/ignite/postmark-bridge/internal/domain"
	"github.com/ignite/postmark-bridge/internal/pkg/httputil"
	"github.com/ignite/postmark-bridge/internal/pkg/logger"
)

// ProcessedMessage is the body returned for every accepted notification.
const ProcessedMessage = "Postmark Callback processed"

const maxBodyBytes = 5 * 1024 * 1024

// ActionApplier is the suppression store. Apply must be idempotent for
// repeated adds of the same address and channel.
type ActionApplier interface {
	Apply(ctx context.Context, action domain.SuppressionAction) error
}

// Handler serves the Postmark webhook endpoint.
type Handler struct {
	store ActionApplier
	log   *logger.Logger
}

// NewHandler creates a webhook handler applying actions to store.
func NewHandler(store ActionApplier, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Default()
	}
	return &Handler{store: store, log: log.With("component", "postmark_webhook")}
}

// Routes returns a router serving only the webhook endpoint.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	h.Register(r)
	return r
}

// Register mounts the webhook at POST /webhooks/postmark on r.
func (h *Handler) Register(r chi.Router) {
	r.Post("/webhooks/postmark", h.HandlePostmark)
}

// HandlePostmark processes one notification.
func (h *Handler) HandlePostmark(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithContext(r.Context(), h.log)

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	raw, err := io.ReadAll(r.Body)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		h.log.Warn("body exceeds size limit", "limit_bytes", tooLarge.Limit)
		httputil.Text(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}
	if err != nil {
		h.log.Error("failed to read body", "error", err)
		httputil.BadRequest(w, "Failed to read body")
		return
	}

	ev, err := Classify(raw, r.Header.Get("Content-Type"))
	if err != nil {
		h.rejectClassification(w, err)
		return
	}

	h.log.Info("Postmark callback received",
		"record_type", ev.RecordType,
		"recipient", ev.Recipient,
		"message_id", ev.MessageID,
		"tag", ev.Tag,
		"message_stream", ev.MessageStream,
		"metadata_keys", strings.Join(metadataKeys(ev.Metadata), ","),
	)

	action, err := Resolve(ctx, ev)
	var unknown *UnknownReasonError
	var missing *MissingRecipientError
	switch {
	case errors.As(err, &missing):
		h.log.Warn("notification rejected", "record_type", ev.RecordType, "error", err)
		httputil.BadRequest(w, "Missing recipient")
		return
	case errors.As(err, &unknown):
		h.log.Warn("unknown suppression reason, no action taken",
			"record_type", unknown.RecordType, "reason", unknown.Reason, "recipient", ev.Recipient)
		httputil.Text(w, http.StatusOK, ProcessedMessage)
		return
	case err != nil:
		h.rejectClassification(w, err)
		return
	}

	if action.Kind == domain.ActionNone {
		h.log.Info("decision skipped", "record_type", ev.RecordType, "reason", ev.Reason, "recipient", ev.Recipient)
		httputil.Text(w, http.StatusOK, ProcessedMessage)
		return
	}

	if err := h.store.Apply(ctx, action); err != nil {
		httputil.InternalError(w, err)
		return
	}

	h.log.Info("decision made",
		"action", action.Kind,
		"recipient", action.Address,
		"reason", action.Reason,
		"email_id", formatEmailID(action.CorrelationID),
	)
	httputil.Text(w, http.StatusOK, ProcessedMessage)
}

func (h *Handler) rejectClassification(w http.ResponseWriter, err error) {
	var malformed *MalformedPayloadError
	var unsupported *UnsupportedRecordTypeError
	switch {
	case errors.As(err, &malformed):
		h.log.Error("payload decoding failed", "error", err)
		httputil.BadRequest(w, malformed.Message)
	case errors.As(err, &unsupported):
		h.log.Warn("unsupported record type", "record_type", unsupported.RecordType)
		httputil.BadRequest(w, "Unsupported RecordType: "+unsupported.RecordType)
	default:
		httputil.InternalError(w, err)
	}
}

func metadataKeys(md map[string]string) []string {
	keys := make([]string, 0, len(md))
	for k := range md {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatEmailID(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}
