package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/ignite/postmark-bridge/internal/domain"
	"github.com/ignite/postmark-bridge/internal/pkg/httputil"
	"github.com/ignite/postmark-bridge/internal/service/suppression"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// SuppressionReader is the read side of the suppression service.
type SuppressionReader interface {
	IsSuppressed(ctx context.Context, email, channel string) (bool, error)
	List(ctx context.Context, filter suppression.ListFilter) ([]domain.Suppression, int, error)
	GetStats(ctx context.Context) (*suppression.Stats, error)
}

// SuppressionHandlers serves the read-only suppression endpoints.
type SuppressionHandlers struct {
	svc SuppressionReader
}

type listResponse struct {
	Items  []domain.Suppression `json:"items"`
	Total  int                  `json:"total"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

// List returns a page of suppressions.
//
//	GET /api/suppressions?reason=bounced&source=postmark_webhook&channel=email&limit=50&offset=0
func (h *SuppressionHandlers) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), defaultListLimit)
	if err != nil || limit < 1 {
		httputil.JSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid limit", Code: "invalid_param"})
		return
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset, err := intParam(q.Get("offset"), 0)
	if err != nil || offset < 0 {
		httputil.JSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid offset", Code: "invalid_param"})
		return
	}

	items, total, err := h.svc.List(r.Context(), suppression.ListFilter{
		Channel: q.Get("channel"),
		Reason:  q.Get("reason"),
		Source:  q.Get("source"),
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if items == nil {
		items = []domain.Suppression{}
	}
	httputil.OK(w, listResponse{Items: items, Total: total, Limit: limit, Offset: offset})
}

// Stats returns suppression counts by reason and source.
//
//	GET /api/suppressions/stats
func (h *SuppressionHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.GetStats(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, stats)
}

// Check reports whether one address is suppressed.
//
//	GET /api/suppressions/check?email=a@example.com&channel=email
func (h *SuppressionHandlers) Check(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		httputil.JSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "email is required", Code: "missing_param"})
		return
	}
	channel := r.URL.Query().Get("channel")
	if channel == "" {
		channel = domain.DefaultChannel
	}

	suppressed, err := h.svc.IsSuppressed(r.Context(), email, channel)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{
		"email":      strings.ToLower(email),
		"channel":    channel,
		"suppressed": suppressed,
	})
}

func intParam(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
