package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"go-der-dashboard/internal/beo"
	"go-der-dashboard/internal/journal"
	"go-der-dashboard/internal/model"
	"go-der-dashboard/internal/notify"
	"go-der-dashboard/internal/optimistic"
	"go-der-dashboard/internal/poller"
	"go-der-dashboard/internal/store"
)

// Handler serves the dashboard gateway API. Journal may be nil.
type Handler struct {
	Store         *store.Store
	Poller        *poller.Poller
	Coordinator   *optimistic.Coordinator
	BEO           *beo.Client
	Loader        *beo.Loader
	Notifications *notify.Center
	Journal       *journal.DB
	Log           *zap.SugaredLogger
}

func (h *Handler) logger() *zap.SugaredLogger {
	if h.Log == nil {
		return zap.NewNop().Sugar()
	}
	return h.Log
}

// beoContext carries the caller's session to the BEO
func beoContext(r *http.Request) context.Context {
	ctx := r.Context()
	if cookie := r.Header.Get("Cookie"); cookie != "" {
		ctx = beo.WithSession(ctx, cookie)
	}
	return ctx
}

// mutationContext is beoContext detached from the client connection, so a mutation
// always settles into commit or rollback
func mutationContext(r *http.Request) context.Context {
	return context.WithoutCancel(beoContext(r))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// errorStatus maps domain errors onto HTTP statuses
func errorStatus(err error) int {
	var netErr *model.NetworkError
	switch {
	case errors.Is(err, model.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &netErr), errors.Is(err, model.ErrMalformedFrame):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger().Errorw("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]interface{}{"error": err.Error()})
}

// queryLimit reads ?limit=, falling back to def
func queryLimit(r *http.Request, def int) int {
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			return parsed
		}
	}
	return def
}
