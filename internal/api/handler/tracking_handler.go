package handler

import (
	"net/http"

	"go-der-dashboard/internal/model"
	"go-der-dashboard/internal/poller"
	"go-der-dashboard/pkg/router"
)

// ListNotifications returns the notifications still visible, or the journal history
// @Summary List notifications
// @Tags notifications
// @Produce json
// @Param history query bool false "Read from the journal instead of the active set"
// @Param limit query int false "History size" default(100)
// @Success 200 {object} map[string]interface{} "Notifications"
// @Router /notifications [get]
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("history") == "true" && h.Journal != nil {
		limit := queryLimit(r, 100)
		history, err := h.Journal.ListNotifications(limit)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"notifications": history,
			"count":         len(history),
			"limit":         limit,
		})
		return
	}

	active := h.Notifications.Active()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": active,
		"count":         len(active),
	})
}

// ListMutations returns the mutation journal
// @Summary List mutations
// @Tags mutations
// @Produce json
// @Param type query string false "Entity type filter"
// @Param limit query int false "Maximum records" default(100)
// @Success 200 {object} map[string]interface{} "Mutation records"
// @Failure 404 {object} map[string]interface{} "Journal disabled"
// @Router /mutations [get]
func (h *Handler) ListMutations(w http.ResponseWriter, r *http.Request) {
	if h.Journal == nil {
		http.Error(w, "Journal disabled", http.StatusNotFound)
		return
	}
	var t model.Type
	if s := r.URL.Query().Get("type"); s != "" {
		parsed, err := model.ParseType(s)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		t = parsed
	}
	limit := queryLimit(r, 100)
	records, err := h.Journal.ListMutations(t, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"mutations": records,
		"count":     len(records),
		"limit":     limit,
	})
}

// GetMutation returns one mutation record
// @Summary Get mutation
// @Tags mutations
// @Produce json
// @Param id path string true "Mutation ID"
// @Success 200 {object} model.MutationRecord
// @Failure 404 {object} map[string]interface{} "Mutation not found"
// @Router /mutations/{id} [get]
func (h *Handler) GetMutation(w http.ResponseWriter, r *http.Request) {
	if h.Journal == nil {
		http.Error(w, "Journal disabled", http.StatusNotFound)
		return
	}
	rec, err := h.Journal.GetMutation(router.Param(r, 0))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// GetPollerStatus shows which ids are being polled
// @Summary Poller status
// @Tags poller
// @Produce json
// @Success 200 {object} map[string]interface{} "Tracking status per pollable type"
// @Router /poller [get]
func (h *Handler) GetPollerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"interval": h.Poller.Interval().String(),
		"types":    h.Poller.Status(),
	})
}

type tickResult struct {
	Type      model.Type `json:"type"`
	Requested []string   `json:"requested"`
	Returned  int        `json:"returned"`
	Completed []string   `json:"completed"`
	Skipped   string     `json:"skipped,omitempty"`
	Error     string     `json:"error,omitempty"`
}

func tickResults(rep poller.Report) []tickResult {
	out := make([]tickResult, 0, len(rep.Types))
	for _, tr := range rep.Types {
		res := tickResult{
			Type:      tr.Type,
			Requested: tr.Requested,
			Returned:  tr.Returned,
			Completed: tr.Completed,
			Skipped:   tr.Skipped,
		}
		if tr.Err != nil {
			res.Error = tr.Err.Error()
		}
		out = append(out, res)
	}
	return out
}

// TickPoller runs one poll cycle now
// @Summary Poll now
// @Description Run one poll cycle immediately instead of waiting for the next tick
// @Tags poller
// @Produce json
// @Success 200 {object} map[string]interface{} "Tick report"
// @Router /poller/tick [post]
func (h *Handler) TickPoller(w http.ResponseWriter, r *http.Request) {
	rep := h.Poller.Tick(beoContext(r))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"requests": rep.Requests(),
		"types":    tickResults(rep),
	})
}
