package handler

import (
	"fmt"
	"net/http"

	"github.com/goccy/go-json"

	"go-der-dashboard/internal/model"
	"go-der-dashboard/internal/store"
	"go-der-dashboard/pkg/router"
)

const eventBuffer = 64

type sseEvent struct {
	name string
	data interface{}
}

// streamEvents writes events from ch as server-sent events until the client goes away
func (h *Handler) streamEvents(w http.ResponseWriter, r *http.Request, ch <-chan sseEvent) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			buf, err := json.Marshal(ev.data)
			if err != nil {
				h.logger().Warnw("Dropping unencodable event", "event", ev.name, "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, buf); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// offer queues ev without blocking the publisher; a slow client loses events
func (h *Handler) offer(ch chan sseEvent, ev sseEvent) {
	select {
	case ch <- ev:
	default:
		h.logger().Warnw("Event stream client is too slow, dropping event", "event", ev.name)
	}
}

// StreamModelEvents streams store changes of one type
// @Summary Stream model changes
// @Description Server-sent events, one per store mutation of the type. The event name is the operation.
// @Tags events
// @Produce text/event-stream
// @Param type path string true "Entity type"
// @Success 200 {string} string "Event stream"
// @Failure 400 {object} map[string]interface{} "Unknown type"
// @Router /events/{type} [get]
func (h *Handler) StreamModelEvents(w http.ResponseWriter, r *http.Request) {
	t, err := model.ParseType(router.Param(r, 0))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ch := make(chan sseEvent, eventBuffer)
	unsubscribe := h.Store.Subscribe(t, func(ev store.Event) {
		h.offer(ch, sseEvent{name: string(ev.Op), data: ev})
	})
	defer unsubscribe()

	h.streamEvents(w, r, ch)
}

// StreamNotifications streams notifications as they are raised
// @Summary Stream notifications
// @Tags events
// @Produce text/event-stream
// @Success 200 {string} string "Event stream"
// @Router /notifications/stream [get]
func (h *Handler) StreamNotifications(w http.ResponseWriter, r *http.Request) {
	ch := make(chan sseEvent, eventBuffer)
	unsubscribe := h.Notifications.Subscribe(func(n model.Notification) {
		h.offer(ch, sseEvent{name: string(n.Kind), data: n})
	})
	defer unsubscribe()

	h.streamEvents(w, r, ch)
}
