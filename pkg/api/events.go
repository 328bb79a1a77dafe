package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/adfharrison1/go-docstore/pkg/domain"
)

// EventMessage is the data payload of one server-sent change event
type EventMessage struct {
	domain.ChangeEvent
	Error string `json:"error,omitempty"`
}

// HandleEvents handles GET requests subscribing to change events as a
// server-sent event stream. ?collection=name restricts the stream to one
// collection. The stream ends when the client disconnects or the store shuts down.
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	only := r.URL.Query().Get("collection")

	events, cancel := h.store.Subscribe(0)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": subscribed\n\n")
	flusher.Flush()

	log.Printf("INFO: Event subscriber connected from %s", r.RemoteAddr)

	sent := 0
	for {
		select {
		case <-r.Context().Done():
			log.Printf("INFO: Event subscriber %s disconnected after %d events", r.RemoteAddr, sent)
			return
		case ev, open := <-events:
			if !open {
				return
			}
			if only != "" && ev.Collection != only {
				continue
			}
			msg := EventMessage{ChangeEvent: ev}
			if ev.Err != nil {
				msg.Error = ev.Err.Error()
			}
			data, err := json.Marshal(msg)
			if err != nil {
				log.Printf("ERROR: Failed to marshal event: %v", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
				return
			}
			flusher.Flush()
			sent++
		}
	}
}
