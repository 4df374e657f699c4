package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/porter-gw/porter/internal/events"
)

const keepAliveInterval = 15 * time.Second

// handleEvents handles GET /api/events as an SSE stream. Reconnecting
// clients replay missed events via Last-Event-ID.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	// Subscribe before replaying so nothing published in between is lost.
	ch, cancel := s.events.Subscribe()
	defer cancel()

	last := parseLastEventID(r.Header.Get("Last-Event-ID"))
	for _, ev := range s.events.Replay(last) {
		if err := writeSSE(w, ev); err != nil {
			return
		}
		last = ev.Seq
	}
	flusher.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev.Seq <= last {
				continue
			}
			if err := writeSSE(w, ev); err != nil {
				return
			}
			flusher.Flush()
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func parseLastEventID(v string) int64 {
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func writeSSE(w http.ResponseWriter, ev events.Event) error {
	if _, err := fmt.Fprintf(w, "id: %d\n", ev.Seq); err != nil {
		return err
	}
	if ev.Kind != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", ev.Kind); err != nil {
			return err
		}
	}
	// Payload is single-line JSON, one data: line suffices.
	if _, err := fmt.Fprintf(w, "data: %s\n\n", ev.Payload); err != nil {
		return err
	}
	return nil
}
