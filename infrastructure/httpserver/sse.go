package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"rendezvous/errors"
	"rendezvous/runtime"
)

// handleEvents establishes the long-lived server-to-client push stream for
// one registered session. It blocks until the client disconnects or the
// handle is torn down, then funnels into the same cleanup as explicit leave.
//
// This goroutine is the only writer of the response: payload frames and
// keep-alive comments are serialized through the one select loop, so events
// from the same sender are never reordered in transit.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	room := r.URL.Query().Get("room")
	clientID := r.URL.Query().Get("clientId")
	if room == "" || clientID == "" {
		writeError(w, http.StatusBadRequest, "room and clientId query params are required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	handle := runtime.NewStreamHandle(s.log, s.streamBufferSize)
	if err := s.service.Attach(room, clientID, handle); err != nil {
		writeError(w, errors.MapToHTTPStatus(err), err.Error())
		return
	}
	// Teardown is keyed to this loop's own handle. If a newer stream has
	// replaced it in the meantime the removal is a no-op and the session
	// lives on. The request context is already canceled by the time the
	// defer runs, so teardown gets its own.
	defer s.service.Disconnect(context.Background(), room, clientID, handle)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	// The server owns the keep-alive: a comment frame on a fixed interval
	// stops intermediaries from presuming the idle stream dead.
	ticker := time.NewTicker(s.keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-handle.Done():
			return
		case e := <-handle.Events():
			data, err := json.Marshal(e)
			if err != nil {
				s.log.Error("Failed to encode event", "kind", e.Kind(), "err", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Kind(), data); err != nil {
				// A write failure is an implicit disconnect; the deferred
				// teardown handles the rest.
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprintf(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
