package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"git.home.luguber.info/inful/bedshift/internal/adherence"
	"git.home.luguber.info/inful/bedshift/internal/events"
)

// StreamKeepAlive is the idle interval after which the event stream sends a
// comment line to keep intermediaries from closing it.
var StreamKeepAlive = 30 * time.Second

// handleEvents streams adherence events as Server-Sent Events until the
// client disconnects or the bus closes.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.Error(w, r, ErrBadRequest.WithContext("reason", "streaming unsupported"), nil)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	ch, unsubscribe := events.Subscribe[adherence.Event](s.bus, 16)
	defer unsubscribe()

	slog.Info("Adherence event stream opened", slog.String("remote", r.RemoteAddr))
	_, _ = fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	keepAlive := time.NewTicker(StreamKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			slog.Info("Adherence event stream closed (client disconnect)")
			return
		case <-s.streams.Done():
			slog.Info("Adherence event stream closed (server shutdown)")
			return
		case <-keepAlive.C:
			_, _ = fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case e, ok := <-ch:
			if !ok {
				slog.Info("Adherence event stream closed (bus closed)")
				return
			}
			if err := writeSSE(w, e); err != nil {
				slog.Error("Failed to marshal SSE event", slog.String("error", err.Error()))
				continue
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, e adherence.Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, b)
	return err
}
