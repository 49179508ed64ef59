package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/chatstream-backend/internal/platform/apierr"
	"github.com/yungbote/chatstream-backend/internal/platform/logger"
)

const (
	DefaultHeartbeat = 15 * time.Second
	DoneSentinel     = "[DONE]"
)

type errorFrame struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Serve writes the emitter to w as text/event-stream until the emitter terminates or the
// client goes away. Chunks are "message" events; the stream ends with a single "done" or
// "error" event.
func Serve(w http.ResponseWriter, r *http.Request, em *Emitter, heartbeat time.Duration, log *logger.Logger) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		events, finished := em.Drain()
		for _, ev := range events {
			writeEvent(w, ev, log)
		}
		if len(events) > 0 {
			flusher.Flush()
		}
		if finished {
			return
		}

		select {
		case <-ctx.Done():
			log.Debug("SSE client context done", "err", ctx.Err())
			em.Detach()
			return
		case <-ticker.C:
			_, _ = fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case <-em.Ready():
		}
	}
}

func writeEvent(w http.ResponseWriter, ev Event, log *logger.Logger) {
	switch ev.Kind {
	case EventChunk:
		_, _ = fmt.Fprint(w, "event: message\n")
		// Each line of a multi-line chunk needs its own data field.
		for _, line := range strings.Split(ev.Data, "\n") {
			_, _ = fmt.Fprintf(w, "data: %s\n", line)
		}
		_, _ = fmt.Fprint(w, "\n")
	case EventDone:
		_, _ = fmt.Fprintf(w, "event: done\ndata: %s\n\n", DoneSentinel)
	case EventError:
		ae := apierr.From(ev.Err, "stream_failed")
		b, err := json.Marshal(errorFrame{Message: ae.Error(), Code: ae.Code})
		if err != nil {
			log.Warn("Failed to marshal SSE error frame", "error", err)
			b = []byte(`{"message":"stream failed","code":"stream_failed"}`)
		}
		_, _ = fmt.Fprintf(w, "event: error\ndata: %s\n\n", b)
	}
}
