package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/moogar0880/problems"

	"quill/internal/api"
	"quill/internal/logging"
)

// handleEvents streams workflow.updated events as server-sent events. The
// first event is the current workflow so a client never starts blind.
func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.daemon.events == nil {
		writeProblem(w, problems.NewStatusProblem(http.StatusServiceUnavailable).
			WithInstance(r.URL.Path).
			WithType("events_unavailable").
			WithDetail("event stream is not enabled"))
		return
	}
	id := r.PathValue("id")
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Subscribe before loading so no update between the two is lost.
	stream, err := s.daemon.events.Subscribe(ctx, id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	wf, err := s.daemon.engine.GetWorkflow(ctx, id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.log().Debug("clear write deadline failed", logging.Error(err))
	}
	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, rc, api.NewEvent(wf, time.Now())); err != nil {
		return
	}

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closing:
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		case evt, ok := <-stream:
			if !ok {
				return
			}
			if err := writeEvent(w, rc, evt); err != nil {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, rc *http.ResponseController, evt api.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, data); err != nil {
		return err
	}
	return rc.Flush()
}
