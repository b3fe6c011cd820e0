package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/sidecar/internal/events"
	"github.com/smazurov/sidecar/internal/notifier"
)

const eventBufferSize = 64

// registerEventRoutes registers the UI event stream. The first connected
// client attaches the notifier's bus target and the last one detaches it.
func (s *Server) registerEventRoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Supervisor state, port discovery, the navigation directive and backend exit. " +
			"The current state (and port, when known) is sent on connect.",
		Tags: []string{"events"},
	}, map[string]any{
		"state-changed":  events.StateChangedEvent{},
		"port-ready":     events.PortReadyEvent{},
		"navigate":       events.NavigateEvent{},
		"process-exited": events.ProcessExitedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, eventBufferSize)

		// Subscribe before the snapshot so nothing falls in between.
		// State changes may be dropped for a slow client; the one-shot events may not.
		unsubscribers := []func(){
			events.SubscribeToChannel[events.StateChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannelContext[events.PortReadyEvent](ctx, s.eventBus, eventCh),
			events.SubscribeToChannelContext[events.NavigateEvent](ctx, s.eventBus, eventCh),
			events.SubscribeToChannelContext[events.ProcessExitedEvent](ctx, s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		s.clientConnected()
		defer s.clientDisconnected()

		for _, ev := range s.snapshot() {
			if err := send.Data(ev); err != nil {
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-eventCh:
				if err := send.Data(ev); err != nil {
					return
				}
			}
		}
	})
}

// snapshot returns the events a newly connected client needs to catch up.
func (s *Server) snapshot() []any {
	now := time.Now().Format(time.RFC3339)
	var out []any

	var id string
	if s.supervisor != nil {
		id = s.supervisor.ID()
		state := string(s.supervisor.State())
		out = append(out, events.StateChangedEvent{InstanceID: id, From: state, To: state, Timestamp: now})
	}

	if s.query != nil {
		if port, err := s.query.GetPort(); err == nil {
			out = append(out, events.PortReadyEvent{InstanceID: id, Port: port, URL: notifier.URL(port), Timestamp: now})
		}
	}
	return out
}
