package notifier

import (
	"errors"
	"time"

	"github.com/smazurov/sidecar/internal/events"
)

// BusTarget publishes the directive as a NavigateEvent.
type BusTarget struct {
	bus events.Publisher
}

// NewBusTarget creates a target that publishes on bus.
func NewBusTarget(bus events.Publisher) *BusTarget {
	return &BusTarget{bus: bus}
}

// Navigate implements Target.
func (b *BusTarget) Navigate(url string) error {
	b.bus.Publish(events.NavigateEvent{
		URL:       url,
		Script:    Script(url),
		Timestamp: time.Now().Format(time.RFC3339),
	})
	return nil
}

// ScriptTarget hands a location-changing script to a webview evaluator.
type ScriptTarget struct {
	eval func(script string) error
}

// NewScriptTarget creates a target that runs scripts through eval.
func NewScriptTarget(eval func(script string) error) *ScriptTarget {
	return &ScriptTarget{eval: eval}
}

// Navigate implements Target.
func (s *ScriptTarget) Navigate(url string) error {
	if s.eval == nil {
		return errors.New("no script evaluator")
	}
	return s.eval(Script(url))
}
