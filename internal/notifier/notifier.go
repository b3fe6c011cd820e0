// Package notifier tells the UI where the backend lives once its port is known.
//
// A Notifier fires at most once. It waits a settle delay before navigating
// because the backend prints its readiness line slightly before its listener
// accepts connections. The delay narrows that window; it does not close it.
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// LoopbackHost is the address the UI uses to reach the backend.
const LoopbackHost = "127.0.0.1"

// DefaultSettleDelay is the pause between readiness and navigation.
const DefaultSettleDelay = 300 * time.Millisecond

// Target receives the navigation directive.
type Target interface {
	Navigate(url string) error
}

// TargetFunc adapts a function to Target.
type TargetFunc func(url string) error

// Navigate calls f(url).
func (f TargetFunc) Navigate(url string) error { return f(url) }

// URL returns the loopback URL for port.
func URL(port uint16) string {
	return fmt.Sprintf("http://%s:%d", LoopbackHost, port)
}

// Script returns the JavaScript that sends a webview to url.
func Script(url string) string {
	return fmt.Sprintf("window.location.href = '%s'", url)
}

type targetBox struct {
	target Target
}

// Notifier issues a single navigation directive per supervised process.
type Notifier struct {
	delay  time.Duration
	target atomic.Pointer[targetBox]
	fired  atomic.Bool
	logger *slog.Logger
}

// New creates a notifier with the given settle delay. Negative delays are treated as zero.
func New(delay time.Duration, logger *slog.Logger) *Notifier {
	if delay < 0 {
		delay = 0
	}
	return &Notifier{delay: delay, logger: logger}
}

// Delay returns the configured settle delay.
func (n *Notifier) Delay() time.Duration {
	return n.delay
}

// Attach sets the UI target, replacing any previous one.
func (n *Notifier) Attach(t Target) {
	if t == nil {
		n.target.Store(nil)
		return
	}
	n.target.Store(&targetBox{target: t})
}

// Detach removes the UI target. Notifications sent while detached are dropped.
func (n *Notifier) Detach() {
	n.target.Store(nil)
}

// Attached reports whether a UI target is currently attached.
func (n *Notifier) Attached() bool {
	return n.target.Load() != nil
}

// Fired reports whether Notify has already been claimed.
func (n *Notifier) Fired() bool {
	return n.fired.Load()
}

// Notify waits the settle delay and then navigates the attached target to the
// backend URL. Only the first call does anything; it returns true if the
// directive was delivered. Cancelling ctx during the delay drops the notification.
func (n *Notifier) Notify(ctx context.Context, port uint16) bool {
	if !n.fired.CompareAndSwap(false, true) {
		n.logger.Debug("Navigation already issued, ignoring", "port", port)
		return false
	}

	url := URL(port)
	if n.delay > 0 {
		timer := time.NewTimer(n.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			n.logger.Info("Navigation cancelled during settle delay", "url", url)
			return false
		case <-timer.C:
		}
	}

	box := n.target.Load()
	if box == nil {
		n.logger.Info("No UI attached, dropping navigation", "url", url)
		return false
	}

	if err := box.target.Navigate(url); err != nil {
		n.logger.Warn("Failed to navigate UI", "url", url, "error", err)
		return false
	}

	n.logger.Info("UI navigated to backend", "url", url, "settle_delay", n.delay)
	return true
}
