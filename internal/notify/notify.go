// Package notify shows desktop notifications after long-running actions
// such as exports.
package notify

import (
	"context"
	"log/slog"
	"time"
)

// Urgency levels of the freedesktop notification spec.
type Urgency byte

const (
	UrgencyLow Urgency = iota
	UrgencyNormal
	UrgencyCritical
)

// Notification is one message.
type Notification struct {
	Summary string
	Body    string
	Urgency Urgency
	// Timeout of zero lets the server decide.
	Timeout time.Duration
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
	Close() error
}

// Nop drops every notification.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, Notification) error { return nil }

// Close implements Notifier.
func (Nop) Close() error { return nil }

// New connects to the desktop notification service. When enabled is false
// or no service is reachable it returns Nop, logging the reason.
func New(enabled bool, logger *slog.Logger) Notifier {
	if !enabled {
		return Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	n, err := newDesktop(logger)
	if err != nil {
		logger.Info("desktop notifications unavailable", "error", err)
		return Nop{}
	}
	return n
}
