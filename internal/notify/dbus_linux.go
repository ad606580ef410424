//go:build linux

package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"
)

// Freedesktop notification service constants.
const (
	NotificationsService   = "org.freedesktop.Notifications"
	NotificationsPath      = "/org/freedesktop/Notifications"
	NotificationsInterface = "org.freedesktop.Notifications"
	AppName                = "signpad"
)

// DBus sends notifications over the session bus.
type DBus struct {
	conn   *dbus.Conn
	obj    dbus.BusObject
	logger *slog.Logger

	mu     sync.Mutex
	lastID uint32
}

func newDesktop(logger *slog.Logger) (Notifier, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	return &DBus{
		conn:   conn,
		obj:    conn.Object(NotificationsService, NotificationsPath),
		logger: logger.With("component", "notify"),
	}, nil
}

// Notify implements Notifier. Each notification replaces the previous one.
func (d *DBus) Notify(ctx context.Context, n Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	hints := map[string]dbus.Variant{
		"urgency": dbus.MakeVariant(byte(n.Urgency)),
	}
	timeout := int32(-1)
	if n.Timeout > 0 {
		timeout = int32(n.Timeout.Milliseconds())
	}
	call := d.obj.CallWithContext(ctx, NotificationsInterface+".Notify", 0,
		AppName, d.lastID, "", n.Summary, n.Body, []string{}, hints, timeout)
	if call.Err != nil {
		return fmt.Errorf("notify: %w", call.Err)
	}
	var id uint32
	if err := call.Store(&id); err != nil {
		return fmt.Errorf("notify: read reply: %w", err)
	}
	d.lastID = id
	d.logger.Debug("notification sent", "id", id, "summary", n.Summary)
	return nil
}

// Close closes the bus connection.
func (d *DBus) Close() error {
	if d.conn == nil {
		return nil
	}
	return d.conn.Close()
}
