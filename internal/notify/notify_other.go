//go:build !linux

package notify

import (
	"errors"
	"log/slog"
)

func newDesktop(*slog.Logger) (Notifier, error) {
	return nil, errors.New("desktop notifications are only supported on linux")
}
