// Package notify surfaces desktop notifications.
package notify

import (
	"github.com/gen2brain/beeep"
	"github.com/rs/zerolog"

	"murmur/internal/domain"
	"murmur/internal/logging"
)

const appName = "Murmur"

// DesktopNotifier shows system notifications through beeep. Notification
// failures are logged and otherwise ignored; they are never critical.
type DesktopNotifier struct {
	enabled bool
	log     zerolog.Logger
}

func NewDesktopNotifier(enabled bool) *DesktopNotifier {
	return &DesktopNotifier{enabled: enabled, log: logging.WithComponent("notify")}
}

func (n *DesktopNotifier) Notify(notification domain.Notification) {
	if !n.enabled {
		return
	}
	title := appName
	if notification.Title != "" {
		title = appName + ": " + notification.Title
	}
	if err := beeep.Notify(title, notification.Description, ""); err != nil {
		n.log.Debug().Err(err).Str("title", notification.Title).Msg("notification failed")
	}
}
