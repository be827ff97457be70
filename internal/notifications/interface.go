package notifications

import (
	"context"

	"github.com/psicapp/riskwatch/internal/models"
)

// Pusher delivers a push notification to one administrator
type Pusher interface {
	Push(ctx context.Context, admin models.Profile, msg *models.PushMessage) error
}

// NotificationInterface defines the contract for team-channel notifications
type NotificationInterface interface {
	SendDigest(digest *models.Digest) error
	SendAlert(alert *models.Alert) error
}
