package publisher

import (
	"context"

	"github.com/Timiochukwu/iothub-geofence/module/core/domain"
)

// NotificationPublisher hands durable notification records to the
// notification-center collaborator.
type NotificationPublisher interface {
	PublishNotification(ctx context.Context, n *domain.Notification) error
}
