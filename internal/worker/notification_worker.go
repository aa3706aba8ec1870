package worker

import (
	"github.com/spec-kit/complaint-service/internal/events"
	"github.com/spec-kit/complaint-service/internal/live"
	"github.com/spec-kit/complaint-service/internal/service"
)

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

// StartBroadcastWorker relays complaint events onto the live change bus.
func StartBroadcastWorker(dispatcher events.Dispatcher, broadcaster *live.Broadcaster) {
	if dispatcher == nil || broadcaster == nil {
		return
	}
	broadcaster.RegisterHandlers(dispatcher)
}
