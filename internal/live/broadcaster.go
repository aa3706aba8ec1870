package live

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/complaint-service/internal/events"
)

// Broadcaster forwards every committed complaint event to the change bus.
type Broadcaster struct {
	bus    ChangeBus
	logger *zap.Logger
}

// NewBroadcaster creates a broadcaster.
func NewBroadcaster(bus ChangeBus, logger *zap.Logger) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{bus: bus, logger: logger}
}

// RegisterHandlers subscribes to all complaint events.
func (b *Broadcaster) RegisterHandlers(dispatcher events.Dispatcher) {
	dispatcher.SubscribeAll(b.handle)
}

func (b *Broadcaster) handle(ctx context.Context, event events.Event) error {
	if err := b.bus.Publish(ctx, event.ComplaintID); err != nil {
		b.logger.Warn("publish change signal",
			zap.String("complaint_id", event.ComplaintID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
		return err
	}
	return nil
}
