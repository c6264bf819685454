package eventbus

import (
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// NewGoChannel builds an in-memory bus for single-process runs and tests. The
// one gochannel instance serves as both publisher and subscriber.
func NewGoChannel(logger *slog.Logger) *EventBus {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer: 1000,
			Persistent:          false,
		},
		watermill.NewSlogLogger(logger),
	)

	return New(pubSub, pubSub, logger)
}
