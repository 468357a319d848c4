package events

import (
	"github.com/jack-barr3tt/db-engine/src/common/utils"
	"go.uber.org/zap"
)

// Connect opens a publisher on the configured broker. Without a reachable
// broker ingestion still runs and events are dropped.
func Connect(logger *zap.SugaredLogger) (Publisher, func()) {
	connection, channel, err := utils.NewRabbitConnection()
	if err != nil {
		logger.Warnw("RabbitMQ unavailable, ingestion events disabled", "error", err)
		return NopPublisher{}, func() {}
	}

	publisher, err := NewAMQPPublisher(channel)
	if err != nil {
		logger.Warnw("failed to declare ingestion event queue", "error", err)
		channel.Close()
		connection.Close()
		return NopPublisher{}, func() {}
	}

	return publisher, func() {
		channel.Close()
		connection.Close()
	}
}
