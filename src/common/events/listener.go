package events

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/jack-barr3tt/db-engine/src/common/types"
	"go.uber.org/zap"
)

type Listener struct {
	ctx     context.Context
	wg      *sync.WaitGroup
	channel Channel
	queue   string
	logger  *zap.SugaredLogger
	handler func(types.StationIngested)
}

func NewListener(ctx context.Context, wg *sync.WaitGroup, channel Channel, queue string, logger *zap.SugaredLogger, handler func(types.StationIngested)) *Listener {
	return &Listener{
		ctx:     ctx,
		wg:      wg,
		channel: channel,
		queue:   queue,
		logger:  logger,
		handler: handler,
	}
}

// Start consumes the queue until the context ends or the delivery channel is
// closed. Undecodable messages are dropped.
func (l *Listener) Start() error {
	defer l.wg.Done()

	if err := DeclareQueue(l.channel, l.queue); err != nil {
		return err
	}

	msgs, err := l.channel.Consume(l.queue, "", true, false, false, false, nil)
	if err != nil {
		return err
	}

	for {
		select {
		case <-l.ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}

			var event types.StationIngested
			if err := json.Unmarshal(msg.Body, &event); err != nil {
				l.logger.Warnw("error unmarshalling ingestion event", "queue", l.queue, "error", err)
				continue
			}

			l.handler(event)
		}
	}
}
