package event

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rl1809/shop-order/internal/core/domain"
	"github.com/rl1809/shop-order/internal/port"
)

const publishTimeout = 5 * time.Second

// Dispatcher drains an event queue with a fixed pool of workers. Workers exit
// once the queue is closed and drained.
type Dispatcher struct {
	publisher port.EventPublisher
	logger    zerolog.Logger
	wg        sync.WaitGroup
}

func NewDispatcher(publisher port.EventPublisher, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{publisher: publisher, logger: logger}
}

func (d *Dispatcher) Start(workers int, queue <-chan domain.OrderEvent) {
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go func(id int) {
			defer d.wg.Done()
			d.Run(id, queue)
		}(i)
	}
	d.logger.Info().Int("workers", workers).Msg("event workers started")
}

// Wait blocks until every worker has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) Run(id int, queue <-chan domain.OrderEvent) {
	for evt := range queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)

		if err := d.publisher.Publish(ctx, evt); err != nil {
			d.logger.Error().
				Err(err).
				Int("worker", id).
				Str("type", string(evt.Type)).
				Int64("order_id", evt.OrderID).
				Msg("failed to publish event")
		} else {
			d.logger.Debug().
				Int("worker", id).
				Str("type", string(evt.Type)).
				Int64("order_id", evt.OrderID).
				Msg("event published")
		}

		cancel()
	}
}
