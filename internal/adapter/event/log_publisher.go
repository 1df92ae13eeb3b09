package event

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/rl1809/shop-order/internal/core/domain"
	"github.com/rl1809/shop-order/internal/port"
)

// LogPublisher only logs events. Used when no brokers are configured.
type LogPublisher struct {
	logger zerolog.Logger
}

var _ port.EventPublisher = (*LogPublisher)(nil)

func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, evt domain.OrderEvent) error {
	p.logger.Info().
		Str("type", string(evt.Type)).
		Int64("order_id", evt.OrderID).
		Str("email", evt.MemberEmail).
		Int("items", len(evt.Items)).
		Time("occurred_at", evt.OccurredAt).
		Msg("order event")
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
