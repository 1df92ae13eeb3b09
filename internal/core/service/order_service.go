package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/rl1809/shop-order/internal/core/domain"
	"github.com/rl1809/shop-order/internal/port"
)

var ErrDuplicateRequest = errors.New("duplicate request")

type PlaceOrderRequest struct {
	ProductID int64
	Quantity  int
	Email     string
	// RequestID is optional. When set, a repeated request from the same
	// member is rejected with ErrDuplicateRequest.
	RequestID string
}

// OrderService places, authorizes and cancels orders. Every state change runs
// in one store transaction; resulting events are queued for asynchronous
// publication after commit.
type OrderService struct {
	store  port.Store
	idem   port.IdempotencyRepository
	logger zerolog.Logger
	now    func() time.Time

	mu         sync.RWMutex
	closed     bool
	eventQueue chan domain.OrderEvent
}

// NewOrderService creates the service. idem may be nil, which disables
// request de-duplication.
func NewOrderService(store port.Store, idem port.IdempotencyRepository, queueSize int, logger zerolog.Logger) *OrderService {
	return &OrderService{
		store:      store,
		idem:       idem,
		logger:     logger,
		now:        time.Now,
		eventQueue: make(chan domain.OrderEvent, queueSize),
	}
}

func (s *OrderService) Place(ctx context.Context, req PlaceOrderRequest) (orderID int64, err error) {
	if err := domain.ValidateQuantity(req.Quantity); err != nil {
		return 0, err
	}

	if s.idem != nil && req.RequestID != "" {
		key := fmt.Sprintf("order:%s:%s", req.Email, req.RequestID)

		ok, setErr := s.idem.SetIdempotency(ctx, key)
		if setErr != nil {
			return 0, errors.Wrap(setErr, "idempotency check failed")
		}
		if !ok {
			return 0, ErrDuplicateRequest
		}

		defer func() {
			if err == nil {
				return
			}
			if relErr := s.idem.ReleaseIdempotency(context.WithoutCancel(ctx), key); relErr != nil {
				s.logger.Error().Err(relErr).Str("key", key).Msg("failed to release idempotency key")
			}
		}()
	}

	var order *domain.Order
	err = s.store.Execute(ctx, func(repos port.Repositories) error {
		product, err := repos.Products().FindByID(ctx, req.ProductID)
		if err != nil {
			return err
		}

		member, err := repos.Members().FindByEmail(ctx, req.Email)
		if err != nil {
			return err
		}

		if err := repos.Products().DecrementStock(ctx, product.ID, req.Quantity); err != nil {
			return err
		}

		item, err := domain.NewLineItem(*product, req.Quantity)
		if err != nil {
			return err
		}

		order, err = domain.NewOrder(*member, []domain.LineItem{item}, s.now())
		if err != nil {
			return err
		}

		_, err = repos.Orders().Create(ctx, order)
		return err
	})
	if err != nil {
		return 0, errors.WithMessagef(err, "place order for product %d", req.ProductID)
	}

	s.logger.Info().
		Int64("order_id", order.ID).
		Int64("product_id", req.ProductID).
		Int("quantity", req.Quantity).
		Str("email", req.Email).
		Msg("order placed")

	s.enqueue(domain.NewOrderEvent(domain.OrderEventPlaced, order, s.now()))

	return order.ID, nil
}

// IsOwner reports whether the order belongs to the member with this exact
// email. It only decides; callers must deny the operation on false.
func (s *OrderService) IsOwner(ctx context.Context, orderID int64, email string) (bool, error) {
	order, err := s.store.Orders().FindByID(ctx, orderID)
	if err != nil {
		return false, err
	}

	if _, err := s.store.Members().FindByEmail(ctx, email); err != nil {
		return false, err
	}

	return order.MemberEmail == email, nil
}

// Cancel moves a PLACED order to CANCELED and restores the stock of every
// line item. Cancelling an already canceled order changes nothing. Ownership
// is not checked here, see IsOwner.
func (s *OrderService) Cancel(ctx context.Context, orderID int64) error {
	var canceled *domain.Order

	err := s.store.Execute(ctx, func(repos port.Repositories) error {
		order, err := repos.Orders().FindByID(ctx, orderID)
		if err != nil {
			return err
		}

		if err := order.Cancel(); err != nil {
			if errors.Is(err, domain.ErrOrderAlreadyCanceled) {
				return nil
			}
			return err
		}

		// a concurrent cancellation that committed first makes this a no-op
		swapped, err := repos.Orders().UpdateStatus(ctx, order.ID, domain.OrderStatusPlaced, domain.OrderStatusCanceled)
		if err != nil || !swapped {
			return err
		}

		for _, item := range order.Items() {
			if err := repos.Products().IncrementStock(ctx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		canceled = order
		return nil
	})
	if err != nil {
		return errors.WithMessagef(err, "cancel order %d", orderID)
	}

	if canceled == nil {
		s.logger.Debug().Int64("order_id", orderID).Msg("order already canceled")
		return nil
	}

	s.logger.Info().Int64("order_id", orderID).Msg("order canceled")
	s.enqueue(domain.NewOrderEvent(domain.OrderEventCanceled, canceled, s.now()))

	return nil
}

func (s *OrderService) enqueue(event domain.OrderEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return
	}

	select {
	case s.eventQueue <- event:
	default:
		s.logger.Warn().
			Str("type", string(event.Type)).
			Int64("order_id", event.OrderID).
			Msg("event queue full, dropping event")
	}
}

func (s *OrderService) GetEventQueue() <-chan domain.OrderEvent {
	return s.eventQueue
}

func (s *OrderService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.eventQueue)
}
