package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/shop-order/internal/core/domain"
)

func TestPlace_Success(t *testing.T) {
	env := newTestEnv(t)
	env.member(t, "a@x.com")
	p := env.product(t, "mug", 10)

	orderID, err := env.orders.Place(context.Background(), PlaceOrderRequest{ProductID: p, Quantity: 3, Email: "a@x.com"})
	require.NoError(t, err)
	assert.Positive(t, orderID)
	assert.Equal(t, 7, env.stock(t, p))

	order, err := env.store.Orders().FindByID(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPlaced, order.Status)
	assert.Equal(t, "a@x.com", order.MemberEmail)
	require.Len(t, order.Items(), 1)
	assert.Equal(t, 3, order.Items()[0].Quantity)
	assert.Equal(t, "30.00", order.Total().StringFixed(2))
}

func TestPlace_InsufficientStock(t *testing.T) {
	env := newTestEnv(t)
	env.member(t, "a@x.com")
	p := env.product(t, "mug", 2)

	_, err := env.orders.Place(context.Background(), PlaceOrderRequest{ProductID: p, Quantity: 5, Email: "a@x.com"})
	require.True(t, errors.Is(err, domain.ErrInsufficientStock), "got %v", err)
	assert.Contains(t, err.Error(), "available 2")
	assert.Equal(t, 2, env.stock(t, p))

	count, err := env.store.Orders().CountByMemberEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestPlace_NotFound(t *testing.T) {
	env := newTestEnv(t)
	env.member(t, "a@x.com")
	p := env.product(t, "mug", 5)

	_, err := env.orders.Place(context.Background(), PlaceOrderRequest{ProductID: p + 99, Quantity: 1, Email: "a@x.com"})
	assert.True(t, errors.Is(err, domain.ErrNotFound), "unknown product: %v", err)

	_, err = env.orders.Place(context.Background(), PlaceOrderRequest{ProductID: p, Quantity: 1, Email: "ghost@x.com"})
	assert.True(t, errors.Is(err, domain.ErrNotFound), "unknown member: %v", err)

	// the failed member lookup must not leave a decrement behind
	assert.Equal(t, 5, env.stock(t, p))
}

func TestPlace_InvalidQuantity(t *testing.T) {
	env := newTestEnv(t)
	env.member(t, "a@x.com")
	p := env.product(t, "mug", 500)

	for _, q := range []int{0, 100} {
		_, err := env.orders.Place(context.Background(), PlaceOrderRequest{ProductID: p, Quantity: q, Email: "a@x.com"})
		assert.True(t, errors.Is(err, domain.ErrInvalidQuantity), "quantity %d: %v", q, err)
	}
	assert.Equal(t, 500, env.stock(t, p))
}

func TestPlace_DuplicateRequest(t *testing.T) {
	env := newTestEnv(t)
	env.member(t, "a@x.com")
	p := env.product(t, "mug", 10)
	req := PlaceOrderRequest{ProductID: p, Quantity: 1, Email: "a@x.com", RequestID: "req-1"}

	_, err := env.orders.Place(context.Background(), req)
	require.NoError(t, err)

	_, err = env.orders.Place(context.Background(), req)
	assert.True(t, errors.Is(err, ErrDuplicateRequest))

	// Stock should only be decremented once
	assert.Equal(t, 9, env.stock(t, p))
}

func TestPlace_FailedRequestReleasesIdempotencyKey(t *testing.T) {
	env := newTestEnv(t)
	env.member(t, "a@x.com")
	p := env.product(t, "mug", 1)
	req := PlaceOrderRequest{ProductID: p, Quantity: 2, Email: "a@x.com", RequestID: "req-2"}

	_, err := env.orders.Place(context.Background(), req)
	require.True(t, errors.Is(err, domain.ErrInsufficientStock))
	assert.Equal(t, []string{"order:a@x.com:req-2"}, env.idem.released)

	req.Quantity = 1
	_, err = env.orders.Place(context.Background(), req)
	assert.NoError(t, err)
}

func TestPlace_EventQueued(t *testing.T) {
	env := newTestEnv(t)
	env.member(t, "a@x.com")
	p := env.product(t, "mug", 10)

	orderID, err := env.orders.Place(context.Background(), PlaceOrderRequest{ProductID: p, Quantity: 2, Email: "a@x.com"})
	require.NoError(t, err)

	evt := <-env.orders.GetEventQueue()
	assert.Equal(t, domain.OrderEventPlaced, evt.Type)
	assert.Equal(t, orderID, evt.OrderID)
	assert.Equal(t, "a@x.com", evt.MemberEmail)
	assert.Equal(t, []domain.OrderEventItem{{ProductID: p, Quantity: 2}}, evt.Items)
}

func TestPlace_ConcurrentLastUnit(t *testing.T) {
	env := newTestEnv(t)
	env.member(t, "a@x.com")
	env.member(t, "b@y.com")
	p := env.product(t, "last-one", 1)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, email := range []string{"a@x.com", "b@y.com"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = env.orders.Place(context.Background(), PlaceOrderRequest{ProductID: p, Quantity: 1, Email: email})
		}()
	}
	wg.Wait()

	var succeeded, outOfStock int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrInsufficientStock):
			outOfStock++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, outOfStock)
	assert.Equal(t, 0, env.stock(t, p))
}

func TestPlace_Concurrent(t *testing.T) {
	initialStock := 20
	totalRequests := 50

	env := newTestEnv(t)
	env.member(t, "a@x.com")
	p := env.product(t, "flash", initialStock)

	var successCount atomic.Int32
	var wg sync.WaitGroup

	for i := range totalRequests {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.orders.Place(context.Background(), PlaceOrderRequest{
				ProductID: p,
				Quantity:  1,
				Email:     "a@x.com",
				RequestID: fmt.Sprintf("req-%d", i),
			})
			if err == nil {
				successCount.Add(1)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, int32(initialStock), successCount.Load())
	assert.Equal(t, 0, env.stock(t, p))
}

func TestIsOwner(t *testing.T) {
	env := newTestEnv(t)
	env.member(t, "a@x.com")
	env.member(t, "b@y.com")
	p := env.product(t, "mug", 10)

	orderID, err := env.orders.Place(context.Background(), PlaceOrderRequest{ProductID: p, Quantity: 1, Email: "a@x.com"})
	require.NoError(t, err)

	ok, err := env.orders.IsOwner(context.Background(), orderID, "a@x.com")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = env.orders.IsOwner(context.Background(), orderID, "b@y.com")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = env.orders.IsOwner(context.Background(), orderID+1, "a@x.com")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = env.orders.IsOwner(context.Background(), orderID, "ghost@x.com")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestCancel_RestoresStock(t *testing.T) {
	env := newTestEnv(t)
	env.member(t, "a@x.com")
	p := env.product(t, "mug", 10)

	orderID, err := env.orders.Place(context.Background(), PlaceOrderRequest{ProductID: p, Quantity: 3, Email: "a@x.com"})
	require.NoError(t, err)
	require.Equal(t, 7, env.stock(t, p))
	<-env.orders.GetEventQueue()

	require.NoError(t, env.orders.Cancel(context.Background(), orderID))

	order, err := env.store.Orders().FindByID(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCanceled, order.Status)
	assert.Equal(t, 10, env.stock(t, p))

	evt := <-env.orders.GetEventQueue()
	assert.Equal(t, domain.OrderEventCanceled, evt.Type)
	assert.Equal(t, orderID, evt.OrderID)
}

func TestCancel_Twice(t *testing.T) {
	env := newTestEnv(t)
	env.member(t, "a@x.com")
	p := env.product(t, "mug", 10)

	orderID, err := env.orders.Place(context.Background(), PlaceOrderRequest{ProductID: p, Quantity: 3, Email: "a@x.com"})
	require.NoError(t, err)

	require.NoError(t, env.orders.Cancel(context.Background(), orderID))
	require.NoError(t, env.orders.Cancel(context.Background(), orderID))

	assert.Equal(t, 10, env.stock(t, p))
}

func TestCancel_ConcurrentRestoresOnce(t *testing.T) {
	env := newTestEnv(t)
	env.member(t, "a@x.com")
	p := env.product(t, "mug", 10)

	orderID, err := env.orders.Place(context.Background(), PlaceOrderRequest{ProductID: p, Quantity: 4, Email: "a@x.com"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, env.orders.Cancel(context.Background(), orderID))
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, env.stock(t, p))
}

func TestCancel_NotFound(t *testing.T) {
	env := newTestEnv(t)

	err := env.orders.Cancel(context.Background(), 12345)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

// Random placements and cancellations never drive stock negative, and
// cancelling everything restores the starting stock.
func TestPlaceCancel_StockRoundTrip(t *testing.T) {
	const initialStock = 30

	env := newTestEnv(t)
	env.member(t, "a@x.com")
	p := env.product(t, "mug", initialStock)
	rng := rand.New(rand.NewPCG(1, 2))

	var open []int64
	for range 200 {
		if len(open) > 0 && rng.IntN(3) == 0 {
			i := rng.IntN(len(open))
			require.NoError(t, env.orders.Cancel(context.Background(), open[i]))
			open = append(open[:i], open[i+1:]...)
		} else {
			orderID, err := env.orders.Place(context.Background(), PlaceOrderRequest{
				ProductID: p,
				Quantity:  1 + rng.IntN(7),
				Email:     "a@x.com",
			})
			if err != nil {
				require.True(t, errors.Is(err, domain.ErrInsufficientStock), "got %v", err)
			} else {
				open = append(open, orderID)
			}
		}
		require.GreaterOrEqual(t, env.stock(t, p), 0)
	}

	for _, orderID := range open {
		require.NoError(t, env.orders.Cancel(context.Background(), orderID))
	}
	assert.Equal(t, initialStock, env.stock(t, p))
}

func TestClose_DropsLateEvents(t *testing.T) {
	env := newTestEnv(t)
	env.member(t, "a@x.com")
	p := env.product(t, "mug", 10)

	env.orders.Close()
	env.orders.Close()

	_, err := env.orders.Place(context.Background(), PlaceOrderRequest{ProductID: p, Quantity: 1, Email: "a@x.com"})
	require.NoError(t, err)

	_, open := <-env.orders.GetEventQueue()
	assert.False(t, open)
}
