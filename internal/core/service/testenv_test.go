package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/shop-order/internal/adapter/storage"
)

// Mock IdempotencyRepository
type mockIdempotencyRepo struct {
	mu       sync.Mutex
	keys     map[string]bool
	released []string
}

func newMockIdempotencyRepo() *mockIdempotencyRepo {
	return &mockIdempotencyRepo{keys: make(map[string]bool)}
}

func (m *mockIdempotencyRepo) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *mockIdempotencyRepo) ReleaseIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.keys, key)
	m.released = append(m.released, key)
	return nil
}

type testEnv struct {
	store   *storage.SQLStore
	orders  *OrderService
	history *HistoryService
	idem    *mockIdempotencyRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := storage.OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))

	idem := newMockIdempotencyRepo()
	orders := NewOrderService(store, idem, 100, zerolog.Nop())

	// distinct, increasing order timestamps
	var mu sync.Mutex
	clock := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	orders.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}

	t.Cleanup(func() {
		orders.Close()
		store.Close()
	})

	return &testEnv{
		store:   store,
		orders:  orders,
		history: NewHistoryService(store.Orders(), store.Images()),
		idem:    idem,
	}
}

func (e *testEnv) member(t *testing.T, email string) {
	t.Helper()
	_, err := e.store.CreateMember(context.Background(), email, email)
	require.NoError(t, err)
}

func (e *testEnv) product(t *testing.T, name string, stock int) int64 {
	t.Helper()
	id, err := e.store.CreateProduct(context.Background(), name, decimal.RequireFromString("10.00"), stock)
	require.NoError(t, err)
	return id
}

func (e *testEnv) productWithImage(t *testing.T, name string, stock int) int64 {
	t.Helper()
	id := e.product(t, name, stock)
	_, err := e.store.AddProductImage(context.Background(), id, "/images/"+name+".jpg", true)
	require.NoError(t, err)
	_, err = e.store.AddProductImage(context.Background(), id, "/images/"+name+"-detail.jpg", false)
	require.NoError(t, err)
	return id
}

func (e *testEnv) stock(t *testing.T, productID int64) int {
	t.Helper()
	p, err := e.store.Products().FindByID(context.Background(), productID)
	require.NoError(t, err)
	return p.Stock
}
