package handler

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/shop-order/internal/adapter/storage"
	"github.com/rl1809/shop-order/internal/core/service"
)

const (
	testSecret   = "test-secret"
	testPageSize = 4
	testMaxPage  = 5
)

type handlerEnv struct {
	store   *storage.SQLStore
	orders  *service.OrderService
	history *service.HistoryService
	auth    *TokenAuthority
}

func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()
	ctx := context.Background()

	store, err := storage.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))

	orders := service.NewOrderService(store, nil, 100, zerolog.Nop())
	t.Cleanup(func() {
		orders.Close()
		store.Close()
	})

	return &handlerEnv{
		store:   store,
		orders:  orders,
		history: service.NewHistoryService(store.Orders(), store.Images()),
		auth:    NewTokenAuthority(testSecret),
	}
}

func (e *handlerEnv) member(t *testing.T, email string) string {
	t.Helper()
	_, err := e.store.CreateMember(context.Background(), email, email)
	require.NoError(t, err)

	token, err := e.auth.Issue(email, time.Hour)
	require.NoError(t, err)
	return token
}

func (e *handlerEnv) product(t *testing.T, name string, stock int) int64 {
	t.Helper()
	ctx := context.Background()

	id, err := e.store.CreateProduct(ctx, name, decimal.RequireFromString("12.50"), stock)
	require.NoError(t, err)
	_, err = e.store.AddProductImage(ctx, id, "/images/"+name+".jpg", true)
	require.NoError(t, err)
	return id
}

func (e *handlerEnv) stock(t *testing.T, productID int64) int {
	t.Helper()
	p, err := e.store.Products().FindByID(context.Background(), productID)
	require.NoError(t, err)
	return p.Stock
}
