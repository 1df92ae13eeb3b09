package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/shop-order/internal/core/domain"
	"github.com/rl1809/shop-order/internal/port"
)

// runStoreSuite exercises SQLStore against a migrated database. Every case
// seeds its own rows so it can run against a shared MySQL instance.
func runStoreSuite(t *testing.T, store *SQLStore) {
	t.Run("CreateAndFindOrder", func(t *testing.T) { testCreateAndFindOrder(t, store) })
	t.Run("DecrementStock", func(t *testing.T) { testDecrementStock(t, store) })
	t.Run("IncrementStock", func(t *testing.T) { testIncrementStock(t, store) })
	t.Run("UpdateStatusCompareAndSwap", func(t *testing.T) { testUpdateStatus(t, store) })
	t.Run("ListOrdersNewestFirst", func(t *testing.T) { testListOrders(t, store) })
	t.Run("ExecuteRollsBack", func(t *testing.T) { testExecuteRollsBack(t, store) })
	t.Run("RepresentativeImages", func(t *testing.T) { testRepresentativeImages(t, store) })
	t.Run("MemberEmailCaseSensitive", func(t *testing.T) { testMemberEmailCaseSensitive(t, store) })
}

type seed struct {
	member  domain.Member
	product domain.Product
}

func seedMemberAndProduct(t *testing.T, store *SQLStore, stock int) seed {
	t.Helper()
	ctx := context.Background()

	email := uuid.NewString() + "@x.com"
	memberID, err := store.CreateMember(ctx, email, "tester")
	require.NoError(t, err)

	price := decimal.RequireFromString("12.50")
	productID, err := store.CreateProduct(ctx, "product-"+uuid.NewString()[:8], price, stock)
	require.NoError(t, err)

	product, err := store.Products().FindByID(ctx, productID)
	require.NoError(t, err)

	return seed{
		member:  domain.Member{ID: memberID, Email: email, Name: "tester"},
		product: *product,
	}
}

func insertOrder(t *testing.T, store *SQLStore, s seed, quantity int, at time.Time) int64 {
	t.Helper()

	item, err := domain.NewLineItem(s.product, quantity)
	require.NoError(t, err)
	order, err := domain.NewOrder(s.member, []domain.LineItem{item}, at)
	require.NoError(t, err)

	var id int64
	err = store.Execute(context.Background(), func(repos port.Repositories) error {
		id, err = repos.Orders().Create(context.Background(), order)
		return err
	})
	require.NoError(t, err)
	return id
}

func testCreateAndFindOrder(t *testing.T, store *SQLStore) {
	ctx := context.Background()
	s := seedMemberAndProduct(t, store, 10)
	other, err := store.CreateProduct(ctx, "second", decimal.RequireFromString("3.00"), 4)
	require.NoError(t, err)
	otherProduct, err := store.Products().FindByID(ctx, other)
	require.NoError(t, err)

	first, _ := domain.NewLineItem(s.product, 2)
	second, _ := domain.NewLineItem(*otherProduct, 1)
	at := time.Date(2026, 5, 1, 9, 30, 0, 123456000, time.UTC)
	order, err := domain.NewOrder(s.member, []domain.LineItem{first, second}, at)
	require.NoError(t, err)

	var id int64
	require.NoError(t, store.Execute(ctx, func(repos port.Repositories) error {
		id, err = repos.Orders().Create(ctx, order)
		return err
	}))
	assert.Equal(t, id, order.ID)

	got, err := store.Orders().FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, s.member.Email, got.MemberEmail)
	assert.Equal(t, s.member.ID, got.MemberID)
	assert.Equal(t, domain.OrderStatusPlaced, got.Status)
	assert.True(t, at.Equal(got.OrderedAt), "ordered_at %v != %v", got.OrderedAt, at)

	items := got.Items()
	require.Len(t, items, 2)
	assert.Equal(t, s.product.ID, items[0].ProductID)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, "12.50", items[0].UnitPrice.StringFixed(2))
	assert.Equal(t, other, items[1].ProductID)
	assert.Equal(t, "28.00", got.Total().StringFixed(2))

	_, err = store.Orders().FindByID(ctx, id+100000)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func testDecrementStock(t *testing.T, store *SQLStore) {
	ctx := context.Background()
	s := seedMemberAndProduct(t, store, 5)
	products := store.Products()

	require.NoError(t, products.DecrementStock(ctx, s.product.ID, 3))

	err := products.DecrementStock(ctx, s.product.ID, 5)
	require.True(t, errors.Is(err, domain.ErrInsufficientStock), "got %v", err)
	assert.Contains(t, err.Error(), "available 2")

	p, err := products.FindByID(ctx, s.product.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Stock)

	require.NoError(t, products.DecrementStock(ctx, s.product.ID, 2))
	p, _ = products.FindByID(ctx, s.product.ID)
	assert.Equal(t, 0, p.Stock)

	err = products.DecrementStock(ctx, s.product.ID+100000, 1)
	assert.True(t, errors.Is(err, domain.ErrNotFound), "got %v", err)
}

func testIncrementStock(t *testing.T, store *SQLStore) {
	ctx := context.Background()
	s := seedMemberAndProduct(t, store, 1)

	require.NoError(t, store.Products().IncrementStock(ctx, s.product.ID, 4))
	p, err := store.Products().FindByID(ctx, s.product.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Stock)

	err = store.Products().IncrementStock(ctx, s.product.ID+100000, 1)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func testUpdateStatus(t *testing.T, store *SQLStore) {
	ctx := context.Background()
	s := seedMemberAndProduct(t, store, 5)
	id := insertOrder(t, store, s, 1, time.Now())

	ok, err := store.Orders().UpdateStatus(ctx, id, domain.OrderStatusPlaced, domain.OrderStatusCanceled)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Orders().UpdateStatus(ctx, id, domain.OrderStatusPlaced, domain.OrderStatusCanceled)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := store.Orders().FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCanceled, got.Status)
}

func testListOrders(t *testing.T, store *SQLStore) {
	ctx := context.Background()
	s := seedMemberAndProduct(t, store, 50)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	oldest := insertOrder(t, store, s, 1, base)
	middle := insertOrder(t, store, s, 2, base.Add(time.Hour))
	tieLow := insertOrder(t, store, s, 3, base.Add(2*time.Hour))
	tieHigh := insertOrder(t, store, s, 4, base.Add(2*time.Hour))
	newest := insertOrder(t, store, s, 5, base.Add(3*time.Hour))

	count, err := store.Orders().CountByMemberEmail(ctx, s.member.Email)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)

	page, err := store.Orders().ListByMemberEmail(ctx, s.member.Email, 0, 4)
	require.NoError(t, err)
	require.Len(t, page, 4)
	assert.Equal(t, []int64{newest, tieHigh, tieLow, middle}, orderIDs(page))
	assert.Equal(t, 5, page[0].Items()[0].Quantity)

	page, err = store.Orders().ListByMemberEmail(ctx, s.member.Email, 4, 4)
	require.NoError(t, err)
	assert.Equal(t, []int64{oldest}, orderIDs(page))

	page, err = store.Orders().ListByMemberEmail(ctx, s.member.Email, 8, 4)
	require.NoError(t, err)
	assert.Empty(t, page)

	_, err = store.Orders().ListByMemberEmail(ctx, s.member.Email, -4, 4)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	count, err = store.Orders().CountByMemberEmail(ctx, "nobody-"+uuid.NewString()+"@x.com")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func orderIDs(orders []*domain.Order) []int64 {
	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	return ids
}

func testExecuteRollsBack(t *testing.T, store *SQLStore) {
	ctx := context.Background()
	s := seedMemberAndProduct(t, store, 5)
	boom := errors.New("boom")

	err := store.Execute(ctx, func(repos port.Repositories) error {
		if err := repos.Products().DecrementStock(ctx, s.product.ID, 4); err != nil {
			return err
		}
		return boom
	})
	assert.True(t, errors.Is(err, boom))

	p, err := store.Products().FindByID(ctx, s.product.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Stock)

	assert.Panics(t, func() {
		_ = store.Execute(ctx, func(repos port.Repositories) error {
			_ = repos.Products().DecrementStock(ctx, s.product.ID, 1)
			panic("mid-transaction")
		})
	})
	p, err = store.Products().FindByID(ctx, s.product.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Stock)
}

func testRepresentativeImages(t *testing.T, store *SQLStore) {
	ctx := context.Background()
	none := seedMemberAndProduct(t, store, 1).product.ID
	one := seedMemberAndProduct(t, store, 1).product.ID
	two := seedMemberAndProduct(t, store, 1).product.ID

	_, err := store.AddProductImage(ctx, none, "/images/none-detail.jpg", false)
	require.NoError(t, err)
	_, err = store.AddProductImage(ctx, one, "/images/one.jpg", true)
	require.NoError(t, err)
	_, err = store.AddProductImage(ctx, one, "/images/one-detail.jpg", false)
	require.NoError(t, err)
	_, err = store.AddProductImage(ctx, two, "/images/two-a.jpg", true)
	require.NoError(t, err)
	_, err = store.AddProductImage(ctx, two, "/images/two-b.jpg", true)
	require.NoError(t, err)

	images, err := store.Images().FindRepresentative(ctx, none)
	require.NoError(t, err)
	assert.Empty(t, images)

	images, err = store.Images().FindRepresentative(ctx, one)
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, "/images/one.jpg", images[0].URL)
	assert.True(t, images[0].Representative)

	images, err = store.Images().FindRepresentative(ctx, two)
	require.NoError(t, err)
	assert.Len(t, images, 2)
}

func testMemberEmailCaseSensitive(t *testing.T, store *SQLStore) {
	ctx := context.Background()
	local := uuid.NewString()
	_, err := store.CreateMember(ctx, local+"@x.com", "lower")
	require.NoError(t, err)

	m, err := store.Members().FindByEmail(ctx, local+"@x.com")
	require.NoError(t, err)
	assert.Equal(t, "lower", m.Name)

	_, err = store.Members().FindByEmail(ctx, local+"@X.COM")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
