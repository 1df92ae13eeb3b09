package port

import (
	"context"

	"github.com/rl1809/shop-order/internal/core/domain"
)

type ProductRepository interface {
	FindByID(ctx context.Context, id int64) (*domain.Product, error)

	// DecrementStock atomically lowers stock by quantity only if enough is
	// available, otherwise returns domain.ErrInsufficientStock
	DecrementStock(ctx context.Context, productID int64, quantity int) error

	// IncrementStock restores stock (order cancellation)
	IncrementStock(ctx context.Context, productID int64, quantity int) error
}

type MemberRepository interface {
	FindByEmail(ctx context.Context, email string) (*domain.Member, error)
}

type OrderRepository interface {
	// Create persists the order and its line items, setting order.ID
	Create(ctx context.Context, order *domain.Order) (int64, error)

	FindByID(ctx context.Context, id int64) (*domain.Order, error)

	// UpdateStatus is a compare-and-swap, returns false if the order was not in status from
	UpdateStatus(ctx context.Context, orderID int64, from, to domain.OrderStatus) (bool, error)

	// ListByMemberEmail returns orders newest first (ordered_at DESC, id DESC) with line items loaded
	ListByMemberEmail(ctx context.Context, email string, offset, limit int) ([]*domain.Order, error)

	CountByMemberEmail(ctx context.Context, email string) (int64, error)
}

type ImageRepository interface {
	// FindRepresentative returns every image flagged representative for the product.
	// Well-formed data has exactly one.
	FindRepresentative(ctx context.Context, productID int64) ([]domain.ProductImage, error)
	CountRepresentative(ctx context.Context, productID int64) (int, error)
}

type Repositories interface {
	Products() ProductRepository
	Members() MemberRepository
	Orders() OrderRepository
	Images() ImageRepository
}

type TransactionManager interface {
	// Execute runs fn in one transaction. fn must use only the repositories it
	// is given. Any error (or panic) rolls everything back.
	Execute(ctx context.Context, fn func(repos Repositories) error) error
}

type Store interface {
	Repositories
	TransactionManager
}
