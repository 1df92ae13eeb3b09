package domain

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	MinOrderQuantity = 1
	MaxOrderQuantity = 99
)

type OrderStatus string

const (
	OrderStatusPlaced   OrderStatus = "PLACED"
	OrderStatusCanceled OrderStatus = "CANCELED"
)

func ParseOrderStatus(s string) (OrderStatus, error) {
	switch OrderStatus(s) {
	case OrderStatusPlaced, OrderStatusCanceled:
		return OrderStatus(s), nil
	}
	return "", errors.Wrapf(ErrInvalidArgument, "unknown order status %q", s)
}

// LineItem is a snapshot of a product at order time. Later price or name
// changes on the product do not affect it.
type LineItem struct {
	ID          int64
	ProductID   int64
	ProductName string
	UnitPrice   decimal.Decimal
	Quantity    int
}

func ValidateQuantity(quantity int) error {
	if quantity < MinOrderQuantity || quantity > MaxOrderQuantity {
		return errors.Wrapf(ErrInvalidQuantity, "quantity %d outside [%d, %d]", quantity, MinOrderQuantity, MaxOrderQuantity)
	}
	return nil
}

func NewLineItem(product Product, quantity int) (LineItem, error) {
	if err := ValidateQuantity(quantity); err != nil {
		return LineItem{}, err
	}
	return LineItem{
		ProductID:   product.ID,
		ProductName: product.Name,
		UnitPrice:   product.Price,
		Quantity:    quantity,
	}, nil
}

func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

type Order struct {
	ID          int64
	MemberID    int64
	MemberEmail string
	OrderedAt   time.Time
	Status      OrderStatus

	items []LineItem
}

// NewOrder builds a PLACED order owning a copy of items.
func NewOrder(member Member, items []LineItem, orderedAt time.Time) (*Order, error) {
	if len(items) == 0 {
		return nil, errors.Wrap(ErrInvalidArgument, "order needs at least one line item")
	}
	return &Order{
		MemberID:    member.ID,
		MemberEmail: member.Email,
		OrderedAt:   orderedAt,
		Status:      OrderStatusPlaced,
		items:       append([]LineItem(nil), items...),
	}, nil
}

// RestoreOrder rebuilds an order loaded from storage.
func RestoreOrder(id, memberID int64, memberEmail string, orderedAt time.Time, status OrderStatus, items []LineItem) *Order {
	return &Order{
		ID:          id,
		MemberID:    memberID,
		MemberEmail: memberEmail,
		OrderedAt:   orderedAt,
		Status:      status,
		items:       append([]LineItem(nil), items...),
	}
}

func (o *Order) Items() []LineItem {
	return append([]LineItem(nil), o.items...)
}

func (o *Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// Cancel moves a PLACED order to CANCELED. CANCELED is terminal.
func (o *Order) Cancel() error {
	switch o.Status {
	case OrderStatusPlaced:
		o.Status = OrderStatusCanceled
		return nil
	case OrderStatusCanceled:
		return ErrOrderAlreadyCanceled
	}
	return errors.Wrapf(ErrInvalidArgument, "order %d has unknown status %q", o.ID, o.Status)
}
