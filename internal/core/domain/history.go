package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type LineItemView struct {
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Quantity    int             `json:"quantity"`
	ImageURL    string          `json:"imageUrl"`
}

// OrderHistoryView is a read-only row of a member's order history.
type OrderHistoryView struct {
	OrderID   int64           `json:"orderId"`
	OrderedAt time.Time       `json:"orderedAt"`
	Status    OrderStatus     `json:"status"`
	Total     decimal.Decimal `json:"total"`
	Items     []LineItemView  `json:"items"`
}

type OrderHistoryPage struct {
	Orders     []OrderHistoryView `json:"orders"`
	Page       int                `json:"page"`
	PageSize   int                `json:"pageSize"`
	TotalCount int64              `json:"totalCount"`
}

func (p *OrderHistoryPage) TotalPages() int {
	if p.PageSize <= 0 {
		return 0
	}
	return int((p.TotalCount + int64(p.PageSize) - 1) / int64(p.PageSize))
}
