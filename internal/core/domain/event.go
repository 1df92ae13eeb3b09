package domain

import "time"

type OrderEventType string

const (
	OrderEventPlaced   OrderEventType = "order.placed"
	OrderEventCanceled OrderEventType = "order.canceled"
)

type OrderEventItem struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type OrderEvent struct {
	Type        OrderEventType   `json:"type"`
	OrderID     int64            `json:"orderId"`
	MemberEmail string           `json:"memberEmail"`
	Items       []OrderEventItem `json:"items"`
	OccurredAt  time.Time        `json:"occurredAt"`
}

func NewOrderEvent(eventType OrderEventType, order *Order, at time.Time) OrderEvent {
	items := make([]OrderEventItem, 0, len(order.items))
	for _, item := range order.items {
		items = append(items, OrderEventItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return OrderEvent{
		Type:        eventType,
		OrderID:     order.ID,
		MemberEmail: order.MemberEmail,
		Items:       items,
		OccurredAt:  at,
	}
}
