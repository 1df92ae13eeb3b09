package storage

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/rl1809/shop-order/internal/core/domain"
)

const orderColumns = `o.id, o.member_id, m.email, o.ordered_at, o.status`

type orderRepository struct {
	q querier
}

type orderRow struct {
	id          int64
	memberID    int64
	memberEmail string
	orderedAt   dbTime
	status      string
}

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) (int64, error) {
	result, err := r.q.ExecContext(ctx, `
		INSERT INTO orders (member_id, ordered_at, status)
		VALUES (?, ?, ?)`,
		order.MemberID, formatTime(order.OrderedAt), string(order.Status),
	)
	if err != nil {
		return 0, errors.Wrap(err, "insert order")
	}

	orderID, err := result.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "order id")
	}

	for i, item := range order.Items() {
		_, err := r.q.ExecContext(ctx, `
			INSERT INTO order_items (order_id, position, product_id, product_name, unit_price, quantity)
			VALUES (?, ?, ?, ?, ?, ?)`,
			orderID, i, item.ProductID, item.ProductName, item.UnitPrice, item.Quantity,
		)
		if err != nil {
			return 0, errors.Wrapf(err, "insert order item %d", i)
		}
	}

	order.ID = orderID
	return orderID, nil
}

func (r *orderRepository) FindByID(ctx context.Context, id int64) (*domain.Order, error) {
	var row orderRow
	err := r.q.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders o JOIN members m ON m.id = o.member_id
		WHERE o.id = ?`, id,
	).Scan(&row.id, &row.memberID, &row.memberEmail, &row.orderedAt, &row.status)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(domain.ErrNotFound, "order %d", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "query order")
	}

	orders, err := r.withItems(ctx, []orderRow{row})
	if err != nil {
		return nil, err
	}
	return orders[0], nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, orderID int64, from, to domain.OrderStatus) (bool, error) {
	result, err := r.q.ExecContext(ctx, `
		UPDATE orders
		SET status = ?
		WHERE id = ? AND status = ?`,
		string(to), orderID, string(from),
	)
	if err != nil {
		return false, errors.Wrap(err, "update order status")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "update order status rows affected")
	}
	return rows == 1, nil
}

func (r *orderRepository) ListByMemberEmail(ctx context.Context, email string, offset, limit int) ([]*domain.Order, error) {
	if offset < 0 || limit <= 0 {
		return nil, errors.Wrapf(domain.ErrInvalidArgument, "offset %d, limit %d", offset, limit)
	}

	rows, err := r.q.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders o JOIN members m ON m.id = o.member_id
		WHERE m.email = ?
		ORDER BY o.ordered_at DESC, o.id DESC
		LIMIT ? OFFSET ?`,
		email, limit, offset,
	)
	if err != nil {
		return nil, errors.Wrap(err, "query orders")
	}

	var orderRows []orderRow
	for rows.Next() {
		var row orderRow
		if err := rows.Scan(&row.id, &row.memberID, &row.memberEmail, &row.orderedAt, &row.status); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "scan order")
		}
		orderRows = append(orderRows, row)
	}
	// rows must be released before the item query; a single-connection pool
	// or an open MySQL result set would otherwise block it
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, errors.Wrap(err, "iterate orders")
	}
	rows.Close()

	if len(orderRows) == 0 {
		return []*domain.Order{}, nil
	}
	return r.withItems(ctx, orderRows)
}

func (r *orderRepository) CountByMemberEmail(ctx context.Context, email string) (int64, error) {
	var count int64
	err := r.q.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM orders o JOIN members m ON m.id = o.member_id
		WHERE m.email = ?`, email,
	).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, "count orders")
	}
	return count, nil
}

func (r *orderRepository) withItems(ctx context.Context, orderRows []orderRow) ([]*domain.Order, error) {
	ids := make([]any, len(orderRows))
	for i, row := range orderRows {
		ids[i] = row.id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")

	rows, err := r.q.QueryContext(ctx, `
		SELECT order_id, id, product_id, product_name, unit_price, quantity
		FROM order_items
		WHERE order_id IN (`+placeholders+`)
		ORDER BY order_id, position`, ids...,
	)
	if err != nil {
		return nil, errors.Wrap(err, "query order items")
	}
	defer rows.Close()

	items := make(map[int64][]domain.LineItem, len(orderRows))
	for rows.Next() {
		var orderID int64
		var item domain.LineItem
		if err := rows.Scan(&orderID, &item.ID, &item.ProductID, &item.ProductName, &item.UnitPrice, &item.Quantity); err != nil {
			return nil, errors.Wrap(err, "scan order item")
		}
		items[orderID] = append(items[orderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate order items")
	}

	orders := make([]*domain.Order, 0, len(orderRows))
	for _, row := range orderRows {
		status, err := domain.ParseOrderStatus(row.status)
		if err != nil {
			return nil, errors.Wrapf(err, "order %d", row.id)
		}
		orders = append(orders, domain.RestoreOrder(row.id, row.memberID, row.memberEmail, row.orderedAt.t, status, items[row.id]))
	}
	return orders, nil
}
