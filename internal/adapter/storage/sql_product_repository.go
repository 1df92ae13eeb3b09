package storage

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/rl1809/shop-order/internal/core/domain"
)

type productRepository struct {
	q querier
}

func (r *productRepository) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	err := r.q.QueryRowContext(ctx, `
		SELECT id, name, price, stock
		FROM products WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Price, &p.Stock)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(domain.ErrNotFound, "product %d", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "query product")
	}
	return &p, nil
}

func (r *productRepository) DecrementStock(ctx context.Context, productID int64, quantity int) error {
	result, err := r.q.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - ?
		WHERE id = ? AND stock >= ?`,
		quantity, productID, quantity,
	)
	if err != nil {
		return errors.Wrap(err, "decrement stock")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "decrement stock rows affected")
	}
	if rows == 1 {
		return nil
	}

	var available int
	err = r.q.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = ?`, productID).Scan(&available)
	if errors.Is(err, sql.ErrNoRows) {
		return errors.Wrapf(domain.ErrNotFound, "product %d", productID)
	}
	if err != nil {
		return errors.Wrap(err, "query stock")
	}
	return errors.Wrapf(domain.ErrInsufficientStock, "product %d: requested %d, available %d", productID, quantity, available)
}

func (r *productRepository) IncrementStock(ctx context.Context, productID int64, quantity int) error {
	result, err := r.q.ExecContext(ctx, `
		UPDATE products
		SET stock = stock + ?
		WHERE id = ?`,
		quantity, productID,
	)
	if err != nil {
		return errors.Wrap(err, "increment stock")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "increment stock rows affected")
	}
	if rows == 0 {
		return errors.Wrapf(domain.ErrNotFound, "product %d", productID)
	}
	return nil
}
