package storage

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/rl1809/shop-order/internal/core/domain"
)

type memberRepository struct {
	q querier
}

func (r *memberRepository) FindByEmail(ctx context.Context, email string) (*domain.Member, error) {
	var m domain.Member
	err := r.q.QueryRowContext(ctx, `
		SELECT id, email, name
		FROM members WHERE email = ?`, email,
	).Scan(&m.ID, &m.Email, &m.Name)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(domain.ErrNotFound, "member %q", email)
	}
	if err != nil {
		return nil, errors.Wrap(err, "query member")
	}
	return &m, nil
}

type imageRepository struct {
	q querier
}

func (r *imageRepository) FindRepresentative(ctx context.Context, productID int64) ([]domain.ProductImage, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, product_id, url, representative
		FROM product_images
		WHERE product_id = ? AND representative = 1
		ORDER BY id`, productID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "query representative images")
	}
	defer rows.Close()

	var images []domain.ProductImage
	for rows.Next() {
		var img domain.ProductImage
		if err := rows.Scan(&img.ID, &img.ProductID, &img.URL, &img.Representative); err != nil {
			return nil, errors.Wrap(err, "scan product image")
		}
		images = append(images, img)
	}
	return images, errors.Wrap(rows.Err(), "iterate product images")
}

func (r *imageRepository) CountRepresentative(ctx context.Context, productID int64) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM product_images
		WHERE product_id = ? AND representative = 1`, productID,
	).Scan(&n)
	return n, errors.Wrap(err, "count representative images")
}

// Catalog and account management live outside this service; these inserts
// exist for seeding and tests.

func (s *SQLStore) CreateMember(ctx context.Context, email, name string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `INSERT INTO members (email, name) VALUES (?, ?)`, email, name)
	if err != nil {
		return 0, errors.Wrap(err, "insert member")
	}
	id, err := result.LastInsertId()
	return id, errors.Wrap(err, "member id")
}

func (s *SQLStore) CreateProduct(ctx context.Context, name string, price decimal.Decimal, stock int) (int64, error) {
	result, err := s.db.ExecContext(ctx, `INSERT INTO products (name, price, stock) VALUES (?, ?, ?)`, name, price, stock)
	if err != nil {
		return 0, errors.Wrap(err, "insert product")
	}
	id, err := result.LastInsertId()
	return id, errors.Wrap(err, "product id")
}

func (s *SQLStore) AddProductImage(ctx context.Context, productID int64, url string, representative bool) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO product_images (product_id, url, representative)
		VALUES (?, ?, ?)`, productID, url, representative,
	)
	if err != nil {
		return 0, errors.Wrap(err, "insert product image")
	}
	id, err := result.LastInsertId()
	return id, errors.Wrap(err, "product image id")
}
