package service

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/rl1809/shop-order/internal/core/domain"
	"github.com/rl1809/shop-order/internal/port"
)

const imageLookupConcurrency = 4

// HistoryService builds read-only order history pages. It never writes.
type HistoryService struct {
	orders port.OrderRepository
	images port.ImageRepository
}

func NewHistoryService(orders port.OrderRepository, images port.ImageRepository) *HistoryService {
	return &HistoryService{orders: orders, images: images}
}

// ListOrders returns page (zero based) of the member's orders, newest first,
// along with the member's total order count.
func (s *HistoryService) ListOrders(ctx context.Context, email string, page, pageSize int) (*domain.OrderHistoryPage, error) {
	if page < 0 || pageSize <= 0 {
		return nil, errors.Wrapf(domain.ErrInvalidArgument, "page %d, page size %d", page, pageSize)
	}

	total, err := s.orders.CountByMemberEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	result := &domain.OrderHistoryPage{
		Orders:     []domain.OrderHistoryView{},
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
	}

	// pages past the end, including offsets that would overflow, are empty
	if page > (math.MaxInt-pageSize)/pageSize || int64(page*pageSize) >= total {
		return result, nil
	}

	orders, err := s.orders.ListByMemberEmail(ctx, email, page*pageSize, pageSize)
	if err != nil {
		return nil, err
	}

	urls, err := s.resolveImages(ctx, orders)
	if err != nil {
		return nil, err
	}

	views := make([]domain.OrderHistoryView, 0, len(orders))
	for _, order := range orders {
		items := order.Items()
		view := domain.OrderHistoryView{
			OrderID:   order.ID,
			OrderedAt: order.OrderedAt,
			Status:    order.Status,
			Total:     order.Total(),
			Items:     make([]domain.LineItemView, 0, len(items)),
		}
		for _, item := range items {
			view.Items = append(view.Items, domain.LineItemView{
				ProductID:   item.ProductID,
				ProductName: item.ProductName,
				UnitPrice:   item.UnitPrice,
				Quantity:    item.Quantity,
				ImageURL:    urls[item.ProductID],
			})
		}
		views = append(views, view)
	}

	result.Orders = views
	return result, nil
}

func (s *HistoryService) resolveImages(ctx context.Context, orders []*domain.Order) (map[int64]string, error) {
	var productIDs []int64
	seen := make(map[int64]bool)
	for _, order := range orders {
		for _, item := range order.Items() {
			if !seen[item.ProductID] {
				seen[item.ProductID] = true
				productIDs = append(productIDs, item.ProductID)
			}
		}
	}

	urls := make([]string, len(productIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(imageLookupConcurrency)

	for i, productID := range productIDs {
		g.Go(func() error {
			url, err := s.representativeURL(gctx, productID)
			urls[i] = url
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byProduct := make(map[int64]string, len(productIDs))
	for i, productID := range productIDs {
		byProduct[productID] = urls[i]
	}
	return byProduct, nil
}

func (s *HistoryService) representativeURL(ctx context.Context, productID int64) (string, error) {
	images, err := s.images.FindRepresentative(ctx, productID)
	if err != nil {
		return "", err
	}

	switch len(images) {
	case 1:
		return images[0].URL, nil
	case 0:
		return "", errors.Wrapf(domain.ErrImageInconsistency, "product %d has no representative image", productID)
	default:
		return "", errors.Wrapf(domain.ErrImageInconsistency, "product %d has %d representative images", productID, len(images))
	}
}
