package storage

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/rl1809/shop-order/internal/core/domain"
	"github.com/rl1809/shop-order/internal/port"
)

// CachedImageRepository serves representative image URLs from a cache. A hit
// is only trusted while the store still holds exactly one representative
// image for the product; otherwise the lookup goes to the store so duplicates
// or a removed image surface to the caller. Cache failures fall through to
// the underlying repository.
type CachedImageRepository struct {
	inner  port.ImageRepository
	cache  port.ImageCache
	logger zerolog.Logger
}

var _ port.ImageRepository = (*CachedImageRepository)(nil)

func NewCachedImageRepository(inner port.ImageRepository, cache port.ImageCache, logger zerolog.Logger) *CachedImageRepository {
	return &CachedImageRepository{inner: inner, cache: cache, logger: logger}
}

func (c *CachedImageRepository) CountRepresentative(ctx context.Context, productID int64) (int, error) {
	return c.inner.CountRepresentative(ctx, productID)
}

func (c *CachedImageRepository) FindRepresentative(ctx context.Context, productID int64) ([]domain.ProductImage, error) {
	url, ok, err := c.cache.GetImageURL(ctx, productID)
	if err != nil {
		c.logger.Warn().Err(err).Int64("product_id", productID).Msg("image cache read failed")
	}
	if ok {
		n, err := c.inner.CountRepresentative(ctx, productID)
		if err != nil {
			return nil, err
		}
		if n == 1 {
			return []domain.ProductImage{{ProductID: productID, URL: url, Representative: true}}, nil
		}
		c.logger.Warn().Int64("product_id", productID).Int("representative_images", n).Msg("cached image no longer consistent")
	}

	images, err := c.inner.FindRepresentative(ctx, productID)
	if err != nil {
		return nil, err
	}

	if len(images) == 1 && images[0].URL != url {
		if err := c.cache.SetImageURL(ctx, productID, images[0].URL); err != nil {
			c.logger.Warn().Err(err).Int64("product_id", productID).Msg("image cache write failed")
		}
	}
	return images, nil
}
