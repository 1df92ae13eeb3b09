package port

import "context"

type IdempotencyRepository interface {
	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ReleaseIdempotency removes the key so a failed request can be retried
	ReleaseIdempotency(ctx context.Context, key string) error
}

type ImageCache interface {
	GetImageURL(ctx context.Context, productID int64) (string, bool, error)
	SetImageURL(ctx context.Context, productID int64, url string) error
}
