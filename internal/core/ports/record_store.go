package ports

import (
	"context"

	"github.com/marketbridge/identity-session/internal/core/domain"
)

// RecordStore is the gateway to the admins and users collections. Keys are
// always normalized emails.
type RecordStore interface {
	// Get returns domain.ErrRecordNotFound when no document exists for key.
	Get(ctx context.Context, collection, key string) (*domain.ProfileRecord, error)
	Set(ctx context.Context, collection, key string, rec *domain.ProfileRecord, opts domain.SetOptions) error
}
