package ports

import (
	"context"

	"github.com/marketbridge/identity-session/internal/core/domain"
)

// SessionCache keeps the last known identity for instant hydration at boot.
// It is never authoritative.
type SessionCache interface {
	// Read returns nil, nil when nothing is cached.
	Read(ctx context.Context) (*domain.Identity, error)
	// Write stores id, or clears the entry when id is nil.
	Write(ctx context.Context, id *domain.Identity) error
}

// Navigator is the routing layer as seen from the session engine.
type Navigator interface {
	CurrentRoute() string
	RequestNavigation(route string)
}
