// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the service
// layer from the remote API client and infrastructure.
package port

import (
	"context"

	"github.com/boddenberg/account-aggregator-go/internal/domain"
)

// Authenticator obtains tokens from the remote API.
type Authenticator interface {
	Login(ctx context.Context) (domain.RefreshToken, error)
	Exchange(ctx context.Context, refresh domain.RefreshToken) (domain.AccessToken, error)
}

// PageFetcher retrieves one page of a paginated resource.
type PageFetcher interface {
	FetchPage(ctx context.Context, token domain.AccessToken, resource domain.Resource, link string) (*domain.Page, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
