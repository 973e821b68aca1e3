package provider

import (
	"context"

	"github.com/saazpayhq/saazpay/pkg/billing"
)

// Backend loads the shared catalog and hands out clients bound to one
// subscription
type Backend interface {
	CatalogSource
	Bind(subscriptionID string) billing.Client
}

// Bind implements Backend
func (c *RESTClient) Bind(subscriptionID string) billing.Client {
	return c.ForSubscription(subscriptionID)
}

// Bind implements Backend
func (c *StripeClient) Bind(subscriptionID string) billing.Client {
	return c.ForSubscription(subscriptionID)
}

// CachedBackend serves a backend's catalog from a CachedCatalog
type CachedBackend struct {
	Backend
	Catalog *CachedCatalog
}

// NewCachedBackend wraps backend with catalog caching
func NewCachedBackend(backend Backend, cfg CacheConfig) *CachedBackend {
	return &CachedBackend{Backend: backend, Catalog: NewCachedCatalog(backend, cfg)}
}

// GetPlans implements CatalogSource
func (b *CachedBackend) GetPlans(ctx context.Context) ([]billing.Plan, error) {
	return b.Catalog.GetPlans(ctx)
}

// Bind implements Backend
func (b *CachedBackend) Bind(subscriptionID string) billing.Client {
	return WithCatalog(b.Backend.Bind(subscriptionID), b.Catalog)
}
