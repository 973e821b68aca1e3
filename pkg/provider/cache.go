package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/saazpayhq/saazpay/pkg/billing"
	"github.com/saazpayhq/saazpay/pkg/observability"
	"golang.org/x/sync/singleflight"
)

const (
	defaultCatalogTTL = 5 * time.Minute
	catalogMemoryKey  = "catalog"
	// CatalogRedisKey is the shared cache key of the plan catalog
	CatalogRedisKey = "saazpay:catalog:v1"
)

// CatalogSource loads the plan catalog
type CatalogSource interface {
	GetPlans(ctx context.Context) ([]billing.Plan, error)
}

// CacheConfig configures a CachedCatalog
type CacheConfig struct {
	TTL time.Duration
	// Redis enables the shared tier when set
	Redis   *redis.Client
	Metrics *observability.Metrics
	Logger  *observability.Logger
}

// CachedCatalog caches the plan catalog in process memory and optionally in
// redis. Concurrent misses share one upstream fetch. Only the catalog is
// cached; previews and plan changes always reach the provider.
type CachedCatalog struct {
	source  CatalogSource
	memory  *lru.LRU[string, []billing.Plan]
	redis   *redis.Client
	ttl     time.Duration
	group   singleflight.Group
	metrics *observability.Metrics
	logger  *observability.Logger
}

// NewCachedCatalog wraps source with the cache tiers
func NewCachedCatalog(source CatalogSource, cfg CacheConfig) *CachedCatalog {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultCatalogTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &CachedCatalog{
		source:  source,
		memory:  lru.NewLRU[string, []billing.Plan](1, nil, ttl),
		redis:   cfg.Redis,
		ttl:     ttl,
		metrics: cfg.Metrics,
		logger:  logger,
	}
}

// GetPlans returns the cached catalog, loading it on a miss
func (c *CachedCatalog) GetPlans(ctx context.Context) ([]billing.Plan, error) {
	if plans, ok := c.memory.Get(catalogMemoryKey); ok {
		c.metrics.ObserveCatalogCache("memory", true)
		return clonePlans(plans), nil
	}
	c.metrics.ObserveCatalogCache("memory", false)

	v, err, _ := c.group.Do(catalogMemoryKey, func() (interface{}, error) {
		if plans, ok := c.getShared(ctx); ok {
			c.memory.Add(catalogMemoryKey, plans)
			return plans, nil
		}
		return c.load(ctx)
	})
	if err != nil {
		return nil, err
	}
	return clonePlans(v.([]billing.Plan)), nil
}

// Refresh reloads the catalog from the source and replaces both tiers
func (c *CachedCatalog) Refresh(ctx context.Context) error {
	_, err, _ := c.group.Do(catalogMemoryKey, func() (interface{}, error) {
		return c.load(ctx)
	})
	return err
}

// Invalidate drops the catalog from both tiers
func (c *CachedCatalog) Invalidate(ctx context.Context) error {
	c.memory.Remove(catalogMemoryKey)
	if c.redis == nil {
		return nil
	}
	if err := c.redis.Del(ctx, CatalogRedisKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate shared catalog: %w", err)
	}
	return nil
}

func (c *CachedCatalog) load(ctx context.Context) ([]billing.Plan, error) {
	plans, err := c.source.GetPlans(ctx)
	if err != nil {
		return nil, err
	}
	c.memory.Add(catalogMemoryKey, plans)
	c.setShared(ctx, plans)
	return plans, nil
}

// getShared reads the redis tier. Redis failures degrade to a miss.
func (c *CachedCatalog) getShared(ctx context.Context) ([]billing.Plan, bool) {
	if c.redis == nil {
		return nil, false
	}

	data, err := c.redis.Get(ctx, CatalogRedisKey).Bytes()
	if err == redis.Nil {
		c.metrics.ObserveCatalogCache("redis", false)
		return nil, false
	} else if err != nil {
		c.logger.WithError(err).Warn("shared catalog read failed")
		return nil, false
	}

	var plans []billing.Plan
	if err := json.Unmarshal(data, &plans); err != nil {
		// If unmarshal fails, delete corrupt data
		c.redis.Del(ctx, CatalogRedisKey)
		c.logger.WithError(err).Warn("dropped corrupt shared catalog")
		return nil, false
	}
	c.metrics.ObserveCatalogCache("redis", true)
	return plans, true
}

func (c *CachedCatalog) setShared(ctx context.Context, plans []billing.Plan) {
	if c.redis == nil {
		return
	}
	data, err := json.Marshal(plans)
	if err != nil {
		c.logger.WithError(err).Warn("failed to marshal catalog")
		return
	}
	if err := c.redis.Set(ctx, CatalogRedisKey, data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Warn("shared catalog write failed")
	}
}

func clonePlans(plans []billing.Plan) []billing.Plan {
	out := make([]billing.Plan, len(plans))
	copy(out, plans)
	return out
}

// catalogClient serves GetPlans from a cache and everything else from the
// wrapped client
type catalogClient struct {
	billing.Client
	catalog *CachedCatalog
}

func (c catalogClient) GetPlans(ctx context.Context) ([]billing.Plan, error) {
	return c.catalog.GetPlans(ctx)
}

// WithCatalog returns a client whose catalog reads go through catalog
func WithCatalog(client billing.Client, catalog *CachedCatalog) billing.Client {
	return catalogClient{Client: client, catalog: catalog}
}
