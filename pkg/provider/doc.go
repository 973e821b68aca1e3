// Package provider implements billing.Client against real billing backends.
//
// RESTClient talks to a JSON backend that exposes the catalog, proration
// previews and plan changes. StripeClient maps the same calls onto Stripe
// prices, invoice previews and subscription updates, and verifies Stripe
// webhooks. Neither client retries: a retried plan change can bill twice.
//
// Both clients are created once and bound to a subscription per flow:
//
//	backend, _ := provider.NewRESTClient(provider.RESTConfig{BaseURL: url, Token: token})
//	cached := provider.NewCachedBackend(backend, provider.CacheConfig{TTL: 5 * time.Minute, Redis: rdb})
//	client := cached.Bind(subscriptionID)
//
// CachedCatalog keeps the catalog in an expiring in-process LRU and, when a
// redis client is configured, in redis so that replicas share it. Previews and
// plan changes are never cached.
package provider
