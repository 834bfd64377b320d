package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/brickline/brickline-saas/platform/go/tenant"
)

// Resolver defines the minimal lookup capability required to populate a
// tenant Space from a request host. Implemented by the tenant registry.
type Resolver interface {
	ResolveDomain(ctx context.Context, domain string) (tenant.Space, error)
}

// Config controls middleware behavior.
type Config struct {
	// PlatformSuffix is the fixed platform domain, e.g. "brickline.app".
	// Hosts that do not end in it resolve to the shared space.
	PlatformSuffix string
	// SharedSchema is the fallback schema used when no tenant matches.
	SharedSchema string
	// Optional small in-memory TTL cache to avoid registry hits; zero disables caching.
	CacheTTL time.Duration
}

// WithTenantSpace resolves the tenant from the request host's subdomain and
// attaches a tenant.Space to the context. Unmatched hosts fall back to the
// shared default schema.
func WithTenantSpace(resolver Resolver, cfg Config) func(http.Handler) http.Handler {
	if resolver == nil {
		panic("tenant middleware: resolver is required")
	}
	if cfg.SharedSchema == "" {
		panic("tenant middleware: shared schema is required")
	}

	var cache *spaceCache
	if cfg.CacheTTL > 0 {
		cache = newSpaceCache(cfg.CacheTTL)
	}

	shared := tenant.Space{SchemaName: cfg.SharedSchema, Shared: true}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host := requestHost(r)

			if cfg.PlatformSuffix != "" && !strings.HasSuffix(host, "."+cfg.PlatformSuffix) {
				next.ServeHTTP(w, r.WithContext(tenant.WithSpace(r.Context(), shared)))
				return
			}

			if cached := cacheGet(cache, host); cached != nil {
				next.ServeHTTP(w, r.WithContext(tenant.WithSpace(r.Context(), *cached)))
				return
			}

			space, err := resolver.ResolveDomain(r.Context(), host)
			if err != nil {
				next.ServeHTTP(w, r.WithContext(tenant.WithSpace(r.Context(), shared)))
				return
			}

			cachePut(cache, host, space)
			next.ServeHTTP(w, r.WithContext(tenant.WithSpace(r.Context(), space)))
		})
	}
}

func requestHost(r *http.Request) string {
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.ToLower(host)
}

type spaceCache struct {
	ttl   time.Duration
	items map[string]cacheItem
}

type cacheItem struct {
	space     tenant.Space
	expiresAt time.Time
}

func newSpaceCache(ttl time.Duration) *spaceCache {
	return &spaceCache{ttl: ttl, items: make(map[string]cacheItem)}
}

func cacheGet(c *spaceCache, host string) *tenant.Space {
	if c == nil {
		return nil
	}
	item, ok := c.items[host]
	if !ok || time.Now().After(item.expiresAt) {
		return nil
	}
	return &item.space
}

func cachePut(c *spaceCache, host string, space tenant.Space) {
	if c == nil {
		return
	}
	c.items[host] = cacheItem{space: space, expiresAt: time.Now().Add(c.ttl)}
}
