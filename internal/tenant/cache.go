// Package tenant provides the versioned tenant configuration cache.
//
// Every request reads an immutable per-tenant snapshot from the cache.
// Writes happen only through Replace (full reload, e.g. from the config
// watcher) or Invalidate (single-tenant refresh from the source). Both
// bump the cache version so consumers can detect staleness.
package tenant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/vyrodovalexey/tenantgate/internal/config"
	"github.com/vyrodovalexey/tenantgate/internal/observability"
)

// ErrTenantNotFound indicates that no tenant matches the lookup.
var ErrTenantNotFound = errors.New("tenant not found")

// Source provides fresh tenant configuration. In production this is
// backed by the persistent store; the config file source is the default.
type Source interface {
	// LoadTenants returns the full tenant table.
	LoadTenants(ctx context.Context) ([]config.TenantConfig, error)

	// LoadTenant returns a single tenant's configuration.
	LoadTenant(ctx context.Context, tid int64) (*config.TenantConfig, error)
}

// Cache holds immutable per-tenant configuration snapshots.
type Cache struct {
	source  Source
	logger  observability.Logger
	version atomic.Uint64

	mu     sync.RWMutex
	byID   map[int64]*config.TenantConfig
	byHost map[string]int64
}

// CacheOption is a functional option for the cache.
type CacheOption func(*Cache)

// WithCacheLogger sets the logger.
func WithCacheLogger(logger observability.Logger) CacheOption {
	return func(c *Cache) {
		c.logger = logger
	}
}

// NewCache creates a tenant cache and performs the initial load.
func NewCache(ctx context.Context, source Source, opts ...CacheOption) (*Cache, error) {
	c := &Cache{
		source: source,
		logger: observability.NopLogger(),
		byID:   make(map[int64]*config.TenantConfig),
		byHost: make(map[string]int64),
	}

	for _, opt := range opts {
		opt(c)
	}

	tenants, err := source.LoadTenants(ctx)
	if err != nil {
		return nil, err
	}
	c.replace(tenants)

	return c, nil
}

// Snapshot returns the immutable configuration snapshot for a tenant.
// Callers must not modify the returned value and should read it once per
// decision point; a refresh may replace it between reads.
func (c *Cache) Snapshot(tid int64) (*config.TenantConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.byID[tid]
	return t, ok
}

// ResolveHost maps a request host (without port) to a tenant ID, falling
// back to the root tenant when no hostname matches.
func (c *Cache) ResolveHost(host string) int64 {
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if tid, ok := c.byHost[strings.ToLower(host)]; ok {
		return tid
	}
	return config.RootTenantID
}

// Invalidate refreshes a single tenant's snapshot from the source and
// bumps the cache version. A tenant the source no longer knows is
// removed from the cache.
func (c *Cache) Invalidate(ctx context.Context, tid int64) error {
	fresh, err := c.source.LoadTenant(ctx, tid)
	if err != nil && !errors.Is(err, ErrTenantNotFound) {
		return err
	}

	c.mu.Lock()
	if old, ok := c.byID[tid]; ok && old.Hostname != "" {
		delete(c.byHost, strings.ToLower(old.Hostname))
	}
	if fresh == nil {
		delete(c.byID, tid)
	} else {
		snapshot := cloneTenant(fresh)
		c.byID[tid] = snapshot
		if snapshot.Hostname != "" {
			c.byHost[strings.ToLower(snapshot.Hostname)] = tid
		}
	}
	c.mu.Unlock()

	c.version.Add(1)

	c.logger.Debug("tenant state refreshed",
		observability.Int64("tenant_id", tid),
		observability.Uint64("version", c.version.Load()),
	)

	return nil
}

// Replace swaps in a full tenant table, e.g. after a config reload.
func (c *Cache) Replace(tenants []config.TenantConfig) {
	c.replace(tenants)

	c.logger.Info("tenant table replaced",
		observability.Int("tenants", len(tenants)),
		observability.Uint64("version", c.version.Load()),
	)
}

// Version returns the current cache version. It increases on every
// Invalidate or Replace.
func (c *Cache) Version() uint64 {
	return c.version.Load()
}

func (c *Cache) replace(tenants []config.TenantConfig) {
	byID := make(map[int64]*config.TenantConfig, len(tenants))
	byHost := make(map[string]int64, len(tenants))

	for i := range tenants {
		snapshot := cloneTenant(&tenants[i])
		byID[snapshot.ID] = snapshot
		if snapshot.Hostname != "" {
			byHost[strings.ToLower(snapshot.Hostname)] = snapshot.ID
		}
	}

	c.mu.Lock()
	c.byID = byID
	c.byHost = byHost
	c.mu.Unlock()

	c.version.Add(1)
}

// cloneTenant deep-copies a tenant config so cached snapshots never
// alias caller-owned memory.
func cloneTenant(t *config.TenantConfig) *config.TenantConfig {
	snapshot := *t
	if t.Features != nil {
		snapshot.Features = make(map[string]bool, len(t.Features))
		for k, v := range t.Features {
			snapshot.Features[k] = v
		}
	}
	return &snapshot
}

// StaticSource serves tenants from an in-memory table. The config file
// loader produces one; tests use it directly.
type StaticSource struct {
	mu      sync.RWMutex
	tenants []config.TenantConfig
}

// NewStaticSource creates a static tenant source.
func NewStaticSource(tenants []config.TenantConfig) *StaticSource {
	return &StaticSource{tenants: tenants}
}

// Update replaces the source table.
func (s *StaticSource) Update(tenants []config.TenantConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants = tenants
}

// LoadTenants returns the full tenant table.
func (s *StaticSource) LoadTenants(_ context.Context) ([]config.TenantConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]config.TenantConfig, len(s.tenants))
	copy(out, s.tenants)
	return out, nil
}

// LoadTenant returns a single tenant's configuration.
func (s *StaticSource) LoadTenant(_ context.Context, tid int64) (*config.TenantConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.tenants {
		if s.tenants[i].ID == tid {
			t := s.tenants[i]
			return &t, nil
		}
	}
	return nil, ErrTenantNotFound
}

// Ensure StaticSource implements Source.
var _ Source = (*StaticSource)(nil)
