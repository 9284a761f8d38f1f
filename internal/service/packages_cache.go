package service

import (
	"sync"
	"time"

	"github.com/darknetduel/client/internal/domain"
)

type PackagesCache struct {
	mu       sync.RWMutex
	packages []domain.Package
	cachedAt time.Time
	ttl      time.Duration
}

func NewPackagesCache(ttl time.Duration) *PackagesCache {
	return &PackagesCache{ttl: ttl}
}

func (c *PackagesCache) Get() []domain.Package {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.packages == nil || time.Since(c.cachedAt) > c.ttl {
		return nil
	}
	return c.packages
}

func (c *PackagesCache) Set(packages []domain.Package) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.packages = packages
	c.cachedAt = time.Now()
}
