package dataset

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Source loads a dataset.
type Source interface {
	Load(ctx context.Context) (*Dataset, error)
	Source() string
}

// Cache memoizes the first successful load for the life of the process.
// Failed loads are not cached, so a missing file is picked up once it appears.
type Cache struct {
	src Source

	mu      sync.Mutex
	ds      *Dataset
	lastErr error
}

// NewCache wraps src.
func NewCache(src Source) *Cache {
	return &Cache{src: src}
}

// Get returns the cached dataset, loading it on first use. On failure it
// returns an empty dataset together with the error.
func (c *Cache) Get(ctx context.Context) (*Dataset, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ds != nil {
		return c.ds, nil
	}

	ds, err := c.src.Load(ctx)
	if err != nil {
		c.lastErr = err
		zap.L().Warn("dataset: load failed", zap.String("source", redact(c.src.Source())), zap.Error(err))
		return Empty(redact(c.src.Source())), err
	}
	c.ds = ds
	c.lastErr = nil
	return ds, nil
}

// Source returns the wrapped source with credentials hidden.
func (c *Cache) Source() string { return redact(c.src.Source()) }

// Loaded reports whether a dataset has been cached.
func (c *Cache) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ds != nil
}

// LastError returns the error of the most recent failed load, if no load
// has succeeded since.
func (c *Cache) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}
