// Package qcache caches compiled queries by compilation structure.
//
// Only reusable results are cached: a query that had parameter values
// substituted into its text is specific to those values.
package qcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/ogm/internal/canon"
	"github.com/roach88/ogm/internal/cypher"
	"github.com/roach88/ogm/internal/queryexpr"
)

// ErrMiss is returned by Get when the key is not cached.
var ErrMiss = errors.New("cache miss")

// Cache stores compiled queries.
type Cache interface {
	Get(ctx context.Context, key string) (*cypher.CompiledQuery, error)
	Put(ctx context.Context, key string, q *cypher.CompiledQuery) error
}

// Key derives the cache key for a compilation against the mapping
// metadata identified by schema (see SchemaFingerprint).
func Key(schema string, comp queryexpr.Compilation) (string, error) {
	data, err := canon.Marshal(map[string]any{
		"schema":      schema,
		"candidate":   comp.Candidate,
		"compilation": comp.String(),
	})
	if err != nil {
		return "", fmt.Errorf("cache key: %w", err)
	}
	return canon.HashWithDomain(canon.DomainQuery, data), nil
}

// Compile returns the cached result for comp or compiles and caches it.
// A nil cache compiles every time.
func Compile(ctx context.Context, cache Cache, compiler *cypher.QueryCompiler, comp queryexpr.Compilation) (*cypher.CompiledQuery, error) {
	if cache == nil {
		return compiler.Compile(comp)
	}
	schema, err := SchemaFingerprint(compiler.Repository())
	if err != nil {
		return nil, err
	}
	key, err := Key(schema, comp)
	if err != nil {
		return nil, err
	}

	q, err := cache.Get(ctx, key)
	switch {
	case err == nil:
		slog.Debug("compiled query cache hit", "key", key, "candidate", comp.Candidate)
		return q, nil
	case !errors.Is(err, ErrMiss):
		slog.Warn("compiled query cache unavailable", "error", err)
	}

	q, err = compiler.Compile(comp)
	if err != nil {
		return nil, err
	}
	if !q.Reusable {
		return q, nil
	}
	if err := cache.Put(ctx, key, q); err != nil {
		slog.Warn("compiled query not cached", "key", key, "error", err)
	}
	return q, nil
}

// MemoryCache is an unbounded in-process cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]cypher.CompiledQuery
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]cypher.CompiledQuery)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (*cypher.CompiledQuery, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q, ok := c.entries[key]
	if !ok {
		return nil, ErrMiss
	}
	return &q, nil
}

func (c *MemoryCache) Put(_ context.Context, key string, q *cypher.CompiledQuery) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = *q
	return nil
}

// Len returns the number of cached entries.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
