package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Common errors
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrProviderFailed    = errors.New("embedding provider failed")
	ErrEmptyText         = errors.New("text cannot be empty")
	ErrNoProviderEnabled = errors.New("no embedding provider configured")
	ErrBadResponse       = errors.New("malformed provider response")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// DimensionProbeText is embedded once when a model's dimension is unknown
const DimensionProbeText = "dimension probe"

// IndexedVector is one provider result labelled with its request position
type IndexedVector struct {
	Index  int
	Vector []float32
}

// Provider performs a single embedding request for one batch
type Provider interface {
	// Name returns the provider name
	Name() string

	// EmbedBatch embeds texts in one request. Results may arrive in any order.
	EmbedBatch(ctx context.Context, model string, texts []string) ([]IndexedVector, error)

	// Close releases any resources held by the provider
	Close() error
}

// Embedder is the interface consumed by the indexer and searcher
type Embedder interface {
	// Embed returns one vector per text, in input order
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds a single query text
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the vector width for the configured model
	Dimension(ctx context.Context) (int, error)

	// Model returns the model id
	Model() string

	// Close releases any resources held by the embedder
	Close() error
}

// Cache provides in-memory LRU caching of query vectors by content hash
type Cache struct {
	cache *lru.Cache[string, []float32]
}

// NewCache creates a new vector cache with LRU eviction
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = 10000
	}
	cache, err := lru.New[string, []float32](maxLen)
	if err != nil {
		cache, _ = lru.New[string, []float32](10000)
	}
	return &Cache{cache: cache}
}

// Get retrieves a copy of a cached vector
func (c *Cache) Get(hash string) ([]float32, bool) {
	vec, ok := c.cache.Get(hash)
	if !ok {
		return nil, false
	}
	out := make([]float32, len(vec))
	copy(out, vec)
	return out, true
}

// Set stores a copy of vec
func (c *Cache) Set(hash string, vec []float32) {
	stored := make([]float32, len(vec))
	copy(stored, vec)
	c.cache.Add(hash, stored)
}

// Size returns the current cache size
func (c *Cache) Size() int {
	return c.cache.Len()
}

// Clear empties the cache
func (c *Cache) Clear() {
	c.cache.Purge()
}

// ComputeHash computes the SHA-256 hex hash of text
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// cacheKey scopes a text hash to a model
func cacheKey(model, text string) string {
	return ComputeHash(model + "\x00" + text)
}

// orderByIndex places provider results by their index and verifies that
// every position is filled exactly once with a vector of uniform width.
func orderByIndex(results []IndexedVector, n int) ([][]float32, error) {
	if len(results) != n {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrBadResponse, len(results), n)
	}
	out := make([][]float32, n)
	width := -1
	for _, r := range results {
		if r.Index < 0 || r.Index >= n {
			return nil, fmt.Errorf("%w: index %d out of range", ErrBadResponse, r.Index)
		}
		if out[r.Index] != nil {
			return nil, fmt.Errorf("%w: duplicate index %d", ErrBadResponse, r.Index)
		}
		if len(r.Vector) == 0 {
			return nil, fmt.Errorf("%w: empty vector at index %d", ErrBadResponse, r.Index)
		}
		if width >= 0 && len(r.Vector) != width {
			return nil, fmt.Errorf("%w: vector %d has width %d, want %d", ErrBadResponse, r.Index, len(r.Vector), width)
		}
		width = len(r.Vector)
		out[r.Index] = r.Vector
	}
	return out, nil
}
