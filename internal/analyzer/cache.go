package analyzer

import (
	"fmt"
	"maps"
	"slices"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/dshills/repoindex/pkg/types"
)

// DefaultCacheEntries bounds the analysis cache when no size is configured
const DefaultCacheEntries = 256

type cacheEntry struct {
	token    string
	analysis types.RepositoryAnalysis
}

// Cache holds the latest analysis per project, valid for one version token
type Cache struct {
	c *ristretto.Cache[int64, cacheEntry]
}

// NewCache creates a cache holding up to entries projects
func NewCache(entries int) (*Cache, error) {
	if entries <= 0 {
		entries = DefaultCacheEntries
	}
	c, err := ristretto.NewCache(&ristretto.Config[int64, cacheEntry]{
		NumCounters:        int64(entries) * 10,
		MaxCost:            int64(entries),
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create analysis cache: %w", err)
	}
	return &Cache{c: c}, nil
}

// Get returns the cached analysis when it was stored under the same token
func (c *Cache) Get(projectID int64, token string) (types.RepositoryAnalysis, bool) {
	e, ok := c.c.Get(projectID)
	if !ok || e.token != token {
		return types.RepositoryAnalysis{}, false
	}
	return cloneAnalysis(e.analysis), true
}

// Put stores analysis for projectID, replacing any previous version
func (c *Cache) Put(projectID int64, token string, analysis types.RepositoryAnalysis) {
	c.c.Set(projectID, cacheEntry{token: token, analysis: cloneAnalysis(analysis)}, 1)
}

// Invalidate drops the entry for projectID
func (c *Cache) Invalidate(projectID int64) {
	c.c.Del(projectID)
}

// Wait blocks until buffered writes are applied
func (c *Cache) Wait() {
	c.c.Wait()
}

// Close releases the cache
func (c *Cache) Close() {
	c.c.Close()
}

func cloneAnalysis(a types.RepositoryAnalysis) types.RepositoryAnalysis {
	out := a
	if a.Framework != nil {
		fw := *a.Framework
		out.Framework = &fw
	}
	out.LanguageBreakdown = maps.Clone(a.LanguageBreakdown)
	out.FrameworkScores = maps.Clone(a.FrameworkScores)
	out.EntryPoints = slices.Clone(a.EntryPoints)
	out.Dependencies = slices.Clone(a.Dependencies)
	out.APIEndpoints = slices.Clone(a.APIEndpoints)
	out.Models = slices.Clone(a.Models)
	out.ImportantFiles = slices.Clone(a.ImportantFiles)
	return out
}
