package searcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/dshills/repoindex/internal/embedder"
	"github.com/dshills/repoindex/internal/storage"
	"github.com/dshills/repoindex/pkg/types"
)

const (
	// MaxK is the largest number of hits a single search may request
	MaxK = 50

	// DefaultK is used by hosts when the caller does not choose
	DefaultK = 8

	// DefaultPromptChars bounds FormatForPrompt output
	DefaultPromptChars = 12000
)

var (
	// ErrInvalidK is returned when k is outside [1, MaxK]
	ErrInvalidK = fmt.Errorf("k must be between 1 and %d", MaxK)

	// ErrEmptyQuery is returned for a blank query
	ErrEmptyQuery = errors.New("query cannot be empty")

	// ErrInvalidProject is returned for a non-positive project id
	ErrInvalidProject = errors.New("project id must be positive")
)

// Request contains parameters for a search operation
type Request struct {
	ProjectID  int64
	Query      string
	K          int
	PathPrefix string // optional, matched literally against chunk paths
}

// Response contains search hits and metadata
type Response struct {
	Hits     []types.SearchHit // nearest first
	Model    string
	Duration time.Duration
}

// Searcher embeds queries and runs nearest-neighbour lookups against the store
type Searcher struct {
	store    storage.Store
	embedder embedder.Embedder
	logger   *zap.Logger
}

// New creates a new Searcher instance
func New(store storage.Store, emb embedder.Embedder, logger *zap.Logger) *Searcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Searcher{store: store, embedder: emb, logger: logger}
}

// Search embeds the query once and returns at most K hits in ascending
// distance. Embedding and store failures are returned as errors.
func (s *Searcher) Search(ctx context.Context, req Request) (*Response, error) {
	started := time.Now()
	if err := validateRequest(req); err != nil {
		return nil, fmt.Errorf("invalid search request: %w", err)
	}

	vector, err := s.embedder.EmbedQuery(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := s.store.Search(ctx, req.ProjectID, vector, req.K, req.PathPrefix)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	resp := &Response{
		Hits:     hits,
		Model:    s.embedder.Model(),
		Duration: time.Since(started),
	}
	s.logger.Debug("search completed",
		zap.Int64("project_id", req.ProjectID),
		zap.Int("k", req.K),
		zap.String("path_prefix", req.PathPrefix),
		zap.Int("hits", len(hits)),
		zap.Duration("duration", resp.Duration),
	)
	return resp, nil
}

func validateRequest(req Request) error {
	if req.ProjectID <= 0 {
		return ErrInvalidProject
	}
	if strings.TrimSpace(req.Query) == "" {
		return ErrEmptyQuery
	}
	if req.K < 1 || req.K > MaxK {
		return fmt.Errorf("%w: got %d", ErrInvalidK, req.K)
	}
	return nil
}

// FormatForPrompt renders hits as labelled blocks for an LLM prompt:
//
//	=== path:start-end (dist=0.1234) ===
//	content
//
// Blocks are added in order until the next one would exceed maxChars; the
// first block is always included. maxChars <= 0 selects DefaultPromptChars.
func FormatForPrompt(hits []types.SearchHit, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultPromptChars
	}

	parts := make([]string, 0, len(hits))
	used := 0
	for _, h := range hits {
		loc := h.Path
		if h.StartLine > 0 && h.EndLine > 0 {
			loc = fmt.Sprintf("%s:%d-%d", loc, h.StartLine, h.EndLine)
		}
		block := fmt.Sprintf("=== %s (dist=%.4f) ===\n%s\n", loc, h.Distance, h.Content)
		n := utf8.RuneCountInString(block)
		if used+n > maxChars && len(parts) > 0 {
			break
		}
		parts = append(parts, block)
		used += n
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}
