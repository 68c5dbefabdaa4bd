package searcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dshills/repoindex/internal/embedder"
	"github.com/dshills/repoindex/internal/storage"
	"github.com/dshills/repoindex/pkg/types"
)

const testDim = 16

type failingEmbedder struct {
	*embedder.Client
}

func (failingEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return nil, errors.New("provider down")
}

func newEmbedder() *embedder.Client {
	return embedder.NewClient(embedder.NewLocalProvider(testDim), embedder.Options{Model: "local-hash", Dimension: testDim}, nil)
}

// setupSearcher indexes n chunks of project 1 and returns their contents
func setupSearcher(t *testing.T, n int) (*Searcher, []string) {
	t.Helper()
	ctx := context.Background()
	store, err := storage.NewSQLiteStorage(ctx, ":memory:", 0, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.EnsureSchema(ctx, testDim))

	emb := newEmbedder()
	contents := make([]string, n)
	for i := range contents {
		contents[i] = fmt.Sprintf("func handler%d(w http.ResponseWriter) {}", i)
	}
	vectors, err := emb.Embed(ctx, contents)
	require.NoError(t, err)

	rows := make([]storage.ChunkRow, n)
	for i, c := range contents {
		dir := "api"
		if i%2 == 1 {
			dir = "web"
		}
		rows[i] = storage.ChunkRow{
			Path:          fmt.Sprintf("%s/file%d.go", dir, i),
			StartLine:     1,
			EndLine:       3,
			Content:       c,
			ContentSHA256: types.HashContent(c),
			Embedding:     vectors[i],
		}
	}
	require.NoError(t, store.BulkInsert(ctx, 1, rows))
	return New(store, emb, zaptest.NewLogger(t)), contents
}

func TestSearch_NearestFirst(t *testing.T) {
	s, contents := setupSearcher(t, 12)

	resp, err := s.Search(context.Background(), Request{ProjectID: 1, Query: contents[3], K: 5})
	require.NoError(t, err)
	require.Len(t, resp.Hits, 5)
	assert.Equal(t, "local-hash", resp.Model)

	assert.Equal(t, contents[3], resp.Hits[0].Content)
	assert.InDelta(t, 0, resp.Hits[0].Distance, 1e-5)
	for i := 1; i < len(resp.Hits); i++ {
		assert.LessOrEqual(t, resp.Hits[i-1].Distance, resp.Hits[i].Distance)
	}
	for _, h := range resp.Hits {
		assert.NoError(t, h.Validate())
	}
}

func TestSearch_PathPrefix(t *testing.T) {
	s, contents := setupSearcher(t, 6)

	resp, err := s.Search(context.Background(), Request{ProjectID: 1, Query: contents[0], K: 50, PathPrefix: "web/"})
	require.NoError(t, err)
	require.Len(t, resp.Hits, 3)
	for _, h := range resp.Hits {
		assert.True(t, strings.HasPrefix(h.Path, "web/"), h.Path)
	}
}

func TestSearch_UnindexedProject(t *testing.T) {
	s, _ := setupSearcher(t, 2)

	resp, err := s.Search(context.Background(), Request{ProjectID: 99, Query: "anything", K: 5})
	require.NoError(t, err)
	assert.Empty(t, resp.Hits)
}

func TestSearch_Validation(t *testing.T) {
	s, _ := setupSearcher(t, 1)
	ctx := context.Background()

	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"k zero", Request{ProjectID: 1, Query: "q", K: 0}, ErrInvalidK},
		{"k too large", Request{ProjectID: 1, Query: "q", K: MaxK + 1}, ErrInvalidK},
		{"blank query", Request{ProjectID: 1, Query: "  \n", K: 5}, ErrEmptyQuery},
		{"no project", Request{Query: "q", K: 5}, ErrInvalidProject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Search(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := s.Search(ctx, Request{ProjectID: 1, Query: "q", K: MaxK})
	assert.NoError(t, err)
}

func TestSearch_EmbeddingFailure(t *testing.T) {
	s, _ := setupSearcher(t, 1)
	broken := New(s.store, failingEmbedder{Client: newEmbedder()}, nil)

	_, err := broken.Search(context.Background(), Request{ProjectID: 1, Query: "q", K: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider down")
}

func TestFormatForPrompt(t *testing.T) {
	hits := []types.SearchHit{
		{Path: "a.go", StartLine: 1, EndLine: 4, Content: "package a", Distance: 0.12345},
		{Path: "b.go", Content: "package b", Distance: 1},
	}

	got := FormatForPrompt(hits, 0)
	want := "=== a.go:1-4 (dist=0.1235) ===\npackage a\n\n=== b.go (dist=1.0000) ===\npackage b"
	assert.Equal(t, want, got)
}

func TestFormatForPrompt_MaxChars(t *testing.T) {
	long := strings.Repeat("x", 100)
	hits := []types.SearchHit{
		{Path: "a.go", StartLine: 1, EndLine: 1, Content: long},
		{Path: "b.go", StartLine: 1, EndLine: 1, Content: long},
	}

	got := FormatForPrompt(hits, 50)
	assert.Contains(t, got, "a.go", "the first block is always kept")
	assert.NotContains(t, got, "b.go")

	got = FormatForPrompt(hits, 1000)
	assert.Contains(t, got, "b.go")

	assert.Empty(t, FormatForPrompt(nil, 100))
}
