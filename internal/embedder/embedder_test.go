package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dshills/repoindex/internal/config"
)

// fakeProvider returns vectors whose first component encodes the text length
// and answers in reverse order to exercise index placement.
type fakeProvider struct {
	mu       sync.Mutex
	calls    int
	failures int // leading calls that fail
	failWith error
	width    int
	batches  [][]string
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) EmbedBatch(_ context.Context, _ string, texts []string) ([]IndexedVector, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.batches = append(f.batches, append([]string(nil), texts...))
	if f.calls <= f.failures {
		return nil, f.failWith
	}
	width := f.width
	if width == 0 {
		width = 4
	}
	out := make([]IndexedVector, 0, len(texts))
	for i := len(texts) - 1; i >= 0; i-- {
		vec := make([]float32, width)
		vec[0] = float32(len(texts[i]))
		out = append(out, IndexedVector{Index: i, Vector: vec})
	}
	return out, nil
}

func (f *fakeProvider) Close() error { return nil }

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func fastRetry(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries: maxRetries,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Multiplier: 2,
		Jitter:     0.1,
	}
}

func newTestClient(t *testing.T, p Provider, opts Options) *Client {
	t.Helper()
	if opts.Model == "" {
		opts.Model = "test-model"
	}
	if opts.Retry == (RetryConfig{}) {
		opts.Retry = fastRetry(3)
	}
	return NewClient(p, opts, zaptest.NewLogger(t))
}

func TestEmbedPreservesOrder(t *testing.T) {
	p := &fakeProvider{}
	c := newTestClient(t, p, Options{BatchSize: 2, Parallelism: 3})

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vectors, err := c.Embed(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))
	for i, text := range texts {
		assert.Equal(t, float32(len(text)), vectors[i][0], "vector %d", i)
	}
	assert.Equal(t, 3, p.callCount())
}

func TestEmbedEmptyInput(t *testing.T) {
	p := &fakeProvider{}
	c := newTestClient(t, p, Options{})

	vectors, err := c.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
	assert.Zero(t, p.callCount())
}

func TestEmbedRejectsBlankText(t *testing.T) {
	c := newTestClient(t, &fakeProvider{}, Options{})
	_, err := c.Embed(context.Background(), []string{"ok", "   "})
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestEmbedRetriesTransientFailure(t *testing.T) {
	p := &fakeProvider{failures: 2, failWith: &StatusError{Code: http.StatusTooManyRequests, Body: "slow down"}}
	c := newTestClient(t, p, Options{})

	vectors, err := c.Embed(context.Background(), []string{"hello"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.Equal(t, 3, p.callCount())
}

func TestEmbedExhaustedRetries(t *testing.T) {
	p := &fakeProvider{failures: 100, failWith: &StatusError{Code: http.StatusBadGateway}}
	c := newTestClient(t, p, Options{Retry: fastRetry(3)})

	_, err := c.Embed(context.Background(), []string{"hello"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderFailed)
	assert.Equal(t, 4, p.callCount())
}

func TestEmbedPermanentFailure(t *testing.T) {
	p := &fakeProvider{failures: 100, failWith: &StatusError{Code: http.StatusBadRequest, Body: "bad input"}}
	c := newTestClient(t, p, Options{})

	_, err := c.Embed(context.Background(), []string{"hello"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderFailed)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.Equal(t, 1, p.callCount())
}

func TestEmbedNoPartialResult(t *testing.T) {
	p := &failingBatchProvider{failOn: "poison"}
	c := newTestClient(t, p, Options{BatchSize: 1, Parallelism: 1, Retry: fastRetry(1)})

	vectors, err := c.Embed(context.Background(), []string{"a", "poison", "c"})
	assert.ErrorIs(t, err, ErrProviderFailed)
	assert.Nil(t, vectors)
}

type failingBatchProvider struct {
	failOn string
}

func (f *failingBatchProvider) Name() string { return "failing" }

func (f *failingBatchProvider) EmbedBatch(_ context.Context, _ string, texts []string) ([]IndexedVector, error) {
	out := make([]IndexedVector, len(texts))
	for i, text := range texts {
		if text == f.failOn {
			return nil, errors.New("connection reset")
		}
		out[i] = IndexedVector{Index: i, Vector: []float32{1, 2}}
	}
	return out, nil
}

func (f *failingBatchProvider) Close() error { return nil }

func TestEmbedCancelled(t *testing.T) {
	c := newTestClient(t, &fakeProvider{}, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Embed(ctx, []string{"a", "b"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOrderByIndex(t *testing.T) {
	vec := []float32{1}
	tests := []struct {
		name    string
		results []IndexedVector
		n       int
		wantErr bool
	}{
		{"ok", []IndexedVector{{Index: 1, Vector: vec}, {Index: 0, Vector: vec}}, 2, false},
		{"count mismatch", []IndexedVector{{Index: 0, Vector: vec}}, 2, true},
		{"duplicate", []IndexedVector{{Index: 0, Vector: vec}, {Index: 0, Vector: vec}}, 2, true},
		{"out of range", []IndexedVector{{Index: 0, Vector: vec}, {Index: 5, Vector: vec}}, 2, true},
		{"ragged", []IndexedVector{{Index: 0, Vector: vec}, {Index: 1, Vector: []float32{1, 2}}}, 2, true},
		{"empty vector", []IndexedVector{{Index: 0}}, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := orderByIndex(tt.results, tt.n)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBadResponse)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(&StatusError{Code: 429}))
	assert.True(t, isRetryable(&StatusError{Code: 500}))
	assert.True(t, isRetryable(&StatusError{Code: 503}))
	assert.True(t, isRetryable(errors.New("connection refused")))
	assert.False(t, isRetryable(&StatusError{Code: 400}))
	assert.False(t, isRetryable(&StatusError{Code: 401}))
	assert.False(t, isRetryable(context.Canceled))
	assert.False(t, isRetryable(ErrEmptyText))
}

func TestDimensionResolution(t *testing.T) {
	t.Run("configured", func(t *testing.T) {
		p := &fakeProvider{}
		c := newTestClient(t, p, Options{Model: "text-embedding-ada-002", Dimension: 42})
		d, err := c.Dimension(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 42, d)
		assert.Zero(t, p.callCount())
	})

	t.Run("static table", func(t *testing.T) {
		p := &fakeProvider{}
		c := newTestClient(t, p, Options{Model: "text-embedding-3-large"})
		d, err := c.Dimension(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 3072, d)
		assert.Zero(t, p.callCount())
	})

	t.Run("probe once", func(t *testing.T) {
		p := &fakeProvider{width: 7}
		c := newTestClient(t, p, Options{Model: "custom-model"})
		d, err := c.Dimension(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 7, d)

		d, err = c.Dimension(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 7, d)
		assert.Equal(t, 1, p.callCount())
		assert.Equal(t, []string{DimensionProbeText}, p.batches[0])
	})
}

func TestEmbedDimensionMismatch(t *testing.T) {
	p := &fakeProvider{width: 3}
	c := newTestClient(t, p, Options{Dimension: 8})
	_, err := c.Embed(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestKnownDimension(t *testing.T) {
	d, ok := KnownDimension("text-embedding-ada-002")
	assert.True(t, ok)
	assert.Equal(t, 1536, d)

	d, ok = KnownDimension("ollama/nomic-embed-text:latest")
	assert.True(t, ok)
	assert.Equal(t, 768, d)

	_, ok = KnownDimension("mystery")
	assert.False(t, ok)
}

func TestEmbedQueryCached(t *testing.T) {
	p := &fakeProvider{}
	c := newTestClient(t, p, Options{})

	v1, err := c.EmbedQuery(context.Background(), "find auth handler")
	require.NoError(t, err)
	v1[1] = 99 // callers must not corrupt the cache

	v2, err := c.EmbedQuery(context.Background(), "find auth handler")
	require.NoError(t, err)
	assert.Equal(t, 1, p.callCount())
	assert.Equal(t, float32(0), v2[1])

	_, err = c.EmbedQuery(context.Background(), " ")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestHTTPProvider(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)

		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		type item struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		resp := struct {
			Data []item `json:"data"`
		}{}
		for i := len(req.Input) - 1; i >= 0; i-- {
			resp.Data = append(resp.Data, item{Embedding: []float32{float32(i), 0.5}, Index: i})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p, err := NewHTTPProvider(ProviderOpenAI, srv.URL, "secret", time.Second)
	require.NoError(t, err)
	c := newTestClient(t, p, Options{Model: "test-model"})

	vectors, err := c.Embed(context.Background(), []string{"zero", "one", "two"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	for i, v := range vectors {
		assert.Equal(t, float32(i), v[0])
	}
	assert.Equal(t, int32(2), hits.Load())
}

func TestHTTPProviderClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invalid model", http.StatusBadRequest)
	}))
	defer srv.Close()

	p, err := NewHTTPProvider(ProviderOpenAI, srv.URL+"/v1/", "", time.Second)
	require.NoError(t, err)

	_, err = p.EmbedBatch(context.Background(), "m", []string{"x"})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.Contains(t, se.Body, "invalid model")
}

func TestEmbeddingsEndpoint(t *testing.T) {
	assert.Equal(t, "https://api.openai.com/v1/embeddings", embeddingsEndpoint("https://api.openai.com"))
	assert.Equal(t, "https://api.openai.com/v1/embeddings", embeddingsEndpoint("https://api.openai.com/"))
	assert.Equal(t, "http://localhost:8080/v1/embeddings", embeddingsEndpoint("http://localhost:8080/v1"))
}

func TestLocalProviderDeterministic(t *testing.T) {
	p := NewLocalProvider(16)
	a, err := p.EmbedBatch(context.Background(), "", []string{"same", "other"})
	require.NoError(t, err)
	b, err := p.EmbedBatch(context.Background(), "", []string{"same"})
	require.NoError(t, err)

	assert.Len(t, a[0].Vector, 16)
	assert.Equal(t, a[0].Vector, b[0].Vector)
	assert.NotEqual(t, a[0].Vector, a[1].Vector)
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.Defaults().Embedding
	cfg.Provider = ProviderLocal
	cfg.Dimension = 0

	c, err := New(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	d, err := c.Dimension(context.Background())
	require.NoError(t, err)
	assert.Equal(t, LocalDimension, d)

	cfg.Provider = "bogus"
	_, err = New(cfg, nil)
	assert.ErrorIs(t, err, ErrNoProviderEnabled)
}

func TestNewDefaultModelPerProvider(t *testing.T) {
	tests := []struct {
		provider string
		want     string
	}{
		{ProviderOpenAI, DefaultOpenAIModel},
		{"", DefaultOpenAIModel},
		{ProviderJina, DefaultJinaModel},
		{"Jina", DefaultJinaModel},
		{ProviderLocal, DefaultLocalModel},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg := config.Defaults().Embedding
			cfg.Provider = tt.provider
			c, err := New(cfg, nil)
			require.NoError(t, err)
			defer func() { _ = c.Close() }()
			assert.Equal(t, tt.want, c.Model())
		})
	}

	cfg := config.Defaults().Embedding
	cfg.Provider = ProviderJina
	cfg.Model = "jina-embeddings-v2-base-en"
	c, err := New(cfg, nil)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()
	assert.Equal(t, "jina-embeddings-v2-base-en", c.Model(), "explicit model wins")
}

func TestCache(t *testing.T) {
	c := NewCache(2)
	c.Set("a", []float32{1})
	c.Set("b", []float32{2})
	c.Set("c", []float32{3})
	assert.Equal(t, 2, c.Size())
	_, ok := c.Get("a")
	assert.False(t, ok)
	v, ok := c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, []float32{3}, v)
	c.Clear()
	assert.Zero(t, c.Size())
}
