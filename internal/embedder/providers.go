package embedder

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

// Provider names
const (
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"

	// Default endpoints
	DefaultOpenAIBaseURL = "https://api.openai.com"
	DefaultJinaBaseURL   = "https://api.jina.ai"

	// Default models
	DefaultOpenAIModel = "text-embedding-ada-002"
	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultLocalModel  = "local-hash"

	LocalDimension = 384

	// Batch limits
	DefaultBatchSize   = 64
	MaxBatchSize       = 2048
	DefaultParallelism = 4
	DefaultHTTPTimeout = 60 * time.Second

	// Retry configuration
	MaxRetries        = 3
	DefaultBaseDelay  = 1500 * time.Millisecond
	DefaultMaxDelay   = 30 * time.Second
	BackoffMultiplier = 2.0
	BackoffJitter     = 0.1

	maxErrorBody = 4 << 10
)

// StatusError is a non-2xx provider response
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Code, e.Body)
}

// HTTPProvider talks to an OpenAI-compatible /v1/embeddings endpoint.
// OpenAI, Jina and most self-hosted inference servers share this shape.
type HTTPProvider struct {
	name       string
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPProvider creates a provider for baseURL. A baseURL that already ends
// in /v1 is accepted as-is.
func NewHTTPProvider(name, baseURL, apiKey string, timeout time.Duration) (*HTTPProvider, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: base URL is required", ErrNoProviderEnabled)
	}
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &HTTPProvider{
		name:     name,
		endpoint: embeddingsEndpoint(baseURL),
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

func embeddingsEndpoint(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if strings.HasSuffix(base, "/v1") {
		return base + "/embeddings"
	}
	return base + "/v1/embeddings"
}

// Name returns the provider name
func (p *HTTPProvider) Name() string {
	return p.name
}

// EmbedBatch posts texts in one request and returns the labelled vectors
func (p *HTTPProvider) EmbedBatch(ctx context.Context, model string, texts []string) ([]IndexedVector, error) {
	reqBody := struct {
		Input []string `json:"input"`
		Model string   `json:"model"`
	}{Input: texts, Model: model}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(bodyBytes))}
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     *int      `json:"index"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrBadResponse, err)
	}

	out := make([]IndexedVector, len(apiResp.Data))
	for i, d := range apiResp.Data {
		if d.Index == nil {
			return nil, fmt.Errorf("%w: item %d has no index", ErrBadResponse, i)
		}
		out[i] = IndexedVector{Index: *d.Index, Vector: d.Embedding}
	}
	return out, nil
}

// Close releases idle connections
func (p *HTTPProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// LocalProvider produces deterministic hash-derived unit vectors. It needs no
// network and is meant for offline runs and tests; the vectors carry no
// semantic meaning beyond exact-text identity.
type LocalProvider struct {
	dimension int
}

// NewLocalProvider creates a local provider with the given vector width
func NewLocalProvider(dimension int) *LocalProvider {
	if dimension <= 0 {
		dimension = LocalDimension
	}
	return &LocalProvider{dimension: dimension}
}

// Name returns the provider name
func (l *LocalProvider) Name() string {
	return ProviderLocal
}

// EmbedBatch hashes each text into a vector
func (l *LocalProvider) EmbedBatch(ctx context.Context, _ string, texts []string) ([]IndexedVector, error) {
	out := make([]IndexedVector, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = IndexedVector{Index: i, Vector: l.vector(text)}
	}
	return out, nil
}

func (l *LocalProvider) vector(text string) []float32 {
	vec := make([]float32, l.dimension)
	seed := sha256.Sum256([]byte(text))
	block := seed
	for i := 0; i < l.dimension; i++ {
		off := (i % 8) * 4
		if i > 0 && off == 0 {
			block = sha256.Sum256(block[:])
		}
		u := binary.LittleEndian.Uint32(block[off : off+4])
		vec[i] = float32(u)/float32(math.MaxUint32)*2 - 1
	}
	return NormalizeVector(vec)
}

// Close is a no-op
func (l *LocalProvider) Close() error {
	return nil
}

// NormalizeVector normalizes a vector to unit length
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val * val)
	}

	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}

	return result
}
