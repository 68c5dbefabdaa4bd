package embedder

import "strings"

// knownDimensions maps model ids to their output width
var knownDimensions = map[string]int{
	"text-embedding-ada-002":     1536,
	"text-embedding-3-small":     1536,
	"text-embedding-3-large":     3072,
	"jina-embeddings-v2-base-en": 768,
	"jina-embeddings-v3":         1024,
	"nomic-embed-text":           768,
	"all-minilm":                 384,
	"mxbai-embed-large":          1024,
}

// KnownDimension returns the static width for model, ignoring any
// "provider/" prefix and ":tag" suffix.
func KnownDimension(model string) (int, bool) {
	m := strings.ToLower(strings.TrimSpace(model))
	if i := strings.LastIndex(m, "/"); i >= 0 {
		m = m[i+1:]
	}
	if i := strings.Index(m, ":"); i >= 0 {
		m = m[:i]
	}
	d, ok := knownDimensions[m]
	return d, ok
}
