package chunker

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/dshills/repoindex/pkg/types"
)

const (
	// DefaultTargetSize is the default target chunk size in characters
	DefaultTargetSize = 1200

	// DefaultOverlap is the default overlap between fallback chunks in characters
	DefaultOverlap = 150
)

// ErrInvalidOverlap is returned when overlap is negative or not below the target size
var ErrInvalidOverlap = errors.New("chunk overlap must be >= 0 and < target size")

// Config configures a Chunker
type Config struct {
	TargetSize int
	Overlap    int
	Registry   *Registry // nil = DefaultRegistry()
}

// Chunker splits file content using the syntax-aware tier with a recursive fallback
type Chunker struct {
	registry   *Registry
	targetSize int
	overlap    int
	logger     *zap.Logger
}

// New creates a chunker. A zero TargetSize selects the defaults.
func New(cfg Config, logger *zap.Logger) (*Chunker, error) {
	if cfg.TargetSize == 0 {
		cfg.TargetSize = DefaultTargetSize
		if cfg.Overlap == 0 {
			cfg.Overlap = DefaultOverlap
		}
	}
	if cfg.TargetSize < 1 || cfg.Overlap < 0 || cfg.Overlap >= cfg.TargetSize {
		return nil, ErrInvalidOverlap
	}
	if cfg.Registry == nil {
		cfg.Registry = DefaultRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chunker{
		registry:   cfg.Registry,
		targetSize: cfg.TargetSize,
		overlap:    cfg.Overlap,
		logger:     logger,
	}, nil
}

// Split chunks content belonging to path. The only error is ctx cancellation;
// parse failures fall through to the recursive tier.
func (c *Chunker) Split(ctx context.Context, path, content string) ([]types.ChunkSpan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	ext := strings.ToLower(filepath.Ext(path))
	text := []rune(content)
	lines := newLineIndex(text)

	if g, ok := c.registry.Lookup(ext); ok {
		spans, err := syntaxSpans(ctx, g, content, 2*c.targetSize)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			c.logger.Debug("syntax parse failed, using recursive splitter",
				zap.String("path", path), zap.String("grammar", g.Name), zap.Error(err))
		default:
			chunks := make([]types.ChunkSpan, 0, len(spans))
			for _, s := range spans {
				if ch, ok := build(text, lines, s.Span, types.ChunkSyntax); ok {
					ch.NodeType = s.nodeType
					chunks = append(chunks, ch)
				}
			}
			if len(chunks) > 0 {
				number(chunks)
				c.logger.Debug("chunked via syntax tree",
					zap.String("path", path), zap.String("grammar", g.Name), zap.Int("chunks", len(chunks)))
				return chunks, nil
			}
		}
	}

	spans := SplitRecursive(content, SeparatorsFor(ext), c.targetSize, c.overlap)
	chunks := make([]types.ChunkSpan, 0, len(spans))
	for _, s := range spans {
		if ch, ok := build(text, lines, s, types.ChunkRecursive); ok {
			chunks = append(chunks, ch)
		}
	}
	number(chunks)
	c.logger.Debug("chunked via recursive splitter",
		zap.String("path", path), zap.Int("chunks", len(chunks)))
	return chunks, nil
}

// TargetSize returns the configured target chunk size
func (c *Chunker) TargetSize() int {
	return c.targetSize
}

func build(text []rune, lines lineIndex, s Span, kind types.ChunkKind) (types.ChunkSpan, bool) {
	start, end := trimSpan(text, s.Start, s.End)
	if end <= start {
		return types.ChunkSpan{}, false
	}
	content := string(text[start:end])
	return types.ChunkSpan{
		Start:     start,
		End:       end,
		StartLine: lines.lineAt(start),
		EndLine:   lines.lineAt(end - 1),
		Content:   content,
		Hash:      types.HashContent(content),
		Kind:      kind,
	}, true
}

func number(chunks []types.ChunkSpan) {
	for i := range chunks {
		chunks[i].Index = i
	}
}
