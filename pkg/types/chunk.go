package types

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ChunkKind records which splitting tier produced a chunk
type ChunkKind string

const (
	ChunkSyntax    ChunkKind = "syntax"
	ChunkRecursive ChunkKind = "recursive"
)

// ChunkSpan is an ordered, line-ranged, hashed span of one file's text
type ChunkSpan struct {
	Index int // Dense, 0-based position within the file

	// Character (rune) offsets into the original content, end exclusive
	Start int
	End   int

	// 1-based, inclusive
	StartLine int
	EndLine   int

	Content string // Trimmed, never blank
	Hash    string // SHA-256 hex of Content

	Kind     ChunkKind
	NodeType string // Syntax node type for tier-1 chunks
}

// Validate checks the span invariants
func (c *ChunkSpan) Validate() error {
	if strings.TrimSpace(c.Content) == "" {
		return ErrEmptyContent
	}
	if c.Start < 0 || c.End <= c.Start {
		return ErrInvalidOffsets
	}
	if c.StartLine < 1 || c.StartLine > c.EndLine {
		return ErrInvalidLineRange
	}
	if c.Hash == "" {
		return ErrMissingHash
	}
	return nil
}

// HashContent computes the SHA-256 hex digest used as a chunk content hash
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
