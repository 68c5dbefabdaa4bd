// Package chunker splits file content into ordered, line-ranged, hashed chunks
// for embedding and search.
//
// # Basic Usage
//
//	c, err := chunker.New(chunker.Config{TargetSize: 1200, Overlap: 150}, logger)
//	if err != nil {
//	    return err
//	}
//	spans, err := c.Split(ctx, "app/main.py", content)
//
// # Chunking Strategy
//
// Two tiers are tried in order:
//
//  1. Syntax-aware. When the Registry has a tree-sitter grammar for the file
//     extension, the file is parsed and the outermost "chunkable" nodes
//     (functions, methods, classes, structs, interfaces, traits...) whose span
//     is at most twice the target size become chunks. Selected nodes are not
//     descended into, and any span fully contained in another is dropped.
//  2. Recursive fallback. SplitRecursive walks a separator priority list
//     (paragraph breaks, line breaks, punctuation, spaces, then raw
//     characters), merging pieces up to the target size and carrying a
//     character overlap between consecutive chunks.
//
// Tier 2 is used whenever tier 1 is unavailable or yields no chunks.
//
// # Offsets and Lines
//
// All offsets are character (rune) offsets. Tree-sitter byte offsets are mapped
// to characters before slicing so multi-byte text is never cut mid-rune. Chunk
// content is trimmed; Start and End describe the trimmed text, and line
// numbers are 1-based and inclusive.
package chunker
