package chunker

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/repoindex/pkg/types"
)

func newTestChunker(t *testing.T, target, overlap int) *Chunker {
	t.Helper()
	c, err := New(Config{TargetSize: target, Overlap: overlap}, nil)
	require.NoError(t, err)
	return c
}

// pythonFunction builds a function of roughly n characters
func pythonFunction(name string, n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "def %s(value):\n", name)
	for i := 0; b.Len() < n-20; i++ {
		fmt.Fprintf(&b, "    value = value + %d\n", i)
	}
	b.WriteString("    return value\n")
	return b.String()
}

func assertSpanInvariants(t *testing.T, content string, chunks []types.ChunkSpan) {
	t.Helper()
	runes := []rune(content)
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Index)
		assert.NoError(t, ch.Validate())
		assert.LessOrEqual(t, ch.StartLine, ch.EndLine)
		assert.Equal(t, string(runes[ch.Start:ch.End]), ch.Content)
		assert.Equal(t, strings.TrimSpace(ch.Content), ch.Content)
		assert.Equal(t, types.HashContent(ch.Content), ch.Hash)
	}
}

func TestNew_RejectsInvalidOverlap(t *testing.T) {
	_, err := New(Config{TargetSize: 100, Overlap: 100}, nil)
	assert.ErrorIs(t, err, ErrInvalidOverlap)

	_, err = New(Config{TargetSize: 100, Overlap: -1}, nil)
	assert.ErrorIs(t, err, ErrInvalidOverlap)

	c, err := New(Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultTargetSize, c.TargetSize())
}

func TestSplit_PythonTwoTopLevelFunctions(t *testing.T) {
	first := pythonFunction("first", 1500)
	second := pythonFunction("second", 1500)
	content := "# module header\n\n" + first + "\n\n" + second
	require.InDelta(t, 3000, len(content), 150)

	c := newTestChunker(t, 1200, 150)
	chunks, err := c.Split(context.Background(), "pkg/module.py", content)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, strings.TrimSpace(first), chunks[0].Content)
	assert.Equal(t, strings.TrimSpace(second), chunks[1].Content)
	assert.LessOrEqual(t, chunks[0].End, chunks[1].Start, "tier-1 chunks must not overlap")
	for _, ch := range chunks {
		assert.Equal(t, types.ChunkSyntax, ch.Kind)
		assert.Equal(t, "function_definition", ch.NodeType)
	}
	assert.Equal(t, 3, chunks[0].StartLine)
	assertSpanInvariants(t, content, chunks)
}

func TestSplit_DoesNotDescendIntoSelectedNode(t *testing.T) {
	content := `class Greeter:
    def hello(self):
        return "hello"

    def bye(self):
        return "bye"
`
	chunks, err := newTestChunker(t, 1200, 150).Split(context.Background(), "greeter.py", content)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "class_definition", chunks[0].NodeType)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 6, chunks[0].EndLine)
}

func TestSplit_OversizedNodeDescends(t *testing.T) {
	// the class exceeds 2x target, so its methods are selected instead
	var b strings.Builder
	b.WriteString("class Big:\n")
	for i := 0; i < 6; i++ {
		fmt.Fprintf(&b, "    def m%d(self):\n        return %d\n\n", i, i)
	}
	content := b.String()

	chunks, err := newTestChunker(t, 40, 10).Split(context.Background(), "big.py", content)
	require.NoError(t, err)
	require.Len(t, chunks, 6)
	for i, ch := range chunks {
		assert.Equal(t, "function_definition", ch.NodeType)
		assert.True(t, strings.HasPrefix(ch.Content, fmt.Sprintf("def m%d", i)))
	}
	assertSpanInvariants(t, content, chunks)
}

func TestSplit_ContainmentFree(t *testing.T) {
	content := `package main

import "fmt"

type Server struct {
	addr string
}

func (s *Server) Start() error {
	fmt.Println("start", s.addr)
	return nil
}

func main() {
	s := &Server{addr: ":8080"}
	_ = s.Start()
}
`
	chunks, err := newTestChunker(t, 1200, 150).Split(context.Background(), "main.go", content)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, "type_declaration", chunks[0].NodeType)
	assert.Equal(t, "method_declaration", chunks[1].NodeType)
	assert.Equal(t, "function_declaration", chunks[2].NodeType)

	for i, a := range chunks {
		for j, b := range chunks {
			if i == j {
				continue
			}
			contained := a.Start >= b.Start && a.End <= b.End
			assert.False(t, contained, "chunk %d contained in chunk %d", i, j)
		}
	}
	assertSpanInvariants(t, content, chunks)
}

func TestSplit_MultiByteOffsets(t *testing.T) {
	content := "# héllo wörld ✓\n\ndef greet():\n    return \"grüße\"\n"
	chunks, err := newTestChunker(t, 1200, 150).Split(context.Background(), "greet.py", content)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "def greet():\n    return \"grüße\"", chunks[0].Content)
	assert.Equal(t, 3, chunks[0].StartLine)
	assert.Equal(t, 4, chunks[0].EndLine)
	assertSpanInvariants(t, content, chunks)
}

func TestSplit_FallsBackWhenNoChunkableNodes(t *testing.T) {
	content := "x = 1\ny = 2\nprint(x + y)\n"
	chunks, err := newTestChunker(t, 1200, 150).Split(context.Background(), "script.py", content)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, types.ChunkRecursive, chunks[0].Kind)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 3, chunks[0].EndLine)
}

func TestSplit_RecursiveTierForUnknownLanguage(t *testing.T) {
	var b strings.Builder
	for i := 1; i <= 60; i++ {
		fmt.Fprintf(&b, "paragraph %d has some words in it.\n", i)
		if i%6 == 0 {
			b.WriteString("\n")
		}
	}
	content := b.String()

	chunks, err := newTestChunker(t, 200, 40).Split(context.Background(), "docs/notes.txt", content)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		assert.Equal(t, types.ChunkRecursive, ch.Kind)
		assert.LessOrEqual(t, len([]rune(ch.Content)), 200)
		assert.True(t, strings.Contains(content, ch.Content))
	}
	assertSpanInvariants(t, content, chunks)
}

func TestSplit_BlankContent(t *testing.T) {
	chunks, err := newTestChunker(t, 1200, 150).Split(context.Background(), "empty.go", "  \n\t\n")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSplit_SingleLineHasLineOne(t *testing.T) {
	chunks, err := newTestChunker(t, 1200, 150).Split(context.Background(), "a.json", `{"a": 1}`)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 1, chunks[0].EndLine)
}

func TestSplit_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestChunker(t, 1200, 150).Split(ctx, "a.py", "def f():\n    pass\n")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRegistryLookup(t *testing.T) {
	r := DefaultRegistry()

	g, ok := r.Lookup(".PY")
	require.True(t, ok)
	assert.Equal(t, "python", g.Name)
	assert.True(t, g.Chunkable("decorated_definition"))

	g, ok = r.Lookup(".h")
	require.True(t, ok)
	assert.Equal(t, "cpp", g.Name)

	_, ok = r.Lookup(".md")
	assert.False(t, ok)
}

func TestDropContained(t *testing.T) {
	spans := []syntaxSpan{
		{Span: Span{0, 100}, nodeType: "outer"},
		{Span: Span{10, 20}, nodeType: "inner"},
		{Span: Span{100, 150}, nodeType: "next"},
		{Span: Span{100, 150}, nodeType: "duplicate"},
	}
	got := dropContained(spans)
	require.Len(t, got, 2)
	assert.Equal(t, "outer", got[0].nodeType)
	assert.Equal(t, "next", got[1].nodeType)
}

func TestLineIndex(t *testing.T) {
	li := newLineIndex([]rune("ab\ncd\n\nef"))
	assert.Equal(t, 1, li.lineAt(0))
	assert.Equal(t, 1, li.lineAt(2)) // the newline itself belongs to line 1
	assert.Equal(t, 2, li.lineAt(3))
	assert.Equal(t, 3, li.lineAt(6))
	assert.Equal(t, 4, li.lineAt(7))
}

func TestByteToRune(t *testing.T) {
	m := newByteToRune("aé✓b")
	// bytes: a(1) é(2) ✓(3) b(1)
	assert.Equal(t, 0, m.at(0))
	assert.Equal(t, 1, m.at(1))
	assert.Equal(t, 2, m.at(3))
	assert.Equal(t, 3, m.at(6))
	assert.Equal(t, 4, m.at(7))
	assert.Equal(t, 4, m.at(100))
}
