package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitRecursive_ShortText(t *testing.T) {
	spans := SplitRecursive("hello world", codeSeparators, 100, 10)
	assert.Equal(t, []Span{{Start: 0, End: 11}}, spans)
}

func TestSplitRecursive_BlankText(t *testing.T) {
	assert.Empty(t, SplitRecursive("", codeSeparators, 100, 10))
	assert.Empty(t, SplitRecursive(" \n\t\n ", codeSeparators, 100, 10))
}

func TestSplitRecursive_MergesPiecesUpToSize(t *testing.T) {
	text := "aaaa\n\nbbbb\n\ncccc"
	spans := SplitRecursive(text, []string{"\n\n", ""}, 10, 0)
	assert.Equal(t, []Span{{0, 6}, {6, 16}}, spans)
}

func TestSplitRecursive_CarriesOverlap(t *testing.T) {
	text := "aaaa\n\nbbbb\n\ncccc"
	spans := SplitRecursive(text, []string{"\n\n", ""}, 10, 3)
	assert.Equal(t, []Span{{0, 6}, {3, 12}, {9, 16}}, spans)
}

func TestSplitRecursive_FixedWindowsWithoutSeparators(t *testing.T) {
	spans := SplitRecursive("abcdefghij", nil, 4, 1)
	assert.Equal(t, []Span{{0, 4}, {3, 7}, {6, 10}}, spans)

	// separators that never occur behave the same way
	spans = SplitRecursive("abcdefghij", []string{"\n", ";"}, 4, 1)
	assert.Equal(t, []Span{{0, 4}, {3, 7}, {6, 10}}, spans)
}

func TestSplitRecursive_RecursesIntoOversizedPiece(t *testing.T) {
	// second paragraph is longer than size and must be split by lines
	text := "intro\n\n" + "line one\nline two\nline three\n" + "\n\noutro"
	spans := SplitRecursive(text, []string{"\n\n", "\n", ""}, 12, 0)
	require.NotEmpty(t, spans)

	runes := []rune(text)
	for _, s := range spans {
		assert.LessOrEqual(t, s.End-s.Start, 12)
	}
	var got []string
	for _, s := range spans {
		got = append(got, strings.TrimSpace(string(runes[s.Start:s.End])))
	}
	assert.Contains(t, got, "intro")
	assert.Contains(t, got, "line one")
	assert.Contains(t, got, "line three")
	assert.Contains(t, got, "outro")
}

func TestSplitRecursive_Properties(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 200; i++ {
		b.WriteString("word")
		switch {
		case i%17 == 0:
			b.WriteString(".\n\n")
		case i%5 == 0:
			b.WriteString(",\n")
		default:
			b.WriteString(" ")
		}
	}
	text := b.String()
	runes := []rune(text)

	for _, seps := range [][]string{codeSeparators, proseSeparators, markdownSeparators, tabularSeparators} {
		spans := SplitRecursive(text, seps, 80, 20)
		require.NotEmpty(t, spans)

		covered := make([]bool, len(runes))
		for _, s := range spans {
			assert.GreaterOrEqual(t, s.Start, 0)
			assert.LessOrEqual(t, s.End, len(runes))
			assert.Less(t, s.Start, s.End)
			assert.LessOrEqual(t, s.End-s.Start, 80)
			assert.NotEmpty(t, strings.TrimSpace(string(runes[s.Start:s.End])))
			for i := s.Start; i < s.End; i++ {
				covered[i] = true
			}
		}
		// every non-space character lands in some span
		for i, r := range runes {
			if r != ' ' && r != '\n' {
				assert.True(t, covered[i], "offset %d not covered", i)
			}
		}
	}
}

func TestSplitRecursive_MultiByte(t *testing.T) {
	text := strings.Repeat("héllo wörld ✓ ", 20)
	spans := SplitRecursive(text, codeSeparators, 30, 5)
	require.NotEmpty(t, spans)

	runes := []rune(text)
	for _, s := range spans {
		assert.LessOrEqual(t, s.End-s.Start, 30)
		assert.LessOrEqual(t, s.End, len(runes))
	}
}

func TestSplitRecursive_ClampsOverlap(t *testing.T) {
	spans := SplitRecursive("abcdef", nil, 2, 5)
	// overlap clamps to size-1, so the window advances one character at a time
	assert.Equal(t, []Span{{0, 2}, {1, 3}, {2, 4}, {3, 5}, {4, 6}}, spans)
}

func TestSeparatorsFor(t *testing.T) {
	assert.Equal(t, markdownSeparators, SeparatorsFor(".MD"))
	assert.Equal(t, structuredSeparators, SeparatorsFor(".yaml"))
	assert.Equal(t, tabularSeparators, SeparatorsFor(".csv"))
	assert.Equal(t, proseSeparators, SeparatorsFor(".txt"))
	assert.Equal(t, codeSeparators, SeparatorsFor(".py"))
	assert.Equal(t, codeSeparators, SeparatorsFor(""))
}
