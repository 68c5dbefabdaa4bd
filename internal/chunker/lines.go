package chunker

import (
	"sort"
	"unicode"
	"unicode/utf8"
)

// lineIndex maps character offsets to 1-based line numbers
type lineIndex struct {
	newlines []int // character offsets of '\n', ascending
}

func newLineIndex(text []rune) lineIndex {
	var nl []int
	for i, r := range text {
		if r == '\n' {
			nl = append(nl, i)
		}
	}
	return lineIndex{newlines: nl}
}

// lineAt returns the line containing the character at offset
func (li lineIndex) lineAt(offset int) int {
	return sort.SearchInts(li.newlines, offset) + 1
}

// byteToRune maps UTF-8 byte offsets to character offsets. Entry i is the
// character index of the rune starting at byte i (or the next rune start).
type byteToRune []int

func newByteToRune(content string) byteToRune {
	m := make(byteToRune, len(content)+1)
	ri := 0
	for bi := 0; bi < len(content); {
		_, size := utf8.DecodeRuneInString(content[bi:])
		for k := 0; k < size; k++ {
			m[bi+k] = ri
		}
		bi += size
		ri++
	}
	m[len(content)] = ri
	return m
}

func (m byteToRune) at(b int) int {
	if b <= 0 {
		return 0
	}
	if b >= len(m) {
		return m[len(m)-1]
	}
	return m[b]
}

// trimSpan shrinks [start, end) to exclude leading and trailing whitespace
func trimSpan(text []rune, start, end int) (int, int) {
	for start < end && unicode.IsSpace(text[start]) {
		start++
	}
	for end > start && unicode.IsSpace(text[end-1]) {
		end--
	}
	return start, end
}
