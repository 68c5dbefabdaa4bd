package chunker

import "unicode"

// Span is a half-open [Start, End) range of character offsets
type Span struct {
	Start int
	End   int
}

// SplitRecursive splits text into spans of at most size characters.
//
// Separators are tried in priority order. Text is cut into pieces that keep
// their trailing separator; pieces are merged while the running span fits in
// size. When a span is emitted, the next one restarts overlap characters
// before its end. A piece that alone exceeds size is split again with the
// remaining separators. An empty separator, or running out of separators,
// produces fixed windows of size characters advancing by size-overlap.
//
// Whitespace-only spans are never returned. The function is pure: it depends
// only on its arguments.
func SplitRecursive(text string, separators []string, size, overlap int) []Span {
	if size < 1 {
		return nil
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}

	s := &recursiveSplitter{
		text:    []rune(text),
		size:    size,
		overlap: overlap,
	}
	s.split(0, len(s.text), separators)
	return s.spans
}

type recursiveSplitter struct {
	text    []rune
	size    int
	overlap int
	spans   []Span
}

func (s *recursiveSplitter) split(start, end int, seps []string) {
	if end-start <= s.size {
		s.emit(start, end)
		return
	}

	for i, sep := range seps {
		if sep == "" {
			s.windows(start, end)
			return
		}
		pieces := s.pieces(start, end, []rune(sep))
		if len(pieces) < 2 {
			continue
		}
		s.merge(pieces, seps[i+1:])
		return
	}

	s.windows(start, end)
}

// merge accumulates adjacent pieces into spans no longer than size
func (s *recursiveSplitter) merge(pieces []Span, rest []string) {
	curStart, curEnd := pieces[0].Start, pieces[0].Start
	for _, p := range pieces {
		if p.End-curStart <= s.size {
			curEnd = p.End
			continue
		}

		s.emit(curStart, curEnd)

		next := curEnd
		if s.overlap > 0 {
			next = max(curStart, curEnd-s.overlap)
		}
		curStart, curEnd = next, next

		if p.End-curStart <= s.size {
			curEnd = p.End
			continue
		}
		s.split(p.Start, p.End, rest)
		curStart, curEnd = p.End, p.End
	}
	s.emit(curStart, curEnd)
}

func (s *recursiveSplitter) windows(start, end int) {
	step := max(1, s.size-s.overlap)
	for i := start; i < end; i += step {
		e := min(end, i+s.size)
		s.emit(i, e)
		if e >= end {
			return
		}
	}
}

// pieces cuts [start, end) after every occurrence of sep
func (s *recursiveSplitter) pieces(start, end int, sep []rune) []Span {
	var out []Span
	pieceStart := start
	for i := start; i+len(sep) <= end; {
		if runesEqual(s.text[i:i+len(sep)], sep) {
			i += len(sep)
			out = append(out, Span{Start: pieceStart, End: i})
			pieceStart = i
			continue
		}
		i++
	}
	if len(out) == 0 {
		return nil
	}
	out = append(out, Span{Start: pieceStart, End: end})
	return out
}

func (s *recursiveSplitter) emit(start, end int) {
	if end <= start || isBlank(s.text[start:end]) {
		return
	}
	s.spans = append(s.spans, Span{Start: start, End: end})
}

func runesEqual(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func isBlank(rs []rune) bool {
	for _, r := range rs {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
