package chunker

import (
	"context"
	"fmt"
	"sort"

	sitter "github.com/smacker/go-tree-sitter"
)

// syntaxSpan is a selected syntax node in character offsets
type syntaxSpan struct {
	Span
	nodeType string
}

// syntaxSpans parses content with g and returns the outermost chunkable nodes
// no longer than maxChars, sorted by start, with contained spans removed.
func syntaxSpans(ctx context.Context, g Grammar, content string, maxChars int) ([]syntaxSpan, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(g.Language)

	tree, err := parser.ParseCtx(ctx, nil, []byte(content))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", g.Name, err)
	}
	defer tree.Close()

	offsets := newByteToRune(content)
	var spans []syntaxSpan

	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		if g.Chunkable(n.Type()) {
			start := offsets.at(int(n.StartByte()))
			end := offsets.at(int(n.EndByte()))
			if end-start <= maxChars {
				spans = append(spans, syntaxSpan{Span: Span{Start: start, End: end}, nodeType: n.Type()})
				return
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			if child := n.Child(i); child != nil {
				visit(child)
			}
		}
	}
	visit(tree.RootNode())

	sort.SliceStable(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })
	return dropContained(spans), nil
}

// dropContained removes spans fully contained in another span. Of two
// identical spans only the first is kept.
func dropContained(spans []syntaxSpan) []syntaxSpan {
	out := make([]syntaxSpan, 0, len(spans))
	for i, s := range spans {
		contained := false
		for j, o := range spans {
			if i == j || s.Start < o.Start || s.End > o.End {
				continue
			}
			if s.Span != o.Span || j < i {
				contained = true
				break
			}
		}
		if !contained {
			out = append(out, s)
		}
	}
	return out
}
