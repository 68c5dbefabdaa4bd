package chunker

import (
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/csharp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Grammar is a structural parser handle for one language
type Grammar struct {
	Name      string
	Language  *sitter.Language
	NodeTypes map[string]bool // chunkable node types
}

// Chunkable reports whether nodes of this type may become chunks
func (g Grammar) Chunkable(nodeType string) bool {
	return g.NodeTypes[nodeType]
}

// Registry maps file extensions to grammars
type Registry struct {
	mu       sync.RWMutex
	grammars map[string]Grammar
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{grammars: make(map[string]Grammar)}
}

// Register associates a grammar with one or more extensions
func (r *Registry) Register(g Grammar, exts ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range exts {
		r.grammars[strings.ToLower(ext)] = g
	}
}

// Lookup returns the grammar for ext. A missing grammar is not an error; the
// caller falls back to recursive splitting.
func (r *Registry) Lookup(ext string) (Grammar, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.grammars[strings.ToLower(ext)]
	return g, ok
}

func nodeSet(types ...string) map[string]bool {
	m := make(map[string]bool, len(types))
	for _, t := range types {
		m[t] = true
	}
	return m
}

// DefaultRegistry returns a registry with every bundled grammar
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(Grammar{
		Name:      "python",
		Language:  python.GetLanguage(),
		NodeTypes: nodeSet("function_definition", "class_definition", "decorated_definition"),
	}, ".py", ".pyw")

	r.Register(Grammar{
		Name:     "javascript",
		Language: javascript.GetLanguage(),
		NodeTypes: nodeSet("function_declaration", "class_declaration", "method_definition",
			"arrow_function", "function_expression"),
	}, ".js", ".jsx")

	tsNodes := nodeSet("function_declaration", "class_declaration", "method_definition",
		"interface_declaration", "type_alias_declaration")
	r.Register(Grammar{Name: "typescript", Language: typescript.GetLanguage(), NodeTypes: tsNodes}, ".ts")
	r.Register(Grammar{Name: "tsx", Language: tsx.GetLanguage(), NodeTypes: tsNodes}, ".tsx")

	r.Register(Grammar{
		Name:     "java",
		Language: java.GetLanguage(),
		NodeTypes: nodeSet("class_declaration", "method_declaration", "interface_declaration",
			"constructor_declaration"),
	}, ".java")

	r.Register(Grammar{
		Name:      "go",
		Language:  golang.GetLanguage(),
		NodeTypes: nodeSet("function_declaration", "method_declaration", "type_declaration", "type_spec"),
	}, ".go")

	r.Register(Grammar{
		Name:     "rust",
		Language: rust.GetLanguage(),
		NodeTypes: nodeSet("function_item", "impl_item", "trait_item", "struct_item", "enum_item",
			"mod_item"),
	}, ".rs")

	r.Register(Grammar{
		Name:      "c",
		Language:  c.GetLanguage(),
		NodeTypes: nodeSet("function_definition", "struct_specifier"),
	}, ".c")

	r.Register(Grammar{
		Name:     "cpp",
		Language: cpp.GetLanguage(),
		NodeTypes: nodeSet("function_definition", "class_specifier", "struct_specifier",
			"namespace_definition"),
	}, ".cpp", ".cc", ".cxx", ".h", ".hpp")

	r.Register(Grammar{
		Name:     "csharp",
		Language: csharp.GetLanguage(),
		NodeTypes: nodeSet("class_declaration", "method_declaration", "interface_declaration",
			"struct_declaration", "namespace_declaration"),
	}, ".cs")

	return r
}
