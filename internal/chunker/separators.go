package chunker

import "strings"

var (
	codeSeparators       = []string{"\n\n", "\n", "; ", ", ", " ", ""}
	proseSeparators      = []string{"\n\n", "\n", ". ", "! ", "? ", "; ", ", ", " ", ""}
	markdownSeparators   = []string{"\n\n", "\n# ", "\n## ", "\n### ", "\n", ". ", " ", ""}
	structuredSeparators = []string{"\n\n", "\n", ",", " ", ""}
	tabularSeparators    = []string{"\n", ",", " ", ""}
)

// SeparatorsFor returns the separator priority list for a file extension.
// Unknown extensions are treated as code.
func SeparatorsFor(ext string) []string {
	switch strings.ToLower(ext) {
	case ".md", ".markdown":
		return markdownSeparators
	case ".txt", ".rst":
		return proseSeparators
	case ".json", ".yaml", ".yml", ".toml", ".xml", ".html", ".css":
		return structuredSeparators
	case ".csv", ".tsv", ".log":
		return tabularSeparators
	default:
		return codeSeparators
	}
}
