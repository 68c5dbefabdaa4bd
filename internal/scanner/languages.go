package scanner

var extLanguages = map[string]string{
	".py":       "python",
	".pyw":      "python",
	".js":       "javascript",
	".jsx":      "javascript",
	".ts":       "typescript",
	".tsx":      "typescript",
	".java":     "java",
	".c":        "c",
	".h":        "c",
	".cpp":      "cpp",
	".cc":       "cpp",
	".cxx":      "cpp",
	".hpp":      "cpp",
	".go":       "go",
	".rs":       "rust",
	".rb":       "ruby",
	".php":      "php",
	".swift":    "swift",
	".kt":       "kotlin",
	".cs":       "csharp",
	".md":       "markdown",
	".markdown": "markdown",
	".json":     "json",
	".yaml":     "yaml",
	".yml":      "yaml",
	".toml":     "toml",
}

// LanguageForExt maps a lower-case extension (with dot) to a language name.
// Unknown extensions yield "".
func LanguageForExt(ext string) string {
	return extLanguages[ext]
}
