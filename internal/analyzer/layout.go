package analyzer

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// entryPointNames lists canonical entry filenames in scan order
var entryPointNames = []struct {
	Language string
	Names    []string
}{
	{"python", []string{"main.py", "app.py", "__main__.py", "wsgi.py", "asgi.py", "manage.py"}},
	{"javascript", []string{"index.js", "main.js", "app.js", "server.js"}},
	{"typescript", []string{"index.ts", "main.ts", "app.ts", "server.ts"}},
	{"java", []string{"Main.java", "Application.java", "App.java"}},
	{"go", []string{"main.go"}},
	{"rust", []string{"main.rs"}},
	{"php", []string{"index.php", "artisan"}},
}

// importantFileNames are reported once each, in this order
var importantFileNames = []string{
	"README.md", "README.rst", "README.txt",
	"requirements.txt", "package.json", "pom.xml", "go.mod", "Cargo.toml",
	"Dockerfile", "docker-compose.yml",
	".env.example", "config.py", "settings.py",
	"main.py", "app.py", "index.js", "index.ts",
}

// tree indexes every regular file under the root by basename
type tree struct {
	root   string
	byName map[string][]string // basename -> relative paths, shallowest first
}

// walkTree lists the root once, honouring skipDir and never following symlinks
func walkTree(ctx context.Context, root string, skipDir func(string) bool) *tree {
	t := &tree{root: root, byName: make(map[string][]string)}
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() && p != root {
				return filepath.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return filepath.SkipAll
		}
		if d.IsDir() {
			if p != root && skipDir != nil && skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		t.byName[d.Name()] = append(t.byName[d.Name()], filepath.ToSlash(rel))
		return nil
	})
	for name := range t.byName {
		sortByDepth(t.byName[name])
	}
	return t
}

// sortByDepth orders paths shallowest first, then lexically
func sortByDepth(paths []string) {
	sort.Slice(paths, func(i, j int) bool {
		di, dj := strings.Count(paths[i], "/"), strings.Count(paths[j], "/")
		if di != dj {
			return di < dj
		}
		return paths[i] < paths[j]
	})
}

func (t *tree) entryPoints() []string {
	var out depList
	for _, group := range entryPointNames {
		for _, name := range group.Names {
			for _, p := range t.byName[name] {
				out.add(p)
			}
		}
	}
	return capStrings(out.names, maxEntryPoints)
}

func (t *tree) importantFiles() []string {
	var out []string
	for _, name := range importantFileNames {
		if matches := t.byName[name]; len(matches) > 0 {
			out = append(out, matches[0])
		}
	}
	return capStrings(out, maxImportantFiles)
}

// architecture classifies the layout: MVC directories, several Python
// models.py packages, an API with models, or a monolith.
func (t *tree) architecture(hasAPI, hasModels bool) string {
	mvc := []string{"models", "views", "controllers"}
	if t.hasDirs("", mvc) || t.hasDirs("app", mvc) {
		return "MVC"
	}

	modular := 0
	for _, p := range t.byName["models.py"] {
		if path.Dir(p) != "." && !strings.Contains(path.Dir(p), "/") {
			modular++
		}
	}
	switch {
	case modular > 1:
		return "Modular Architecture"
	case hasAPI && hasModels:
		return "API-Driven Architecture"
	default:
		return "Monolithic"
	}
}

func (t *tree) hasDirs(parent string, names []string) bool {
	for _, n := range names {
		info, err := os.Stat(filepath.Join(t.root, parent, n))
		if err != nil || !info.IsDir() {
			return false
		}
	}
	return true
}

// rootFile returns the absolute path of name at the root of the tree
func (t *tree) rootFile(name string) string {
	return filepath.Join(t.root, name)
}
