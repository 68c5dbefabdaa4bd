package analyzer

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"golang.org/x/mod/modfile"
)

var (
	requirementSplit = regexp.MustCompile(`[=<>!~;\[ @]`)
	pyprojectLoose   = regexp.MustCompile(`"([a-zA-Z0-9\-_.]+)\s*[>=<~!]`)
)

// depList collects names in first-seen order without duplicates
type depList struct {
	seen  map[string]bool
	names []string
}

func (d *depList) add(name string) {
	name = strings.TrimSpace(name)
	if name == "" || d.seen[name] {
		return
	}
	if d.seen == nil {
		d.seen = make(map[string]bool)
	}
	d.seen[name] = true
	d.names = append(d.names, name)
}

// parseDependencies reads the recognised manifests at the repository root
func (a *Analyzer) parseDependencies(root string) []string {
	var deps depList
	for _, dep := range a.requirementsTxt(filepath.Join(root, "requirements.txt")) {
		deps.add(dep)
	}
	for _, dep := range a.pyprojectToml(filepath.Join(root, "pyproject.toml")) {
		deps.add(dep)
	}
	if pkg, ok := a.packageJSON(filepath.Join(root, "package.json")); ok {
		for _, dep := range pkg.names() {
			deps.add(dep)
		}
	}
	for _, dep := range a.goMod(filepath.Join(root, "go.mod")) {
		deps.add(dep)
	}
	for _, dep := range a.cargoToml(filepath.Join(root, "Cargo.toml")) {
		deps.add(dep)
	}
	return capStrings(deps.names, maxDependencies)
}

// requirementName strips version specifiers, extras and markers
func requirementName(line string) string {
	return strings.TrimSpace(requirementSplit.Split(strings.TrimSpace(line), 2)[0])
}

func (a *Analyzer) requirementsTxt(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer func() { _ = f.Close() }()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		if name := requirementName(line); name != "" {
			out = append(out, name)
		}
	}
	if err := sc.Err(); err != nil {
		a.logger.Debug("requirements.txt read failed", zap.String("path", path), zap.Error(err))
	}
	return out
}

type pyproject struct {
	Project struct {
		Dependencies []string `toml:"dependencies"`
	} `toml:"project"`
	Tool struct {
		Poetry struct {
			Dependencies    map[string]any `toml:"dependencies"`
			DevDependencies map[string]any `toml:"dev-dependencies"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

func (a *Analyzer) pyprojectToml(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var doc pyproject
	if _, err := toml.Decode(string(data), &doc); err != nil {
		a.logger.Debug("pyproject.toml decode failed, using loose match", zap.String("path", path), zap.Error(err))
		var out []string
		for _, m := range pyprojectLoose.FindAllStringSubmatch(string(data), -1) {
			out = append(out, m[1])
		}
		return out
	}

	var out []string
	for _, req := range doc.Project.Dependencies {
		if name := requirementName(req); name != "" {
			out = append(out, name)
		}
	}
	for _, name := range sortedKeys(doc.Tool.Poetry.Dependencies) {
		if !strings.EqualFold(name, "python") {
			out = append(out, name)
		}
	}
	for _, name := range sortedKeys(doc.Tool.Poetry.DevDependencies) {
		out = append(out, name)
	}
	return out
}

type packageManifest struct {
	Dependencies    map[string]any `json:"dependencies"`
	DevDependencies map[string]any `json:"devDependencies"`
}

// names lists dependencies then devDependencies, each sorted
func (p packageManifest) names() []string {
	return append(sortedKeys(p.Dependencies), sortedKeys(p.DevDependencies)...)
}

// has reports whether name is listed in either section
func (p packageManifest) has(name string) bool {
	_, dep := p.Dependencies[name]
	_, dev := p.DevDependencies[name]
	return dep || dev
}

func (a *Analyzer) packageJSON(path string) (packageManifest, bool) {
	var pkg packageManifest
	data, err := os.ReadFile(path)
	if err != nil {
		return pkg, false
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		a.logger.Debug("package.json decode failed", zap.String("path", path), zap.Error(err))
		return pkg, false
	}
	return pkg, true
}

// goMod lists the required module paths. A go.mod that fails to parse
// contributes nothing.
func (a *Analyzer) goMod(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	f, err := modfile.ParseLax(path, data, nil)
	if err != nil {
		a.logger.Debug("go.mod parse failed", zap.String("path", path), zap.Error(err))
		return nil
	}
	out := make([]string, 0, len(f.Require))
	for _, req := range f.Require {
		out = append(out, req.Mod.Path)
	}
	return out
}

type cargoManifest struct {
	Dependencies    map[string]any `toml:"dependencies"`
	DevDependencies map[string]any `toml:"dev-dependencies"`
}

func (a *Analyzer) cargoToml(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var doc cargoManifest
	if _, err := toml.Decode(string(data), &doc); err != nil {
		a.logger.Debug("Cargo.toml decode failed", zap.String("path", path), zap.Error(err))
		return nil
	}
	return append(sortedKeys(doc.Dependencies), sortedKeys(doc.DevDependencies)...)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func capStrings(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
