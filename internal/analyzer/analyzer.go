package analyzer

import (
	"context"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/repoindex/pkg/types"
)

const (
	maxEntryPoints    = types.MaxEntryPoints
	maxDependencies   = types.MaxDependencies
	maxAPIEndpoints   = types.MaxAPIEndpoints
	maxModels         = types.MaxModels
	maxImportantFiles = types.MaxImportantFiles

	// DefaultSampleFiles is how many files per language bucket feed framework detection
	DefaultSampleFiles = 20

	unknownLanguage = "unknown"
)

// languageOrder breaks primary language ties
var languageOrder = []string{
	"python", "javascript", "typescript", "java", "c", "cpp", "go", "rust", "ruby", "php",
}

// codeExtensions maps the extensions that count as code to their language
var codeExtensions = map[string]string{
	".py":   "python",
	".js":   "javascript",
	".jsx":  "javascript",
	".ts":   "typescript",
	".tsx":  "typescript",
	".java": "java",
	".c":    "c",
	".cpp":  "cpp",
	".go":   "go",
	".rs":   "rust",
	".rb":   "ruby",
	".php":  "php",
}

// Options configures an Analyzer
type Options struct {
	SampleFiles int               // per language bucket, 0 = DefaultSampleFiles
	SkipDir     func(string) bool // directory names excluded from the layout walk
}

// Analyzer derives a RepositoryAnalysis from a scanned file list
type Analyzer struct {
	sampleFiles int
	skipDir     func(string) bool
	logger      *zap.Logger
}

// New creates an Analyzer. A nil logger disables logging.
func New(opts Options, logger *zap.Logger) *Analyzer {
	if opts.SampleFiles <= 0 {
		opts.SampleFiles = DefaultSampleFiles
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{
		sampleFiles: opts.SampleFiles,
		skipDir:     opts.SkipDir,
		logger:      logger,
	}
}

// Analyze inspects files under root. It never fails: unreadable files and
// malformed manifests contribute nothing.
func (a *Analyzer) Analyze(ctx context.Context, root string, files []types.FileRecord) types.RepositoryAnalysis {
	buckets := bucketByLanguage(files)

	lines := make(map[string]int)
	scorer := newFrameworkScorer()
	var endpoints []types.APIEndpoint
	var models depList

	for _, lang := range languageOrder {
		for i, f := range buckets[lang] {
			if ctx.Err() != nil {
				break
			}
			data, err := os.ReadFile(f.AbsPath)
			if err != nil {
				a.logger.Debug("analyzer read failed", zap.String("path", f.Path), zap.Error(err))
				continue
			}
			content := string(data)
			lines[lang] += countLines(content)
			if i < a.sampleFiles {
				scorer.observe(content)
			}
			endpoints = append(endpoints, findRoutes(lang, f.Path, content)...)
			for _, m := range findModels(lang, content) {
				models.add(m)
			}
		}
	}

	layout := walkTree(ctx, root, a.skipDir)

	manifestDeps := make(map[string]bool)
	if pkg, ok := a.packageJSON(layout.rootFile("package.json")); ok {
		for _, rule := range Frameworks {
			for _, dep := range rule.ManifestDeps {
				if pkg.has(dep) {
					manifestDeps[dep] = true
				}
			}
		}
	}

	scores := scorer.scores(layout.byName, manifestDeps)
	framework := pickFramework(scores)
	primary := primaryLanguage(lines)

	analysis := types.RepositoryAnalysis{
		RepositoryType:    repositoryType(primary, framework),
		Framework:         framework,
		PrimaryLanguage:   primary,
		LanguageBreakdown: breakdown(lines),
		FrameworkScores:   scores,
		EntryPoints:       layout.entryPoints(),
		Dependencies:      a.parseDependencies(root),
		APIEndpointCount:  len(endpoints),
		APIEndpoints:      capEndpoints(endpoints),
		Models:            capStrings(models.names, maxModels),
		Architecture:      layout.architecture(len(endpoints) > 0, len(models.names) > 0),
		ImportantFiles:    layout.importantFiles(),
		AnalyzedAt:        time.Now().UTC(),
	}

	a.logger.Debug("repository analyzed",
		zap.String("root", root),
		zap.String("language", analysis.PrimaryLanguage),
		zap.String("framework", analysis.FrameworkName()),
		zap.Int("api_endpoints", analysis.APIEndpointCount),
	)
	return analysis
}

// bucketByLanguage groups code files by language, each bucket in path order
func bucketByLanguage(files []types.FileRecord) map[string][]types.FileRecord {
	sorted := make([]types.FileRecord, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	buckets := make(map[string][]types.FileRecord)
	for _, f := range sorted {
		lang, ok := codeExtensions[strings.ToLower(f.Ext)]
		if !ok {
			continue
		}
		buckets[lang] = append(buckets[lang], f)
	}
	return buckets
}

// countLines counts newline-terminated lines plus a trailing partial line
func countLines(content string) int {
	n := strings.Count(content, "\n")
	if content != "" && !strings.HasSuffix(content, "\n") {
		n++
	}
	return n
}

func primaryLanguage(lines map[string]int) string {
	best, bestLines := unknownLanguage, 0
	for _, lang := range languageOrder {
		if lines[lang] > bestLines {
			best, bestLines = lang, lines[lang]
		}
	}
	return best
}

// breakdown returns each language's share of code lines as a percentage
func breakdown(lines map[string]int) map[string]float64 {
	total := 0
	for _, n := range lines {
		total += n
	}
	out := make(map[string]float64, len(lines))
	if total == 0 {
		return out
	}
	for lang, n := range lines {
		if n > 0 {
			out[lang] = math.Round(float64(n)*1000/float64(total)) / 10
		}
	}
	return out
}

func repositoryType(primary string, framework *string) string {
	if framework != nil {
		if rule, ok := ruleByName(*framework); ok {
			if rule.Kind == KindBackend {
				return capitalize(primary) + " Backend"
			}
			return capitalize(rule.Name) + " Frontend"
		}
	}
	switch primary {
	case "python":
		return "Python Application"
	case "javascript":
		return "JavaScript Application"
	case "java":
		return "Java Application"
	default:
		return capitalize(primary) + " Project"
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func capEndpoints(eps []types.APIEndpoint) []types.APIEndpoint {
	if len(eps) > maxAPIEndpoints {
		return eps[:maxAPIEndpoints]
	}
	return eps
}
