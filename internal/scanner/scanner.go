package scanner

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dshills/repoindex/pkg/types"
)

// Config holds include/exclude rules
type Config struct {
	SkipDirs        []string
	SkipExtensions  []string
	AllowExtensions []string
	MaxFileSize     int64 // 0 = unlimited
}

// DefaultConfig returns the default rules
func DefaultConfig() Config {
	return Config{
		SkipDirs: []string{
			".git", "node_modules", "__pycache__", ".venv", "venv", "dist", "build",
			".next", "coverage", ".pytest_cache", ".tox", ".mypy_cache",
		},
		SkipExtensions: []string{
			".min.js", ".map", ".lock", ".log", ".png", ".jpg", ".jpeg", ".gif", ".svg",
			".ico", ".pdf", ".zip", ".tar", ".gz", ".woff", ".ttf",
		},
		AllowExtensions: []string{
			".py", ".js", ".jsx", ".ts", ".tsx", ".java", ".c", ".cpp", ".h", ".hpp",
			".go", ".rs", ".rb", ".php", ".swift", ".kt", ".cs", ".md", ".json", ".yaml", ".yml",
		},
	}
}

// Scanner discovers indexable files under a root directory
type Scanner struct {
	skipDirs  map[string]bool
	skipExts  []string
	allowExts map[string]bool
	maxSize   int64
}

// New creates a scanner. Empty rule lists in cfg fall back to DefaultConfig.
func New(cfg Config) *Scanner {
	def := DefaultConfig()
	if len(cfg.SkipDirs) == 0 {
		cfg.SkipDirs = def.SkipDirs
	}
	if len(cfg.SkipExtensions) == 0 {
		cfg.SkipExtensions = def.SkipExtensions
	}
	if len(cfg.AllowExtensions) == 0 {
		cfg.AllowExtensions = def.AllowExtensions
	}

	s := &Scanner{
		skipDirs:  make(map[string]bool, len(cfg.SkipDirs)),
		allowExts: make(map[string]bool, len(cfg.AllowExtensions)),
		maxSize:   cfg.MaxFileSize,
	}
	for _, d := range cfg.SkipDirs {
		s.skipDirs[d] = true
	}
	for _, e := range cfg.SkipExtensions {
		s.skipExts = append(s.skipExts, strings.ToLower(e))
	}
	for _, e := range cfg.AllowExtensions {
		s.allowExts[strings.ToLower(e)] = true
	}
	return s
}

// Scan walks root and returns the allow-listed files sorted by relative path
func (s *Scanner) Scan(ctx context.Context, root string) ([]types.FileRecord, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	var records []types.FileRecord
	walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			// unreadable entry, keep walking
			if d != nil && d.IsDir() && path != absRoot {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != absRoot && s.SkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 || !d.Type().IsRegular() {
			return nil
		}
		if !s.Accept(d.Name()) {
			return nil
		}

		var size int64
		if info, err := d.Info(); err == nil {
			size = info.Size()
		}
		if s.maxSize > 0 && size > s.maxSize {
			return nil
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}
		records = append(records, NewRecord(filepath.ToSlash(rel), path, size))
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })
	return records, nil
}

// SkipDir reports whether a directory with this name is pruned
func (s *Scanner) SkipDir(name string) bool {
	return s.skipDirs[name] || strings.HasSuffix(name, ".egg-info")
}

// Accept reports whether a file name passes the extension rules
func (s *Scanner) Accept(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range s.skipExts {
		if strings.HasSuffix(lower, suffix) {
			return false
		}
	}
	return s.allowExts[filepath.Ext(lower)]
}

// Resolve builds records for an explicit file list. Entries are relative to
// root (or absolute inside it); missing and non-regular files are returned
// separately so the caller can report them.
func (s *Scanner) Resolve(root string, paths []string) (records []types.FileRecord, rejected []string) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, paths
	}
	for _, p := range paths {
		abs := p
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(absRoot, filepath.FromSlash(p))
		}
		rel, err := filepath.Rel(absRoot, abs)
		if err != nil || escapesRoot(rel) {
			rejected = append(rejected, p)
			continue
		}
		info, err := os.Lstat(abs)
		if err != nil || !info.Mode().IsRegular() {
			rejected = append(rejected, p)
			continue
		}
		records = append(records, NewRecord(filepath.ToSlash(rel), abs, info.Size()))
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })
	return records, rejected
}

// escapesRoot reports whether a root-relative path leaves the root
func escapesRoot(rel string) bool {
	rel = filepath.ToSlash(rel)
	return rel == ".." || strings.HasPrefix(rel, "../")
}

// NewRecord builds a FileRecord from its paths and size
func NewRecord(rel, abs string, size int64) types.FileRecord {
	name := filepath.Base(abs)
	ext := strings.ToLower(filepath.Ext(name))
	return types.FileRecord{
		Path:     rel,
		AbsPath:  abs,
		Name:     name,
		Ext:      ext,
		Size:     size,
		Language: LanguageForExt(ext),
	}
}
