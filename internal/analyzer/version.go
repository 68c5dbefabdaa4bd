package analyzer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-git/go-git/v5"

	"github.com/dshills/repoindex/pkg/types"
)

// manifestNames are the root manifests parseDependencies reads
var manifestNames = []string{"requirements.txt", "pyproject.toml", "package.json", "go.mod", "Cargo.toml"}

// VersionToken fingerprints everything Analyze reads: path, size and mtime
// of the listed files and of every file in the walked tree, the content of
// the root manifests, and the HEAD commit when root is inside a git work tree.
func (a *Analyzer) VersionToken(ctx context.Context, root string, files []types.FileRecord) string {
	sorted := make([]types.FileRecord, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	h := sha256.New()
	for _, f := range sorted {
		var mtime int64
		size := f.Size
		if info, err := os.Stat(f.AbsPath); err == nil {
			mtime = info.ModTime().UnixNano()
			size = info.Size()
		}
		fmt.Fprintf(h, "F\x00%s\x00%d\x00%d\n", f.Path, size, mtime)
	}
	a.hashTree(ctx, h, root)
	for _, name := range manifestNames {
		data, err := os.ReadFile(filepath.Join(root, name))
		if err != nil {
			continue
		}
		fmt.Fprintf(h, "M\x00%s\x00%x\n", name, sha256.Sum256(data))
	}
	if head := gitHead(root); head != "" {
		fmt.Fprintf(h, "HEAD\x00%s\n", head)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// hashTree writes the tree walkTree would see, in walk order
func (a *Analyzer) hashTree(ctx context.Context, h hash.Hash, root string) {
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
			if p != root && a.skipDir != nil && a.skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		fmt.Fprintf(h, "T\x00%s\x00%d\x00%d\n", filepath.ToSlash(rel), info.Size(), info.ModTime().UnixNano())
		return nil
	})
}

// gitHead returns the HEAD commit hash, or "" outside a repository
func gitHead(root string) string {
	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return ""
	}
	ref, err := repo.Head()
	if err != nil {
		return ""
	}
	return ref.Hash().String()
}
