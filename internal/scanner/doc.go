// Package scanner walks a repository root and returns metadata for every
// indexable file.
//
// A Scanner applies three rules while walking:
//   - directories whose name is in SkipDirs are pruned at any depth
//   - files whose name ends with a SkipExtensions suffix are ignored
//     (suffixes, so ".min.js" works alongside ".png")
//   - only files whose extension is in AllowExtensions are returned
//
// Symlinks are never followed. Unreadable entries are skipped silently and a
// failed stat yields Size 0; the only error Scan returns is context
// cancellation. Results are sorted by relative path so that scanning an
// unchanged directory always yields an identical record set.
//
//	s := scanner.New(scanner.DefaultConfig())
//	files, err := s.Scan(ctx, "/path/to/repo")
package scanner
