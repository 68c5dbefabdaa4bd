// Package types provides shared value types for the repoindex engine.
//
// These types cross package boundaries: the scanner produces FileRecords, the
// analyzer turns them into a RepositoryAnalysis, the chunker produces ChunkSpans,
// and the searcher returns SearchHits.
//
// # File Records
//
// FileRecord describes one file found by a scan. Records are recomputed on every
// scan and are never persisted:
//
//	rec := types.FileRecord{
//	    Path:     "app/main.py",
//	    AbsPath:  "/repo/app/main.py",
//	    Name:     "main.py",
//	    Ext:      ".py",
//	    Size:     1024,
//	    Language: "python",
//	}
//
// # Chunk Spans
//
// ChunkSpan is a contiguous span of one file's text. Start and End are character
// offsets (not bytes); StartLine and EndLine are 1-based and inclusive:
//
//	if err := span.Validate(); err != nil {
//	    return err
//	}
//
// # Repository Analysis
//
// RepositoryAnalysis holds the coarse repository intelligence derived by the
// analyzer. One analysis exists per index run and it is replaced wholesale on
// reindex. The list fields are capped by the analyzer (see the Max* constants).
package types
