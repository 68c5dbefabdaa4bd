package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/repoindex/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrDimensionMismatch is returned when a vector width differs from the schema width
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrInvalidRow is returned when a chunk row fails validation before insert
	ErrInvalidRow = errors.New("invalid chunk row")
	// ErrInvalidDimension is returned for a non-positive schema width
	ErrInvalidDimension = errors.New("embedding dimension must be positive")
)

// ChunksTable is the name of the chunk table shared by all backends
const ChunksTable = "project_code_chunks"

// Store persists embedded chunks and repository analyses per project
type Store interface {
	// EnsureSchema creates the chunk table for vectors of the given width.
	// It is idempotent; an existing table of another width yields
	// ErrDimensionMismatch.
	EnsureSchema(ctx context.Context, dimension int) error

	// BeginTx starts a transaction for a full project replacement
	BeginTx(ctx context.Context) (Tx, error)

	// DeleteAll removes every chunk of a project in its own statement
	DeleteAll(ctx context.Context, projectID int64) (int64, error)

	// BulkInsert writes rows in a single implicit transaction
	BulkInsert(ctx context.Context, projectID int64, rows []ChunkRow) error

	// Search returns at most k chunks ordered by ascending L2 distance
	Search(ctx context.Context, projectID int64, vector []float32, k int, pathPrefix string) ([]types.SearchHit, error)

	// LoadAnalysis returns the latest analysis of a project or ErrNotFound
	LoadAnalysis(ctx context.Context, projectID int64) (*types.RepositoryAnalysis, error)

	// Stats summarises the stored generation of a project
	Stats(ctx context.Context, projectID int64) (*Stats, error)

	// RecordRun upserts the bookkeeping row of an index run
	RecordRun(ctx context.Context, run *Run) error

	// LastRun returns the most recent run of a project or ErrNotFound
	LastRun(ctx context.Context, projectID int64) (*Run, error)

	// Dimension returns the schema width, or 0 before EnsureSchema
	Dimension() int

	// Close releases the underlying connections
	Close() error
}

// Tx groups the writes of one reindex so readers never observe a partial
// generation.
type Tx interface {
	DeleteAll(ctx context.Context, projectID int64) (int64, error)
	BulkInsert(ctx context.Context, projectID int64, rows []ChunkRow) error
	SaveAnalysis(ctx context.Context, projectID int64, analysis *types.RepositoryAnalysis) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// ChunkRow is one embedded chunk ready for insertion
type ChunkRow struct {
	Path          string
	ChunkIndex    int
	StartLine     int
	EndLine       int
	Content       string
	ContentSHA256 string
	Embedding     []float32
}

// Stats describes the stored generation of a project
type Stats struct {
	ProjectID int64
	Chunks    int64
	Files     int64
	Dimension int
}

// Run status values
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Run is the bookkeeping record of one IndexRepository call
type Run struct {
	ID            string
	ProjectID     int64
	Status        string
	Model         string
	Dimension     int
	FilesIndexed  int
	ChunksWritten int
	Error         string
	StartedAt     time.Time
	FinishedAt    time.Time
}

// validateRows checks rows against the schema width before any SQL runs
func validateRows(rows []ChunkRow, dimension int) error {
	for i, r := range rows {
		switch {
		case r.Path == "":
			return fmt.Errorf("%w: row %d: empty path", ErrInvalidRow, i)
		case strings.TrimSpace(r.Content) == "":
			return fmt.Errorf("%w: row %d (%s): empty content", ErrInvalidRow, i, r.Path)
		case r.StartLine < 1 || r.EndLine < r.StartLine:
			return fmt.Errorf("%w: row %d (%s): invalid line range %d-%d", ErrInvalidRow, i, r.Path, r.StartLine, r.EndLine)
		case len(r.Embedding) != dimension:
			return fmt.Errorf("%w: row %d (%s): width %d, schema %d", ErrDimensionMismatch, i, r.Path, len(r.Embedding), dimension)
		}
	}
	return nil
}

// escapeLike escapes LIKE wildcards so prefix matches literally.
// Queries pair it with ESCAPE '\'.
func escapeLike(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}
