package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/dshills/repoindex/pkg/types"
)

// Search returns at most k chunks of a project ordered by ascending L2
// distance to vector, optionally restricted to paths starting with pathPrefix.
func (s *SQLiteStorage) Search(ctx context.Context, projectID int64, vector []float32, k int, pathPrefix string) ([]types.SearchHit, error) {
	dim := s.Dimension()
	if dim == 0 || k <= 0 {
		return []types.SearchHit{}, nil
	}
	if len(vector) != dim {
		return nil, fmt.Errorf("%w: query has %d, schema %d", ErrDimensionMismatch, len(vector), dim)
	}

	// Use SQL-side distance when sqlite-vec is available
	if VectorExtensionAvailable {
		return searchVectorOptimized(ctx, s.db, projectID, vector, k, pathPrefix)
	}
	return searchVectorFallback(ctx, s.db, projectID, vector, k, pathPrefix)
}

// searchVectorOptimized computes vec_distance_l2 in SQL and lets SQLite order and limit
func searchVectorOptimized(ctx context.Context, db *sql.DB, projectID int64, queryVector []float32, k int, pathPrefix string) ([]types.SearchHit, error) {
	query := `
		SELECT id, path, start_line, end_line, content, vec_distance_l2(embedding, ?) AS distance
		FROM ` + ChunksTable + `
		WHERE project_id = ?`
	args := []interface{}{serializeVector(queryVector), projectID}
	query, args = applyPathFilter(query, args, pathPrefix)
	query += " ORDER BY distance ASC, id ASC LIMIT ?"
	args = append(args, k)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	hits := make([]types.SearchHit, 0, k)
	for rows.Next() {
		var h types.SearchHit
		if err := rows.Scan(&h.ID, &h.Path, &h.StartLine, &h.EndLine, &h.Content, &h.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// searchVectorFallback scans candidate blobs and ranks them in Go
func searchVectorFallback(ctx context.Context, db *sql.DB, projectID int64, queryVector []float32, k int, pathPrefix string) ([]types.SearchHit, error) {
	query := `
		SELECT id, path, start_line, end_line, content, embedding
		FROM ` + ChunksTable + `
		WHERE project_id = ?`
	args := []interface{}{projectID}
	query, args = applyPathFilter(query, args, pathPrefix)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	candidates, err := computeDistances(rows, queryVector)
	if err != nil {
		return nil, err
	}

	sortCandidates(candidates)
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

// applyPathFilter adds the LIKE prefix condition when pathPrefix is set
func applyPathFilter(query string, args []interface{}, pathPrefix string) (string, []interface{}) {
	if pathPrefix == "" {
		return query, args
	}
	query += ` AND path LIKE ? ESCAPE '\'`
	return query, append(args, escapeLike(pathPrefix))
}

// computeDistances decodes each row and attaches its L2 distance to the query
func computeDistances(rows *sql.Rows, queryVector []float32) ([]types.SearchHit, error) {
	candidates := make([]types.SearchHit, 0, 256)

	for rows.Next() {
		var (
			h    types.SearchHit
			blob []byte
		)
		if err := rows.Scan(&h.ID, &h.Path, &h.StartLine, &h.EndLine, &h.Content, &blob); err != nil {
			return nil, err
		}

		vector := deserializeVector(blob)
		if len(vector) != len(queryVector) {
			continue // width enforced by CHECK; skip anything foreign
		}
		h.Distance = l2Distance(queryVector, vector)
		candidates = append(candidates, h)
	}

	return candidates, rows.Err()
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// l2Distance computes the Euclidean distance between two vectors
func l2Distance(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// sortCandidates orders by ascending distance, ties broken by id
func sortCandidates(candidates []types.SearchHit) {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Distance != candidates[j].Distance {
			return candidates[i].Distance < candidates[j].Distance
		}
		return candidates[i].ID < candidates[j].ID
	})
}
