package storage

import (
	"strconv"
	"strings"
)

// chunkColumns are the inserted columns of ChunksTable, in argument order
var chunkColumns = []string{
	"project_id", "path", "chunk_index", "start_line", "end_line",
	"content", "content_sha256", "embedding",
}

const (
	chunkColumnsPerRow = 8

	// sqliteMaxParams is SQLITE_MAX_VARIABLE_NUMBER for SQLite >= 3.32
	sqliteMaxParams = 32766
	// postgresMaxParams is the wire protocol limit on bind parameters
	postgresMaxParams = 65535

	// DefaultInsertBatchSize is the number of rows per multi-row INSERT
	DefaultInsertBatchSize = 2000
)

// placeholderStyle renders the n-th (1-based) bind parameter
type placeholderStyle func(n int) string

func questionMark(int) string { return "?" }

func dollar(n int) string { return "$" + strconv.Itoa(n) }

// buildMultiRowChunkInsert builds one INSERT with numRows VALUES tuples.
//
// Example output for numRows=2 with dollar placeholders:
//
//	INSERT INTO project_code_chunks (project_id, ..., embedding)
//	VALUES ($1, ..., $8), ($9, ..., $16)
func buildMultiRowChunkInsert(numRows int, ph placeholderStyle) string {
	if numRows <= 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(ChunksTable)
	b.WriteString(" (")
	b.WriteString(strings.Join(chunkColumns, ", "))
	b.WriteString(") VALUES ")

	for row := range numRows {
		if row > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for col := range chunkColumnsPerRow {
			if col > 0 {
				b.WriteString(", ")
			}
			b.WriteString(ph(row*chunkColumnsPerRow + col + 1))
		}
		b.WriteString(")")
	}
	return b.String()
}

// pageSize clamps the configured batch size to the backend parameter limit
func pageSize(configured, maxParams int) int {
	if configured <= 0 {
		configured = DefaultInsertBatchSize
	}
	return min(configured, maxParams/chunkColumnsPerRow)
}

// pages splits n rows into [start, end) windows of at most size rows
func pages(n, size int) [][2]int {
	var out [][2]int
	for start := 0; start < n; start += size {
		out = append(out, [2]int{start, min(start+size, n)})
	}
	return out
}
