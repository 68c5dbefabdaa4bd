package types

// SearchHit is one nearest-neighbour result, ordered nearest first
type SearchHit struct {
	ID        int64
	Path      string
	StartLine int
	EndLine   int
	Content   string
	Distance  float64 // Euclidean (L2) distance to the query vector
}

// Validate checks if the search hit is valid
func (h *SearchHit) Validate() error {
	if h.Path == "" {
		return ErrMissingPath
	}
	if h.Content == "" {
		return ErrEmptyContent
	}
	if h.StartLine < 1 || h.StartLine > h.EndLine {
		return ErrInvalidLineRange
	}
	return nil
}
