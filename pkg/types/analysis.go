package types

import "time"

// Caps applied to the list fields of a RepositoryAnalysis
const (
	MaxEntryPoints    = 5
	MaxDependencies   = 20
	MaxAPIEndpoints   = 10
	MaxModels         = 10
	MaxImportantFiles = 10
)

// APIEndpoint is a route declaration detected in source
type APIEndpoint struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	File   string `json:"file"`
}

// RepositoryAnalysis is the coarse repository intelligence derived per index run
type RepositoryAnalysis struct {
	RepositoryType    string             `json:"repository_type"`
	Framework         *string            `json:"framework"` // nil when no framework scored above zero
	PrimaryLanguage   string             `json:"primary_language"`
	LanguageBreakdown map[string]float64 `json:"language_breakdown"`
	FrameworkScores   map[string]int     `json:"framework_scores"`
	EntryPoints       []string           `json:"entry_points"`
	Dependencies      []string           `json:"dependencies"`
	APIEndpointCount  int                `json:"api_endpoint_count"`
	APIEndpoints      []APIEndpoint      `json:"api_endpoints"`
	Models            []string           `json:"models"`
	Architecture      string             `json:"architecture"`
	ImportantFiles    []string           `json:"important_files"`
	AnalyzedAt        time.Time          `json:"analyzed_at"`
}

// FrameworkName returns the detected framework or "none"
func (a *RepositoryAnalysis) FrameworkName() string {
	if a == nil || a.Framework == nil {
		return "none"
	}
	return *a.Framework
}
