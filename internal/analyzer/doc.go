// Package analyzer derives coarse repository intelligence from a file set:
// primary language, framework, entry points, dependencies, API surface, data
// models, architecture and important files.
//
// Every signal is a heuristic. The only contract is that a fixed file set
// always produces the same RepositoryAnalysis. Read and parse failures are
// logged at debug level and contribute nothing; Analyze never fails.
//
// # Framework Scoring
//
// Each FrameworkRule scores:
//   - +2 per marker filename found anywhere under the root
//   - +3 once if an import substring appears in the sampled files
//   - +1 per indicator substring found in the sampled files
//   - +5 per manifest dependency listed in package.json
//
// The sample is the first SampleFiles files (by path) of each language. The
// highest score wins, ties go to table order, and zero means no framework.
//
// # Caching
//
// Cache keeps one analysis per project keyed by Analyzer.VersionToken, so an
// unchanged tree at the same commit skips reanalysis. The token covers every
// file the analyzer walks and the content of the root manifests.
package analyzer
