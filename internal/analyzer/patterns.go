package analyzer

import (
	"regexp"
	"strings"

	"github.com/dshills/repoindex/pkg/types"
)

// routePattern extracts (method, path) pairs from one route idiom
type routePattern struct {
	re        *regexp.Regexp
	pathGroup int

	// methodGroup 0 or an empty match falls back to defaultMethod
	methodGroup   int
	defaultMethod string
}

// routePatterns are applied per language so one idiom is never counted twice
var routePatterns = map[string][]routePattern{
	"python": {
		// FastAPI / Flask 2 method decorators
		{re: regexp.MustCompile(`@(?:app|router|api|bp|blueprint)\.(get|post|put|delete|patch)\(\s*["']([^"']+)["']`), methodGroup: 1, pathGroup: 2},
		// Flask route decorator, optional methods list
		{re: regexp.MustCompile(`@(?:app|bp|blueprint)\.route\(\s*["']([^"']+)["'](?:[^)]*?methods\s*=\s*\[\s*["'](\w+)["'])?`), methodGroup: 2, pathGroup: 1, defaultMethod: "GET"},
	},
	"java": {
		{re: regexp.MustCompile(`@(Get|Post|Put|Delete|Patch)Mapping\(\s*(?:(?:value|path)\s*=\s*)?["']([^"']+)["']`), methodGroup: 1, pathGroup: 2},
	},
	"php": {
		{re: regexp.MustCompile(`Route::(get|post|put|delete|patch)\(\s*["']([^"']+)["']`), methodGroup: 1, pathGroup: 2},
	},
	"javascript": {
		{re: regexp.MustCompile("\\b(?:app|router)\\.(get|post|put|delete|patch)\\(\\s*[\"'`]([^\"'`]+)[\"'`]"), methodGroup: 1, pathGroup: 2},
	},
	"typescript": {
		{re: regexp.MustCompile("\\b(?:app|router)\\.(get|post|put|delete|patch)\\(\\s*[\"'`]([^\"'`]+)[\"'`]"), methodGroup: 1, pathGroup: 2},
	},
	"go": {
		// net/http, including Go 1.22 "METHOD /path" patterns
		{re: regexp.MustCompile(`\bHandleFunc\(\s*"(?:(GET|POST|PUT|DELETE|PATCH) )?(/[^"]*)"`), methodGroup: 1, pathGroup: 2, defaultMethod: "ANY"},
		// chi / echo / gin style routers
		{re: regexp.MustCompile(`\b\w+\.(Get|Post|Put|Delete|Patch|GET|POST|PUT|DELETE|PATCH)\(\s*"(/[^"]*)"`), methodGroup: 1, pathGroup: 2},
	},
}

// findRoutes returns every route declared in content
func findRoutes(language, file, content string) []types.APIEndpoint {
	var out []types.APIEndpoint
	for _, p := range routePatterns[language] {
		for _, m := range p.re.FindAllStringSubmatch(content, -1) {
			method := p.defaultMethod
			if p.methodGroup > 0 && m[p.methodGroup] != "" {
				method = m[p.methodGroup]
			}
			out = append(out, types.APIEndpoint{
				Method: strings.ToUpper(method),
				Path:   m[p.pathGroup],
				File:   file,
			})
		}
	}
	return out
}

// modelPatterns capture a model/entity class name in group 1
var modelPatterns = map[string][]*regexp.Regexp{
	"python": {
		// SQLAlchemy, Django, pydantic, SQLModel
		regexp.MustCompile(`class\s+(\w+)\s*\([^)]*(?:Base|Model)[^)]*\)\s*:`),
	},
	"java": {
		regexp.MustCompile(`@Entity\s+(?:@\w+(?:\([^)]*\))?\s+)*(?:public\s+)?class\s+(\w+)`),
		regexp.MustCompile(`class\s+(\w+)\s+implements\s+Serializable`),
	},
	"go": {
		regexp.MustCompile(`type\s+(\w+)\s+struct\s*\{[^}]*\bgorm\.Model\b`),
	},
}

// findModels returns model names declared in content
func findModels(language, content string) []string {
	var out []string
	for _, re := range modelPatterns[language] {
		for _, m := range re.FindAllStringSubmatch(content, -1) {
			out = append(out, m[1])
		}
	}
	return out
}
