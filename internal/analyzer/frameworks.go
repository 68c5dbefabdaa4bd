package analyzer

import "strings"

// FrameworkKind separates server frameworks from UI frameworks
type FrameworkKind string

const (
	KindBackend  FrameworkKind = "backend"
	KindFrontend FrameworkKind = "frontend"
)

// FrameworkRule is one row of the static scoring table
type FrameworkRule struct {
	Name             string
	Kind             FrameworkKind
	MarkerFiles      []string // basenames searched anywhere under the root
	ImportSubstrings []string // any match scores once
	Indicators       []string // each match scores
	ManifestDeps     []string // package.json dependency names
}

// Score weights
const (
	markerWeight    = 2
	importWeight    = 3
	indicatorWeight = 1
	manifestWeight  = 5
)

// Frameworks is the scoring table in tie-break order
var Frameworks = []FrameworkRule{
	{
		Name:             "fastapi",
		Kind:             KindBackend,
		MarkerFiles:      []string{"main.py", "app.py"},
		ImportSubstrings: []string{"from fastapi import", "import fastapi"},
		Indicators:       []string{"FastAPI(", "@app.get", "@app.post"},
	},
	{
		Name:             "flask",
		Kind:             KindBackend,
		MarkerFiles:      []string{"app.py", "wsgi.py"},
		ImportSubstrings: []string{"from flask import", "import flask"},
		Indicators:       []string{"Flask(", "@app.route"},
	},
	{
		Name:             "django",
		Kind:             KindBackend,
		MarkerFiles:      []string{"manage.py", "settings.py", "wsgi.py"},
		ImportSubstrings: []string{"from django", "import django"},
		Indicators:       []string{"INSTALLED_APPS", "MIDDLEWARE"},
	},
	{
		Name:             "react",
		Kind:             KindFrontend,
		ImportSubstrings: []string{"from react", "from 'react'", `from "react"`, "import react", "import 'react'"},
		Indicators:       []string{"React.Component", "useState", "useEffect"},
		ManifestDeps:     []string{"react", "react-dom"},
	},
	{
		Name:             "nextjs",
		Kind:             KindFrontend,
		MarkerFiles:      []string{"next.config.js", "next.config.ts", "next.config.mjs"},
		ImportSubstrings: []string{"from next", "from 'next", `from "next`},
		Indicators:       []string{"export default function", "getServerSideProps", "getStaticProps"},
		ManifestDeps:     []string{"next"},
	},
	{
		Name:             "vue",
		Kind:             KindFrontend,
		MarkerFiles:      []string{"vue.config.js"},
		ImportSubstrings: []string{"from vue", "from 'vue'", `from "vue"`},
		Indicators:       []string{"createApp", "Vue.component"},
		ManifestDeps:     []string{"vue"},
	},
	{
		Name:             "angular",
		Kind:             KindFrontend,
		MarkerFiles:      []string{"angular.json"},
		ImportSubstrings: []string{"from @angular", "from '@angular", `from "@angular`},
		Indicators:       []string{"@Component", "@NgModule"},
		ManifestDeps:     []string{"@angular/core"},
	},
	{
		Name:             "express",
		Kind:             KindBackend,
		MarkerFiles:      []string{"server.js", "app.js"},
		ImportSubstrings: []string{"from express", "from 'express'", `from "express"`, `require("express")`, "require('express')"},
		Indicators:       []string{"express()", "app.listen"},
		ManifestDeps:     []string{"express"},
	},
	{
		Name:             "spring-boot",
		Kind:             KindBackend,
		MarkerFiles:      []string{"pom.xml", "build.gradle"},
		ImportSubstrings: []string{"import org.springframework"},
		Indicators:       []string{"@SpringBootApplication", "@RestController", "@Service"},
	},
	{
		Name:             "laravel",
		Kind:             KindBackend,
		MarkerFiles:      []string{"artisan", "composer.json"},
		ImportSubstrings: []string{"use Illuminate"},
		Indicators:       []string{`namespace App\`, "Route::"},
	},
}

// ruleByName returns the table row for name
func ruleByName(name string) (FrameworkRule, bool) {
	for _, r := range Frameworks {
		if r.Name == name {
			return r, true
		}
	}
	return FrameworkRule{}, false
}

// frameworkScorer accumulates the content signals of the sampled files
type frameworkScorer struct {
	imported  map[string]bool         // rule name -> import seen
	indicated map[string]map[int]bool // rule name -> indicator index seen
}

func newFrameworkScorer() *frameworkScorer {
	return &frameworkScorer{
		imported:  make(map[string]bool),
		indicated: make(map[string]map[int]bool),
	}
}

// observe records the import and indicator substrings found in content
func (s *frameworkScorer) observe(content string) {
	for _, rule := range Frameworks {
		if !s.imported[rule.Name] && containsAny(content, rule.ImportSubstrings) {
			s.imported[rule.Name] = true
		}
		for i, ind := range rule.Indicators {
			if strings.Contains(content, ind) {
				if s.indicated[rule.Name] == nil {
					s.indicated[rule.Name] = make(map[int]bool)
				}
				s.indicated[rule.Name][i] = true
			}
		}
	}
}

// scores combines content signals with marker files and manifest deps
func (s *frameworkScorer) scores(markers map[string][]string, manifestDeps map[string]bool) map[string]int {
	out := make(map[string]int, len(Frameworks))
	for _, rule := range Frameworks {
		score := 0
		for _, m := range rule.MarkerFiles {
			if len(markers[m]) > 0 {
				score += markerWeight
			}
		}
		if s.imported[rule.Name] {
			score += importWeight
		}
		score += indicatorWeight * len(s.indicated[rule.Name])
		for _, dep := range rule.ManifestDeps {
			if manifestDeps[dep] {
				score += manifestWeight
			}
		}
		out[rule.Name] = score
	}
	return out
}

// pickFramework returns the highest scoring rule in table order, nil on zero
func pickFramework(scores map[string]int) *string {
	best, bestScore := "", 0
	for _, rule := range Frameworks {
		if scores[rule.Name] > bestScore {
			best, bestScore = rule.Name, scores[rule.Name]
		}
	}
	if bestScore == 0 {
		return nil
	}
	return &best
}

func containsAny(content string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(content, sub) {
			return true
		}
	}
	return false
}
