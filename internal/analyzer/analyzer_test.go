package analyzer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/repoindex/internal/scanner"
	"github.com/dshills/repoindex/pkg/types"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func scan(t *testing.T, root string) []types.FileRecord {
	t.Helper()
	files, err := scanner.New(scanner.DefaultConfig()).Scan(context.Background(), root)
	require.NoError(t, err)
	return files
}

func analyze(t *testing.T, root string) types.RepositoryAnalysis {
	t.Helper()
	s := scanner.New(scanner.DefaultConfig())
	return New(Options{SkipDir: s.SkipDir}, nil).Analyze(context.Background(), root, scan(t, root))
}

func TestAnalyze_ReactManifestOnly(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", `{"dependencies": {"react": "^18.0.0"}}`)

	a := analyze(t, root)

	assert.Equal(t, 5, a.FrameworkScores["react"])
	for name, score := range a.FrameworkScores {
		if name != "react" {
			assert.Zero(t, score, name)
		}
	}
	require.NotNil(t, a.Framework)
	assert.Equal(t, "react", *a.Framework)
	assert.Equal(t, "React Frontend", a.RepositoryType)
	assert.Equal(t, "unknown", a.PrimaryLanguage)
	assert.Equal(t, []string{"react"}, a.Dependencies)
	assert.Equal(t, []string{"package.json"}, a.ImportantFiles)
	assert.Equal(t, "Monolithic", a.Architecture)
}

func TestAnalyze_FastAPIService(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.py", strings.Join([]string{
		"from fastapi import FastAPI",
		"app = FastAPI()",
		"",
		`@app.get("/items")`,
		"def list_items():",
		"    return []",
		"",
		`@app.post("/items")`,
		"def create_item():",
		"    return {}",
		"",
	}, "\n"))
	writeFile(t, root, "models.py", "from pydantic import BaseModel\n\nclass Item(BaseModel):\n    name: str\n")
	writeFile(t, root, "requirements.txt", "# deps\nfastapi==0.110.0\nuvicorn[standard]>=0.29\n\n-r dev.txt\n")

	a := analyze(t, root)

	require.NotNil(t, a.Framework)
	assert.Equal(t, "fastapi", *a.Framework)
	assert.Equal(t, 8, a.FrameworkScores["fastapi"])
	assert.Zero(t, a.FrameworkScores["flask"])
	assert.Equal(t, "Python Backend", a.RepositoryType)
	assert.Equal(t, "python", a.PrimaryLanguage)
	assert.Equal(t, map[string]float64{"python": 100}, a.LanguageBreakdown)
	assert.Equal(t, []string{"main.py"}, a.EntryPoints)
	assert.Equal(t, []string{"fastapi", "uvicorn"}, a.Dependencies)
	assert.Equal(t, 2, a.APIEndpointCount)
	assert.Equal(t, []types.APIEndpoint{
		{Method: "GET", Path: "/items", File: "main.py"},
		{Method: "POST", Path: "/items", File: "main.py"},
	}, a.APIEndpoints)
	assert.Equal(t, []string{"Item"}, a.Models)
	assert.Equal(t, "API-Driven Architecture", a.Architecture)
	assert.Equal(t, []string{"requirements.txt", "main.py"}, a.ImportantFiles)
	assert.WithinDuration(t, time.Now(), a.AnalyzedAt, time.Minute)
}

func TestAnalyze_Deterministic(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/App.jsx", "import React, { useState } from 'react'\n")
	writeFile(t, root, "server.js", "const express = require('express')\nconst app = express()\napp.listen(3000)\n")
	writeFile(t, root, "package.json", `{"dependencies": {"express": "4"}, "devDependencies": {"react": "18"}}`)

	first := analyze(t, root)
	second := analyze(t, root)
	assert.Equal(t, first.FrameworkScores, second.FrameworkScores)
	assert.Equal(t, first.Framework, second.Framework)
	assert.Equal(t, first.Dependencies, second.Dependencies)
	assert.Equal(t, []string{"express", "react"}, first.Dependencies)
}

func TestAnalyze_PrimaryLanguage(t *testing.T) {
	t.Run("tie uses fixed order", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "b.go", "package b\n\nvar X = 1")
		writeFile(t, root, "a.py", "x = 1\ny = 2\n\n")
		a := analyze(t, root)
		assert.Equal(t, "python", a.PrimaryLanguage)
		assert.Equal(t, map[string]float64{"python": 50, "go": 50}, a.LanguageBreakdown)
	})

	t.Run("most lines wins", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "a.py", "x = 1\n")
		writeFile(t, root, "main.go", "package main\n\nfunc main() {\n}\n")
		a := analyze(t, root)
		assert.Equal(t, "go", a.PrimaryLanguage)
		assert.Equal(t, "Go Project", a.RepositoryType)
		assert.Equal(t, map[string]float64{"python": 20, "go": 80}, a.LanguageBreakdown)
	})

	t.Run("no code files", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "README.md", "# hi\n")
		a := analyze(t, root)
		assert.Equal(t, "unknown", a.PrimaryLanguage)
		assert.Nil(t, a.Framework)
		assert.Empty(t, a.LanguageBreakdown)
		assert.Equal(t, "Unknown Project", a.RepositoryType)
	})
}

func TestAnalyze_Architecture(t *testing.T) {
	t.Run("mvc under app", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "app/models/user.rb", "class User\nend\n")
		writeFile(t, root, "app/views/index.rb", "x\n")
		writeFile(t, root, "app/controllers/users.rb", "x\n")
		assert.Equal(t, "MVC", analyze(t, root).Architecture)
	})

	t.Run("modular", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "blog/models.py", "x = 1\n")
		writeFile(t, root, "shop/models.py", "x = 1\n")
		assert.Equal(t, "Modular Architecture", analyze(t, root).Architecture)
	})

	t.Run("skipped directories are ignored", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "blog/models.py", "x = 1\n")
		writeFile(t, root, "node_modules/shop/models.py", "x = 1\n")
		assert.Equal(t, "Monolithic", analyze(t, root).Architecture)
	})
}

func TestAnalyze_EndpointCap(t *testing.T) {
	root := t.TempDir()
	var b strings.Builder
	for i := 0; i < 12; i++ {
		fmt.Fprintf(&b, "router.get('/r%d', h)\n", i)
	}
	writeFile(t, root, "routes.js", b.String())

	a := analyze(t, root)
	assert.Equal(t, 12, a.APIEndpointCount)
	assert.Len(t, a.APIEndpoints, maxAPIEndpoints)
	assert.Equal(t, "/r0", a.APIEndpoints[0].Path)
	assert.Equal(t, "JavaScript Application", a.RepositoryType)
}

func TestAnalyze_EntryPoints(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"server.ts", "main.go", "app.py", "main.py", "cli/main.py", "index.js"} {
		writeFile(t, root, name, "x\n")
	}
	a := analyze(t, root)
	assert.Equal(t, []string{"main.py", "cli/main.py", "app.py", "index.js", "server.ts"}, a.EntryPoints)
}

func TestAnalyze_CancelledContext(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.py", "from flask import Flask\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := New(Options{}, nil).Analyze(ctx, root, scan(t, root))
	assert.Equal(t, "unknown", a.PrimaryLanguage)
}

func TestParseDependencies(t *testing.T) {
	an := New(Options{}, nil)

	t.Run("go.mod", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "go.mod", strings.Join([]string{
			"module example.com/x",
			"",
			"require github.com/a/b v1.0.0",
			"",
			"require (",
			"\tgithub.com/c/d v1.2.3 // indirect",
			"\tgithub.com/a/b v1.0.0",
			")",
		}, "\n"))
		assert.Equal(t, []string{"github.com/a/b", "github.com/c/d"}, an.parseDependencies(root))
	})

	t.Run("go.mod quoted paths and other directives", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "go.mod", strings.Join([]string{
			"module example.com/x",
			"",
			"go 1.22",
			"",
			"require   (",
			"  \"github.com/e/f\"   v0.1.0",
			")",
			"",
			"replace github.com/e/f => ../f",
			"",
			"retract v0.0.1",
		}, "\n"))
		assert.Equal(t, []string{"github.com/e/f"}, an.parseDependencies(root))
	})

	t.Run("go.mod malformed", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "go.mod", "module example.com/x\nrequire (\n\tgithub.com/a/b\n")
		assert.Empty(t, an.parseDependencies(root))
	})

	t.Run("pyproject poetry", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "pyproject.toml", strings.Join([]string{
			"[project]",
			`dependencies = ["httpx>=0.27", "rich"]`,
			"",
			"[tool.poetry.dependencies]",
			`python = "^3.11"`,
			`sqlalchemy = "^2.0"`,
		}, "\n"))
		assert.Equal(t, []string{"httpx", "rich", "sqlalchemy"}, an.parseDependencies(root))
	})

	t.Run("pyproject fallback", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "pyproject.toml", "dependencies = [\"flask>=3\" \n[broken")
		assert.Equal(t, []string{"flask"}, an.parseDependencies(root))
	})

	t.Run("cargo", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "Cargo.toml", "[package]\nname = \"x\"\n\n[dependencies]\nserde = \"1\"\ntokio = { version = \"1\" }\n")
		assert.Equal(t, []string{"serde", "tokio"}, an.parseDependencies(root))
	})

	t.Run("cap and dedupe", func(t *testing.T) {
		root := t.TempDir()
		var b strings.Builder
		for i := 0; i < 25; i++ {
			fmt.Fprintf(&b, "pkg%02d==1.0\n", i)
		}
		b.WriteString("pkg00\n")
		writeFile(t, root, "requirements.txt", b.String())
		deps := an.parseDependencies(root)
		assert.Len(t, deps, maxDependencies)
		assert.Equal(t, "pkg00", deps[0])
		assert.Equal(t, "pkg19", deps[19])
	})

	t.Run("malformed package.json", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "package.json", "{not json")
		assert.Empty(t, an.parseDependencies(root))
	})
}

func TestFindRoutes(t *testing.T) {
	tests := []struct {
		name     string
		language string
		content  string
		want     []types.APIEndpoint
	}{
		{
			name:     "flask route with methods",
			language: "python",
			content:  `@app.route("/login", methods=["POST"])`,
			want:     []types.APIEndpoint{{Method: "POST", Path: "/login", File: "f"}},
		},
		{
			name:     "flask route default method",
			language: "python",
			content:  `@bp.route('/home')`,
			want:     []types.APIEndpoint{{Method: "GET", Path: "/home", File: "f"}},
		},
		{
			name:     "spring",
			language: "java",
			content:  "@GetMapping(\"/users\")\n@PostMapping(value = \"/users\")",
			want: []types.APIEndpoint{
				{Method: "GET", Path: "/users", File: "f"},
				{Method: "POST", Path: "/users", File: "f"},
			},
		},
		{
			name:     "laravel",
			language: "php",
			content:  `Route::get('/home', [HomeController::class, 'index']);`,
			want:     []types.APIEndpoint{{Method: "GET", Path: "/home", File: "f"}},
		},
		{
			name:     "express",
			language: "typescript",
			content:  "router.delete(`/items/:id`, handler)",
			want:     []types.APIEndpoint{{Method: "DELETE", Path: "/items/:id", File: "f"}},
		},
		{
			name:     "net/http",
			language: "go",
			content:  "mux.HandleFunc(\"GET /health\", h)\nhttp.HandleFunc(\"/x\", h)",
			want: []types.APIEndpoint{
				{Method: "GET", Path: "/health", File: "f"},
				{Method: "ANY", Path: "/x", File: "f"},
			},
		},
		{
			name:     "chi",
			language: "go",
			content:  `r.Post("/users", create)`,
			want:     []types.APIEndpoint{{Method: "POST", Path: "/users", File: "f"}},
		},
		{
			name:     "other language ignored",
			language: "ruby",
			content:  `@app.get("/x")`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, findRoutes(tt.language, "f", tt.content))
		})
	}
}

func TestFindModels(t *testing.T) {
	assert.Equal(t, []string{"User"}, findModels("python", "class User(db.Model):\n    pass\n"))
	assert.Equal(t, []string{"Order"}, findModels("java", "@Entity\n@Table(name = \"orders\")\npublic class Order {\n}"))
	assert.Equal(t, []string{"Dto"}, findModels("java", "public class Dto implements Serializable {"))
	assert.Equal(t, []string{"Account"}, findModels("go", "type Account struct {\n\tgorm.Model\n\tName string\n}"))
	assert.Empty(t, findModels("go", "type Plain struct {\n\tName string\n}"))
}

func TestPickFramework(t *testing.T) {
	fw := pickFramework(map[string]int{"flask": 3, "fastapi": 3, "react": 1})
	require.NotNil(t, fw)
	assert.Equal(t, "fastapi", *fw)

	assert.Nil(t, pickFramework(map[string]int{"flask": 0}))
}

func TestCache(t *testing.T) {
	c, err := NewCache(8)
	require.NoError(t, err)
	defer c.Close()

	fw := "flask"
	analysis := types.RepositoryAnalysis{PrimaryLanguage: "python", Framework: &fw, Models: []string{"User"}}
	c.Put(1, "tok1", analysis)
	c.Wait()

	got, ok := c.Get(1, "tok1")
	require.True(t, ok)
	assert.Equal(t, analysis, got)

	got.Models[0] = "mutated"
	*got.Framework = "django"
	again, ok := c.Get(1, "tok1")
	require.True(t, ok)
	assert.Equal(t, "User", again.Models[0])
	assert.Equal(t, "flask", *again.Framework)

	_, ok = c.Get(1, "tok2")
	assert.False(t, ok, "stale token must miss")

	c.Invalidate(1)
	_, ok = c.Get(1, "tok1")
	assert.False(t, ok)
}

func TestVersionToken(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py", "x = 1\n")
	files := scan(t, root)
	an := New(Options{}, nil)
	ctx := context.Background()

	first := an.VersionToken(ctx, root, files)
	assert.Equal(t, first, an.VersionToken(ctx, root, files))
	assert.Len(t, first, 64)

	writeFile(t, root, "a.py", "x = 1\ny = 2\n")
	changed := an.VersionToken(ctx, root, files)
	assert.NotEqual(t, first, changed)

	repo, err := git.PlainInit(root, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("a.py")
	require.NoError(t, err)
	hash, err := wt.Commit("init", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	assert.Equal(t, hash.String(), gitHead(root))
	assert.NotEqual(t, changed, an.VersionToken(ctx, root, files))
}

func TestVersionToken_CoversFilesOutsideList(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.py", "print('hi')\n")
	writeFile(t, root, "requirements.txt", "flask==2.0\n")
	files := scan(t, root)
	for _, f := range files {
		require.NotEqual(t, "requirements.txt", f.Path)
	}
	an := New(Options{}, nil)
	ctx := context.Background()
	before := an.VersionToken(ctx, root, files)

	t.Run("manifest rewritten with same size and mtime", func(t *testing.T) {
		path := filepath.Join(root, "requirements.txt")
		info, err := os.Stat(path)
		require.NoError(t, err)
		writeFile(t, root, "requirements.txt", "flask==3.0\n")
		require.NoError(t, os.Chtimes(path, info.ModTime(), info.ModTime()))

		after := an.VersionToken(ctx, root, files)
		assert.NotEqual(t, before, after)
		before = after
	})

	t.Run("marker file added", func(t *testing.T) {
		writeFile(t, root, "manage.py", "")
		assert.NotEqual(t, before, an.VersionToken(ctx, root, files))
	})
}
