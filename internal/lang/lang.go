// Package lang maps source files to canonical language names and carries
// the per-language defaults shared by indexing and context retrieval.
package lang

import (
	"path/filepath"
	"slices"
	"strings"
)

// extToLanguage maps file extensions to canonical language names.
var extToLanguage = map[string]string{
	".go":   "go",
	".ts":   "typescript",
	".tsx":  "typescript",
	".mts":  "typescript",
	".cts":  "typescript",
	".js":   "javascript",
	".jsx":  "javascript",
	".mjs":  "javascript",
	".cjs":  "javascript",
	".py":   "python",
	".pyi":  "python",
	".rs":   "rust",
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".cc":   "cpp",
	".cxx":  "cpp",
	".hpp":  "cpp",
	".java": "java",
	".php":  "php",
	".rb":   "ruby",
}

// ForFile returns the canonical language name for a file path based on its
// extension. Returns ("", false) if the extension is not recognized.
func ForFile(path string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	l, ok := extToLanguage[ext]
	return l, ok
}

// All returns every known language name, sorted.
func All() []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range extToLanguage {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	slices.Sort(out)
	return out
}

// defaultIgnore holds the definition paths that are never useful as
// completion context: third-party packages installed into the workspace.
var defaultIgnore = map[string][]string{
	"typescript": {`.*node_modules`},
	"javascript": {`.*node_modules`},
	"python":     {`.*site-packages`, `.*\.venv/`},
	"go":         {`.*/vendor/`, `.*/pkg/mod/`},
	"rust":       {`.*\.cargo/registry`},
}

// DefaultIgnorePatterns returns a fresh copy of the built-in ignore
// patterns, keyed by language.
func DefaultIgnorePatterns() map[string][]string {
	out := make(map[string][]string, len(defaultIgnore))
	for l, pats := range defaultIgnore {
		out[l] = slices.Clone(pats)
	}
	return out
}
