package main

import "github.com/jward/rootpath"

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLISnippet is a JSON-friendly snippet representation.
type CLISnippet struct {
	File    string `json:"file"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

// CLIIndexSummary reports the outcome of an index run.
type CLIIndexSummary struct {
	Root       string `json:"root"`
	Database   string `json:"database"`
	FileCount  int    `json:"file_count"`
	DurationMS int64  `json:"duration_ms"`
}

// CLIReference is one reference of a file and what it binds to.
type CLIReference struct {
	Name     string       `json:"name"`
	Line     int          `json:"line"`
	Col      int          `json:"col"`
	Context  string       `json:"context,omitempty"`
	Bindings []CLIBinding `json:"bindings"`
}

// CLIBinding is one definition a reference resolved to.
type CLIBinding struct {
	File       string  `json:"file"`
	Line       int     `json:"line"`
	Symbol     string  `json:"symbol"`
	Kind       string  `json:"kind"`
	Confidence float64 `json:"confidence"`
}

// serveRequest is one line of serve input. Line and Col are 0-based.
type serveRequest struct {
	ID   any    `json:"id,omitempty"`
	File string `json:"file"`
	Line int    `json:"line"`
	Col  int    `json:"col"`
}

// serveResponse is one line of serve output.
type serveResponse struct {
	ID       any          `json:"id,omitempty"`
	Snippets []CLISnippet `json:"snippets"`
	Error    string       `json:"error,omitempty"`
}

func snippetsToCLI(snippets []rootpath.Snippet) []CLISnippet {
	out := make([]CLISnippet, 0, len(snippets))
	for _, sn := range snippets {
		out = append(out, CLISnippet{
			File:    sn.Filepath,
			Type:    string(sn.Kind),
			Content: sn.Content,
		})
	}
	return out
}
