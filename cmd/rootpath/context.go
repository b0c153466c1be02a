package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
)

var contextCmd = &cobra.Command{
	Use:   "context <file> <line> <col>",
	Short: "Print definition context for a cursor position",
	Long:  "Parses the file, takes the syntax ancestors of the 0-based line and column, and prints the source of the definitions they reference, outermost scope first. The index is built on first use.",
	Args:  cobra.ExactArgs(3),
	RunE:  runContext,
}

func runContext(cmd *cobra.Command, args []string) error {
	file, err := resolveFilePath(args[0])
	if err != nil {
		return outputError(cmd, "context", err)
	}
	line, err := parseIntArg(args[1], "line")
	if err != nil {
		return outputError(cmd, "context", err)
	}
	col, err := parseIntArg(args[2], "col")
	if err != nil {
		return outputError(cmd, "context", err)
	}

	s, err := openSession(filepath.Dir(file), sessionOptions{})
	if err != nil {
		return outputError(cmd, "context", err)
	}
	defer s.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.ensureIndexed(ctx); err != nil {
		return outputError(cmd, "context", err)
	}

	snippets, err := s.contextAt(ctx, file, line, col)
	if err != nil {
		return outputError(cmd, "context", err)
	}

	results := snippetsToCLI(snippets)
	n := len(results)
	return outputResult(cmd, CLIResult{
		Command:    "context",
		Results:    results,
		TotalCount: &n,
	})
}

// parseIntArg parses a positional argument as an integer with a clear error.
func parseIntArg(value, name string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative integer", name, value)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be non-negative", name, value)
	}
	return n, nil
}
