package main

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	flagForce      bool
	flagLanguages  string
	flagScriptsDir string
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Build or refresh the definition index",
	Long:  "Parses source files with tree-sitter, runs the per-language indexing scripts, binds references to definitions and writes the results to the SQLite database.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&flagForce, "force", false, "delete database and reindex from scratch")
	indexCmd.Flags().StringVar(&flagLanguages, "languages", "", "comma-separated language filter (e.g. go,typescript)")
	indexCmd.Flags().StringVar(&flagScriptsDir, "scripts-dir", "", "load indexing scripts from disk path instead of embedded")
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()

	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return outputError(cmd, "index", err)
	}

	s, err := openSession(targetDir, sessionOptions{
		force:      flagForce,
		languages:  splitLanguages(flagLanguages),
		scriptsDir: flagScriptsDir,
	})
	if err != nil {
		return outputError(cmd, "index", err)
	}
	defer s.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.index(ctx, targetDir); err != nil {
		return outputError(cmd, "index", err)
	}

	files, err := s.store.Files()
	if err != nil {
		return outputError(cmd, "index", err)
	}
	summary := CLIIndexSummary{
		Root:       targetDir,
		Database:   s.dbPath,
		FileCount:  len(files),
		DurationMS: time.Since(start).Milliseconds(),
	}
	s.logger.Info("indexed", "root", targetDir, "files", len(files),
		"duration", time.Since(start).Round(time.Millisecond))

	return outputResult(cmd, CLIResult{
		Command: "index",
		Results: summary,
	})
}

// splitLanguages parses the --languages flag.
func splitLanguages(flag string) []string {
	if flag == "" {
		return nil
	}
	var langs []string
	for _, l := range strings.Split(flag, ",") {
		if l = strings.TrimSpace(l); l != "" {
			langs = append(langs, l)
		}
	}
	return langs
}
