package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jward/rootpath/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default .rootpath/config.yaml",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return outputError(cmd, "init", err)
	}
	repoRoot := findRepoRoot(targetDir)
	path := config.ConfigPath(repoRoot)
	if _, err := os.Stat(path); err == nil {
		return outputError(cmd, "init", fmt.Errorf("config already exists: %s", path))
	}

	cfg := config.DefaultConfig()
	cfg.Ignore = cfg.IgnorePatterns()
	if err := config.Save(repoRoot, cfg); err != nil {
		return outputError(cmd, "init", err)
	}
	return outputResult(cmd, CLIResult{
		Command: "init",
		Results: map[string]string{"config": path},
	})
}
