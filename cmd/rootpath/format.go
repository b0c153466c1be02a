package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// outputResult writes a CLIResult to the command's stdout in the selected
// format.
func outputResult(cmd *cobra.Command, result CLIResult) error {
	w := cmd.OutOrStdout()
	if flagFormat == "text" {
		return outputResultText(w, result)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(cmd *cobra.Command, command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err)
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	return err
}

func outputResultText(w io.Writer, result CLIResult) error {
	switch r := result.Results.(type) {
	case []CLISnippet:
		formatSnippetsText(w, r)
	case CLIIndexSummary:
		formatIndexSummaryText(w, r)
	case []CLIReference:
		formatReferencesText(w, r)
	default:
		fmt.Fprintf(w, "%v\n", r)
	}
	return nil
}

// formatSnippetsText prints each snippet under a "--- file" header.
func formatSnippetsText(w io.Writer, snippets []CLISnippet) {
	if len(snippets) == 0 {
		fmt.Fprintln(w, "No context.")
		return
	}
	for _, sn := range snippets {
		fmt.Fprintf(w, "--- %s\n", sn.File)
		fmt.Fprint(w, sn.Content)
		if !strings.HasSuffix(sn.Content, "\n") {
			fmt.Fprintln(w)
		}
	}
}

// formatIndexSummaryText formats CLIIndexSummary as aligned key/value rows.
func formatIndexSummaryText(w io.Writer, s CLIIndexSummary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Root:\t%s\n", s.Root)
	fmt.Fprintf(tw, "Database:\t%s\n", s.Database)
	fmt.Fprintf(tw, "Files:\t%d\n", s.FileCount)
	fmt.Fprintf(tw, "Duration:\t%dms\n", s.DurationMS)
	tw.Flush()
}

// formatReferencesText prints one row per binding; unbound references get a
// single row with "-" in place of the target.
func formatReferencesText(w io.Writer, refs []CLIReference) {
	if len(refs) == 0 {
		fmt.Fprintln(w, "No references.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, r := range refs {
		pos := fmt.Sprintf("%d:%d", r.Line, r.Col)
		if len(r.Bindings) == 0 {
			fmt.Fprintf(tw, "%s\t%s\t%s\t-\n", pos, r.Name, r.Context)
			continue
		}
		for _, b := range r.Bindings {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s:%d\t%s\t%.2f\n", pos, r.Name, r.Context, b.File, b.Line, b.Kind, b.Confidence)
		}
	}
	tw.Flush()
}
