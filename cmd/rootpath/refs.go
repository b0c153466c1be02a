package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jward/rootpath/internal/store"
)

var refsCmd = &cobra.Command{
	Use:   "refs <file>",
	Short: "List the references in a file and the definitions they bind to",
	Long:  "Prints every indexed reference in the file with the symbols it was bound to, how it was bound (local, import or global) and the binding confidence. Useful for explaining the output of context.",
	Args:  cobra.ExactArgs(1),
	RunE:  runRefs,
}

func init() {
	rootCmd.AddCommand(refsCmd)
}

func runRefs(cmd *cobra.Command, args []string) error {
	file, err := resolveFilePath(args[0])
	if err != nil {
		return outputError(cmd, "refs", err)
	}

	s, err := openSession(filepath.Dir(file), sessionOptions{})
	if err != nil {
		return outputError(cmd, "refs", err)
	}
	defer s.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.ensureIndexed(ctx); err != nil {
		return outputError(cmd, "refs", err)
	}

	refs, err := fileReferences(s.store, file)
	if err != nil {
		return outputError(cmd, "refs", err)
	}
	n := len(refs)
	return outputResult(cmd, CLIResult{
		Command:    "refs",
		Results:    refs,
		TotalCount: &n,
	})
}

// fileReferences collects the references of path with their bindings.
func fileReferences(st *store.Store, path string) ([]CLIReference, error) {
	f, err := st.FileByPath(path)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("file not indexed: %s", path)
	}

	files, err := st.Files()
	if err != nil {
		return nil, err
	}
	paths := make(map[int64]string, len(files))
	for _, indexed := range files {
		paths[indexed.ID] = indexed.Path
	}

	refs, err := st.ReferencesByFile(f.ID)
	if err != nil {
		return nil, err
	}
	out := make([]CLIReference, 0, len(refs))
	for _, ref := range refs {
		bindings, err := st.ResolvedReferencesByRef(ref.ID)
		if err != nil {
			return nil, err
		}
		r := CLIReference{
			Name:     ref.Name,
			Line:     ref.StartLine,
			Col:      ref.StartCol,
			Context:  ref.Context,
			Bindings: make([]CLIBinding, 0, len(bindings)),
		}
		for _, b := range bindings {
			sym, err := st.SymbolByID(b.TargetSymbolID)
			if err != nil {
				return nil, err
			}
			if sym == nil {
				continue
			}
			r.Bindings = append(r.Bindings, CLIBinding{
				File:       paths[sym.FileID],
				Line:       sym.StartLine,
				Symbol:     sym.Name,
				Kind:       b.ResolutionKind,
				Confidence: b.Confidence,
			})
		}
		out = append(out, r)
	}
	return out, nil
}
