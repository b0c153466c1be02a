package index

import (
	"context"
	"fmt"

	"github.com/jward/rootpath"
	"github.com/jward/rootpath/internal/store"
)

// Resolver answers go-to-definition from the index.
type Resolver struct {
	store *store.Store
}

// NewResolver creates a Resolver reading from s.
func NewResolver(s *store.Store) *Resolver {
	return &Resolver{store: s}
}

var _ rootpath.DefinitionResolver = (*Resolver)(nil)

// GotoDefinition returns the definitions bound to the reference at pos,
// best match first. A position with no indexed reference yields no
// definitions and no error.
func (r *Resolver) GotoDefinition(ctx context.Context, filepath string, pos rootpath.Position) ([]rootpath.Definition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	locs, err := r.store.DefinitionAt(filepath, pos.Line, pos.Character)
	if err != nil {
		return nil, fmt.Errorf("goto definition %s:%d:%d: %w", filepath, pos.Line, pos.Character, err)
	}
	defs := make([]rootpath.Definition, 0, len(locs))
	for _, loc := range locs {
		defs = append(defs, rootpath.Definition{
			Filepath: loc.File,
			Range: rootpath.Range{
				Start: rootpath.Position{Line: loc.StartLine, Character: loc.StartCol},
				End:   rootpath.Position{Line: loc.EndLine, Character: loc.EndCol},
			},
		})
	}
	return defs, nil
}
