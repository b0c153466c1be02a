package treesitter

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/rootpath"
)

//go:embed queries
var embeddedQueries embed.FS

// QueriesFS holds the built-in queries laid out as {language}/{kind}.scm.
var QueriesFS fs.FS = mustSub(embeddedQueries, "queries")

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(fmt.Sprintf("treesitter: %v", err))
	}
	return sub
}

type registryKey struct {
	language string
	kind     rootpath.NodeKind
}

// Registry compiles and caches the structural query for each (language,
// kind) pair on first use. Query files are read from an fs.FS laid out as
// {language}/{kind}.scm.
type Registry struct {
	fsys fs.FS

	mu      sync.RWMutex
	queries map[registryKey]*Query // nil value: no query file
}

// NewRegistry creates a Registry reading query files from fsys.
func NewRegistry(fsys fs.FS) *Registry {
	return &Registry{
		fsys:    fsys,
		queries: make(map[registryKey]*Query),
	}
}

var _ rootpath.QueryRegistry = (*Registry)(nil)

// Lookup returns the compiled query for language and kind. A missing query
// file or unsupported language yields found == false; a query that fails to
// compile is an error.
func (r *Registry) Lookup(language string, kind rootpath.NodeKind) (rootpath.Query, bool, error) {
	key := registryKey{language: language, kind: kind}

	r.mu.RLock()
	q, ok := r.queries[key]
	r.mu.RUnlock()
	if ok {
		return queryResult(q)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if q, ok := r.queries[key]; ok {
		return queryResult(q)
	}

	q, err := r.compile(language, kind)
	if err != nil {
		return nil, false, err
	}
	r.queries[key] = q
	return queryResult(q)
}

func queryResult(q *Query) (rootpath.Query, bool, error) {
	if q == nil {
		return nil, false, nil
	}
	return q, true, nil
}

func (r *Registry) compile(language string, kind rootpath.NodeKind) (*Query, error) {
	grammar, ok := GrammarFor(language)
	if !ok {
		return nil, nil
	}
	file := path.Join(language, kind.String()+".scm")
	src, err := fs.ReadFile(r.fsys, file)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read query %s: %w", file, err)
	}
	q, err := sitter.NewQuery(src, grammar)
	if err != nil {
		return nil, fmt.Errorf("compile query %s: %w", file, err)
	}
	return &Query{query: q, name: file}, nil
}

// Close releases all compiled queries.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range r.queries {
		if q != nil {
			q.query.Close()
		}
	}
	r.queries = make(map[registryKey]*Query)
}

// Query is a compiled tree-sitter query. It is safe for concurrent use:
// every call runs its own cursor.
type Query struct {
	query *sitter.Query
	name  string
}

// Matches runs the query over node and returns every match with its
// captures. Text predicates such as #eq? are applied when node carries its
// source (a *Node from Document.PathAt).
func (q *Query) Matches(ctx context.Context, node rootpath.ScopeNode) ([]rootpath.Match, error) {
	var (
		target *sitter.Node
		src    []byte
	)
	switch n := node.(type) {
	case *Node:
		target, src = n.Node, n.Source
	case *sitter.Node:
		target = n
	default:
		return nil, fmt.Errorf("query %s: unsupported node type %T", q.name, node)
	}

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(q.query, target)

	var matches []rootpath.Match
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m, ok := cursor.NextMatch()
		if !ok {
			break
		}
		if src != nil {
			m = cursor.FilterPredicates(m, src)
		}
		if len(m.Captures) == 0 {
			continue
		}
		captures := make([]rootpath.Capture, 0, len(m.Captures))
		for _, c := range m.Captures {
			end := c.Node.EndPoint()
			captures = append(captures, rootpath.Capture{
				Name: q.query.CaptureNameForId(c.Index),
				End:  rootpath.Position{Line: int(end.Row), Character: int(end.Column)},
			})
		}
		matches = append(matches, rootpath.Match{Captures: captures})
	}
	return matches, nil
}
