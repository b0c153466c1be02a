package rootpath

import "context"

// ScopeNode is one syntactic ancestor of the cursor. *sitter.Node from
// github.com/smacker/go-tree-sitter satisfies it. The start byte offset is
// the node's identity; it is stable only within one parse of a file.
type ScopeNode interface {
	Type() string
	StartByte() uint32
}

// AstPath is the ordered chain of ancestors of a cursor, root first.
type AstPath []ScopeNode

// Position is a 0-based line and character offset.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a half-open span between two positions.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Definition is one go-to-definition result.
type Definition struct {
	Filepath string `json:"filepath"`
	Range    Range  `json:"range"`
}

// SnippetKind classifies a snippet. Only code snippets are produced.
type SnippetKind string

const SnippetCode SnippetKind = "code"

// Snippet is a piece of definition source handed to the completion model.
type Snippet struct {
	Filepath string      `json:"filepath"`
	Content  string      `json:"content"`
	Kind     SnippetKind `json:"type"`
}

// Capture is a named node selected by a structural query. Only its end
// position is needed: definitions are looked up at the position just past
// the captured identifier.
type Capture struct {
	Name string
	End  Position
}

// Match is one query match with its captures in pattern order.
type Match struct {
	Captures []Capture
}

// Query runs a compiled structural query against a scope node.
type Query interface {
	Matches(ctx context.Context, node ScopeNode) ([]Match, error)
}

// QueryRegistry supplies the structural query for a (language, kind) pair.
// A missing query is reported as found == false, not as an error.
type QueryRegistry interface {
	Lookup(language string, kind NodeKind) (q Query, found bool, err error)
}

// DefinitionResolver answers go-to-definition at a position in a file.
type DefinitionResolver interface {
	GotoDefinition(ctx context.Context, filepath string, pos Position) ([]Definition, error)
}

// RangeReader returns the text of a range of a file.
type RangeReader interface {
	ReadRange(ctx context.Context, filepath string, r Range) (string, error)
}

// ImportIndexer refreshes the import bindings recorded for a file.
type ImportIndexer interface {
	IndexImports(ctx context.Context, filepath string) error
}
