package store

import "time"

// File is one indexed source file. Hash is the sha256 of its content at
// LastIndexed; LineCount bounds range reads.
type File struct {
	ID          int64
	Path        string
	Language    string
	Hash        string
	LineCount   int
	LastIndexed time.Time
}

// Symbol is a named declaration. Its range covers the whole declaration,
// which is the text returned as a context snippet.
type Symbol struct {
	ID        int64
	FileID    int64
	Name      string
	Kind      string
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

// Reference is an identifier use. Context is the syntactic role recorded by
// the index script such as "type", "base" or "extends".
type Reference struct {
	ID        int64
	FileID    int64
	Name      string
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
	Context   string
}

// Import is one imported module, or one name imported from it.
type Import struct {
	ID           int64
	FileID       int64
	Source       string
	ImportedName *string
	LocalAlias   *string
	Kind         string
	Scope        string
}

// ResolvedReference binds a reference to the symbol it names.
type ResolvedReference struct {
	ID             int64
	ReferenceID    int64
	TargetSymbolID int64
	Confidence     float64
	ResolutionKind string
}

// Location is a source range in a named file. Lines and columns are
// 0-based; columns are byte offsets within the line.
type Location struct {
	File      string
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}
