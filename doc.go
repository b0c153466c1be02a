// Package rootpath gathers code-completion context along the root path of a
// cursor.
//
// Given the chain of syntax nodes enclosing a cursor, root first, the
// [Engine] visits every node that opens a scope (functions, methods,
// classes, module roots). For each one it runs a structural query that
// picks out the identifiers the scope refers to, such as parameter and
// return types, resolves each identifier with go-to-definition, and returns
// the source of the definitions as [Snippet] values. Outer scopes come
// first.
//
// # Caching
//
// Each scope's result is cached under a key hashed over the file path and
// every ancestor scope's type and start offset (see internal/cache). A
// second request whose path shares a prefix with an earlier one reuses the
// shared levels without touching the resolver. The cache is a fixed-size
// LRU; it is never invalidated implicitly. Callers that watch the file
// system use [Engine.InvalidateFile].
//
// # Collaborators
//
// The engine is independent of any particular parser or index:
//
//   - [QueryRegistry] and [Query]: structural queries per language and
//     node kind (internal/treesitter provides a tree-sitter backed one).
//   - [DefinitionResolver]: go-to-definition (internal/index answers it
//     from a SQLite workspace index).
//   - [RangeReader]: file text by range.
//   - [ImportIndexer]: notified, without waiting, when a module root is
//     visited.
//
// # Usage
//
//	doc, err := treesitter.ParseFile(ctx, "src/app.ts")
//	if err != nil { ... }
//	defer doc.Close()
//
//	e, err := rootpath.New(registry, resolver, index.FileReader{},
//		rootpath.WithImportIndexer(indexer))
//	if err != nil { ... }
//	defer e.Close()
//
//	snippets, err := e.GetContextForPath(ctx, doc.Path, doc.PathAt(12, 8))
package rootpath
