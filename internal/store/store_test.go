package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

func ptr[T any](v T) *T { return &v }

// insertTestFile is a helper that inserts a file and returns it with ID set.
func insertTestFile(t *testing.T, s *Store, path, lang string) *File {
	t.Helper()
	f := &File{Path: path, Language: lang, Hash: "abc123", LineCount: 10, LastIndexed: time.Now().Truncate(time.Second)}
	id, err := s.InsertFile(f)
	require.NoError(t, err)
	require.Positive(t, id)
	return f
}

func insertTestSymbol(t *testing.T, s *Store, fileID int64, name string, startLine, endLine int) *Symbol {
	t.Helper()
	sym := &Symbol{
		FileID:    fileID,
		Name:      name,
		Kind:      "type",
		StartLine: startLine, StartCol: 0, EndLine: endLine, EndCol: 1,
	}
	_, err := s.InsertSymbol(sym)
	require.NoError(t, err)
	return sym
}

func insertTestRef(t *testing.T, s *Store, fileID int64, name string, line, startCol, endCol int) *Reference {
	t.Helper()
	ref := &Reference{FileID: fileID, Name: name, StartLine: line, StartCol: startCol, EndLine: line, EndCol: endCol}
	_, err := s.InsertReference(ref)
	require.NoError(t, err)
	return ref
}

// =============================================================================
// Schema & Lifecycle
// =============================================================================

func TestMigrate_AllTablesExist(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	for _, table := range []string{"files", "symbols", "references_", "imports", "resolved_references", "metadata"} {
		var name string
		err := s.DB().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.Migrate())
}

// =============================================================================
// Files
// =============================================================================

func TestFileByPath(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/src/main.go", "go")

	got, err := s.FileByPath("/src/main.go")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, f.ID, got.ID)
	assert.Equal(t, "go", got.Language)
	assert.Equal(t, 10, got.LineCount)

	missing, err := s.FileByPath("/src/none.go")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUpdateFile(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/src/main.go", "go")

	f.Hash = "def456"
	f.LineCount = 20
	require.NoError(t, s.UpdateFile(f))

	got, err := s.FileByPath("/src/main.go")
	require.NoError(t, err)
	assert.Equal(t, "def456", got.Hash)
	assert.Equal(t, 20, got.LineCount)
}

func TestFiles_OrderedByPath(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	insertTestFile(t, s, "/b.go", "go")
	insertTestFile(t, s, "/a.go", "go")

	files, err := s.Files()
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "/a.go", files[0].Path)
	assert.Equal(t, "/b.go", files[1].Path)
}

// =============================================================================
// Symbols, references, imports
// =============================================================================

func TestSymbols(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/a.go", "go")
	insertTestSymbol(t, s, f.ID, "Config", 2, 4)
	insertTestSymbol(t, s, f.ID, "run", 6, 9)

	byFile, err := s.SymbolsByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, byFile, 2)
	assert.Equal(t, "Config", byFile[0].Name)

	byName, err := s.SymbolsByName("run")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, 6, byName[0].StartLine)
}

func TestSymbolByID(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/utils.go", "go")
	sym := insertTestSymbol(t, s, f.ID, "Config", 2, 4)

	got, err := s.SymbolByID(sym.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Config", got.Name)
	assert.Equal(t, f.ID, got.FileID)

	missing, err := s.SymbolByID(sym.ID + 100)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestReferencesByFile(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/a.go", "go")
	ref := &Reference{FileID: f.ID, Name: "Config", StartLine: 1, StartCol: 2, EndLine: 1, EndCol: 8, Context: "parameter_declaration"}
	_, err := s.InsertReference(ref)
	require.NoError(t, err)

	refs, err := s.ReferencesByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "parameter_declaration", refs[0].Context)
}

func TestImports_DefaultKindAndScope(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/a.ts", "typescript")

	_, err := s.InsertImport(&Import{FileID: f.ID, Source: "./utils", ImportedName: ptr("helper")})
	require.NoError(t, err)

	imps, err := s.ImportsByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, imps, 1)
	assert.Equal(t, "./utils", imps[0].Source)
	assert.Equal(t, "helper", *imps[0].ImportedName)
	assert.Nil(t, imps[0].LocalAlias)
	assert.Equal(t, "module", imps[0].Kind)
	assert.Equal(t, "file", imps[0].Scope)
}

// =============================================================================
// Resolution
// =============================================================================

func TestResolveByName_CrossFile(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	utils := insertTestFile(t, s, "/utils.go", "go")
	main := insertTestFile(t, s, "/main.go", "go")
	sym := insertTestSymbol(t, s, utils.ID, "Config", 2, 4)
	ref := insertTestRef(t, s, main.ID, "Config", 3, 13, 19)

	n, err := s.ResolveByName()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rrs, err := s.ResolvedReferencesByRef(ref.ID)
	require.NoError(t, err)
	require.Len(t, rrs, 1)
	assert.Equal(t, sym.ID, rrs[0].TargetSymbolID)
	assert.Equal(t, "global", rrs[0].ResolutionKind)
	assert.InDelta(t, 0.5, rrs[0].Confidence, 0.001)
}

func TestResolveByName_LocalShadowsGlobal(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	other := insertTestFile(t, s, "/other.go", "go")
	main := insertTestFile(t, s, "/main.go", "go")
	insertTestSymbol(t, s, other.ID, "Config", 0, 2)
	local := insertTestSymbol(t, s, main.ID, "Config", 10, 12)
	ref := insertTestRef(t, s, main.ID, "Config", 3, 13, 19)

	_, err := s.ResolveByName()
	require.NoError(t, err)

	rrs, err := s.ResolvedReferencesByRef(ref.ID)
	require.NoError(t, err)
	require.Len(t, rrs, 1)
	assert.Equal(t, local.ID, rrs[0].TargetSymbolID)
	assert.Equal(t, "local", rrs[0].ResolutionKind)
}

func TestResolveByName_SameLanguageOnly(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	py := insertTestFile(t, s, "/models.py", "python")
	main := insertTestFile(t, s, "/main.go", "go")
	insertTestSymbol(t, s, py.ID, "Config", 0, 2)
	ref := insertTestRef(t, s, main.ID, "Config", 3, 13, 19)

	n, err := s.ResolveByName()
	require.NoError(t, err)
	assert.Zero(t, n)

	rrs, err := s.ResolvedReferencesByRef(ref.ID)
	require.NoError(t, err)
	assert.Empty(t, rrs)
}

func TestResolveByName_RebuildsFromScratch(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	utils := insertTestFile(t, s, "/utils.go", "go")
	main := insertTestFile(t, s, "/main.go", "go")
	insertTestSymbol(t, s, utils.ID, "Config", 2, 4)
	insertTestRef(t, s, main.ID, "Config", 3, 13, 19)

	_, err := s.ResolveByName()
	require.NoError(t, err)
	_, err = s.ResolveByName()
	require.NoError(t, err)

	var count int
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM resolved_references").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestResolveByName_ImportRestrictsCandidates(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	a := insertTestFile(t, s, "/src/a.ts", "typescript")
	b := insertTestFile(t, s, "/src/b.ts", "typescript")
	main := insertTestFile(t, s, "/src/main.ts", "typescript")
	imported := insertTestSymbol(t, s, a.ID, "Config", 0, 2)
	insertTestSymbol(t, s, b.ID, "Config", 0, 2)
	_, err := s.InsertImport(&Import{FileID: main.ID, Source: "'./a'", ImportedName: ptr("Config")})
	require.NoError(t, err)
	ref := insertTestRef(t, s, main.ID, "Config", 2, 18, 24)

	n, err := s.ResolveByName()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rrs, err := s.ResolvedReferencesByRef(ref.ID)
	require.NoError(t, err)
	require.Len(t, rrs, 1)
	assert.Equal(t, imported.ID, rrs[0].TargetSymbolID)
	assert.Equal(t, "import", rrs[0].ResolutionKind)
}

func TestResolveByName_AliasedImport(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	models := insertTestFile(t, s, "/app/models.py", "python")
	main := insertTestFile(t, s, "/app/main.py", "python")
	user := insertTestSymbol(t, s, models.ID, "User", 0, 1)
	_, err := s.InsertImport(&Import{FileID: main.ID, Source: "models", ImportedName: ptr("User"), LocalAlias: ptr("U")})
	require.NoError(t, err)
	ref := insertTestRef(t, s, main.ID, "U", 3, 10, 11)

	_, err = s.ResolveByName()
	require.NoError(t, err)

	rrs, err := s.ResolvedReferencesByRef(ref.ID)
	require.NoError(t, err)
	require.Len(t, rrs, 1)
	assert.Equal(t, user.ID, rrs[0].TargetSymbolID)
}

func TestResolveByName_ExternalImportBindsNothing(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	other := insertTestFile(t, s, "/src/other.ts", "typescript")
	main := insertTestFile(t, s, "/src/main.ts", "typescript")
	insertTestSymbol(t, s, other.ID, "Component", 0, 2)
	_, err := s.InsertImport(&Import{FileID: main.ID, Source: `"react"`, ImportedName: ptr("Component")})
	require.NoError(t, err)
	ref := insertTestRef(t, s, main.ID, "Component", 2, 18, 27)

	n, err := s.ResolveByName()
	require.NoError(t, err)
	assert.Zero(t, n)

	rrs, err := s.ResolvedReferencesByRef(ref.ID)
	require.NoError(t, err)
	assert.Empty(t, rrs)
}

func TestImportResolves(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		from     string
		source   string
		language string
		target   string
		want     bool
	}{
		{"relative sibling", "/src/main.ts", "'./a'", "typescript", "/src/a.ts", true},
		{"relative other file", "/src/main.ts", "'./a'", "typescript", "/src/b.ts", false},
		{"relative parent", "/src/app/main.ts", `"../lib/config"`, "typescript", "/src/lib/config.ts", true},
		{"explicit extension", "/src/main.js", "'./a.js'", "javascript", "/src/a.js", true},
		{"directory index", "/src/main.js", "'./lib'", "javascript", "/src/lib/index.js", true},
		{"bare trailing path", "/src/main.ts", "'lib/config'", "typescript", "/repo/lib/config.ts", true},
		{"bare partial segment", "/src/main.ts", "'config'", "typescript", "/repo/myconfig.ts", false},
		{"python absolute", "/app/main.py", "pkg.models", "python", "/app/pkg/models.py", true},
		{"python package", "/app/main.py", "pkg", "python", "/app/pkg/__init__.py", true},
		{"python relative", "/app/pkg/views.py", ".models", "python", "/app/pkg/models.py", true},
		{"python parent relative", "/app/pkg/sub/views.py", "..models", "python", "/app/pkg/models.py", true},
		{"empty source", "/src/main.ts", "''", "typescript", "/src/a.ts", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, importResolves(tt.from, tt.source, tt.language, tt.target))
		})
	}
}

func TestDefinitionAt(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	utils := insertTestFile(t, s, "/utils.go", "go")
	main := insertTestFile(t, s, "/main.go", "go")
	insertTestSymbol(t, s, utils.ID, "Config", 2, 4)
	insertTestRef(t, s, main.ID, "Config", 3, 13, 19)
	_, err := s.ResolveByName()
	require.NoError(t, err)

	tests := []struct {
		name string
		line int
		col  int
		want int
	}{
		{"start of identifier", 3, 13, 1},
		{"end of identifier", 3, 19, 1},
		{"before identifier", 3, 12, 0},
		{"after identifier", 3, 20, 0},
		{"other line", 4, 15, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			locs, err := s.DefinitionAt("/main.go", tt.line, tt.col)
			require.NoError(t, err)
			require.Len(t, locs, tt.want)
			if tt.want > 0 {
				assert.Equal(t, Location{File: "/utils.go", StartLine: 2, StartCol: 0, EndLine: 4, EndCol: 1}, locs[0])
			}
		})
	}
}

func TestDefinitionAt_UnknownFile(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	locs, err := s.DefinitionAt("/missing.go", 0, 0)
	require.NoError(t, err)
	assert.Nil(t, locs)
}

func TestDeleteFilesByID(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	utils := insertTestFile(t, s, "/utils.go", "go")
	main := insertTestFile(t, s, "/main.go", "go")
	insertTestSymbol(t, s, utils.ID, "Config", 2, 4)
	insertTestRef(t, s, main.ID, "Config", 3, 13, 19)
	_, err := s.ResolveByName()
	require.NoError(t, err)

	require.NoError(t, s.DeleteFilesByID([]int64{utils.ID}))

	f, err := s.FileByPath("/utils.go")
	require.NoError(t, err)
	assert.Nil(t, f)

	syms, err := s.SymbolsByName("Config")
	require.NoError(t, err)
	assert.Empty(t, syms)

	var count int
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM resolved_references").Scan(&count))
	assert.Zero(t, count)

	refs, err := s.ReferencesByFile(main.ID)
	require.NoError(t, err)
	assert.Len(t, refs, 1)
}

// =============================================================================
// Metadata
// =============================================================================

func TestMetadata(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	v, err := s.GetMetadata("scripts_hash")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.SetMetadata("scripts_hash", "one"))
	require.NoError(t, s.SetMetadata("scripts_hash", "two"))

	v, err = s.GetMetadata("scripts_hash")
	require.NoError(t, err)
	assert.Equal(t, "two", v)
}
