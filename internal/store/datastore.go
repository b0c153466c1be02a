package store

// DataStore is the interface indexing scripts write through.
type DataStore interface {
	// Extraction inserts return the assigned ID.
	InsertSymbol(sym *Symbol) (int64, error)
	InsertReference(ref *Reference) (int64, error)
	InsertImport(imp *Import) (int64, error)

	// Lookups available to scripts.
	SymbolsByFile(fileID int64) ([]*Symbol, error)
	ImportsByFile(fileID int64) ([]*Import, error)
}

// Compile-time check: *Store satisfies DataStore.
var _ DataStore = (*Store)(nil)
