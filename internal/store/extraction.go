package store

import (
	"database/sql"
	"fmt"
)

// --- File operations ---

func (s *Store) InsertFile(f *File) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO files (path, language, hash, line_count, last_indexed) VALUES (?, ?, ?, ?, ?)",
		f.Path, f.Language, f.Hash, f.LineCount, f.LastIndexed,
	)
	if err != nil {
		return 0, fmt.Errorf("insert file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	f.ID = id
	return id, nil
}

// UpdateFile rewrites the hash, line count and index time of an existing file.
func (s *Store) UpdateFile(f *File) error {
	_, err := s.db.Exec(
		"UPDATE files SET language = ?, hash = ?, line_count = ?, last_indexed = ? WHERE id = ?",
		f.Language, f.Hash, f.LineCount, f.LastIndexed, f.ID,
	)
	if err != nil {
		return fmt.Errorf("update file: %w", err)
	}
	return nil
}

const fileCols = "id, path, language, hash, line_count, last_indexed"

func (s *Store) FileByPath(path string) (*File, error) {
	f := &File{}
	err := s.db.QueryRow(
		"SELECT "+fileCols+" FROM files WHERE path = ?", path,
	).Scan(&f.ID, &f.Path, &f.Language, &f.Hash, &f.LineCount, &f.LastIndexed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	return f, nil
}

// Files returns every indexed file ordered by path.
func (s *Store) Files() ([]*File, error) {
	rows, err := s.db.Query("SELECT " + fileCols + " FROM files ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f := &File{}
		if err := rows.Scan(&f.ID, &f.Path, &f.Language, &f.Hash, &f.LineCount, &f.LastIndexed); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// --- Symbol operations ---

func (s *Store) InsertSymbol(sym *Symbol) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO symbols (file_id, name, kind, start_line, start_col, end_line, end_col)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sym.FileID, sym.Name, sym.Kind, sym.StartLine, sym.StartCol, sym.EndLine, sym.EndCol,
	)
	if err != nil {
		return 0, fmt.Errorf("insert symbol: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	sym.ID = id
	return id, nil
}

const symbolCols = "id, file_id, name, kind, start_line, start_col, end_line, end_col"

func (s *Store) querySymbols(query string, args ...any) ([]*Symbol, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var symbols []*Symbol
	for rows.Next() {
		sym := &Symbol{}
		if err := rows.Scan(&sym.ID, &sym.FileID, &sym.Name, &sym.Kind,
			&sym.StartLine, &sym.StartCol, &sym.EndLine, &sym.EndCol); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

func (s *Store) SymbolsByFile(fileID int64) ([]*Symbol, error) {
	return s.querySymbols("SELECT "+symbolCols+" FROM symbols WHERE file_id = ? ORDER BY id", fileID)
}

func (s *Store) SymbolsByName(name string) ([]*Symbol, error) {
	return s.querySymbols("SELECT "+symbolCols+" FROM symbols WHERE name = ? ORDER BY id", name)
}

// SymbolByID returns the symbol with the given ID, or nil if there is none.
func (s *Store) SymbolByID(id int64) (*Symbol, error) {
	syms, err := s.querySymbols("SELECT "+symbolCols+" FROM symbols WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("symbol by id: %w", err)
	}
	if len(syms) == 0 {
		return nil, nil
	}
	return syms[0], nil
}

// --- Reference operations ---

func (s *Store) InsertReference(ref *Reference) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO references_ (file_id, name, start_line, start_col, end_line, end_col, context)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ref.FileID, ref.Name, ref.StartLine, ref.StartCol, ref.EndLine, ref.EndCol, ref.Context,
	)
	if err != nil {
		return 0, fmt.Errorf("insert reference: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	ref.ID = id
	return id, nil
}

func (s *Store) ReferencesByFile(fileID int64) ([]*Reference, error) {
	rows, err := s.db.Query(
		`SELECT id, file_id, name, start_line, start_col, end_line, end_col, context
		 FROM references_ WHERE file_id = ? ORDER BY id`, fileID,
	)
	if err != nil {
		return nil, fmt.Errorf("references by file: %w", err)
	}
	defer rows.Close()
	var refs []*Reference
	for rows.Next() {
		ref := &Reference{}
		var context sql.NullString
		if err := rows.Scan(&ref.ID, &ref.FileID, &ref.Name, &ref.StartLine, &ref.StartCol,
			&ref.EndLine, &ref.EndCol, &context); err != nil {
			return nil, fmt.Errorf("scan reference: %w", err)
		}
		ref.Context = context.String
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// --- Import operations ---

func (s *Store) InsertImport(imp *Import) (int64, error) {
	if imp.Kind == "" {
		imp.Kind = "module"
	}
	if imp.Scope == "" {
		imp.Scope = "file"
	}
	res, err := s.db.Exec(
		`INSERT INTO imports (file_id, source, imported_name, local_alias, kind, scope)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		imp.FileID, imp.Source, imp.ImportedName, imp.LocalAlias, imp.Kind, imp.Scope,
	)
	if err != nil {
		return 0, fmt.Errorf("insert import: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	imp.ID = id
	return id, nil
}

func (s *Store) ImportsByFile(fileID int64) ([]*Import, error) {
	rows, err := s.db.Query(
		"SELECT id, file_id, source, imported_name, local_alias, kind, scope FROM imports WHERE file_id = ? ORDER BY id",
		fileID,
	)
	if err != nil {
		return nil, fmt.Errorf("imports by file: %w", err)
	}
	defer rows.Close()
	var imports []*Import
	for rows.Next() {
		imp := &Import{}
		if err := rows.Scan(&imp.ID, &imp.FileID, &imp.Source, &imp.ImportedName,
			&imp.LocalAlias, &imp.Kind, &imp.Scope); err != nil {
			return nil, fmt.Errorf("scan import: %w", err)
		}
		imports = append(imports, imp)
	}
	return imports, rows.Err()
}
