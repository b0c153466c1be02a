package store

import (
	"fmt"
	"path/filepath"
	"strings"
)

// --- ResolvedReference operations ---

const resolvedRefCols = `id, reference_id, target_symbol_id, confidence, resolution_kind`

// ResolvedReferencesByRef returns the bindings recorded for one reference.
func (s *Store) ResolvedReferencesByRef(referenceID int64) ([]*ResolvedReference, error) {
	rows, err := s.db.Query(
		"SELECT "+resolvedRefCols+" FROM resolved_references WHERE reference_id = ? ORDER BY id", referenceID,
	)
	if err != nil {
		return nil, fmt.Errorf("resolved references by ref: %w", err)
	}
	defer rows.Close()
	var refs []*ResolvedReference
	for rows.Next() {
		rr := &ResolvedReference{}
		if err := rows.Scan(&rr.ID, &rr.ReferenceID, &rr.TargetSymbolID, &rr.Confidence, &rr.ResolutionKind); err != nil {
			return nil, fmt.Errorf("scan resolved reference: %w", err)
		}
		refs = append(refs, rr)
	}
	return refs, rows.Err()
}

// resolveByNameSQL binds every reference to the symbols of the same name in
// files of the same language. A symbol declared in the referencing file
// shadows all others. A name bound by an import in the referencing file is
// left to the import pass.
const resolveByNameSQL = `
INSERT INTO resolved_references (reference_id, target_symbol_id, confidence, resolution_kind)
SELECT r.id, s.id,
       CASE WHEN s.file_id = r.file_id THEN 1.0 ELSE 0.5 END,
       CASE WHEN s.file_id = r.file_id THEN 'local' ELSE 'global' END
FROM references_ r
JOIN files rf ON rf.id = r.file_id
JOIN symbols s ON s.name = r.name
JOIN files sf ON sf.id = s.file_id AND sf.language = rf.language
WHERE s.file_id = r.file_id
   OR (NOT EXISTS (SELECT 1 FROM symbols l WHERE l.file_id = r.file_id AND l.name = r.name)
       AND NOT EXISTS (SELECT 1 FROM imports i WHERE i.file_id = r.file_id
                       AND COALESCE(i.local_alias, i.imported_name) = r.name))
ORDER BY r.id, s.id`

// importedRefsSQL lists references whose name is bound by a named import
// of the referencing file and not declared in it.
const importedRefsSQL = `
SELECT r.id, rf.path, rf.language, i.source, i.imported_name
FROM references_ r
JOIN files rf ON rf.id = r.file_id
JOIN imports i ON i.file_id = r.file_id
 AND COALESCE(i.local_alias, i.imported_name) = r.name
WHERE i.imported_name IS NOT NULL
  AND NOT EXISTS (SELECT 1 FROM symbols l WHERE l.file_id = r.file_id AND l.name = r.name)
ORDER BY r.id, i.id`

type importBinding struct {
	referenceID int64
	symbolID    int64
}

// ResolveByName rebuilds resolved_references from scratch and returns the
// number of bindings written. References named by an import bind only to
// symbols in the files that import's source points at.
func (s *Store) ResolveByName() (int64, error) {
	imported, err := s.importBindings()
	if err != nil {
		return 0, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM resolved_references"); err != nil {
		return 0, fmt.Errorf("clear resolved references: %w", err)
	}
	res, err := tx.Exec(resolveByNameSQL)
	if err != nil {
		return 0, fmt.Errorf("resolve by name: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	if len(imported) > 0 {
		stmt, err := tx.Prepare(
			`INSERT INTO resolved_references (reference_id, target_symbol_id, confidence, resolution_kind)
			 VALUES (?, ?, 0.9, 'import')`,
		)
		if err != nil {
			return 0, fmt.Errorf("prepare import binding: %w", err)
		}
		defer stmt.Close()
		for _, b := range imported {
			if _, err := stmt.Exec(b.referenceID, b.symbolID); err != nil {
				return 0, fmt.Errorf("insert import binding: %w", err)
			}
		}
		n += int64(len(imported))
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit resolution: %w", err)
	}
	return n, nil
}

// importBindings pairs each imported reference with the same-language
// symbols of the imported name declared in the module its import names.
// Imports of modules outside the index bind nothing.
func (s *Store) importBindings() ([]importBinding, error) {
	type pending struct {
		referenceID int64
		path        string
		language    string
		source      string
		name        string
	}

	rows, err := s.db.Query(importedRefsSQL)
	if err != nil {
		return nil, fmt.Errorf("imported references: %w", err)
	}
	var refs []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.referenceID, &p.path, &p.language, &p.source, &p.name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan imported reference: %w", err)
		}
		refs = append(refs, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("imported references: %w", err)
	}
	if len(refs) == 0 {
		return nil, nil
	}

	files, err := s.Files()
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*File, len(files))
	for _, f := range files {
		byID[f.ID] = f
	}

	byName := make(map[string][]*Symbol)
	var out []importBinding
	for _, p := range refs {
		syms, ok := byName[p.name]
		if !ok {
			syms, err = s.SymbolsByName(p.name)
			if err != nil {
				return nil, fmt.Errorf("symbols named %q: %w", p.name, err)
			}
			byName[p.name] = syms
		}
		for _, sym := range syms {
			f := byID[sym.FileID]
			if f == nil || f.Language != p.language {
				continue
			}
			if importResolves(p.path, p.source, p.language, f.Path) {
				out = append(out, importBinding{referenceID: p.referenceID, symbolID: sym.ID})
			}
		}
	}
	return out, nil
}

var moduleExts = map[string]bool{
	".js": true, ".jsx": true, ".mjs": true, ".cjs": true,
	".ts": true, ".tsx": true, ".mts": true, ".cts": true, ".py": true,
}

// importResolves reports whether an import of source written in fromPath
// can name the module stored at target. Relative sources resolve against
// fromPath's directory; bare ones match a trailing path. A directory
// import matches its index or __init__ file.
func importResolves(fromPath, source, language, target string) bool {
	source = strings.Trim(source, "'\"`")
	if source == "" {
		return false
	}
	base := strings.TrimSuffix(target, filepath.Ext(target))

	var module string
	switch {
	case source == "." || source == ".." || strings.HasPrefix(source, "./") || strings.HasPrefix(source, "../"):
		module = filepath.Join(filepath.Dir(fromPath), filepath.FromSlash(source))
	case language == "python" && strings.HasPrefix(source, "."):
		rest := strings.TrimLeft(source, ".")
		dir := filepath.Dir(fromPath)
		for range len(source) - len(rest) - 1 {
			dir = filepath.Dir(dir)
		}
		module = filepath.Join(dir, filepath.FromSlash(strings.ReplaceAll(rest, ".", "/")))
	default:
		if language == "python" {
			source = strings.ReplaceAll(source, ".", "/")
		}
		module = filepath.FromSlash(strings.TrimSuffix(source, "/"))
		sep := string(filepath.Separator)
		for _, m := range []string{module, filepath.Join(module, "index"), filepath.Join(module, "__init__")} {
			if strings.HasSuffix(base, sep+m) {
				return true
			}
		}
		return false
	}

	if moduleExts[filepath.Ext(module)] {
		module = strings.TrimSuffix(module, filepath.Ext(module))
	}
	return base == module ||
		base == filepath.Join(module, "index") ||
		base == filepath.Join(module, "__init__")
}

// DefinitionAt finds the definition(s) of the symbol referenced at the given
// position. The position must fall within a reference span, ends inclusive,
// so a cursor placed right after an identifier still hits it. Local
// definitions sort first.
func (s *Store) DefinitionAt(path string, line, col int) ([]Location, error) {
	f, err := s.FileByPath(path)
	if err != nil {
		return nil, fmt.Errorf("definition at: lookup file: %w", err)
	}
	if f == nil {
		return nil, nil
	}

	rows, err := s.db.Query(
		`SELECT sf.path, sym.start_line, sym.start_col, sym.end_line, sym.end_col, MAX(rr.confidence) AS conf
		 FROM references_ r
		 JOIN resolved_references rr ON rr.reference_id = r.id
		 JOIN symbols sym ON sym.id = rr.target_symbol_id
		 JOIN files sf ON sf.id = sym.file_id
		 WHERE r.file_id = ? AND r.start_line <= ? AND r.end_line >= ?
		   AND (r.start_line < ? OR (r.start_line = ? AND r.start_col <= ?))
		   AND (r.end_line > ? OR (r.end_line = ? AND r.end_col >= ?))
		 GROUP BY sym.id
		 ORDER BY conf DESC, sf.path, sym.start_line, sym.start_col`,
		f.ID, line, line,
		line, line, col,
		line, line, col,
	)
	if err != nil {
		return nil, fmt.Errorf("definition at: query: %w", err)
	}
	defer rows.Close()

	var locations []Location
	for rows.Next() {
		var loc Location
		var conf float64
		if err := rows.Scan(&loc.File, &loc.StartLine, &loc.StartCol, &loc.EndLine, &loc.EndCol, &conf); err != nil {
			return nil, fmt.Errorf("definition at: scan: %w", err)
		}
		locations = append(locations, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("definition at: rows: %w", err)
	}
	return locations, nil
}

// DeleteFilesByID removes the given files and all their data.
func (s *Store) DeleteFilesByID(fileIDs []int64) error {
	if len(fileIDs) == 0 {
		return nil
	}
	for _, id := range fileIDs {
		if err := s.DeleteFileData(id); err != nil {
			return err
		}
	}
	if _, err := s.db.Exec("DELETE FROM files WHERE id IN ("+placeholderList(len(fileIDs))+")", int64sToArgs(fileIDs)...); err != nil {
		return fmt.Errorf("delete files: %w", err)
	}
	return nil
}
