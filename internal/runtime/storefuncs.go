package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/risor-io/risor/object"

	"github.com/jward/rootpath/internal/store"
)

// insert_symbol({file_id, name, kind, start_line, start_col, end_line, end_col}) → id
func makeInsertSymbolFn(s store.DataStore) *object.Builtin {
	return object.NewBuiltin("insert_symbol", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("insert_symbol", 1, len(args))
		}
		m, err := extractMap(args[0])
		if err != nil {
			return object.Errorf("insert_symbol: %v", err)
		}
		name := getString(m, "name")
		if name == "" {
			return object.Errorf("insert_symbol: name is required")
		}

		id, err := s.InsertSymbol(&store.Symbol{
			FileID:    getInt64(m, "file_id"),
			Name:      name,
			Kind:      getString(m, "kind"),
			StartLine: getInt(m, "start_line"),
			StartCol:  getInt(m, "start_col"),
			EndLine:   getInt(m, "end_line"),
			EndCol:    getInt(m, "end_col"),
		})
		if err != nil {
			return object.Errorf("insert_symbol: %v", err)
		}
		return object.NewInt(id)
	})
}

// insert_reference({file_id, name, start_line, start_col, end_line, end_col, context}) → id
func makeInsertReferenceFn(s store.DataStore) *object.Builtin {
	return object.NewBuiltin("insert_reference", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("insert_reference", 1, len(args))
		}
		m, err := extractMap(args[0])
		if err != nil {
			return object.Errorf("insert_reference: %v", err)
		}

		id, err := s.InsertReference(&store.Reference{
			FileID:    getInt64(m, "file_id"),
			Name:      getString(m, "name"),
			StartLine: getInt(m, "start_line"),
			StartCol:  getInt(m, "start_col"),
			EndLine:   getInt(m, "end_line"),
			EndCol:    getInt(m, "end_col"),
			Context:   getString(m, "context"),
		})
		if err != nil {
			return object.Errorf("insert_reference: %v", err)
		}
		return object.NewInt(id)
	})
}

// insert_import({file_id, source, imported_name?, local_alias?, kind?, scope?}) → id
//
// Surrounding quotes on source are stripped, so scripts can pass string
// literal text straight through.
func makeInsertImportFn(s store.DataStore) *object.Builtin {
	return object.NewBuiltin("insert_import", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("insert_import", 1, len(args))
		}
		m, err := extractMap(args[0])
		if err != nil {
			return object.Errorf("insert_import: %v", err)
		}

		imp := &store.Import{
			FileID: getInt64(m, "file_id"),
			Source: strings.Trim(getString(m, "source"), "\"'`"),
			Kind:   getString(m, "kind"),
			Scope:  getString(m, "scope"),
		}
		if v := getString(m, "imported_name"); v != "" {
			imp.ImportedName = &v
		}
		if v := getString(m, "local_alias"); v != "" {
			imp.LocalAlias = &v
		}

		id, err := s.InsertImport(imp)
		if err != nil {
			return object.Errorf("insert_import: %v", err)
		}
		return object.NewInt(id)
	})
}

// symbols_by_file(file_id) → list of symbol maps
func makeSymbolsByFileFn(s store.DataStore) *object.Builtin {
	return object.NewBuiltin("symbols_by_file", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("symbols_by_file", 1, len(args))
		}
		fileID, err := toInt64(args[0])
		if err != nil {
			return object.Errorf("symbols_by_file: %v", err)
		}
		syms, err := s.SymbolsByFile(fileID)
		if err != nil {
			return object.Errorf("symbols_by_file: %v", err)
		}

		results := make([]object.Object, 0, len(syms))
		for _, sym := range syms {
			results = append(results, object.NewMap(map[string]object.Object{
				"id":         object.NewInt(sym.ID),
				"file_id":    object.NewInt(sym.FileID),
				"name":       object.NewString(sym.Name),
				"kind":       object.NewString(sym.Kind),
				"start_line": object.NewInt(int64(sym.StartLine)),
				"start_col":  object.NewInt(int64(sym.StartCol)),
				"end_line":   object.NewInt(int64(sym.EndLine)),
				"end_col":    object.NewInt(int64(sym.EndCol)),
			}))
		}
		return object.NewList(results)
	})
}

// imports_by_file(file_id) → list of import maps
func makeImportsByFileFn(s store.DataStore) *object.Builtin {
	return object.NewBuiltin("imports_by_file", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("imports_by_file", 1, len(args))
		}
		fileID, err := toInt64(args[0])
		if err != nil {
			return object.Errorf("imports_by_file: %v", err)
		}
		imports, err := s.ImportsByFile(fileID)
		if err != nil {
			return object.Errorf("imports_by_file: %v", err)
		}

		results := make([]object.Object, 0, len(imports))
		for _, imp := range imports {
			m := map[string]object.Object{
				"id":     object.NewInt(imp.ID),
				"source": object.NewString(imp.Source),
				"kind":   object.NewString(imp.Kind),
				"scope":  object.NewString(imp.Scope),
			}
			if imp.ImportedName != nil {
				m["imported_name"] = object.NewString(*imp.ImportedName)
			}
			if imp.LocalAlias != nil {
				m["local_alias"] = object.NewString(*imp.LocalAlias)
			}
			results = append(results, object.NewMap(m))
		}
		return object.NewList(results)
	})
}

// --- Map extraction helpers ---

func extractMap(obj object.Object) (map[string]object.Object, error) {
	m, ok := obj.(*object.Map)
	if !ok {
		return nil, fmt.Errorf("expected map, got %s", obj.Type())
	}
	return m.Value(), nil
}

func getString(m map[string]object.Object, key string) string {
	if s, ok := m[key].(*object.String); ok {
		return s.Value()
	}
	return ""
}

func getInt(m map[string]object.Object, key string) int {
	return int(getInt64(m, key))
}

func getInt64(m map[string]object.Object, key string) int64 {
	v, ok := m[key]
	if !ok {
		return 0
	}
	n, err := toInt64(v)
	if err != nil {
		return 0
	}
	return n
}

func toInt64(obj object.Object) (int64, error) {
	switch v := obj.(type) {
	case *object.Int:
		return v.Value(), nil
	case *object.Float:
		return int64(v.Value()), nil
	}
	return 0, fmt.Errorf("expected int, got %s", obj.Type())
}
