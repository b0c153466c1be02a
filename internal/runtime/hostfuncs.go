package runtime

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"unsafe"

	"github.com/risor-io/risor/object"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/rootpath/internal/treesitter"
)

// parsedSource is what node_text and query need to recover from a node.
type parsedSource struct {
	src  []byte
	lang *sitter.Language
}

// sourceStore maps the root node of every tree parsed by a script to its
// source and grammar. smacker/go-tree-sitter does not expose Node.Tree(),
// so lookups walk Parent() up to the root and key on its pointer.
type sourceStore struct {
	mu    sync.RWMutex
	trees map[uintptr]parsedSource
}

func newSourceStore() *sourceStore {
	return &sourceStore{trees: make(map[uintptr]parsedSource)}
}

func (s *sourceStore) add(tree *sitter.Tree, src []byte, lang *sitter.Language) {
	key := uintptr(unsafe.Pointer(tree.RootNode()))
	s.mu.Lock()
	s.trees[key] = parsedSource{src: src, lang: lang}
	s.mu.Unlock()
}

func (s *sourceStore) lookup(node *sitter.Node) (parsedSource, bool) {
	for node.Parent() != nil {
		node = node.Parent()
	}
	key := uintptr(unsafe.Pointer(node))
	s.mu.RLock()
	ps, ok := s.trees[key]
	s.mu.RUnlock()
	return ps, ok
}

func stringArg(fn string, args []object.Object, i int) (string, *object.Error) {
	s, ok := args[i].(*object.String)
	if !ok {
		return "", object.Errorf("%s: argument %d must be a string, got %s", fn, i+1, args[i].Type())
	}
	return s.Value(), nil
}

func nodeArg(fn string, args []object.Object, i int) (*sitter.Node, *object.Error) {
	proxy, ok := args[i].(*object.Proxy)
	if !ok {
		return nil, object.Errorf("%s: argument %d must be a node, got %s", fn, i+1, args[i].Type())
	}
	node, ok := proxy.Interface().(*sitter.Node)
	if !ok {
		return nil, object.Errorf("%s: expected *sitter.Node, got %T", fn, proxy.Interface())
	}
	return node, nil
}

// parse(path, language) → Tree
func makeParseFn(ss *sourceStore) *object.Builtin {
	return object.NewBuiltin("parse", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("parse", 2, len(args))
		}
		p, errObj := stringArg("parse", args, 0)
		if errObj != nil {
			return errObj
		}
		language, errObj := stringArg("parse", args, 1)
		if errObj != nil {
			return errObj
		}
		src, err := os.ReadFile(p)
		if err != nil {
			return object.Errorf("parse: reading %s: %v", p, err)
		}
		return parseSource(ctx, ss, src, language)
	})
}

// parse_src(source, language) → Tree
func makeParseSrcFn(ss *sourceStore) *object.Builtin {
	return object.NewBuiltin("parse_src", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("parse_src", 2, len(args))
		}
		src, errObj := stringArg("parse_src", args, 0)
		if errObj != nil {
			return errObj
		}
		language, errObj := stringArg("parse_src", args, 1)
		if errObj != nil {
			return errObj
		}
		return parseSource(ctx, ss, []byte(src), language)
	})
}

func parseSource(ctx context.Context, ss *sourceStore, src []byte, language string) object.Object {
	grammar, ok := treesitter.GrammarFor(language)
	if !ok {
		return object.Errorf("parse: unsupported language %q", language)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return object.Errorf("parse: tree-sitter parse failed: %v", err)
	}
	ss.add(tree, src, grammar)

	proxy, err := object.NewProxy(tree)
	if err != nil {
		return object.Errorf("parse: proxy error: %v", err)
	}
	return proxy
}

// node_text(node) → string
//
// Risor's proxy cannot convert a string to the []byte Node.Content wants.
func makeNodeTextFn(ss *sourceStore) *object.Builtin {
	return object.NewBuiltin("node_text", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("node_text", 1, len(args))
		}
		node, errObj := nodeArg("node_text", args, 0)
		if errObj != nil {
			return errObj
		}
		ps, ok := ss.lookup(node)
		if !ok {
			return object.Errorf("node_text: no source found for node's tree")
		}
		return object.NewString(node.Content(ps.src))
	})
}

// query(pattern, node) → list of maps from capture name to node.
func makeQueryFn(ss *sourceStore) *object.Builtin {
	return object.NewBuiltin("query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("query", 2, len(args))
		}
		pattern, errObj := stringArg("query", args, 0)
		if errObj != nil {
			return errObj
		}
		node, errObj := nodeArg("query", args, 1)
		if errObj != nil {
			return errObj
		}
		ps, ok := ss.lookup(node)
		if !ok {
			return object.Errorf("query: node does not belong to a parsed tree")
		}

		q, err := sitter.NewQuery([]byte(pattern), ps.lang)
		if err != nil {
			return object.Errorf("query: invalid pattern: %v", err)
		}
		defer q.Close()

		cursor := sitter.NewQueryCursor()
		defer cursor.Close()
		cursor.Exec(q, node)

		results := []object.Object{}
		for {
			match, ok := cursor.NextMatch()
			if !ok {
				break
			}
			match = cursor.FilterPredicates(match, ps.src)
			if len(match.Captures) == 0 {
				continue
			}

			captures := make(map[string]object.Object, len(match.Captures))
			for _, c := range match.Captures {
				name := q.CaptureNameForId(c.Index)
				p, err := object.NewProxy(c.Node)
				if err != nil {
					return object.Errorf("query: proxy error for capture %q: %v", name, err)
				}
				captures[name] = p
			}
			results = append(results, object.NewMap(captures))
		}
		return object.NewList(results)
	})
}

// node_child(node, field) → node or nil
//
// Returns Risor nil rather than a proxied Go nil pointer.
func makeNodeChildFn() *object.Builtin {
	return object.NewBuiltin("node_child", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("node_child", 2, len(args))
		}
		node, errObj := nodeArg("node_child", args, 0)
		if errObj != nil {
			return errObj
		}
		field, errObj := stringArg("node_child", args, 1)
		if errObj != nil {
			return errObj
		}

		child := node.ChildByFieldName(field)
		if child == nil {
			return object.Nil
		}
		p, err := object.NewProxy(child)
		if err != nil {
			return object.Errorf("node_child: proxy error: %v", err)
		}
		return p
	})
}

// logObject exposes log.Info/Warn/Error to scripts.
type logObject struct {
	logger *slog.Logger
}

func (l *logObject) Info(msg string)  { l.logger.Info(msg) }
func (l *logObject) Warn(msg string)  { l.logger.Warn(msg) }
func (l *logObject) Error(msg string) { l.logger.Error(msg) }
