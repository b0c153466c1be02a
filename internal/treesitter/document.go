package treesitter

import (
	"context"
	"fmt"
	"os"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/rootpath"
	"github.com/jward/rootpath/internal/lang"
)

// Node is a syntax node together with the source it was parsed from, so
// that query predicates can compare node text.
type Node struct {
	*sitter.Node
	Source []byte
}

// Document is one parsed file.
type Document struct {
	Path     string
	Language string
	Source   []byte
	Tree     *sitter.Tree
}

// ParseFile reads and parses the file at path, picking the grammar from the
// file extension.
func ParseFile(ctx context.Context, path string) (*Document, error) {
	language, ok := lang.ForFile(path)
	if !ok {
		return nil, fmt.Errorf("parse %s: unsupported file type", path)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	doc, err := Parse(ctx, src, language)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	doc.Path = path
	return doc, nil
}

// Parse parses src with the grammar of language.
func Parse(ctx context.Context, src []byte, language string) (*Document, error) {
	grammar, ok := GrammarFor(language)
	if !ok {
		return nil, fmt.Errorf("unsupported language %q", language)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	return &Document{Language: language, Source: src, Tree: tree}, nil
}

// Close releases the syntax tree.
func (d *Document) Close() {
	if d.Tree != nil {
		d.Tree.Close()
	}
}

// PathAt returns the named ancestors of the smallest named node covering
// the 0-based line and byte column, root first. The cursor node itself is
// the last element.
func (d *Document) PathAt(line, col int) rootpath.AstPath {
	root := d.Tree.RootNode()
	point := sitter.Point{Row: uint32(max(line, 0)), Column: uint32(max(col, 0))}
	node := root.NamedDescendantForPointRange(point, point)
	if node == nil {
		node = root
	}

	var chain []*sitter.Node
	for n := node; n != nil; n = n.Parent() {
		chain = append(chain, n)
	}

	path := make(rootpath.AstPath, 0, len(chain))
	for i := len(chain) - 1; i >= 0; i-- {
		path = append(path, &Node{Node: chain[i], Source: d.Source})
	}
	return path
}
