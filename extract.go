package rootpath

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

// extractLevel computes the snippets contributed by one scope node.
func (e *Engine) extractLevel(ctx context.Context, filepath, language string, node ScopeNode) ([]resolvedSnippet, error) {
	ctx, span := startLevelSpan(ctx, node.Type(), node.StartByte())
	defer span.End()

	out, err := e.snippetsForNode(ctx, filepath, language, node)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return out, err
}

func (e *Engine) snippetsForNode(ctx context.Context, filepath, language string, node ScopeNode) ([]resolvedSnippet, error) {
	kind := KindOf(node.Type())
	if kind == KindProgram {
		e.indexImports(ctx, filepath)
		return nil, nil
	}
	if language == "" {
		return nil, nil
	}

	q, found, err := e.registry.Lookup(language, kind)
	if err != nil {
		return nil, fmt.Errorf("lookup query %s/%s: %w", language, kind, err)
	}
	if !found {
		return nil, nil
	}

	matches, err := q.Matches(ctx, node)
	if err != nil {
		return nil, fmt.Errorf("run query %s/%s: %w", language, kind, err)
	}

	var captures []Capture
	for _, m := range matches {
		captures = append(captures, m.Captures...)
	}
	if len(captures) == 0 {
		return nil, nil
	}

	// Captures resolve concurrently; results land by index so the output
	// keeps (match, capture) order.
	results := make([][]resolvedSnippet, len(captures))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range captures {
		g.Go(func() error {
			r, err := e.resolveCapture(gctx, filepath, language, c)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []resolvedSnippet
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

// resolveCapture finds the definitions of a captured identifier, drops the
// ignored ones and reads the rest.
func (e *Engine) resolveCapture(ctx context.Context, filepath, language string, c Capture) ([]resolvedSnippet, error) {
	defs, err := e.resolver.GotoDefinition(ctx, filepath, c.End)
	if err != nil {
		return nil, fmt.Errorf("goto definition %s at %d:%d: %w", filepath, c.End.Line, c.End.Character, err)
	}
	defs = e.filterIgnored(language, defs)
	if len(defs) == 0 {
		return nil, nil
	}

	out := make([]resolvedSnippet, len(defs))
	g, gctx := errgroup.WithContext(ctx)
	for i, d := range defs {
		g.Go(func() error {
			text, err := e.reader.ReadRange(gctx, d.Filepath, d.Range)
			if err != nil {
				return fmt.Errorf("read %s: %w", d.Filepath, err)
			}
			out[i] = resolvedSnippet{Definition: d, Contents: text}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// filterIgnored drops definitions whose path matches an ignore pattern of
// the current file's language.
func (e *Engine) filterIgnored(language string, defs []Definition) []Definition {
	patterns := e.ignore[language]
	if len(patterns) == 0 {
		return defs
	}
	kept := defs[:0:0]
	for _, d := range defs {
		ignored := false
		for _, re := range patterns {
			if re.MatchString(d.Filepath) {
				ignored = true
				break
			}
		}
		if !ignored {
			kept = append(kept, d)
		}
	}
	return kept
}

// indexImports refreshes the file's imports in the background. The work
// outlives the request, so it is detached from ctx cancellation.
func (e *Engine) indexImports(ctx context.Context, filepath string) {
	if e.indexer == nil {
		return
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.background.Add(1)
	e.mu.Unlock()

	bg := context.WithoutCancel(ctx)
	go func() {
		defer e.background.Done()
		if err := e.indexer.IndexImports(bg, filepath); err != nil {
			e.logger.Warn("import indexing failed", "file", filepath, "error", err)
		}
	}()
}
