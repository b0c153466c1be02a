package rootpath

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/jward/rootpath/internal/cache"
	"github.com/jward/rootpath/internal/lang"
)

// DefaultCacheSize is the number of levels an Engine remembers.
const DefaultCacheSize = 100

// resolvedSnippet is what the cache holds for one level: each surviving
// definition together with the text it spans.
type resolvedSnippet struct {
	Definition Definition
	Contents   string
}

// Engine assembles root-path context: for every scope enclosing a cursor,
// the source of the definitions that scope refers to. One Engine owns one
// cache and is safe for concurrent use.
type Engine struct {
	registry QueryRegistry
	resolver DefinitionResolver
	reader   RangeReader
	indexer  ImportIndexer

	cacheSize   int
	cache       *cache.Cache[[]resolvedSnippet]
	ignore      map[string][]*regexp.Regexp
	languageFor func(path string) (string, bool)
	logger      *slog.Logger

	// background tracks fire-and-forget import indexing. closed, guarded by
	// mu, stops new work from joining it once Close is waiting.
	mu         sync.Mutex
	closed     bool
	background sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithImportIndexer sets the collaborator notified when a module root is
// visited. Without one, module roots contribute nothing and trigger nothing.
func WithImportIndexer(ix ImportIndexer) Option {
	return func(e *Engine) {
		e.indexer = ix
	}
}

// WithCacheSize sets the cache capacity in levels.
func WithCacheSize(n int) Option {
	return func(e *Engine) {
		e.cacheSize = n
	}
}

// WithIgnorePatterns replaces the per-language patterns used to drop
// definitions whose path matches. Keys are language names.
func WithIgnorePatterns(patterns map[string][]*regexp.Regexp) Option {
	return func(e *Engine) {
		e.ignore = patterns
	}
}

// WithLogger sets the logger used for isolated failures.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithLanguageFunc overrides how a file path maps to a language name.
func WithLanguageFunc(fn func(path string) (string, bool)) Option {
	return func(e *Engine) {
		e.languageFor = fn
	}
}

// New creates an Engine over the given collaborators.
func New(registry QueryRegistry, resolver DefinitionResolver, reader RangeReader, opts ...Option) (*Engine, error) {
	if registry == nil || resolver == nil || reader == nil {
		return nil, errors.New("rootpath: registry, resolver and reader are required")
	}
	e := &Engine{
		registry:    registry,
		resolver:    resolver,
		reader:      reader,
		cacheSize:   DefaultCacheSize,
		languageFor: lang.ForFile,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.ignore == nil {
		ignore, err := CompileIgnorePatterns(lang.DefaultIgnorePatterns())
		if err != nil {
			return nil, fmt.Errorf("rootpath: default ignore patterns: %w", err)
		}
		e.ignore = ignore
	}

	c, err := cache.New[[]resolvedSnippet](e.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("rootpath: create cache: %w", err)
	}
	e.cache = c
	return e, nil
}

// CompileIgnorePatterns compiles per-language ignore expressions.
func CompileIgnorePatterns(patterns map[string][]string) (map[string][]*regexp.Regexp, error) {
	out := make(map[string][]*regexp.Regexp, len(patterns))
	for language, exprs := range patterns {
		for _, expr := range exprs {
			re, err := regexp.Compile(expr)
			if err != nil {
				return nil, fmt.Errorf("ignore pattern %q for %s: %w", expr, language, err)
			}
			out[language] = append(out[language], re)
		}
	}
	return out, nil
}

// GetContextForPath returns the context snippets for a cursor in filepath
// whose ancestors are path (root first). Snippets of outer scopes come
// before those of inner scopes.
//
// A level whose extraction fails is logged and skipped; it is not cached,
// so a later call retries it. The call itself fails only when ctx is done.
func (e *Engine) GetContextForPath(ctx context.Context, filepath string, path AstPath) ([]Snippet, error) {
	start := time.Now()
	language, _ := e.languageFor(filepath)
	scopes := ScopeNodes(path)

	ctx, span := startRequestSpan(ctx, filepath, len(scopes))
	defer span.End()

	var snippets []Snippet
	parentKey := filepath
	ancestors := []string{filepath}

	for _, node := range scopes {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "cancelled")
			recordRequest(ctx, language, time.Since(start), 0, false)
			return nil, err
		}

		key := cache.Key(parentKey, node.Type(), node.StartByte())
		resolved, hit := e.cache.Get(key)
		recordCacheLookup(ctx, node.Type(), hit)
		if !hit {
			var err error
			resolved, err = e.extractLevel(ctx, filepath, language, node)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					span.RecordError(ctxErr)
					span.SetStatus(codes.Error, "cancelled")
					recordRequest(ctx, language, time.Since(start), 0, false)
					return nil, ctxErr
				}
				e.logger.Warn("root path level failed",
					"file", filepath,
					"node_type", node.Type(),
					"node_start", node.StartByte(),
					"error", err,
				)
				recordLevelFailure(ctx, node.Type())
				resolved = nil
			} else if e.cache.Add(key, ancestors, resolved) {
				recordEviction(ctx)
			}
		}

		for _, r := range resolved {
			snippets = append(snippets, Snippet{
				Filepath: r.Definition.Filepath,
				Content:  r.Contents,
				Kind:     SnippetCode,
			})
		}
		ancestors = append(ancestors, key)
		parentKey = key
	}

	recordRequest(ctx, language, time.Since(start), len(snippets), true)
	return snippets, nil
}

// Invalidate drops the entry stored under key and every entry chained
// beneath it. Returns the number of entries removed.
func (e *Engine) Invalidate(key string) int {
	n := e.cache.Invalidate(key)
	recordInvalidation(context.Background(), "key", n)
	return n
}

// InvalidateFile drops every entry computed for a cursor in path and every
// entry holding a definition read from path. Call it after path changes.
func (e *Engine) InvalidateFile(path string) int {
	n := e.cache.RemoveFunc(func(key string, ancestors []string, value []resolvedSnippet) bool {
		if len(ancestors) > 0 && ancestors[0] == path {
			return true
		}
		for _, r := range value {
			if r.Definition.Filepath == path {
				return true
			}
		}
		return false
	})
	recordInvalidation(context.Background(), "file", n)
	return n
}

// Purge empties the cache.
func (e *Engine) Purge() {
	n := e.cache.Len()
	e.cache.Purge()
	recordInvalidation(context.Background(), "purge", n)
}

// Close waits for background import indexing started by earlier calls.
// Requests made after Close still return snippets but index no imports.
func (e *Engine) Close() error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.background.Wait()
	return nil
}
