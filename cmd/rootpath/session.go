package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jward/rootpath"
	"github.com/jward/rootpath/internal/config"
	"github.com/jward/rootpath/internal/index"
	"github.com/jward/rootpath/internal/runtime"
	"github.com/jward/rootpath/internal/store"
	"github.com/jward/rootpath/internal/telemetry"
	"github.com/jward/rootpath/internal/treesitter"
	"github.com/jward/rootpath/scripts"
)

// session holds everything a context lookup needs for one repository: the
// index database, the indexer that keeps it current and the engine that
// caches snippets for the lifetime of the process.
type session struct {
	repoRoot  string
	dbPath    string
	cfg       *config.Config
	logger    *slog.Logger
	telemetry *telemetry.Telemetry

	store    *store.Store
	indexer  *index.Indexer
	registry *treesitter.Registry
	engine   *rootpath.Engine
}

type sessionOptions struct {
	force      bool
	languages  []string
	scriptsDir string
}

// openSession opens (creating if needed) the index for the repository
// containing startDir. With force set, or when the indexing scripts
// changed since the database was built, the database is recreated.
func openSession(startDir string, opts sessionOptions) (*session, error) {
	repoRoot := findRepoRoot(startDir)
	cfg, logger, err := loadConfig(repoRoot, os.Stderr)
	if err != nil {
		return nil, err
	}
	if len(opts.languages) > 0 {
		cfg.Index.Languages = opts.languages
	}
	if opts.scriptsDir != "" {
		cfg.Index.ScriptsDir = opts.scriptsDir
	}

	dbPath := resolveDBPath(repoRoot, cfg)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err)
	}
	if opts.force {
		if err := removeDB(dbPath); err != nil {
			return nil, fmt.Errorf("removing database for --force: %w", err)
		}
		logger.Info("cleared database", "path", dbPath)
	}

	tel, err := telemetry.Init(context.Background(), telemetry.Config{
		Traces:  cfg.Telemetry.Traces,
		Metrics: cfg.Telemetry.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	s := &session{repoRoot: repoRoot, dbPath: dbPath, cfg: cfg, logger: logger, telemetry: tel}
	if err := s.openIndex(); err != nil {
		s.Close()
		return nil, err
	}

	// A database built by other scripts holds rows the current scripts
	// would not produce; start over rather than mixing them.
	if !opts.force && s.indexer.ScriptsChanged() {
		files, err := s.store.Files()
		if err != nil {
			s.Close()
			return nil, err
		}
		if len(files) > 0 {
			logger.Info("indexing scripts changed, rebuilding database", "path", dbPath)
			s.store.Close()
			s.store = nil
			if err := removeDB(dbPath); err != nil {
				s.Close()
				return nil, fmt.Errorf("removing stale database: %w", err)
			}
			if err := s.openIndex(); err != nil {
				s.Close()
				return nil, err
			}
		}
	}

	if err := s.openEngine(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *session) openIndex() error {
	st, err := store.NewStore(s.dbPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	if err := st.Migrate(); err != nil {
		st.Close()
		return fmt.Errorf("migrating database: %w", err)
	}

	var rtOpts []runtime.RuntimeOption
	if s.cfg.Index.ScriptsDir == "" {
		rtOpts = append(rtOpts, runtime.WithRuntimeFS(scripts.FS))
	}
	rtOpts = append(rtOpts, runtime.WithRuntimeLogger(s.logger))
	rt := runtime.NewRuntime(st, s.cfg.Index.ScriptsDir, rtOpts...)

	s.store = st
	s.indexer = index.New(st, rt,
		index.WithLanguages(s.cfg.Index.Languages...),
		index.WithLogger(s.logger),
	)
	return nil
}

func (s *session) openEngine() error {
	ignore, err := rootpath.CompileIgnorePatterns(s.cfg.IgnorePatterns())
	if err != nil {
		return err
	}
	s.registry = treesitter.NewRegistry(treesitter.QueriesFS)
	engine, err := rootpath.New(s.registry, index.NewResolver(s.store), index.FileReader{},
		rootpath.WithImportIndexer(s.indexer),
		rootpath.WithCacheSize(s.cfg.Cache.Size),
		rootpath.WithIgnorePatterns(ignore),
		rootpath.WithLogger(s.logger),
	)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	s.engine = engine
	return nil
}

// removeDB deletes the database and its WAL side files.
func removeDB(dbPath string) error {
	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

// ensureIndexed builds the index on first use so context and serve work
// without a prior index run.
func (s *session) ensureIndexed(ctx context.Context) error {
	files, err := s.store.Files()
	if err != nil {
		return err
	}
	if len(files) > 0 {
		return nil
	}
	s.logger.Info("index is empty, indexing repository", "root", s.repoRoot)
	return s.index(ctx, s.repoRoot)
}

// index indexes dir and rebinds references.
func (s *session) index(ctx context.Context, dir string) error {
	if err := s.indexer.IndexDirectory(ctx, dir); err != nil {
		// Per-file failures are logged by the indexer; keep what indexed.
		if ctx.Err() != nil {
			return err
		}
		s.logger.Warn("indexing finished with errors", "error", err)
	}
	return s.indexer.Resolve(ctx)
}

// contextAt parses file and returns the snippets for the cursor at the
// 0-based line and column.
func (s *session) contextAt(ctx context.Context, file string, line, col int) ([]rootpath.Snippet, error) {
	doc, err := treesitter.ParseFile(ctx, file)
	if err != nil {
		return nil, err
	}
	defer doc.Close()
	return s.engine.GetContextForPath(ctx, file, doc.PathAt(line, col))
}

// refresh reindexes changed files, drops removed ones and evicts every
// cached snippet that depended on any of them.
func (s *session) refresh(ctx context.Context, changed, removed []string) error {
	var errs []error
	if len(changed) > 0 {
		if err := s.indexer.IndexFiles(ctx, changed); err != nil {
			errs = append(errs, err)
		}
	}
	if len(removed) > 0 {
		if err := s.indexer.RemoveFiles(ctx, removed); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.indexer.Resolve(ctx); err != nil {
		errs = append(errs, err)
	}

	evicted := 0
	for _, p := range append(append([]string(nil), changed...), removed...) {
		evicted += s.engine.InvalidateFile(p)
	}
	s.logger.Debug("refreshed index",
		"changed", len(changed), "removed", len(removed), "evicted", evicted)
	return errors.Join(errs...)
}

// Close releases the engine, the compiled queries, the database and the
// telemetry providers, in that order, so background import indexing
// finishes before the store closes.
func (s *session) Close() {
	if s.engine != nil {
		if err := s.engine.Close(); err != nil {
			s.logger.Warn("closing engine", "error", err)
		}
	}
	if s.registry != nil {
		s.registry.Close()
	}
	if s.store != nil {
		s.store.Close()
	}
	if s.telemetry != nil {
		if err := s.telemetry.Shutdown(context.Background()); err != nil {
			s.logger.Warn("flushing telemetry", "error", err)
		}
	}
}
