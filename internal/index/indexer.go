// Package index maintains the workspace symbol index that answers
// go-to-definition for the context engine. Files are parsed by per-language
// Risor scripts into a SQLite store, and references are bound to
// definitions by name: through the file's imports when one names the
// reference, otherwise to the local or same-language declaration.
package index

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jward/rootpath/internal/lang"
	"github.com/jward/rootpath/internal/runtime"
	"github.com/jward/rootpath/internal/store"
)

const scriptsHashKey = "scripts_hash"

// Indexer orchestrates file discovery, change detection, script-driven
// extraction and name resolution.
type Indexer struct {
	store     *store.Store
	runtime   *runtime.Runtime
	languages map[string]bool // nil means all languages
	logger    *slog.Logger

	// mu serializes writes; SQLite allows a single writer.
	mu sync.Mutex
	// dirty is set when extraction data changed since the last Resolve.
	dirty bool
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithLanguages restricts which languages the Indexer will process.
func WithLanguages(languages ...string) Option {
	return func(ix *Indexer) {
		if len(languages) == 0 {
			ix.languages = nil
			return
		}
		ix.languages = make(map[string]bool, len(languages))
		for _, l := range languages {
			ix.languages[l] = true
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(ix *Indexer) {
		ix.logger = l
	}
}

// New creates an Indexer writing to s and running scripts with rt. The
// first Resolve always rebuilds the resolution table.
func New(s *store.Store, rt *runtime.Runtime, opts ...Option) *Indexer {
	ix := &Indexer{
		store:   s,
		runtime: rt,
		logger:  slog.Default(),
		dirty:   true,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Store returns the underlying store.
func (ix *Indexer) Store() *store.Store {
	return ix.store
}

// scriptsHash hashes the indexing script of every known language.
func (ix *Indexer) scriptsHash() string {
	h := sha256.New()
	for _, l := range lang.All() {
		p := runtime.IndexScriptPath(l)
		src, err := ix.runtime.LoadScript(p)
		if err != nil {
			continue
		}
		h.Write([]byte(p))
		h.Write([]byte(src))
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// ScriptsChanged reports whether the indexing scripts differ from the ones
// that built the current database. True on a fresh database. When true,
// the caller should delete the database and reindex from scratch.
func (ix *Indexer) ScriptsChanged() bool {
	stored, err := ix.store.GetMetadata(scriptsHashKey)
	if err != nil || stored == "" {
		return true
	}
	return stored != ix.scriptsHash()
}

// IndexFiles indexes the given file paths. Unsupported and filtered-out
// languages are skipped, as are files whose content hash is unchanged.
// Errors on individual files are collected; processing continues.
func (ix *Indexer) IndexFiles(ctx context.Context, paths []string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	var errs []error
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := ix.indexFile(ctx, path); err != nil {
			ix.logger.Warn("index file failed", "path", path, "error", err)
			errs = append(errs, fmt.Errorf("index %s: %w", path, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("indexing had %d error(s): %w", len(errs), errs[0])
	}
	return nil
}

func (ix *Indexer) indexFile(ctx context.Context, path string) error {
	language, ok := lang.ForFile(path)
	if !ok {
		return nil
	}
	if ix.languages != nil && !ix.languages[language] {
		return nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	hash := fmt.Sprintf("%x", sha256.Sum256(content))

	existing, err := ix.store.FileByPath(path)
	if err != nil {
		return fmt.Errorf("lookup file: %w", err)
	}
	if existing != nil && existing.Hash == hash {
		return nil
	}
	ix.dirty = true

	// A changed file keeps its row and ID; only its extracted data goes.
	f := &store.File{
		Path:        path,
		Language:    language,
		Hash:        hash,
		LineCount:   bytes.Count(content, []byte{'\n'}) + 1,
		LastIndexed: time.Now(),
	}
	if existing != nil {
		if err := ix.store.DeleteFileData(existing.ID); err != nil {
			return fmt.Errorf("delete stale data: %w", err)
		}
		f.ID = existing.ID
		if err := ix.store.UpdateFile(f); err != nil {
			return fmt.Errorf("update file: %w", err)
		}
	} else if _, err := ix.store.InsertFile(f); err != nil {
		return fmt.Errorf("insert file: %w", err)
	}
	fileID := f.ID

	extras := map[string]any{
		"file_path": path,
		"file_id":   fileID,
	}
	if err := ix.runtime.RunScript(ctx, runtime.IndexScriptPath(language), extras); err != nil {
		// Drop the partial file so the next run retries it.
		if delErr := ix.store.DeleteFilesByID([]int64{fileID}); delErr != nil {
			ix.logger.Error("drop partially indexed file", "path", path, "error", delErr)
		}
		return fmt.Errorf("index script: %w", err)
	}

	ix.logger.Debug("indexed file", "path", path, "language", language)
	return nil
}

// RemoveFiles drops the given paths from the index. Unknown paths are
// ignored.
func (ix *Indexer) RemoveFiles(ctx context.Context, paths []string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	var ids []int64
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		f, err := ix.store.FileByPath(path)
		if err != nil {
			return fmt.Errorf("lookup %s: %w", path, err)
		}
		if f != nil {
			ids = append(ids, f.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	if err := ix.store.DeleteFilesByID(ids); err != nil {
		return err
	}
	ix.dirty = true
	return nil
}

// skipDirs are excluded from the filesystem walk.
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
}

// IndexDirectory indexes every supported file under root and drops indexed
// files under root that no longer exist. Inside a git repository, git
// ls-files is used so .gitignore is respected; otherwise the tree is walked,
// skipping hidden directories, node_modules, vendor and __pycache__.
func (ix *Indexer) IndexDirectory(ctx context.Context, root string) error {
	root, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve root: %w", err)
	}
	paths, err := gitListFiles(ctx, root)
	if err != nil {
		ix.logger.Debug("git ls-files unavailable, walking", "root", root, "error", err)
		paths, err = walkListFiles(root)
		if err != nil {
			return err
		}
	}

	if err := ix.prune(ctx, root, paths); err != nil {
		return err
	}
	return ix.IndexFiles(ctx, paths)
}

// prune removes indexed files under root that are not in present.
func (ix *Indexer) prune(ctx context.Context, root string, present []string) error {
	keep := make(map[string]bool, len(present))
	for _, p := range present {
		keep[p] = true
	}
	files, err := ix.store.Files()
	if err != nil {
		return err
	}
	prefix := root + string(filepath.Separator)
	var gone []string
	for _, f := range files {
		if strings.HasPrefix(f.Path, prefix) && !keep[f.Path] {
			gone = append(gone, f.Path)
		}
	}
	if len(gone) == 0 {
		return nil
	}
	ix.logger.Debug("pruning removed files", "count", len(gone))
	return ix.RemoveFiles(ctx, gone)
}

// gitListFiles lists tracked and untracked-but-not-ignored files under root
// with a supported extension.
func gitListFiles(ctx context.Context, root string) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git ls-files: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		absPath := filepath.Join(root, line)
		if _, ok := lang.ForFile(absPath); ok {
			paths = append(paths, absPath)
		}
	}
	return paths, nil
}

func walkListFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := lang.ForFile(path); ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}
	return paths, nil
}

// Resolve rebuilds reference bindings when extraction data changed since
// the last call, then records the scripts hash.
func (ix *Indexer) Resolve(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.resolveLocked(ctx)
}

func (ix *Indexer) resolveLocked(ctx context.Context) error {
	if !ix.dirty {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := ix.store.ResolveByName()
	if err != nil {
		return fmt.Errorf("resolve: %w", err)
	}
	ix.dirty = false
	ix.logger.Debug("resolved references", "bindings", n)

	if err := ix.store.SetMetadata(scriptsHashKey, ix.scriptsHash()); err != nil {
		return fmt.Errorf("store scripts hash: %w", err)
	}
	return nil
}

// IndexImports reindexes path if its content changed, recording its import
// bindings, and refreshes reference bindings so names imported by the file
// resolve into the modules it imports.
func (ix *Indexer) IndexImports(ctx context.Context, path string) error {
	if err := ix.IndexFiles(ctx, []string{path}); err != nil {
		return err
	}
	return ix.Resolve(ctx)
}
