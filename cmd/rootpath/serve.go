package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jward/rootpath/internal/watch"
)

var flagWatch bool

var serveCmd = &cobra.Command{
	Use:   "serve [path]",
	Short: "Answer context requests over stdin/stdout",
	Long: `Keeps the index and snippet cache open for the session. Each stdin line is a
JSON request {"id", "file", "line", "col"}; each answer is one JSON line on
stdout. With --watch, file changes reindex the affected files and evict the
cached snippets that depended on them.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&flagWatch, "watch", false, "reindex on file changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return err
	}
	s, err := openSession(targetDir, sessionOptions{})
	if err != nil {
		return err
	}
	defer s.Close()

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := s.ensureIndexed(ctx); err != nil {
		return err
	}

	var w *watch.Watcher
	if flagWatch {
		w, err = watch.New(watch.Config{
			Dir:      s.repoRoot,
			Debounce: s.cfg.Watch.Debounce,
			Logger:   s.logger,
			OnChange: func(ctx context.Context, changed, removed []string) {
				if err := s.refresh(ctx, changed, removed); err != nil {
					s.logger.Warn("refresh after change", "error", err)
				}
			},
		})
		if err != nil {
			return fmt.Errorf("starting watcher: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	if w != nil {
		g.Go(func() error {
			return w.Watch(gctx)
		})
	}
	if h := s.telemetry.MetricsHandler(); h != nil && s.cfg.Telemetry.MetricsAddr != "" {
		g.Go(func() error {
			return serveMetrics(gctx, s, h)
		})
	}
	g.Go(func() error {
		// End of input ends the session.
		defer cancel()
		return serveRequests(gctx, s, cmd.InOrStdin(), cmd.OutOrStdout())
	})
	return g.Wait()
}

// serveMetrics exposes the Prometheus endpoint until ctx is done.
func serveMetrics(ctx context.Context, s *session, h http.Handler) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{
		Addr:              s.cfg.Telemetry.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("serving metrics", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	}
}

// serveRequests answers one request per input line until in is exhausted
// or ctx is done. Malformed requests get an error response; they do not end
// the session.
func serveRequests(ctx context.Context, s *session, in io.Reader, out io.Writer) error {
	lines := make(chan []byte)
	var scanErr error
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		scanErr = scanner.Err()
	}()

	enc := json.NewEncoder(out)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				wg.Wait()
				return scanErr
			}
			if len(line) == 0 {
				continue
			}
			if err := enc.Encode(handleRequest(ctx, s, line)); err != nil {
				return fmt.Errorf("writing response: %w", err)
			}
		}
	}
}

func handleRequest(ctx context.Context, s *session, line []byte) serveResponse {
	var req serveRequest
	if err := json.Unmarshal(line, &req); err != nil {
		return serveResponse{Error: fmt.Sprintf("invalid request: %v", err)}
	}
	resp := serveResponse{ID: req.ID}
	if req.File == "" {
		resp.Error = "invalid request: file is required"
		return resp
	}
	if req.Line < 0 || req.Col < 0 {
		resp.Error = "invalid request: line and col must be non-negative"
		return resp
	}

	file := req.File
	if !filepath.IsAbs(file) {
		file = filepath.Join(s.repoRoot, file)
	}
	snippets, err := s.contextAt(ctx, file, req.Line, req.Col)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			resp.Error = "cancelled"
			return resp
		}
		resp.Error = err.Error()
		return resp
	}
	resp.Snippets = snippetsToCLI(snippets)
	return resp
}
