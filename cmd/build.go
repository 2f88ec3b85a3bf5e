package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"

	"github.com/bundesfaq/ragserver/internal/app"
	"github.com/bundesfaq/ragserver/internal/config"
	"github.com/bundesfaq/ragserver/internal/extract"
	"github.com/bundesfaq/ragserver/internal/log"
	"github.com/bundesfaq/ragserver/internal/rag"
)

// buildLockFile guards the vectorstore directory against concurrent builds,
// which would corrupt the persisted collection.
const buildLockFile = ".build.lock"

// settleDelay coalesces file watch event bursts; editors fire several
// events per save.
const settleDelay = 500 * time.Millisecond

// buildOptions are the validated flags of the build command.
type buildOptions struct {
	source string
	kind   extract.Kind
	mode   rag.Mode
	out    string
	watch  bool
}

// runBuild runs the vectorstore build pipeline: extract, chunk, embed,
// persist. With --watch it keeps running and rebuilds whenever the source
// file changes.
func runBuild() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	args := []string{}
	if len(os.Args) > 2 {
		args = os.Args[2:]
	}
	opts, err := parseBuildFlags(cfg, args)
	if err != nil {
		return err
	}

	logger := log.New(log.Config{Level: log.ParseLevel(cfg.LogLevel), JSON: cfg.LogJSON})
	slog.SetDefault(logger)
	logger.Info("starting vectorstore build",
		"source", opts.source,
		"kind", opts.kind,
		"mode", opts.mode.String(),
		"out", opts.out,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := os.MkdirAll(opts.out, 0o755); err != nil {
		return fmt.Errorf("creating vectorstore directory: %w", err)
	}

	lock := flock.New(filepath.Join(opts.out, buildLockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring build lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another build is already running against %s", opts.out)
	}
	defer func() {
		if unlockErr := lock.Unlock(); unlockErr != nil {
			logger.Warn("releasing build lock", "error", unlockErr)
		}
	}()

	a, err := app.SetupBuild(ctx, cfg, logger, opts.out)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	idx, err := a.NewIndexer()
	if err != nil {
		return fmt.Errorf("creating indexer: %w", err)
	}

	req := rag.IndexRequest{Source: opts.source, Kind: opts.kind, Mode: opts.mode}
	res, err := idx.Index(ctx, req)
	if err != nil {
		return fmt.Errorf("building vectorstore: %w", err)
	}
	logger.Info("build finished",
		"source", res.Source,
		"chunks_added", res.ChunksAdded,
		"total_chunks", res.TotalChunks,
		"duration", res.Duration,
	)

	if !opts.watch {
		return nil
	}
	return watchAndRebuild(ctx, logger, idx, req)
}

// parseBuildFlags parses and validates the build command line. Exactly one
// source flag and exactly one of --reset/--append are required; there is no
// default mode on purpose.
func parseBuildFlags(cfg *config.Config, args []string) (*buildOptions, error) {
	buildFlags := flag.NewFlagSet("build", flag.ContinueOnError)
	buildFlags.SetOutput(os.Stderr)

	var (
		pdf       = buildFlags.String("pdf", "", "PDF file to index")
		text      = buildFlags.String("text", "", "plain text file to index")
		rawURL    = buildFlags.String("url", "", "web page to index")
		out       = buildFlags.String("out", cfg.VectorstoreDir, "vectorstore directory")
		reset     = buildFlags.Bool("reset", false, "replace the existing vectorstore")
		appendDoc = buildFlags.Bool("append", false, "add to the existing vectorstore")
		watch     = buildFlags.Bool("watch", false, "rebuild whenever the source file changes")
	)

	if err := buildFlags.Parse(args); err != nil {
		return nil, fmt.Errorf("parsing build flags: %w", err)
	}
	if buildFlags.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", buildFlags.Arg(0))
	}

	opts := &buildOptions{out: *out, watch: *watch}

	sources := 0
	if *pdf != "" {
		sources++
		opts.source, opts.kind = *pdf, extract.KindPDF
	}
	if *text != "" {
		sources++
		opts.source, opts.kind = *text, extract.KindText
	}
	if *rawURL != "" {
		sources++
		opts.source, opts.kind = *rawURL, extract.KindURL
	}
	if sources != 1 {
		return nil, errors.New("exactly one of --pdf, --text or --url is required")
	}

	switch {
	case *reset && *appendDoc:
		return nil, errors.New("--reset and --append are mutually exclusive")
	case *reset:
		opts.mode = rag.ModeReplace
	case *appendDoc:
		opts.mode = rag.ModeAppend
	default:
		return nil, errors.New("one of --reset or --append is required")
	}

	if opts.watch && opts.kind == extract.KindURL {
		return nil, errors.New("--watch requires a file source")
	}
	if opts.out == "" {
		return nil, errors.New("--out must not be empty")
	}

	return opts, nil
}

// watchAndRebuild blocks until ctx is cancelled, re-indexing the source
// whenever it changes on disk. Editors often save via rename, which drops a
// watch on the file itself, so the parent directory is watched and events
// are filtered by name.
func watchAndRebuild(ctx context.Context, logger log.Logger, idx *rag.Indexer, req rag.IndexRequest) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer func() {
		if closeErr := watcher.Close(); closeErr != nil {
			logger.Warn("closing watcher", "error", closeErr)
		}
	}()

	source, err := filepath.Abs(req.Source)
	if err != nil {
		return fmt.Errorf("resolving source path: %w", err)
	}
	if err := watcher.Add(filepath.Dir(source)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(source), err)
	}

	// Every rebuild replaces the store; appending on each save would pile
	// up duplicate chunks.
	req.Mode = rag.ModeReplace

	logger.Info("watching for changes", "source", source)

	rebuild := time.NewTimer(settleDelay)
	if !rebuild.Stop() {
		<-rebuild.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != source {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			rebuild.Reset(settleDelay)
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "error", watchErr)
		case <-rebuild.C:
			res, err := idx.Index(ctx, req)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				// Keep watching; a half-saved file often fails once
				// and succeeds on the next event.
				logger.Error("rebuild failed", "source", req.Source, "error", err)
				continue
			}
			logger.Info("rebuilt",
				"chunks_added", res.ChunksAdded,
				"total_chunks", res.TotalChunks,
				"duration", res.Duration,
			)
		}
	}
}
