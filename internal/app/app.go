package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kmataru/lantern/internal/config"
	"github.com/kmataru/lantern/internal/event"
	"github.com/kmataru/lantern/internal/export"
	"github.com/kmataru/lantern/internal/ingest"
	"github.com/kmataru/lantern/internal/logging"
	"github.com/kmataru/lantern/internal/prefs"
	"github.com/kmataru/lantern/internal/source"
	"github.com/kmataru/lantern/internal/store"
	"github.com/kmataru/lantern/internal/ui"
	"github.com/kmataru/lantern/internal/view"
)

// MainView is the name of the view the UI renders.
const MainView = "main"

// Options configure the Lantern application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/lantern/prefs.toml
	Input      string // log file to tail; overrides config, empty falls back to stdin
	Capacity   int    // store capacity override; zero uses config
	Level      string // severity threshold override; empty uses prefs, then config
	ExportDir  string // directory for snapshot exports; empty uses the working dir
	Headless   bool   // run the pipeline without the TUI
}

// Run boots the Lantern pipeline and TUI until the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.Input != "" {
		cfg.Input = opts.Input
	}
	if opts.Capacity > 0 {
		cfg.StoreCapacity = opts.Capacity
	}

	userPrefs, _ := prefs.Load(opts.PrefsPath)

	levelText := opts.Level
	if levelText == "" {
		levelText = userPrefs.Level
	}
	if levelText == "" {
		levelText = cfg.DefaultLevel
	}
	minSeverity, err := event.ParseSeverity(levelText)
	if err != nil {
		return fmt.Errorf("parse level: %w", err)
	}

	st, err := store.New(cfg.StoreCapacity)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}

	policy := ingest.DropOldest
	if cfg.OverflowPolicy == config.PolicyDropNewest {
		policy = ingest.DropNewest
	}
	queue := ingest.NewQueue(cfg.QueueCapacity, policy)
	pipeline := ingest.NewPipeline(queue, st, ingest.Options{
		BatchSize: cfg.BatchSize,
		MaxWait:   cfg.MaxBatchWait,
	})

	filter := view.Filter{
		MinSeverity:   minSeverity,
		Regexp:        cfg.MatchRegex,
		CaseSensitive: cfg.CaseSensitive,
	}
	main, err := view.New(MainView, st, filter)
	if err != nil {
		return fmt.Errorf("init view: %w", err)
	}
	pipeline.AddView(main)

	if opts.Headless {
		logging.Init(logging.ParseLevel(levelText))
	} else {
		// The TUI owns the terminal, so lantern's own diagnostics flow
		// into the store alongside tailed records.
		slog.SetDefault(slog.New(logging.NewPipelineHandler(pipeline.Enqueue, "lantern", slog.LevelInfo)))
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go pipeline.Run(runCtx)
	startSource(runCtx, cfg, pipeline)

	if opts.Headless {
		go reportStats(runCtx, pipeline)
		<-runCtx.Done()
		<-pipeline.Done()
		return exportOnExit(st, opts.ExportDir)
	}

	uiErr := ui.Run(ui.Options{
		Context:   runCtx,
		Pipeline:  pipeline,
		ViewName:  MainView,
		Filter:    filter,
		ThemeName: userPrefs.Theme,
		PrefsPath: opts.PrefsPath,
		ExportDir: opts.ExportDir,
	})

	cancel()
	<-pipeline.Done()
	return uiErr
}

// statsInterval paces the headless health reports.
const statsInterval = 30 * time.Second

// reportStats periodically logs pipeline health while running headless,
// where no status bar is visible.
func reportStats(ctx context.Context, pipeline *ingest.Pipeline) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pipeline.LogStats()
		}
	}
}

// exportOnExit writes a final snapshot when the headless pipeline winds
// down, so a run without the TUI still leaves its records behind. An
// empty store exports nothing.
func exportOnExit(st *store.Store, dir string) error {
	if st.Len() == 0 {
		return nil
	}
	path := filepath.Join(dir, "lantern-"+time.Now().Format("20060102-150405")+".json")
	if err := export.Snapshot(st, path); err != nil {
		return fmt.Errorf("export on exit: %w", err)
	}
	slog.Info("exported snapshot", "path", path)
	return nil
}

// startSource launches the configured record source. A file input is
// tailed with history seeding; otherwise stdin is streamed.
func startSource(ctx context.Context, cfg config.Config, pipeline *ingest.Pipeline) {
	sink := source.Sink(pipeline.Enqueue)

	if cfg.Input != "" {
		parser := &source.Parser{DefaultSource: filepath.Base(cfg.Input)}
		go func() {
			if err := source.TailFile(ctx, cfg.Input, cfg.SeedLines, parser, sink); err != nil {
				slog.Error("tail stopped", "path", cfg.Input, "error", err)
			}
		}()
		return
	}

	parser := &source.Parser{DefaultSource: "stdin"}
	go func() {
		if err := source.Stream(ctx, os.Stdin, parser, sink); err != nil {
			slog.Error("stdin stream stopped", "error", err)
		}
	}()
}
