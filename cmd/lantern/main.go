package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kmataru/lantern/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "override config path (optional)")
	input := flag.String("input", "", "log file to tail (optional, defaults to stdin)")
	capacity := flag.Int("capacity", 0, "store capacity override (optional)")
	level := flag.String("level", "", "initial severity threshold (optional)")
	exportDir := flag.String("export-dir", "", "directory for snapshot exports (optional)")
	headless := flag.Bool("headless", false, "run the pipeline without the TUI and export a snapshot on exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := app.Options{
		ConfigPath: *configPath,
		Input:      *input,
		Capacity:   *capacity,
		Level:      *level,
		ExportDir:  *exportDir,
		Headless:   *headless,
	}

	if err := app.Run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "lantern: %v\n", err)
		return 1
	}
	return 0
}
