package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config captures the tunables of the log pipeline and viewer.
type Config struct {
	StoreCapacity  int           // ring buffer size
	QueueCapacity  int           // ingestion queue size
	OverflowPolicy string        // "drop_oldest" or "drop_newest"
	BatchSize      int           // max records applied per consumer cycle
	MaxBatchWait   time.Duration // max wait for the first record of a batch
	DefaultLevel   string        // initial severity threshold for the main view
	MatchRegex     bool          // treat the text query as a regular expression
	CaseSensitive  bool
	Input          string // log file to tail; empty means stdin
	SeedLines      int    // history replayed when tailing a file
}

const (
	defaultConfigPath = "~/.config/lantern/config.toml"

	defaultStoreCapacity = 20000
	defaultQueueCapacity = 4096
	defaultBatchSize     = 256
	defaultMaxBatchWait  = 100 * time.Millisecond
	defaultLevel         = "info"
	defaultSeedLines     = 500

	// PolicyDropOldest evicts the oldest queued record on overflow.
	PolicyDropOldest = "drop_oldest"
	// PolicyDropNewest discards the incoming record instead.
	PolicyDropNewest = "drop_newest"
)

func defaults() Config {
	return Config{
		StoreCapacity:  defaultStoreCapacity,
		QueueCapacity:  defaultQueueCapacity,
		OverflowPolicy: PolicyDropOldest,
		BatchSize:      defaultBatchSize,
		MaxBatchWait:   defaultMaxBatchWait,
		DefaultLevel:   defaultLevel,
		SeedLines:      defaultSeedLines,
	}
}

// Load locates and parses the lantern config, falling back to defaults
// when the file is missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := defaults()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		StoreCapacity  int    `toml:"store_capacity"`
		QueueCapacity  int    `toml:"queue_capacity"`
		OverflowPolicy string `toml:"overflow_policy"`
		BatchSize      int    `toml:"batch_size"`
		MaxBatchWait   string `toml:"max_batch_wait"`
		DefaultLevel   string `toml:"default_level"`
		MatchMode      string `toml:"match_mode"`
		CaseSensitive  bool   `toml:"case_sensitive"`
		Input          string `toml:"input"`
		SeedLines      *int   `toml:"seed_lines"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if raw.StoreCapacity > 0 {
		cfg.StoreCapacity = raw.StoreCapacity
	}
	if raw.QueueCapacity > 0 {
		cfg.QueueCapacity = raw.QueueCapacity
	}
	if raw.BatchSize > 0 {
		cfg.BatchSize = raw.BatchSize
	}
	if raw.SeedLines != nil && *raw.SeedLines >= 0 {
		cfg.SeedLines = *raw.SeedLines
	}

	switch policy := strings.TrimSpace(raw.OverflowPolicy); policy {
	case "":
	case PolicyDropOldest, PolicyDropNewest:
		cfg.OverflowPolicy = policy
	default:
		return Config{}, fmt.Errorf("parse config: unknown overflow_policy %q", policy)
	}

	if wait := strings.TrimSpace(raw.MaxBatchWait); wait != "" {
		parsed, err := time.ParseDuration(wait)
		if err != nil {
			return Config{}, fmt.Errorf("parse config: max_batch_wait: %w", err)
		}
		if parsed <= 0 {
			return Config{}, fmt.Errorf("parse config: max_batch_wait must be positive")
		}
		cfg.MaxBatchWait = parsed
	}

	if level := strings.TrimSpace(raw.DefaultLevel); level != "" {
		cfg.DefaultLevel = level
	}

	switch mode := strings.TrimSpace(raw.MatchMode); mode {
	case "", "substring":
	case "regex":
		cfg.MatchRegex = true
	default:
		return Config{}, fmt.Errorf("parse config: unknown match_mode %q", mode)
	}

	cfg.CaseSensitive = raw.CaseSensitive

	if input := strings.TrimSpace(raw.Input); input != "" {
		cfg.Input = mustExpand(input)
	}

	return cfg, nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
