package config

import (
	"errors"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/BenjaminSRussell/shelfcrawl/internal/types"
)

var (
	ErrInvalidDelayRange = errors.New("invalid delay_range_s")
	ErrInvalidRetries    = errors.New("max_retries must be positive")
	ErrInvalidRestart    = errors.New("invalid restart policy")
	ErrInvalidWorkers    = errors.New("workers must be at least 1")
	ErrUnknownSink       = errors.New("unknown sink")
	ErrMissingPostgres   = errors.New("postgres sink requires postgres_url")
	ErrInvalidDelimiter  = errors.New("csv_delimiter must be a single character")
)

// KnownSinks lists the accepted values of the sinks option.
var KnownSinks = map[string]bool{
	"csv":      true,
	"json":     true,
	"jsonl":    true,
	"sqlite":   true,
	"postgres": true,
}

// Normalize fills the run-level defaults (log and output directories, retry
// count and restart policy) and creates both directories. It returns a note
// for every default it applied so the caller can log them once a logger exists.
func Normalize(cfg *types.Config) ([]string, error) {
	var applied []string

	if cfg.LogsDir == "" {
		cfg.LogsDir = DefaultLogsDir
		applied = append(applied, "set logs_dir = "+DefaultLogsDir)
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = DefaultOutputDir
		applied = append(applied, "set output_directory = "+DefaultOutputDir)
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
		applied = append(applied, fmt.Sprintf("set max_retries = %d", DefaultMaxRetries))
	}
	// A zero interval is a valid "restart immediately" policy; it is only
	// replaced when the restart block is absent altogether.
	if cfg.Restart == (types.Restart{}) {
		cfg.Restart.IntervalM = DefaultIntervalM
		applied = append(applied, fmt.Sprintf("set interval_m = %v", DefaultIntervalM))
	}
	if cfg.Restart.Count == 0 {
		cfg.Restart.Count = DefaultRestartCount
		applied = append(applied, fmt.Sprintf("set restart_count = %d", DefaultRestartCount))
	}

	for _, dir := range []string{cfg.LogsDir, cfg.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return applied, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return applied, nil
}

// Validate checks option ranges. It should run after Normalize.
func Validate(cfg *types.Config) error {
	if cfg.MaxRetries < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidRetries, cfg.MaxRetries)
	}
	if cfg.Restart.Count < 1 || cfg.Restart.IntervalM < 0 {
		return fmt.Errorf("%w: count=%d interval_m=%v", ErrInvalidRestart, cfg.Restart.Count, cfg.Restart.IntervalM)
	}
	if !cfg.Delay.Disabled && (cfg.Delay.Min < 0 || cfg.Delay.Max < cfg.Delay.Min) {
		return fmt.Errorf("%w: [%v, %v]", ErrInvalidDelayRange, cfg.Delay.Min, cfg.Delay.Max)
	}
	if cfg.Workers < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, cfg.Workers)
	}
	if cfg.CSVDelimiter != "" && utf8.RuneCountInString(cfg.CSVDelimiter) != 1 {
		return fmt.Errorf("%w: %q", ErrInvalidDelimiter, cfg.CSVDelimiter)
	}
	for _, sink := range cfg.Sinks {
		if !KnownSinks[sink] {
			return fmt.Errorf("%w: %s", ErrUnknownSink, sink)
		}
		if sink == "postgres" && cfg.PostgresURL == "" {
			return ErrMissingPostgres
		}
	}
	return nil
}
