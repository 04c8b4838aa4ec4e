package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/BenjaminSRussell/shelfcrawl/internal/config"
	"github.com/BenjaminSRussell/shelfcrawl/internal/crawler"
	"github.com/BenjaminSRussell/shelfcrawl/internal/export"
	shttp "github.com/BenjaminSRussell/shelfcrawl/internal/http"
	"github.com/BenjaminSRussell/shelfcrawl/internal/logger"
	"github.com/BenjaminSRussell/shelfcrawl/internal/metrics"
	"github.com/BenjaminSRussell/shelfcrawl/internal/proxy"
	"github.com/BenjaminSRussell/shelfcrawl/internal/renderer"
	"github.com/BenjaminSRussell/shelfcrawl/internal/storage"
	"github.com/BenjaminSRussell/shelfcrawl/internal/types"
)

const (
	userAgent  = "shelfcrawl"
	sqliteFile = "shelfcrawl.db"
)

// session holds the loaded configuration and the logger built from it.
type session struct {
	cfg *types.Config
	log *logger.Logger
}

// openSession loads and normalizes the configuration, creates the logger in
// the log directory and validates the result. override runs before validation.
func openSession(path string, console bool, override func(*types.Config)) (*session, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if override != nil {
		override(cfg)
	}

	notes, err := config.Normalize(cfg)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(logger.Config{Dir: cfg.LogsDir, Level: cfg.LogLevel, Console: console})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	for _, note := range notes {
		log.Info(note)
	}

	if err := config.Validate(cfg); err != nil {
		log.Error("invalid configuration", zap.Error(err))
		log.Close()
		return nil, err
	}

	return &session{cfg: cfg, log: log}, nil
}

// newFetcher wires proxies, TLS profile, header rotation and the optional
// headless browser into a Fetcher. The returned func releases the browser.
func newFetcher(cfg *types.Config, log logger.Interface, m *metrics.Metrics) (*shttp.Fetcher, func(), error) {
	rotator, err := proxy.NewRotator(cfg.Proxies)
	if err != nil {
		return nil, nil, err
	}

	opts := shttp.Options{
		Retry:             shttp.RetryConfig{MaxRetries: cfg.MaxRetries},
		Timeout:           time.Duration(cfg.Timeout) * time.Second,
		MaxRedirects:      cfg.MaxRedirects,
		Headers:           cfg.Headers,
		RotateHeaders:     cfg.RotateHeaders,
		RequestsPerSecond: cfg.RequestsPerSecond,
		TLSProfile:        cfg.TLSProfile,
	}
	if rotator.Len() > 0 {
		opts.Proxy = rotator.Proxy
		log.Info("using proxies", zap.Int("count", rotator.Len()))
	}

	release := func() {}
	if cfg.RenderJS {
		var proxyURL string
		if u, _ := rotator.Proxy(nil); u != nil {
			proxyURL = u.String()
		}
		source := renderer.NewChromeSource(opts.Timeout, proxyURL)
		opts.Source = source
		release = source.Close
		log.Info("rendering pages with headless Chrome")
	}

	fetcher, err := shttp.NewFetcher(opts, log, m)
	if err != nil {
		release()
		return nil, nil, err
	}
	return fetcher, release, nil
}

// newSinks opens every configured sink. The returned func closes the ones
// holding connections.
func newSinks(ctx context.Context, cfg *types.Config, runID string) ([]crawler.Sink, func(), error) {
	var (
		sinks   []crawler.Sink
		closers []func() error
	)
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	for _, name := range cfg.Sinks {
		var (
			sink crawler.Sink
			err  error
		)
		switch name {
		case "csv":
			sink, err = export.NewCSVSink(cfg.OutputDir, cfg.CSVDelimiter)
		case "json":
			sink, err = export.NewJSONSink(cfg.OutputDir)
		case "jsonl":
			sink, err = storage.NewJSONLSink(cfg.OutputDir, runID)
		case "sqlite":
			var s *storage.SQLiteSink
			if s, err = storage.NewSQLiteSink(filepath.Join(cfg.OutputDir, sqliteFile), runID); err == nil {
				closers = append(closers, s.Close)
				sink = s
			}
		case "postgres":
			var s *storage.PostgresSink
			if s, err = storage.NewPostgresSink(ctx, cfg.PostgresURL, runID); err == nil {
				closers = append(closers, s.Close)
				sink = s
			}
		default:
			err = fmt.Errorf("%w: %s", config.ErrUnknownSink, name)
		}
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to open %s sink: %w", name, err)
		}
		sinks = append(sinks, sink)
	}
	return sinks, closeAll, nil
}
