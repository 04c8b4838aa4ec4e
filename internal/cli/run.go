package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BenjaminSRussell/shelfcrawl/internal/crawler"
	"github.com/BenjaminSRussell/shelfcrawl/internal/dedup"
	shttp "github.com/BenjaminSRussell/shelfcrawl/internal/http"
	"github.com/BenjaminSRussell/shelfcrawl/internal/logger"
	"github.com/BenjaminSRussell/shelfcrawl/internal/metrics"
	"github.com/BenjaminSRussell/shelfcrawl/internal/pacer"
	"github.com/BenjaminSRussell/shelfcrawl/internal/parser"
	"github.com/BenjaminSRussell/shelfcrawl/internal/server"
	"github.com/BenjaminSRussell/shelfcrawl/internal/types"
)

// ErrRunFailed is returned when the supervisor gives up without a result file.
var ErrRunFailed = errors.New("run failed")

var (
	console     bool
	workers     int
	categories  []string
	outputFile  string
	metricsAddr string
	renderJS    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Crawl the catalog once",
	Long:  `Crawl every configured (or discovered) category and write the result set to the configured sinks`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(configPath, console, func(cfg *types.Config) {
			applyRunFlags(cmd, cfg)
		})
		if err != nil {
			return err
		}
		defer s.log.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		report, err := runOnce(ctx, s.cfg, s.log)
		if err != nil {
			return err
		}
		printReport(cmd.OutOrStdout(), report)

		if report.State.Phase != types.PhaseSucceeded {
			return fmt.Errorf("%w: %s after %d attempt(s): %v",
				ErrRunFailed, report.State.Phase, report.State.Attempt, report.Err)
		}
		return nil
	},
}

func applyRunFlags(cmd *cobra.Command, cfg *types.Config) {
	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if flags.Changed("categories") {
		cfg.Categories = categories
	}
	if flags.Changed("output-file") {
		cfg.OutputFile = outputFile
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = metricsAddr
	}
	if flags.Changed("render-js") {
		cfg.RenderJS = renderJS
	}
}

// runOnce assembles the crawl pipeline for cfg and runs the supervisor.
func runOnce(ctx context.Context, cfg *types.Config, log logger.Interface) (types.RunReport, error) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	if cfg.MetricsAddr != "" {
		srv := server.New(cfg.MetricsAddr, reg, log)
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn("metrics server shutdown", zap.Error(err))
			}
		}()
	}

	fetcher, release, err := newFetcher(cfg, log, m)
	if err != nil {
		return types.RunReport{}, err
	}
	defer release()

	runID := uuid.NewString()
	sinks, closeSinks, err := newSinks(ctx, cfg, runID)
	if err != nil {
		return types.RunReport{}, err
	}
	defer closeSinks()

	opts := crawler.WalkerOptions{Workers: cfg.Workers}
	if cfg.RespectRobots {
		opts.Robots = shttp.NewRobotsGuard(fetcher, userAgent, log)
	}

	store := dedup.New(0)
	walker := crawler.NewWalker(
		fetcher,
		parser.NewCatalogExtractor(),
		pacer.New(cfg.Delay, nil, log, m),
		store,
		log,
		m,
		opts,
	)
	traversal := crawler.NewTraversal(walker, parser.NewCatalogDiscoverer(fetcher, cfg.BaseURL, log), log, m)
	supervisor := crawler.NewSupervisor(cfg, traversal, store, sinks, log, m, crawler.WithRunID(runID))

	return supervisor.Run(ctx), nil
}

func printReport(w io.Writer, r types.RunReport) {
	fmt.Fprintf(w, "Run %s %s after %d attempt(s)\n", r.RunID, r.State.Phase, r.State.Attempt)
	fmt.Fprintf(w, "Categories: %d, Pages: %d (skipped %d), Items: %d (skipped %d)\n",
		r.Results.Categories, r.Results.Pages, r.Results.PagesSkipped, r.Results.Items, r.Results.ItemsSkipped)
	fmt.Fprintf(w, "Records: %d, Duplicates: %d\n", r.Records, r.Results.Duplicates)
	if r.Destination != "" {
		fmt.Fprintf(w, "Destination: %s\n", r.Destination)
	}
}

func init() {
	runCmd.Flags().BoolVar(&console, "console", true, "Also write log entries to stdout")
	runCmd.Flags().IntVar(&workers, "workers", 1, "Number of concurrent item fetches per listing page")
	runCmd.Flags().StringSliceVar(&categories, "categories", nil, "Category ids to crawl instead of discovering them")
	runCmd.Flags().StringVar(&outputFile, "output-file", "", "Result file name inside the output directory")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve /metrics and /healthz on this address during the run")
	runCmd.Flags().BoolVar(&renderJS, "render-js", false, "Render pages with headless Chrome")
}
