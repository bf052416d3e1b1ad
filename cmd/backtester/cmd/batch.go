package cmd

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/openquant/backtester/backtest"
	"github.com/openquant/backtester/config"
	"github.com/openquant/backtester/data"
	"github.com/openquant/backtester/metrics"
	"github.com/openquant/backtester/strategy"
)

var batchCmd = &cobra.Command{
	Use:   "batch <config>...",
	Short: "Run several backtests concurrently under a bounded worker pool",
	Long: `Batch loads each config, builds its dataset and executes all runs
concurrently, bounded by --max-concurrent. Progress and run counters are
exported as Prometheus metrics when --metrics-addr is set.

Example:
  backtester batch -d data/bars --max-concurrent 4 configs/*.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

var (
	batchDataDir       string
	batchMaxConcurrent int
	batchTimeout       time.Duration
	batchMetricsAddr   string
)

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringVarP(&batchDataDir, "data", "d", "./data", "directory of per-symbol bar CSV files")
	batchCmd.Flags().IntVar(&batchMaxConcurrent, "max-concurrent", 4, "maximum runs executing at once")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 0, "per-run wall-clock timeout (0 disables)")
	batchCmd.Flags().StringVar(&batchMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9100)")
}

func runBatch(cmd *cobra.Command, args []string) error {
	if batchMetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		go func() {
			if err := http.ListenAndServe(batchMetricsAddr, mux); err != nil {
				log.Printf("metrics server: %v", err)
			}
		}()
	}

	mgr := backtest.NewManager(batchMaxConcurrent, batchTimeout)
	src := data.NewCSVSource(batchDataDir)

	var runs []*backtest.Run
	for _, path := range args {
		cfg, err := config.LoadFromFile(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		start, end, err := cfg.Range()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		ds, err := data.Load(cmd.Context(), src, cfg.Symbols, start, end, cfg.Freq())
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		strat, err := strategy.New(cfg.Strategy.Name, cfg.Strategy.Params)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		run, err := backtest.NewRun(cfg, ds, strat)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		runs = append(runs, run)
		mgr.Submit(run)
		log.Printf("submitted %s (%s)", run.ID, path)
	}

	mgr.Wait()

	failed := 0
	for _, run := range runs {
		printResult(run)
		if run.Status() == backtest.Failed {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d runs failed", failed, len(runs))
	}
	return nil
}
