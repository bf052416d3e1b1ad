package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/openquant/backtester/backtest"
	"github.com/openquant/backtester/config"
	"github.com/openquant/backtester/data"
	"github.com/openquant/backtester/journal"
	"github.com/openquant/backtester/strategy"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a backtest from a config file and CSV bar data",
	Long: `Run loads a validated config, builds the bar dataset from per-symbol
CSV files (<data-dir>/<SYMBOL>.csv), and drives the tick loop to completion.

Example:
  backtester run -c configs/smacross.yaml -d data/bars`,
	RunE: runBacktest,
}

var (
	runConfigPath string
	runDataDir    string
	runTimeout    time.Duration
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "c", "", "path to run config (YAML or JSON) (required)")
	runCmd.Flags().StringVarP(&runDataDir, "data", "d", "./data", "directory of per-symbol bar CSV files")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "overall wall-clock timeout (0 disables)")

	runCmd.MarkFlagRequired("config")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(runConfigPath)
	if err != nil {
		return err
	}

	start, end, err := cfg.Range()
	if err != nil {
		return err
	}

	src := data.NewCSVSource(runDataDir)
	ds, err := data.Load(context.Background(), src, cfg.Symbols, start, end, cfg.Freq())
	if err != nil {
		return err
	}

	strat, err := strategy.New(cfg.Strategy.Name, cfg.Strategy.Params)
	if err != nil {
		return err
	}

	run, err := backtest.NewRun(cfg, ds, strat)
	if err != nil {
		return err
	}

	// SIGINT cancels cooperatively; partial results are journaled.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)
	go func() {
		<-sig
		log.Println("cancelling run...")
		run.Cancel()
	}()

	ctx := context.Background()
	if runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runTimeout)
		defer cancel()
	}

	execErr := run.Execute(ctx)

	j, err := openJournal(cfg.Journal)
	if err != nil {
		return err
	}
	if j != nil {
		defer j.Close()
		if err := recordRun(j, cfg, run); err != nil {
			return fmt.Errorf("journal run %s: %w", run.ID, err)
		}
	}

	printResult(run)

	if execErr != nil {
		return execErr
	}
	return nil
}

func openJournal(jc config.JournalConfig) (journal.Journal, error) {
	switch jc.Type {
	case "", "none":
		return nil, nil
	case "sqlite":
		return journal.NewSQLite(jc.DBPath)
	case "csv":
		return journal.NewCSV(jc.FillsFile, jc.EquityFile)
	}
	return nil, fmt.Errorf("unknown journal type %q", jc.Type)
}

func recordRun(j journal.Journal, cfg *config.Config, run *backtest.Run) error {
	res := run.Result()

	rec := journal.RunRecord{
		RunID:        res.RunID,
		Created:      time.Now().UTC(),
		Strategy:     cfg.Strategy.Name,
		Symbols:      strings.Join(cfg.Symbols, ","),
		Frequency:    cfg.Frequency,
		Start:        res.Start,
		End:          res.End,
		Status:       res.Status.String(),
		StartBalance: res.StartBalance,
		EndBalance:   res.EndBalance,
		NetPL:        res.NetPL,
		ReturnPct:    res.ReturnPct,
		MaxDDPct:     res.MaxDDPct,
		WinRate:      res.WinRate,
		ProfitFactor: res.ProfitFactor,
		Trades:       res.Trades,
		Wins:         res.Wins,
		Losses:       res.Losses,
	}
	if res.Error != nil {
		rec.ErrKind = res.Error.Kind
		rec.ErrMsg = res.Error.Msg
	}
	if err := j.RecordRun(rec); err != nil {
		return err
	}

	for _, f := range run.Fills() {
		if err := j.RecordFill(journal.FillRecord{
			RunID:      res.RunID,
			OrderID:    f.OrderID,
			Symbol:     f.Symbol,
			Side:       f.Side.String(),
			Qty:        f.Qty,
			Price:      f.Price,
			Commission: f.Commission,
			Tick:       f.Tick,
			Time:       f.Time,
		}); err != nil {
			return err
		}
	}

	for _, s := range run.EquityCurve() {
		if err := j.RecordEquity(journal.EquityRecord{
			RunID:       res.RunID,
			Tick:        s.Tick,
			Time:        s.Time,
			Cash:        s.Cash,
			MarketValue: s.MarketValue,
			Equity:      s.Equity,
		}); err != nil {
			return err
		}
	}

	return nil
}

func printResult(run *backtest.Run) {
	res := run.Result()
	fmt.Printf("run %s: %s\n", res.RunID, res.Status)
	if res.Error != nil {
		fmt.Printf("  error: %s: %s\n", res.Error.Kind, res.Error.Msg)
	}
	fmt.Printf("  ticks: %d, trades: %d (%d wins / %d losses)\n", res.Ticks, res.Trades, res.Wins, res.Losses)
	fmt.Printf("  equity: %s -> %s (net %s, %.2f%%, max dd %.2f%%)\n",
		res.StartBalance, res.EndBalance, res.NetPL, res.ReturnPct, res.MaxDDPct)
}
