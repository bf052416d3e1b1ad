package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openquant/backtester/journal"
)

var reportCmd = &cobra.Command{
	Use:   "report [run-id]",
	Short: "Render a summary report for journaled runs",
	Long: `Report renders a plain-text summary from the SQLite journal.
With no run ID it lists all journaled runs, newest first.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReport,
}

var reportDBPath string

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVarP(&reportDBPath, "db", "d", "./backtests.sqlite", "path to SQLite journal DB")
}

func runReport(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(reportDBPath)
	if err != nil {
		return err
	}
	defer j.Close()

	if len(args) == 1 {
		rec, err := j.GetRun(args[0])
		if err != nil {
			return err
		}
		out, err := journal.RenderRunReport(rec)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	}

	runs, err := j.ListRuns()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no journaled runs")
		return nil
	}
	for _, r := range runs {
		fmt.Printf("%s  %-10s %-12s %s  net %s\n",
			r.RunID, r.Status, r.Strategy, r.Symbols, r.NetPL)
	}
	return nil
}
