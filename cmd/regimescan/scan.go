package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/coinpulse/regimescan/internal/datasource"
	"github.com/coinpulse/regimescan/internal/domain"
	"github.com/coinpulse/regimescan/internal/metrics"
	"github.com/coinpulse/regimescan/internal/pipeline"
	"github.com/coinpulse/regimescan/internal/store"
)

func newScanCmd(configPath *string) *cobra.Command {
	var top int

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one full cycle and print the ranked universe",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			client := datasource.NewClient(cfg.Datasource, cfg.Universe)
			runner := pipeline.NewRunner(cfg, client, store.NewMemory(), metrics.New())

			result, err := runner.RunCycle(cmd.Context())
			if err != nil {
				return err
			}
			printResult(result, top)
			return nil
		},
	}
	cmd.Flags().IntVar(&top, "top", 20, "number of ranked assets to print")
	return cmd
}

func printResult(result *domain.CycleResult, top int) {
	fmt.Printf("regime: %s (changed: %v)  assets: %d  alerts: %d\n\n",
		result.Regime, result.RegimeChanged, len(result.Assets), len(result.Alerts))

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tSYMBOL\tPRICE\tSCORE\tRISK\tENTRY\tSTOP\tTARGET1\tCONF\tSIZE")
	n := top
	if n <= 0 || n > len(result.Assets) {
		n = len(result.Assets)
	}
	for _, a := range result.Assets[:n] {
		target := 0.0
		if len(a.Plan.Targets) > 0 {
			target = a.Plan.Targets[0]
		}
		fmt.Fprintf(w, "%d\t%s\t%.4f\t%.1f\t%s\t%.4f\t%.4f\t%.4f\t%.0f%%\t%.0f%%\n",
			a.Rank, a.Symbol, a.Price, a.Score, a.RiskTier,
			a.Plan.EntryPrice, a.Plan.StopLoss, target,
			a.Plan.Confidence, a.Plan.PositionSizeFraction*100)
	}
	w.Flush()

	for _, alert := range result.Alerts {
		fmt.Printf("alert [%s] %s\n", alert.Kind, alert.Message)
	}
}
