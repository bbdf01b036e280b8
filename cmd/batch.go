package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/retain-cli/internal/model"
	"github.com/sells-group/retain-cli/internal/monitoring"
)

var (
	batchDataset  string
	batchParallel int
	batchLimit    int
	batchForce    bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Score every employee in a dataset",
	Long: `Runs the risk calculation for all employees in a dataset with
bounded parallelism. Individual failures are logged and skipped; the
rest of the batch continues.

Examples:
  # Score the whole dataset with defaults
  retain batch --dataset acme

  # Recompute everything with 12 workers
  retain batch --dataset acme --parallel 12 --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		ids, err := env.Store.ListEmployeeIDs(ctx, batchDataset)
		if err != nil {
			return eris.Wrapf(err, "list employees in %s", batchDataset)
		}
		if len(ids) == 0 {
			zap.L().Warn("no employees in dataset", zap.String("dataset", batchDataset))
			return nil
		}
		if batchLimit > 0 && len(ids) > batchLimit {
			ids = ids[:batchLimit]
		}

		parallel := batchParallel
		if parallel <= 0 {
			parallel = cfg.Batch.MaxParallel
		}

		results := env.Aggregator.CalculateBatch(ctx, ids, parallel, batchForce)

		printBatchSummary(os.Stdout, ids, results)

		if snap, err := monitoring.NewCollector(env.Store).Collect(ctx, batchDataset); err == nil {
			zap.L().Info("dataset health after batch",
				zap.String("dataset", batchDataset),
				zap.Int("scored", snap.EmployeesScored),
				zap.Float64("high_risk_share", snap.HighRiskShare),
				zap.Float64("avg_risk_score", snap.AvgRiskScore),
				zap.Int("stale_results", snap.StaleResults),
			)
		}
		return nil
	},
}

// printBatchSummary renders a risk-ordered table of batch results.
func printBatchSummary(w io.Writer, ids []string, results map[string]*model.ChurnReasoningResult) {
	scored := make([]*model.ChurnReasoningResult, 0, len(results))
	for _, res := range results {
		scored = append(scored, res)
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].RiskScore > scored[j].RiskScore })

	counts := map[model.RiskLevel]int{}
	for _, res := range scored {
		counts[res.RiskLevel]++
	}

	fmt.Fprintf(w, "scored %d/%d employees (high: %d, medium: %d, low: %d)\n\n",
		len(scored), len(ids),
		counts[model.RiskHigh], counts[model.RiskMedium], counts[model.RiskLow])

	for _, res := range scored {
		fmt.Fprintf(w, "%-20s %-7s %.3f\n", res.EmployeeID, res.RiskLevel, res.RiskScore)
	}
}

func init() {
	batchCmd.Flags().StringVar(&batchDataset, "dataset", "default", "dataset to score")
	batchCmd.Flags().IntVar(&batchParallel, "parallel", 0, "max concurrent calculations (default from config)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "score at most N employees (0 = all)")
	batchCmd.Flags().BoolVar(&batchForce, "force", false, "bypass cached results")
	rootCmd.AddCommand(batchCmd)
}
