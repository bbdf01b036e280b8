package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/retain-cli/internal/thresholds"
)

var (
	calibrateDataset   string
	calibrateMethod    string
	calibrateCostRatio float64
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Recompute dataset thresholds from live samples",
	Long: `Derives every cut-point for a dataset from its own distributions:
risk bands from prediction percentiles, salary tertiles, tenure
quintiles, feature ranges, SHAP impact bands, sentiment polarity,
risk-change alerts, the base hazard rate, and the optimal
classification threshold from labeled outcomes.

Groups with too few samples keep their documented defaults.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if calibrateMethod != "" {
			cfg.Thresholds.OptimalMethod = calibrateMethod
		}
		if calibrateCostRatio > 0 {
			cfg.Thresholds.CostRatio = calibrateCostRatio
		}
		if err := cfg.Validate("calibrate"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		cal := thresholds.New(st, 0)
		err = cal.Recalibrate(ctx, st, calibrateDataset, thresholds.RecalibrateOptions{
			Method:           thresholds.Method(cfg.Thresholds.OptimalMethod),
			CostRatio:        cfg.Thresholds.CostRatio,
			HighPercentile:   cfg.Thresholds.HighPercentile,
			MediumPercentile: cfg.Thresholds.MediumPercentile,
		})
		if err != nil {
			return eris.Wrapf(err, "calibrate %s", calibrateDataset)
		}

		zap.L().Info("calibration complete", zap.String("dataset", calibrateDataset))
		return nil
	},
}

func init() {
	calibrateCmd.Flags().StringVar(&calibrateDataset, "dataset", "default", "dataset to calibrate")
	calibrateCmd.Flags().StringVar(&calibrateMethod, "method", "", "optimal threshold method (f1, precision, recall, cost)")
	calibrateCmd.Flags().Float64Var(&calibrateCostRatio, "cost-ratio", 0, "miss/false-alarm cost ratio for the cost method")
	rootCmd.AddCommand(calibrateCmd)
}
