package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/retain-cli/internal/model"
)

var (
	scoreForce  bool
	scoreFormat string
)

var scoreCmd = &cobra.Command{
	Use:   "score <employee-id>",
	Short: "Score one employee's attrition risk",
	Long: `Computes the blended attrition risk for a single employee.

The final score fuses the latest ML prediction, heuristic rule hits,
tenure-stage hazard, and interview sentiment, weighted by each
component's confidence. Results are cached; use --force to recompute.

Examples:
  # Score with the cached result honored
  retain score emp-1042

  # Force a fresh calculation and print the full breakdown
  retain score emp-1042 --force --format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Aggregator.Calculate(ctx, args[0], scoreForce)
		if err != nil {
			return eris.Wrapf(err, "score %s", args[0])
		}

		return printResult(os.Stdout, res, scoreFormat)
	},
}

func printResult(w io.Writer, res *model.ChurnReasoningResult, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(res), "encode result")
	case "text":
		fmt.Fprintf(w, "employee:   %s\n", res.EmployeeID)
		fmt.Fprintf(w, "risk:       %s (%.3f)\n", res.RiskLevel, res.RiskScore)
		fmt.Fprintf(w, "confidence: %.2f\n", res.Confidence)
		fmt.Fprintf(w, "calculated: %s\n", res.CalculatedAt.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(w, "\n%s\n", res.Summary)
		if len(res.Alerts) > 0 {
			fmt.Fprintln(w, "\nalerts:")
			for _, a := range res.Alerts {
				fmt.Fprintf(w, "  - %s\n", a)
			}
		}
		if len(res.Recommendations) > 0 {
			fmt.Fprintln(w, "\nrecommendations:")
			for _, r := range res.Recommendations {
				fmt.Fprintf(w, "  - %s\n", r)
			}
		}
		return nil
	default:
		return eris.Errorf("unknown format %q (want text or json)", format)
	}
}

func init() {
	scoreCmd.Flags().BoolVar(&scoreForce, "force", false, "bypass the cached result")
	scoreCmd.Flags().StringVar(&scoreFormat, "format", "text", "output format (text or json)")
	rootCmd.AddCommand(scoreCmd)
}
