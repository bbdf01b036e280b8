package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/retain-cli/internal/store"
)

var thresholdsDataset string

var thresholdsCmd = &cobra.Command{
	Use:   "thresholds",
	Short: "Show the stored thresholds for a dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		th, err := st.GetThresholds(ctx, thresholdsDataset)
		if eris.Is(err, store.ErrNotFound) {
			return eris.Errorf("no thresholds stored for dataset %q (run calibrate first)", thresholdsDataset)
		}
		if err != nil {
			return eris.Wrapf(err, "get thresholds %s", thresholdsDataset)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(th), "encode thresholds")
	},
}

func init() {
	thresholdsCmd.Flags().StringVar(&thresholdsDataset, "dataset", "default", "dataset to inspect")
	rootCmd.AddCommand(thresholdsCmd)
}
