package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/retain-cli/internal/ingest"
)

var (
	importFile    string
	importDataset string
	importSheet   string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import an employee roster from CSV or XLSX",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("import"); err != nil {
			return err
		}

		dataset := importDataset
		if dataset == "" {
			dataset = cfg.Import.DefaultDataset
		}
		sheet := importSheet
		if sheet == "" {
			sheet = cfg.Import.SheetName
		}

		employees, report, err := ingest.ParseFile(importFile, ingest.Options{
			DatasetID: dataset,
			SheetName: sheet,
		})
		if err != nil {
			return eris.Wrap(err, "parse roster")
		}

		for _, skip := range report.Skipped {
			zap.L().Warn("skipped roster row", zap.String("reason", skip))
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		n, err := st.UpsertEmployees(ctx, employees)
		if err != nil {
			return eris.Wrap(err, "upsert employees")
		}

		zap.L().Info("import complete",
			zap.String("file", importFile),
			zap.String("dataset", dataset),
			zap.Int("rows", report.Rows),
			zap.Int("imported", n),
			zap.Int("skipped", len(report.Skipped)),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "path to roster file (required)")
	importCmd.Flags().StringVar(&importDataset, "dataset", "", "dataset to import into (default from config)")
	importCmd.Flags().StringVar(&importSheet, "sheet", "", "XLSX sheet name (default first sheet)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
