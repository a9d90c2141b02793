package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rategrid/contract-extractor/internal/export"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Export a run's price grid to an Excel workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "export")
		}
		if run.Result == nil {
			return eris.Errorf("run %s has no stored result", args[0])
		}

		out := exportOut
		if out == "" {
			out = truncateID(run.ID) + ".xlsx"
		}

		if err := export.WriteWorkbook(run.Result, out); err != nil {
			return err
		}

		zap.L().Info("workbook written",
			zap.String("run_id", run.ID),
			zap.String("path", out),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "f", "", "output path (default <run-id>.xlsx)")
	rootCmd.AddCommand(exportCmd)
}
