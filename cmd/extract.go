package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var (
	extractFile    string
	extractContext string
	extractOutput  string
	extractNoStore bool
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract rate data from a single contract document",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("extract"); err != nil {
			return err
		}

		doc, err := loadDocument(extractFile)
		if err != nil {
			return err
		}
		ec, err := loadContext(extractContext)
		if err != nil {
			return err
		}

		ex, err := newExtractor()
		if err != nil {
			return err
		}

		result, err := ex.Extract(ctx, doc, ec)
		if err != nil {
			return eris.Wrap(err, "extract")
		}

		if !extractNoStore {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			if err := st.Migrate(ctx); err != nil {
				return eris.Wrap(err, "migrate store")
			}
			run, err := st.CreateRun(ctx, result.Structure.ContractInfo.HotelName)
			if err != nil {
				return err
			}
			if err := st.CompleteRun(ctx, run.ID, result); err != nil {
				return err
			}
			zap.L().Info("run recorded", zap.String("run_id", run.ID))
		}

		switch extractOutput {
		case "yaml":
			return yaml.NewEncoder(os.Stdout).Encode(result)
		default:
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractFile, "file", "", "contract document path (required)")
	extractCmd.Flags().StringVar(&extractContext, "context", "", "extraction context JSON (existing catalogs, currency)")
	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", "json", "output format (json, yaml)")
	extractCmd.Flags().BoolVar(&extractNoStore, "no-store", false, "skip recording the run in the audit store")
	_ = extractCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(extractCmd)
}
