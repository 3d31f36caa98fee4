package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	exportOut    string
	exportFormat string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the session (snapshot, caches, decision log) to a file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initSession(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		// Hydrate the in-memory log from the store so the export reflects
		// prior sessions too.
		if err := hydrateLog(ctx, env); err != nil {
			zap.L().Warn("hydrating decision log failed; exporting current session only", zap.Error(err))
		}

		switch exportFormat {
		case "", "json":
			if err := env.Session.WriteExport(exportOut); err != nil {
				return err
			}
		case "xlsx":
			if err := env.Session.ExportXLSX(exportOut); err != nil {
				return err
			}
		default:
			return eris.Errorf("unknown export format %q (want json|xlsx)", exportFormat)
		}

		zap.L().Info("export complete",
			zap.String("path", exportOut),
			zap.String("format", exportFormat),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output file path (required)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "export format (json|xlsx)")
	_ = exportCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(exportCmd)
}
