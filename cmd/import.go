package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var importIn string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a session export file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initSession(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Session.ReadImport(importIn); err != nil {
			// Rejected imports leave hydrated state untouched.
			return err
		}

		// Persist the imported log so future sessions see it.
		for _, d := range env.Session.Decisions() {
			if err := env.Store.UpsertDecision(ctx, d); err != nil {
				zap.L().Warn("persist imported decision failed",
					zap.String("identity_hash", d.IdentityHash),
					zap.Error(err),
				)
			}
		}

		fmt.Printf("Imported %d decisions from %s\n", len(env.Session.Decisions()), importIn)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importIn, "in", "", "path to export file (required)")
	_ = importCmd.MarkFlagRequired("in")
	rootCmd.AddCommand(importCmd)
}
