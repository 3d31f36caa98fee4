package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var evictCmd = &cobra.Command{
	Use:   "evict <identity-hash>",
	Short: "Evict a decided identity hash so the next analysis recomputes it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		if err := st.DeleteDecision(ctx, args[0]); err != nil {
			return eris.Wrap(err, "evict decision")
		}
		fmt.Printf("Evicted %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(evictCmd)
}
