package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/modscout/modscout/internal/model"
	"github.com/modscout/modscout/internal/store"
)

var (
	decisionsOutcome string
	decisionsLimit   int
)

var decisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "List recorded decisions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		filter := store.DecisionFilter{Limit: decisionsLimit}
		switch decisionsOutcome {
		case "":
		case "found":
			filter.Outcome = model.OutcomeFound
		case "not_found":
			filter.Outcome = model.OutcomeNotFound
		default:
			return eris.Errorf("unknown outcome filter %q (want found|not_found)", decisionsOutcome)
		}

		decisions, err := st.ListDecisions(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "list decisions")
		}
		if len(decisions) == 0 {
			fmt.Println("No decisions recorded.")
			return nil
		}

		for _, d := range decisions {
			fmt.Printf("%s  %-9s  %-40s  %s\n",
				d.Timestamp.Format("2006-01-02 15:04"),
				d.Outcome,
				d.Identity.DisplayName(),
				d.Reason,
			)
		}
		return nil
	},
}

func init() {
	decisionsCmd.Flags().StringVar(&decisionsOutcome, "outcome", "", "filter by outcome (found|not_found)")
	decisionsCmd.Flags().IntVar(&decisionsLimit, "limit", 50, "max decisions to list")
	rootCmd.AddCommand(decisionsCmd)
}
