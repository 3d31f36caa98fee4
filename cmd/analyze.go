package main

import (
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var analyzeJSON bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze <url>",
	Short: "Analyze one mod URL and resolve it against the database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initSession(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		decision, err := env.Session.Analyze(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "analyze")
		}

		if analyzeJSON {
			out, err := json.MarshalIndent(decision, "", "  ")
			if err != nil {
				return eris.Wrap(err, "marshal decision")
			}
			fmt.Println(string(out))
			return nil
		}

		fmt.Printf("Mod:      %s\n", decision.Identity.DisplayName())
		fmt.Printf("Creator:  %s\n", decision.Identity.DisplayCreator())
		fmt.Printf("Decision: %s (%s)\n", decision.Outcome, decision.Reason)
		if decision.Found() {
			fmt.Printf("Matched:  %s", decision.MatchedID)
			if decision.MatchedURL != "" {
				fmt.Printf(" (%s)", decision.MatchedURL)
			}
			fmt.Println()
		}
		if decision.Identity.Debug.IsBlocked {
			fmt.Println("Warning:  page looked blocked (challenge/login wall); identity derived from slug and domain")
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the full decision as JSON")
	rootCmd.AddCommand(analyzeCmd)
}
