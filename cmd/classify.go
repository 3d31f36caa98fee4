package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/modscout/modscout/internal/priority"
	anthropicpkg "github.com/modscout/modscout/pkg/anthropic"
	"github.com/modscout/modscout/pkg/notion"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <page-id>",
	Short: "Estimate priority and category for a known mod entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cfg.Notion.Token == "" {
			return eris.New("notion token is required (MODSCOUT_NOTION_TOKEN)")
		}
		if cfg.Anthropic.Key == "" {
			return eris.New("anthropic key is required (MODSCOUT_ANTHROPIC_KEY)")
		}

		classifier := priority.NewClassifier(
			notion.NewClient(cfg.Notion.Token, notion.WithRateLimit(cfg.Notion.RateLimit)),
			anthropicpkg.NewClient(cfg.Anthropic.Key),
			cfg.Anthropic.Model,
		)

		cls, err := classifier.ClassifyPage(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "classify")
		}

		fmt.Printf("Priority: P%d (score %.1f)\n", cls.Priority, cls.Score)
		fmt.Printf("Category: %s — %s\n", cls.CategoryCode, cls.CategoryLabel)
		fmt.Printf("Axes:     removal %.1f, framework %.1f, essential %.1f\n",
			cls.Scores.RemovalImpact, cls.Scores.Framework, cls.Scores.Essential)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}
