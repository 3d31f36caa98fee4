package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	batchCSVPath     string
	batchConcurrency int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Analyze a CSV of mod URLs through one session",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		urls, err := readURLCSV(batchCSVPath)
		if err != nil {
			return err
		}
		if len(urls) == 0 {
			return eris.Errorf("no URLs found in %s", batchCSVPath)
		}

		env, err := initSession(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(max(batchConcurrency, 1))

		var found, notFound int
		results := make([]string, len(urls))
		for i, url := range urls {
			g.Go(func() error {
				d, err := env.Session.Analyze(gCtx, url)
				if err != nil {
					return eris.Wrapf(err, "analyze %s", url)
				}
				results[i] = fmt.Sprintf("%-9s %s — %s", d.Outcome, url, d.Reason)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		for _, line := range results {
			fmt.Println(line)
			if strings.HasPrefix(line, "FOUND") {
				found++
			} else {
				notFound++
			}
		}

		zap.L().Info("batch complete",
			zap.Int("urls", len(urls)),
			zap.Int("found", found),
			zap.Int("not_found", notFound),
		)
		return nil
	},
}

// readURLCSV reads URLs from the first column, skipping a header row when
// the first cell doesn't look like a URL.
func readURLCSV(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "open csv")
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "read csv")
	}

	var urls []string
	for i, rec := range records {
		if len(rec) == 0 {
			continue
		}
		cell := strings.TrimSpace(rec[0])
		if cell == "" {
			continue
		}
		if i == 0 && !strings.HasPrefix(cell, "http") {
			continue
		}
		urls = append(urls, cell)
	}
	return urls, nil
}

func init() {
	batchCmd.Flags().StringVar(&batchCSVPath, "csv", "", "path to CSV file with URLs in the first column (required)")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 1, "concurrent analyses")
	_ = batchCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(batchCmd)
}
