package main

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/modscout/modscout/internal/store"
	"github.com/modscout/modscout/pkg/notion"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage the external database snapshot",
}

var snapshotRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Reload the mod database snapshot and record its fingerprint",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if cfg.Notion.Token == "" {
			return eris.New("notion token is required (MODSCOUT_NOTION_TOKEN)")
		}
		if cfg.Notion.ModDB == "" {
			return eris.New("notion mod DB ID is required (MODSCOUT_NOTION_MOD_DB)")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		client := notion.NewClient(cfg.Notion.Token, notion.WithRateLimit(cfg.Notion.RateLimit))
		snap, err := notion.LoadSnapshot(ctx, client, cfg.Notion.ModDB)
		if err != nil {
			return eris.Wrap(err, "refresh snapshot")
		}

		if err := st.SaveSnapshotMeta(ctx, store.SnapshotMeta{
			Fingerprint: snap.Fingerprint,
			EntryCount:  len(snap.Entries),
			LoadedAt:    snap.LoadedAt,
		}); err != nil {
			return eris.Wrap(err, "save snapshot meta")
		}

		fmt.Printf("Snapshot refreshed: %d entries, fingerprint %s\n", len(snap.Entries), snap.Fingerprint)
		return nil
	},
}

var snapshotStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Compare the stored snapshot fingerprint against the live database",
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

		meta, err := st.GetSnapshotMeta(ctx)
		if err != nil {
			return eris.Wrap(err, "load snapshot meta")
		}
		if meta == nil {
			fmt.Println("No snapshot recorded yet. Run `modscout snapshot refresh`.")
			return nil
		}

		fmt.Printf("Stored snapshot: %d entries, fingerprint %s, loaded %s\n",
			meta.EntryCount, meta.Fingerprint, meta.LoadedAt.Format("2006-01-02 15:04:05 MST"))

		live, err := liveFingerprint(ctx)
		if err != nil {
			zap.L().Warn("live fingerprint unavailable", zap.Error(err))
			fmt.Println("Live database unreachable; staleness unknown.")
			return nil
		}

		if live == meta.Fingerprint {
			fmt.Println("Snapshot is current.")
		} else {
			// Staleness is surfaced, never auto-invalidated: cached decisions
			// stand until the operator refreshes.
			fmt.Printf("Snapshot is STALE (live fingerprint %s). Cached decisions may be outdated; run `modscout snapshot refresh`.\n", live)
		}
		return nil
	},
}

func liveFingerprint(ctx context.Context) (string, error) {
	if cfg.Notion.Token == "" || cfg.Notion.ModDB == "" {
		return "", eris.New("notion credentials not configured")
	}
	client := notion.NewClient(cfg.Notion.Token, notion.WithRateLimit(cfg.Notion.RateLimit))
	snap, err := notion.LoadSnapshot(ctx, client, cfg.Notion.ModDB)
	if err != nil {
		return "", err
	}
	return snap.Fingerprint, nil
}

func init() {
	snapshotCmd.AddCommand(snapshotRefreshCmd)
	snapshotCmd.AddCommand(snapshotStatusCmd)
	rootCmd.AddCommand(snapshotCmd)
}
