package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/modscout/modscout/internal/fetch"
	"github.com/modscout/modscout/internal/gate"
	"github.com/modscout/modscout/internal/session"
	"github.com/modscout/modscout/internal/store"
	"github.com/modscout/modscout/internal/tiebreak"
	anthropicpkg "github.com/modscout/modscout/pkg/anthropic"
	"github.com/modscout/modscout/pkg/notion"
)

// sessionEnv holds the initialized clients and the session used by the
// analyze/batch/serve commands.
type sessionEnv struct {
	Store   store.Store
	Session *session.Session
	Notion  notion.Client
}

// Close releases resources held by the environment.
func (e *sessionEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens the configured persistence backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return nil, eris.New("store.database_url is required for the postgres driver (MODSCOUT_STORE_DATABASE_URL)")
		}
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	case "", "sqlite":
		return store.NewSQLite(cfg.Store.SQLitePath)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// initSession sets up the store, API clients, and session, and installs the
// current database snapshot. Callers should defer env.Close().
func initSession(ctx context.Context) (*sessionEnv, error) {
	if cfg.Notion.Token == "" {
		return nil, eris.New("notion token is required (MODSCOUT_NOTION_TOKEN)")
	}
	if cfg.Notion.ModDB == "" {
		return nil, eris.New("notion mod DB ID is required (MODSCOUT_NOTION_MOD_DB)")
	}
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("anthropic key is required (MODSCOUT_ANTHROPIC_KEY)")
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	notionClient := notion.NewClient(cfg.Notion.Token, notion.WithRateLimit(cfg.Notion.RateLimit))
	aiClient := anthropicpkg.NewClient(cfg.Anthropic.Key)

	arbiter := tiebreak.NewArbiter(aiClient, cfg.Anthropic.Model, cfg.Tiebreak.ConfidenceThreshold)
	fetcher := fetch.NewHTTPFetcher(time.Duration(cfg.Fetch.TimeoutSecs) * time.Second)

	sess := session.New(fetcher, arbiter, st, session.Options{
		CandidateLimit: cfg.Match.CandidateLimit,
		GatePolicy: &gate.Policy{
			MinSlugTokens: cfg.Gate.MinSlugTokens,
			MinSlugChars:  cfg.Gate.MinSlugChars,
		},
	})

	// A snapshot-load failure is advisory: the pipeline still runs, it just
	// matches against an empty candidate set.
	snap, err := notion.LoadSnapshot(ctx, notionClient, cfg.Notion.ModDB)
	if err != nil {
		zap.L().Warn("snapshot load failed; continuing without candidates", zap.Error(err))
	} else {
		sess.SetSnapshot(snap)
		if err := st.SaveSnapshotMeta(ctx, store.SnapshotMeta{
			Fingerprint: snap.Fingerprint,
			EntryCount:  len(snap.Entries),
			LoadedAt:    snap.LoadedAt,
		}); err != nil {
			zap.L().Warn("save snapshot meta failed", zap.Error(err))
		}
	}

	return &sessionEnv{Store: st, Session: sess, Notion: notionClient}, nil
}

// hydrateLog seeds the session's in-memory log with every decision the store
// has recorded.
func hydrateLog(ctx context.Context, env *sessionEnv) error {
	decisions, err := env.Store.ListDecisions(ctx, store.DecisionFilter{})
	if err != nil {
		return err
	}
	env.Session.Hydrate(decisions)
	return nil
}
