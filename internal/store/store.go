// Package store persists decisions and the external-call audit log. Two
// backends: SQLite for single-operator use, Postgres for shared deployments.
package store

import (
	"context"
	"time"

	"github.com/modscout/modscout/internal/model"
)

// DecisionFilter specifies criteria for listing decisions.
type DecisionFilter struct {
	Outcome model.Outcome `json:"outcome,omitempty"`
	Limit   int           `json:"limit,omitempty"`
	Offset  int           `json:"offset,omitempty"`
}

// SnapshotMeta records what snapshot the session last worked against. The
// fingerprint mismatch between stored and live is surfaced to the operator,
// never acted on automatically.
type SnapshotMeta struct {
	Fingerprint string    `json:"fingerprint"`
	EntryCount  int       `json:"entry_count"`
	LoadedAt    time.Time `json:"loaded_at"`
}

// Store defines the persistence interface for the dedup pipeline.
type Store interface {
	// Decisions: one row per identity hash, upsert semantics.
	UpsertDecision(ctx context.Context, d model.Decision) error
	GetDecision(ctx context.Context, identityHash string) (*model.Decision, error)
	ListDecisions(ctx context.Context, filter DecisionFilter) ([]model.Decision, error)
	DeleteDecision(ctx context.Context, identityHash string) error

	// Audit log: append-only raw exchanges with external services.
	AppendAudit(ctx context.Context, entry model.AuditEntry) error
	ListAudit(ctx context.Context, identityHash string) ([]model.AuditEntry, error)

	// Snapshot bookkeeping.
	SaveSnapshotMeta(ctx context.Context, meta SnapshotMeta) error
	GetSnapshotMeta(ctx context.Context) (*SnapshotMeta, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
