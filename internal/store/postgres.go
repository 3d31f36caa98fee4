package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/modscout/modscout/internal/model"
)

// Pool abstracts the subset of pgxpool.Pool this store uses, so tests can
// substitute pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}

	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS decisions (
	identity_hash    TEXT PRIMARY KEY,
	identity         JSONB NOT NULL,
	candidates_count INTEGER NOT NULL DEFAULT 0,
	outcome          TEXT NOT NULL,
	reason           TEXT NOT NULL DEFAULT '',
	matched_id       TEXT,
	matched_url      TEXT,
	decided_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS audit_log (
	id            TEXT PRIMARY KEY,
	identity_hash TEXT NOT NULL,
	stage         TEXT NOT NULL,
	request       TEXT NOT NULL DEFAULT '',
	response      TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS snapshot_meta (
	id          INTEGER PRIMARY KEY CHECK (id = 1),
	fingerprint TEXT NOT NULL,
	entry_count INTEGER NOT NULL DEFAULT 0,
	loaded_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decisions_outcome ON decisions(outcome);
CREATE INDEX IF NOT EXISTS idx_audit_log_identity_hash ON audit_log(identity_hash);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) UpsertDecision(ctx context.Context, d model.Decision) error {
	identityJSON, err := json.Marshal(d.Identity)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal identity")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO decisions (identity_hash, identity, candidates_count, outcome, reason, matched_id, matched_url, decided_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (identity_hash) DO UPDATE SET
		   identity = EXCLUDED.identity,
		   candidates_count = EXCLUDED.candidates_count,
		   outcome = EXCLUDED.outcome,
		   reason = EXCLUDED.reason,
		   matched_id = EXCLUDED.matched_id,
		   matched_url = EXCLUDED.matched_url,
		   decided_at = EXCLUDED.decided_at`,
		d.IdentityHash, string(identityJSON), d.CandidatesCount, string(d.Outcome),
		d.Reason, nullable(d.MatchedID), nullable(d.MatchedURL), d.Timestamp.UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert decision %s", d.IdentityHash)
}

func (s *PostgresStore) GetDecision(ctx context.Context, identityHash string) (*model.Decision, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT identity_hash, identity, candidates_count, outcome, reason, matched_id, matched_url, decided_at
		 FROM decisions WHERE identity_hash = $1`, identityHash)

	d, err := scanDecision(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get decision %s", identityHash)
	}
	return d, nil
}

func (s *PostgresStore) ListDecisions(ctx context.Context, filter DecisionFilter) ([]model.Decision, error) {
	query := `SELECT identity_hash, identity, candidates_count, outcome, reason, matched_id, matched_url, decided_at FROM decisions`
	var args []any
	if filter.Outcome != "" {
		query += ` WHERE outcome = $1`
		args = append(args, string(filter.Outcome))
	}
	query += ` ORDER BY decided_at DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, len(args)+1)
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(` OFFSET $%d`, len(args)+1)
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list decisions")
	}
	defer rows.Close()

	var out []model.Decision
	for rows.Next() {
		d, err := scanDecision(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan decision")
		}
		out = append(out, *d)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list decisions rows")
}

func (s *PostgresStore) DeleteDecision(ctx context.Context, identityHash string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM decisions WHERE identity_hash = $1`, identityHash)
	return eris.Wrapf(err, "postgres: delete decision %s", identityHash)
}

func (s *PostgresStore) AppendAudit(ctx context.Context, entry model.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO audit_log (id, identity_hash, stage, request, response, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.IdentityHash, entry.Stage, entry.Request, entry.Response, entry.CreatedAt.UTC(),
	)
	return eris.Wrap(err, "postgres: append audit")
}

func (s *PostgresStore) ListAudit(ctx context.Context, identityHash string) ([]model.AuditEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, identity_hash, stage, request, response, created_at
		 FROM audit_log WHERE identity_hash = $1 ORDER BY created_at`, identityHash)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list audit %s", identityHash)
	}
	defer rows.Close()

	var out []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		if err := rows.Scan(&e.ID, &e.IdentityHash, &e.Stage, &e.Request, &e.Response, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan audit")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list audit rows")
}

func (s *PostgresStore) SaveSnapshotMeta(ctx context.Context, meta SnapshotMeta) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO snapshot_meta (id, fingerprint, entry_count, loaded_at) VALUES (1, $1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET
		   fingerprint = EXCLUDED.fingerprint,
		   entry_count = EXCLUDED.entry_count,
		   loaded_at = EXCLUDED.loaded_at`,
		meta.Fingerprint, meta.EntryCount, meta.LoadedAt.UTC(),
	)
	return eris.Wrap(err, "postgres: save snapshot meta")
}

func (s *PostgresStore) GetSnapshotMeta(ctx context.Context) (*SnapshotMeta, error) {
	var meta SnapshotMeta
	err := s.pool.QueryRow(ctx,
		`SELECT fingerprint, entry_count, loaded_at FROM snapshot_meta WHERE id = 1`,
	).Scan(&meta.Fingerprint, &meta.EntryCount, &meta.LoadedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get snapshot meta")
	}
	return &meta, nil
}
