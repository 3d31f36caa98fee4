package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/modscout/modscout/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS decisions (
	identity_hash    TEXT PRIMARY KEY,
	identity         TEXT NOT NULL,
	candidates_count INTEGER NOT NULL DEFAULT 0,
	outcome          TEXT NOT NULL,
	reason           TEXT NOT NULL DEFAULT '',
	matched_id       TEXT,
	matched_url      TEXT,
	decided_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS audit_log (
	id            TEXT PRIMARY KEY,
	identity_hash TEXT NOT NULL,
	stage         TEXT NOT NULL,
	request       TEXT NOT NULL DEFAULT '',
	response      TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS snapshot_meta (
	id          INTEGER PRIMARY KEY CHECK (id = 1),
	fingerprint TEXT NOT NULL,
	entry_count INTEGER NOT NULL DEFAULT 0,
	loaded_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decisions_outcome ON decisions(outcome);
CREATE INDEX IF NOT EXISTS idx_audit_log_identity_hash ON audit_log(identity_hash);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertDecision(ctx context.Context, d model.Decision) error {
	identityJSON, err := json.Marshal(d.Identity)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal identity")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO decisions (identity_hash, identity, candidates_count, outcome, reason, matched_id, matched_url, decided_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(identity_hash) DO UPDATE SET
		   identity = excluded.identity,
		   candidates_count = excluded.candidates_count,
		   outcome = excluded.outcome,
		   reason = excluded.reason,
		   matched_id = excluded.matched_id,
		   matched_url = excluded.matched_url,
		   decided_at = excluded.decided_at`,
		d.IdentityHash, string(identityJSON), d.CandidatesCount, string(d.Outcome),
		d.Reason, nullable(d.MatchedID), nullable(d.MatchedURL), d.Timestamp.UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert decision %s", d.IdentityHash)
}

func (s *SQLiteStore) GetDecision(ctx context.Context, identityHash string) (*model.Decision, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT identity_hash, identity, candidates_count, outcome, reason, matched_id, matched_url, decided_at
		 FROM decisions WHERE identity_hash = ?`, identityHash)

	d, err := scanDecision(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get decision %s", identityHash)
	}
	return d, nil
}

func (s *SQLiteStore) ListDecisions(ctx context.Context, filter DecisionFilter) ([]model.Decision, error) {
	query := `SELECT identity_hash, identity, candidates_count, outcome, reason, matched_id, matched_url, decided_at FROM decisions`
	var args []any
	if filter.Outcome != "" {
		query += ` WHERE outcome = ?`
		args = append(args, string(filter.Outcome))
	}
	query += ` ORDER BY decided_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list decisions")
	}
	defer rows.Close()

	var out []model.Decision
	for rows.Next() {
		d, err := scanDecision(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan decision")
		}
		out = append(out, *d)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list decisions rows")
}

func (s *SQLiteStore) DeleteDecision(ctx context.Context, identityHash string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM decisions WHERE identity_hash = ?`, identityHash)
	return eris.Wrapf(err, "sqlite: delete decision %s", identityHash)
}

func (s *SQLiteStore) AppendAudit(ctx context.Context, entry model.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, identity_hash, stage, request, response, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.IdentityHash, entry.Stage, entry.Request, entry.Response, entry.CreatedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: append audit")
}

func (s *SQLiteStore) ListAudit(ctx context.Context, identityHash string) ([]model.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, identity_hash, stage, request, response, created_at
		 FROM audit_log WHERE identity_hash = ? ORDER BY created_at`, identityHash)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list audit %s", identityHash)
	}
	defer rows.Close()

	var out []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		if err := rows.Scan(&e.ID, &e.IdentityHash, &e.Stage, &e.Request, &e.Response, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan audit")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list audit rows")
}

func (s *SQLiteStore) SaveSnapshotMeta(ctx context.Context, meta SnapshotMeta) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshot_meta (id, fingerprint, entry_count, loaded_at) VALUES (1, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   fingerprint = excluded.fingerprint,
		   entry_count = excluded.entry_count,
		   loaded_at = excluded.loaded_at`,
		meta.Fingerprint, meta.EntryCount, meta.LoadedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: save snapshot meta")
}

func (s *SQLiteStore) GetSnapshotMeta(ctx context.Context) (*SnapshotMeta, error) {
	var meta SnapshotMeta
	err := s.db.QueryRowContext(ctx,
		`SELECT fingerprint, entry_count, loaded_at FROM snapshot_meta WHERE id = 1`,
	).Scan(&meta.Fingerprint, &meta.EntryCount, &meta.LoadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get snapshot meta")
	}
	return &meta, nil
}

// scanDecision reads one decisions row via the given Scan func.
func scanDecision(scan func(dest ...any) error) (*model.Decision, error) {
	var d model.Decision
	var identityJSON string
	var outcome string
	var matchedID, matchedURL sql.NullString

	if err := scan(&d.IdentityHash, &identityJSON, &d.CandidatesCount, &outcome,
		&d.Reason, &matchedID, &matchedURL, &d.Timestamp); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(identityJSON), &d.Identity); err != nil {
		return nil, eris.Wrap(err, "unmarshal identity")
	}
	d.Outcome = model.Outcome(outcome)
	d.MatchedID = matchedID.String
	d.MatchedURL = matchedURL.String
	return &d, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
