package session

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/modscout/modscout/internal/model"
)

// ExportFile is the wholesale session backup format. There is no incremental
// or delta variant; the file is written and read in one piece.
type ExportFile struct {
	Meta              ExportMeta                `json:"meta"`
	KnownEntriesCache []model.Candidate         `json:"known_entries_cache"`
	MatchCache        map[string]model.Decision `json:"match_cache"`
	CanonicalLog      map[string]model.Decision `json:"canonical_log"`
}

// ExportMeta identifies the producing app and the snapshot generation.
type ExportMeta struct {
	App         string    `json:"app"`
	Version     string    `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	Fingerprint string    `json:"fingerprint"`
}

// Export serializes the session state to JSON.
func (s *Session) Export() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file := ExportFile{
		Meta: ExportMeta{
			App:       App,
			Version:   Version,
			CreatedAt: time.Now().UTC(),
		},
		MatchCache:   make(map[string]model.Decision, len(s.matchCache)),
		CanonicalLog: make(map[string]model.Decision, len(s.log)),
	}
	if s.snapshot != nil {
		file.KnownEntriesCache = s.snapshot.Entries
		file.Meta.Fingerprint = s.snapshot.Fingerprint
	} else {
		file.KnownEntriesCache = []model.Candidate{}
	}
	for k, v := range s.matchCache {
		file.MatchCache[k] = v
	}
	for k, v := range s.log {
		file.CanonicalLog[k] = v
	}

	out, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "session: marshal export")
	}
	return out, nil
}

// Import hydrates the session from an export file. The schema is validated
// before any state is touched: a malformed file is rejected wholesale and
// leaves the session exactly as it was.
func (s *Session) Import(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "session: import is not valid JSON")
	}
	for _, key := range []string{"meta", "known_entries_cache", "match_cache", "canonical_log"} {
		if _, ok := raw[key]; !ok {
			return eris.Errorf("session: import missing required key %q", key)
		}
	}

	var file ExportFile
	if err := json.Unmarshal(data, &file); err != nil {
		return eris.Wrap(err, "session: decode import")
	}
	if file.Meta.App != App {
		return eris.Errorf("session: import produced by %q, want %q", file.Meta.App, App)
	}

	snap := &model.Snapshot{
		Entries:     file.KnownEntriesCache,
		Fingerprint: model.Fingerprint(file.KnownEntriesCache),
		LoadedAt:    time.Now().UTC(),
	}
	if file.Meta.Fingerprint != "" && snap.Fingerprint != file.Meta.Fingerprint {
		// Entries were edited after export. Recomputed fingerprint wins;
		// the operator is told.
		zap.L().Warn("session: import fingerprint mismatch",
			zap.String("recorded", file.Meta.Fingerprint),
			zap.String("recomputed", snap.Fingerprint),
		)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snap
	s.matchCache = make(map[string]model.Decision)
	s.notFoundCache = make(map[string]model.Decision)
	s.log = make(map[string]model.Decision)
	for k, d := range file.CanonicalLog {
		s.log[k] = d
		if d.Found() {
			s.matchCache[k] = d
		} else {
			s.notFoundCache[k] = d
		}
	}
	// match_cache entries not present in the log are still honored.
	for k, d := range file.MatchCache {
		if _, ok := s.log[k]; !ok {
			s.log[k] = d
			s.matchCache[k] = d
		}
	}

	zap.L().Info("session: import complete",
		zap.Int("entries", len(snap.Entries)),
		zap.Int("decisions", len(s.log)),
	)
	return nil
}

// ExportXLSX writes the decision log as a spreadsheet for operator review.
func (s *Session) ExportXLSX(path string) error {
	decisions := s.Decisions()

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Decisions")
	if err != nil {
		return eris.Wrap(err, "session: add xlsx sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"Identity Hash", "URL", "Mod Name", "Creator", "Decision", "Reason", "Matched ID", "Candidates", "Decided At"} {
		header.AddCell().Value = h
	}

	for _, d := range decisions {
		row := sheet.AddRow()
		row.AddCell().Value = d.IdentityHash
		row.AddCell().Value = d.Identity.URL
		row.AddCell().Value = d.Identity.DisplayName()
		row.AddCell().Value = d.Identity.DisplayCreator()
		row.AddCell().Value = string(d.Outcome)
		row.AddCell().Value = d.Reason
		row.AddCell().Value = d.MatchedID
		row.AddCell().SetInt(d.CandidatesCount)
		row.AddCell().Value = d.Timestamp.UTC().Format(time.RFC3339)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "session: save xlsx")
	}
	return nil
}

// WriteExport writes the JSON export to disk.
func (s *Session) WriteExport(path string) error {
	data, err := s.Export()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrap(err, "session: write export")
	}
	return nil
}

// ReadImport loads an export file from disk into the session.
func (s *Session) ReadImport(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrap(err, "session: read import")
	}
	return s.Import(data)
}
