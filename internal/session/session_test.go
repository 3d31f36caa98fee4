package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modscout/modscout/internal/gate"
	"github.com/modscout/modscout/internal/model"
	"github.com/modscout/modscout/internal/store"
	"github.com/modscout/modscout/internal/tiebreak"
)

type fakeFetcher struct {
	pages map[string]string
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (string, int) {
	f.calls++
	body, ok := f.pages[url]
	if !ok {
		return "", 0
	}
	return body, 200
}

type fakeTieBreaker struct {
	verdict model.Verdict
	calls   int
	offered []model.Candidate
}

func (f *fakeTieBreaker) Decide(_ context.Context, _ model.Identity, candidates []model.Candidate) (model.Verdict, tiebreak.Exchange) {
	f.calls++
	f.offered = candidates
	return f.verdict, tiebreak.Exchange{Request: "req", Response: "resp"}
}

func (f *fakeTieBreaker) Accept(v model.Verdict, candidates []model.Candidate) bool {
	if !v.Match || v.Confidence < f.Threshold() {
		return false
	}
	for _, c := range candidates {
		if c.ID == v.MatchedID {
			return true
		}
	}
	return false
}

func (f *fakeTieBreaker) Threshold() float64 { return 0.93 }

// memStore is an in-memory Store for exercising the persistence wiring.
type memStore struct {
	mu        sync.Mutex
	decisions map[string]model.Decision
	audits    []model.AuditEntry
	meta      *store.SnapshotMeta
}

func newMemStore() *memStore {
	return &memStore{decisions: make(map[string]model.Decision)}
}

func (m *memStore) UpsertDecision(_ context.Context, d model.Decision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions[d.IdentityHash] = d
	return nil
}

func (m *memStore) GetDecision(_ context.Context, hash string) (*model.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.decisions[hash]; ok {
		return &d, nil
	}
	return nil, nil
}

func (m *memStore) ListDecisions(_ context.Context, _ store.DecisionFilter) ([]model.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Decision, 0, len(m.decisions))
	for _, d := range m.decisions {
		out = append(out, d)
	}
	return out, nil
}

func (m *memStore) DeleteDecision(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.decisions, hash)
	return nil
}

func (m *memStore) AppendAudit(_ context.Context, e model.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits = append(m.audits, e)
	return nil
}

func (m *memStore) ListAudit(_ context.Context, hash string) ([]model.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.AuditEntry
	for _, e := range m.audits {
		if e.IdentityHash == hash {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) SaveSnapshotMeta(_ context.Context, meta store.SnapshotMeta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meta = &meta
	return nil
}

func (m *memStore) GetSnapshotMeta(_ context.Context) (*store.SnapshotMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.meta, nil
}

func (m *memStore) Migrate(_ context.Context) error { return nil }
func (m *memStore) Close() error                    { return nil }

func snapshotOf(entries ...model.Candidate) *model.Snapshot {
	return &model.Snapshot{
		Entries:     entries,
		Fingerprint: model.Fingerprint(entries),
		LoadedAt:    time.Now().UTC(),
	}
}

func TestAnalyze_DeterministicMatch(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.com/cool-mod": `<html><head><title>Cool Mod — by Jane</title></head><body>ok</body></html>`,
	}}
	tb := &fakeTieBreaker{}
	s := New(fetcher, tb, nil, Options{})
	s.SetSnapshot(snapshotOf(
		model.Candidate{ID: "c1", Title: "Cool Mod", URL: "https://example.com/cool-mod"},
		model.Candidate{ID: "c2", Title: "Unrelated Thing"},
	))

	d, err := s.Analyze(context.Background(), "https://example.com/cool-mod")
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeFound, d.Outcome)
	assert.Equal(t, "Deterministic match", d.Reason)
	assert.Equal(t, "c1", d.MatchedID)
	assert.Equal(t, "Cool Mod", d.Identity.ModName)
	assert.Equal(t, "example.com", d.Identity.Creator)
	assert.Equal(t, 0, tb.calls)
}

func TestAnalyze_BlockedPageResolvedByAI(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.com/xyz": `<html><head><title>Just a moment...</title></head><body>Checking your browser</body></html>`,
	}}
	tb := &fakeTieBreaker{verdict: model.Verdict{Match: true, Confidence: 0.97, MatchedID: "c9"}}
	st := newMemStore()
	s := New(fetcher, tb, st, Options{})
	s.SetSnapshot(snapshotOf(
		model.Candidate{ID: "c9", Title: "Totally Different Name", URL: "https://other.net/mod"},
	))

	d, err := s.Analyze(context.Background(), "https://example.com/xyz")
	require.NoError(t, err)

	// The matcher found nothing, so the model is offered the snapshot and
	// its verdict can resolve the page.
	assert.Equal(t, model.OutcomeFound, d.Outcome)
	assert.Equal(t, "AI match (confidence 0.97)", d.Reason)
	assert.Equal(t, "c9", d.MatchedID)
	assert.Equal(t, "https://other.net/mod", d.MatchedURL)
	assert.Equal(t, 0, d.CandidatesCount)
	assert.Equal(t, 1, tb.calls)
	require.Len(t, tb.offered, 1)
	assert.Equal(t, "c9", tb.offered[0].ID)

	// The exchange is audited regardless of outcome.
	audits, err := st.ListAudit(context.Background(), d.IdentityHash)
	require.NoError(t, err)
	require.Len(t, audits, 1)
	assert.Equal(t, "ai_fallback", audits[0].Stage)
}

func TestAnalyze_AIVerdictOutsideOfferedRejected(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.com/xyz": `<html><head><title>Just a moment...</title></head><body>Checking your browser</body></html>`,
	}}
	tb := &fakeTieBreaker{verdict: model.Verdict{Match: true, Confidence: 0.99, MatchedID: "ghost"}}
	s := New(fetcher, tb, nil, Options{})
	s.SetSnapshot(snapshotOf(model.Candidate{ID: "c9", Title: "Totally Different Name"}))

	d, err := s.Analyze(context.Background(), "https://example.com/xyz")
	require.NoError(t, err)

	// A hallucinated ID never resolves, no matter the confidence.
	assert.Equal(t, model.OutcomeNotFound, d.Outcome)
	assert.Empty(t, d.MatchedID)
	assert.Equal(t, 1, tb.calls)
}

func TestAnalyze_AIOfferCapped(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.com/xyz": `<html><head><title>Just a moment...</title></head><body>Checking your browser</body></html>`,
	}}
	tb := &fakeTieBreaker{}
	s := New(fetcher, tb, nil, Options{CandidateLimit: 2})
	s.SetSnapshot(snapshotOf(
		model.Candidate{ID: "c1", Title: "One"},
		model.Candidate{ID: "c2", Title: "Two"},
		model.Candidate{ID: "c3", Title: "Three"},
	))

	_, err := s.Analyze(context.Background(), "https://example.com/xyz")
	require.NoError(t, err)
	assert.Len(t, tb.offered, 2)
}

func TestAnalyze_AmbiguousNeverReachesAI(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.com/p": `<html><head><title>Cool Mod</title></head><body></body></html>`,
	}}
	tb := &fakeTieBreaker{}
	s := New(fetcher, tb, nil, Options{})
	s.SetSnapshot(snapshotOf(
		model.Candidate{ID: "c1", Title: "Cool Mod"},
		model.Candidate{ID: "c2", Title: "Cool Mod Deluxe"},
	))

	d, err := s.Analyze(context.Background(), "https://example.com/p")
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeNotFound, d.Outcome)
	assert.Equal(t, "Ambiguous: 2 deterministic candidates", d.Reason)
	assert.Empty(t, d.MatchedID)
	assert.Equal(t, 0, tb.calls)
}

func TestAnalyze_GateClosedSkipsAI(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.com/super-speed-mod": `<html><head><title>Super Speed Mod</title></head><body></body></html>`,
	}}
	tb := &fakeTieBreaker{}
	s := New(fetcher, tb, nil, Options{})
	s.SetSnapshot(snapshotOf(model.Candidate{ID: "c1", Title: "Unrelated"}))

	d, err := s.Analyze(context.Background(), "https://example.com/super-speed-mod")
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeNotFound, d.Outcome)
	assert.Equal(t, "No deterministic match", d.Reason)
	assert.Equal(t, 0, tb.calls)
}

func TestAnalyze_ZeroGatePolicyHonored(t *testing.T) {
	// A short single-token slug would trip the default gate; an explicit
	// all-zero policy disables the slug branch instead of being replaced
	// with the defaults.
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.com/xyz": `<html><head><title>Some Page</title></head><body></body></html>`,
	}}
	tb := &fakeTieBreaker{}
	s := New(fetcher, tb, nil, Options{GatePolicy: &gate.Policy{}})
	s.SetSnapshot(snapshotOf())

	d, err := s.Analyze(context.Background(), "https://example.com/xyz")
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeNotFound, d.Outcome)
	assert.Equal(t, "No deterministic match", d.Reason)
	assert.Equal(t, 0, tb.calls)
}

func TestAnalyze_Idempotent(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.com/abc": `<html><head><title>Just a moment...</title></head><body>cloudflare</body></html>`,
	}}
	tb := &fakeTieBreaker{verdict: model.Verdict{Match: false, Confidence: 0.1}}
	s := New(fetcher, tb, nil, Options{})
	s.SetSnapshot(snapshotOf())

	first, err := s.Analyze(context.Background(), "https://example.com/abc")
	require.NoError(t, err)
	second, err := s.Analyze(context.Background(), "https://example.com/abc")
	require.NoError(t, err)

	// Same hash, one model call, identical decision including timestamp.
	assert.Equal(t, first, second)
	assert.Equal(t, 1, tb.calls)
	assert.Len(t, s.Decisions(), 1)
}

func TestAnalyze_RehydratesFromStore(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.com/cool-mod": `<html><head><title>Cool Mod</title></head><body></body></html>`,
	}}
	st := newMemStore()
	tb := &fakeTieBreaker{}

	first := New(fetcher, tb, st, Options{})
	first.SetSnapshot(snapshotOf(model.Candidate{ID: "c1", Title: "Cool Mod"}))
	d1, err := first.Analyze(context.Background(), "https://example.com/cool-mod")
	require.NoError(t, err)
	require.True(t, d1.Found())

	// A fresh session with an empty snapshot still honors the persisted
	// decision instead of recomputing NOT_FOUND.
	second := New(fetcher, tb, st, Options{})
	second.SetSnapshot(snapshotOf())
	d2, err := second.Analyze(context.Background(), "https://example.com/cool-mod")
	require.NoError(t, err)

	assert.Equal(t, d1.IdentityHash, d2.IdentityHash)
	assert.Equal(t, model.OutcomeFound, d2.Outcome)
	assert.Equal(t, "c1", d2.MatchedID)
}

func TestEvict_ForcesRecompute(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.com/cool-mod": `<html><head><title>Cool Mod</title></head><body></body></html>`,
	}}
	st := newMemStore()
	s := New(fetcher, &fakeTieBreaker{}, st, Options{})
	s.SetSnapshot(snapshotOf(model.Candidate{ID: "c1", Title: "Cool Mod"}))

	d1, err := s.Analyze(context.Background(), "https://example.com/cool-mod")
	require.NoError(t, err)
	require.True(t, d1.Found())

	require.NoError(t, s.Evict(context.Background(), d1.IdentityHash))
	assert.Empty(t, s.Decisions())

	// Snapshot changed while evicted; recompute sees the new world.
	s.SetSnapshot(snapshotOf())
	d2, err := s.Analyze(context.Background(), "https://example.com/cool-mod")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeNotFound, d2.Outcome)
}

func TestDecisions_NewestFirst(t *testing.T) {
	s := New(&fakeFetcher{}, &fakeTieBreaker{}, nil, Options{})
	base := time.Now().UTC()
	s.Hydrate([]model.Decision{
		{IdentityHash: "old", Outcome: model.OutcomeNotFound, Timestamp: base.Add(-2 * time.Hour)},
		{IdentityHash: "new", Outcome: model.OutcomeFound, Timestamp: base},
		{IdentityHash: "mid", Outcome: model.OutcomeFound, Timestamp: base.Add(-1 * time.Hour)},
	})

	got := s.Decisions()
	require.Len(t, got, 3)
	assert.Equal(t, "new", got[0].IdentityHash)
	assert.Equal(t, "mid", got[1].IdentityHash)
	assert.Equal(t, "old", got[2].IdentityHash)
}

func TestAnalyze_NoSnapshot(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.com/some-great-mod": `<html><head><title>Some Great Mod</title></head><body></body></html>`,
	}}
	tb := &fakeTieBreaker{}
	s := New(fetcher, tb, nil, Options{})

	d, err := s.Analyze(context.Background(), "https://example.com/some-great-mod")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeNotFound, d.Outcome)
	assert.Equal(t, 0, d.CandidatesCount)
}
