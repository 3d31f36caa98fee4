// Package session owns the mutable state of one analysis session: the
// database snapshot, the result caches, and the canonical decision log. It
// is the only place pipeline stages are wired together; everything it
// depends on is injected.
package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/modscout/modscout/internal/extract"
	"github.com/modscout/modscout/internal/fetch"
	"github.com/modscout/modscout/internal/gate"
	"github.com/modscout/modscout/internal/match"
	"github.com/modscout/modscout/internal/model"
	"github.com/modscout/modscout/internal/store"
	"github.com/modscout/modscout/internal/tiebreak"
)

// App and Version identify export files and logs.
const (
	App     = "modscout"
	Version = "0.4.1"
)

// TieBreaker is the AI fallback stage. *tiebreak.Arbiter satisfies it; tests
// substitute a fake.
type TieBreaker interface {
	Decide(ctx context.Context, identity model.Identity, candidates []model.Candidate) (model.Verdict, tiebreak.Exchange)
	Accept(v model.Verdict, candidates []model.Candidate) bool
	Threshold() float64
}

// Options configures pipeline policy for a session. A nil GatePolicy means
// the default; an explicit policy is honored as given, zeros included.
type Options struct {
	CandidateLimit int
	GatePolicy     *gate.Policy
}

// Session carries all per-session state. One long-lived Session per operator
// session, injected into every pipeline call.
type Session struct {
	fetcher    fetch.Fetcher
	arbiter    TieBreaker
	store      store.Store
	opts       Options
	gatePolicy gate.Policy

	mu            sync.Mutex
	snapshot      *model.Snapshot
	matchCache    map[string]model.Decision
	notFoundCache map[string]model.Decision
	log           map[string]model.Decision
}

// New creates a Session. The store may be nil for purely in-memory use.
func New(fetcher fetch.Fetcher, arbiter TieBreaker, st store.Store, opts Options) *Session {
	if opts.CandidateLimit <= 0 {
		opts.CandidateLimit = match.DefaultCap
	}
	policy := gate.DefaultPolicy()
	if opts.GatePolicy != nil {
		policy = *opts.GatePolicy
	}
	return &Session{
		fetcher:       fetcher,
		arbiter:       arbiter,
		store:         st,
		opts:          opts,
		gatePolicy:    policy,
		matchCache:    make(map[string]model.Decision),
		notFoundCache: make(map[string]model.Decision),
		log:           make(map[string]model.Decision),
	}
}

// SetSnapshot installs a freshly loaded snapshot. The session treats it as
// immutable until the operator refreshes it again.
func (s *Session) SetSnapshot(snap *model.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snap
}

// Snapshot returns the installed snapshot, or nil.
func (s *Session) Snapshot() *model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Analyze runs one URL through the full pipeline: fetch, extract, cache
// short-circuit, deterministic match, gate, AI tie-break, record. It returns
// a Decision for every input; failures along the way degrade the result
// rather than aborting it.
func (s *Session) Analyze(ctx context.Context, url string) (model.Decision, error) {
	body, status := s.fetcher.Fetch(ctx, url)
	identity := extract.Extract(body, url)
	hash := identity.Hash()

	log := zap.L().With(
		zap.String("url", url),
		zap.String("identity_hash", hash[:12]),
	)
	log.Info("analyzing",
		zap.String("mod_name", identity.ModName),
		zap.Int("fetch_status", status),
		zap.Bool("blocked", identity.Debug.IsBlocked),
	)

	// An already-decided hash short-circuits everything downstream of the
	// extractor. No TTL: eviction is an explicit operator action.
	if d, ok := s.cached(ctx, hash); ok {
		log.Info("cache hit", zap.String("decision", string(d.Outcome)))
		return d, nil
	}

	entries := s.snapshotEntries()
	candidates := match.Match(identity, entries, s.opts.CandidateLimit)

	decision := s.resolve(ctx, identity, hash, candidates, entries)
	s.record(ctx, decision)

	log.Info("decided",
		zap.String("decision", string(decision.Outcome)),
		zap.String("reason", decision.Reason),
		zap.Int("candidates", decision.CandidatesCount),
	)
	return decision, nil
}

// resolve applies the decision policy to the matcher output. Deterministic
// candidates always bypass the AI stage; a deterministic match is accepted
// only when it is unique.
func (s *Session) resolve(ctx context.Context, identity model.Identity, hash string, candidates, entries []model.Candidate) model.Decision {
	d := model.Decision{
		IdentityHash:    hash,
		Identity:        identity,
		CandidatesCount: len(candidates),
		Timestamp:       time.Now().UTC(),
	}

	switch {
	case len(candidates) == 1:
		d.Outcome = model.OutcomeFound
		d.Reason = "Deterministic match"
		d.MatchedID = candidates[0].ID
		d.MatchedURL = candidates[0].URL
		return d

	case len(candidates) > 1:
		// Insertion order is not a tie-break policy. Multiple deterministic
		// candidates stay unresolved until the operator intervenes.
		d.Outcome = model.OutcomeNotFound
		d.Reason = fmt.Sprintf("Ambiguous: %d deterministic candidates", len(candidates))
		return d
	}

	if !gate.ShouldInvoke(identity.Debug, len(candidates), s.gatePolicy) {
		d.Outcome = model.OutcomeNotFound
		d.Reason = "No deterministic match"
		return d
	}

	// The matcher came up empty, so the model is offered the snapshot
	// entries themselves, capped like the deterministic scan. Acceptance
	// still requires the verdict to name one of the offered entries.
	offered := entries
	if len(offered) > s.opts.CandidateLimit {
		offered = offered[:s.opts.CandidateLimit]
	}

	verdict, exchange := s.arbiter.Decide(ctx, identity, offered)
	s.audit(ctx, hash, "ai_fallback", exchange.Request, exchange.Response)

	if s.arbiter.Accept(verdict, offered) {
		d.Outcome = model.OutcomeFound
		d.Reason = fmt.Sprintf("AI match (confidence %.2f)", verdict.Confidence)
		d.MatchedID = verdict.MatchedID
		for _, c := range offered {
			if c.ID == verdict.MatchedID {
				d.MatchedURL = c.URL
			}
		}
		return d
	}

	d.Outcome = model.OutcomeNotFound
	if verdict.Match {
		d.Reason = fmt.Sprintf("AI verdict below threshold (%.2f < %.2f)", verdict.Confidence, s.arbiter.Threshold())
	} else {
		d.Reason = "AI verdict: no match"
	}
	return d
}

// cached looks the hash up in the in-memory caches, then the store. A store
// hit rehydrates the session caches.
func (s *Session) cached(ctx context.Context, hash string) (model.Decision, bool) {
	s.mu.Lock()
	if d, ok := s.matchCache[hash]; ok {
		s.mu.Unlock()
		return d, true
	}
	if d, ok := s.notFoundCache[hash]; ok {
		s.mu.Unlock()
		return d, true
	}
	s.mu.Unlock()

	if s.store == nil {
		return model.Decision{}, false
	}
	d, err := s.store.GetDecision(ctx, hash)
	if err != nil {
		zap.L().Warn("session: store lookup failed", zap.Error(err))
		return model.Decision{}, false
	}
	if d == nil {
		return model.Decision{}, false
	}
	s.insert(*d)
	return *d, true
}

// record upserts the decision into exactly one result cache, the canonical
// log, and the store.
func (s *Session) record(ctx context.Context, d model.Decision) {
	s.insert(d)
	if s.store != nil {
		if err := s.store.UpsertDecision(ctx, d); err != nil {
			zap.L().Warn("session: persist decision failed",
				zap.String("identity_hash", d.IdentityHash),
				zap.Error(err),
			)
		}
	}
}

func (s *Session) insert(d model.Decision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// A hash lives in at most one cache at a time.
	delete(s.matchCache, d.IdentityHash)
	delete(s.notFoundCache, d.IdentityHash)
	if d.Found() {
		s.matchCache[d.IdentityHash] = d
	} else {
		s.notFoundCache[d.IdentityHash] = d
	}
	s.log[d.IdentityHash] = d
}

// Hydrate seeds the caches and log with previously recorded decisions,
// without writing anything back to the store.
func (s *Session) Hydrate(decisions []model.Decision) {
	for _, d := range decisions {
		s.insert(d)
	}
}

// Evict removes a decided hash from both caches and the log so the next
// analysis recomputes it. This is the only supported re-classification path.
func (s *Session) Evict(ctx context.Context, hash string) error {
	s.mu.Lock()
	delete(s.matchCache, hash)
	delete(s.notFoundCache, hash)
	delete(s.log, hash)
	s.mu.Unlock()

	if s.store == nil {
		return nil
	}
	return s.store.DeleteDecision(ctx, hash)
}

// Decisions returns the canonical log, newest first.
func (s *Session) Decisions() []model.Decision {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Decision, 0, len(s.log))
	for _, d := range s.log {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

func (s *Session) snapshotEntries() []model.Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil {
		zap.L().Warn("session: no snapshot loaded; matching against empty candidate set")
		return nil
	}
	return s.snapshot.Entries
}

func (s *Session) audit(ctx context.Context, hash, stage, request, response string) {
	if s.store == nil {
		return
	}
	err := s.store.AppendAudit(ctx, model.AuditEntry{
		IdentityHash: hash,
		Stage:        stage,
		Request:      request,
		Response:     response,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		zap.L().Warn("session: audit append failed", zap.Error(err))
	}
}
