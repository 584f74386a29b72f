package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rumor-tracing/ledger-indexer/internal/models"
)

// MemoryStore is an in-memory Store with the same upsert semantics as the
// PostgreSQL implementation. It backs unit tests and the seed command.
type MemoryStore struct {
	mu            sync.RWMutex
	events        []models.RawEvent
	rumors        map[int64]*models.Rumor         // by chain id
	verifications map[int64]*models.Verification  // by chain id
	analysis      map[int64]*models.RumorAnalysis // by rumor internal id
	nextRumorID   int64
	nextVerifID   int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rumors:        make(map[int64]*models.Rumor),
		verifications: make(map[int64]*models.Verification),
		analysis:      make(map[int64]*models.RumorAnalysis),
	}
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() {}

// AppendRawEvent records one observed notification.
func (s *MemoryStore) AppendRawEvent(_ context.Context, ev *models.RawEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *ev
	stored.ID = int64(len(s.events) + 1)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	s.events = append(s.events, stored)
	return nil
}

// UpsertRumor inserts or overwrites a rumor keyed by chain id.
func (s *MemoryStore) UpsertRumor(_ context.Context, r *models.Rumor) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertRumorLocked(r), nil
}

func (s *MemoryStore) upsertRumorLocked(r *models.Rumor) int64 {
	existing, ok := s.rumors[r.ChainID]
	if !ok {
		s.nextRumorID++
		stored := *r
		stored.ID = s.nextRumorID
		stored.IngestedAt = time.Now().UTC()
		s.rumors[r.ChainID] = &stored
		return stored.ID
	}

	existing.Content = r.Content
	existing.Source = r.Source
	existing.Metadata = r.Metadata
	// A verified rumor is never reverted to unverified.
	if r.IsVerified {
		existing.IsVerified = true
		existing.VerificationResult = r.VerificationResult
		existing.VerifierAddress = r.VerifierAddress
		existing.VerifiedAt = r.VerifiedAt
	}
	return existing.ID
}

// UpsertVerification inserts or overwrites a verification keyed by chain
// id. The referenced rumor must already exist.
func (s *MemoryStore) UpsertVerification(_ context.Context, v *models.Verification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertVerificationLocked(v)
}

func (s *MemoryStore) upsertVerificationLocked(v *models.Verification) error {
	if s.findRumorByID(v.RumorID) == nil {
		return fmt.Errorf("rumor id %d: %w", v.RumorID, ErrDanglingReference)
	}

	existing, ok := s.verifications[v.ChainID]
	if !ok {
		s.nextVerifID++
		stored := *v
		stored.ID = s.nextVerifID
		stored.IngestedAt = time.Now().UTC()
		s.verifications[v.ChainID] = &stored
		return nil
	}

	existing.Result = v.Result
	existing.Evidence = v.Evidence
	existing.VerifierAddress = v.VerifierAddress
	existing.CreatedAt = v.CreatedAt
	return nil
}

// UpsertAnalysis records derived features once per rumor.
func (s *MemoryStore) UpsertAnalysis(_ context.Context, a *models.RumorAnalysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertAnalysisLocked(a)
	return nil
}

func (s *MemoryStore) upsertAnalysisLocked(a *models.RumorAnalysis) {
	if _, ok := s.analysis[a.RumorID]; ok {
		return
	}
	stored := *a
	stored.ID = int64(len(s.analysis) + 1)
	stored.CreatedAt = time.Now().UTC()
	s.analysis[a.RumorID] = &stored
}

func (s *MemoryStore) fillLatencyLocked(rumorID, seconds int64) {
	a, ok := s.analysis[rumorID]
	if ok && a.VerificationLatency == nil {
		a.VerificationLatency = &seconds
	}
}

// PersistRumor applies one decoded RumorCreated event atomically.
func (s *MemoryStore) PersistRumor(_ context.Context, r *models.Rumor, a *models.RumorAnalysis) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.upsertRumorLocked(r)
	a.RumorID = id
	s.upsertAnalysisLocked(a)
	if r.IsVerified && r.VerifiedAt != nil {
		s.fillLatencyLocked(id, int64(r.VerifiedAt.Sub(r.CreatedAt).Seconds()))
	}
	return id, nil
}

// PersistVerification applies one decoded RumorVerified event atomically.
func (s *MemoryStore) PersistVerification(_ context.Context, v *models.Verification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rumor, ok := s.rumors[v.ChainID]
	if !ok {
		return fmt.Errorf("rumor chain_id %d: %w", v.ChainID, ErrDanglingReference)
	}

	v.RumorID = rumor.ID
	if err := s.upsertVerificationLocked(v); err != nil {
		return err
	}

	rumor.IsVerified = true
	rumor.VerificationResult = v.Result
	rumor.VerifierAddress = v.VerifierAddress
	verifiedAt := v.CreatedAt
	rumor.VerifiedAt = &verifiedAt

	s.fillLatencyLocked(rumor.ID, int64(v.CreatedAt.Sub(rumor.CreatedAt).Seconds()))
	return nil
}

// GetRumorByChainID returns the rumor with the given chain id.
func (s *MemoryStore) GetRumorByChainID(_ context.Context, chainID int64) (*models.Rumor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rumors[chainID]
	if !ok {
		return nil, ErrRumorNotFound
	}
	copied := *r
	return &copied, nil
}

func (s *MemoryStore) findRumorByID(id int64) *models.Rumor {
	for _, r := range s.rumors {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// RumorCount returns the number of persisted rumor rows.
func (s *MemoryStore) RumorCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rumors)
}

// VerificationCount returns the number of persisted verification rows.
func (s *MemoryStore) VerificationCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.verifications)
}

// AnalysisByRumorID returns the analysis row for a rumor internal id.
func (s *MemoryStore) AnalysisByRumorID(rumorID int64) (*models.RumorAnalysis, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.analysis[rumorID]
	if !ok {
		return nil, false
	}
	copied := *a
	return &copied, true
}

// RawEventCount returns the number of appended raw events.
func (s *MemoryStore) RawEventCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// SourceTypeStats aggregates the analysis rows by classified source type.
func (s *MemoryStore) SourceTypeStats(_ context.Context) ([]models.SourceTypeStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type acc struct {
		count, lengths, words int64
		latencySum            int64
		latencyCount          int64
	}
	byType := make(map[models.SourceType]*acc)
	for _, a := range s.analysis {
		st, ok := byType[a.SourceType]
		if !ok {
			st = &acc{}
			byType[a.SourceType] = st
		}
		st.count++
		st.lengths += int64(a.ContentLength)
		st.words += int64(a.WordCount)
		if a.VerificationLatency != nil {
			st.latencySum += *a.VerificationLatency
			st.latencyCount++
		}
	}

	out := make([]models.SourceTypeStats, 0, len(byType))
	for sourceType, st := range byType {
		row := models.SourceTypeStats{
			SourceType: sourceType,
			Count:      st.count,
			AvgLength:  float64(st.lengths) / float64(st.count),
			AvgWords:   float64(st.words) / float64(st.count),
		}
		if st.latencyCount > 0 {
			row.AvgLatency = float64(st.latencySum) / float64(st.latencyCount)
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].SourceType < out[j].SourceType
	})
	return out, nil
}

// HourlyTrend counts raw events per kind per hour bucket.
func (s *MemoryStore) HourlyTrend(_ context.Context) ([]models.TrendBucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type key struct {
		hour time.Time
		kind models.EventKind
	}
	counts := make(map[key]int64)
	for _, ev := range s.events {
		k := key{hour: ev.CreatedAt.UTC().Truncate(time.Hour), kind: ev.Kind}
		counts[k]++
	}

	out := make([]models.TrendBucket, 0, len(counts))
	for k, n := range counts {
		out = append(out, models.TrendBucket{Hour: k.hour, Kind: k.kind, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Hour.Equal(out[j].Hour) {
			return out[i].Hour.Before(out[j].Hour)
		}
		return out[i].Kind < out[j].Kind
	})
	return out, nil
}

// KindCorrelation counts unordered pairs of distinct event kinds that
// share a transaction hash; each pair of rows is counted once.
func (s *MemoryStore) KindCorrelation(_ context.Context) ([]models.KindCorrelation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byTx := make(map[string][]models.EventKind)
	for _, ev := range s.events {
		byTx[ev.TxHash] = append(byTx[ev.TxHash], ev.Kind)
	}

	type pair struct{ a, b models.EventKind }
	counts := make(map[pair]int64)
	for _, kinds := range byTx {
		for i := 0; i < len(kinds); i++ {
			for j := i + 1; j < len(kinds); j++ {
				a, b := kinds[i], kinds[j]
				if a == b {
					continue
				}
				if b < a {
					a, b = b, a
				}
				counts[pair{a, b}]++
			}
		}
	}

	out := make([]models.KindCorrelation, 0, len(counts))
	for p, n := range counts {
		out = append(out, models.KindCorrelation{KindA: p.a, KindB: p.b, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].KindA != out[j].KindA {
			return out[i].KindA < out[j].KindA
		}
		return out[i].KindB < out[j].KindB
	})
	return out, nil
}

// EventSummary aggregates the raw events for the report header.
func (s *MemoryStore) EventSummary(_ context.Context) (*models.EventSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := &models.EventSummary{TotalEvents: int64(len(s.events))}
	kinds := make(map[models.EventKind]struct{})
	for i, ev := range s.events {
		kinds[ev.Kind] = struct{}{}
		if i == 0 || ev.BlockNumber < sum.FirstBlock {
			sum.FirstBlock = ev.BlockNumber
		}
		if ev.BlockNumber > sum.LastBlock {
			sum.LastBlock = ev.BlockNumber
		}
	}
	sum.DistinctKinds = int64(len(kinds))
	return sum, nil
}
