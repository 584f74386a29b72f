package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rumor-tracing/ledger-indexer/internal/models"
)

func newRumor(chainID int64, content, source string, createdAt time.Time) *models.Rumor {
	return &models.Rumor{
		ChainID:        chainID,
		Content:        content,
		Source:         source,
		CreatorAddress: "0xc1",
		CreatedAt:      createdAt,
	}
}

func TestPersistRumorIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	id1, err := store.PersistRumor(ctx, newRumor(1, "hello world", "weibo.com", created),
		&models.RumorAnalysis{ContentLength: 11, WordCount: 2, SourceType: models.SourceSocialMedia})
	require.NoError(t, err)

	id2, err := store.PersistRumor(ctx, newRumor(1, "hello world", "weibo.com", created),
		&models.RumorAnalysis{ContentLength: 11, WordCount: 2, SourceType: models.SourceSocialMedia})
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Equal(t, 1, store.RumorCount())
}

func TestPersistVerificationMarksRumorVerified(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	id, err := store.PersistRumor(ctx, newRumor(1, "hello world", "weibo.com", created),
		&models.RumorAnalysis{ContentLength: 11, WordCount: 2, SourceType: models.SourceSocialMedia})
	require.NoError(t, err)

	require.NoError(t, store.PersistVerification(ctx, &models.Verification{
		ChainID:         1,
		Result:          "confirmed",
		VerifierAddress: "0xv1",
		CreatedAt:       created.Add(2 * time.Minute),
	}))

	rumor, err := store.GetRumorByChainID(ctx, 1)
	require.NoError(t, err)
	assert.True(t, rumor.IsVerified)
	assert.Equal(t, "confirmed", rumor.VerificationResult)
	require.NotNil(t, rumor.VerifiedAt)

	a, ok := store.AnalysisByRumorID(id)
	require.True(t, ok)
	require.NotNil(t, a.VerificationLatency)
	assert.Equal(t, int64(120), *a.VerificationLatency)
}

func TestPersistVerificationDangling(t *testing.T) {
	store := NewMemoryStore()

	err := store.PersistVerification(context.Background(), &models.Verification{
		ChainID: 404, Result: "confirmed", CreatedAt: time.Now(),
	})
	require.ErrorIs(t, err, ErrDanglingReference)
	assert.Equal(t, 0, store.VerificationCount())
}

func TestVerificationLatencyIsWriteOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	id, err := store.PersistRumor(ctx, newRumor(1, "x", "example.org", created),
		&models.RumorAnalysis{ContentLength: 1, WordCount: 1, SourceType: models.SourceOther})
	require.NoError(t, err)

	require.NoError(t, store.PersistVerification(ctx, &models.Verification{
		ChainID: 1, Result: "confirmed", CreatedAt: created.Add(time.Minute),
	}))

	// A redelivered verification with a later timestamp does not move the
	// recorded latency.
	require.NoError(t, store.PersistVerification(ctx, &models.Verification{
		ChainID: 1, Result: "confirmed", CreatedAt: created.Add(time.Hour),
	}))

	a, ok := store.AnalysisByRumorID(id)
	require.True(t, ok)
	require.NotNil(t, a.VerificationLatency)
	assert.Equal(t, int64(60), *a.VerificationLatency)
}

func TestUpsertRumorNeverRevertsVerified(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	_, err := store.PersistRumor(ctx, newRumor(1, "x", "example.org", created),
		&models.RumorAnalysis{ContentLength: 1, WordCount: 1, SourceType: models.SourceOther})
	require.NoError(t, err)
	require.NoError(t, store.PersistVerification(ctx, &models.Verification{
		ChainID: 1, Result: "confirmed", CreatedAt: created.Add(time.Minute),
	}))

	// Replay of the original creation event, unverified.
	_, err = store.UpsertRumor(ctx, newRumor(1, "x", "example.org", created))
	require.NoError(t, err)

	rumor, err := store.GetRumorByChainID(ctx, 1)
	require.NoError(t, err)
	assert.True(t, rumor.IsVerified)
	assert.Equal(t, "confirmed", rumor.VerificationResult)
}

func TestUpsertAnalysisIsInsertOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	id, err := store.UpsertRumor(ctx, newRumor(1, "abc", "example.org", time.Now()))
	require.NoError(t, err)

	require.NoError(t, store.UpsertAnalysis(ctx, &models.RumorAnalysis{
		RumorID: id, ContentLength: 3, WordCount: 1, SourceType: models.SourceOther,
	}))
	require.NoError(t, store.UpsertAnalysis(ctx, &models.RumorAnalysis{
		RumorID: id, ContentLength: 99, WordCount: 9, SourceType: models.SourceForum,
	}))

	a, ok := store.AnalysisByRumorID(id)
	require.True(t, ok)
	assert.Equal(t, 3, a.ContentLength)
	assert.Equal(t, models.SourceOther, a.SourceType)
}

func TestGetRumorByChainIDNotFound(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.GetRumorByChainID(context.Background(), 1)
	assert.ErrorIs(t, err, ErrRumorNotFound)
}

func TestKindCorrelationCountsUnorderedPairsOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now().UTC()

	// Two events on one tx, in both delivery orders across two txs.
	for _, ev := range []models.RawEvent{
		{Kind: models.EventRumorCreated, TxHash: "0xaa", BlockNumber: 1, CreatedAt: now},
		{Kind: models.EventRumorVerified, TxHash: "0xaa", BlockNumber: 1, CreatedAt: now},
		{Kind: models.EventRumorVerified, TxHash: "0xbb", BlockNumber: 2, CreatedAt: now},
		{Kind: models.EventRumorCreated, TxHash: "0xbb", BlockNumber: 2, CreatedAt: now},
	} {
		e := ev
		require.NoError(t, store.AppendRawEvent(ctx, &e))
	}

	correlations, err := store.KindCorrelation(ctx)
	require.NoError(t, err)
	require.Len(t, correlations, 1)

	// Pair is normalized to a stable order regardless of delivery order.
	assert.Equal(t, models.EventRumorCreated, correlations[0].KindA)
	assert.Equal(t, models.EventRumorVerified, correlations[0].KindB)
	assert.Equal(t, int64(2), correlations[0].Count)
}

func TestHourlyTrendBucketsByHour(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for _, offset := range []time.Duration{0, 30 * time.Minute, 90 * time.Minute} {
		ev := models.RawEvent{
			Kind: models.EventRumorCreated, TxHash: "0x1",
			BlockNumber: 1, CreatedAt: base.Add(offset),
		}
		require.NoError(t, store.AppendRawEvent(ctx, &ev))
	}

	trend, err := store.HourlyTrend(ctx)
	require.NoError(t, err)
	require.Len(t, trend, 2)
	assert.Equal(t, base, trend[0].Hour)
	assert.Equal(t, int64(2), trend[0].Count)
	assert.Equal(t, base.Add(time.Hour), trend[1].Hour)
	assert.Equal(t, int64(1), trend[1].Count)
}

func TestSourceTypeStatsAverages(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	_, err := store.PersistRumor(ctx, newRumor(1, "ab", "weibo.com", created),
		&models.RumorAnalysis{ContentLength: 2, WordCount: 1, SourceType: models.SourceSocialMedia})
	require.NoError(t, err)
	_, err = store.PersistRumor(ctx, newRumor(2, "abcd ef", "twitter.com", created),
		&models.RumorAnalysis{ContentLength: 7, WordCount: 2, SourceType: models.SourceSocialMedia})
	require.NoError(t, err)

	// Only rumor 1 gets verified; the latency average ignores the other.
	require.NoError(t, store.PersistVerification(ctx, &models.Verification{
		ChainID: 1, Result: "confirmed", CreatedAt: created.Add(100 * time.Second),
	}))

	stats, err := store.SourceTypeStats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 1)

	assert.Equal(t, models.SourceSocialMedia, stats[0].SourceType)
	assert.Equal(t, int64(2), stats[0].Count)
	assert.InDelta(t, 4.5, stats[0].AvgLength, 0.001)
	assert.InDelta(t, 1.5, stats[0].AvgWords, 0.001)
	assert.InDelta(t, 100.0, stats[0].AvgLatency, 0.001)
}

func TestEventSummary(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now().UTC()

	for _, ev := range []models.RawEvent{
		{Kind: models.EventRumorCreated, TxHash: "0x1", BlockNumber: 50, CreatedAt: now},
		{Kind: models.EventRumorVerified, TxHash: "0x2", BlockNumber: 75, CreatedAt: now},
		{Kind: models.EventRumorCreated, TxHash: "0x3", BlockNumber: 60, CreatedAt: now},
	} {
		e := ev
		require.NoError(t, store.AppendRawEvent(ctx, &e))
	}

	summary, err := store.EventSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.TotalEvents)
	assert.Equal(t, int64(2), summary.DistinctKinds)
	assert.Equal(t, uint64(50), summary.FirstBlock)
	assert.Equal(t, uint64(75), summary.LastBlock)
}
