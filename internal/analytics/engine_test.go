package analytics

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rumor-tracing/ledger-indexer/internal/models"
	"github.com/rumor-tracing/ledger-indexer/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func seedStore(t *testing.T) *repository.MemoryStore {
	t.Helper()
	ctx := context.Background()
	store := repository.NewMemoryStore()

	now := time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC)
	require.NoError(t, store.AppendRawEvent(ctx, &models.RawEvent{
		Kind: models.EventRumorCreated, BlockNumber: 100, TxHash: "0xaa", CreatedAt: now,
	}))
	require.NoError(t, store.AppendRawEvent(ctx, &models.RawEvent{
		Kind: models.EventRumorVerified, BlockNumber: 104, TxHash: "0xaa", CreatedAt: now.Add(20 * time.Minute),
	}))

	created := now
	_, err := store.PersistRumor(ctx, &models.Rumor{
		ChainID: 1, Content: "hello world", Source: "weibo.com", CreatedAt: created,
	}, &models.RumorAnalysis{ContentLength: 11, WordCount: 2, SourceType: models.SourceSocialMedia})
	require.NoError(t, err)

	require.NoError(t, store.PersistVerification(ctx, &models.Verification{
		ChainID: 1, Result: "confirmed", VerifierAddress: "0xv1", CreatedAt: created.Add(90 * time.Second),
	}))
	return store
}

func TestEngineRecompute(t *testing.T) {
	store := seedStore(t)
	engine := NewEngine(store, testLogger())

	report, err := engine.Recompute(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, report.ID)
	assert.False(t, report.GeneratedAt.IsZero())

	assert.Equal(t, int64(2), report.Summary.TotalEvents)
	assert.Equal(t, int64(2), report.Summary.DistinctKinds)
	assert.Equal(t, uint64(100), report.Summary.FirstBlock)
	assert.Equal(t, uint64(104), report.Summary.LastBlock)

	require.Len(t, report.BySourceType, 1)
	row := report.BySourceType[0]
	assert.Equal(t, models.SourceSocialMedia, row.SourceType)
	assert.Equal(t, int64(1), row.Count)
	assert.Equal(t, 11.0, row.AvgLength)
	assert.Equal(t, 2.0, row.AvgWords)
	assert.Equal(t, 90.0, row.AvgLatency)

	require.Len(t, report.HourlyTrend, 2)
	assert.Equal(t, models.EventRumorCreated, report.HourlyTrend[0].Kind)
	assert.Equal(t, int64(1), report.HourlyTrend[0].Count)

	require.Len(t, report.Correlations, 1)
	assert.Equal(t, int64(1), report.Correlations[0].Count)
}

func TestEngineRecomputeEmptyStore(t *testing.T) {
	engine := NewEngine(repository.NewMemoryStore(), testLogger())

	report, err := engine.Recompute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(0), report.Summary.TotalEvents)
	assert.Empty(t, report.BySourceType)
	assert.Empty(t, report.HourlyTrend)
	assert.Empty(t, report.Correlations)
}

func TestEngineReportIDsAreUnique(t *testing.T) {
	engine := NewEngine(repository.NewMemoryStore(), testLogger())

	first, err := engine.Recompute(context.Background())
	require.NoError(t, err)
	second, err := engine.Recompute(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
}
