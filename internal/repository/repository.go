// Package repository owns the four-table schema and the idempotent write
// path that reconciles ledger-sourced records with it.
package repository

import (
	"context"
	"errors"

	"github.com/rumor-tracing/ledger-indexer/internal/models"
)

var (
	// ErrDanglingReference means a verification references a rumor that has
	// not been persisted. The source emits RumorCreated before RumorVerified,
	// so this is permanent for the event instance: logged and skipped.
	ErrDanglingReference = errors.New("verification references unknown rumor")

	// ErrPoolExhausted means no database connection became available within
	// the bounded wait. Transient; retry with backoff.
	ErrPoolExhausted = errors.New("connection pool exhausted")

	// ErrRumorNotFound is returned by point reads on a missing rumor.
	ErrRumorNotFound = errors.New("rumor not found")
)

// Store is the persistence boundary. Every write keyed by a chain-assigned
// id is an idempotent upsert: the event source delivers at least once, so
// applying the same write twice must leave the same net state.
type Store interface {
	// AppendRawEvent records an observed notification. Always an append;
	// raw events are audit data and duplicates are expected.
	AppendRawEvent(ctx context.Context, ev *models.RawEvent) error

	// UpsertRumor inserts a rumor by chain id, or overwrites its content,
	// source, metadata, and verification fields on conflict. Returns the
	// internal row id.
	UpsertRumor(ctx context.Context, r *models.Rumor) (int64, error)

	// UpsertVerification inserts a verification by chain id, overwriting
	// result, evidence, verifier, and time on conflict. Fails with
	// ErrDanglingReference when the referenced rumor does not exist.
	UpsertVerification(ctx context.Context, v *models.Verification) error

	// UpsertAnalysis records derived features for a rumor, once. Replays
	// are no-ops since the features derive from immutable content.
	UpsertAnalysis(ctx context.Context, a *models.RumorAnalysis) error

	// PersistRumor applies one decoded RumorCreated event as a single
	// transaction: rumor upsert plus analysis insert. Returns the rumor's
	// internal id.
	PersistRumor(ctx context.Context, r *models.Rumor, a *models.RumorAnalysis) (int64, error)

	// PersistVerification applies one decoded RumorVerified event as a
	// single transaction: verification upsert, rumor verification fields,
	// and the one-shot latency fill on the analysis row.
	PersistVerification(ctx context.Context, v *models.Verification) error

	// GetRumorByChainID returns the rumor with the given chain id, or
	// ErrRumorNotFound.
	GetRumorByChainID(ctx context.Context, chainID int64) (*models.Rumor, error)

	// Aggregate views consumed by the analytics engine.
	SourceTypeStats(ctx context.Context) ([]models.SourceTypeStats, error)
	HourlyTrend(ctx context.Context) ([]models.TrendBucket, error)
	KindCorrelation(ctx context.Context) ([]models.KindCorrelation, error)
	EventSummary(ctx context.Context) (*models.EventSummary, error)

	Close()
}
