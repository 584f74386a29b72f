// Package analytics derives features from rumor content and assembles
// the per-cycle statistics report from the store's aggregate views.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rumor-tracing/ledger-indexer/internal/models"
)

// AggregateSource is the slice of the store the engine reads. It never
// writes; a failed recompute leaves all primary tables untouched.
type AggregateSource interface {
	SourceTypeStats(ctx context.Context) ([]models.SourceTypeStats, error)
	HourlyTrend(ctx context.Context) ([]models.TrendBucket, error)
	KindCorrelation(ctx context.Context) ([]models.KindCorrelation, error)
	EventSummary(ctx context.Context) (*models.EventSummary, error)
}

// Report is one full recompute output: the event summary plus the three
// aggregate views, stamped with an id and generation time.
type Report struct {
	ID           string                   `json:"report_id"`
	GeneratedAt  time.Time                `json:"generated_at"`
	Summary      models.EventSummary      `json:"summary"`
	BySourceType []models.SourceTypeStats `json:"by_source_type"`
	HourlyTrend  []models.TrendBucket     `json:"hourly_trend"`
	Correlations []models.KindCorrelation `json:"event_correlations"`
}

// Engine recomputes the report from the store.
type Engine struct {
	source AggregateSource
	log    *slog.Logger
}

// NewEngine creates an analytics engine over the given aggregate source.
func NewEngine(source AggregateSource, log *slog.Logger) *Engine {
	return &Engine{source: source, log: log}
}

// Recompute reads all aggregate views and assembles a fresh report.
func (e *Engine) Recompute(ctx context.Context) (*Report, error) {
	started := time.Now()

	summary, err := e.source.EventSummary(ctx)
	if err != nil {
		return nil, fmt.Errorf("event summary: %w", err)
	}
	byType, err := e.source.SourceTypeStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("source type stats: %w", err)
	}
	trend, err := e.source.HourlyTrend(ctx)
	if err != nil {
		return nil, fmt.Errorf("hourly trend: %w", err)
	}
	correlations, err := e.source.KindCorrelation(ctx)
	if err != nil {
		return nil, fmt.Errorf("kind correlation: %w", err)
	}

	report := &Report{
		ID:           uuid.New().String(),
		GeneratedAt:  time.Now().UTC(),
		Summary:      *summary,
		BySourceType: byType,
		HourlyTrend:  trend,
		Correlations: correlations,
	}

	e.log.Debug("analytics recomputed",
		"report_id", report.ID,
		"total_events", summary.TotalEvents,
		"source_types", len(byType),
		"duration", time.Since(started))
	return report, nil
}
