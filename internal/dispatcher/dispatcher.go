// Package dispatcher runs the polling loop: fetch new ledger events,
// reconcile them into the store, and recompute analytics each cycle.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rumor-tracing/ledger-indexer/internal/analytics"
	"github.com/rumor-tracing/ledger-indexer/internal/chain"
	"github.com/rumor-tracing/ledger-indexer/internal/metrics"
	"github.com/rumor-tracing/ledger-indexer/internal/models"
	"github.com/rumor-tracing/ledger-indexer/internal/notify"
	"github.com/rumor-tracing/ledger-indexer/internal/repository"
)

// EventSource yields new events per kind since the previous call. Commit
// acknowledges that the last polled batch for kind has been applied, so
// the source may durably advance its cursor.
type EventSource interface {
	Poll(ctx context.Context, kind models.EventKind) ([]models.RawEvent, error)
	Commit(ctx context.Context, kind models.EventKind)
}

// Lookups resolves the authoritative contract state behind an event.
type Lookups interface {
	Rumor(ctx context.Context, rumorID int64) (*chain.RumorDetail, error)
	Verification(ctx context.Context, rumorID int64) (*chain.VerificationDetail, error)
}

// ReportSink receives the report produced at the end of each cycle.
type ReportSink interface {
	Write(report *analytics.Report) error
}

// Config bounds the loop timing.
type Config struct {
	PollInterval time.Duration
	ErrorBackoff time.Duration
}

// Dispatcher owns the ingestion loop. It is not safe for concurrent use;
// Run is meant to be called once from a single goroutine.
type Dispatcher struct {
	source    EventSource
	lookups   Lookups
	store     repository.Store
	engine    *analytics.Engine
	sink      ReportSink
	publisher notify.Publisher
	cfg       Config
	log       *slog.Logger
}

// New wires a dispatcher. publisher may be notify.NoopPublisher.
func New(source EventSource, lookups Lookups, store repository.Store, engine *analytics.Engine,
	sink ReportSink, publisher notify.Publisher, cfg Config, log *slog.Logger) *Dispatcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = 5 * time.Second
	}
	return &Dispatcher{
		source:    source,
		lookups:   lookups,
		store:     store,
		engine:    engine,
		sink:      sink,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
	}
}

// Run executes cycles until ctx is cancelled. A failed cycle is logged
// and followed by the error backoff; the loop itself never returns an
// error.
func (d *Dispatcher) Run(ctx context.Context) {
	d.log.Info("dispatcher started",
		"poll_interval", d.cfg.PollInterval, "error_backoff", d.cfg.ErrorBackoff)

	for {
		delay := d.cfg.PollInterval
		if err := d.Cycle(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			d.log.Error("cycle failed", "error", err)
			delay = d.cfg.ErrorBackoff
		}

		select {
		case <-ctx.Done():
			d.log.Info("dispatcher stopped")
			return
		case <-time.After(delay):
		}
	}
	d.log.Info("dispatcher stopped")
}

// Cycle polls every kind once, then recomputes and exports analytics.
func (d *Dispatcher) Cycle(ctx context.Context) error {
	started := time.Now()
	defer func() {
		metrics.CycleDuration.Observe(time.Since(started).Seconds())
	}()

	var cycleErr error
	for _, kind := range models.AllEventKinds {
		events, err := d.source.Poll(ctx, kind)
		if err != nil {
			// Kinds poll independently; one unavailable filter must not
			// starve the others this cycle.
			metrics.SourceErrors.Inc()
			d.log.Error("poll failed", "kind", kind, "error", err)
			cycleErr = fmt.Errorf("poll %s: %w", kind, err)
			continue
		}

		batchClean := true
		for i := range events {
			ev := &events[i]
			metrics.EventsObserved.WithLabelValues(string(kind)).Inc()
			metrics.LastBlockSeen.WithLabelValues(string(kind)).Set(float64(ev.BlockNumber))

			if err := d.handleEvent(ctx, ev); err != nil {
				if errors.Is(err, repository.ErrDanglingReference) {
					// Creation precedes verification on chain, so a missing
					// rumor is permanent for this event instance.
					metrics.EventsFailed.WithLabelValues(string(kind), "dangling_reference").Inc()
					d.log.Warn("event skipped",
						"kind", kind, "block", ev.BlockNumber, "tx", ev.TxHash, "error", err)
					continue
				}
				metrics.EventsFailed.WithLabelValues(string(kind), "error").Inc()
				d.log.Error("event failed",
					"kind", kind, "block", ev.BlockNumber, "tx", ev.TxHash, "error", err)
				cycleErr = err
				batchClean = false
				continue
			}
			metrics.EventsPersisted.WithLabelValues(string(kind)).Inc()
		}

		// Only a fully applied batch moves the durable cursor; a batch
		// with transient failures is replayed after a restart.
		if batchClean {
			d.source.Commit(ctx, kind)
		}
	}

	if err := d.recompute(ctx); err != nil {
		d.log.Error("analytics recompute failed", "error", err)
		cycleErr = err
	}
	return cycleErr
}

func (d *Dispatcher) handleEvent(ctx context.Context, ev *models.RawEvent) error {
	if err := d.store.AppendRawEvent(ctx, ev); err != nil {
		return fmt.Errorf("append raw event: %w", err)
	}

	switch ev.Kind {
	case models.EventRumorCreated:
		return d.handleRumorCreated(ctx, ev)
	case models.EventRumorVerified:
		return d.handleRumorVerified(ctx, ev)
	case models.EventContractUpgraded:
		return d.handleContractUpgraded(ev)
	default:
		return fmt.Errorf("unknown event kind %q", ev.Kind)
	}
}

func (d *Dispatcher) handleRumorCreated(ctx context.Context, ev *models.RawEvent) error {
	payload, err := models.DecodeRumorCreated(ev.Payload)
	if err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	detail, err := d.lookups.Rumor(ctx, payload.RumorID)
	if err != nil {
		return fmt.Errorf("lookup rumor %d: %w", payload.RumorID, err)
	}

	rumor := &models.Rumor{
		ChainID:            payload.RumorID,
		Content:            detail.Content,
		Source:             detail.Source,
		Metadata:           detail.Metadata,
		CreatorAddress:     detail.Creator,
		CreatedAt:          detail.CreatedAt,
		IsVerified:         detail.IsVerified,
		VerificationResult: detail.VerificationResult,
		VerifierAddress:    detail.Verifier,
		VerifiedAt:         detail.VerifiedAt,
	}
	analysis := analytics.Analyze(detail.Content, detail.Source)

	if _, err := d.store.PersistRumor(ctx, rumor, &analysis); err != nil {
		return fmt.Errorf("persist rumor %d: %w", payload.RumorID, err)
	}

	d.publisher.RumorPersisted(rumor)
	d.log.Info("rumor persisted",
		"rumor_id", payload.RumorID, "source_type", analysis.SourceType, "block", ev.BlockNumber)
	return nil
}

func (d *Dispatcher) handleRumorVerified(ctx context.Context, ev *models.RawEvent) error {
	payload, err := models.DecodeRumorVerified(ev.Payload)
	if err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	detail, err := d.lookups.Verification(ctx, payload.RumorID)
	if err != nil {
		return fmt.Errorf("lookup verification %d: %w", payload.RumorID, err)
	}

	verification := &models.Verification{
		ChainID:         payload.RumorID,
		Result:          detail.Result,
		Evidence:        detail.Evidence,
		VerifierAddress: detail.Verifier,
		CreatedAt:       detail.CreatedAt,
	}

	if err := d.store.PersistVerification(ctx, verification); err != nil {
		return fmt.Errorf("persist verification %d: %w", payload.RumorID, err)
	}

	d.publisher.VerificationPersisted(verification)
	d.log.Info("verification persisted",
		"rumor_id", payload.RumorID, "result", detail.Result, "block", ev.BlockNumber)
	return nil
}

func (d *Dispatcher) handleContractUpgraded(ev *models.RawEvent) error {
	payload, err := models.DecodeContractUpgraded(ev.Payload)
	if err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	// The raw event row is the record; nothing else to reconcile. The
	// info gauge carries exactly one series, the current implementation.
	metrics.ContractImplementation.Reset()
	metrics.ContractImplementation.WithLabelValues(payload.NewImplementation).Set(1)
	d.log.Info("contract upgraded",
		"new_implementation", payload.NewImplementation, "block", ev.BlockNumber)
	return nil
}

func (d *Dispatcher) recompute(ctx context.Context) error {
	started := time.Now()

	report, err := d.engine.Recompute(ctx)
	if err != nil {
		return fmt.Errorf("recompute: %w", err)
	}
	if err := d.sink.Write(report); err != nil {
		return fmt.Errorf("export report: %w", err)
	}

	metrics.RecomputeDuration.Observe(time.Since(started).Seconds())
	metrics.LastRecompute.SetToCurrentTime()
	d.publisher.ReportGenerated(report)
	return nil
}
