package chain

import (
	"context"
	"log/slog"

	"github.com/rumor-tracing/ledger-indexer/internal/models"
)

// Source tracks a per-kind polling cursor over the ledger client. Cursors
// are block numbers, opaque to callers; the zero value means the cursor
// has not been anchored yet.
//
// Without a checkpoint store a fresh Source anchors at the node's head
// block, so events emitted while the process was down are not backfilled.
// With a checkpoint store it resumes from the last committed cursor.
type Source struct {
	client      Client
	checkpoints CheckpointStore
	cursors     map[models.EventKind]uint64
	anchored    map[models.EventKind]bool
	log         *slog.Logger
}

// NewSource creates a Source. checkpoints may be nil for resume-from-latest.
func NewSource(client Client, checkpoints CheckpointStore, log *slog.Logger) *Source {
	return &Source{
		client:      client,
		checkpoints: checkpoints,
		cursors:     make(map[models.EventKind]uint64),
		anchored:    make(map[models.EventKind]bool),
		log:         log,
	}
}

// Poll returns events of the given kind observed since the last call.
// An empty slice means no new events; errors wrapping ErrSourceUnavailable
// are transient and leave the cursor untouched.
func (s *Source) Poll(ctx context.Context, kind models.EventKind) ([]models.RawEvent, error) {
	head, err := s.client.BlockNumber(ctx)
	if err != nil {
		return nil, err
	}

	if !s.anchored[kind] {
		cursor, ok, err := s.loadCheckpoint(ctx, kind)
		if err != nil {
			s.log.Warn("checkpoint load failed, anchoring at head",
				"kind", kind, "error", err)
			ok = false
		}
		if !ok {
			cursor = head
		}
		s.cursors[kind] = cursor
		s.anchored[kind] = true
		s.log.Info("cursor anchored", "kind", kind, "block", cursor)
		if cursor >= head {
			return nil, nil
		}
	}

	cursor := s.cursors[kind]
	if head <= cursor {
		return nil, nil
	}

	events, err := s.client.FilterEvents(ctx, kind, cursor+1, head)
	if err != nil {
		return nil, err
	}

	s.cursors[kind] = head
	return events, nil
}

// Commit durably records the cursor for kind. Callers invoke it after the
// batch returned by Poll has been applied, so a crash in between replays
// the batch on restart instead of dropping it. Save failures only widen
// the replay window; polling continues on the in-memory cursor.
func (s *Source) Commit(ctx context.Context, kind models.EventKind) {
	if s.checkpoints == nil || !s.anchored[kind] {
		return
	}
	block := s.cursors[kind]
	if err := s.checkpoints.Save(ctx, kind, block); err != nil {
		s.log.Warn("checkpoint save failed", "kind", kind, "block", block, "error", err)
	}
}

func (s *Source) loadCheckpoint(ctx context.Context, kind models.EventKind) (uint64, bool, error) {
	if s.checkpoints == nil {
		return 0, false, nil
	}
	return s.checkpoints.Load(ctx, kind)
}
