package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rumor-tracing/ledger-indexer/internal/models"
)

// Standard timeouts for store operations. The polling loop issues many
// short-lived statements; bounding them keeps a stuck database from
// wedging the cycle.
const (
	queryTimeout = 5 * time.Second
	writeTimeout = 10 * time.Second
)

// PostgresStore implements Store on PostgreSQL via a bounded pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// PoolConfig bounds the connection pool.
type PoolConfig struct {
	MinConns int32
	MaxConns int32
}

// NewPostgresStore creates a store with a bounded connection pool and
// verifies connectivity.
func NewPostgresStore(ctx context.Context, connString string, poolCfg PoolConfig) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	if poolCfg.MinConns > 0 {
		cfg.MinConns = poolCfg.MinConns
	}
	if poolCfg.MaxConns > 0 {
		cfg.MaxConns = poolCfg.MaxConns
	}
	cfg.MaxConnLifetime = 5 * time.Minute
	cfg.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() { s.pool.Close() }

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx so the upsert
// primitives can run standalone or inside a transaction.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// classify maps low-level failures onto the store's error taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrPoolExhausted, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return fmt.Errorf("%w: %v", ErrDanglingReference, err)
	}
	return err
}

// AppendRawEvent records one observed notification. Plain insert; raw
// events are never deduplicated.
func (s *PostgresStore) AppendRawEvent(ctx context.Context, ev *models.RawEvent) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	q := `INSERT INTO chain_events (event_kind, payload, block_number, tx_hash, created_at)
	      VALUES ($1, $2, $3, $4, $5)`
	created := ev.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, q, ev.Kind, ev.Payload, ev.BlockNumber, ev.TxHash, created)
	if err != nil {
		return fmt.Errorf("append raw event: %w", classify(err))
	}
	return nil
}

func upsertRumor(ctx context.Context, db dbtx, r *models.Rumor) (int64, error) {
	q := `INSERT INTO rumors (
	        chain_id, content, source, metadata, creator_address, created_at,
	        is_verified, verification_result, verifier_address, verified_at
	      ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	      ON CONFLICT (chain_id) DO UPDATE SET
	        content  = EXCLUDED.content,
	        source   = EXCLUDED.source,
	        metadata = EXCLUDED.metadata,
	        is_verified = rumors.is_verified OR EXCLUDED.is_verified,
	        verification_result = CASE WHEN EXCLUDED.is_verified
	          THEN EXCLUDED.verification_result ELSE rumors.verification_result END,
	        verifier_address = CASE WHEN EXCLUDED.is_verified
	          THEN EXCLUDED.verifier_address ELSE rumors.verifier_address END,
	        verified_at = CASE WHEN EXCLUDED.is_verified
	          THEN EXCLUDED.verified_at ELSE rumors.verified_at END
	      RETURNING id`

	var id int64
	err := db.QueryRow(ctx, q,
		r.ChainID, r.Content, r.Source, r.Metadata, r.CreatorAddress, r.CreatedAt,
		r.IsVerified, nullString(r.VerificationResult), nullString(r.VerifierAddress), r.VerifiedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert rumor: %w", classify(err))
	}
	return id, nil
}

// UpsertRumor inserts a rumor by chain id or overwrites its mutable fields
// on conflict. A verified rumor is never reverted to unverified.
func (s *PostgresStore) UpsertRumor(ctx context.Context, r *models.Rumor) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return upsertRumor(ctx, s.pool, r)
}

func upsertVerification(ctx context.Context, db dbtx, v *models.Verification) error {
	q := `INSERT INTO verifications (
	        chain_id, rumor_id, result, evidence, verifier_address, created_at
	      ) VALUES ($1, $2, $3, $4, $5, $6)
	      ON CONFLICT (chain_id) DO UPDATE SET
	        result   = EXCLUDED.result,
	        evidence = EXCLUDED.evidence,
	        verifier_address = EXCLUDED.verifier_address,
	        created_at = EXCLUDED.created_at`

	_, err := db.Exec(ctx, q,
		v.ChainID, v.RumorID, v.Result, v.Evidence, v.VerifierAddress, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert verification: %w", classify(err))
	}
	return nil
}

// UpsertVerification inserts a verification by chain id, overwriting
// result, evidence, verifier, and time on conflict. The rumor_id foreign
// key surfaces ErrDanglingReference when the rumor row is missing.
func (s *PostgresStore) UpsertVerification(ctx context.Context, v *models.Verification) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return upsertVerification(ctx, s.pool, v)
}

func upsertAnalysis(ctx context.Context, db dbtx, a *models.RumorAnalysis) error {
	q := `INSERT INTO rumor_analysis (
	        rumor_id, content_length, word_count, source_type, verification_latency_seconds
	      ) VALUES ($1, $2, $3, $4, $5)
	      ON CONFLICT (rumor_id) DO NOTHING`

	_, err := db.Exec(ctx, q,
		a.RumorID, a.ContentLength, a.WordCount, a.SourceType, a.VerificationLatency)
	if err != nil {
		return fmt.Errorf("upsert analysis: %w", classify(err))
	}
	return nil
}

// UpsertAnalysis records derived features once per rumor; replays are
// no-ops.
func (s *PostgresStore) UpsertAnalysis(ctx context.Context, a *models.RumorAnalysis) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return upsertAnalysis(ctx, s.pool, a)
}

func fillLatency(ctx context.Context, db dbtx, rumorID int64, seconds int64) error {
	// Latency is write-once: filled on first verification, never updated.
	q := `UPDATE rumor_analysis
	      SET verification_latency_seconds = $2
	      WHERE rumor_id = $1 AND verification_latency_seconds IS NULL`
	if _, err := db.Exec(ctx, q, rumorID, seconds); err != nil {
		return fmt.Errorf("fill verification latency: %w", classify(err))
	}
	return nil
}

// PersistRumor applies one decoded RumorCreated event in a single
// transaction.
func (s *PostgresStore) PersistRumor(ctx context.Context, r *models.Rumor, a *models.RumorAnalysis) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", classify(err))
	}
	defer tx.Rollback(ctx)

	id, err := upsertRumor(ctx, tx, r)
	if err != nil {
		return 0, err
	}

	a.RumorID = id
	if err := upsertAnalysis(ctx, tx, a); err != nil {
		return 0, err
	}
	if r.IsVerified && r.VerifiedAt != nil {
		latency := int64(r.VerifiedAt.Sub(r.CreatedAt).Seconds())
		if err := fillLatency(ctx, tx, id, latency); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", classify(err))
	}
	return id, nil
}

// PersistVerification applies one decoded RumorVerified event in a single
// transaction: verification row, rumor verification fields, and the
// one-shot latency fill.
func (s *PostgresStore) PersistVerification(ctx context.Context, v *models.Verification) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", classify(err))
	}
	defer tx.Rollback(ctx)

	var rumorID int64
	var rumorCreatedAt time.Time
	err = tx.QueryRow(ctx,
		`SELECT id, created_at FROM rumors WHERE chain_id = $1`, v.ChainID,
	).Scan(&rumorID, &rumorCreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("rumor chain_id %d: %w", v.ChainID, ErrDanglingReference)
		}
		return fmt.Errorf("resolve rumor: %w", classify(err))
	}

	v.RumorID = rumorID
	if err := upsertVerification(ctx, tx, v); err != nil {
		return err
	}

	_, err = tx.Exec(ctx,
		`UPDATE rumors SET
		   is_verified = TRUE,
		   verification_result = $2,
		   verifier_address = $3,
		   verified_at = $4
		 WHERE id = $1`,
		rumorID, v.Result, v.VerifierAddress, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("mark rumor verified: %w", classify(err))
	}

	latency := int64(v.CreatedAt.Sub(rumorCreatedAt).Seconds())
	if err := fillLatency(ctx, tx, rumorID, latency); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", classify(err))
	}
	return nil
}

// GetRumorByChainID returns the rumor with the given chain id.
func (s *PostgresStore) GetRumorByChainID(ctx context.Context, chainID int64) (*models.Rumor, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	q := `SELECT id, chain_id, content, source, metadata, creator_address, created_at,
	             is_verified, COALESCE(verification_result, ''), COALESCE(verifier_address, ''),
	             verified_at, ingested_at
	      FROM rumors WHERE chain_id = $1`

	var r models.Rumor
	err := s.pool.QueryRow(ctx, q, chainID).Scan(
		&r.ID, &r.ChainID, &r.Content, &r.Source, &r.Metadata, &r.CreatorAddress, &r.CreatedAt,
		&r.IsVerified, &r.VerificationResult, &r.VerifierAddress,
		&r.VerifiedAt, &r.IngestedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRumorNotFound
		}
		return nil, fmt.Errorf("get rumor: %w", classify(err))
	}
	return &r, nil
}

// SourceTypeStats aggregates the analysis table by classified source type.
func (s *PostgresStore) SourceTypeStats(ctx context.Context) ([]models.SourceTypeStats, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	q := `SELECT source_type,
	             COUNT(*),
	             COALESCE(AVG(content_length), 0),
	             COALESCE(AVG(word_count), 0),
	             COALESCE(AVG(verification_latency_seconds), 0)
	      FROM rumor_analysis
	      GROUP BY source_type
	      ORDER BY COUNT(*) DESC, source_type`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("source type stats: %w", classify(err))
	}
	defer rows.Close()

	var out []models.SourceTypeStats
	for rows.Next() {
		var st models.SourceTypeStats
		if err := rows.Scan(&st.SourceType, &st.Count, &st.AvgLength, &st.AvgWords, &st.AvgLatency); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// HourlyTrend counts raw events per kind per hour bucket.
func (s *PostgresStore) HourlyTrend(ctx context.Context) ([]models.TrendBucket, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	q := `SELECT date_trunc('hour', created_at) AS hour, event_kind, COUNT(*)
	      FROM chain_events
	      GROUP BY hour, event_kind
	      ORDER BY hour, event_kind`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("hourly trend: %w", classify(err))
	}
	defer rows.Close()

	var out []models.TrendBucket
	for rows.Next() {
		var b models.TrendBucket
		if err := rows.Scan(&b.Hour, &b.Kind, &b.Count); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// KindCorrelation counts unordered pairs of distinct event kinds sharing a
// transaction hash. The e1 < e2 join condition yields each pair once.
func (s *PostgresStore) KindCorrelation(ctx context.Context) ([]models.KindCorrelation, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	q := `SELECT e1.event_kind, e2.event_kind, COUNT(*)
	      FROM chain_events e1
	      JOIN chain_events e2
	        ON e1.tx_hash = e2.tx_hash AND e1.event_kind < e2.event_kind
	      GROUP BY e1.event_kind, e2.event_kind
	      ORDER BY COUNT(*) DESC, e1.event_kind, e2.event_kind`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("kind correlation: %w", classify(err))
	}
	defer rows.Close()

	var out []models.KindCorrelation
	for rows.Next() {
		var c models.KindCorrelation
		if err := rows.Scan(&c.KindA, &c.KindB, &c.Count); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// EventSummary aggregates the raw event table for the report header.
func (s *PostgresStore) EventSummary(ctx context.Context) (*models.EventSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	q := `SELECT COUNT(*),
	             COUNT(DISTINCT event_kind),
	             COALESCE(MIN(block_number), 0),
	             COALESCE(MAX(block_number), 0)
	      FROM chain_events`

	var sum models.EventSummary
	err := s.pool.QueryRow(ctx, q).Scan(
		&sum.TotalEvents, &sum.DistinctKinds, &sum.FirstBlock, &sum.LastBlock)
	if err != nil {
		return nil, fmt.Errorf("event summary: %w", classify(err))
	}
	return &sum, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
