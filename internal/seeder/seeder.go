// Package seeder generates plausible fake rumor activity for demos and
// local development.
package seeder

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/rumor-tracing/ledger-indexer/internal/analytics"
	"github.com/rumor-tracing/ledger-indexer/internal/models"
	"github.com/rumor-tracing/ledger-indexer/internal/repository"
)

var sourceDomains = []string{
	"twitter.com", "facebook.com", "weibo.com",
	"news.example.org", "cnn.com", "bbc.com",
	"forum.example.net", "reddit.com", "bbs.tianya.cn",
	"example.org", "blog.example.com",
}

// Options controls the volume and shape of seeded data.
type Options struct {
	Rumors        int
	VerifiedRatio float64
	TimeSpread    time.Duration
}

// Seeder writes fake rumors, verifications, and raw events into a store.
type Seeder struct {
	store repository.Store
	rng   *rand.Rand
}

// New creates a seeder. seed fixes the random stream for reproducible runs.
func New(store repository.Store, seed int64) *Seeder {
	gofakeit.Seed(seed)
	return &Seeder{store: store, rng: rand.New(rand.NewSource(seed))}
}

// Run seeds opts.Rumors rumors spread across opts.TimeSpread, verifying
// roughly opts.VerifiedRatio of them.
func (s *Seeder) Run(ctx context.Context, opts Options) error {
	if opts.Rumors <= 0 {
		opts.Rumors = 100
	}
	if opts.TimeSpread <= 0 {
		opts.TimeSpread = 24 * time.Hour
	}

	now := time.Now().UTC()
	block := uint64(1000)

	for i := 0; i < opts.Rumors; i++ {
		chainID := int64(i + 1)
		createdAt := now.Add(-time.Duration(s.rng.Float64() * float64(opts.TimeSpread)))
		content := gofakeit.Sentence(3 + s.rng.Intn(12))
		source := fmt.Sprintf("%s/%s", sourceDomains[s.rng.Intn(len(sourceDomains))], gofakeit.UUID()[:8])
		creator := s.fakeAddress()
		txHash := s.fakeTxHash()
		block += uint64(1 + s.rng.Intn(4))

		if err := s.store.AppendRawEvent(ctx, &models.RawEvent{
			Kind: models.EventRumorCreated,
			Payload: map[string]any{
				"rumor_id": chainID, "creator": creator, "content": content,
			},
			BlockNumber: block,
			TxHash:      txHash,
			CreatedAt:   createdAt,
		}); err != nil {
			return fmt.Errorf("seed raw event: %w", err)
		}

		rumor := &models.Rumor{
			ChainID:        chainID,
			Content:        content,
			Source:         source,
			Metadata:       map[string]any{"seeded": true},
			CreatorAddress: creator,
			CreatedAt:      createdAt,
		}
		analysis := analytics.Analyze(content, source)
		if _, err := s.store.PersistRumor(ctx, rumor, &analysis); err != nil {
			return fmt.Errorf("seed rumor %d: %w", chainID, err)
		}

		if s.rng.Float64() >= opts.VerifiedRatio {
			continue
		}

		verifiedAt := createdAt.Add(time.Duration(60+s.rng.Intn(7200)) * time.Second)
		result := "confirmed"
		if s.rng.Float64() < 0.4 {
			result = "refuted"
		}
		block += uint64(1 + s.rng.Intn(4))

		if err := s.store.AppendRawEvent(ctx, &models.RawEvent{
			Kind: models.EventRumorVerified,
			Payload: map[string]any{
				"rumor_id": chainID, "verifier": s.fakeAddress(), "result": result,
			},
			BlockNumber: block,
			TxHash:      txHash,
			CreatedAt:   verifiedAt,
		}); err != nil {
			return fmt.Errorf("seed raw event: %w", err)
		}

		if err := s.store.PersistVerification(ctx, &models.Verification{
			ChainID:         chainID,
			Result:          result,
			Evidence:        gofakeit.URL(),
			VerifierAddress: s.fakeAddress(),
			CreatedAt:       verifiedAt,
		}); err != nil {
			return fmt.Errorf("seed verification %d: %w", chainID, err)
		}
	}
	return nil
}

func (s *Seeder) fakeAddress() string {
	return s.fakeHex(20)
}

func (s *Seeder) fakeTxHash() string {
	return s.fakeHex(32)
}

func (s *Seeder) fakeHex(bytes int) string {
	buf := make([]byte, bytes)
	s.rng.Read(buf)
	return "0x" + hex.EncodeToString(buf)
}
