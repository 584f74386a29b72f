package seeder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rumor-tracing/ledger-indexer/internal/repository"
)

func TestSeederRun(t *testing.T) {
	store := repository.NewMemoryStore()
	s := New(store, 42)

	err := s.Run(context.Background(), Options{
		Rumors:        50,
		VerifiedRatio: 0.5,
		TimeSpread:    6 * time.Hour,
	})
	require.NoError(t, err)

	assert.Equal(t, 50, store.RumorCount())

	verified := store.VerificationCount()
	assert.Greater(t, verified, 0)
	assert.Less(t, verified, 50)

	// One raw creation event per rumor plus one per verification.
	assert.Equal(t, 50+verified, store.RawEventCount())
}

func TestSeederAllUnverified(t *testing.T) {
	store := repository.NewMemoryStore()
	s := New(store, 7)

	require.NoError(t, s.Run(context.Background(), Options{Rumors: 10}))

	assert.Equal(t, 10, store.RumorCount())
	assert.Equal(t, 0, store.VerificationCount())
	assert.Equal(t, 10, store.RawEventCount())
}
