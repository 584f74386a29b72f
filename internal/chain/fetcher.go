package chain

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// Fetcher performs contract point lookups with client-side throttling and
// a TTL-bounded memo, so a redelivered event does not hit the node again.
type Fetcher struct {
	client  Client
	limiter *rate.Limiter
	cache   *gocache.Cache
}

// FetcherConfig bounds lookup throughput and memoization.
type FetcherConfig struct {
	RatePerSecond float64
	Burst         int
	CacheTTL      time.Duration
}

// NewFetcher wraps client with rate limiting and caching.
func NewFetcher(client Client, cfg FetcherConfig) *Fetcher {
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 10
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	return &Fetcher{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		cache:   gocache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
	}
}

// Rumor fetches the rumor tuple for the given contract id.
func (f *Fetcher) Rumor(ctx context.Context, rumorID int64) (*RumorDetail, error) {
	key := fmt.Sprintf("rumor:%d", rumorID)
	if cached, ok := f.cache.Get(key); ok {
		return cached.(*RumorDetail), nil
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	detail, err := f.client.GetRumor(ctx, rumorID)
	if err != nil {
		return nil, err
	}

	f.cache.SetDefault(key, detail)
	return detail, nil
}

// Verification fetches the verification tuple for the given rumor id.
func (f *Fetcher) Verification(ctx context.Context, rumorID int64) (*VerificationDetail, error) {
	key := fmt.Sprintf("verification:%d", rumorID)
	if cached, ok := f.cache.Get(key); ok {
		return cached.(*VerificationDetail), nil
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	detail, err := f.client.GetVerification(ctx, rumorID)
	if err != nil {
		return nil, err
	}

	f.cache.SetDefault(key, detail)
	return detail, nil
}
