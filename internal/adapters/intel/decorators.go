package intel

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stoik/phishing-detector/internal/domain"
	"github.com/stoik/phishing-detector/internal/ports"
	"golang.org/x/time/rate"
)

const DefaultCacheTTL = 24 * time.Hour

// CachedSource remembers successful answers of a source for a TTL. Failed
// lookups are never cached so the next scan retries the vendor.
type CachedSource struct {
	ports.IntelSource
	cache  ports.IntelCache
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

func NewCachedSource(inner ports.IntelSource, cache ports.IntelCache, ttl time.Duration, logger *slog.Logger) *CachedSource {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CachedSource{IntelSource: inner, cache: cache, ttl: ttl, now: time.Now, logger: logger}
}

func (s *CachedSource) Lookup(ctx context.Context, domainName string) ([]domain.Detection, error) {
	name := s.Name()

	cached, ok, err := s.cache.GetDetections(ctx, name, domainName)
	if err != nil {
		s.logger.Warn("intel cache read failed", "source", name, "domain", domainName, "error", err)
	} else if ok {
		return cached, nil
	}

	detections, err := s.IntelSource.Lookup(ctx, domainName)
	if err != nil {
		return nil, err
	}

	if err := s.cache.PutDetections(ctx, name, domainName, detections, s.now().Add(s.ttl)); err != nil {
		s.logger.Warn("intel cache write failed", "source", name, "domain", domainName, "error", err)
	}
	return detections, nil
}

// RateLimitedSource spaces out calls to a vendor with a token bucket. A
// caller whose deadline expires while waiting gets ErrRateLimited.
type RateLimitedSource struct {
	ports.IntelSource
	limiter *rate.Limiter
}

// NewRateLimitedSource allows perMinute calls per minute with no burst
func NewRateLimitedSource(inner ports.IntelSource, perMinute int) *RateLimitedSource {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	return &RateLimitedSource{IntelSource: inner, limiter: rate.NewLimiter(limit, 1)}
}

func (s *RateLimitedSource) Lookup(ctx context.Context, domainName string) ([]domain.Detection, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRateLimited, err)
	}
	return s.IntelSource.Lookup(ctx, domainName)
}
