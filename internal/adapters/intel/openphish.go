package intel

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stoik/phishing-detector/internal/domain"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultOpenPhishFeedURL = "https://openphish.com/feed.txt"
	DefaultOpenPhishTTL     = 12 * time.Hour
)

// OpenPhishSource matches domains against the OpenPhish public feed. The
// feed is downloaded lazily and refreshed after its TTL; a failed refresh
// keeps serving the previous copy.
type OpenPhishSource struct {
	feedURL string
	ttl     time.Duration
	client  outboundClient
	logger  *slog.Logger
	now     func() time.Time

	mu        sync.Mutex
	domains   mapset.Set[string]
	fetchedAt time.Time
}

func NewOpenPhishSource(feedURL string, ttl time.Duration, client *http.Client, outbound *semaphore.Weighted, logger *slog.Logger) *OpenPhishSource {
	if feedURL == "" {
		feedURL = DefaultOpenPhishFeedURL
	}
	if ttl <= 0 {
		ttl = DefaultOpenPhishTTL
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &OpenPhishSource{
		feedURL: feedURL,
		ttl:     ttl,
		client:  outboundClient{http: client, outbound: outbound},
		logger:  logger,
		now:     time.Now,
	}
}

func (s *OpenPhishSource) Name() string { return "openphish" }

func (s *OpenPhishSource) Classify(detections []domain.Detection) bool {
	return FeedRule.Classify(detections)
}

func (s *OpenPhishSource) Lookup(ctx context.Context, domainName string) ([]domain.Detection, error) {
	listed, err := s.feed(ctx)
	if err != nil {
		return nil, err
	}
	if !listed.Contains(domainName) {
		return nil, nil
	}
	return []domain.Detection{{Vendor: "OpenPhish", Verdict: "phishing"}}, nil
}

func (s *OpenPhishSource) feed(ctx context.Context) (mapset.Set[string], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.domains != nil && s.now().Sub(s.fetchedAt) < s.ttl {
		return s.domains, nil
	}

	fresh, err := s.download(ctx)
	if err != nil {
		if s.domains != nil {
			s.logger.Warn("openphish refresh failed, using previous feed", "error", err)
			return s.domains, nil
		}
		return nil, err
	}

	s.domains = fresh
	s.fetchedAt = s.now()
	s.logger.Info("openphish feed loaded", "domains", fresh.Cardinality())
	return fresh, nil
}

func (s *OpenPhishSource) download(ctx context.Context) (mapset.Set[string], error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	domains := mapset.NewThreadUnsafeSet[string]()
	err = s.client.do(ctx, req, func(resp *http.Response) error {
		if resp.StatusCode != http.StatusOK {
			return statusError(resp)
		}
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			if host := domain.HostOf(scanner.Text()); host != "" {
				domains.Add(host)
			}
		}
		return scanner.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download openphish feed: %w", err)
	}
	return domains, nil
}
