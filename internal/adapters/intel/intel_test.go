package intel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stoik/phishing-detector/internal/domain"
	"github.com/stoik/phishing-detector/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/semaphore"
)

func TestVerdictRule_Classify(t *testing.T) {
	tests := []struct {
		name       string
		rule       VerdictRule
		detections []domain.Detection
		expected   bool
	}{
		{"virustotal one malicious engine", VirusTotalRule, []domain.Detection{det("ESET", "phishing")}, true},
		{"virustotal two suspicious engines", VirusTotalRule, []domain.Detection{det("A", "suspicious"), det("B", "suspicious")}, false},
		{"virustotal three suspicious engines", VirusTotalRule, []domain.Detection{det("A", "suspicious"), det("B", "Suspicious"), det("C", "spam")}, true},
		{"virustotal nothing", VirusTotalRule, nil, false},
		{"static single phishing verdict", StaticRule, []domain.Detection{det("Kaspersky", "Suspicious"), det("McAfee", "Phishing")}, false},
		{"static two vendors agree", StaticRule, []domain.Detection{det("Norton", "Spam"), det("ESET", "Phishing")}, true},
		{"feed listing", FeedRule, []domain.Detection{det("OpenPhish", "phishing")}, true},
		{"engine category wins over a mild label", VirusTotalRule, []domain.Detection{{Vendor: "A", Verdict: "spam", Category: "malicious"}}, true},
		{"suspicious category with an alarming label", VirusTotalRule, []domain.Detection{{Vendor: "A", Verdict: "malware", Category: "suspicious"}}, false},
		{"harmless category is ignored", VirusTotalRule, []domain.Detection{{Vendor: "A", Verdict: "phishing", Category: "harmless"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.rule.Classify(tt.detections))
		})
	}
}

func TestVirusTotalSource_Lookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-apikey") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/api/v3/domains/evil.test":
			fmt.Fprint(w, `{"data":{"attributes":{"last_analysis_results":{
				"Sophos":{"category":"malicious","result":"phishing","engine_name":"Sophos"},
				"ESET":{"category":"malicious","result":"malware","engine_name":"ESET"},
				"Webroot":{"category":"harmless","result":"clean","engine_name":"Webroot"},
				"Avira":{"category":"suspicious","result":"unrated","engine_name":"Avira"}
			}}}}`)
		case "/api/v3/domains/spammy.test":
			fmt.Fprint(w, `{"data":{"attributes":{"last_analysis_results":{
				"Fortinet":{"category":"malicious","result":"spam","engine_name":"Fortinet"},
				"Webroot":{"category":"undetected","result":"unrated","engine_name":"Webroot"}
			}}}}`)
		case "/api/v3/domains/busy.test":
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	source := NewVirusTotalSource("secret", srv.URL, srv.Client(), semaphore.NewWeighted(2))

	detections, err := source.Lookup(context.Background(), "evil.test")
	require.NoError(t, err)
	assert.Equal(t, []domain.Detection{
		{Vendor: "Avira", Verdict: "suspicious", Category: "suspicious"},
		{Vendor: "ESET", Verdict: "malware", Category: "malicious"},
		{Vendor: "Sophos", Verdict: "phishing", Category: "malicious"},
	}, detections)
	assert.True(t, source.Classify(detections))

	// a single engine filing the domain as malicious is enough, whatever its label
	detections, err = source.Lookup(context.Background(), "spammy.test")
	require.NoError(t, err)
	assert.Equal(t, []domain.Detection{{Vendor: "Fortinet", Verdict: "spam", Category: "malicious"}}, detections)
	assert.True(t, source.Classify(detections))

	detections, err = source.Lookup(context.Background(), "never-seen.test")
	require.NoError(t, err)
	assert.Empty(t, detections)

	_, err = source.Lookup(context.Background(), "busy.test")
	assert.ErrorIs(t, err, ErrRateLimited)

	_, err = NewVirusTotalSource("wrong", srv.URL, srv.Client(), nil).Lookup(context.Background(), "evil.test")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestOpenPhishSource_Lookup(t *testing.T) {
	var fetches atomic.Int64
	var failing atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		if failing.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, "https://login.evil.test/paypal/\nhttp://Phish.Example:8080/x\n\nnot a url\n")
	}))
	defer srv.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	source := NewOpenPhishSource(srv.URL, time.Hour, srv.Client(), nil, nil)
	source.now = func() time.Time { return now }

	detections, err := source.Lookup(context.Background(), "login.evil.test")
	require.NoError(t, err)
	assert.Equal(t, []domain.Detection{det("OpenPhish", "phishing")}, detections)
	assert.True(t, source.Classify(detections))

	detections, err = source.Lookup(context.Background(), "phish.example")
	require.NoError(t, err)
	assert.Len(t, detections, 1)

	detections, err = source.Lookup(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Empty(t, detections)
	assert.Equal(t, int64(1), fetches.Load(), "feed is cached within its TTL")

	// a failed refresh keeps the previous copy
	failing.Store(true)
	now = now.Add(2 * time.Hour)
	detections, err = source.Lookup(context.Background(), "login.evil.test")
	require.NoError(t, err)
	assert.Len(t, detections, 1)
	assert.Equal(t, int64(2), fetches.Load())
}

func TestOpenPhishSource_NoFeedYet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewOpenPhishSource(srv.URL, 0, srv.Client(), nil, nil).Lookup(context.Background(), "a.test")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestStaticSource_Lookup(t *testing.T) {
	source := NewStaticSource(nil)

	detections, err := source.Lookup(context.Background(), "bricklestrks.com")
	require.NoError(t, err)
	assert.Len(t, detections, 3)
	assert.True(t, source.Classify(detections))

	detections, err = source.Lookup(context.Background(), "bit.ly")
	require.NoError(t, err)
	assert.Len(t, detections, 2)
	assert.False(t, source.Classify(detections))

	detections, err = source.Lookup(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Empty(t, detections)
}

// memoryIntelCache implements the lookups CachedSource uses
type memoryIntelCache struct {
	ports.IntelCache
	mu      sync.Mutex
	entries map[string][]domain.Detection
	puts    int
}

func (c *memoryIntelCache) GetDetections(_ context.Context, source, domainName string) ([]domain.Detection, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.entries[source+"|"+domainName]
	return d, ok, nil
}

func (c *memoryIntelCache) PutDetections(_ context.Context, source, domainName string, detections []domain.Detection, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[string][]domain.Detection)
	}
	c.entries[source+"|"+domainName] = detections
	c.puts++
	return nil
}

type countingSource struct {
	calls atomic.Int64
	err   error
}

func (s *countingSource) Name() string { return "counting" }

func (s *countingSource) Classify(d []domain.Detection) bool { return len(d) > 0 }

func (s *countingSource) Lookup(context.Context, string) ([]domain.Detection, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return []domain.Detection{det("V", "phishing")}, nil
}

func TestCachedSource(t *testing.T) {
	inner := &countingSource{}
	cache := &memoryIntelCache{}
	source := NewCachedSource(inner, cache, time.Hour, nil)

	for range 3 {
		detections, err := source.Lookup(context.Background(), "a.test")
		require.NoError(t, err)
		assert.Len(t, detections, 1)
	}
	assert.Equal(t, int64(1), inner.calls.Load())
	assert.Equal(t, "counting", source.Name())
	assert.True(t, source.Classify([]domain.Detection{det("V", "x")}))

	failing := &countingSource{err: errors.New("down")}
	source = NewCachedSource(failing, cache, time.Hour, nil)
	for range 2 {
		_, err := source.Lookup(context.Background(), "b.test")
		assert.Error(t, err)
	}
	assert.Equal(t, int64(2), failing.calls.Load(), "failures are not cached")
	assert.Equal(t, 1, cache.puts)
}

func TestRateLimitedSource(t *testing.T) {
	inner := &countingSource{}
	source := NewRateLimitedSource(inner, 1)

	_, err := source.Lookup(context.Background(), "a.test")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = source.Lookup(ctx, "b.test")
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, int64(1), inner.calls.Load())
}
