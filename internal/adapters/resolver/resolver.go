package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stoik/phishing-detector/internal/domain"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultMaxHops      = 5
	DefaultTimeout      = 5 * time.Second
	DefaultChainTimeout = 10 * time.Second
	userAgent           = "phishing-detector/1.0 link-resolver"
)

// DefaultShortenerDomains are the redirect services recognized out of the box
var DefaultShortenerDomains = []string{
	"bit.ly", "tinyurl.com", "t.co", "goo.gl", "ow.ly", "short.link",
	"rebrand.ly", "cutt.ly", "is.gd", "buff.ly", "tiny.cc", "rb.gy",
	"shorturl.at", "s.id",
}

var (
	errHopLimit = errors.New("redirect hop limit exceeded")
	errLoop     = errors.New("redirect loop")
)

// Config tunes the resolver. Zero values fall back to the defaults.
type Config struct {
	ShortenerDomains []string
	MaxHops          int
	// Timeout bounds each request of the chain
	Timeout time.Duration
	// ChainTimeout bounds the whole redirect chain of one link
	ChainTimeout time.Duration
}

// Resolver expands shortened links by following their redirect chain
type Resolver struct {
	shorteners   mapset.Set[string]
	maxHops      int
	timeout      time.Duration
	chainTimeout time.Duration
	client       *http.Client
	outbound     *semaphore.Weighted
	logger       *slog.Logger
}

// New creates a resolver. outbound caps simultaneous requests across the
// whole process and may be shared with other network adapters; nil means
// no cap.
func New(cfg Config, client *http.Client, outbound *semaphore.Weighted, logger *slog.Logger) *Resolver {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.MaxHops <= 0 {
		cfg.MaxHops = DefaultMaxHops
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ChainTimeout <= 0 {
		cfg.ChainTimeout = DefaultChainTimeout
	}
	if len(cfg.ShortenerDomains) == 0 {
		cfg.ShortenerDomains = DefaultShortenerDomains
	}

	// redirects are followed by hand to count hops and spot loops
	local := *client
	local.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}

	shorteners := mapset.NewSet[string]()
	for _, d := range cfg.ShortenerDomains {
		if norm, err := domain.NormalizeDomain(d); err == nil {
			shorteners.Add(norm)
		}
	}

	return &Resolver{
		shorteners:   shorteners,
		maxHops:      cfg.MaxHops,
		timeout:      cfg.Timeout,
		chainTimeout: cfg.ChainTimeout,
		client:       &local,
		outbound:     outbound,
		logger:       logger,
	}
}

// IsShortened reports whether the URL's host is a known shortener or one of its subdomains
func (r *Resolver) IsShortened(rawURL string) bool {
	host := domain.HostOf(rawURL)
	for host != "" {
		if r.shorteners.Contains(host) {
			return true
		}
		i := strings.IndexByte(host, '.')
		if i < 0 {
			break
		}
		host = host[i+1:]
	}
	return false
}

// Resolve follows the redirect chain of a shortened URL. Failures never
// propagate: they leave ExpandedURL empty and mark the outcome degraded.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) domain.Resolution {
	res := domain.Resolution{OriginalURL: rawURL}
	if !r.IsShortened(rawURL) {
		res.Outcome = domain.Skipped("not a shortened link")
		return res
	}
	res.IsShortened = true

	final, err := r.follow(ctx, rawURL)
	if err != nil {
		r.logger.Warn("link resolution failed", "url", rawURL, "error", err)
		res.Outcome = domain.Degraded(err.Error())
		return res
	}

	r.logger.Debug("link resolved", "url", rawURL, "expanded_url", final)
	res.ExpandedURL = final
	res.Outcome = domain.Resolved()
	return res
}

func (r *Resolver) follow(ctx context.Context, start string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.chainTimeout)
	defer cancel()

	current := start
	visited := map[string]bool{current: true}

	for hop := 0; ; hop++ {
		status, location, err := r.visit(ctx, current)
		if err != nil {
			return "", err
		}
		if !isRedirect(status) {
			return current, nil
		}
		if location == "" {
			// a redirect without target ends the chain where it stands
			return current, nil
		}
		if hop >= r.maxHops {
			return "", fmt.Errorf("%w (%d)", errHopLimit, r.maxHops)
		}

		next, err := resolveRelativeURL(current, location)
		if err != nil {
			return "", fmt.Errorf("invalid redirect target %q: %w", location, err)
		}
		if visited[next] {
			return "", fmt.Errorf("%w at %s", errLoop, next)
		}
		visited[next] = true
		current = next
	}
}

// visit issues one HEAD request, retrying with GET when the server refuses HEAD
func (r *Resolver) visit(ctx context.Context, target string) (int, string, error) {
	status, location, err := r.request(ctx, http.MethodHead, target)
	if err == nil && (status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented) {
		return r.request(ctx, http.MethodGet, target)
	}
	return status, location, err
}

func (r *Resolver) request(ctx context.Context, method, target string) (int, string, error) {
	if r.outbound != nil {
		if err := r.outbound.Acquire(ctx, 1); err != nil {
			return 0, "", fmt.Errorf("waiting for outbound slot: %w", err)
		}
		defer r.outbound.Release(1)
	}

	reqCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, target, nil)
	if err != nil {
		return 0, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()
	// drain a little so the connection can be reused
	_, _ = io.CopyN(io.Discard, resp.Body, 4096)

	return resp.StatusCode, strings.TrimSpace(resp.Header.Get("Location")), nil
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

func resolveRelativeURL(base, ref string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	abs := baseURL.ResolveReference(refURL)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", abs.Scheme)
	}
	return abs.String(), nil
}
