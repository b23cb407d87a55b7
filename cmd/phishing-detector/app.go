package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/stoik/phishing-detector/internal/adapters/intel"
	"github.com/stoik/phishing-detector/internal/adapters/mailparser"
	"github.com/stoik/phishing-detector/internal/adapters/resolver"
	"github.com/stoik/phishing-detector/internal/adapters/storage"
	"github.com/stoik/phishing-detector/internal/application"
	"github.com/stoik/phishing-detector/internal/config"
	"github.com/stoik/phishing-detector/internal/domain/detection"
	"github.com/stoik/phishing-detector/internal/logging"
	"github.com/stoik/phishing-detector/internal/ports"
	"golang.org/x/sync/semaphore"
)

// app holds the wired service and what must be released on exit
type app struct {
	service  *application.ScanService
	logger   *slog.Logger
	cacheTTL time.Duration
	closers  []io.Closer
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	return errors.Join(errs...)
}

// newApp wires adapters into the application layer. Outer layers build
// dependencies and inject them through constructors.
func newApp(ctx context.Context, cfg *config.Config, console io.Writer) (*app, error) {
	logger, logCloser, err := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		File:    cfg.LogFile,
		Console: console,
	})
	if err != nil {
		return nil, err
	}
	a := &app{logger: logger, cacheTTL: cfg.IntelCacheTTL, closers: []io.Closer{logCloser}}

	store, err := storage.Open(ctx, storage.Options{
		Backend: cfg.StorageBackend,
		Path:    cfg.DatabasePath,
		URL:     cfg.DatabaseURL,
		Logger:  logger,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	a.closers = append(a.closers, store)
	logger.Debug("storage ready", "backend", cfg.StorageBackend)

	// one budget of simultaneous outbound requests shared by link
	// resolution and every intel source
	outbound := semaphore.NewWeighted(int64(cfg.MaxOutboundRequests))
	httpClient := &http.Client{}

	linkResolver := resolver.New(resolver.Config{
		ShortenerDomains: cfg.ShortenerDomains,
		MaxHops:          cfg.ResolverMaxHops,
		Timeout:          cfg.ResolverTimeout,
		ChainTimeout:     cfg.ResolverChainTimeout,
	}, httpClient, outbound, logger)

	reputation := application.NewReputationStore(store)
	aggregator := application.NewVendorAggregator(
		intelSources(cfg, store, httpClient, outbound, logger),
		reputation,
		cfg.IntelSourceTimeout,
		logger,
	)
	analyzer := application.NewURLAnalyzer(linkResolver, aggregator, cfg.MaxURLsPerScan, cfg.URLConcurrency, logger)
	detector := detection.NewDetector(detection.NewDetectionContext(cfg.InternalDomains, cfg.TrustedDomains))

	a.service = application.NewScanService(mailparser.NewParser(), analyzer, aggregator, reputation, detector, store, store, logger)

	if err := a.service.SeedWhitelist(ctx, cfg.ReputationSeedWhitelist); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// intelSources builds the configured threat-intel sources. Without any live
// source the static table keeps the pipeline demonstrable offline.
func intelSources(cfg *config.Config, cache ports.IntelCache, client *http.Client, outbound *semaphore.Weighted, logger *slog.Logger) []ports.IntelSource {
	var sources []ports.IntelSource

	if cfg.VirusTotalEnabled() {
		vt := intel.NewVirusTotalSource(cfg.VirusTotalAPIKey, cfg.VirusTotalBaseURL, client, outbound)
		sources = append(sources, intel.NewCachedSource(
			intel.NewRateLimitedSource(vt, cfg.VirusTotalRatePerMin),
			cache, cfg.IntelCacheTTL, logger,
		))
	}
	if cfg.OpenPhishEnabled {
		sources = append(sources, intel.NewOpenPhishSource(cfg.OpenPhishFeedURL, cfg.OpenPhishTTL, client, outbound, logger))
	}

	if len(sources) == 0 {
		logger.Warn("no live intel source configured, using the static demo table")
		sources = append(sources, intel.NewStaticSource(nil))
	}
	return sources
}
