package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Adda-Baaj/logo-fetcher/internal/config"
	"github.com/Adda-Baaj/logo-fetcher/internal/domain"
	"github.com/Adda-Baaj/logo-fetcher/internal/logger"
	"github.com/Adda-Baaj/logo-fetcher/internal/logos"
	"github.com/Adda-Baaj/logo-fetcher/internal/storage"
	"github.com/Adda-Baaj/logo-fetcher/pkg/httpclient"
	"github.com/Adda-Baaj/logo-fetcher/pkg/providers"
	"github.com/Adda-Baaj/logo-fetcher/pkg/publishers"

	"github.com/google/uuid"
)

// MaxAlternativesLimit caps the per-request raster quota.
const MaxAlternativesLimit = 5

// ErrInvalidDomain is returned when the input does not normalize to a host.
var ErrInvalidDomain = errors.New("invalid domain")

// Finder is the logo lookup runtime. It owns the aggregator and the
// side channels (history store, event fanout) fed after every lookup.
type Finder struct {
	cfg        *config.Config
	aggregator *logos.Aggregator
	store      storage.Store
	fanout     *publishers.Fanout
	log        logger.Logger
}

// NewFinder builds a finder runtime from config files.
func NewFinder(ctx context.Context, cfg *config.Config, log logger.Logger) (*Finder, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	log = logger.Ensure(log)
	if ctx == nil {
		ctx = context.Background()
	}

	providerReg, err := providers.LoadRegistry(cfg.ProvidersFile)
	if err != nil {
		return nil, fmt.Errorf("load providers registry: %w", err)
	}
	providerList := providerReg.All()
	providerIDs := make([]string, 0, len(providerList))
	for _, p := range providerList {
		providerIDs = append(providerIDs, p.ID)
	}
	log.InfoObj("providers registry loaded", "providers_meta", map[string]any{
		"count":   len(providerIDs),
		"ids":     providerIDs,
		"primary": providerReg.Primary().ID,
	})

	aggregator := buildAggregator(cfg, providerReg, log)

	fanout, err := buildFanout(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	storePath := cfg.BBoltPath
	if strings.EqualFold(cfg.StorageType, storage.TypeSQLite) {
		storePath = cfg.SQLitePath
	}
	store, err := storage.NewStore(cfg.StorageType, storePath, storage.Options{
		TTL:             cfg.StorageTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
	})
	if err != nil {
		_ = fanout.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":                     cfg.StorageType,
		"path":                     storePath,
		"ttl_seconds":              int(cfg.StorageTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.StorageCleanupInterval.Seconds()),
	})

	return newFinder(cfg, aggregator, store, fanout, log), nil
}

func newFinder(cfg *config.Config, agg *logos.Aggregator, store storage.Store, fanout *publishers.Fanout, log logger.Logger) *Finder {
	if store == nil {
		store, _ = storage.NewStore(storage.TypeNone, "", storage.Options{})
	}
	return &Finder{
		cfg:        cfg,
		aggregator: agg,
		store:      store,
		fanout:     fanout,
		log:        logger.Ensure(log),
	}
}

// buildAggregator assembles the HTTP client and every logo source.
func buildAggregator(cfg *config.Config, reg *providers.Registry, log logger.Logger) *logos.Aggregator {
	clientTimeout := max(cfg.APITimeout, cfg.PageTimeout)
	var transport http.RoundTripper
	if cfg.BrowserTLS {
		transport = httpclient.NewBrowserTransport()
	}
	client := httpclient.NewRestyClientWithTransport(clientTimeout, transport)

	fetcher := providers.NewFetcher(reg, client, cfg.APITimeout, log)
	validator := logos.NewVectorValidator(client, cfg.ProbeTimeout, cfg.APITimeout, cfg.UserAgent, log)
	scraper := logos.NewScraper(client, validator, logos.ScraperOptions{
		UserAgent:    cfg.UserAgent,
		PageTimeout:  cfg.PageTimeout,
		ImageTimeout: cfg.APITimeout,
	}, log)
	prober := logos.NewProber(validator, nil, log)

	var opts []logos.AggregatorOption
	if cfg.ParallelProviders {
		opts = append(opts, logos.WithParallelProviders(len(reg.All())))
	}
	return logos.NewAggregator(reg, fetcher, scraper, prober, log, opts...)
}

// buildFanout loads the optional publishers file; no file means no events.
func buildFanout(ctx context.Context, cfg *config.Config, log logger.Logger) (*publishers.Fanout, error) {
	if strings.TrimSpace(cfg.PublishersFile) == "" {
		return publishers.NewFanout(nil), nil
	}

	publisherReg, err := publishers.LoadRegistry(cfg.PublishersFile)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}
	enabled := publisherReg.Enabled()
	pubClients, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, pubCfg := range enabled {
		summaries = append(summaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
		})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})
	return publishers.NewFanout(pubClients), nil
}

// ClampAlternatives maps a requested quota into [1, MaxAlternativesLimit];
// non-positive requests take fallback.
func ClampAlternatives(requested, fallback int) int {
	n := requested
	if n <= 0 {
		n = fallback
	}
	return min(max(n, 1), MaxAlternativesLimit)
}

// Lookup normalizes raw, aggregates logos for it and records the outcome.
// History and event delivery failures are logged, never returned.
func (f *Finder) Lookup(ctx context.Context, raw string, maxAlternatives int, includeScraping bool) (logos.Result, error) {
	res, limit, err := f.resolve(ctx, raw, maxAlternatives, includeScraping)
	if err != nil {
		return logos.Result{}, err
	}

	rec := domain.LookupRecord{
		Domain:          res.Domain,
		MaxAlternatives: limit,
		IncludeScraping: includeScraping,
		Labels:          res.Images.Labels(),
		VectorURLs:      vectorURLs(res.Vectors),
		CreatedAt:       time.Now().UTC(),
	}
	if id, err := uuid.NewV7(); err == nil {
		rec.ID = id.String()
	}
	f.record(ctx, rec)
	return res, nil
}

// Resolve runs the same aggregation as Lookup without writing history or
// publishing an event. Callers re-fetching a result they already reported
// (downloads) use it.
func (f *Finder) Resolve(ctx context.Context, raw string, maxAlternatives int, includeScraping bool) (logos.Result, error) {
	res, _, err := f.resolve(ctx, raw, maxAlternatives, includeScraping)
	return res, err
}

func (f *Finder) resolve(ctx context.Context, raw string, maxAlternatives int, includeScraping bool) (logos.Result, int, error) {
	domainName := domain.NormalizeDomain(raw)
	if domainName == "" || strings.HasPrefix(domainName, ".") || strings.ContainsAny(domainName, " /\\") {
		return logos.Result{}, 0, fmt.Errorf("%w: %q", ErrInvalidDomain, raw)
	}

	limit := ClampAlternatives(maxAlternatives, f.cfg.MaxAlternatives)
	res := f.aggregator.FetchLogos(ctx, domainName, logos.Options{
		MaxAlternatives: limit,
		IncludeScraping: includeScraping,
	})
	return res, limit, nil
}

// History lists recent lookups, newest first.
func (f *Finder) History(ctx context.Context, limit int) ([]domain.LookupRecord, error) {
	return f.store.RecentLookups(ctx, limit)
}

// Close releases the store and publisher clients.
func (f *Finder) Close() error {
	if f == nil {
		return nil
	}
	return errors.Join(f.store.Close(), f.fanout.Close())
}

func (f *Finder) record(ctx context.Context, rec domain.LookupRecord) {
	if err := f.store.SaveLookup(ctx, rec); err != nil {
		f.log.WarnObj("lookup history write failed", "storage_error", map[string]any{
			"domain": rec.Domain,
			"error":  err.Error(),
		})
	}

	if f.fanout.Size() == 0 {
		return
	}
	delivered, err := f.fanout.Publish(ctx, publishers.NewLookupEvent(rec))
	if err != nil {
		f.log.WarnObj("lookup event delivery failed", "publisher_error", map[string]any{
			"domain":    rec.Domain,
			"delivered": delivered,
			"error":     err.Error(),
		})
	}
}

func vectorURLs(refs []domain.VectorReference) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.URL)
	}
	return out
}
