package logos

import (
	"context"
	"fmt"
	"time"

	"github.com/Adda-Baaj/logo-fetcher/internal/domain"
	"github.com/Adda-Baaj/logo-fetcher/internal/logger"
	"github.com/Adda-Baaj/logo-fetcher/pkg/providers"

	"golang.org/x/sync/errgroup"
)

const websiteImageLabel = "Website Logo"

// Options controls a single aggregation run.
type Options struct {
	MaxAlternatives int
	IncludeScraping bool
}

// Result is the outcome of an aggregation run. Vectors are reported
// separately and do not count against the raster quota.
type Result struct {
	Domain  string
	Images  *domain.ResultSet
	Vectors []domain.VectorReference
}

// Aggregator queries logo sources in priority order and merges their results.
type Aggregator struct {
	registry *providers.Registry
	fetcher  SourceFetcher
	scraper  SiteScraper
	prober   PathProber
	parallel int
	log      logger.Logger
}

// AggregatorOption customises an Aggregator.
type AggregatorOption func(*Aggregator)

// WithParallelProviders prefetches providers concurrently, at most limit at a
// time. Results are still merged in registry order.
func WithParallelProviders(limit int) AggregatorOption {
	return func(a *Aggregator) { a.parallel = limit }
}

// NewAggregator wires the sources. scraper and prober may be nil.
func NewAggregator(reg *providers.Registry, fetcher SourceFetcher, scraper SiteScraper, prober PathProber, log logger.Logger, opts ...AggregatorOption) *Aggregator {
	if reg == nil {
		reg = providers.DefaultRegistry()
	}
	a := &Aggregator{
		registry: reg,
		fetcher:  fetcher,
		scraper:  scraper,
		prober:   prober,
		log:      logger.Ensure(log),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// FetchLogos collects up to opts.MaxAlternatives distinct raster logos for
// domainName: primary provider, remaining providers in registry order, then
// scraped website candidates. Vector references come from the scrape, or from
// common-path probing when the scrape yields none.
func (a *Aggregator) FetchLogos(ctx context.Context, domainName string, opts Options) Result {
	start := time.Now()
	limit := opts.MaxAlternatives
	if limit < 1 {
		limit = 1
	}
	results := domain.NewResultSet(limit)

	all := a.registry.All()
	primary := a.registry.Primary()
	lookup := a.providerLookup(ctx, domainName, all)

	if img := lookup(primary.ID); img != nil {
		results.Add(img)
	}

	for _, p := range all {
		if results.Full() {
			break
		}
		if p.ID == primary.ID {
			continue
		}
		img := lookup(p.ID)
		if img == nil {
			continue
		}
		if !results.Add(img) {
			reason := "label_taken"
			if results.HasNearDuplicate(img) {
				reason = "near_duplicate"
			}
			a.log.DebugObj("provider result suppressed", "dedupe", map[string]any{
				"provider_id": p.ID,
				"label":       img.SourceLabel,
				"reason":      reason,
				"width":       img.Width(),
				"height":      img.Height(),
			})
		}
	}

	var vectors []domain.VectorReference
	if opts.IncludeScraping && !results.Full() && a.scraper != nil {
		scraped := a.scraper.Scrape(ctx, domainName)
		for i, img := range scraped.Images {
			if results.Full() {
				break
			}
			labeled := *img
			labeled.SourceLabel = fmt.Sprintf("%s %d", websiteImageLabel, i+1)
			results.Add(&labeled)
		}
		vectors = scraped.Vectors
	}

	if len(vectors) == 0 && a.prober != nil {
		vectors = a.prober.ProbeCommonPaths(ctx, domainName)
	}

	a.log.InfoObj("logo lookup completed", "lookup_result", map[string]any{
		"domain":      domainName,
		"images":      results.Labels(),
		"vectors":     len(vectors),
		"max":         limit,
		"scraping":    opts.IncludeScraping,
		"elapsed_ms":  time.Since(start).Milliseconds(),
		"parallelism": a.parallel,
	})

	return Result{Domain: domainName, Images: results, Vectors: vectors}
}

// providerLookup returns the per-provider fetch used by the merge loop. In
// parallel mode every provider is fetched up front; the merge loop still
// walks them in priority order and stops at the quota.
func (a *Aggregator) providerLookup(ctx context.Context, domainName string, all []providers.Provider) func(id string) *domain.CandidateImage {
	if a.fetcher == nil {
		return func(string) *domain.CandidateImage { return nil }
	}
	if a.parallel <= 1 {
		return func(id string) *domain.CandidateImage {
			return a.fetcher.Fetch(ctx, id, domainName)
		}
	}

	fetched := make([]*domain.CandidateImage, len(all))
	var g errgroup.Group
	g.SetLimit(a.parallel)
	for i, p := range all {
		g.Go(func() error {
			fetched[i] = a.fetcher.Fetch(ctx, p.ID, domainName)
			return nil
		})
	}
	_ = g.Wait()

	byID := make(map[string]*domain.CandidateImage, len(all))
	for i, p := range all {
		byID[p.ID] = fetched[i]
	}
	return func(id string) *domain.CandidateImage { return byID[id] }
}
