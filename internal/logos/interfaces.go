package logos

import (
	"context"
	"errors"

	"github.com/Adda-Baaj/logo-fetcher/internal/domain"
)

// ErrValidation marks a candidate vector URL whose content is not an SVG document.
var ErrValidation = errors.New("vector validation failure")

// SourceFetcher performs a single provider lookup; nil means absent.
type SourceFetcher interface {
	Fetch(ctx context.Context, providerID, domainName string) *domain.CandidateImage
}

// SiteScraper discovers logo candidates on a company's own website.
type SiteScraper interface {
	Scrape(ctx context.Context, domainName string) ScrapeResult
}

// PathProber guesses conventional vector logo locations.
type PathProber interface {
	ProbeCommonPaths(ctx context.Context, domainName string) []domain.VectorReference
}

// ScrapeResult holds ranked raster candidates and validated vector references.
type ScrapeResult struct {
	Images  []*domain.CandidateImage
	Vectors []domain.VectorReference
}
