package logos

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/Adda-Baaj/logo-fetcher/internal/domain"
	"github.com/Adda-Baaj/logo-fetcher/internal/logger"
	"github.com/Adda-Baaj/logo-fetcher/pkg/httpclient"
	"github.com/Adda-Baaj/logo-fetcher/pkg/providers"

	"github.com/PuerkitoBio/goquery"
)

const (
	DefaultPageTimeout = 15 * time.Second
	maxHTMLBodyBytes   = 2 << 20 // 2 MiB

	maxScrapedImages = 3
	minLogoDimension = 50
	maxLogoWidth     = 1000
	minAspectRatio   = 0.3
	maxAspectRatio   = 5.0

	websiteVectorLabel = "Website SVG"
)

var logoTokenPattern = regexp.MustCompile(`(?i)\b(logo|brand|company-logo|site-logo|main-logo)\b`)

// Scraper fetches a company's home page and extracts logo candidates.
type Scraper struct {
	client       httpclient.Client
	validator    *VectorValidator
	headers      map[string]string
	pageTimeout  time.Duration
	imageTimeout time.Duration
	siteURL      SiteURLFunc
	log          logger.Logger
}

// ScraperOptions tunes a Scraper; zero values fall back to defaults.
type ScraperOptions struct {
	UserAgent    string
	PageTimeout  time.Duration
	ImageTimeout time.Duration
	SiteURL      SiteURLFunc
}

// NewScraper constructs a scraper with the provided HTTP client (or default).
func NewScraper(client httpclient.Client, validator *VectorValidator, opts ScraperOptions, log logger.Logger) *Scraper {
	if client == nil {
		client = providers.DefaultHTTPClient()
	}
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = DefaultPageTimeout
	}
	if opts.ImageTimeout <= 0 {
		opts.ImageTimeout = providers.DefaultAPITimeout
	}
	if opts.SiteURL == nil {
		opts.SiteURL = HTTPSSite
	}
	if validator == nil {
		validator = NewVectorValidator(client, 0, opts.ImageTimeout, opts.UserAgent, log)
	}
	return &Scraper{
		client:       client,
		validator:    validator,
		headers:      browserHeaders(opts.UserAgent),
		pageTimeout:  opts.PageTimeout,
		imageTimeout: opts.ImageTimeout,
		siteURL:      opts.SiteURL,
		log:          logger.Ensure(log),
	}
}

// Scrape returns up to three ranked raster candidates and any validated vector
// links found on the domain's home page. Failures degrade to partial results.
func (s *Scraper) Scrape(ctx context.Context, domainName string) ScrapeResult {
	pageURL := strings.TrimRight(s.siteURL(domainName), "/") + "/"

	doc, err := s.fetchPage(ctx, pageURL)
	if err != nil {
		s.log.WarnObj("website scrape failed", "scrape_error", map[string]any{
			"domain": domainName,
			"url":    pageURL,
			"error":  err.Error(),
		})
		return ScrapeResult{}
	}

	base := strings.ToLower(domain.BaseLabel(domainName))
	rasterURLs, vectorURLs := collectCandidates(doc, pageURL, base)

	result := ScrapeResult{
		Images:  s.fetchRasters(ctx, domainName, rasterURLs),
		Vectors: s.validateVectors(ctx, vectorURLs),
	}
	s.log.DebugObj("website scrape completed", "scrape_result", map[string]any{
		"domain":            domainName,
		"raster_candidates": len(rasterURLs),
		"vector_candidates": len(vectorURLs),
		"images_kept":       len(result.Images),
		"vectors_kept":      len(result.Vectors),
	})
	return result
}

func (s *Scraper) fetchPage(ctx context.Context, pageURL string) (*goquery.Document, error) {
	ctx, cancel := withTimeout(ctx, s.pageTimeout)
	defer cancel()

	resp, err := s.client.Get(ctx, pageURL, s.headers, httpclient.WithBodyLimit(maxHTMLBodyBytes))
	if errors.Is(err, httpclient.ErrBodyTooLarge) {
		return nil, fmt.Errorf("%w: %v", providers.ErrBadResponse, err)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: http fetch: %v", providers.ErrNetwork, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", providers.ErrBadResponse, resp.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("%w: parse html: %v", providers.ErrDecode, err)
	}
	return doc, nil
}

// collectCandidates returns absolute raster and vector candidate URLs in
// document order, without duplicates.
func collectCandidates(doc *goquery.Document, pageURL, base string) (rasters, vectors []string) {
	seenRaster := map[string]struct{}{}
	seenVector := map[string]struct{}{}
	addVector := func(u string) {
		if _, ok := seenVector[u]; !ok {
			seenVector[u] = struct{}{}
			vectors = append(vectors, u)
		}
	}

	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		src := imageSource(sel)
		if src == "" || strings.HasPrefix(strings.ToLower(src), "data:") {
			return
		}
		if !isLogoImage(sel, src, base) {
			return
		}
		abs := resolveURL(src, pageURL)
		if abs == "" {
			return
		}
		if hasVectorExtension(abs) {
			addVector(abs)
			return
		}
		if _, ok := seenRaster[abs]; !ok {
			seenRaster[abs] = struct{}{}
			rasters = append(rasters, abs)
		}
	})

	doc.Find("a[href], link[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if !isVectorLogoHref(href, base) {
			return
		}
		if abs := resolveURL(href, pageURL); abs != "" {
			addVector(abs)
		}
	})
	return rasters, vectors
}

func imageSource(sel *goquery.Selection) string {
	for _, attr := range []string{"src", "data-src"} {
		if v, ok := sel.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// isLogoImage matches logo tokens in src, alt, class or id, or the domain's
// base label in src or alt.
func isLogoImage(sel *goquery.Selection, src, base string) bool {
	alt, _ := sel.Attr("alt")
	class, _ := sel.Attr("class")
	id, _ := sel.Attr("id")

	for _, field := range []string{src, alt, class, id} {
		if logoTokenPattern.MatchString(field) {
			return true
		}
	}
	if base == "" {
		return false
	}
	return strings.Contains(strings.ToLower(src), base) || strings.Contains(strings.ToLower(alt), base)
}

func isVectorLogoHref(href, base string) bool {
	if href == "" || !hasVectorExtension(href) {
		return false
	}
	lower := strings.ToLower(href)
	return strings.Contains(lower, "logo") || (base != "" && strings.Contains(lower, base))
}

// resolveURL returns ref resolved against baseURL, or "" when either is unusable.
func resolveURL(ref, baseURL string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}

type imageSignature struct {
	width, height int
	ratio         string
}

func signatureOf(img *domain.CandidateImage) imageSignature {
	w, h := img.Width(), img.Height()
	return imageSignature{width: w, height: h, ratio: fmt.Sprintf("%.2f", float64(w)/float64(h))}
}

// acceptableLogoSize excludes icons, banners and degenerate shapes.
func acceptableLogoSize(w, h int) bool {
	if w < minLogoDimension || h < minLogoDimension {
		return false
	}
	if w > maxLogoWidth {
		return false
	}
	aspect := float64(w) / float64(h)
	return aspect >= minAspectRatio && aspect <= maxAspectRatio
}

func (s *Scraper) fetchRasters(ctx context.Context, domainName string, urls []string) []*domain.CandidateImage {
	seen := make(map[imageSignature]struct{}, len(urls))
	kept := make([]*domain.CandidateImage, 0, len(urls))

	for _, u := range urls {
		if ctx.Err() != nil {
			break
		}
		img, format, err := providers.DownloadImage(ctx, s.client, u, s.headers, s.imageTimeout)
		if err != nil {
			s.log.DebugObj("website image candidate skipped", "scrape_image_error", map[string]any{
				"url":   u,
				"error": err.Error(),
			})
			continue
		}
		candidate := &domain.CandidateImage{
			SourceLabel: domainName,
			Image:       img,
			OriginURL:   u,
			Format:      format,
		}
		if !acceptableLogoSize(candidate.Width(), candidate.Height()) {
			continue
		}
		sig := signatureOf(candidate)
		if _, dup := seen[sig]; dup {
			continue
		}
		seen[sig] = struct{}{}
		kept = append(kept, candidate)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Width()*kept[i].Height() > kept[j].Width()*kept[j].Height()
	})
	if len(kept) > maxScrapedImages {
		kept = kept[:maxScrapedImages]
	}
	return kept
}

func (s *Scraper) validateVectors(ctx context.Context, urls []string) []domain.VectorReference {
	var refs []domain.VectorReference
	for _, u := range urls {
		if ctx.Err() != nil {
			break
		}
		label := fmt.Sprintf("%s %d", websiteVectorLabel, len(refs)+1)
		if ref, ok := s.validator.Reference(ctx, label, u); ok {
			refs = append(refs, ref)
		}
	}
	return refs
}
