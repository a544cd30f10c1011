package domain

import (
	"image"
	"time"
)

// CandidateImage is a decoded raster logo produced by a fetch or scrape step.
type CandidateImage struct {
	SourceLabel string
	Image       image.Image
	OriginURL   string
	Format      string
}

// Width of the decoded bitmap.
func (c *CandidateImage) Width() int {
	if c == nil || c.Image == nil {
		return 0
	}
	return c.Image.Bounds().Dx()
}

// Height of the decoded bitmap.
func (c *CandidateImage) Height() int {
	if c == nil || c.Image == nil {
		return 0
	}
	return c.Image.Bounds().Dy()
}

// VectorReference points at a validated vector logo. The core never rasterizes it.
type VectorReference struct {
	SourceLabel string `json:"source_label"`
	URL         string `json:"url"`
	ViewBox     string `json:"view_box,omitempty"`
	Width       string `json:"width,omitempty"`
	Height      string `json:"height,omitempty"`
}

// LookupRecord summarizes one aggregation run for history and downstream events.
type LookupRecord struct {
	ID              string    `json:"id"`
	Domain          string    `json:"domain"`
	MaxAlternatives int       `json:"max_alternatives"`
	IncludeScraping bool      `json:"include_scraping"`
	Labels          []string  `json:"labels"`
	VectorURLs      []string  `json:"vector_urls"`
	CreatedAt       time.Time `json:"created_at"`
}
