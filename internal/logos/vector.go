package logos

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Adda-Baaj/logo-fetcher/internal/domain"
	"github.com/Adda-Baaj/logo-fetcher/internal/logger"
	"github.com/Adda-Baaj/logo-fetcher/pkg/httpclient"
	"github.com/Adda-Baaj/logo-fetcher/pkg/providers"

	"github.com/beevik/etree"
	"github.com/gabriel-vasile/mimetype"
)

const (
	DefaultProbeTimeout = 5 * time.Second
	maxVectorBodyBytes  = 2 << 20
	commonPathLabel     = "Common Path SVG"
)

var (
	svgOpenMarker  = []byte("<svg")
	svgCloseMarker = []byte("</svg>")
)

// VectorValidator confirms that a URL serves an SVG document: a HEAD
// existence check first, then a GET whose body must carry the SVG root markers.
type VectorValidator struct {
	client       httpclient.Client
	headTimeout  time.Duration
	fetchTimeout time.Duration
	headers      map[string]string
	log          logger.Logger
}

// NewVectorValidator builds a validator; non-positive timeouts fall back to defaults.
func NewVectorValidator(client httpclient.Client, headTimeout, fetchTimeout time.Duration, userAgent string, log logger.Logger) *VectorValidator {
	if client == nil {
		client = providers.DefaultHTTPClient()
	}
	if headTimeout <= 0 {
		headTimeout = DefaultProbeTimeout
	}
	if fetchTimeout <= 0 {
		fetchTimeout = providers.DefaultAPITimeout
	}
	return &VectorValidator{
		client:       client,
		headTimeout:  headTimeout,
		fetchTimeout: fetchTimeout,
		headers:      browserHeaders(userAgent),
		log:          logger.Ensure(log),
	}
}

// Validate returns rawURL when it serves an SVG document.
func (v *VectorValidator) Validate(ctx context.Context, rawURL string) (string, bool) {
	if _, err := v.check(ctx, rawURL); err != nil {
		v.log.DebugObj("vector candidate rejected", "vector_error", map[string]any{
			"url":   rawURL,
			"error": err.Error(),
		})
		return "", false
	}
	return rawURL, true
}

// Reference validates rawURL and returns it as a labeled VectorReference.
func (v *VectorValidator) Reference(ctx context.Context, label, rawURL string) (domain.VectorReference, bool) {
	meta, err := v.check(ctx, rawURL)
	if err != nil {
		v.log.DebugObj("vector candidate rejected", "vector_error", map[string]any{
			"url":   rawURL,
			"error": err.Error(),
		})
		return domain.VectorReference{}, false
	}
	return domain.VectorReference{
		SourceLabel: label,
		URL:         rawURL,
		ViewBox:     meta.viewBox,
		Width:       meta.width,
		Height:      meta.height,
	}, true
}

type svgMeta struct {
	viewBox string
	width   string
	height  string
}

func (v *VectorValidator) check(ctx context.Context, rawURL string) (svgMeta, error) {
	headCtx, cancel := withTimeout(ctx, v.headTimeout)
	head, err := v.client.Head(headCtx, rawURL, v.headers)
	cancel()
	if err != nil {
		return svgMeta{}, fmt.Errorf("%w: head %s: %v", providers.ErrNetwork, rawURL, err)
	}
	if head.StatusCode() != http.StatusOK {
		return svgMeta{}, fmt.Errorf("%w: head %s returned status %d", providers.ErrBadResponse, rawURL, head.StatusCode())
	}
	if !declaresVector(head.Header().Get("Content-Type"), rawURL) {
		return svgMeta{}, fmt.Errorf("%w: %s is neither typed nor named as svg", ErrValidation, rawURL)
	}

	getCtx, cancel := withTimeout(ctx, v.fetchTimeout)
	defer cancel()
	resp, err := v.client.Get(getCtx, rawURL, v.headers, httpclient.WithBodyLimit(maxVectorBodyBytes))
	if errors.Is(err, httpclient.ErrBodyTooLarge) {
		return svgMeta{}, fmt.Errorf("%w: %v", providers.ErrBadResponse, err)
	}
	if err != nil {
		return svgMeta{}, fmt.Errorf("%w: get %s: %v", providers.ErrNetwork, rawURL, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return svgMeta{}, fmt.Errorf("%w: get %s returned status %d", providers.ErrBadResponse, rawURL, resp.StatusCode())
	}
	body := resp.Body()
	if !hasSVGMarkers(body) {
		return svgMeta{}, fmt.Errorf("%w: %s body lacks svg root markers", ErrValidation, rawURL)
	}
	// soft-404 pages often embed inline icons
	if mimetype.Detect(body).Is("text/html") {
		return svgMeta{}, fmt.Errorf("%w: %s served an html document", ErrValidation, rawURL)
	}
	return readSVGMeta(body), nil
}

func declaresVector(contentType, rawURL string) bool {
	if strings.Contains(strings.ToLower(contentType), "svg") {
		return true
	}
	return hasVectorExtension(rawURL)
}

// hasVectorExtension checks the URL path, ignoring query and fragment.
func hasVectorExtension(rawURL string) bool {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
	}
	return strings.HasSuffix(strings.ToLower(path), ".svg")
}

func hasSVGMarkers(body []byte) bool {
	lower := bytes.ToLower(body)
	return bytes.Contains(lower, svgOpenMarker) && bytes.Contains(lower, svgCloseMarker)
}

// readSVGMeta pulls sizing attributes from the root element; it is best effort.
func readSVGMeta(body []byte) svgMeta {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return svgMeta{}
	}
	root := doc.Root()
	if root == nil || !strings.EqualFold(root.Tag, "svg") {
		return svgMeta{}
	}
	return svgMeta{
		viewBox: root.SelectAttrValue("viewBox", ""),
		width:   root.SelectAttrValue("width", ""),
		height:  root.SelectAttrValue("height", ""),
	}
}

// Prober guesses conventional vector logo paths on a company's site.
type Prober struct {
	validator *VectorValidator
	siteURL   SiteURLFunc
	log       logger.Logger
}

// NewProber builds a prober; a nil siteURL means https://{domain}.
func NewProber(validator *VectorValidator, siteURL SiteURLFunc, log logger.Logger) *Prober {
	if siteURL == nil {
		siteURL = HTTPSSite
	}
	return &Prober{
		validator: validator,
		siteURL:   siteURL,
		log:       logger.Ensure(log),
	}
}

// commonPaths lists conventional vector logo locations, most likely first.
func commonPaths(base string) []string {
	templates := []string{
		"/logo.svg",
		"/{base}.svg",
		"/{base}-logo.svg",
		"/assets/logo.svg",
		"/assets/{base}-logo.svg",
		"/assets/images/logo.svg",
		"/images/logo.svg",
		"/images/{base}-logo.svg",
		"/static/logo.svg",
		"/static/images/logo.svg",
		"/img/logo.svg",
		"/img/{base}-logo.svg",
		"/media/logo.svg",
		"/wp-content/uploads/logo.svg",
		"/wp-content/uploads/{base}-logo.svg",
	}

	seen := make(map[string]struct{}, len(templates))
	out := make([]string, 0, len(templates))
	for _, tmpl := range templates {
		if base == "" && strings.Contains(tmpl, "{base}") {
			continue
		}
		path := strings.ReplaceAll(tmpl, "{base}", base)
		if _, dup := seen[path]; dup {
			continue
		}
		seen[path] = struct{}{}
		out = append(out, path)
	}
	return out
}

// ProbeCommonPaths returns the first conventional path that validates, or nothing.
func (p *Prober) ProbeCommonPaths(ctx context.Context, domainName string) []domain.VectorReference {
	if p == nil || p.validator == nil {
		return nil
	}
	site := strings.TrimRight(p.siteURL(domainName), "/")
	for _, path := range commonPaths(domain.BaseLabel(domainName)) {
		if ctx.Err() != nil {
			return nil
		}
		if ref, ok := p.validator.Reference(ctx, commonPathLabel, site+path); ok {
			p.log.DebugObj("vector logo found at common path", "vector_probe", map[string]any{
				"domain": domainName,
				"url":    ref.URL,
			})
			return []domain.VectorReference{ref}
		}
	}
	return nil
}
