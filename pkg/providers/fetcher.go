package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Adda-Baaj/logo-fetcher/internal/domain"
	"github.com/Adda-Baaj/logo-fetcher/internal/logger"
	"github.com/Adda-Baaj/logo-fetcher/pkg/httpclient"

	"github.com/bytedance/sonic"
)

// DefaultAPITimeout bounds provider and image requests.
const DefaultAPITimeout = 10 * time.Second

// DefaultHTTPClient returns the resty-backed client used for provider lookups.
func DefaultHTTPClient() HTTPClient { return httpclient.NewRestyClient(15 * time.Second) }

// Fetcher performs single-provider lookups against a Registry.
type Fetcher struct {
	registry *Registry
	client   HTTPClient
	timeout  time.Duration
	log      logger.Logger
}

// NewFetcher builds a fetcher; nil client and non-positive timeout fall back to defaults.
func NewFetcher(reg *Registry, client HTTPClient, timeout time.Duration, log logger.Logger) *Fetcher {
	if reg == nil {
		reg = DefaultRegistry()
	}
	if client == nil {
		client = DefaultHTTPClient()
	}
	if timeout <= 0 {
		timeout = DefaultAPITimeout
	}
	return &Fetcher{
		registry: reg,
		client:   client,
		timeout:  timeout,
		log:      logger.Ensure(log),
	}
}

// Registry returns the provider table the fetcher resolves against.
func (f *Fetcher) Registry() *Registry { return f.registry }

// Fetch looks up domainName at providerID. Every failure yields nil.
func (f *Fetcher) Fetch(ctx context.Context, providerID, domainName string) *domain.CandidateImage {
	img, err := f.TryFetch(ctx, providerID, domainName)
	if err != nil {
		f.log.DebugObj("provider lookup failed", "provider_error", map[string]any{
			"provider_id": providerID,
			"domain":      domainName,
			"error":       err.Error(),
		})
		return nil
	}
	return img
}

// TryFetch is Fetch with the classified failure returned.
func (f *Fetcher) TryFetch(ctx context.Context, providerID, domainName string) (*domain.CandidateImage, error) {
	p, ok := f.registry.ByID(providerID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, providerID)
	}

	headers := Headers(p)
	imageURL := p.URLFor(domainName)

	if p.Response.Kind == ResponseJSONField {
		envelope, err := getBody(ctx, f.client, imageURL, headers, f.timeout)
		if err != nil {
			return nil, err
		}
		nested, err := extractField(envelope, p.Response.Path)
		if err != nil {
			return nil, err
		}
		imageURL = nested
	}

	img, format, err := DownloadImage(ctx, f.client, imageURL, headers, f.timeout)
	if err != nil {
		return nil, err
	}
	return &domain.CandidateImage{
		SourceLabel: p.Name,
		Image:       img,
		OriginURL:   imageURL,
		Format:      format,
	}, nil
}

// extractField reads the string at path in a JSON envelope.
func extractField(envelope []byte, path []any) (string, error) {
	node, err := sonic.Get(envelope, path...)
	if err != nil {
		return "", fmt.Errorf("%w: json path %v: %v", ErrDecode, path, err)
	}
	val, err := node.String()
	if err != nil {
		return "", fmt.Errorf("%w: json path %v is not a string: %v", ErrDecode, path, err)
	}
	val = strings.TrimSpace(val)
	if val == "" {
		return "", fmt.Errorf("%w: json path %v is empty", ErrDecode, path)
	}
	return val, nil
}
