package logos

import (
	"context"
	"time"

	"github.com/Adda-Baaj/logo-fetcher/internal/config"
)

// SiteURLFunc maps a domain to the scheme+host its pages are fetched from.
type SiteURLFunc func(domainName string) string

// HTTPSSite is the default SiteURLFunc.
func HTTPSSite(domainName string) string { return "https://" + domainName }

// browserHeaders imitates a desktop browser navigation request.
func browserHeaders(userAgent string) map[string]string {
	if userAgent == "" {
		userAgent = config.DefaultUserAgent
	}
	return map[string]string{
		"User-Agent":      userAgent,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
		"Accept-Encoding": "gzip, deflate, br",
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
