package domain

import (
	"net/url"
	"strings"
)

// NormalizeDomain reduces user input to a bare host: full URLs keep only their
// host, and a dotless name gets a ".com" suffix.
func NormalizeDomain(raw string) string {
	d := strings.TrimSpace(raw)
	if d == "" {
		return ""
	}

	if strings.HasPrefix(strings.ToLower(d), "http") {
		if u, err := url.Parse(d); err == nil && u.Host != "" {
			return strings.ToLower(u.Hostname())
		}
	}

	d = strings.TrimRight(d, "/")
	if !strings.Contains(d, ".") {
		d += ".com"
	}
	return strings.ToLower(d)
}

// BaseLabel returns the text before the first dot of a domain.
func BaseLabel(domainName string) string {
	if i := strings.Index(domainName, "."); i >= 0 {
		return domainName[:i]
	}
	return domainName
}
