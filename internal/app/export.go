package app

import (
	"bytes"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Adda-Baaj/logo-fetcher/internal/domain"
)

var unsafeFileChars = regexp.MustCompile(`[^a-z0-9.]+`)

// EncodePNG re-encodes a candidate as PNG regardless of its source format.
func EncodePNG(img *domain.CandidateImage) ([]byte, error) {
	if img == nil || img.Image == nil {
		return nil, fmt.Errorf("no image to encode")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img.Image); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// FileName derives the on-disk name for one result entry, e.g.
// "stripe.com_website-logo-1.png".
func FileName(domainName, label string) string {
	slug := strings.Trim(unsafeFileChars.ReplaceAllString(strings.ToLower(label), "-"), "-")
	if slug == "" {
		slug = "logo"
	}
	return fmt.Sprintf("%s_%s.png", unsafeFileChars.ReplaceAllString(strings.ToLower(domainName), "-"), slug)
}

// WritePNGs stores every image of rs under dir and returns the written paths
// in result order.
func WritePNGs(dir, domainName string, rs *domain.ResultSet) ([]string, error) {
	if rs == nil || rs.Len() == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	paths := make([]string, 0, rs.Len())
	for _, img := range rs.Entries() {
		data, err := EncodePNG(img)
		if err != nil {
			return paths, fmt.Errorf("%s: %w", img.SourceLabel, err)
		}
		path := filepath.Join(dir, FileName(domainName, img.SourceLabel))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
