package app

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/Adda-Baaj/logo-fetcher/internal/domain"
)

func TestFileName(t *testing.T) {
	cases := map[[2]string]string{
		{"stripe.com", "Clearbit"}:         "stripe.com_clearbit.png",
		{"stripe.com", "Website Logo 2"}:   "stripe.com_website-logo-2.png",
		{"stripe.com", "Google Favicon"}:   "stripe.com_google-favicon.png",
		{"Stripe.com", "../../etc/passwd"}: "stripe.com_..-..-etc-passwd.png",
		{"x.com", "   "}:                   "x.com_logo.png",
	}
	for in, want := range cases {
		if got := FileName(in[0], in[1]); got != want {
			t.Fatalf("FileName(%q, %q) = %q, want %q", in[0], in[1], got, want)
		}
	}
}

func TestWritePNGs(t *testing.T) {
	rs := domain.NewResultSet(3)
	rs.Add(&domain.CandidateImage{SourceLabel: "Clearbit", Image: image.NewRGBA(image.Rect(0, 0, 64, 32))})
	rs.Add(&domain.CandidateImage{SourceLabel: "Website Logo 1", Image: image.NewGray(image.Rect(0, 0, 200, 50))})

	dir := filepath.Join(t.TempDir(), "out")
	paths, err := WritePNGs(dir, "example.com", rs)
	if err != nil {
		t.Fatalf("WritePNGs: %v", err)
	}
	if len(paths) != 2 || filepath.Base(paths[1]) != "example.com_website-logo-1.png" {
		t.Fatalf("unexpected paths %v", paths)
	}

	f, err := os.Open(paths[0])
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode written png: %v", err)
	}
	if cfg.Width != 64 || cfg.Height != 32 {
		t.Fatalf("unexpected dimensions %dx%d", cfg.Width, cfg.Height)
	}
}

func TestWritePNGsEmptySet(t *testing.T) {
	paths, err := WritePNGs(t.TempDir(), "example.com", domain.NewResultSet(1))
	if err != nil || len(paths) != 0 {
		t.Fatalf("expected no output, got %v %v", paths, err)
	}
}
