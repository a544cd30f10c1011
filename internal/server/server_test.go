package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Adda-Baaj/logo-fetcher/internal/app"
	"github.com/Adda-Baaj/logo-fetcher/internal/domain"
	"github.com/Adda-Baaj/logo-fetcher/internal/logos"
)

type fakeFinder struct {
	lastDomain string
	lastMax    int
	lastScrape bool
	recorded   int
	history    []domain.LookupRecord
	historyErr error
}

func (f *fakeFinder) Lookup(ctx context.Context, raw string, maxAlternatives int, includeScraping bool) (logos.Result, error) {
	res, err := f.Resolve(ctx, raw, maxAlternatives, includeScraping)
	if err == nil {
		f.recorded++
	}
	return res, err
}

func (f *fakeFinder) Resolve(_ context.Context, raw string, maxAlternatives int, includeScraping bool) (logos.Result, error) {
	f.lastDomain, f.lastMax, f.lastScrape = raw, maxAlternatives, includeScraping
	if raw == "bad domain" {
		return logos.Result{}, fmt.Errorf("%w: %q", app.ErrInvalidDomain, raw)
	}
	rs := domain.NewResultSet(3)
	rs.Add(&domain.CandidateImage{SourceLabel: "Clearbit", Image: image.NewRGBA(image.Rect(0, 0, 128, 64)), Format: "png"})
	rs.Add(&domain.CandidateImage{SourceLabel: "Website Logo 1", Image: image.NewRGBA(image.Rect(0, 0, 300, 100))})
	return logos.Result{
		Domain:  raw,
		Images:  rs,
		Vectors: []domain.VectorReference{{SourceLabel: "Common Path SVG", URL: "https://" + raw + "/logo.svg"}},
	}, nil
}

func (f *fakeFinder) History(_ context.Context, limit int) ([]domain.LookupRecord, error) {
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	if limit > 0 && limit < len(f.history) {
		return f.history[:limit], nil
	}
	return f.history, nil
}

func newTestRouter(t *testing.T, finder LogoFinder) http.Handler {
	t.Helper()
	engine, err := NewRouter(Options{Finder: finder, DefaultScraping: true})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return engine
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	rec := get(t, newTestRouter(t, &fakeFinder{}), "/healthz")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}

func TestLookupReturnsImagesAndVectors(t *testing.T) {
	finder := &fakeFinder{}
	rec := get(t, newTestRouter(t, finder), "/v1/logos?domain=stripe.com&max=2&scrape=false")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if finder.lastMax != 2 || finder.lastScrape {
		t.Fatalf("query not forwarded: max=%d scrape=%v", finder.lastMax, finder.lastScrape)
	}
	if finder.recorded != 1 {
		t.Fatalf("expected the lookup to be recorded once, got %d", finder.recorded)
	}

	var body LookupResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Domain != "stripe.com" || len(body.Images) != 2 || len(body.Vectors) != 1 {
		t.Fatalf("unexpected body %+v", body)
	}
	if body.Images[0].Label != "Clearbit" || body.Images[0].Width != 128 {
		t.Fatalf("unexpected first image %+v", body.Images[0])
	}
	raw, err := base64.StdEncoding.DecodeString(body.Images[1].PNGBase64)
	if err != nil {
		t.Fatalf("decode base64: %v", err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(raw))
	if err != nil || cfg.Width != 300 || cfg.Height != 100 {
		t.Fatalf("unexpected png %+v %v", cfg, err)
	}
}

func TestLookupDefaultsAndValidation(t *testing.T) {
	finder := &fakeFinder{}
	h := newTestRouter(t, finder)

	if rec := get(t, h, "/v1/logos?domain=apple"); rec.Code != http.StatusOK || !finder.lastScrape || finder.lastMax != 0 {
		t.Fatalf("expected defaults to apply, code=%d scrape=%v max=%d", rec.Code, finder.lastScrape, finder.lastMax)
	}
	for _, target := range []string{
		"/v1/logos",
		"/v1/logos?domain=x.com&max=abc",
		"/v1/logos?domain=x.com&scrape=maybe",
		"/v1/logos?domain=bad+domain",
	} {
		if rec := get(t, h, target); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, rec.Code)
		}
	}
}

func TestDownloadServesPNGAttachment(t *testing.T) {
	finder := &fakeFinder{}
	h := newTestRouter(t, finder)

	rec := get(t, h, "/v1/logos/download?domain=stripe.com&label=Website+Logo+1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "stripe.com_website-logo-1.png") {
		t.Fatalf("unexpected disposition %q", cd)
	}
	if _, err := png.Decode(rec.Body); err != nil {
		t.Fatalf("body is not a png: %v", err)
	}

	if rec := get(t, h, "/v1/logos/download?domain=stripe.com&label=Nope"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := get(t, h, "/v1/logos/download?domain=stripe.com"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without label, got %d", rec.Code)
	}
	if finder.recorded != 0 {
		t.Fatalf("downloads must not record lookups, got %d", finder.recorded)
	}
}

func TestHistory(t *testing.T) {
	finder := &fakeFinder{history: []domain.LookupRecord{{ID: "2", Domain: "b.com"}, {ID: "1", Domain: "a.com"}}}
	h := newTestRouter(t, finder)

	rec := get(t, h, "/v1/history?limit=1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var body struct {
		Lookups []domain.LookupRecord `json:"lookups"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Lookups) != 1 || body.Lookups[0].Domain != "b.com" {
		t.Fatalf("unexpected lookups %+v", body.Lookups)
	}

	if rec := get(t, h, "/v1/history?limit=-3"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	finder.historyErr = errors.New("db locked")
	if rec := get(t, h, "/v1/history"); rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestNewRouterRequiresFinder(t *testing.T) {
	if _, err := NewRouter(Options{}); err == nil {
		t.Fatalf("expected error without finder")
	}
}
