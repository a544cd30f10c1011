package logos

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/Adda-Baaj/logo-fetcher/pkg/httpclient"
)

const validSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 64 64"><circle r="4"/></svg>`

func newTestProber(srv *httptest.Server) *Prober {
	client := httpclient.NewRestyClient(5 * time.Second)
	validator := NewVectorValidator(client, time.Second, time.Second, "", nil)
	return NewProber(validator, func(string) string { return srv.URL }, nil)
}

func TestProbeCommonPathsStopsAtFirstHit(t *testing.T) {
	mux := http.NewServeMux()
	serveBody(mux, "/logo.svg", "image/svg+xml", validSVG)
	serveBody(mux, "/example.svg", "image/svg+xml", validSVG)
	log := &requestLog{}
	srv := httptest.NewServer(log.wrap(mux))
	defer srv.Close()

	refs := newTestProber(srv).ProbeCommonPaths(context.Background(), "example.com")
	if len(refs) != 1 {
		t.Fatalf("expected exactly one reference, got %+v", refs)
	}
	if refs[0].SourceLabel != "Common Path SVG" || refs[0].URL != srv.URL+"/logo.svg" {
		t.Fatalf("unexpected reference %+v", refs[0])
	}
	if refs[0].ViewBox != "0 0 64 64" {
		t.Fatalf("unexpected viewBox %q", refs[0].ViewBox)
	}
	want := []string{"HEAD /logo.svg", "GET /logo.svg"}
	if got := log.all(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected requests %v, got %v", want, got)
	}
}

func TestProbeCommonPathsWalksInOrder(t *testing.T) {
	mux := http.NewServeMux()
	serveBody(mux, "/assets/logo.svg", "image/svg+xml", validSVG)
	log := &requestLog{}
	srv := httptest.NewServer(log.wrap(mux))
	defer srv.Close()

	refs := newTestProber(srv).ProbeCommonPaths(context.Background(), "example.com")
	if len(refs) != 1 || !strings.HasSuffix(refs[0].URL, "/assets/logo.svg") {
		t.Fatalf("unexpected references %+v", refs)
	}
	want := []string{
		"HEAD /logo.svg",
		"HEAD /example.svg",
		"HEAD /example-logo.svg",
		"HEAD /assets/logo.svg",
		"GET /assets/logo.svg",
	}
	if got := log.all(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected requests %v, got %v", want, got)
	}
}

func TestProbeCommonPathsNothingFound(t *testing.T) {
	log := &requestLog{}
	srv := httptest.NewServer(log.wrap(http.NotFoundHandler()))
	defer srv.Close()

	if refs := newTestProber(srv).ProbeCommonPaths(context.Background(), "example.com"); len(refs) != 0 {
		t.Fatalf("expected no references, got %+v", refs)
	}
	if got, want := len(log.all()), len(commonPaths("example")); got != want {
		t.Fatalf("expected %d probes, got %d", want, got)
	}
}

func TestProbeCommonPathsHonoursCancellation(t *testing.T) {
	log := &requestLog{}
	srv := httptest.NewServer(log.wrap(http.NotFoundHandler()))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if refs := newTestProber(srv).ProbeCommonPaths(ctx, "example.com"); len(refs) != 0 {
		t.Fatalf("expected no references, got %+v", refs)
	}
	if got := log.all(); len(got) != 0 {
		t.Fatalf("expected no requests after cancellation, got %v", got)
	}
}

func TestVectorValidatorRejections(t *testing.T) {
	mux := http.NewServeMux()
	serveBody(mux, "/soft-404.svg", "text/html", `<!doctype html><html><body><svg></svg></body></html>`)
	serveBody(mux, "/truncated.svg", "image/svg+xml", `<svg xmlns="http://www.w3.org/2000/svg">`)
	serveBody(mux, "/logo", "image/png", validSVG)
	serveBody(mux, "/typed-logo", "image/svg+xml; charset=utf-8", validSVG)
	serveBody(mux, "/huge.svg", "image/svg+xml", `<svg xmlns="http://www.w3.org/2000/svg">`+strings.Repeat("<g/>", maxVectorBodyBytes/4)+`</svg>`)
	log := &requestLog{}
	srv := httptest.NewServer(log.wrap(mux))
	defer srv.Close()

	v := NewVectorValidator(httpclient.NewRestyClient(5*time.Second), time.Second, time.Second, "", nil)
	ctx := context.Background()

	for _, path := range []string{"/missing.svg", "/soft-404.svg", "/truncated.svg", "/logo", "/huge.svg"} {
		if _, ok := v.Validate(ctx, srv.URL+path); ok {
			t.Fatalf("%s should not validate", path)
		}
	}
	if n := log.count("GET /logo"); n != 0 {
		t.Fatalf("untyped non-svg path should not be downloaded, got %d requests", n)
	}
	if n := log.count("GET /missing.svg"); n != 0 {
		t.Fatalf("failed HEAD should short-circuit, got %d requests", n)
	}

	if got, ok := v.Validate(ctx, srv.URL+"/typed-logo"); !ok || got != srv.URL+"/typed-logo" {
		t.Fatalf("svg content type should validate without extension, got %q %v", got, ok)
	}
}

func TestCommonPaths(t *testing.T) {
	paths := commonPaths("logo")
	seen := map[string]bool{}
	for _, p := range paths {
		if seen[p] {
			t.Fatalf("duplicate path %s", p)
		}
		seen[p] = true
	}
	if paths[0] != "/logo.svg" {
		t.Fatalf("expected /logo.svg first, got %s", paths[0])
	}

	for _, p := range commonPaths("") {
		if strings.Contains(p, "//") || strings.HasPrefix(p, "/-") || strings.Contains(p, "/.svg") {
			t.Fatalf("empty base produced %s", p)
		}
	}
}
