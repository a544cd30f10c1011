package httpclient

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
)

func TestRestyClientGetSendsHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "UA" {
			t.Errorf("expected UA header, got %q", got)
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("hello"))
	}))
	defer srv.Close()

	client := NewRestyClient(2 * time.Second)
	resp, err := client.Get(context.Background(), srv.URL, map[string]string{"User-Agent": "UA"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.StatusCode() != http.StatusOK || string(resp.Body()) != "hello" {
		t.Fatalf("unexpected response %d %q", resp.StatusCode(), resp.Body())
	}
	if resp.Header().Get("Content-Type") != "text/plain" {
		t.Fatalf("missing content type header")
	}
}

func TestRestyClientHead(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("expected HEAD, got %s", r.Method)
		}
		w.Header().Set("Content-Type", "image/svg+xml")
	}))
	defer srv.Close()

	resp, err := NewRestyClient(time.Second).Head(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if resp.StatusCode() != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode())
	}
	if len(resp.Body()) != 0 {
		t.Fatalf("expected empty HEAD body")
	}
}

func TestRestyClientDecodesBrotli(t *testing.T) {
	var buf bytes.Buffer
	bw := brotli.NewWriter(&buf)
	_, _ = bw.Write([]byte("<html>logo</html>"))
	_ = bw.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Encoding", "br")
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	resp, err := NewRestyClient(time.Second).Get(context.Background(), srv.URL, map[string]string{"Accept-Encoding": "br"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(resp.Body()) != "<html>logo</html>" {
		t.Fatalf("unexpected body %q", resp.Body())
	}
}

func TestDecodeBodyGzipOnlyWhenCompressed(t *testing.T) {
	plain := []byte("already inflated")
	got, err := decodeBody("gzip", plain, 0)
	if err != nil || !bytes.Equal(got, plain) {
		t.Fatalf("expected passthrough, got %q err=%v", got, err)
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, _ = gz.Write(plain)
	_ = gz.Close()

	got, err = decodeBody("gzip", buf.Bytes(), 0)
	if err != nil || !bytes.Equal(got, plain) {
		t.Fatalf("expected inflated body, got %q err=%v", got, err)
	}
}

func TestDecodeBodyUnknownEncodingPassthrough(t *testing.T) {
	got, err := decodeBody("identity", []byte("x"), 0)
	if err != nil || string(got) != "x" {
		t.Fatalf("unexpected result %q err=%v", got, err)
	}
}

func TestRestyClientBodyLimitStopsReading(t *testing.T) {
	const total = 64 << 20
	var written atomic.Int64
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		defer close(done)
		chunk := make([]byte, 32<<10)
		for written.Load() < total {
			n, err := w.Write(chunk)
			written.Add(int64(n))
			if err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	_, err := NewRestyClient(5*time.Second).Get(context.Background(), srv.URL, nil, WithBodyLimit(1<<20))
	if !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("expected ErrBodyTooLarge, got %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("server kept writing after the client gave up")
	}
	if got := written.Load(); got >= total/2 {
		t.Fatalf("expected the read to stop early, server wrote %d bytes", got)
	}
}

func TestRestyClientBodyLimitAllowsSmallBodies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("tiny"))
	}))
	defer srv.Close()

	resp, err := NewRestyClient(time.Second).Get(context.Background(), srv.URL, nil, WithBodyLimit(16))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(resp.Body()) != "tiny" {
		t.Fatalf("unexpected body %q", resp.Body())
	}
}

func TestDecodeBodyRejectsOversizedInflation(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, _ = gz.Write(make([]byte, 1<<20))
	_ = gz.Close()

	if _, err := decodeBody("gzip", buf.Bytes(), 4096); !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("expected ErrBodyTooLarge, got %v", err)
	}
	got, err := decodeBody("gzip", buf.Bytes(), 1<<20)
	if err != nil || len(got) != 1<<20 {
		t.Fatalf("expected exact-limit body to pass, got %d bytes err=%v", len(got), err)
	}
}
