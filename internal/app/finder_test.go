package app

import (
	"context"
	"errors"
	"image"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Adda-Baaj/logo-fetcher/internal/config"
	"github.com/Adda-Baaj/logo-fetcher/internal/domain"
	"github.com/Adda-Baaj/logo-fetcher/internal/logos"
	"github.com/Adda-Baaj/logo-fetcher/internal/storage"
	"github.com/Adda-Baaj/logo-fetcher/pkg/providers"
	"github.com/Adda-Baaj/logo-fetcher/pkg/publishers"
)

type stubFetcher struct {
	mu      sync.Mutex
	sizes   map[string][2]int
	domains []string
}

func (s *stubFetcher) Fetch(_ context.Context, id, domainName string) *domain.CandidateImage {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.domains = append(s.domains, domainName)
	size, ok := s.sizes[id]
	if !ok {
		return nil
	}
	return &domain.CandidateImage{SourceLabel: id, Image: image.NewRGBA(image.Rect(0, 0, size[0], size[1]))}
}

type recordingPublisher struct {
	events []publishers.Event
	err    error
}

func (r *recordingPublisher) ID() string   { return "rec" }
func (r *recordingPublisher) Type() string { return "memory" }
func (r *recordingPublisher) Publish(_ context.Context, evt publishers.Event) error {
	r.events = append(r.events, evt)
	return r.err
}

type failingStore struct{}

func (failingStore) Close() error { return nil }
func (failingStore) SaveLookup(context.Context, domain.LookupRecord) error {
	return errors.New("disk full")
}
func (failingStore) RecentLookups(context.Context, int) ([]domain.LookupRecord, error) {
	return nil, errors.New("disk full")
}

func testConfig() *config.Config {
	return &config.Config{MaxAlternatives: 3, StorageType: storage.TypeNone}
}

func newTestFinder(t *testing.T, fetcher logos.SourceFetcher, store storage.Store, pub publishers.Publisher) *Finder {
	t.Helper()
	agg := logos.NewAggregator(providers.DefaultRegistry(), fetcher, nil, nil, nil)
	var pubs []publishers.Publisher
	if pub != nil {
		pubs = append(pubs, pub)
	}
	return newFinder(testConfig(), agg, store, publishers.NewFanout(pubs), nil)
}

func TestLookupNormalizesRecordsAndPublishes(t *testing.T) {
	store, err := storage.NewStore(storage.TypeBBolt, filepath.Join(t.TempDir(), "history.db"), storage.Options{})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	fetcher := &stubFetcher{sizes: map[string][2]int{
		"clearbit":   {128, 128},
		"duckduckgo": {32, 32},
	}}
	pub := &recordingPublisher{}
	finder := newTestFinder(t, fetcher, store, pub)
	defer finder.Close()

	res, err := finder.Lookup(context.Background(), " https://Stripe.com/about ", 0, false)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if res.Domain != "stripe.com" || res.Images.Max() != 3 {
		t.Fatalf("unexpected result domain=%q max=%d", res.Domain, res.Images.Max())
	}
	for _, d := range fetcher.domains {
		if d != "stripe.com" {
			t.Fatalf("fetcher saw un-normalized domain %q", d)
		}
	}

	history, err := finder.History(context.Background(), 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 || history[0].Domain != "stripe.com" || len(history[0].Labels) != 2 {
		t.Fatalf("unexpected history %+v", history)
	}
	if history[0].ID == "" {
		t.Fatalf("expected lookup id")
	}

	if len(pub.events) != 1 {
		t.Fatalf("expected one event, got %d", len(pub.events))
	}
	if evt := pub.events[0]; evt.Type != publishers.EventLookupCompleted || evt.Lookup.ID != history[0].ID {
		t.Fatalf("unexpected event %+v", evt)
	}
}

func TestResolveDoesNotRecord(t *testing.T) {
	store, err := storage.NewStore(storage.TypeBBolt, filepath.Join(t.TempDir(), "history.db"), storage.Options{})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	fetcher := &stubFetcher{sizes: map[string][2]int{"clearbit": {128, 128}}}
	pub := &recordingPublisher{}
	finder := newTestFinder(t, fetcher, store, pub)
	defer finder.Close()

	res, err := finder.Resolve(context.Background(), "Stripe.com", 9, false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Domain != "stripe.com" || res.Images.Max() != MaxAlternativesLimit || res.Images.Len() != 1 {
		t.Fatalf("unexpected result domain=%q max=%d len=%d", res.Domain, res.Images.Max(), res.Images.Len())
	}

	history, err := finder.History(context.Background(), 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 0 || len(pub.events) != 0 {
		t.Fatalf("resolve must not record, history=%d events=%d", len(history), len(pub.events))
	}
	if _, err := finder.Resolve(context.Background(), "/", 1, false); !errors.Is(err, ErrInvalidDomain) {
		t.Fatalf("expected ErrInvalidDomain, got %v", err)
	}
}

func TestLookupClampsQuota(t *testing.T) {
	finder := newTestFinder(t, &stubFetcher{}, nil, nil)
	res, err := finder.Lookup(context.Background(), "apple", 9, false)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if res.Domain != "apple.com" || res.Images.Max() != MaxAlternativesLimit {
		t.Fatalf("unexpected domain=%q max=%d", res.Domain, res.Images.Max())
	}
}

func TestLookupRejectsInvalidDomain(t *testing.T) {
	finder := newTestFinder(t, &stubFetcher{}, nil, nil)
	for _, raw := range []string{"", "   ", "/", "foo bar.com"} {
		if _, err := finder.Lookup(context.Background(), raw, 1, false); !errors.Is(err, ErrInvalidDomain) {
			t.Fatalf("Lookup(%q) err = %v, want ErrInvalidDomain", raw, err)
		}
	}
}

func TestLookupSwallowsSideChannelFailures(t *testing.T) {
	fetcher := &stubFetcher{sizes: map[string][2]int{"clearbit": {64, 64}}}
	pub := &recordingPublisher{err: errors.New("queue down")}
	finder := newTestFinder(t, fetcher, failingStore{}, pub)

	res, err := finder.Lookup(context.Background(), "example.com", 2, false)
	if err != nil {
		t.Fatalf("Lookup should not surface history/publish errors: %v", err)
	}
	if res.Images.Len() != 1 || len(pub.events) != 1 {
		t.Fatalf("unexpected result len=%d events=%d", res.Images.Len(), len(pub.events))
	}
}

func TestClampAlternatives(t *testing.T) {
	cases := []struct{ requested, fallback, want int }{
		{0, 3, 3},
		{-1, 3, 3},
		{1, 3, 1},
		{5, 3, 5},
		{6, 3, 5},
		{0, 0, 1},
		{0, 10, 5},
	}
	for _, tc := range cases {
		if got := ClampAlternatives(tc.requested, tc.fallback); got != tc.want {
			t.Fatalf("ClampAlternatives(%d, %d) = %d, want %d", tc.requested, tc.fallback, got, tc.want)
		}
	}
}

func TestNewFinderWithDefaults(t *testing.T) {
	cfg := testConfig()
	finder, err := NewFinder(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewFinder: %v", err)
	}
	if err := finder.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	cfg.ProvidersFile = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := NewFinder(context.Background(), cfg, nil); err == nil {
		t.Fatalf("expected error for missing providers file")
	}
}
