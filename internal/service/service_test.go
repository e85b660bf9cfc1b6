package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"storewatch/internal/alerting"
	"storewatch/internal/classifier"
	"storewatch/internal/domain"
	"storewatch/internal/extractor"
	"storewatch/internal/fetcher"
	"storewatch/internal/resolver"
	"storewatch/internal/storage"
)

const (
	grabURL  = "https://food.grab.com/ph/en/restaurant/potato-corner-sm-north-delivery/2-C6JDGLBJNBJMAW"
	pandaURL = "https://www.foodpanda.ph/restaurant/x1ab/mang-inasal-taft"
)

type fakeFetcher struct {
	mu    sync.Mutex
	fn    func(url string) (*fetcher.Payload, error)
	calls []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string, headers map[string]string) (*fetcher.Payload, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()
	return f.fn(url)
}

func (f *fakeFetcher) Pace(ctx context.Context) error { return ctx.Err() }

func (f *fakeFetcher) urls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeStore struct {
	mu          sync.Mutex
	nextID      int64
	ids         map[string]int64
	appended    []domain.CheckRecord
	failAppends int
	failUpserts bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{ids: map[string]int64{}}
}

func (s *fakeStore) UpsertStorefront(ctx context.Context, sf domain.Storefront) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpserts {
		return 0, errors.New("upsert refused")
	}
	if id, ok := s.ids[sf.URL]; ok {
		return id, nil
	}
	s.nextID++
	s.ids[sf.URL] = s.nextID
	return s.nextID, nil
}

func (s *fakeStore) AppendCheck(ctx context.Context, rec domain.CheckRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAppends > 0 {
		s.failAppends--
		return errors.New("append refused")
	}
	s.appended = append(s.appended, rec)
	return nil
}

func (s *fakeStore) HourlySummary(ctx context.Context, day time.Time) ([]domain.HourlyRow, error) {
	return nil, nil
}

func (s *fakeStore) DailyUptime(ctx context.Context, day time.Time) ([]domain.DailyRow, error) {
	return nil, nil
}

func (s *fakeStore) RecentChecks(ctx context.Context, limit int) ([]storage.CheckLog, error) {
	return nil, nil
}

func (s *fakeStore) Ping(ctx context.Context) error { return nil }
func (s *fakeStore) Close()                         {}

func (s *fakeStore) records() []domain.CheckRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.CheckRecord(nil), s.appended...)
}

var _ storage.Store = (*fakeStore)(nil)

type fakeNotifier struct {
	mu    sync.Mutex
	notes []alerting.Notification
}

func (n *fakeNotifier) Notify(ctx context.Context, note alerting.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note)
	return nil
}

func newTestService(storefronts []domain.Storefront, fetch Fetcher, store storage.Store, notifier alerting.Notifier, opts Options) *Service {
	logger := zerolog.Nop()
	return New(storefronts, nil, resolver.New(""), fetch, classifier.New(logger), extractor.New(logger), store, notifier, nil, opts, logger)
}

func grabStore() domain.Storefront {
	return domain.Storefront{URL: grabURL, Platform: domain.PlatformGrabFood, DisplayName: "Potato Corner SM North"}
}

func pandaStore() domain.Storefront {
	return domain.Storefront{URL: pandaURL, Platform: domain.PlatformFoodpanda, DisplayName: "Mang Inasal Taft"}
}

func TestCycleStructuredOnlineWithItems(t *testing.T) {
	body := []byte(`{"merchant":{"open":true,"menu":{"categories":[{"name":"Snacks","items":[
		{"name":"Coffee Bun","available":false,"priceInMinorUnit":6500},
		{"name":"Pan de Sal","available":true}
	]}]}}}`)
	fetch := &fakeFetcher{fn: func(url string) (*fetcher.Payload, error) {
		return &fetcher.Payload{StatusCode: 200, Body: body, Latency: 120 * time.Millisecond}, nil
	}}
	store := newFakeStore()

	svc := newTestService([]domain.Storefront{grabStore()}, fetch, store, nil, Options{})
	if err := svc.Cycle(context.Background(), time.Now()); err != nil {
		t.Fatalf("Cycle: %v", err)
	}

	recs := store.records()
	if len(recs) != 1 {
		t.Fatalf("appended %d records, want 1", len(recs))
	}
	rec := recs[0]
	if rec.Status != domain.StatusOnline {
		t.Fatalf("status = %s (%s), want ONLINE", rec.Status, rec.Reason)
	}
	if rec.LatencyMS != 120 {
		t.Errorf("latency = %d, want 120", rec.LatencyMS)
	}
	if len(rec.OOSItems) != 1 || rec.OOSItems[0].Name != "Coffee Bun" {
		t.Fatalf("oos items = %+v, want Coffee Bun only", rec.OOSItems)
	}
	if got := len(fetch.urls()); got != 1 {
		t.Errorf("fetched %d urls, want 1 (first candidate decides)", got)
	}
}

func TestCycleFallsThroughFailedCandidates(t *testing.T) {
	fetch := &fakeFetcher{fn: func(url string) (*fetcher.Payload, error) {
		if strings.Contains(url, "portal.grab.com") {
			return nil, &fetcher.FetchError{Kind: fetcher.KindTransport, Err: errors.New("reset")}
		}
		return &fetcher.Payload{StatusCode: 200, Body: []byte("<html><body>Order now. Delivery fee applies.</body></html>")}, nil
	}}
	store := newFakeStore()

	svc := newTestService([]domain.Storefront{grabStore()}, fetch, store, nil, Options{})
	if err := svc.Cycle(context.Background(), time.Now()); err != nil {
		t.Fatalf("Cycle: %v", err)
	}

	recs := store.records()
	if len(recs) != 1 || recs[0].Status != domain.StatusOnline {
		t.Fatalf("records = %+v, want one ONLINE from the page fallback", recs)
	}
	if got := len(fetch.urls()); got != 3 {
		t.Errorf("fetched %d urls, want all 3 candidates", got)
	}
}

func TestCycleFlagFreeAPIPayloadStaysUnknown(t *testing.T) {
	body := []byte(`{"data":{"vendor_info":{"menu_overview":{"popular items":["Chicken Inasal"]},"delivery":"menu order add"}}}`)
	fetch := &fakeFetcher{fn: func(url string) (*fetcher.Payload, error) {
		return &fetcher.Payload{StatusCode: 200, Body: body}, nil
	}}
	store := newFakeStore()

	svc := newTestService([]domain.Storefront{pandaStore()}, fetch, store, nil, Options{})
	if err := svc.Cycle(context.Background(), time.Now()); err != nil {
		t.Fatalf("Cycle: %v", err)
	}

	recs := store.records()
	if len(recs) != 1 {
		t.Fatalf("appended %d records, want 1", len(recs))
	}
	if recs[0].Status != domain.StatusUnknown {
		t.Fatalf("status = %s (%s), want UNKNOWN for a flag-free payload", recs[0].Status, recs[0].Reason)
	}
	if recs[0].Reason != "api payload unrecognised" {
		t.Fatalf("reason = %q", recs[0].Reason)
	}
}

func TestCycleAPIVendorNotFound(t *testing.T) {
	fetch := &fakeFetcher{fn: func(url string) (*fetcher.Payload, error) {
		return &fetcher.Payload{StatusCode: 404, Body: []byte(`{"error":"not found"}`)}, nil
	}}
	store := newFakeStore()

	svc := newTestService([]domain.Storefront{pandaStore()}, fetch, store, nil, Options{})
	if err := svc.Cycle(context.Background(), time.Now()); err != nil {
		t.Fatalf("Cycle: %v", err)
	}

	recs := store.records()
	if len(recs) != 1 || recs[0].Status != domain.StatusOffline {
		t.Fatalf("records = %+v, want one OFFLINE for a 404 vendor", recs)
	}
}

func TestCycleFailureOnLastCandidateDecides(t *testing.T) {
	fetch := &fakeFetcher{fn: func(url string) (*fetcher.Payload, error) {
		return nil, &fetcher.FetchError{Kind: fetcher.KindBlocked, StatusCode: 403, Attempts: 2, Err: errors.New("403")}
	}}
	store := newFakeStore()

	svc := newTestService([]domain.Storefront{pandaStore()}, fetch, store, nil, Options{})
	if err := svc.Cycle(context.Background(), time.Now()); err != nil {
		t.Fatalf("Cycle: %v", err)
	}

	recs := store.records()
	if len(recs) != 1 || recs[0].Status != domain.StatusBlocked {
		t.Fatalf("records = %+v, want one BLOCKED", recs)
	}
}

func TestCycleUnsupportedURLRecordsUnknown(t *testing.T) {
	fetch := &fakeFetcher{fn: func(url string) (*fetcher.Payload, error) {
		t.Errorf("unexpected fetch of %s", url)
		return nil, errors.New("unreachable")
	}}
	store := newFakeStore()

	sf := domain.Storefront{URL: "https://example.com/shop", Platform: domain.PlatformGrabFood, DisplayName: "Oddball"}
	svc := newTestService([]domain.Storefront{sf}, fetch, store, nil, Options{})
	if err := svc.Cycle(context.Background(), time.Now()); err != nil {
		t.Fatalf("Cycle: %v", err)
	}

	recs := store.records()
	if len(recs) != 1 || recs[0].Status != domain.StatusUnknown {
		t.Fatalf("records = %+v, want one UNKNOWN", recs)
	}
}

func TestCyclePanicIsConfinedToOneStore(t *testing.T) {
	fetch := &fakeFetcher{fn: func(url string) (*fetcher.Payload, error) {
		if strings.Contains(url, "fd-api.com") {
			panic("boom")
		}
		return &fetcher.Payload{StatusCode: 200, Body: []byte(`{"merchant":{"open":true}}`)}, nil
	}}
	store := newFakeStore()

	svc := newTestService([]domain.Storefront{grabStore(), pandaStore()}, fetch, store, nil, Options{})
	if err := svc.Cycle(context.Background(), time.Now()); err != nil {
		t.Fatalf("Cycle: %v", err)
	}

	recs := store.records()
	if len(recs) != 2 {
		t.Fatalf("appended %d records, want 2", len(recs))
	}
	statuses := map[domain.Status]int{}
	for _, rec := range recs {
		statuses[rec.Status]++
	}
	if statuses[domain.StatusOnline] != 1 || statuses[domain.StatusError] != 1 {
		t.Fatalf("statuses = %v, want one ONLINE and one ERROR", statuses)
	}
}

func TestCycleAppendRetriesOnce(t *testing.T) {
	fetch := &fakeFetcher{fn: func(url string) (*fetcher.Payload, error) {
		return &fetcher.Payload{StatusCode: 200, Body: []byte(`{"merchant":{"open":true}}`)}, nil
	}}
	store := newFakeStore()
	store.failAppends = 1

	svc := newTestService([]domain.Storefront{grabStore()}, fetch, store, nil, Options{})
	if err := svc.Cycle(context.Background(), time.Now()); err != nil {
		t.Fatalf("Cycle: %v", err)
	}

	recs := store.records()
	if len(recs) != 1 {
		t.Fatalf("appended %d records, want 1 after retry", len(recs))
	}
}

func TestCycleBlockedAlertThreshold(t *testing.T) {
	blockedFn := func(url string) (*fetcher.Payload, error) {
		return nil, &fetcher.FetchError{Kind: fetcher.KindBlocked, StatusCode: 403, Attempts: 2, Err: errors.New("403")}
	}

	t.Run("at threshold", func(t *testing.T) {
		notifier := &fakeNotifier{}
		svc := newTestService([]domain.Storefront{grabStore(), pandaStore()}, &fakeFetcher{fn: blockedFn}, newFakeStore(), notifier, Options{AlertsEnabled: true, BlockedThreshold: 2})
		if err := svc.Cycle(context.Background(), time.Now()); err != nil {
			t.Fatalf("Cycle: %v", err)
		}
		if len(notifier.notes) != 1 {
			t.Fatalf("notifications = %d, want 1", len(notifier.notes))
		}
		note := notifier.notes[0]
		if len(note.BlockedStores) != 2 || note.TotalStores != 2 || note.Threshold != 2 {
			t.Errorf("notification = %+v, want both stores listed", note)
		}
	})

	t.Run("below threshold", func(t *testing.T) {
		notifier := &fakeNotifier{}
		svc := newTestService([]domain.Storefront{grabStore()}, &fakeFetcher{fn: blockedFn}, newFakeStore(), notifier, Options{AlertsEnabled: true, BlockedThreshold: 2})
		if err := svc.Cycle(context.Background(), time.Now()); err != nil {
			t.Fatalf("Cycle: %v", err)
		}
		if len(notifier.notes) != 0 {
			t.Fatalf("notifications = %d, want none", len(notifier.notes))
		}
	})

	t.Run("alerts disabled", func(t *testing.T) {
		notifier := &fakeNotifier{}
		svc := newTestService([]domain.Storefront{grabStore(), pandaStore()}, &fakeFetcher{fn: blockedFn}, newFakeStore(), notifier, Options{AlertsEnabled: false, BlockedThreshold: 2})
		if err := svc.Cycle(context.Background(), time.Now()); err != nil {
			t.Fatalf("Cycle: %v", err)
		}
		if len(notifier.notes) != 0 {
			t.Fatalf("notifications = %d, want none when disabled", len(notifier.notes))
		}
	})
}

func TestCycleUpsertFailureDropsRecord(t *testing.T) {
	fetch := &fakeFetcher{fn: func(url string) (*fetcher.Payload, error) {
		return &fetcher.Payload{StatusCode: 200, Body: []byte(`{"merchant":{"open":true}}`)}, nil
	}}
	store := newFakeStore()
	store.failUpserts = true

	svc := newTestService([]domain.Storefront{grabStore()}, fetch, store, nil, Options{})
	if err := svc.Cycle(context.Background(), time.Now()); err != nil {
		t.Fatalf("Cycle: %v", err)
	}
	if recs := store.records(); len(recs) != 0 {
		t.Fatalf("appended %d records, want none", len(recs))
	}
}

func TestCycleCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetch := &fakeFetcher{fn: func(url string) (*fetcher.Payload, error) {
		return nil, ctx.Err()
	}}
	svc := newTestService([]domain.Storefront{grabStore()}, fetch, newFakeStore(), nil, Options{})
	if err := svc.Cycle(ctx, time.Now()); !errors.Is(err, context.Canceled) {
		t.Fatalf("Cycle err = %v, want context.Canceled", err)
	}
}
