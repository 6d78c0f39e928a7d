package geocode

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/mohammed-shakir/gapminder-dash/internal/cache/redisstore"
)

func nominatimServer(t *testing.T, calls *atomic.Int32, h http.HandlerFunc) *Nominatim {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	n, err := NewNominatim(srv.URL, "gapminder-dash-test", "en", srv.Client())
	if err != nil {
		t.Fatalf("NewNominatim: %v", err)
	}
	return n
}

func countryJSON(country string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"place_id":1,"address":{"country":%q,"country_code":"xx"}}`, country)
	}
}

func TestNominatim_RequestShapeAndDecode(t *testing.T) {
	var gotPath, gotFormat, gotLang, gotUA, gotLat string
	n := nominatimServer(t, nil, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotFormat = r.URL.Query().Get("format")
		gotLang = r.URL.Query().Get("accept-language")
		gotLat = r.URL.Query().Get("lat")
		gotUA = r.Header.Get("User-Agent")
		countryJSON("United States")(w, r)
	})

	got, err := n.Reverse(context.Background(), 39.0, -79.0)
	if err != nil {
		t.Fatalf("Reverse: %v", err)
	}
	if got != "United States" {
		t.Fatalf("country=%q", got)
	}
	if gotPath != "/reverse" || gotFormat != "jsonv2" || gotLang != "en" || gotLat != "39" {
		t.Fatalf("path=%q format=%q lang=%q lat=%q", gotPath, gotFormat, gotLang, gotLat)
	}
	if gotUA != "gapminder-dash-test" {
		t.Fatalf("user agent=%q", gotUA)
	}
}

func TestNominatim_Failures(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"status": func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		},
		"malformed": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("{not json"))
		},
		"no address": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"place_id":1,"address":{}}`))
		},
		"error body": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"error":"Unable to geocode"}`))
		},
	}
	for name, h := range cases {
		n := nominatimServer(t, nil, h)
		if _, err := n.Reverse(context.Background(), 0, 0); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}

	n := nominatimServer(t, nil, countryJSON(""))
	if _, err := n.Reverse(context.Background(), 0, 0); !errors.Is(err, ErrNoResult) {
		t.Fatalf("empty country: want ErrNoResult, got %v", err)
	}
}

func TestNewNominatim_RejectsBadURL(t *testing.T) {
	if _, err := NewNominatim("ftp://example.com", "", "", nil); err == nil {
		t.Fatal("expected scheme error")
	}
}

func TestResolver_FailureYieldsUnknown(t *testing.T) {
	// a server that is already gone stands in for a disabled network
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	n, err := NewNominatim(url, "", "en", nil)
	if err != nil {
		t.Fatal(err)
	}
	r, err := NewResolver(n, WithTimeout(500*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}

	if got := r.Country(context.Background(), 39.0, -79.0); got != Unknown {
		t.Fatalf("country=%q want %q", got, Unknown)
	}
	if Display(Unknown) != "N/A" || Display("") != "N/A" || Display("Japan") != "Japan" {
		t.Fatal("Display mapping wrong")
	}
	if r.Len() != 0 {
		t.Fatal("failures must not be cached")
	}
}

func TestResolver_TimeoutYieldsUnknown(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	n := nominatimServer(t, nil, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	r, err := NewResolver(n, WithTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	if got := r.Country(context.Background(), 10, 10); got != Unknown {
		t.Fatalf("country=%q want %q", got, Unknown)
	}
	if d := time.Since(start); d > 2*time.Second {
		t.Fatalf("lookup took %v, timeout not applied", d)
	}
}

func TestResolver_InvalidCoordinatesSkipUpstream(t *testing.T) {
	var calls atomic.Int32
	n := nominatimServer(t, &calls, countryJSON("Nowhere"))
	r, err := NewResolver(n)
	if err != nil {
		t.Fatal(err)
	}
	if got := r.Country(context.Background(), 123, 0); got != Unknown {
		t.Fatalf("country=%q", got)
	}
	if calls.Load() != 0 {
		t.Fatalf("upstream called %d times for invalid point", calls.Load())
	}
}

func TestResolver_CachesByCell(t *testing.T) {
	var calls atomic.Int32
	n := nominatimServer(t, &calls, countryJSON("Afghanistan"))
	r, err := NewResolver(n, WithResolution(5))
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	for _, p := range [][2]float64{{34.5553, 69.2075}, {34.5554, 69.2076}, {34.5553, 69.2075}} {
		if got := r.Country(ctx, p[0], p[1]); got != "Afghanistan" {
			t.Fatalf("country=%q", got)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("upstream calls=%d want 1", calls.Load())
	}
}

func TestResolver_DefaultResolutionSeparatesNearbyPoints(t *testing.T) {
	f := &fixedClient{country: "Afghanistan"}
	r, err := NewResolver(f)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	// about 1.1 km apart
	r.Country(ctx, 34.5553, 69.2075)
	r.Country(ctx, 34.5653, 69.2075)
	if n := f.calls.Load(); n != 2 {
		t.Fatalf("upstream calls=%d want 2, nearby points shared a cache entry", n)
	}
}

type blockingClient struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (b *blockingClient) Reverse(ctx context.Context, _, _ float64) (string, error) {
	if b.calls.Add(1) == 1 {
		close(b.started)
	}
	select {
	case <-b.release:
		return "Japan", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestResolver_CoalescesConcurrentLookups(t *testing.T) {
	bc := &blockingClient{started: make(chan struct{}), release: make(chan struct{})}
	r, err := NewResolver(bc, WithTimeout(5*time.Second))
	if err != nil {
		t.Fatal(err)
	}

	const n = 8
	results := make([]string, n)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0] = r.Country(context.Background(), 35.68, 139.69)
	}()
	<-bc.started
	for i := 1; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.Country(context.Background(), 35.68, 139.69)
		}(i)
	}
	// give followers a moment to join the in-flight call
	time.Sleep(50 * time.Millisecond)
	close(bc.release)
	wg.Wait()

	for i, got := range results {
		if got != "Japan" {
			t.Fatalf("result[%d]=%q", i, got)
		}
	}
	if c := bc.calls.Load(); c != 1 {
		t.Fatalf("upstream calls=%d want 1", c)
	}
}

type fixedClient struct {
	country string
	calls   atomic.Int32
}

func (f *fixedClient) Reverse(context.Context, float64, float64) (string, error) {
	f.calls.Add(1)
	return f.country, nil
}

func TestResolver_SharedTierAcrossReplicas(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	rc, err := redisstore.New(ctx, mr.Addr())
	if err != nil {
		t.Fatalf("redis: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })

	first := &fixedClient{country: "Brazil"}
	a, err := NewResolver(first, WithShared(rc, time.Second), WithScope("https://geo.test", "en"))
	if err != nil {
		t.Fatal(err)
	}
	if got := a.Country(ctx, -15.79, -47.88); got != "Brazil" {
		t.Fatalf("replica a=%q", got)
	}
	if len(mr.Keys()) != 1 {
		t.Fatalf("redis keys=%v want one entry", mr.Keys())
	}

	second := &fixedClient{country: "wrong"}
	b, err := NewResolver(second, WithShared(rc, time.Second), WithScope("https://geo.test", "en"))
	if err != nil {
		t.Fatal(err)
	}
	if got := b.Country(ctx, -15.79, -47.88); got != "Brazil" {
		t.Fatalf("replica b=%q want value from shared tier", got)
	}
	if second.calls.Load() != 0 {
		t.Fatal("replica b should not have called upstream")
	}
}

func TestResolver_SharedTierDownStillResolves(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	rc, err := redisstore.New(ctx, mr.Addr())
	if err != nil {
		t.Fatalf("redis: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })
	mr.SetError("LOADING")

	fc := &fixedClient{country: "Canada"}
	r, err := NewResolver(fc, WithShared(rc, 100*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if got := r.Country(ctx, 45.42, -75.69); got != "Canada" {
		t.Fatalf("country=%q", got)
	}
}

func TestNewResolver_Validation(t *testing.T) {
	if _, err := NewResolver(nil); err == nil {
		t.Fatal("expected error for nil client")
	}
	if _, err := NewResolver(&fixedClient{}, WithResolution(16)); err == nil {
		t.Fatal("expected error for resolution 16")
	}
}
