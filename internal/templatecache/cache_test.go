package templatecache_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"docbatch/internal/queue"
	"docbatch/internal/services"
	"docbatch/internal/telemetry"
	"docbatch/internal/templatecache"
)

func blob(size int, fill byte) []byte {
	return bytes.Repeat([]byte{fill}, size)
}

func TestEvictsLeastRecentlyAccessed(t *testing.T) {
	cache := templatecache.New(100, nil)
	cache.Set("A", blob(20, 'a'))
	cache.Set("B", blob(20, 'b'))
	cache.Set("C", blob(20, 'c'))
	cache.Set("D", blob(20, 'd'))

	if _, ok := cache.Get("A"); !ok {
		t.Fatal("expected A resident")
	}
	if _, ok := cache.Get("B"); !ok {
		t.Fatal("expected B resident")
	}
	cache.Set("E", blob(60, 'e'))

	for _, key := range []string{"C", "D"} {
		if _, ok := cache.Get(key); ok {
			t.Fatalf("expected %s evicted", key)
		}
	}
	for _, key := range []string{"A", "B", "E"} {
		if _, ok := cache.Get(key); !ok {
			t.Fatalf("expected %s retained", key)
		}
	}
	stats := cache.Stats()
	if stats.Bytes != 100 || stats.Entries != 3 || stats.Evictions != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestResidentBytesStayWithinBudget(t *testing.T) {
	cache := templatecache.New(100, nil)
	for i := 0; i < 10; i++ {
		cache.Set(fmt.Sprintf("k%d", i), blob(40, byte('0'+i)))
		if stats := cache.Stats(); stats.Bytes > 100 {
			t.Fatalf("resident bytes %d exceed budget after insert %d", stats.Bytes, i)
		}
	}
	if stats := cache.Stats(); stats.Entries != 2 {
		t.Fatalf("expected 2 resident entries, got %d", stats.Entries)
	}
}

func TestOversizedEntryIsStillInserted(t *testing.T) {
	cache := templatecache.New(50, nil)
	cache.Set("small", blob(10, 's'))
	cache.Set("huge", blob(80, 'h'))

	if _, ok := cache.Get("small"); ok {
		t.Fatal("expected small entry evicted")
	}
	data, ok := cache.Get("huge")
	if !ok || len(data) != 80 {
		t.Fatalf("expected oversized entry to be resident, ok=%v len=%d", ok, len(data))
	}
	if stats := cache.Stats(); stats.Entries != 1 || stats.Bytes != 80 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestSetReplacesExistingKey(t *testing.T) {
	cache := templatecache.New(100, nil)
	cache.Set("k", blob(30, 'x'))
	cache.Set("k", blob(10, 'y'))

	data, ok := cache.Get("k")
	if !ok || !bytes.Equal(data, blob(10, 'y')) {
		t.Fatalf("expected replacement bytes, got %q", data)
	}
	if stats := cache.Stats(); stats.Bytes != 10 || stats.Entries != 1 || stats.Evictions != 0 {
		t.Fatalf("unexpected stats after replace: %+v", stats)
	}
}

func TestHitMissCountersAndPurge(t *testing.T) {
	cache := templatecache.New(100, nil)
	cache.Get("missing")
	cache.Set("k", blob(5, 'k'))
	cache.Get("k")
	cache.Get("k")

	stats := cache.Stats()
	if stats.Hits != 2 || stats.Misses != 1 {
		t.Fatalf("unexpected counters: %+v", stats)
	}
	cache.Purge()
	stats = cache.Stats()
	if stats.Entries != 0 || stats.Bytes != 0 || stats.Hits != 2 {
		t.Fatalf("unexpected stats after purge: %+v", stats)
	}
}

func TestConcurrentAccessKeepsAccounting(t *testing.T) {
	cache := templatecache.New(1000, nil)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", (g*31+i)%40)
				if _, ok := cache.Get(key); !ok {
					cache.Set(key, blob(50, 'z'))
				}
			}
		}(g)
	}
	wg.Wait()

	stats := cache.Stats()
	if stats.Bytes > 1000 {
		t.Fatalf("resident bytes %d exceed budget", stats.Bytes)
	}
	if stats.Bytes != int64(stats.Entries)*50 {
		t.Fatalf("bytes %d inconsistent with %d entries", stats.Bytes, stats.Entries)
	}
}

type countingFetcher struct {
	calls   atomic.Int32
	release chan struct{}
	data    map[string][]byte
}

func (f *countingFetcher) DownloadContent(ctx context.Context, id string) ([]byte, error) {
	f.calls.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	data, ok := f.data[id]
	if !ok {
		return nil, fmt.Errorf("content %s: %w", id, queue.ErrNotFound)
	}
	return data, nil
}

func TestLoaderFetchesOncePerKey(t *testing.T) {
	fetcher := &countingFetcher{
		release: make(chan struct{}),
		data:    map[string][]byte{"tpl": []byte("template-bytes")},
	}
	recorder := telemetry.NewRecorder()
	loader := templatecache.NewLoader(templatecache.New(1<<20, nil), fetcher, recorder, nil)

	const callers = 16
	var wg sync.WaitGroup
	results := make([][]byte, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = loader.Load(context.Background(), "tpl")
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(fetcher.release)
	wg.Wait()

	if got := fetcher.calls.Load(); got != 1 {
		t.Fatalf("expected exactly one origin fetch, got %d", got)
	}
	for i := range results {
		if errs[i] != nil {
			t.Fatalf("caller %d failed: %v", i, errs[i])
		}
		if string(results[i]) != "template-bytes" {
			t.Fatalf("caller %d got %q", i, results[i])
		}
	}

	if _, err := loader.Load(context.Background(), "tpl"); err != nil {
		t.Fatalf("cached Load failed: %v", err)
	}
	if got := fetcher.calls.Load(); got != 1 {
		t.Fatalf("expected cached load to skip origin, got %d fetches", got)
	}
	if recorder.Counter(telemetry.CounterCacheHit) < 1 {
		t.Fatal("expected a cache hit to be counted")
	}
	if len(recorder.Dependencies()) != 1 {
		t.Fatalf("expected one template dependency record, got %d", len(recorder.Dependencies()))
	}
}

func TestLoaderSequentialGetsMissOnce(t *testing.T) {
	fetcher := &countingFetcher{data: map[string][]byte{"tpl": []byte("template-bytes")}}
	recorder := telemetry.NewRecorder()
	cache := templatecache.New(1<<20, nil)
	loader := templatecache.NewLoader(cache, fetcher, recorder, nil)

	const gets = 5
	for i := 0; i < gets; i++ {
		data, err := loader.Load(context.Background(), "tpl")
		if err != nil {
			t.Fatalf("Load %d failed: %v", i, err)
		}
		if string(data) != "template-bytes" {
			t.Fatalf("Load %d got %q", i, data)
		}
	}

	if got := fetcher.calls.Load(); got != 1 {
		t.Fatalf("expected one origin fetch, got %d", got)
	}
	if hits, misses := recorder.Counter(telemetry.CounterCacheHit), recorder.Counter(telemetry.CounterCacheMiss); hits != gets-1 || misses != 1 {
		t.Fatalf("expected %d hits and 1 miss counted, got %d hits and %d misses", gets-1, hits, misses)
	}
	stats := cache.Stats()
	if stats.Hits != gets-1 || stats.Misses != 1 || stats.Entries != 1 {
		t.Fatalf("unexpected cache stats: %+v", stats)
	}
}

func TestLoaderMapsMissingTemplate(t *testing.T) {
	fetcher := &countingFetcher{data: map[string][]byte{}}
	loader := templatecache.NewLoader(templatecache.New(1024, nil), fetcher, nil, nil)

	_, err := loader.Load(context.Background(), "nope")
	if !services.IsKind(err, services.KindTemplateNotFound) {
		t.Fatalf("expected template not found, got %v", err)
	}
	if !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected wrapped ErrNotFound, got %v", err)
	}
	if services.Retryable(services.KindOf(err)) {
		t.Fatal("template not found must not be retryable")
	}
}
