package cache

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGetCachesValue(t *testing.T) {
	c := New()
	ctx := context.Background()
	var calls int64

	fetch := func(ctx context.Context) (any, error) {
		atomic.AddInt64(&calls, 1)
		return "v1", nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.Get(ctx, "brands", fetch)
		if err != nil {
			t.Fatal(err)
		}
		if v != "v1" {
			t.Fatalf("unexpected value: %v", v)
		}
	}
	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Fatalf("expected one fetch, got %d", got)
	}
}

func TestConcurrentGetsDeduplicate(t *testing.T) {
	c := New()
	ctx := context.Background()
	var calls int64
	gate := make(chan struct{})

	fetch := func(ctx context.Context) (any, error) {
		atomic.AddInt64(&calls, 1)
		<-gate
		return 42, nil
	}

	const n = 10
	var wg sync.WaitGroup
	results := make([]any, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.Get(ctx, "offers?page=1", fetch)
			if err != nil {
				t.Error(err)
				return
			}
			results[i] = v
		}(i)
	}
	// Let the goroutines pile onto the single in-flight fetch.
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Fatalf("expected one in-flight fetch, got %d", got)
	}
	for i, v := range results {
		if v != 42 {
			t.Fatalf("result %d = %v, want 42", i, v)
		}
	}
}

func TestErrorsAreNotCached(t *testing.T) {
	c := New()
	ctx := context.Background()
	var calls int64

	fetch := func(ctx context.Context) (any, error) {
		if atomic.AddInt64(&calls, 1) == 1 {
			return nil, errors.New("upstream down")
		}
		return "ok", nil
	}

	if _, err := c.Get(ctx, "k", fetch); err == nil {
		t.Fatal("expected first fetch to fail")
	}
	v, err := c.Get(ctx, "k", fetch)
	if err != nil {
		t.Fatal(err)
	}
	if v != "ok" {
		t.Fatalf("unexpected value: %v", v)
	}
}

func TestTTLExpiry(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	c := New(WithTTL(time.Minute), WithClock(func() time.Time { return clock() }))
	ctx := context.Background()
	var calls int64

	fetch := func(ctx context.Context) (any, error) {
		return atomic.AddInt64(&calls, 1), nil
	}

	if v, _ := c.Get(ctx, "k", fetch); v.(int64) != 1 {
		t.Fatalf("unexpected first value: %v", v)
	}
	if v, _ := c.Get(ctx, "k", fetch); v.(int64) != 1 {
		t.Fatalf("expected cached value, got %v", v)
	}

	clock = func() time.Time { return now.Add(2 * time.Minute) }
	if v, _ := c.Get(ctx, "k", fetch); v.(int64) != 2 {
		t.Fatalf("expected refetch after expiry, got %v", v)
	}
}

func TestInvalidate(t *testing.T) {
	c := New()
	ctx := context.Background()
	var calls int64

	fetch := func(ctx context.Context) (any, error) {
		return atomic.AddInt64(&calls, 1), nil
	}

	_, _ = c.Get(ctx, "offers?page=1", fetch)
	_, _ = c.Get(ctx, "offers?page=2", fetch)
	_, _ = c.Get(ctx, "brands", fetch)
	if c.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", c.Len())
	}

	c.Invalidate("offers?page=1")
	if c.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", c.Len())
	}

	c.InvalidatePrefix("offers")
	if c.Len() != 1 {
		t.Fatalf("expected only brands to survive, got %d", c.Len())
	}

	c.InvalidateMatch(func(string) bool { return true })
	if c.Len() != 0 {
		t.Fatalf("expected empty cache, got %d", c.Len())
	}
}

func TestCompositeKeys(t *testing.T) {
	a := url.Values{}
	a.Add("category", "food")
	a.Add("category", "fashion")
	a.Set("page", "1")

	b := url.Values{}
	b.Set("page", "1")
	b.Add("category", "fashion")
	b.Add("category", "food")

	// Key order within a value list is significant, insertion order of
	// distinct keys is not.
	if Key("offers", a) == Key("offers", b) {
		t.Fatal("different category order should produce different keys")
	}

	c := url.Values{}
	c.Add("category", "food")
	c.Add("category", "fashion")
	c.Set("page", "1")
	if Key("offers", a) != Key("offers", c) {
		t.Fatal("identical filters should produce identical keys")
	}

	if Key("offers", a) == Key("offers", url.Values{"page": {"2"}}) {
		t.Fatal("distinct pagination must not collide")
	}
	if Key("brands", nil) != "brands" {
		t.Fatal("bare resource key mismatch")
	}
}

func TestGetAsTyped(t *testing.T) {
	c := New()
	got, err := GetAs(context.Background(), c, "nums", func(ctx context.Context) ([]int, error) {
		return []int{1, 2, 3}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[2] != 3 {
		t.Fatalf("unexpected value: %v", got)
	}

	// Reading the same key as a different type is a key collision, not an
	// empty result.
	_, err = GetAs(context.Background(), c, "nums", func(ctx context.Context) (string, error) {
		return "unreached", nil
	})
	if !errors.Is(err, ErrWrongType) {
		t.Fatalf("expected ErrWrongType, got %v", err)
	}
}
