package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestBatchProcessorNew(t *testing.T) {
	t.Parallel()

	t.Run("creates processor with defaults", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor()
		if bp.concurrency != DefaultBatchConcurrency {
			t.Errorf("expected default concurrency %d, got %d", DefaultBatchConcurrency, bp.concurrency)
		}
		if bp.logger == nil {
			t.Error("expected non-nil logger")
		}
	})

	t.Run("applies WithConcurrency option", func(t *testing.T) {
		t.Parallel()

		if bp := NewBatchProcessor(WithConcurrency(5)); bp.concurrency != 5 {
			t.Errorf("expected concurrency 5, got %d", bp.concurrency)
		}
	})

	t.Run("ignores non-positive concurrency", func(t *testing.T) {
		t.Parallel()

		if bp := NewBatchProcessor(WithConcurrency(0)); bp.concurrency != DefaultBatchConcurrency {
			t.Errorf("expected default concurrency, got %d", bp.concurrency)
		}
	})
}

func TestBatchProcessorProcessBatch(t *testing.T) {
	t.Parallel()

	t.Run("processes all items in input order", func(t *testing.T) {
		t.Parallel()

		items := []string{"a.com", "b.com", "c.com"}
		results, err := NewBatchProcessor(WithConcurrency(3)).ProcessBatch(context.Background(), items,
			func(context.Context, string) error { return nil })
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(results) != len(items) {
			t.Fatalf("expected %d results, got %d", len(items), len(results))
		}
		for i, r := range results {
			if r.Item != items[i] || r.Err != nil {
				t.Errorf("result %d: %+v", i, r)
			}
		}
	})

	t.Run("a failing item does not block the others", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		results, err := NewBatchProcessor().ProcessBatch(context.Background(), []string{"ok1", "bad", "ok2"},
			func(_ context.Context, item string) error {
				calls.Add(1)
				if item == "bad" {
					return errors.New("database is locked")
				}
				return nil
			})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if calls.Load() != 3 {
			t.Errorf("expected 3 calls, got %d", calls.Load())
		}
		if results[1].Err == nil || results[0].Err != nil || results[2].Err != nil {
			t.Errorf("unexpected results: %+v", results)
		}
		if Failed(results) != 1 {
			t.Errorf("expected 1 failure, got %d", Failed(results))
		}
	})

	t.Run("respects concurrency limit", func(t *testing.T) {
		t.Parallel()

		var current, peak atomic.Int32
		items := []string{"1", "2", "3", "4", "5", "6"}
		_, err := NewBatchProcessor(WithConcurrency(2)).ProcessBatch(context.Background(), items,
			func(context.Context, string) error {
				n := current.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				current.Add(-1)
				return nil
			})
		if err != nil {
			t.Fatal(err)
		}
		if peak.Load() > 2 {
			t.Errorf("expected at most 2 concurrent items, got %d", peak.Load())
		}
	})

	t.Run("cancelled context marks remaining items", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		results, err := NewBatchProcessor().ProcessBatch(ctx, []string{"first", "second", "third"},
			func(_ context.Context, item string) error {
				if item == "first" {
					cancel()
				}
				return nil
			})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if results[0].Err != nil {
			t.Errorf("first item completed and must not carry an error: %v", results[0].Err)
		}
		for _, r := range results[1:] {
			if !errors.Is(r.Err, context.Canceled) {
				t.Errorf("expected %s to be cancelled, got %v", r.Item, r.Err)
			}
		}
	})

	t.Run("empty batch", func(t *testing.T) {
		t.Parallel()

		results, err := NewBatchProcessor().ProcessBatch(context.Background(), nil,
			func(context.Context, string) error { return nil })
		if err != nil || len(results) != 0 {
			t.Errorf("expected empty result, got %v, %v", results, err)
		}
	})
}
