package cart

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"vendhub-bot/internal/model"
)

func testItem(id int64, stock int64) *model.Item {
	return &model.Item{ID: id, Name: "item", Price: 10, Stock: stock, IsActive: true}
}

func TestAddRemoveRoundTrip(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	defer s.Close()
	ctx := context.Background()

	item := testItem(1, 10)
	if _, err := s.Add(ctx, "u1", item, 3); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := s.Add(ctx, "u1", item, 2); err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	c, _ := s.Get(ctx, "u1")
	if len(c.Lines) != 1 || c.Lines[0].Quantity != 5 {
		t.Fatalf("expected one line of 5, got %+v", c.Lines)
	}

	// Removing everything that was added leaves no phantom line.
	if _, err := s.Remove(ctx, "u1", 1, 5); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	c, _ = s.Get(ctx, "u1")
	if !c.IsEmpty() {
		t.Fatalf("expected empty cart, got %+v", c.Lines)
	}
}

func TestAddCapsAtStock(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	defer s.Close()
	ctx := context.Background()

	item := testItem(1, 3)
	if _, err := s.Add(ctx, "u1", item, 2); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	// Merged quantity 4 would exceed stock 3.
	if _, err := s.Add(ctx, "u1", item, 2); !errors.Is(err, ErrStockExceeded) {
		t.Fatalf("expected ErrStockExceeded, got %v", err)
	}

	c, _ := s.Get(ctx, "u1")
	if c.Lines[0].Quantity != 2 {
		t.Fatalf("refused add changed the cart: %+v", c.Lines)
	}

	infinite := &model.Item{ID: 2, Name: "inf", Price: 1, InfiniteStock: true}
	if _, err := s.Add(ctx, "u1", infinite, 1000); err != nil {
		t.Fatalf("infinite stock add failed: %v", err)
	}
}

func TestAddRefusesWrappingMergedQuantity(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	defer s.Close()
	ctx := context.Background()

	infinite := &model.Item{ID: 1, Name: "inf", Price: 1, InfiniteStock: true}
	if _, err := s.Add(ctx, "u1", infinite, math.MaxInt64-1); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	// The merged quantity would wrap int64 and go negative.
	if _, err := s.Add(ctx, "u1", infinite, 2); !errors.Is(err, ErrStockExceeded) {
		t.Fatalf("expected ErrStockExceeded, got %v", err)
	}

	c, _ := s.Get(ctx, "u1")
	if c.Lines[0].Quantity != math.MaxInt64-1 {
		t.Fatalf("refused add changed the cart: %+v", c.Lines)
	}
}

func TestRemoveMissingLine(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	defer s.Close()

	if _, err := s.Remove(context.Background(), "u1", 99, 1); !errors.Is(err, ErrLineNotFound) {
		t.Fatalf("expected ErrLineNotFound, got %v", err)
	}
}

func TestCartsAreIsolatedPerUser(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	defer s.Close()
	ctx := context.Background()

	s.Add(ctx, "u1", testItem(1, 10), 1)

	c, _ := s.Get(ctx, "u2")
	if !c.IsEmpty() {
		t.Fatalf("u2 sees u1's cart: %+v", c.Lines)
	}
}

func TestPurgeExpiredDropsIdleCarts(t *testing.T) {
	s := NewMemoryStore(10 * time.Millisecond)
	defer s.Close()
	ctx := context.Background()

	s.Add(ctx, "u1", testItem(1, 10), 1)
	time.Sleep(30 * time.Millisecond)

	purged, err := s.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("purge failed: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged, got %d", purged)
	}

	c, _ := s.Get(ctx, "u1")
	if !c.IsEmpty() {
		t.Fatalf("expired cart survived: %+v", c.Lines)
	}
}
