package main

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/cart-sync/internal/core/domain"
	"github.com/rl1809/cart-sync/internal/core/service"
	"github.com/rl1809/cart-sync/internal/core/store"
	"github.com/rl1809/cart-sync/internal/port"
)

const (
	itemCount     = 5
	tapsPerItem   = 40
	tapInterval   = 2 * time.Millisecond
	debounceDelay = 50 * time.Millisecond
)

// countingWriter stands in for the backend and counts how many writes
// actually reach it.
type countingWriter struct {
	writes atomic.Int32
}

func (w *countingWriter) UpdateItem(context.Context, domain.CartLine, float64, domain.MeasurementUnit, port.Session) error {
	w.writes.Add(1)
	return nil
}

func (w *countingWriter) RemoveItem(context.Context, string, port.Session) error {
	w.writes.Add(1)
	return nil
}

func (w *countingWriter) SaveCart(context.Context, []domain.CartLine, port.Session) error {
	w.writes.Add(1)
	return nil
}

func main() {
	ctx := context.Background()
	logger := zap.NewNop()

	cart := store.NewCartStore()
	writer := &countingWriter{}

	coalescer := service.NewWriteCoalescer(writer, logger)
	coalescer.SetDebounceDelay(debounceDelay)

	sess := port.Session{UserID: "burst", Authenticated: true}
	rollback := func(prior *store.Snapshot, err error) { cart.Restore(prior) }

	// Simulate a user hammering the plus button on several items at once.
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < itemCount; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			itemID := fmt.Sprintf("item-%d", n)
			line := domain.CartLine{ID: itemID, Unit: domain.UnitByCount}

			for tap := 1; tap <= tapsPerItem; tap++ {
				prior := cart.Snapshot()
				line.Quantity = float64(tap)
				cart.SetLine(line)
				coalescer.ScheduleUpdate(itemID, line, float64(tap), domain.UnitByCount, sess, prior, rollback)
				time.Sleep(tapInterval)
			}
		}(i)
	}

	wg.Wait()
	result := coalescer.SyncAll(ctx)
	elapsed := time.Since(start)

	intents := itemCount * tapsPerItem
	writes := int(writer.writes.Load())

	fmt.Println("========== WRITE COALESCING RESULTS ==========")
	fmt.Printf("User intents:     %d\n", intents)
	fmt.Printf("Backend writes:   %d\n", writes)
	fmt.Printf("Collapse ratio:   %.1fx\n", float64(intents)/float64(writes))
	fmt.Printf("Flush succeeded:  %d, failed: %d\n", result.Succeeded, result.Failed)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==============================================")

	ok := true
	for i := 0; i < itemCount; i++ {
		itemID := fmt.Sprintf("item-%d", i)
		if got := cart.Quantity(itemID); got != tapsPerItem {
			fmt.Printf("FAIL: %s quantity %g, want %d\n", itemID, got, tapsPerItem)
			ok = false
		}
	}
	if ok && writes < intents {
		fmt.Printf("PASS: %d intents collapsed into %d writes with final quantities intact\n", intents, writes)
	}
}
