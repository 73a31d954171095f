package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rl1809/cart-sync/internal/core/domain"
	"github.com/rl1809/cart-sync/internal/core/store"
	"github.com/rl1809/cart-sync/internal/port"
	"github.com/rl1809/cart-sync/pkg/debounce"
)

// DefaultDebounceDelay is the quiet period before a scheduled write fires.
const DefaultDebounceDelay = 800 * time.Millisecond

// OnError receives the pre-mutation snapshot and the write error so the
// caller can roll the cart back.
type OnError func(prior *store.Snapshot, err error)

type opKind int

const (
	opUpdate opKind = iota
	opRemove
)

// pendingOp is the latest mutation intent for one item. At most one exists
// per item at any time; a new intent replaces it and restarts the timer.
type pendingOp struct {
	id         string
	kind       opKind
	line       domain.CartLine
	quantity   float64
	unit       domain.MeasurementUnit
	sess       port.Session
	prior      *store.Snapshot
	onError    OnError
	enqueuedAt time.Time
}

type SyncResult struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// WriteCoalescer batches rapid-fire mutation intents for the same item into a
// single outbound write. Failures on the debounced path never escape; they
// are funneled through the operation's OnError callback.
type WriteCoalescer struct {
	writer port.CartWriter
	logger *zap.Logger
	timers *debounce.Executor

	mu      sync.Mutex
	pending map[string]*pendingOp
}

func NewWriteCoalescer(writer port.CartWriter, logger *zap.Logger) *WriteCoalescer {
	return &WriteCoalescer{
		writer:  writer,
		logger:  logger,
		timers:  debounce.NewExecutor(DefaultDebounceDelay),
		pending: make(map[string]*pendingOp),
	}
}

// SetDebounceDelay reconfigures the quiet period for future schedules.
// Timers already running keep their original delay.
func (c *WriteCoalescer) SetDebounceDelay(delay time.Duration) {
	c.timers.SetDelay(delay)
}

// ScheduleUpdate records the latest update intent for an item and (re)starts
// its debounce timer. The call returns before any network activity; when the
// timer fires, the write carries whatever quantity was recorded last.
func (c *WriteCoalescer) ScheduleUpdate(itemID string, line domain.CartLine, quantity float64, unit domain.MeasurementUnit, sess port.Session, prior *store.Snapshot, onError OnError) {
	c.schedule(itemID, &pendingOp{
		id:         uuid.NewString(),
		kind:       opUpdate,
		line:       line,
		quantity:   quantity,
		unit:       unit,
		sess:       sess,
		prior:      prior,
		onError:    onError,
		enqueuedAt: time.Now(),
	})
}

// ScheduleRemove records a remove intent with the same debounce mechanics.
func (c *WriteCoalescer) ScheduleRemove(itemID string, sess port.Session, prior *store.Snapshot, onError OnError) {
	c.schedule(itemID, &pendingOp{
		id:         uuid.NewString(),
		kind:       opRemove,
		sess:       sess,
		prior:      prior,
		onError:    onError,
		enqueuedAt: time.Now(),
	})
}

func (c *WriteCoalescer) schedule(itemID string, op *pendingOp) {
	c.mu.Lock()
	c.pending[itemID] = op
	c.mu.Unlock()

	c.timers.Schedule(itemID, func() {
		c.fire(itemID)
	})
}

// fire executes whatever intent is current for the item when the timer goes
// off. Reading the map here, not capturing the op at schedule time, is what
// makes a burst collapse to one write with the final quantity.
func (c *WriteCoalescer) fire(itemID string) {
	c.mu.Lock()
	op, ok := c.pending[itemID]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.pending, itemID)
	c.mu.Unlock()

	c.execute(context.Background(), itemID, op)
}

func (c *WriteCoalescer) execute(ctx context.Context, itemID string, op *pendingOp) error {
	var err error
	switch op.kind {
	case opRemove:
		err = c.writer.RemoveItem(ctx, itemID, op.sess)
	default:
		err = c.writer.UpdateItem(ctx, op.line, op.quantity, op.unit, op.sess)
	}

	if err != nil {
		c.logger.Warn("cart write failed",
			zap.String("op_id", op.id),
			zap.String("item_id", itemID),
			zap.Duration("queued_for", time.Since(op.enqueuedAt)),
			zap.Error(err))
		if op.onError != nil {
			op.onError(op.prior, err)
		}
		return err
	}
	return nil
}

// BatchSave writes the whole cart immediately, without debouncing. Unlike the
// debounced path it propagates the failure to the caller, after invoking
// onError for rollback.
func (c *WriteCoalescer) BatchSave(ctx context.Context, lines []domain.CartLine, sess port.Session, prior *store.Snapshot, onError OnError) error {
	if err := c.writer.SaveCart(ctx, lines, sess); err != nil {
		if onError != nil {
			onError(prior, err)
		}
		return fmt.Errorf("batch save: %w", err)
	}
	return nil
}

// SyncAll flushes every pending operation right away, firing the underlying
// writes concurrently. All timers and pending state are cleared; the result
// aggregates how the writes settled.
func (c *WriteCoalescer) SyncAll(ctx context.Context) SyncResult {
	c.mu.Lock()
	ops := c.pending
	c.pending = make(map[string]*pendingOp)
	c.mu.Unlock()

	for itemID := range ops {
		c.timers.Cancel(itemID)
	}

	var succeeded, failed atomic.Int32
	var wg sync.WaitGroup
	for itemID, op := range ops {
		wg.Add(1)
		go func(itemID string, op *pendingOp) {
			defer wg.Done()
			if c.execute(ctx, itemID, op) != nil {
				failed.Add(1)
			} else {
				succeeded.Add(1)
			}
		}(itemID, op)
	}
	wg.Wait()

	return SyncResult{Succeeded: int(succeeded.Load()), Failed: int(failed.Load())}
}

// CancelOperation drops a pending intent without issuing any write.
func (c *WriteCoalescer) CancelOperation(itemID string) {
	c.timers.Cancel(itemID)
	c.mu.Lock()
	delete(c.pending, itemID)
	c.mu.Unlock()
}

func (c *WriteCoalescer) HasPending() bool {
	return c.PendingCount() > 0
}

func (c *WriteCoalescer) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
