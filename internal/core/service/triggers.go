package service

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/cart-sync/internal/core/store"
	"github.com/rl1809/cart-sync/pkg/debounce"
)

const (
	triggerKeyForeground = "app-foreground"
	triggerKeyFocus      = "screen-focus"
	triggerKeyStock      = "stock-push"
)

type TriggerConfig struct {
	// ForegroundSettle is the wait after a background→active transition
	// before validating.
	ForegroundSettle time.Duration
	// FocusSettle is the shorter wait after a screen gains focus.
	FocusSettle time.Duration
	// StockReaction debounces validation after significant stock pushes.
	StockReaction time.Duration
	// PeriodicInterval is the safety-net tick.
	PeriodicInterval time.Duration
	// StaleAfter is how old the last run may be before the periodic tick
	// forces a new one.
	StaleAfter time.Duration
}

func DefaultTriggerConfig() TriggerConfig {
	return TriggerConfig{
		ForegroundSettle: 1500 * time.Millisecond,
		FocusSettle:      500 * time.Millisecond,
		StockReaction:    2 * time.Second,
		PeriodicInterval: time.Minute,
		StaleAfter:       5 * time.Minute,
	}
}

// TriggerOrchestrator decides when the validator runs. Each trigger source is
// debounced independently; the validator's own gates decide whether the run
// actually does anything.
type TriggerOrchestrator struct {
	validator *CartValidator
	cart      *store.CartStore
	coalescer *WriteCoalescer
	cfg       TriggerConfig
	logger    *zap.Logger

	timers       *debounce.Executor
	foregrounded atomic.Bool
}

func NewTriggerOrchestrator(validator *CartValidator, cart *store.CartStore, coalescer *WriteCoalescer, cfg TriggerConfig, logger *zap.Logger) *TriggerOrchestrator {
	o := &TriggerOrchestrator{
		validator: validator,
		cart:      cart,
		coalescer: coalescer,
		cfg:       cfg,
		logger:    logger,
		timers:    debounce.NewExecutor(cfg.StockReaction),
	}
	o.foregrounded.Store(true)
	return o
}

// HandleAppForeground reacts to a background→active transition: validate
// after a settle delay.
func (o *TriggerOrchestrator) HandleAppForeground() {
	o.foregrounded.Store(true)
	o.timers.ScheduleAfter(triggerKeyForeground, o.cfg.ForegroundSettle, func() {
		o.run(SourceAppActivation)
	})
}

// HandleAppBackground flushes pending writes before the app is suspended.
func (o *TriggerOrchestrator) HandleAppBackground(ctx context.Context) SyncResult {
	o.foregrounded.Store(false)
	result := o.coalescer.SyncAll(ctx)
	if result.Succeeded+result.Failed > 0 {
		o.logger.Info("flushed pending writes on background",
			zap.Int("succeeded", result.Succeeded),
			zap.Int("failed", result.Failed))
	}
	return result
}

// HandleScreenFocus is the opt-in per-screen trigger.
func (o *TriggerOrchestrator) HandleScreenFocus() {
	o.timers.ScheduleAfter(triggerKeyFocus, o.cfg.FocusSettle, func() {
		o.run(SourceScreenFocus)
	})
}

// HandleStockDelta reacts to an incremental stock push. Only significant
// deltas schedule a validation: the item is carted and its available stock
// dropped below the carted quantity (or to zero). Repeated pushes within the
// reaction window collapse into one run.
func (o *TriggerOrchestrator) HandleStockDelta(itemID string, available float64) {
	carted := o.cart.Quantity(itemID)
	if carted <= 0 {
		return
	}
	if available > 0 && available >= carted {
		return
	}

	o.logger.Debug("significant stock delta",
		zap.String("item_id", itemID),
		zap.Float64("available", available),
		zap.Float64("carted", carted))

	o.timers.ScheduleAfter(triggerKeyStock, o.cfg.StockReaction, func() {
		o.run(SourceStockUpdate)
	})
}

// Start runs the periodic safety net until the context is canceled. The tick
// validates only when the app is foregrounded and the last run has gone
// stale, so event-driven triggers normally keep it silent.
func (o *TriggerOrchestrator) Start(ctx context.Context) {
	ticker := time.NewTicker(o.cfg.PeriodicInterval)
	defer ticker.Stop()
	defer o.timers.CancelAll()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !o.foregrounded.Load() {
				continue
			}
			if since, ok := o.validator.SinceLastRun(); ok && since < o.cfg.StaleAfter {
				continue
			}
			o.run(SourcePeriodic)
		}
	}
}

func (o *TriggerOrchestrator) run(source ValidationSource) {
	report := o.validator.ValidateAndCorrect(context.Background(), Options{
		AutoCorrect: true,
		Source:      source,
	})
	if report.NoAction {
		return
	}
	o.logger.Debug("validation run",
		zap.String("source", string(source)),
		zap.Bool("valid", report.IsValid),
		zap.Int("fixes", len(report.Fixes)))
}
