package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/rl1809/cart-sync/internal/core/domain"
	"github.com/rl1809/cart-sync/internal/core/store"
	"github.com/rl1809/cart-sync/internal/port"
)

type ValidationSource string

const (
	SourceAppActivation ValidationSource = "appActivation"
	SourceScreenFocus   ValidationSource = "screenFocus"
	SourceStockUpdate   ValidationSource = "stockUpdate"
	SourcePeriodic      ValidationSource = "periodic"
	SourceManual        ValidationSource = "manual"
)

// Options controls a single validation run. Force bypasses both cooldown
// windows; it does not bypass the reentrancy gate.
type Options struct {
	AutoCorrect bool
	Force       bool
	Source      ValidationSource
}

// Correction applies one fix: quantity > 0 reduces the item, 0 removes it.
type Correction func(ctx context.Context, itemID string, quantity float64) error

type ValidatorConfig struct {
	// SoftCooldown is the minimum gap between in-process runs.
	SoftCooldown time.Duration
	// HardCooldown is the minimum age of the persisted stamp before a new run
	// is allowed. It survives restarts.
	HardCooldown time.Duration
}

func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		SoftCooldown: 30 * time.Second,
		HardCooldown: 5 * time.Minute,
	}
}

// CartValidator reconciles the local cart against known stock levels,
// classifying lines and optionally correcting them. All trigger paths funnel
// into ValidateAndCorrect, so its reentrancy and cooldown gates are the final
// arbiter of whether work happens.
type CartValidator struct {
	cart     *store.CartStore
	stock    *store.StockStore
	feed     port.StockFeed // optional: refreshed before classification
	stamps   port.StampStore
	notifier port.Notifier
	correct  Correction
	logger   *zap.Logger
	cfg      ValidatorConfig

	runMu sync.Mutex // reentrancy gate, TryLock only

	lastMu  sync.Mutex
	lastRun time.Time

	sfg singleflight.Group
}

func NewCartValidator(cart *store.CartStore, stock *store.StockStore, feed port.StockFeed, stamps port.StampStore, notifier port.Notifier, correct Correction, cfg ValidatorConfig, logger *zap.Logger) *CartValidator {
	return &CartValidator{
		cart:     cart,
		stock:    stock,
		feed:     feed,
		stamps:   stamps,
		notifier: notifier,
		correct:  correct,
		logger:   logger,
		cfg:      cfg,
	}
}

// QuickValidate classifies the cart against known stock with no side effects,
// aggregating issue counts by kind for compact summaries. Items without a
// known stock level are skipped.
func (v *CartValidator) QuickValidate() domain.QuickResult {
	counts := make(map[domain.IssueKind]int)
	for _, line := range v.cart.Lines() {
		if line.Quantity <= 0 {
			continue
		}
		available, known := v.stock.Lookup(line.ID)
		if !known {
			continue
		}
		switch {
		case available == 0:
			counts[domain.IssueOutOfStock]++
		case available < line.Quantity:
			counts[domain.IssueInsufficientStock]++
		}
	}

	result := domain.QuickResult{IsValid: len(counts) == 0}
	for _, kind := range []domain.IssueKind{domain.IssueOutOfStock, domain.IssueInsufficientStock} {
		if counts[kind] > 0 {
			result.Issues = append(result.Issues, domain.IssueCount{Kind: kind, Count: counts[kind]})
		}
	}
	return result
}

// SinceLastRun reports the age of the most recent in-process run, or false if
// none has happened yet.
func (v *CartValidator) SinceLastRun() (time.Duration, bool) {
	v.lastMu.Lock()
	defer v.lastMu.Unlock()
	if v.lastRun.IsZero() {
		return 0, false
	}
	return time.Since(v.lastRun), true
}

// ValidateAndCorrect runs a full validation pass. At most one run is active
// at a time; overlapping calls return a NoAction report immediately.
func (v *CartValidator) ValidateAndCorrect(ctx context.Context, opts Options) (report domain.Report) {
	if !v.runMu.TryLock() {
		return domain.Report{Success: true, NoAction: true}
	}
	defer v.runMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			v.logger.Error("validation panicked", zap.Any("panic", r), zap.String("source", string(opts.Source)))
			report = domain.Report{Success: false, Error: fmt.Sprint(r)}
		}
	}()

	now := time.Now()
	if !opts.Force && v.onCooldown(ctx, now) {
		return domain.Report{Success: true, NoAction: true}
	}

	if v.cart.Len() == 0 {
		return domain.Report{Success: true, NoAction: true}
	}

	v.refreshStock(ctx)

	issues := v.classify()
	v.touch(ctx, now)

	if len(issues) == 0 {
		v.logger.Debug("cart valid", zap.String("source", string(opts.Source)))
		return domain.Report{Success: true, IsValid: true, NoChanges: true}
	}

	if !opts.AutoCorrect {
		return domain.Report{Success: true, IsValid: false, Issues: issues}
	}

	fixes, errs := v.applyFixes(ctx, issues)
	v.notifySummary(fixes, errs)

	v.logger.Info("cart corrected",
		zap.String("source", string(opts.Source)),
		zap.Int("fixes", len(fixes)),
		zap.Int("errors", len(errs)))

	return domain.Report{
		Success:   len(errs) == 0,
		IsValid:   false,
		Corrected: true,
		Issues:    issues,
		Fixes:     fixes,
		Errors:    errs,
	}
}

func (v *CartValidator) onCooldown(ctx context.Context, now time.Time) bool {
	v.lastMu.Lock()
	last := v.lastRun
	v.lastMu.Unlock()
	if !last.IsZero() && now.Sub(last) < v.cfg.SoftCooldown {
		return true
	}

	if v.stamps != nil {
		at, ok, err := v.stamps.LastValidation(ctx)
		if err != nil {
			v.logger.Warn("validation stamp read failed", zap.Error(err))
			return false
		}
		if ok && now.Sub(at) < v.cfg.HardCooldown {
			return true
		}
	}
	return false
}

// refreshStock pulls a bulk snapshot before classification so corrections act
// on the freshest levels. Concurrent refreshes collapse via singleflight.
// A failed refresh is logged and classification proceeds on cached levels.
func (v *CartValidator) refreshStock(ctx context.Context) {
	if v.feed == nil {
		return
	}
	_, err, _ := v.sfg.Do("stock-snapshot", func() (interface{}, error) {
		snapshot, err := v.feed.Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		v.stock.BulkUpdate(snapshot)
		return nil, nil
	})
	if err != nil {
		v.logger.Warn("stock snapshot refresh failed", zap.Error(err))
	}
}

func (v *CartValidator) classify() []domain.Issue {
	var issues []domain.Issue
	for _, line := range v.cart.Lines() {
		if line.Quantity <= 0 {
			continue
		}
		available, known := v.stock.Lookup(line.ID)
		if !known {
			continue
		}
		switch {
		case available == 0:
			issues = append(issues, domain.Issue{
				ItemID:            line.ID,
				Kind:              domain.IssueOutOfStock,
				AvailableStock:    0,
				RequestedQuantity: line.Quantity,
			})
		case available < line.Quantity:
			issues = append(issues, domain.Issue{
				ItemID:            line.ID,
				Kind:              domain.IssueInsufficientStock,
				AvailableStock:    available,
				RequestedQuantity: line.Quantity,
			})
		}
	}
	sort.Slice(issues, func(i, j int) bool { return issues[i].ItemID < issues[j].ItemID })
	return issues
}

func (v *CartValidator) applyFixes(ctx context.Context, issues []domain.Issue) ([]domain.Fix, []domain.CorrectionError) {
	var fixes []domain.Fix
	var errs []domain.CorrectionError

	for _, issue := range issues {
		target := 0.0
		if issue.Kind == domain.IssueInsufficientStock {
			target = issue.AvailableStock
		}

		if err := v.correct(ctx, issue.ItemID, target); err != nil {
			// one bad correction must not block the others
			errs = append(errs, domain.CorrectionError{ItemID: issue.ItemID, Message: err.Error()})
			continue
		}

		if target == 0 {
			fixes = append(fixes, domain.Fix{
				ItemID:      issue.ItemID,
				Type:        domain.FixRemoved,
				OldQuantity: issue.RequestedQuantity,
				Reason:      "out of stock",
			})
		} else {
			fixes = append(fixes, domain.Fix{
				ItemID:      issue.ItemID,
				Type:        domain.FixReduced,
				OldQuantity: issue.RequestedQuantity,
				NewQuantity: target,
				Reason:      "insufficient stock",
			})
		}
	}
	return fixes, errs
}

func (v *CartValidator) touch(ctx context.Context, now time.Time) {
	v.lastMu.Lock()
	v.lastRun = now
	v.lastMu.Unlock()

	if v.stamps != nil {
		if err := v.stamps.MarkValidated(ctx, now); err != nil {
			v.logger.Warn("validation stamp write failed", zap.Error(err))
		}
	}
}

func (v *CartValidator) notifySummary(fixes []domain.Fix, errs []domain.CorrectionError) {
	if v.notifier == nil {
		return
	}
	if len(fixes) > 0 {
		v.notifier.Notify(port.NotifyWarning, fmt.Sprintf("Cart updated: %d item(s) adjusted to available stock", len(fixes)))
	}
	if len(errs) > 0 {
		v.notifier.Notify(port.NotifyError, fmt.Sprintf("Failed to update %d item(s)", len(errs)))
	}
}
