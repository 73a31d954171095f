package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rl1809/cart-sync/internal/core/domain"
	"github.com/rl1809/cart-sync/internal/core/store"
	"github.com/rl1809/cart-sync/internal/port"
)

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeNotifier) Notify(_ port.NotifyKind, message string) {
	f.mu.Lock()
	f.messages = append(f.messages, message)
	f.mu.Unlock()
}

type fakeStamps struct {
	mu sync.Mutex
	at time.Time
	ok bool
}

func (f *fakeStamps) LastValidation(context.Context) (time.Time, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.at, f.ok, nil
}

func (f *fakeStamps) MarkValidated(_ context.Context, at time.Time) error {
	f.mu.Lock()
	f.at, f.ok = at, true
	f.mu.Unlock()
	return nil
}

type validatorFixture struct {
	cart      *store.CartStore
	stock     *store.StockStore
	notifier  *fakeNotifier
	validator *CartValidator

	mu          sync.Mutex
	corrections []writeCall
	correctErr  map[string]error
	correctWait time.Duration
}

// newValidatorFixture builds a validator whose correction callback mutates
// the cart store directly, mirroring what CartCorrector does on success.
func newValidatorFixture(cfg ValidatorConfig) *validatorFixture {
	f := &validatorFixture{
		cart:       store.NewCartStore(),
		stock:      store.NewStockStore(),
		notifier:   &fakeNotifier{},
		correctErr: make(map[string]error),
	}
	correct := func(_ context.Context, itemID string, quantity float64) error {
		f.mu.Lock()
		wait := f.correctWait
		err := f.correctErr[itemID]
		f.mu.Unlock()
		if wait > 0 {
			time.Sleep(wait)
		}
		if err != nil {
			return err
		}
		f.mu.Lock()
		f.corrections = append(f.corrections, writeCall{itemID: itemID, quantity: quantity})
		f.mu.Unlock()
		f.cart.SetQuantity(itemID, quantity)
		return nil
	}
	f.validator = NewCartValidator(f.cart, f.stock, nil, &fakeStamps{}, f.notifier, correct, cfg, zap.NewNop())
	return f
}

func TestQuickValidate_AggregatesByKind(t *testing.T) {
	f := newValidatorFixture(DefaultValidatorConfig())
	f.cart.SetLine(testLine("a"))
	f.cart.SetQuantity("a", 3)
	f.cart.SetLine(testLine("b"))
	f.cart.SetQuantity("b", 5)
	f.cart.SetLine(testLine("c"))
	f.cart.SetQuantity("c", 1)

	f.stock.BulkUpdate(map[string]float64{"a": 0, "b": 2, "c": 10})

	result := f.validator.QuickValidate()
	assert.False(t, result.IsValid)
	require.Len(t, result.Issues, 2)
	assert.Equal(t, domain.IssueOutOfStock, result.Issues[0].Kind)
	assert.Equal(t, 1, result.Issues[0].Count)
	assert.Equal(t, domain.IssueInsufficientStock, result.Issues[1].Kind)
	assert.Equal(t, 1, result.Issues[1].Count)
}

func TestQuickValidate_UnknownStockIsSkipped(t *testing.T) {
	f := newValidatorFixture(DefaultValidatorConfig())
	f.cart.SetLine(testLine("a"))
	f.cart.SetQuantity("a", 99)

	result := f.validator.QuickValidate()
	assert.True(t, result.IsValid)
	assert.Empty(t, result.Issues)
}

func TestValidateAndCorrect_OutOfStockRemoves(t *testing.T) {
	f := newValidatorFixture(DefaultValidatorConfig())
	f.cart.SetLine(testLine("a"))
	f.cart.SetQuantity("a", 3)
	f.stock.Update("a", 0)

	report := f.validator.ValidateAndCorrect(context.Background(), Options{AutoCorrect: true, Force: true})

	require.True(t, report.Success)
	assert.True(t, report.Corrected)
	require.Len(t, report.Fixes, 1)
	assert.Equal(t, domain.FixRemoved, report.Fixes[0].Type)
	assert.Equal(t, 3.0, report.Fixes[0].OldQuantity)

	// corrected cart is now clean
	assert.True(t, f.validator.QuickValidate().IsValid)
	assert.Equal(t, 0, f.cart.Len())
}

func TestValidateAndCorrect_InsufficientStockReduces(t *testing.T) {
	f := newValidatorFixture(DefaultValidatorConfig())
	f.cart.SetLine(testLine("b"))
	f.cart.SetQuantity("b", 5)
	f.stock.Update("b", 2)

	report := f.validator.ValidateAndCorrect(context.Background(), Options{AutoCorrect: true, Force: true})

	require.Len(t, report.Fixes, 1)
	fix := report.Fixes[0]
	assert.Equal(t, domain.FixReduced, fix.Type)
	assert.Equal(t, 5.0, fix.OldQuantity)
	assert.Equal(t, 2.0, fix.NewQuantity)
	assert.Equal(t, 2.0, f.cart.Quantity("b"))
}

func TestValidateAndCorrect_NoAutoCorrectSurfacesIssues(t *testing.T) {
	f := newValidatorFixture(DefaultValidatorConfig())
	f.cart.SetLine(testLine("a"))
	f.cart.SetQuantity("a", 3)
	f.stock.Update("a", 1)

	report := f.validator.ValidateAndCorrect(context.Background(), Options{Force: true})

	assert.True(t, report.Success)
	assert.False(t, report.IsValid)
	assert.False(t, report.Corrected)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, 1.0, report.Issues[0].AvailableStock)
	assert.Equal(t, 3.0, report.Issues[0].RequestedQuantity)
	assert.Equal(t, 3.0, f.cart.Quantity("a"), "nothing mutated")
}

func TestValidateAndCorrect_PartialFailure(t *testing.T) {
	f := newValidatorFixture(DefaultValidatorConfig())
	f.cart.SetLine(testLine("a"))
	f.cart.SetQuantity("a", 3)
	f.cart.SetLine(testLine("b"))
	f.cart.SetQuantity("b", 5)
	f.stock.BulkUpdate(map[string]float64{"a": 0, "b": 2})
	f.correctErr["a"] = errors.New("backend rejected")

	report := f.validator.ValidateAndCorrect(context.Background(), Options{AutoCorrect: true, Force: true})

	assert.False(t, report.Success)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "a", report.Errors[0].ItemID)
	require.Len(t, report.Fixes, 1)
	assert.Equal(t, "b", report.Fixes[0].ItemID, "one bad correction does not block others")
}

func TestValidateAndCorrect_EmptyCartNoAction(t *testing.T) {
	f := newValidatorFixture(DefaultValidatorConfig())
	report := f.validator.ValidateAndCorrect(context.Background(), Options{AutoCorrect: true, Force: true})
	assert.True(t, report.Success)
	assert.True(t, report.NoAction)
}

func TestValidateAndCorrect_CooldownSuppression(t *testing.T) {
	f := newValidatorFixture(ValidatorConfig{SoftCooldown: time.Minute, HardCooldown: 5 * time.Minute})
	f.cart.SetLine(testLine("a"))
	f.cart.SetQuantity("a", 3)
	f.stock.Update("a", 0)

	first := f.validator.ValidateAndCorrect(context.Background(), Options{AutoCorrect: true, Force: true})
	require.True(t, first.Corrected)

	f.cart.SetLine(testLine("a"))
	f.cart.SetQuantity("a", 3)

	second := f.validator.ValidateAndCorrect(context.Background(), Options{AutoCorrect: true})
	assert.True(t, second.NoAction)
	f.mu.Lock()
	assert.Len(t, f.corrections, 1, "no corrections issued on cooldown")
	f.mu.Unlock()
}

func TestValidateAndCorrect_PersistedStampSuppression(t *testing.T) {
	f := newValidatorFixture(ValidatorConfig{SoftCooldown: time.Nanosecond, HardCooldown: 5 * time.Minute})
	f.cart.SetLine(testLine("a"))
	f.cart.SetQuantity("a", 3)
	f.stock.Update("a", 0)

	// a recent persisted stamp blocks even when the in-process window passed
	require.NoError(t, f.validator.stamps.MarkValidated(context.Background(), time.Now().Add(-time.Minute)))

	report := f.validator.ValidateAndCorrect(context.Background(), Options{AutoCorrect: true})
	assert.True(t, report.NoAction)

	forced := f.validator.ValidateAndCorrect(context.Background(), Options{AutoCorrect: true, Force: true})
	assert.True(t, forced.Corrected)
}

func TestValidateAndCorrect_Reentrancy(t *testing.T) {
	f := newValidatorFixture(DefaultValidatorConfig())
	f.cart.SetLine(testLine("a"))
	f.cart.SetQuantity("a", 3)
	f.stock.Update("a", 0)
	f.correctWait = 100 * time.Millisecond

	started := make(chan struct{})
	var firstReport domain.Report
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		close(started)
		firstReport = f.validator.ValidateAndCorrect(context.Background(), Options{AutoCorrect: true, Force: true})
	}()

	<-started
	time.Sleep(20 * time.Millisecond) // first run is inside its correction

	second := f.validator.ValidateAndCorrect(context.Background(), Options{AutoCorrect: true, Force: true})
	assert.True(t, second.NoAction)

	wg.Wait()
	assert.True(t, firstReport.Corrected)
	f.mu.Lock()
	assert.Len(t, f.corrections, 1)
	f.mu.Unlock()
}

func TestValidateAndCorrect_NotifierSummaries(t *testing.T) {
	f := newValidatorFixture(DefaultValidatorConfig())
	f.cart.SetLine(testLine("a"))
	f.cart.SetQuantity("a", 3)
	f.cart.SetLine(testLine("b"))
	f.cart.SetQuantity("b", 5)
	f.stock.BulkUpdate(map[string]float64{"a": 0, "b": 2})
	f.correctErr["b"] = errors.New("nope")

	f.validator.ValidateAndCorrect(context.Background(), Options{AutoCorrect: true, Force: true})

	f.notifier.mu.Lock()
	defer f.notifier.mu.Unlock()
	require.Len(t, f.notifier.messages, 2)
	assert.Contains(t, f.notifier.messages[0], "1 item(s) adjusted")
	assert.Contains(t, f.notifier.messages[1], "Failed to update 1 item(s)")
}
