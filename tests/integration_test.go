package tests

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rl1809/cart-sync/internal/adapter/storage"
	"github.com/rl1809/cart-sync/internal/core/domain"
	"github.com/rl1809/cart-sync/internal/core/service"
	"github.com/rl1809/cart-sync/internal/core/store"
	"github.com/rl1809/cart-sync/internal/port"
)

type memoryBackend struct {
	mu    sync.Mutex
	cart  map[string]float64
	saves int
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{cart: make(map[string]float64)}
}

func (b *memoryBackend) UpdateItem(_ context.Context, line domain.CartLine, quantity float64, _ domain.MeasurementUnit, _ port.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cart[line.ID] = quantity
	return nil
}

func (b *memoryBackend) RemoveItem(_ context.Context, itemID string, _ port.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.cart, itemID)
	return nil
}

func (b *memoryBackend) SaveCart(_ context.Context, lines []domain.CartLine, _ port.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cart = make(map[string]float64, len(lines))
	for _, l := range lines {
		b.cart[l.ID] = l.Quantity
	}
	b.saves++
	return nil
}

func (b *memoryBackend) quantity(itemID string) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cart[itemID]
}

type testEnv struct {
	backend   *memoryBackend
	redis     *storage.RedisAdapter
	cart      *store.CartStore
	stock     *store.StockStore
	coalescer *service.WriteCoalescer
	validator *service.CartValidator
	triggers  *service.TriggerOrchestrator
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	redisAdapter := storage.NewRedisAdapter(rdb, "itest-user", 5*time.Minute)

	backend := newMemoryBackend()
	cart := store.NewCartStore()
	stock := store.NewStockStore()

	coalescer := service.NewWriteCoalescer(backend, logger)
	coalescer.SetDebounceDelay(20 * time.Millisecond)

	sessionFn := func() port.Session { return port.Session{UserID: "itest-user", Authenticated: true} }
	corrector := service.NewCartCorrector(cart, backend, coalescer, sessionFn, logger)

	validator := service.NewCartValidator(
		cart, stock, redisAdapter, redisAdapter,
		port.NopNotifier{},
		corrector.Apply,
		service.ValidatorConfig{SoftCooldown: time.Hour, HardCooldown: time.Hour},
		logger,
	)

	triggers := service.NewTriggerOrchestrator(validator, cart, coalescer, service.TriggerConfig{
		ForegroundSettle: 10 * time.Millisecond,
		FocusSettle:      10 * time.Millisecond,
		StockReaction:    10 * time.Millisecond,
		PeriodicInterval: time.Hour,
		StaleAfter:       time.Hour,
	}, logger)

	return &testEnv{
		backend:   backend,
		redis:     redisAdapter,
		cart:      cart,
		stock:     stock,
		coalescer: coalescer,
		validator: validator,
		triggers:  triggers,
	}
}

func (e *testEnv) addItem(itemID string, quantity float64, unit domain.MeasurementUnit) {
	line := domain.CartLine{ID: itemID, Unit: unit, Quantity: quantity}
	prior := e.cart.Snapshot()
	e.cart.SetLine(line)
	e.coalescer.ScheduleUpdate(itemID, line, quantity, unit, port.Session{UserID: "itest-user", Authenticated: true}, prior, func(prior *store.Snapshot, err error) {
		e.cart.Restore(prior)
	})
}

func TestIntegration_DebouncedWriteReachesBackend(t *testing.T) {
	env := setupTestEnv(t)

	// a burst of taps on the same item
	for q := 1.0; q <= 5; q++ {
		env.addItem("cans", q, domain.UnitByCount)
	}

	assert.Eventually(t, func() bool {
		return env.backend.quantity("cans") == 5
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 5.0, env.cart.Quantity("cans"))
}

func TestIntegration_StockDeltaAutoCorrectsCart(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	env.addItem("paper", 3, domain.UnitByWeight)
	require.Eventually(t, func() bool { return env.backend.quantity("paper") == 3 }, time.Second, 5*time.Millisecond)

	// upstream stock collapses to 1.5 kg
	require.NoError(t, env.redis.SetStock(ctx, "paper", 1.5))
	env.triggers.HandleAppForeground()
	env.triggers.HandleStockDelta("paper", 1.5)

	assert.Eventually(t, func() bool {
		return env.cart.Quantity("paper") == 1.5 && env.backend.quantity("paper") == 1.5
	}, 2*time.Second, 10*time.Millisecond)
}

func TestIntegration_OutOfStockItemRemovedEverywhere(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	env.addItem("glass", 2, domain.UnitByWeight)
	require.Eventually(t, func() bool { return env.backend.quantity("glass") == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, env.redis.SetStock(ctx, "glass", 0))

	report := env.validator.ValidateAndCorrect(ctx, service.Options{
		AutoCorrect: true,
		Force:       true,
		Source:      service.SourceManual,
	})
	require.True(t, report.Success)
	require.True(t, report.Corrected)

	assert.Equal(t, 0, env.cart.Len())
	assert.Equal(t, 0.0, env.backend.quantity("glass"))

	// a follow-up quick check sees a clean cart
	assert.True(t, env.validator.QuickValidate().IsValid)
}

func TestIntegration_ValidationStampSharedAcrossRestarts(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	env.cart.SetLine(domain.CartLine{ID: "cans", Unit: domain.UnitByCount, Quantity: 1})
	require.NoError(t, env.redis.SetStock(ctx, "cans", 10))

	first := env.validator.ValidateAndCorrect(ctx, service.Options{Force: true, Source: service.SourceManual})
	require.True(t, first.Success)

	// a second engine against the same Redis inherits the cooldown
	restarted := service.NewCartValidator(
		env.cart, env.stock, env.redis, env.redis,
		port.NopNotifier{}, nil,
		service.ValidatorConfig{SoftCooldown: time.Hour, HardCooldown: time.Hour},
		zap.NewNop(),
	)
	second := restarted.ValidateAndCorrect(ctx, service.Options{Source: service.SourcePeriodic})
	assert.True(t, second.NoAction)
}

func TestIntegration_BackgroundFlushesAllPendingWrites(t *testing.T) {
	env := setupTestEnv(t)
	env.coalescer.SetDebounceDelay(time.Hour)

	env.addItem("cans", 4, domain.UnitByCount)
	env.addItem("paper", 2.25, domain.UnitByWeight)
	assert.Equal(t, 2, env.coalescer.PendingCount())

	result := env.triggers.HandleAppBackground(context.Background())
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 4.0, env.backend.quantity("cans"))
	assert.Equal(t, 2.25, env.backend.quantity("paper"))
}
