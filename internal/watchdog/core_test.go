package watchdog

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"futures_orchestrator/internal/config"
	"futures_orchestrator/internal/filtercache"
	"futures_orchestrator/internal/models"
	"futures_orchestrator/internal/notify"
	"futures_orchestrator/internal/queue"
	"futures_orchestrator/internal/store"

	"github.com/shopspring/decimal"
)

var errPlacementRejected = errors.New("exchange rejected order placement")

type recordingNotifier struct {
	messages []string
}

func (r *recordingNotifier) Send(text string) error {
	r.messages = append(r.messages, text)
	return nil
}

type fakeGateway struct {
	account       models.Account
	filters       models.SymbolFilters
	orderStatus   map[string]models.OrderStatusResult
	markPrice     decimal.Decimal
	placed        []models.PlaceOrderRequest
	placeErr      error
	failOrderType models.OrderType // if set, placeErr only applies to this order type
	cancelled     []string
	nextOrderID   int
}

func (f *fakeGateway) AccountInfo(ctx context.Context) (models.Account, error) { return f.account, nil }
func (f *fakeGateway) OpenOrders(ctx context.Context, symbol string) ([]models.OpenOrder, error) {
	return nil, nil
}
func (f *fakeGateway) PlaceOrder(ctx context.Context, req models.PlaceOrderRequest) (models.OrderResult, error) {
	f.placed = append(f.placed, req)
	if f.placeErr != nil && (f.failOrderType == "" || f.failOrderType == req.Type) {
		return models.OrderResult{}, f.placeErr
	}
	f.nextOrderID++
	return models.OrderResult{OrderID: orderIDFor(f.nextOrderID)}, nil
}
func (f *fakeGateway) CancelOrder(ctx context.Context, symbol, orderID string) error {
	f.cancelled = append(f.cancelled, orderID)
	return nil
}
func (f *fakeGateway) ChangeLeverage(ctx context.Context, symbol string, leverage int) error {
	return nil
}
func (f *fakeGateway) ExchangeInfo(ctx context.Context, symbol string) (models.SymbolFilters, error) {
	return f.filters, nil
}
func (f *fakeGateway) OrderStatus(ctx context.Context, symbol, orderID string) (models.OrderStatusResult, error) {
	if r, ok := f.orderStatus[orderID]; ok {
		return r, nil
	}
	return models.OrderStatusResult{Status: models.OrderStatusNew}, nil
}
func (f *fakeGateway) MarkPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return f.markPrice, nil
}

func orderIDFor(n int) string {
	return "ord-" + string(rune('A'+n))
}

func newTestCore(t *testing.T, gw *fakeGateway, cfg *config.Config) (*Core, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	st := store.New(filepath.Join(dir, store.DefaultStateFile))
	fc := filtercache.New(gw)
	q := queue.New(filepath.Join(dir, queue.DefaultQueueFile))
	snap := config.NewSnapshot(cfg)
	return New(st, gw, fc, q, notify.NoOp{}, snap), st
}

func defaultFilters() models.SymbolFilters {
	return models.SymbolFilters{
		Symbol:      "BTCUSDT",
		TickSize:    decimal.RequireFromString("0.1"),
		StepSize:    decimal.RequireFromString("0.001"),
		MinNotional: decimal.RequireFromString("5"),
	}
}

func baseConfig() *config.Config {
	return &config.Config{
		MaxSLTPAttempts:         3,
		TrailingTriggerFraction: 0.80,
		TrailingCloseFraction:   0.80,
		TrailingSLFraction:      0.50,
	}
}

func filledOrder(id string, size decimal.Decimal) *models.WatchedOrder {
	entry := decimal.RequireFromString("45000")
	w := &models.WatchedOrder{
		OrderID:      id,
		Symbol:       "BTCUSDT",
		Side:         models.SideBuy,
		PositionSide: models.PositionSideLong,
		Status:       models.StatusFilled,
		SignalType:   models.DirectionLong,
		StopLoss:     decimal.RequireFromString("44000"),
		TakeProfit:   decimal.RequireFromString("47000"),
		CreatedAt:    time.Now().UTC(),
	}
	w.EntryPriceFilled = &entry
	w.PositionSize = &size
	return w
}

// S4 — trailing engages exactly at f = 0.80.
func TestTrailingEngagesAtExactlyEightyPercent(t *testing.T) {
	gw := &fakeGateway{filters: defaultFilters(), markPrice: decimal.RequireFromString("46600")}
	c, st := newTestCore(t, gw, baseConfig())

	size := decimal.RequireFromString("0.01")
	w := filledOrder("E1", size)
	w.SLOrderID = "sl-0"
	w.TPOrderID = "tp-0"
	if err := st.Register(w); err != nil {
		t.Fatalf("register: %v", err)
	}

	c.runTrailing(context.Background(), baseConfig(), w)

	if !w.TrailingTriggered {
		t.Fatalf("expected trailing to engage at f=0.80")
	}
	if len(gw.placed) != 3 {
		t.Fatalf("expected 3 orders placed (reduce, new SL, new TP), got %d", len(gw.placed))
	}
	reduceOrder := gw.placed[0]
	if !reduceOrder.Quantity.Equal(decimal.RequireFromString("0.008")) {
		t.Errorf("expected reduce qty 0.008, got %s", reduceOrder.Quantity)
	}
	newSL := gw.placed[1]
	if !newSL.StopPrice.Equal(decimal.RequireFromString("46000.0")) {
		t.Errorf("expected new SL stop 46000.0, got %s", newSL.StopPrice)
	}
	if !newSL.Quantity.Equal(decimal.RequireFromString("0.002")) {
		t.Errorf("expected remaining qty 0.002, got %s", newSL.Quantity)
	}
	newTP := gw.placed[2]
	if !newTP.Quantity.Equal(decimal.RequireFromString("0.002")) {
		t.Errorf("expected TP qty updated to 0.002, got %s", newTP.Quantity)
	}
}

// S4 boundary — at f = 0.7999..., trailing must not engage.
func TestTrailingDoesNotEngageJustBelowThreshold(t *testing.T) {
	gw := &fakeGateway{filters: defaultFilters(), markPrice: decimal.RequireFromString("46599.9")}
	c, st := newTestCore(t, gw, baseConfig())

	w := filledOrder("E2", decimal.RequireFromString("0.01"))
	w.SLOrderID = "sl-0"
	w.TPOrderID = "tp-0"
	if err := st.Register(w); err != nil {
		t.Fatalf("register: %v", err)
	}

	c.runTrailing(context.Background(), baseConfig(), w)

	if w.TrailingTriggered {
		t.Fatalf("trailing must not engage below threshold")
	}
	if len(gw.placed) != 0 {
		t.Fatalf("expected no orders placed, got %d", len(gw.placed))
	}
}

// I5 — trailing_triggered flips false->true at most once.
func TestTrailingTriggeredIsOneShot(t *testing.T) {
	gw := &fakeGateway{filters: defaultFilters(), markPrice: decimal.RequireFromString("46600")}
	c, st := newTestCore(t, gw, baseConfig())

	w := filledOrder("E3", decimal.RequireFromString("0.01"))
	w.SLOrderID = "sl-0"
	w.TPOrderID = "tp-0"
	if err := st.Register(w); err != nil {
		t.Fatalf("register: %v", err)
	}

	c.runTrailing(context.Background(), baseConfig(), w)
	placedAfterFirst := len(gw.placed)
	c.runTrailing(context.Background(), baseConfig(), w)

	if len(gw.placed) != placedAfterFirst {
		t.Fatalf("second runTrailing call must be a no-op once triggered")
	}
}

// S5 — external close detection.
func TestExternalCloseDetection(t *testing.T) {
	gw := &fakeGateway{
		filters: defaultFilters(),
		account: models.Account{Positions: []models.Position{
			{Symbol: "BTCUSDT", PositionAmt: decimal.Zero},
		}},
		orderStatus: map[string]models.OrderStatusResult{
			"sl-0": {Status: models.OrderStatusCanceled},
			"tp-0": {Status: models.OrderStatusCanceled},
		},
	}
	c, st := newTestCore(t, gw, baseConfig())

	w := filledOrder("E4", decimal.RequireFromString("0.01"))
	w.SLOrderID = "sl-0"
	w.TPOrderID = "tp-0"
	if err := st.Register(w); err != nil {
		t.Fatalf("register: %v", err)
	}

	c.pollFilled(context.Background(), baseConfig(), w)

	if w.Status != models.StatusClosed {
		t.Fatalf("expected CLOSED after external close detection, got %s", w.Status)
	}
	if _, ok := st.Get("E4"); ok {
		t.Fatalf("expected WatchedOrder removed from live set after close")
	}
	if len(gw.cancelled) != 2 {
		t.Fatalf("expected both legs cancelled, got %v", gw.cancelled)
	}
}

// S6 — restart mid-lifecycle: SL placed, TP missing; first poll places TP.
func TestRestartMidLifecyclePlacesMissingTPLeg(t *testing.T) {
	gw := &fakeGateway{filters: defaultFilters()}
	c, st := newTestCore(t, gw, baseConfig())

	w := filledOrder("E5", decimal.RequireFromString("0.01"))
	w.SLOrderID = "sl-existing"
	if err := st.Register(w); err != nil {
		t.Fatalf("register: %v", err)
	}

	c.Poll(context.Background())

	if w.TPOrderID == "" {
		t.Fatalf("expected TP leg to be placed on first poll after restart")
	}
	if w.SLOrderID != "sl-existing" {
		t.Fatalf("expected existing SL leg left untouched, got %s", w.SLOrderID)
	}
	if len(gw.placed) != 1 || gw.placed[0].Type != models.OrderTypeTakeProfitMarket {
		t.Fatalf("expected exactly one TAKE_PROFIT_MARKET order placed, got %v", gw.placed)
	}
}

// I3 — sl_tp_attempts reaches MAX_SL_TP_ATTEMPTS and a notifier fires.
func TestSLTPAttemptsBoundedAndNotified(t *testing.T) {
	gw := &fakeGateway{filters: defaultFilters(), placeErr: errPlacementRejected}
	cfg := baseConfig()
	cfg.MaxSLTPAttempts = 2
	c, st := newTestCore(t, gw, cfg)
	rec := &recordingNotifier{}
	c.notifier = rec

	w := filledOrder("E6", decimal.RequireFromString("0.01"))
	if err := st.Register(w); err != nil {
		t.Fatalf("register: %v", err)
	}

	c.ensureExitLegs(context.Background(), cfg, w)
	c.ensureExitLegs(context.Background(), cfg, w)

	if w.SLTPAttempts < cfg.MaxSLTPAttempts {
		t.Fatalf("expected sl_tp_attempts >= %d, got %d", cfg.MaxSLTPAttempts, w.SLTPAttempts)
	}
	if w.HasBothExitLegs() {
		t.Fatalf("expected exit legs to remain unplaced given placeErr")
	}
	fatalSent := false
	for _, m := range rec.messages {
		if strings.HasPrefix(m, "FATAL:") {
			fatalSent = true
		}
	}
	if !fatalSent {
		t.Fatalf("expected a FATAL notifier message once attempts reached the bound, got %v", rec.messages)
	}
}

// §4.5 failure handling — if step 2 (SL cancel) succeeded but step 4 (new SL
// submit) fails, the reduce order must never be resubmitted, and the retry
// is bounded by MAX_SL_TP_ATTEMPTS the same way ensureExitLegs is.
func TestTrailingSLReplacementRetriesWithoutReReducing(t *testing.T) {
	gw := &fakeGateway{
		filters:       defaultFilters(),
		markPrice:     decimal.RequireFromString("46600"),
		placeErr:      errPlacementRejected,
		failOrderType: models.OrderTypeStopMarket,
	}
	cfg := baseConfig()
	cfg.MaxSLTPAttempts = 2
	c, st := newTestCore(t, gw, cfg)

	w := filledOrder("E7", decimal.RequireFromString("0.01"))
	w.SLOrderID = "sl-0"
	w.TPOrderID = "tp-0"
	if err := st.Register(w); err != nil {
		t.Fatalf("register: %v", err)
	}

	c.runTrailing(context.Background(), cfg, w)

	if !w.TrailingReduced {
		t.Fatalf("expected steps 1-3 to have completed")
	}
	if w.TrailingTriggered {
		t.Fatalf("must not be marked triggered while the SL replacement keeps failing")
	}
	if len(gw.placed) != 2 {
		t.Fatalf("expected 2 placements (reduce + failed SL attempt), got %d", len(gw.placed))
	}

	// A later poll tick resumes the procedure via pollFilled, not via the
	// generic exit-leg placement.
	c.pollFilled(context.Background(), cfg, w)

	if len(gw.placed) != 3 {
		t.Fatalf("expected a second SL attempt via pollFilled, got %d placements", len(gw.placed))
	}
	if w.SLTPAttempts < cfg.MaxSLTPAttempts {
		t.Fatalf("expected sl_tp_attempts >= %d, got %d", cfg.MaxSLTPAttempts, w.SLTPAttempts)
	}

	reduceCount := 0
	for _, p := range gw.placed {
		if p.Type == models.OrderTypeMarket {
			reduceCount++
		}
	}
	if reduceCount != 1 {
		t.Fatalf("expected exactly 1 reduce order across retries, got %d", reduceCount)
	}
}
