// Package executor implements the Order Executor (spec §4.2): admission
// control, position sizing, exchange-precision quantization, and atomic
// submission of an entry order with its registration into the Watchdog.
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"futures_orchestrator/internal/config"
	"futures_orchestrator/internal/exchange"
	"futures_orchestrator/internal/filtercache"
	"futures_orchestrator/internal/models"
	"futures_orchestrator/internal/notify"
	"futures_orchestrator/internal/queue"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LiveOrderView is the subset of the Watchdog State Store the admission
// pipeline needs to read: the live WatchedOrders known to the Watchdog as
// of "now" (spec §4.2 item 2, item 3). The Executor runs in the Scanner
// process, which has no in-process access to the Watchdog's store, so in
// production this is backed by a read-only snapshot of the shared state
// file (spec §4.6 item 1's "acceptable alternative").
type LiveOrderView interface {
	All() []*models.WatchedOrder
}

const enqueueRetryDeadline = 10 * time.Second

// Executor runs the admission pipeline and submits entry orders. Workers
// for distinct symbols run in parallel; admission for a given symbol is
// serialized by a per-symbol mutex (spec §4.2 "Concurrency", §5) — not a
// global lock, since the throughput bound is the exchange, not the mutex.
type Executor struct {
	gateway    exchange.Gateway
	filters    *filtercache.Cache
	liveOrders LiveOrderView
	requestQ   *queue.Queue
	notifier   notify.Notifier
	snapshot   *config.Snapshot
	avail      models.AvailabilityTable

	symbolLocksMu sync.Mutex
	symbolLocks   map[string]*sync.Mutex
}

func New(gateway exchange.Gateway, filters *filtercache.Cache, liveOrders LiveOrderView, requestQ *queue.Queue, notifier notify.Notifier, snapshot *config.Snapshot, avail models.AvailabilityTable) *Executor {
	return &Executor{
		gateway:     gateway,
		filters:     filters,
		liveOrders:  liveOrders,
		requestQ:    requestQ,
		notifier:    notifier,
		snapshot:    snapshot,
		avail:       avail,
		symbolLocks: make(map[string]*sync.Mutex),
	}
}

func (e *Executor) lockFor(symbol string) *sync.Mutex {
	e.symbolLocksMu.Lock()
	defer e.symbolLocksMu.Unlock()
	m, ok := e.symbolLocks[symbol]
	if !ok {
		m = &sync.Mutex{}
		e.symbolLocks[symbol] = m
	}
	return m
}

// admissionContext carries one signal's evaluation state through the
// pipeline's ordered steps.
type admissionContext struct {
	ctx      context.Context
	cfg      *config.Config
	signal   models.TradingSignal
	account  models.Account
	quantity decimal.Decimal
}

type step func(e *Executor, a *admissionContext) *AdmissionError

// pipeline is the ordered, short-circuiting sequence of spec §4.2's
// admission steps 1-4 (sizing is folded into step 4; leverage, quantize and
// submit happen after admission passes, in Execute).
var pipeline = []step{
	stepSymbolAvailability,
	stepConcurrencyPolicy,
	stepPriceQuality,
	stepPositionSizing,
}

// Execute runs the full 8-step admission pipeline for signal and, if
// admitted, submits the entry order and registers it with the Watchdog.
func (e *Executor) Execute(ctx context.Context, signal models.TradingSignal) (*models.WatchedOrder, error) {
	if err := signal.Validate(); err != nil {
		return nil, err
	}

	mu := e.lockFor(signal.Symbol)
	mu.Lock()
	defer mu.Unlock()

	cfg := e.snapshot.Get()
	a := &admissionContext{ctx: ctx, cfg: cfg, signal: signal}

	for _, s := range pipeline {
		if aerr := s(e, a); aerr != nil {
			return nil, aerr
		}
	}

	// Step 5: leverage.
	if err := e.gateway.ChangeLeverage(ctx, signal.Symbol, cfg.Leverage); err != nil {
		return nil, fmt.Errorf("executor: change leverage: %w", err)
	}

	// Step 6: quantize prices.
	entryPrice, err := e.filters.QuantizePrice(ctx, signal.Symbol, signal.EntryPrice)
	if err != nil {
		return nil, fmt.Errorf("executor: quantize entry price: %w", err)
	}
	stopLoss, err := e.filters.QuantizePrice(ctx, signal.Symbol, signal.StopLoss)
	if err != nil {
		return nil, fmt.Errorf("executor: quantize stop loss: %w", err)
	}
	takeProfit, err := e.filters.QuantizePrice(ctx, signal.Symbol, signal.TakeProfit)
	if err != nil {
		return nil, fmt.Errorf("executor: quantize take profit: %w", err)
	}

	side := models.SideBuy
	positionSide := models.PositionSideLong
	if signal.Direction == models.DirectionShort {
		side = models.SideSell
		positionSide = models.PositionSideShort
	}
	if !cfg.HedgeMode {
		positionSide = models.PositionSideBoth
	}

	clientOrderID := uuid.NewString()

	// Step 7: submit entry order.
	result, err := e.gateway.PlaceOrder(ctx, models.PlaceOrderRequest{
		Symbol:        signal.Symbol,
		Side:          side,
		Type:          models.OrderTypeLimit,
		Quantity:      a.quantity,
		Price:         entryPrice,
		TimeInForce:   models.TimeInForceGTC,
		PositionSide:  positionSide,
		ClientOrderID: clientOrderID,
	})
	if err != nil {
		return nil, fmt.Errorf("exchange rejected entry order for %s: %w", signal.Symbol, err)
	}

	// Step 8: register with the Watchdog via the request channel.
	seed := models.WatchedOrderSeed{
		OrderID:       result.OrderID,
		Symbol:        signal.Symbol,
		Side:          side,
		PositionSide:  positionSide,
		Quantity:      a.quantity,
		Price:         entryPrice,
		SignalType:    signal.Direction,
		StopLoss:      stopLoss,
		TakeProfit:    takeProfit,
		ClientOrderID: clientOrderID,
	}

	if err := e.enqueueWithDeadline(seed); err != nil {
		// Orphan prevention (spec §4.2 item 8): attempt to cancel the
		// just-placed order and emit the gravest notifier alert.
		cancelErr := e.gateway.CancelOrder(ctx, signal.Symbol, result.OrderID)
		if cancelErr != nil {
			e.notify(fmt.Sprintf("CRITICAL: EnqueueFailedWithPlacedOrder for %s order %s, AND cancel failed: %v. Manual intervention required.",
				signal.Symbol, result.OrderID, cancelErr))
		} else {
			e.notify(fmt.Sprintf("EnqueueFailedWithPlacedOrder for %s order %s: cancelled the orphaned order.", signal.Symbol, result.OrderID))
		}
		return nil, &EnqueueFailedWithPlacedOrder{OrderID: result.OrderID, Cause: err}
	}

	watched := seed.ToWatchedOrder(time.Now().UTC())
	return watched, nil
}

func (e *Executor) enqueueWithDeadline(seed models.WatchedOrderSeed) error {
	deadline := time.Now().Add(enqueueRetryDeadline)
	var lastErr error
	for {
		if err := e.requestQ.Append(queue.ActionAddOrder, seed); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if time.Now().After(deadline) {
			return lastErr
		}
		time.Sleep(200 * time.Millisecond)
	}
}

func (e *Executor) notify(text string) {
	if err := e.notifier.Send(text); err != nil {
		// Notifier failure never blocks a trading decision (spec §7).
		_ = err
	}
}

// stepSymbolAvailability is admission step 1.
func stepSymbolAvailability(e *Executor, a *admissionContext) *AdmissionError {
	if blocked, reason := e.avail.Blocked(a.signal.Symbol); blocked {
		return symbolBlocked(reason)
	}
	return nil
}

// stepConcurrencyPolicy is admission step 2.
func stepConcurrencyPolicy(e *Executor, a *admissionContext) *AdmissionError {
	cfg := a.cfg
	count := 0

	account, err := e.gateway.AccountInfo(a.ctx)
	if err != nil {
		return &AdmissionError{Kind: "ExchangeUnavailable", Detail: err.Error()}
	}
	a.account = account
	for _, p := range account.Positions {
		if p.Symbol == a.signal.Symbol && p.IsOpen() {
			count++
		}
	}

	for _, w := range e.liveOrders.All() {
		if w.Symbol == a.signal.Symbol && !w.Status.Terminal() {
			count++
		}
	}

	if count >= cfg.MaxConcurrentOrders {
		return concurrencyLimitReached(fmt.Sprintf("%s has %d live positions/orders, cap is %d", a.signal.Symbol, count, cfg.MaxConcurrentOrders))
	}
	return nil
}

// stepPriceQuality is admission step 3.
func stepPriceQuality(e *Executor, a *admissionContext) *AdmissionError {
	var refs []decimal.Decimal
	for _, w := range e.liveOrders.All() {
		if w.Symbol == a.signal.Symbol && !w.Status.Terminal() && w.SignalType == a.signal.Direction {
			refs = append(refs, w.Price)
		}
	}
	for _, p := range a.account.Positions {
		if p.Symbol != a.signal.Symbol || !p.IsOpen() {
			continue
		}
		isLong := p.PositionAmt.IsPositive()
		if (isLong && a.signal.Direction == models.DirectionLong) || (!isLong && a.signal.Direction == models.DirectionShort) {
			refs = append(refs, p.EntryPrice)
		}
	}

	if len(refs) == 0 {
		return nil
	}

	switch a.signal.Direction {
	case models.DirectionLong:
		min := refs[0]
		for _, r := range refs[1:] {
			if r.LessThan(min) {
				min = r
			}
		}
		if !a.signal.EntryPrice.LessThan(min) {
			return priceQualityRejected(fmt.Sprintf("new LONG entry %s is not strictly better than existing min %s", a.signal.EntryPrice, min))
		}
	case models.DirectionShort:
		max := refs[0]
		for _, r := range refs[1:] {
			if r.GreaterThan(max) {
				max = r
			}
		}
		if !a.signal.EntryPrice.GreaterThan(max) {
			return priceQualityRejected(fmt.Sprintf("new SHORT entry %s is not strictly better than existing max %s", a.signal.EntryPrice, max))
		}
	}
	return nil
}

// stepPositionSizing is admission step 4.
func stepPositionSizing(e *Executor, a *admissionContext) *AdmissionError {
	cfg := a.cfg
	balance := a.account.AvailableBalance
	riskAmount := balance.Mul(decimal.NewFromFloat(cfg.RiskPercent)).Div(decimal.NewFromInt(100))
	qty := riskAmount.Mul(decimal.NewFromInt(int64(cfg.Leverage))).Div(a.signal.EntryPrice)

	quantizedQty, err := e.filters.QuantizeQty(a.ctx, a.signal.Symbol, qty)
	if err != nil {
		return &AdmissionError{Kind: "ExchangeUnavailable", Detail: err.Error()}
	}

	filters, err := e.filters.Get(a.ctx, a.signal.Symbol)
	if err != nil {
		return &AdmissionError{Kind: "ExchangeUnavailable", Detail: err.Error()}
	}

	notional := quantizedQty.Mul(a.signal.EntryPrice)
	if quantizedQty.IsZero() || notional.LessThan(filters.MinNotional) {
		return undersizedPosition(fmt.Sprintf("qty=%s notional=%s below min_notional=%s", quantizedQty, notional, filters.MinNotional))
	}

	a.quantity = quantizedQty
	return nil
}
