// Package watchdog implements the Watchdog Core Loop (spec §4.4): the
// durable single-writer state machine that polls the exchange, places
// protective exit legs, runs the trailing procedure, and persists the
// store after every mutation.
package watchdog

import (
	"context"
	"fmt"
	"log"
	"time"

	"futures_orchestrator/internal/config"
	"futures_orchestrator/internal/exchange"
	"futures_orchestrator/internal/filtercache"
	"futures_orchestrator/internal/models"
	"futures_orchestrator/internal/notify"
	"futures_orchestrator/internal/queue"
	"futures_orchestrator/internal/store"
)

// Core owns the Watchdog State Store and drives it through the state
// machine of spec §4.4. All state mutations happen on the loop goroutine
// only (spec §5); the store is not shared with other writers.
type Core struct {
	store    *store.Store
	gateway  exchange.Gateway
	filters  *filtercache.Cache
	queue    *queue.Queue
	notifier notify.Notifier
	snapshot *config.Snapshot
}

func New(st *store.Store, gateway exchange.Gateway, filters *filtercache.Cache, q *queue.Queue, notifier notify.Notifier, snapshot *config.Snapshot) *Core {
	return &Core{store: st, gateway: gateway, filters: filters, queue: q, notifier: notifier, snapshot: snapshot}
}

func (c *Core) notify(text string) {
	if err := c.notifier.Send(text); err != nil {
		log.Printf("watchdog: notifier send failed: %v", err)
	}
}

// DrainRequests implements the consumer side of spec §4.3: read the request
// channel and commit each item into the live store. A poison message is
// logged and dropped rather than halting the rest of the batch.
func (c *Core) DrainRequests(ctx context.Context) error {
	requests, err := c.queue.Drain()
	if err != nil {
		return fmt.Errorf("watchdog: drain request channel: %w", err)
	}
	for _, req := range requests {
		if err := c.applyRequest(req); err != nil {
			log.Printf("watchdog: request %s failed, dropping from queue: %v", req.Action, err)
			c.notify(fmt.Sprintf("Watchdog request %s failed and was dropped: %v", req.Action, err))
		}
	}
	return nil
}

func (c *Core) applyRequest(req queue.Request) error {
	switch req.Action {
	case queue.ActionAddOrder:
		var seed models.WatchedOrderSeed
		if err := unmarshalData(req.Data, &seed); err != nil {
			return err
		}
		w := seed.ToWatchedOrder(req.Timestamp)
		if err := c.store.Register(w); err != nil {
			if err == store.ErrDuplicateOrder {
				// R3: delivering add_order twice yields one WatchedOrder.
				return nil
			}
			return err
		}
		return nil
	case queue.ActionRemoveOrder:
		var payload struct {
			OrderID string `json:"order_id"`
		}
		if err := unmarshalData(req.Data, &payload); err != nil {
			return err
		}
		return c.store.Remove(payload.OrderID)
	case queue.ActionManualClose:
		var payload struct {
			OrderID string `json:"order_id"`
		}
		if err := unmarshalData(req.Data, &payload); err != nil {
			return err
		}
		w, ok := c.store.Get(payload.OrderID)
		if !ok {
			return fmt.Errorf("manual_close: unknown order_id %q", payload.OrderID)
		}
		return c.closePosition(context.Background(), w, "manual close requested")
	default:
		return fmt.Errorf("unknown action %q", req.Action)
	}
}

// Poll runs one full pass over the live set (spec §4.4 "Polling
// procedure"). Persistence happens inside the per-order mutation helpers
// after every mutation, not in a batch at the end.
func (c *Core) Poll(ctx context.Context) {
	cfg := c.snapshot.Get()
	for _, w := range c.store.All() {
		c.pollOne(ctx, cfg, w)
	}
}

func (c *Core) pollOne(ctx context.Context, cfg *config.Config, w *models.WatchedOrder) {
	switch w.Status {
	case models.StatusNew, models.StatusPartiallyFilled:
		c.pollEntry(ctx, cfg, w)
	case models.StatusFilled:
		c.pollFilled(ctx, cfg, w)
	}
}

// pollEntry handles the NEW/PARTIALLY_FILLED branches of the state machine
// (spec §4.4 transitions).
func (c *Core) pollEntry(ctx context.Context, cfg *config.Config, w *models.WatchedOrder) {
	result, err := c.gateway.OrderStatus(ctx, w.Symbol, w.OrderID)
	if err != nil {
		log.Printf("watchdog: OrderStatus(%s,%s) failed: %v", w.Symbol, w.OrderID, err)
		return
	}

	switch result.Status {
	case models.OrderStatusNew:
		return // NEW -> NEW, no change.
	case models.OrderStatusPartiallyFilled:
		if w.Status != models.StatusPartiallyFilled {
			w.Status = models.StatusPartiallyFilled
			c.persist(w)
		}
	case models.OrderStatusFilled:
		now := time.Now().UTC()
		w.Status = models.StatusFilled
		avg := result.AvgPrice
		w.EntryPriceFilled = &avg
		size := result.ExecutedQty
		w.PositionSize = &size
		w.FilledAt = &now
		c.persist(w)
		c.ensureExitLegs(ctx, cfg, w)
	case models.OrderStatusCanceled, models.OrderStatusExpired:
		w.Status = models.StatusCancelled
		c.remove(w)
	case models.OrderStatusRejected:
		w.Status = models.StatusRejected
		c.remove(w)
	}
}

// pollFilled handles a FILLED WatchedOrder: ensure exit legs, run the
// trailing check, and detect external closes (spec §4.4 items 3-5).
func (c *Core) pollFilled(ctx context.Context, cfg *config.Config, w *models.WatchedOrder) {
	if w.TrailingReduced && !w.TrailingTriggered {
		// The trailing procedure already reduced the position and cancelled
		// the old SL on a prior tick; resume it directly rather than
		// routing the missing SL through the generic exit-leg placement,
		// which knows nothing about the trailing checkpoint and would
		// leave the position permanently unprotected.
		c.runTrailing(ctx, cfg, w)
		return
	}
	if !w.HasBothExitLegs() {
		c.ensureExitLegs(ctx, cfg, w)
	}
	if w.HasBothExitLegs() {
		c.checkOCO(ctx, w)
		if w.Status != models.StatusFilled {
			return
		}
		c.runTrailing(ctx, cfg, w)
	}
	if w.Status == models.StatusFilled {
		c.detectExternalClose(ctx, w)
	}
}

// ensureExitLegs implements spec §4.4 item 3: place missing SL/TP legs,
// bounded by MAX_SL_TP_ATTEMPTS. Once the bound is reached the order stays
// FILLED with no further placement attempts.
func (c *Core) ensureExitLegs(ctx context.Context, cfg *config.Config, w *models.WatchedOrder) {
	if w.PositionSize == nil || w.SLTPAttempts >= cfg.MaxSLTPAttempts {
		return
	}
	placedAny := false

	if w.SLOrderID == "" {
		slPrice, err := c.filters.QuantizePrice(ctx, w.Symbol, w.StopLoss)
		if err == nil {
			result, err := c.gateway.PlaceOrder(ctx, models.PlaceOrderRequest{
				Symbol:       w.Symbol,
				Side:         w.ExitSide(),
				Type:         models.OrderTypeStopMarket,
				Quantity:     *w.PositionSize,
				StopPrice:    slPrice,
				TimeInForce:  models.TimeInForceGTC,
				ReduceOnly:   true,
				PositionSide: w.PositionSide,
			})
			if err == nil {
				w.SLOrderID = result.OrderID
				placedAny = true
			} else {
				log.Printf("watchdog: SL placement failed for %s: %v", w.OrderID, err)
			}
		}
	}

	if w.TPOrderID == "" {
		tpPrice, err := c.filters.QuantizePrice(ctx, w.Symbol, w.TakeProfit)
		if err == nil {
			result, err := c.gateway.PlaceOrder(ctx, models.PlaceOrderRequest{
				Symbol:       w.Symbol,
				Side:         w.ExitSide(),
				Type:         models.OrderTypeTakeProfitMarket,
				Quantity:     *w.PositionSize,
				StopPrice:    tpPrice,
				ReduceOnly:   true,
				PositionSide: w.PositionSide,
			})
			if err == nil {
				w.TPOrderID = result.OrderID
				placedAny = true
			} else {
				log.Printf("watchdog: TP placement failed for %s: %v", w.OrderID, err)
			}
		}
	}

	if !w.HasBothExitLegs() {
		w.SLTPAttempts++
		if w.SLTPAttempts >= cfg.MaxSLTPAttempts {
			c.notify(fmt.Sprintf("FATAL: %s order %s has not placed both exit legs after %d attempts. Manual resolution required.",
				w.Symbol, w.OrderID, w.SLTPAttempts))
		}
	}

	if placedAny || w.SLTPAttempts > 0 {
		c.persist(w)
	}
}

// checkOCO implements the simulated OCO semantics of spec §4.4: upon
// observing one exit leg filled, cancel the other.
func (c *Core) checkOCO(ctx context.Context, w *models.WatchedOrder) {
	slResult, slErr := c.gateway.OrderStatus(ctx, w.Symbol, w.SLOrderID)
	tpResult, tpErr := c.gateway.OrderStatus(ctx, w.Symbol, w.TPOrderID)

	slFilled := slErr == nil && slResult.Status == models.OrderStatusFilled
	tpFilled := tpErr == nil && tpResult.Status == models.OrderStatusFilled

	if slFilled {
		// Surviving cancel of an already-filled/cancelled TP is a no-op.
		_ = c.gateway.CancelOrder(ctx, w.Symbol, w.TPOrderID)
	}
	if tpFilled {
		_ = c.gateway.CancelOrder(ctx, w.Symbol, w.SLOrderID)
	}
	if slFilled || tpFilled {
		w.Status = models.StatusClosed
		c.remove(w)
	}
}

// detectExternalClose implements spec §4.4 item 5.
func (c *Core) detectExternalClose(ctx context.Context, w *models.WatchedOrder) {
	account, err := c.gateway.AccountInfo(ctx)
	if err != nil {
		return
	}
	for _, p := range account.Positions {
		if p.Symbol == w.Symbol && p.IsOpen() {
			return // Position still open; nothing to detect.
		}
	}

	// Position is flat and neither leg showed as filled via checkOCO — an
	// external close.
	if w.SLOrderID != "" {
		_ = c.gateway.CancelOrder(ctx, w.Symbol, w.SLOrderID)
	}
	if w.TPOrderID != "" {
		_ = c.gateway.CancelOrder(ctx, w.Symbol, w.TPOrderID)
	}
	w.Status = models.StatusClosed
	c.remove(w)
	c.notify(fmt.Sprintf("External close detected for %s", w.Symbol))
}

func (c *Core) closePosition(ctx context.Context, w *models.WatchedOrder, reason string) error {
	if w.SLOrderID != "" {
		_ = c.gateway.CancelOrder(ctx, w.Symbol, w.SLOrderID)
	}
	if w.TPOrderID != "" {
		_ = c.gateway.CancelOrder(ctx, w.Symbol, w.TPOrderID)
	}
	if w.PositionSize != nil {
		_, err := c.gateway.PlaceOrder(ctx, models.PlaceOrderRequest{
			Symbol:       w.Symbol,
			Side:         w.ExitSide(),
			Type:         models.OrderTypeMarket,
			Quantity:     *w.PositionSize,
			ReduceOnly:   true,
			PositionSide: w.PositionSide,
		})
		if err != nil {
			return fmt.Errorf("close position: %w", err)
		}
	}
	w.Status = models.StatusClosed
	c.remove(w)
	c.notify(fmt.Sprintf("Position closed for %s: %s", w.Symbol, reason))
	return nil
}

func (c *Core) persist(w *models.WatchedOrder) {
	if err := c.store.Update(w); err != nil {
		log.Printf("watchdog: persist failed for %s: %v", w.OrderID, err)
	}
}

func (c *Core) remove(w *models.WatchedOrder) {
	if err := c.store.Remove(w.OrderID); err != nil {
		log.Printf("watchdog: remove failed for %s: %v", w.OrderID, err)
	}
}
