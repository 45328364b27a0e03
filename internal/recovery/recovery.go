// Package recovery implements the Recovery Coordinator (spec §4.6): startup
// reconciliation of persisted Watchdog state against authoritative exchange
// state, producing a Symbol Availability Table and an observability report.
package recovery

import (
	"context"
	"fmt"

	"futures_orchestrator/internal/exchange"
	"futures_orchestrator/internal/models"
)

// LiveOrderView is the subset of the Watchdog State Store Reconcile needs.
type LiveOrderView interface {
	All() []*models.WatchedOrder
}

// Reconcile computes the Symbol Availability Table and a ReconciliationReport
// from the persisted live set and the exchange's authoritative positions and
// open orders (spec §4.6 items 1-6). It never mutates either input; the
// report is observability only.
func Reconcile(ctx context.Context, live LiveOrderView, gateway exchange.Gateway) (models.AvailabilityTable, models.ReconciliationReport, error) {
	watchedOrders := live.All()

	account, err := gateway.AccountInfo(ctx)
	if err != nil {
		return nil, models.ReconciliationReport{}, fmt.Errorf("recovery: account_info: %w", err)
	}

	watched := make(map[string]bool)
	byOrderID := make(map[string]*models.WatchedOrder)
	liveOrderCount := make(map[string]int)
	for _, w := range watchedOrders {
		watched[w.Symbol] = true
		byOrderID[w.OrderID] = w
		liveOrderCount[w.Symbol]++
	}

	positions := make(map[string]bool)
	positionSize := make(map[string]string)
	for _, p := range account.Positions {
		if p.IsOpen() {
			positions[p.Symbol] = true
			positionSize[p.Symbol] = p.PositionAmt.String()
		}
	}

	openOrders, err := gateway.OpenOrders(ctx, "")
	if err != nil {
		return nil, models.ReconciliationReport{}, fmt.Errorf("recovery: open_orders: %w", err)
	}

	openOrderIDs := make(map[string]bool)
	orphans := make(map[string]bool)
	for _, o := range openOrders {
		openOrderIDs[o.OrderID] = true
		if !watched[o.Symbol] {
			orphans[o.Symbol] = true
		}
	}

	var discrepancies []models.Discrepancy
	for _, w := range watchedOrders {
		if !openOrderIDs[w.OrderID] && !w.Status.Terminal() {
			status, statusErr := gateway.OrderStatus(ctx, w.Symbol, w.OrderID)
			detail := "order not found open on exchange"
			if statusErr == nil {
				detail = fmt.Sprintf("not open on exchange; last known status %s", status.Status)
			}
			discrepancies = append(discrepancies, models.Discrepancy{
				Symbol: w.Symbol,
				Kind:   "missing_order",
				Detail: detail,
			})
		}
	}
	for symbol := range orphans {
		discrepancies = append(discrepancies, models.Discrepancy{
			Symbol: symbol,
			Kind:   "orphan_exit_leg",
			Detail: "open exchange order(s) with no corresponding WatchedOrder; not auto-adopted",
		})
	}

	table := make(models.AvailabilityTable)
	symbolSet := make(map[string]bool)
	for s := range watched {
		symbolSet[s] = true
	}
	for s := range positions {
		symbolSet[s] = true
	}
	for symbol := range symbolSet {
		switch {
		case positions[symbol] && watched[symbol]:
			table[symbol] = models.Availability{Blocked: true, Reason: "open position and live WatchedOrder"}
		case positions[symbol]:
			table[symbol] = models.Availability{Blocked: true, Reason: "open position"}
		case watched[symbol]:
			table[symbol] = models.Availability{Blocked: true, Reason: "live WatchedOrder"}
		}
	}

	var watchedSymbols, positionSymbols, orphanSymbols []string
	for s := range watched {
		watchedSymbols = append(watchedSymbols, s)
	}
	for s := range positions {
		positionSymbols = append(positionSymbols, s)
	}
	for s := range orphans {
		orphanSymbols = append(orphanSymbols, s)
	}

	var summaries []models.SymbolSummary
	for symbol := range symbolSet {
		summaries = append(summaries, models.SymbolSummary{
			Symbol:         symbol,
			PositionSize:   positionSize[symbol],
			LiveOrderCount: liveOrderCount[symbol],
		})
	}

	report := models.ReconciliationReport{
		WatchedSymbols:  watchedSymbols,
		PositionSymbols: positionSymbols,
		OrphanSymbols:   orphanSymbols,
		Discrepancies:   discrepancies,
		Summaries:       summaries,
	}

	return table, report, nil
}
