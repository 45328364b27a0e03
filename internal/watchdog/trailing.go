package watchdog

import (
	"context"
	"fmt"
	"log"

	"futures_orchestrator/internal/config"
	"futures_orchestrator/internal/models"

	"github.com/shopspring/decimal"
)

// runTrailing implements the "80/80/50" trailing-stop procedure of spec
// §4.5. It is a one-shot latch: once TrailingTriggered is set, the order
// never re-evaluates the traveled fraction again.
//
// Steps 1-3 (market-reduce the position, cancel the old SL, compute the new
// stop price) are irreversible once the reduce order lands on the exchange,
// so their completion is recorded separately via TrailingReduced. A later
// failure in step 4 (submitting the replacement SL) or step 5 (replacing
// the TP leg) resumes from that checkpoint on the next call instead of
// re-submitting the reduce order.
func (c *Core) runTrailing(ctx context.Context, cfg *config.Config, w *models.WatchedOrder) {
	if w.TrailingTriggered || w.PositionSize == nil || w.EntryPriceFilled == nil {
		return
	}

	entry := *w.EntryPriceFilled
	distance := w.TakeProfit.Sub(entry).Abs()
	if distance.IsZero() {
		return
	}

	if !w.TrailingReduced {
		mark, err := c.gateway.MarkPrice(ctx, w.Symbol)
		if err != nil {
			log.Printf("watchdog: mark price fetch failed for %s: %v", w.Symbol, err)
			return
		}

		var traveled decimal.Decimal
		if w.Side == models.SideBuy {
			traveled = mark.Sub(entry)
		} else {
			traveled = entry.Sub(mark)
		}
		if traveled.IsNegative() {
			return
		}

		fraction := traveled.Div(distance)
		triggerFraction := decimal.NewFromFloat(cfg.TrailingTriggerFraction)
		if fraction.LessThan(triggerFraction) {
			return
		}

		size := *w.PositionSize
		closeFraction := decimal.NewFromFloat(cfg.TrailingCloseFraction)
		closeQty, err := c.filters.QuantizeQty(ctx, w.Symbol, size.Mul(closeFraction))
		if err != nil {
			log.Printf("watchdog: trailing quantize close qty failed for %s: %v", w.OrderID, err)
			return
		}

		remainingQty, err := c.filters.QuantizeQty(ctx, w.Symbol, size.Sub(closeQty))
		if err != nil {
			log.Printf("watchdog: trailing quantize remaining qty failed for %s: %v", w.OrderID, err)
			return
		}

		slFraction := decimal.NewFromFloat(cfg.TrailingSLFraction)
		var newSL decimal.Decimal
		if w.Side == models.SideBuy {
			newSL = entry.Add(distance.Mul(slFraction))
		} else {
			newSL = entry.Sub(distance.Mul(slFraction))
		}
		newSL, err = c.filters.QuantizePrice(ctx, w.Symbol, newSL)
		if err != nil {
			log.Printf("watchdog: trailing quantize new SL failed for %s: %v", w.OrderID, err)
			return
		}

		if closeQty.IsPositive() {
			_, err := c.gateway.PlaceOrder(ctx, models.PlaceOrderRequest{
				Symbol:       w.Symbol,
				Side:         w.ExitSide(),
				Type:         models.OrderTypeMarket,
				Quantity:     closeQty,
				ReduceOnly:   true,
				PositionSide: w.PositionSide,
			})
			if err != nil {
				log.Printf("watchdog: trailing market-reduce failed for %s: %v", w.OrderID, err)
				c.notify(fmt.Sprintf("Trailing stop reduce order failed for %s %s: %v", w.Symbol, w.OrderID, err))
				return
			}
		}

		// Steps 1-3 are done: the position is already reduced on the
		// exchange. Cancel the old SL and record the checkpoint so a retry
		// after this point never re-submits the reduce order.
		if w.SLOrderID != "" {
			_ = c.gateway.CancelOrder(ctx, w.Symbol, w.SLOrderID)
		}
		w.SLOrderID = ""
		w.StopLoss = newSL
		w.PositionSize = &remainingQty
		w.TrailingReduced = true
		c.persist(w)
	}

	remainingQty := *w.PositionSize

	// Step 4: submit the replacement SL. Bounded by MAX_SL_TP_ATTEMPTS, same
	// counter ensureExitLegs uses for initial exit-leg placement.
	if w.SLOrderID == "" {
		if w.SLTPAttempts >= cfg.MaxSLTPAttempts {
			return
		}
		slResult, err := c.gateway.PlaceOrder(ctx, models.PlaceOrderRequest{
			Symbol:       w.Symbol,
			Side:         w.ExitSide(),
			Type:         models.OrderTypeStopMarket,
			Quantity:     remainingQty,
			StopPrice:    w.StopLoss,
			TimeInForce:  models.TimeInForceGTC,
			ReduceOnly:   true,
			PositionSide: w.PositionSide,
		})
		if err != nil {
			w.SLTPAttempts++
			log.Printf("watchdog: trailing replacement SL placement failed for %s (attempt %d/%d): %v", w.OrderID, w.SLTPAttempts, cfg.MaxSLTPAttempts, err)
			c.notify(fmt.Sprintf("HIGH SEVERITY: %s order %s is protected only by TP, replacement SL placement failed (attempt %d/%d): %v",
				w.Symbol, w.OrderID, w.SLTPAttempts, cfg.MaxSLTPAttempts, err))
			if w.SLTPAttempts >= cfg.MaxSLTPAttempts {
				c.notify(fmt.Sprintf("FATAL: %s order %s has not placed a replacement trailing SL after %d attempts. Manual resolution required.",
					w.Symbol, w.OrderID, w.SLTPAttempts))
			}
			c.persist(w)
			return
		}
		w.SLOrderID = slResult.OrderID
	}

	// Step 5: replace the TP leg at the reduced quantity.
	if w.TPOrderID != "" {
		_ = c.gateway.CancelOrder(ctx, w.Symbol, w.TPOrderID)
	}
	tpResult, err := c.gateway.PlaceOrder(ctx, models.PlaceOrderRequest{
		Symbol:       w.Symbol,
		Side:         w.ExitSide(),
		Type:         models.OrderTypeTakeProfitMarket,
		Quantity:     remainingQty,
		StopPrice:    w.TakeProfit,
		ReduceOnly:   true,
		PositionSide: w.PositionSide,
	})
	if err != nil {
		log.Printf("watchdog: trailing replacement TP placement failed for %s: %v", w.OrderID, err)
		w.TPOrderID = ""
		c.persist(w)
		return
	}
	w.TPOrderID = tpResult.OrderID

	w.TrailingTriggered = true
	c.persist(w)
	c.notify(fmt.Sprintf("Trailing stop engaged for %s %s: closed to %s remaining, SL moved to %s", w.Symbol, w.OrderID, remainingQty, w.StopLoss))
}
