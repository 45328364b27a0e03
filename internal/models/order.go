package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the order side of the entry order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// PositionSide distinguishes hedge-mode legs. BOTH is used in one-way mode.
type PositionSide string

const (
	PositionSideLong  PositionSide = "LONG"
	PositionSideShort PositionSide = "SHORT"
	PositionSideBoth  PositionSide = "BOTH"
)

// Status is a WatchedOrder's state-machine state (spec §4.4).
type Status string

const (
	StatusNew             Status = "NEW"
	StatusPartiallyFilled Status = "PARTIALLY_FILLED"
	StatusFilled          Status = "FILLED"
	StatusClosed          Status = "CLOSED"
	StatusCancelled       Status = "CANCELLED"
	StatusRejected        Status = "REJECTED"
)

// Terminal reports whether s is a terminal state; terminal WatchedOrders are
// removed from the live set.
func (s Status) Terminal() bool {
	switch s {
	case StatusClosed, StatusCancelled, StatusRejected:
		return true
	default:
		return false
	}
}

// WatchedOrderSeed is the payload carried by an add_order queue request,
// before the store promotes it into a full WatchedOrder. Separated from
// WatchedOrder because the producer does not yet know sl_order_id,
// tp_order_id or sl_tp_attempts at enqueue time.
type WatchedOrderSeed struct {
	OrderID      string          `json:"order_id"`
	Symbol       string          `json:"symbol"`
	Side         Side            `json:"side"`
	PositionSide PositionSide    `json:"position_side"`
	Quantity     decimal.Decimal `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	SignalType   Direction       `json:"signal_type"`
	StopLoss     decimal.Decimal `json:"stop_loss"`
	TakeProfit   decimal.Decimal `json:"take_profit"`
	ClientOrderID string         `json:"client_order_id,omitempty"`
}

// ToWatchedOrder promotes a seed into a new live WatchedOrder in state NEW.
func (w WatchedOrderSeed) ToWatchedOrder(now time.Time) *WatchedOrder {
	return &WatchedOrder{
		OrderID:      w.OrderID,
		Symbol:       w.Symbol,
		Side:         w.Side,
		PositionSide: w.PositionSide,
		Quantity:     w.Quantity,
		Price:        w.Price,
		Status:       StatusNew,
		SignalType:   w.SignalType,
		StopLoss:     w.StopLoss,
		TakeProfit:   w.TakeProfit,
		CreatedAt:    now,
		ClientOrderID: w.ClientOrderID,
	}
}

// WatchedOrder is the central persistent entity owned by the Watchdog once
// drained from the request channel (spec §3.3).
type WatchedOrder struct {
	OrderID           string          `json:"order_id"`
	Symbol            string          `json:"symbol"`
	Side              Side            `json:"side"`
	PositionSide      PositionSide    `json:"position_side"`
	Quantity          decimal.Decimal `json:"quantity"`
	Price             decimal.Decimal `json:"price"`
	Status            Status          `json:"status"`
	SignalType        Direction       `json:"signal_type"`
	StopLoss          decimal.Decimal `json:"stop_loss"`
	TakeProfit        decimal.Decimal `json:"take_profit"`
	SLOrderID         string          `json:"sl_order_id,omitempty"`
	TPOrderID         string          `json:"tp_order_id,omitempty"`
	EntryPriceFilled  *decimal.Decimal `json:"entry_price_filled,omitempty"`
	PositionSize      *decimal.Decimal `json:"position_size,omitempty"`
	TrailingTriggered bool            `json:"trailing_triggered"`
	TrailingReduced   bool            `json:"trailing_reduced,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	FilledAt          *time.Time      `json:"filled_at,omitempty"`
	SLTPAttempts      int             `json:"sl_tp_attempts"`
	ClientOrderID     string          `json:"client_order_id,omitempty"`
}

// HasBothExitLegs reports whether both SL and TP exit orders are recorded.
func (w *WatchedOrder) HasBothExitLegs() bool {
	return w.SLOrderID != "" && w.TPOrderID != ""
}

// ExitSide is the side of the protective exit legs: opposite of entry side.
func (w *WatchedOrder) ExitSide() Side {
	if w.Side == SideBuy {
		return SideSell
	}
	return SideBuy
}
