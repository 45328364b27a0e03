package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Direction is the strategic side of a TradingSignal or WatchedOrder.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// TradingSignal is the transient input consumed once by the Executor. It is
// never persisted.
type TradingSignal struct {
	Symbol     string          `json:"symbol"`
	Direction  Direction       `json:"direction"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	StopLoss   decimal.Decimal `json:"stop_loss"`
	TakeProfit decimal.Decimal `json:"take_profit"`
	Confidence float64         `json:"confidence"`
	SignalID   string          `json:"signal_id,omitempty"`
	Source     string          `json:"source,omitempty"`
}

// Validate checks the ordering invariant between entry, stop loss and take
// profit for the signal's direction.
func (s TradingSignal) Validate() error {
	switch s.Direction {
	case DirectionLong:
		if !(s.StopLoss.LessThan(s.EntryPrice) && s.EntryPrice.LessThan(s.TakeProfit)) {
			return fmt.Errorf("models: LONG signal for %s requires stop_loss < entry_price < take_profit", s.Symbol)
		}
	case DirectionShort:
		if !(s.TakeProfit.LessThan(s.EntryPrice) && s.EntryPrice.LessThan(s.StopLoss)) {
			return fmt.Errorf("models: SHORT signal for %s requires take_profit < entry_price < stop_loss", s.Symbol)
		}
	default:
		return fmt.Errorf("models: unknown signal direction %q", s.Direction)
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("models: confidence %.4f out of [0,1]", s.Confidence)
	}
	return nil
}
