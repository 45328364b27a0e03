package models

import "github.com/shopspring/decimal"

// SymbolFilters carries the decimal quanta an exchange enforces for a given
// trading pair. Populated lazily by the filter cache and held process-wide
// for the process lifetime.
type SymbolFilters struct {
	Symbol        string          `json:"symbol"`
	TickSize      decimal.Decimal `json:"tick_size"`
	StepSize      decimal.Decimal `json:"step_size"`
	MinNotional   decimal.Decimal `json:"min_notional"`
	PriceDecimals int32           `json:"price_decimals"`
	QtyDecimals   int32           `json:"qty_decimals"`
}
