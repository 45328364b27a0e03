package models

import "github.com/shopspring/decimal"

// Account is the Gateway's account_info() response shape (spec §6.1).
type Account struct {
	AvailableBalance decimal.Decimal `json:"available_balance"`
	Positions        []Position      `json:"positions"`
}

// Position is one exchange-reported futures position.
type Position struct {
	Symbol           string          `json:"symbol"`
	PositionAmt      decimal.Decimal `json:"position_amt"`
	EntryPrice       decimal.Decimal `json:"entry_price"`
	UnrealizedProfit decimal.Decimal `json:"unrealized_profit"`
	PositionSide     PositionSide    `json:"position_side"`
}

// IsOpen reports whether the position carries nonzero size.
func (p Position) IsOpen() bool {
	return !p.PositionAmt.IsZero()
}

// OrderType is the exchange's order-type vocabulary (spec §6.1).
type OrderType string

const (
	OrderTypeLimit            OrderType = "LIMIT"
	OrderTypeMarket           OrderType = "MARKET"
	OrderTypeStopMarket       OrderType = "STOP_MARKET"
	OrderTypeTakeProfitMarket OrderType = "TAKE_PROFIT_MARKET"
)

// TimeInForce is the exchange's time-in-force vocabulary.
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "GTC"
	TimeInForceIOC TimeInForce = "IOC"
	TimeInForceFOK TimeInForce = "FOK"
)

// OrderStatus mirrors the exchange's order_status() response status values.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCanceled        OrderStatus = "CANCELED"
	OrderStatusRejected        OrderStatus = "REJECTED"
	OrderStatusExpired         OrderStatus = "EXPIRED"
)

// OpenOrder is one entry in the Gateway's open_orders() response.
type OpenOrder struct {
	OrderID       string          `json:"order_id"`
	ClientOrderID string          `json:"client_order_id"`
	Symbol        string          `json:"symbol"`
	Side          Side            `json:"side"`
	Type          OrderType       `json:"type"`
	Price         decimal.Decimal `json:"price"`
	StopPrice     decimal.Decimal `json:"stop_price"`
	OrigQty       decimal.Decimal `json:"orig_qty"`
	ExecutedQty   decimal.Decimal `json:"executed_qty"`
	Status        OrderStatus     `json:"status"`
	TimeInForce   TimeInForce     `json:"time_in_force"`
	ReduceOnly    bool            `json:"reduce_only"`
	PositionSide  PositionSide    `json:"position_side"`
}

// PlaceOrderRequest is the Gateway's place_order() argument set.
type PlaceOrderRequest struct {
	Symbol        string
	Side          Side
	Type          OrderType
	Quantity      decimal.Decimal
	Price         decimal.Decimal
	StopPrice     decimal.Decimal
	TimeInForce   TimeInForce
	ReduceOnly    bool
	PositionSide  PositionSide
	ClientOrderID string
}

// OrderResult is the Gateway's place_order() response shape.
type OrderResult struct {
	OrderID       string
	ClientOrderID string
}

// OrderStatusResult is the Gateway's order_status() response shape.
type OrderStatusResult struct {
	Status      OrderStatus
	ExecutedQty decimal.Decimal
	AvgPrice    decimal.Decimal
}
