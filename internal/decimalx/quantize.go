// Package decimalx provides exact-decimal quantization helpers for the
// price/quantity boundary with the exchange. Float intermediaries are never
// used on this path.
package decimalx

import "github.com/shopspring/decimal"

// QuantizePrice rounds price to the nearest multiple of tick using half-up
// rounding (spec §4.1). If tick is zero or negative, price is returned
// unchanged.
func QuantizePrice(price, tick decimal.Decimal) decimal.Decimal {
	if tick.LessThanOrEqual(decimal.Zero) {
		return price
	}
	quotient := price.DivRound(tick, 16)
	rounded := quotient.Round(0)
	return rounded.Mul(tick)
}

// QuantizeQty rounds qty down toward zero to a multiple of step (spec
// §4.1). If step is zero or negative, qty is returned unchanged.
func QuantizeQty(qty, step decimal.Decimal) decimal.Decimal {
	if step.LessThanOrEqual(decimal.Zero) {
		return qty
	}
	quotient := qty.Div(step).Truncate(0)
	return quotient.Mul(step)
}

// DivisibleBy reports whether value is exactly divisible by quantum (I4):
// every price/quantity field in an outbound order must satisfy this for its
// symbol's tick_size/step_size.
func DivisibleBy(value, quantum decimal.Decimal) bool {
	if quantum.LessThanOrEqual(decimal.Zero) {
		return true
	}
	remainder := value.Mod(quantum)
	return remainder.IsZero()
}
