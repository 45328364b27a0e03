package decimalx

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestQuantizePrice(t *testing.T) {
	cases := []struct {
		price, tick, want string
	}{
		{"45000.0", "0.1", "45000.0"},
		{"45000.07", "0.1", "45000.1"},
		{"45000.04", "0.1", "45000.0"},
		{"117991.93", "0.1", "117991.9"},
	}
	for _, c := range cases {
		got := QuantizePrice(dec(c.price), dec(c.tick))
		if !got.Equal(dec(c.want)) {
			t.Errorf("QuantizePrice(%s, %s) = %s, want %s", c.price, c.tick, got, c.want)
		}
	}
}

func TestQuantizePriceIdempotent(t *testing.T) {
	// R1: quantize_price(quantize_price(x)) == quantize_price(x)
	x := dec("45000.0444")
	tick := dec("0.1")
	once := QuantizePrice(x, tick)
	twice := QuantizePrice(once, tick)
	if !once.Equal(twice) {
		t.Errorf("QuantizePrice not idempotent: once=%s twice=%s", once, twice)
	}
}

func TestQuantizeQty(t *testing.T) {
	// S1: qty = 20*10/45000 = 0.004444..., step 0.001 -> floor to 0.004
	qty := dec("20").Mul(dec("10")).Div(dec("45000"))
	got := QuantizeQty(qty, dec("0.001"))
	if !got.Equal(dec("0.004")) {
		t.Errorf("QuantizeQty = %s, want 0.004", got)
	}
}

func TestQuantizeQtyRoundsDown(t *testing.T) {
	got := QuantizeQty(dec("0.0089"), dec("0.001"))
	if !got.Equal(dec("0.008")) {
		t.Errorf("QuantizeQty = %s, want 0.008 (round down, never up)", got)
	}
}

func TestDivisibleBy(t *testing.T) {
	if !DivisibleBy(dec("45000.0"), dec("0.1")) {
		t.Errorf("expected 45000.0 divisible by 0.1")
	}
	if DivisibleBy(dec("45000.03"), dec("0.1")) {
		t.Errorf("expected 45000.03 not divisible by 0.1")
	}
}
