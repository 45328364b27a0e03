package filtercache

import (
	"context"
	"testing"

	"futures_orchestrator/internal/models"

	"github.com/shopspring/decimal"
)

type fakeGateway struct {
	models.Account
	infoCalls int
	filters   models.SymbolFilters
	err       error
}

func (f *fakeGateway) AccountInfo(ctx context.Context) (models.Account, error) { return f.Account, nil }
func (f *fakeGateway) OpenOrders(ctx context.Context, symbol string) ([]models.OpenOrder, error) {
	return nil, nil
}
func (f *fakeGateway) PlaceOrder(ctx context.Context, req models.PlaceOrderRequest) (models.OrderResult, error) {
	return models.OrderResult{}, nil
}
func (f *fakeGateway) CancelOrder(ctx context.Context, symbol, orderID string) error { return nil }
func (f *fakeGateway) ChangeLeverage(ctx context.Context, symbol string, leverage int) error {
	return nil
}
func (f *fakeGateway) ExchangeInfo(ctx context.Context, symbol string) (models.SymbolFilters, error) {
	f.infoCalls++
	if f.err != nil {
		return models.SymbolFilters{}, f.err
	}
	return f.filters, nil
}
func (f *fakeGateway) OrderStatus(ctx context.Context, symbol, orderID string) (models.OrderStatusResult, error) {
	return models.OrderStatusResult{}, nil
}
func (f *fakeGateway) MarkPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func TestCacheFetchesOnceThenCaches(t *testing.T) {
	gw := &fakeGateway{filters: models.SymbolFilters{
		Symbol:   "BTCUSDT",
		TickSize: decimal.RequireFromString("0.1"),
		StepSize: decimal.RequireFromString("0.001"),
	}}
	c := New(gw)

	for i := 0; i < 3; i++ {
		f, err := c.Get(context.Background(), "BTCUSDT")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if !f.TickSize.Equal(decimal.RequireFromString("0.1")) {
			t.Errorf("unexpected tick size %s", f.TickSize)
		}
	}
	if gw.infoCalls != 1 {
		t.Errorf("expected exactly 1 ExchangeInfo call, got %d", gw.infoCalls)
	}
}

func TestCacheInvalidateForcesRefetch(t *testing.T) {
	gw := &fakeGateway{filters: models.SymbolFilters{Symbol: "ETHUSDT"}}
	c := New(gw)

	c.Get(context.Background(), "ETHUSDT")
	c.Invalidate("ETHUSDT")
	c.Get(context.Background(), "ETHUSDT")

	if gw.infoCalls != 2 {
		t.Errorf("expected 2 ExchangeInfo calls after invalidate, got %d", gw.infoCalls)
	}
}

func TestQuantizePriceAndQty(t *testing.T) {
	gw := &fakeGateway{filters: models.SymbolFilters{
		Symbol:   "BTCUSDT",
		TickSize: decimal.RequireFromString("0.1"),
		StepSize: decimal.RequireFromString("0.001"),
	}}
	c := New(gw)

	price, err := c.QuantizePrice(context.Background(), "BTCUSDT", decimal.RequireFromString("45000.07"))
	if err != nil {
		t.Fatalf("QuantizePrice: %v", err)
	}
	if !price.Equal(decimal.RequireFromString("45000.1")) {
		t.Errorf("QuantizePrice = %s, want 45000.1", price)
	}

	qty, err := c.QuantizeQty(context.Background(), "BTCUSDT", decimal.RequireFromString("0.0089"))
	if err != nil {
		t.Fatalf("QuantizeQty: %v", err)
	}
	if !qty.Equal(decimal.RequireFromString("0.008")) {
		t.Errorf("QuantizeQty = %s, want 0.008", qty)
	}
}
