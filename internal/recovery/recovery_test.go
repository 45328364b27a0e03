package recovery

import (
	"context"
	"testing"

	"futures_orchestrator/internal/models"

	"github.com/shopspring/decimal"
)

type fakeLiveView struct {
	orders []*models.WatchedOrder
}

func (f *fakeLiveView) All() []*models.WatchedOrder { return f.orders }

type fakeGateway struct {
	account    models.Account
	openOrders []models.OpenOrder
}

func (f *fakeGateway) AccountInfo(ctx context.Context) (models.Account, error) { return f.account, nil }
func (f *fakeGateway) OpenOrders(ctx context.Context, symbol string) ([]models.OpenOrder, error) {
	return f.openOrders, nil
}
func (f *fakeGateway) PlaceOrder(ctx context.Context, req models.PlaceOrderRequest) (models.OrderResult, error) {
	return models.OrderResult{}, nil
}
func (f *fakeGateway) CancelOrder(ctx context.Context, symbol, orderID string) error { return nil }
func (f *fakeGateway) ChangeLeverage(ctx context.Context, symbol string, leverage int) error {
	return nil
}
func (f *fakeGateway) ExchangeInfo(ctx context.Context, symbol string) (models.SymbolFilters, error) {
	return models.SymbolFilters{}, nil
}
func (f *fakeGateway) OrderStatus(ctx context.Context, symbol, orderID string) (models.OrderStatusResult, error) {
	return models.OrderStatusResult{Status: models.OrderStatusCanceled}, nil
}
func (f *fakeGateway) MarkPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func TestReconcileBlocksSymbolsWithPositionsOrWatchedOrders(t *testing.T) {
	live := &fakeLiveView{orders: []*models.WatchedOrder{
		{OrderID: "W1", Symbol: "ETHUSDT", Status: models.StatusNew},
	}}
	gw := &fakeGateway{
		account: models.Account{Positions: []models.Position{
			{Symbol: "BTCUSDT", PositionAmt: decimal.RequireFromString("0.5")},
		}},
	}

	table, report, err := Reconcile(context.Background(), live, gw)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	if blocked, _ := table.Blocked("BTCUSDT"); !blocked {
		t.Errorf("expected BTCUSDT blocked due to open position")
	}
	if blocked, _ := table.Blocked("ETHUSDT"); !blocked {
		t.Errorf("expected ETHUSDT blocked due to live WatchedOrder")
	}
	if blocked, _ := table.Blocked("SOLUSDT"); blocked {
		t.Errorf("expected SOLUSDT available")
	}
	if len(report.WatchedSymbols) != 1 || report.WatchedSymbols[0] != "ETHUSDT" {
		t.Errorf("expected watched symbols [ETHUSDT], got %v", report.WatchedSymbols)
	}
}

func TestReconcileFlagsOrphanExitLegs(t *testing.T) {
	live := &fakeLiveView{}
	gw := &fakeGateway{
		openOrders: []models.OpenOrder{
			{OrderID: "X1", Symbol: "DOGEUSDT"},
		},
	}

	table, report, err := Reconcile(context.Background(), live, gw)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	if blocked, _ := table.Blocked("DOGEUSDT"); blocked {
		t.Errorf("an orphan exit leg alone should not block the symbol")
	}
	found := false
	for _, d := range report.Discrepancies {
		if d.Kind == "orphan_exit_leg" && d.Symbol == "DOGEUSDT" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an orphan_exit_leg discrepancy for DOGEUSDT, got %v", report.Discrepancies)
	}
}

func TestReconcileFlagsMissingWatchedOrder(t *testing.T) {
	live := &fakeLiveView{orders: []*models.WatchedOrder{
		{OrderID: "W9", Symbol: "BTCUSDT", Status: models.StatusFilled},
	}}
	gw := &fakeGateway{}

	_, report, err := Reconcile(context.Background(), live, gw)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	found := false
	for _, d := range report.Discrepancies {
		if d.Kind == "missing_order" && d.Symbol == "BTCUSDT" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a missing_order discrepancy for BTCUSDT, got %v", report.Discrepancies)
	}
}
