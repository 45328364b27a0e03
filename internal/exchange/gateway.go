// Package exchange wraps the futures exchange REST surface behind a typed
// Gateway interface, so the Executor, Watchdog and Recovery Coordinator
// never import the exchange SDK directly (spec §6.1).
package exchange

import (
	"context"

	"futures_orchestrator/internal/models"

	"github.com/shopspring/decimal"
)

// Gateway is the typed wrapper over exchange REST required by spec §6.1.
// Every method is bound only by the caller's context deadline; the Gateway
// adds no timeout of its own, so a call made with a context that has no
// deadline is not time-limited.
type Gateway interface {
	AccountInfo(ctx context.Context) (models.Account, error)
	OpenOrders(ctx context.Context, symbol string) ([]models.OpenOrder, error)
	PlaceOrder(ctx context.Context, req models.PlaceOrderRequest) (models.OrderResult, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	ChangeLeverage(ctx context.Context, symbol string, leverage int) error
	ExchangeInfo(ctx context.Context, symbol string) (models.SymbolFilters, error)
	OrderStatus(ctx context.Context, symbol, orderID string) (models.OrderStatusResult, error)
	MarkPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}
