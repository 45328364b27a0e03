// Package filtercache implements the Symbol Filter Cache (spec §4.1): a
// process-lifetime, in-memory cache of per-symbol decimal quanta, and the
// quantization operations that depend on it.
package filtercache

import (
	"context"
	"sync"

	"futures_orchestrator/internal/decimalx"
	"futures_orchestrator/internal/exchange"
	"futures_orchestrator/internal/models"

	"github.com/shopspring/decimal"
)

// Cache is per-process, in-memory only; there is no cross-process sharing
// (spec §5).
type Cache struct {
	gateway exchange.Gateway
	mu      sync.RWMutex
	filters map[string]models.SymbolFilters
}

func New(gateway exchange.Gateway) *Cache {
	return &Cache{
		gateway: gateway,
		filters: make(map[string]models.SymbolFilters),
	}
}

// Get returns cached filters for symbol; on miss it fetches the exchange's
// symbol metadata and populates the cache.
func (c *Cache) Get(ctx context.Context, symbol string) (models.SymbolFilters, error) {
	c.mu.RLock()
	f, ok := c.filters[symbol]
	c.mu.RUnlock()
	if ok {
		return f, nil
	}

	fetched, err := c.gateway.ExchangeInfo(ctx, symbol)
	if err != nil {
		return models.SymbolFilters{}, err
	}

	c.mu.Lock()
	c.filters[symbol] = fetched
	c.mu.Unlock()
	return fetched, nil
}

// Invalidate drops a symbol's cached filters, forcing the next Get to
// re-fetch. No caller in this module invokes it: an order rejected for a
// precision error does not by itself refresh the cached filters.
func (c *Cache) Invalidate(symbol string) {
	c.mu.Lock()
	delete(c.filters, symbol)
	c.mu.Unlock()
}

// QuantizePrice rounds price to symbol's tick_size (half-up).
func (c *Cache) QuantizePrice(ctx context.Context, symbol string, price decimal.Decimal) (decimal.Decimal, error) {
	f, err := c.Get(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return decimalx.QuantizePrice(price, f.TickSize), nil
}

// QuantizeQty rounds qty down to symbol's step_size.
func (c *Cache) QuantizeQty(ctx context.Context, symbol string, qty decimal.Decimal) (decimal.Decimal, error) {
	f, err := c.Get(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return decimalx.QuantizeQty(qty, f.StepSize), nil
}
