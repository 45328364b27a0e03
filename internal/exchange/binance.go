package exchange

import (
	"context"
	"fmt"
	"strconv"

	"futures_orchestrator/internal/models"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// binanceGateway adapts github.com/adshao/go-binance/v2/futures to the
// Gateway interface. Every outbound call acquires a token from the rate
// limiter before hitting the wire, and retryable failures go through
// withRetry.
type binanceGateway struct {
	client  *futures.Client
	limiter *rate.Limiter
}

// NewBinanceGateway constructs a Gateway backed by Binance USDⓈ-M Futures.
// weightPerMinute is the documented REST weight budget for the account tier
// (default 2400, Binance's standard futures limit); the limiter holds
// safetyMargin (e.g. 0.5) below it.
func NewBinanceGateway(apiKey, apiSecret string, testnet bool, weightPerMinute int, safetyMargin float64) Gateway {
	futures.UseTestnet = testnet
	client := futures.NewClient(apiKey, apiSecret)
	return &binanceGateway{
		client:  client,
		limiter: newLimiter(weightPerMinute, safetyMargin),
	}
}

func (g *binanceGateway) wait(ctx context.Context) error {
	return g.limiter.Wait(ctx)
}

func (g *binanceGateway) AccountInfo(ctx context.Context) (models.Account, error) {
	if err := g.wait(ctx); err != nil {
		return models.Account{}, err
	}
	var acct models.Account
	err := withRetry(ctx, "AccountInfo", func() error {
		res, err := g.client.NewGetAccountService().Do(ctx)
		if err != nil {
			return classifyError(err)
		}
		for _, a := range res.Assets {
			if a.Asset != "USDT" {
				continue
			}
			bal, _ := decimal.NewFromString(a.AvailableBalance)
			acct.AvailableBalance = bal
		}
		for _, p := range res.Positions {
			amt, _ := decimal.NewFromString(p.PositionAmt)
			if amt.IsZero() {
				continue
			}
			entry, _ := decimal.NewFromString(p.EntryPrice)
			upnl, _ := decimal.NewFromString(p.UnrealizedProfit)
			acct.Positions = append(acct.Positions, models.Position{
				Symbol:           p.Symbol,
				PositionAmt:      amt,
				EntryPrice:       entry,
				UnrealizedProfit: upnl,
				PositionSide:     models.PositionSide(p.PositionSide),
			})
		}
		return nil
	})
	return acct, err
}

func (g *binanceGateway) OpenOrders(ctx context.Context, symbol string) ([]models.OpenOrder, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	var out []models.OpenOrder
	err := withRetry(ctx, "OpenOrders", func() error {
		svc := g.client.NewListOpenOrdersService()
		if symbol != "" {
			svc = svc.Symbol(symbol)
		}
		res, err := svc.Do(ctx)
		if err != nil {
			return classifyError(err)
		}
		for _, o := range res {
			price, _ := decimal.NewFromString(o.Price)
			stopPrice, _ := decimal.NewFromString(o.StopPrice)
			origQty, _ := decimal.NewFromString(o.OrigQuantity)
			execQty, _ := decimal.NewFromString(o.ExecutedQuantity)
			out = append(out, models.OpenOrder{
				OrderID:       strconv.FormatInt(o.OrderID, 10),
				ClientOrderID: o.ClientOrderID,
				Symbol:        o.Symbol,
				Side:          models.Side(o.Side),
				Type:          models.OrderType(o.Type),
				Price:         price,
				StopPrice:     stopPrice,
				OrigQty:       origQty,
				ExecutedQty:   execQty,
				Status:        models.OrderStatus(o.Status),
				TimeInForce:   models.TimeInForce(o.TimeInForce),
				ReduceOnly:    o.ReduceOnly,
				PositionSide:  models.PositionSide(o.PositionSide),
			})
		}
		return nil
	})
	return out, err
}

func (g *binanceGateway) PlaceOrder(ctx context.Context, req models.PlaceOrderRequest) (models.OrderResult, error) {
	if err := g.wait(ctx); err != nil {
		return models.OrderResult{}, err
	}
	var result models.OrderResult
	err := withRetry(ctx, fmt.Sprintf("PlaceOrder(%s)", req.Symbol), func() error {
		svc := g.client.NewCreateOrderService().
			Symbol(req.Symbol).
			Side(futures.SideType(req.Side)).
			Type(futures.OrderType(req.Type)).
			ReduceOnly(req.ReduceOnly)

		if req.Quantity.IsPositive() {
			svc = svc.Quantity(req.Quantity.String())
		}
		if !req.Price.IsZero() {
			svc = svc.Price(req.Price.String())
		}
		if !req.StopPrice.IsZero() {
			svc = svc.StopPrice(req.StopPrice.String())
		}
		if req.TimeInForce != "" {
			svc = svc.TimeInForce(futures.TimeInForceType(req.TimeInForce))
		}
		if req.PositionSide != "" {
			svc = svc.PositionSide(futures.PositionSideType(req.PositionSide))
		}
		if req.ClientOrderID != "" {
			svc = svc.NewClientOrderID(req.ClientOrderID)
		}

		res, err := svc.Do(ctx)
		if err != nil {
			return classifyError(err)
		}
		result = models.OrderResult{
			OrderID:       strconv.FormatInt(res.OrderID, 10),
			ClientOrderID: res.ClientOrderID,
		}
		return nil
	})
	return result, err
}

func (g *binanceGateway) CancelOrder(ctx context.Context, symbol, orderID string) error {
	if err := g.wait(ctx); err != nil {
		return err
	}
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return fmt.Errorf("exchange: invalid order id %q: %w", orderID, err)
	}
	return withRetry(ctx, fmt.Sprintf("CancelOrder(%s,%s)", symbol, orderID), func() error {
		_, err := g.client.NewCancelOrderService().Symbol(symbol).OrderID(id).Do(ctx)
		if err != nil {
			return classifyError(err)
		}
		return nil
	})
}

func (g *binanceGateway) ChangeLeverage(ctx context.Context, symbol string, leverage int) error {
	if err := g.wait(ctx); err != nil {
		return err
	}
	return withRetry(ctx, fmt.Sprintf("ChangeLeverage(%s)", symbol), func() error {
		_, err := g.client.NewChangeLeverageService().Symbol(symbol).Leverage(leverage).Do(ctx)
		if err != nil {
			return classifyError(err)
		}
		// The endpoint may return success without echoing the new leverage
		// (spec §4.2 item 5); treat that as success without further
		// verification.
		return nil
	})
}

func (g *binanceGateway) ExchangeInfo(ctx context.Context, symbol string) (models.SymbolFilters, error) {
	if err := g.wait(ctx); err != nil {
		return models.SymbolFilters{}, err
	}
	var filters models.SymbolFilters
	found := false
	err := withRetry(ctx, "ExchangeInfo", func() error {
		info, err := g.client.NewExchangeInfoService().Do(ctx)
		if err != nil {
			return classifyError(err)
		}
		for _, s := range info.Symbols {
			if s.Symbol != symbol {
				continue
			}
			found = true
			filters.Symbol = symbol
			for _, f := range s.Filters {
				switch f["filterType"] {
				case "PRICE_FILTER":
					if ts, ok := f["tickSize"].(string); ok {
						filters.TickSize, _ = decimal.NewFromString(ts)
					}
				case "LOT_SIZE":
					if ss, ok := f["stepSize"].(string); ok {
						filters.StepSize, _ = decimal.NewFromString(ss)
					}
				case "MIN_NOTIONAL":
					if mn, ok := f["notional"].(string); ok {
						filters.MinNotional, _ = decimal.NewFromString(mn)
					}
				}
			}
			filters.PriceDecimals = decimalPlaces(filters.TickSize)
			filters.QtyDecimals = decimalPlaces(filters.StepSize)
		}
		return nil
	})
	if err != nil {
		return models.SymbolFilters{}, err
	}
	if !found {
		return models.SymbolFilters{}, UnknownSymbol(symbol)
	}
	return filters, nil
}

func (g *binanceGateway) OrderStatus(ctx context.Context, symbol, orderID string) (models.OrderStatusResult, error) {
	if err := g.wait(ctx); err != nil {
		return models.OrderStatusResult{}, err
	}
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return models.OrderStatusResult{}, fmt.Errorf("exchange: invalid order id %q: %w", orderID, err)
	}
	var result models.OrderStatusResult
	err = withRetry(ctx, fmt.Sprintf("OrderStatus(%s,%s)", symbol, orderID), func() error {
		o, err := g.client.NewGetOrderService().Symbol(symbol).OrderID(id).Do(ctx)
		if err != nil {
			return classifyError(err)
		}
		execQty, _ := decimal.NewFromString(o.ExecutedQuantity)
		avgPrice, _ := decimal.NewFromString(o.AvgPrice)
		result = models.OrderStatusResult{
			Status:      models.OrderStatus(o.Status),
			ExecutedQty: execQty,
			AvgPrice:    avgPrice,
		}
		return nil
	})
	return result, err
}

func (g *binanceGateway) MarkPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if err := g.wait(ctx); err != nil {
		return decimal.Zero, err
	}
	var price decimal.Decimal
	err := withRetry(ctx, fmt.Sprintf("MarkPrice(%s)", symbol), func() error {
		res, err := g.client.NewPremiumIndexService().Symbol(symbol).Do(ctx)
		if err != nil {
			return classifyError(err)
		}
		if len(res) == 0 {
			return Unavailable("no mark price returned for " + symbol)
		}
		price, _ = decimal.NewFromString(res[0].MarkPrice)
		return nil
	})
	return price, err
}

func decimalPlaces(d decimal.Decimal) int32 {
	s := d.String()
	for i, r := range s {
		if r == '.' {
			return int32(len(s) - i - 1)
		}
	}
	return 0
}

// classifyError maps the SDK's generic errors into the typed GatewayError
// taxonomy of spec §7, so callers can branch on kind rather than string
// content.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if apiErr, ok := err.(*futures.APIError); ok {
		switch apiErr.Code {
		case -1003, -1015:
			return RateLimited(apiErr.Message)
		default:
			return Rejected(int(apiErr.Code), apiErr.Message)
		}
	}
	return Unavailable(err.Error())
}
