package bithumb

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/alejandrodnm/turtlebot/internal/domain"
)

// MaxCandles es el máximo de velas que admite GET /v1/candles/days por request.
const MaxCandles = 200

// Candles implementa ports.MarketData.
// Devuelve las últimas count velas diarias de market, de la más antigua a la
// más reciente. La vela de hoy, aún abierta, es la última.
func (c *Client) Candles(ctx context.Context, market string, count int) ([]domain.PriceBar, error) {
	if count < 1 || count > MaxCandles {
		return nil, domain.Invalid("count", "must be in [1, %d], got %d", MaxCandles, count)
	}

	q := url.Values{}
	q.Set("market", market)
	q.Set("count", strconv.Itoa(count))

	var raw []candle
	if err := c.get(ctx, "/v1/candles/days", q, &raw); err != nil {
		return nil, fmt.Errorf("bithumb.Candles: %s: %w", market, err)
	}
	bars, err := mapCandles(raw)
	if err != nil {
		return nil, fmt.Errorf("bithumb.Candles: %s: %w", market, err)
	}
	return bars, nil
}

// CurrentPrice implementa ports.MarketData con el trade_price del ticker.
func (c *Client) CurrentPrice(ctx context.Context, market string) (float64, error) {
	q := url.Values{}
	q.Set("markets", market)

	var raw []ticker
	if err := c.get(ctx, "/v1/ticker", q, &raw); err != nil {
		return 0, fmt.Errorf("bithumb.CurrentPrice: %s: %w", market, err)
	}
	price, err := tradePrice(raw, market)
	if err != nil {
		return 0, fmt.Errorf("bithumb.CurrentPrice: %w", err)
	}
	return price, nil
}
