package bithumb

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/alejandrodnm/turtlebot/internal/domain"
)

const candleTimeLayout = "2006-01-02T15:04:05"

// mapCandles convierte los DTOs a barras ordenadas de la más antigua a la más
// reciente. Falla si alguna vela no es válida: una barra descartada en silencio
// desplazaría todas las ventanas del motor.
func mapCandles(raw []candle) ([]domain.PriceBar, error) {
	bars := make([]domain.PriceBar, 0, len(raw))
	for _, r := range raw {
		b, err := mapCandle(r)
		if err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Date.Before(bars[j].Date)
	})
	return bars, nil
}

// mapCandle convierte un candle DTO a domain.PriceBar.
func mapCandle(r candle) (domain.PriceBar, error) {
	date, err := time.ParseInLocation(candleTimeLayout, r.CandleDateTimeUTC, time.UTC)
	if err != nil {
		return domain.PriceBar{}, fmt.Errorf("candle date %q: %w", r.CandleDateTimeUTC, err)
	}
	b := domain.PriceBar{Date: date}
	for _, f := range []struct {
		name string
		raw  json.Number
		dst  *float64
	}{
		{"high_price", r.HighPrice, &b.High},
		{"low_price", r.LowPrice, &b.Low},
		{"trade_price", r.TradePrice, &b.Close},
	} {
		if *f.dst, err = parsePrice(f.raw); err != nil {
			return domain.PriceBar{}, fmt.Errorf("candle %s %s: %w", r.CandleDateTimeUTC, f.name, err)
		}
	}
	if err := b.Validate(); err != nil {
		return domain.PriceBar{}, err
	}
	return b, nil
}

// tradePrice devuelve el precio actual de market dentro de una respuesta de ticker.
func tradePrice(raw []ticker, market string) (float64, error) {
	for _, t := range raw {
		if t.Market != market {
			continue
		}
		p, err := parsePrice(t.TradePrice)
		if err != nil {
			return 0, fmt.Errorf("ticker %s trade_price: %w", market, err)
		}
		if !(p > 0) {
			return 0, fmt.Errorf("ticker %s trade_price: must be > 0, got %v", market, p)
		}
		return p, nil
	}
	return 0, fmt.Errorf("ticker %s: market not in response", market)
}

func parsePrice(n json.Number) (float64, error) {
	if n == "" {
		return 0, errors.New("missing")
	}
	return n.Float64()
}
