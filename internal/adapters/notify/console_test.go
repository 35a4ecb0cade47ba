package notify_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alejandrodnm/turtlebot/internal/adapters/notify"
	"github.com/alejandrodnm/turtlebot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeReports() []domain.CycleReport {
	return []domain.CycleReport{
		{
			Market: "KRW-BTC",
			Signal: domain.TradeSignal{
				Action: domain.ActionBuy, Type: domain.BuyInitial,
				Price: 50250000, Quantity: 3, N: 1200000,
				Reason: "20-day breakout (SYSTEM1): 50250000.00 > 50000000.00",
			},
			Units: 1, UnitPercent: 2, Capital: 10000000,
		},
		{
			Market: "KRW-ETH",
			Signal: domain.TradeSignal{Action: domain.ActionHold, Price: 3100000, N: 90000, Reason: "No signal"},
			UnitPercent: 2, Capital: 10000000,
		},
		{Market: "KRW-XRP", Err: errors.New("bithumb.Candles: KRW-XRP: server error 502 after 3 retries")},
	}
}

func TestConsole_Notify_Compact(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)

	require.NoError(t, n.Notify(context.Background(), makeReports()))

	out := buf.String()
	assert.Contains(t, out, "3 mkts")
	assert.Contains(t, out, "BUY:1 SELL:0 HOLD:1 err:1")
	assert.Contains(t, out, "KRW-BTC BUY/INITIAL 3@50250000")
	assert.Contains(t, out, "KRW-XRP ERR")
	assert.NotContains(t, out, "KRW-ETH", "holds are only counted")
}

func TestConsole_Notify_Table(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, true)

	require.NoError(t, n.Notify(context.Background(), makeReports()))

	out := buf.String()
	assert.Contains(t, out, "KRW-BTC")
	assert.Contains(t, out, "KRW-ETH")
	assert.Contains(t, out, "BUY/INITIAL")
	assert.Contains(t, out, "No signal")
	assert.Contains(t, out, "ERROR")
	assert.Contains(t, out, "2.00%")
}

func TestConsole_Notify_Empty(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)

	require.NoError(t, n.Notify(context.Background(), nil))
	assert.Contains(t, buf.String(), "no markets evaluated")
}

func TestConsole_PrintHistory(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, true)

	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	n.PrintHistory([]domain.SignalRecord{
		{
			Market:    "KRW-BTC",
			Signal:    domain.TradeSignal{Action: domain.ActionBuy, Type: domain.BuyInitial, Price: 105, Quantity: 190, System: domain.System1},
			Fill:      &domain.Fill{Price: 105.05, Fee: 4.99},
			CreatedAt: at,
		},
		{
			Market:    "KRW-BTC",
			Signal:    domain.TradeSignal{Action: domain.ActionSell, Price: 120, Quantity: 190, System: domain.System1, ProfitRate: 14.2857},
			CreatedAt: at.Add(48 * time.Hour),
		},
	})

	out := buf.String()
	assert.Contains(t, out, "SIGNAL HISTORY (2)")
	assert.Contains(t, out, "SYSTEM1")
	assert.Contains(t, out, "105.05")
	assert.Contains(t, out, "+14.29%")
	assert.Contains(t, out, "Closed campaigns: 1 | profitable: 1 (100%)")
}

func TestConsole_PrintHistory_Empty(t *testing.T) {
	var buf bytes.Buffer
	notify.NewConsoleWriter(&buf, true).PrintHistory(nil)
	assert.Contains(t, buf.String(), "No signals recorded")
}
