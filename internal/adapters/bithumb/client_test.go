package bithumb_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alejandrodnm/turtlebot/internal/adapters/bithumb"
	"github.com/alejandrodnm/turtlebot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(srv *httptest.Server) *bithumb.Client {
	return bithumb.NewClient(srv.URL, bithumb.WithRetryWait(time.Millisecond))
}

func fixtureServer(t *testing.T, path, fixture string) *httptest.Server {
	t.Helper()
	data, err := os.ReadFile("../../../testdata/fixtures/" + fixture)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, path, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCandles_OldestFirst(t *testing.T) {
	srv := fixtureServer(t, "/v1/candles/days", "bithumb_candles_days.json")

	bars, err := newTestClient(srv).Candles(context.Background(), "KRW-BTC", 3)
	require.NoError(t, err)
	require.Len(t, bars, 3)

	assert.Equal(t, time.Date(2024, 1, 18, 0, 0, 0, 0, time.UTC), bars[0].Date)
	assert.Equal(t, time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC), bars[2].Date)
	assert.InDelta(t, 48000000.0, bars[0].Close, 0.001) // precios como string
	assert.InDelta(t, 49500000.0, bars[1].High, 0.001)
	assert.InDelta(t, 47000000.0, bars[1].Low, 0.001)
	assert.InDelta(t, 50000000.0, bars[2].Close, 0.001)
}

func TestCandles_QueryParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "KRW-ETH", r.URL.Query().Get("market"))
		assert.Equal(t, "55", r.URL.Query().Get("count"))
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	bars, err := newTestClient(srv).Candles(context.Background(), "KRW-ETH", 55)
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestCandles_CountOutOfRange(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	client := newTestClient(srv)
	for _, count := range []int{0, 201} {
		_, err := client.Candles(context.Background(), "KRW-BTC", count)
		assert.ErrorIs(t, err, domain.ErrValidation)
	}
	assert.Zero(t, calls.Load(), "no request for an invalid count")
}

func TestCandles_InvalidBarFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"market":"KRW-BTC","candle_date_time_utc":"2024-01-20T00:00:00",
			"high_price":100,"low_price":120,"trade_price":110}]`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Candles(context.Background(), "KRW-BTC", 1)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCandles_MissingPriceFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"market":"KRW-BTC","candle_date_time_utc":"2024-01-20T00:00:00",
			"high_price":100,"low_price":90}]`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Candles(context.Background(), "KRW-BTC", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trade_price")
}

func TestCurrentPrice_Success(t *testing.T) {
	srv := fixtureServer(t, "/v1/ticker", "bithumb_ticker.json")

	price, err := newTestClient(srv).CurrentPrice(context.Background(), "KRW-BTC")
	require.NoError(t, err)
	assert.InDelta(t, 50250000.0, price, 0.001)
}

func TestCurrentPrice_MarketMissing(t *testing.T) {
	srv := fixtureServer(t, "/v1/ticker", "bithumb_ticker.json")

	_, err := newTestClient(srv).CurrentPrice(context.Background(), "KRW-XRP")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KRW-XRP")
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[{"market":"KRW-BTC","trade_price":1000}]`))
	}))
	defer srv.Close()

	price, err := newTestClient(srv).CurrentPrice(context.Background(), "KRW-BTC")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, price)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_ServerErrorExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Candles(context.Background(), "KRW-BTC", 10)
	assert.Error(t, err)
	assert.Equal(t, int32(4), calls.Load())
}

func TestClient_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"name":"404","message":"Code not found"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv).CurrentPrice(context.Background(), "KRW-NOPE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Code not found")
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestClient(srv).Candles(ctx, "KRW-BTC", 10)
	assert.ErrorIs(t, err, context.Canceled)
}
