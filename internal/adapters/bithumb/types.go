package bithumb

import "encoding/json"

// DTOs raw de la API pública de Bithumb. Solo se usan dentro de este paquete.
// La conversión a domain entities se hace en mapping.go.
//
// Los precios llegan como número JSON; algunos proxies los devuelven como
// string, así que se decodifican con json.Number.

// candle es un elemento de GET /v1/candles/days (más reciente primero).
type candle struct {
	Market               string      `json:"market"`
	CandleDateTimeUTC    string      `json:"candle_date_time_utc"`
	CandleDateTimeKST    string      `json:"candle_date_time_kst"`
	OpeningPrice         json.Number `json:"opening_price"`
	HighPrice            json.Number `json:"high_price"`
	LowPrice             json.Number `json:"low_price"`
	TradePrice           json.Number `json:"trade_price"`
	Timestamp            int64       `json:"timestamp"`
	CandleAccTradeVolume json.Number `json:"candle_acc_trade_volume"`
	PrevClosingPrice     json.Number `json:"prev_closing_price"`
}

// ticker es un elemento de GET /v1/ticker.
type ticker struct {
	Market         string      `json:"market"`
	TradeDate      string      `json:"trade_date"`
	TradeTime      string      `json:"trade_time"`
	TradeTimestamp int64       `json:"trade_timestamp"`
	OpeningPrice   json.Number `json:"opening_price"`
	HighPrice      json.Number `json:"high_price"`
	LowPrice       json.Number `json:"low_price"`
	TradePrice     json.Number `json:"trade_price"`
	Change         string      `json:"change"`
}

// errorResponse es el cuerpo de error de la API.
type errorResponse struct {
	Error struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"error"`
}
