package binance

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// --------------------------------------------------------------------------
// REST DTOs
// --------------------------------------------------------------------------

// exchangeInfoResponse is the subset of GET /api/v3/exchangeInfo we read.
type exchangeInfoResponse struct {
	Symbols []symbolInfo `json:"symbols"`
}

type symbolInfo struct {
	Symbol               string `json:"symbol"`
	Status               string `json:"status"`
	BaseAsset            string `json:"baseAsset"`
	QuoteAsset           string `json:"quoteAsset"`
	IsSpotTradingAllowed *bool  `json:"isSpotTradingAllowed,omitempty"`
}

// statusTrading is the only status in which a symbol accepts orders.
const statusTrading = "TRADING"

// depthResponse is the body of GET /api/v3/depth. Levels are
// [price, quantity] string pairs.
type depthResponse struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         []apiLevel `json:"bids"`
	Asks         []apiLevel `json:"asks"`
}

type apiLevel [2]decimal.Decimal

func (l *apiLevel) UnmarshalJSON(data []byte) error {
	var raw []decimal.Decimal
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) < 2 {
		return fmt.Errorf("binance: level has %d fields", len(raw))
	}
	l[0], l[1] = raw[0], raw[1]
	return nil
}

// orderResponse is the FULL/RESULT response of POST /api/v3/order.
type orderResponse struct {
	Symbol              string          `json:"symbol"`
	OrderID             int64           `json:"orderId"`
	ClientOrderID       string          `json:"clientOrderId"`
	Status              string          `json:"status"`
	Side                string          `json:"side"`
	OrigQty             decimal.Decimal `json:"origQty"`
	ExecutedQty         decimal.Decimal `json:"executedQty"`
	CummulativeQuoteQty decimal.Decimal `json:"cummulativeQuoteQty"`
}

// apiError is the error body Binance returns alongside non-2xx statuses.
type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// Binance error codes that signal request-weight exhaustion.
const (
	codeTooManyRequests = -1003
	codeTooManyOrders   = -1015
)
