package domain

import "context"

// MarketLister lists every instrument the exchange knows about.
type MarketLister interface {
	LoadMarkets(ctx context.Context) (map[string]Market, error)
}

// OrderBookFetcher fetches a shallow orderbook for one "BASE/QUOTE" symbol.
type OrderBookFetcher interface {
	FetchOrderBook(ctx context.Context, symbol string, limit int) (OrderBook, error)
}

// OrderPlacer submits market orders. amount is always in base units.
type OrderPlacer interface {
	CreateMarketBuyOrder(ctx context.Context, symbol string, amount float64) (OrderResult, error)
	CreateMarketSellOrder(ctx context.Context, symbol string, amount float64) (OrderResult, error)
}

// Exchange is the full connectivity surface the bot needs.
type Exchange interface {
	MarketLister
	OrderBookFetcher
	OrderPlacer
}
