// Package binance implements domain.Exchange against the Binance spot REST
// API.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/alanyoungcy/triarb/internal/crypto"
	"github.com/alanyoungcy/triarb/internal/domain"
)

const (
	// LiveBaseURL is the production spot REST root.
	LiveBaseURL = "https://api.binance.com"
	// TestnetBaseURL is the spot testnet REST root.
	TestnetBaseURL = "https://testnet.binance.vision"

	defaultRequestsPerSecond = 10
	defaultRecvWindow        = 5 * time.Second
	quantityDecimals         = 8
)

// Config configures a Client.
type Config struct {
	// BaseURL overrides the endpoint chosen by Sandbox.
	BaseURL string
	Sandbox bool

	Auth *crypto.HMACAuth

	// RequestsPerSecond and Burst bound outgoing requests client-side.
	RequestsPerSecond float64
	Burst             int

	RecvWindow time.Duration
	Timeout    time.Duration
	Logger     *slog.Logger
}

// Client is a Binance spot REST client. It is safe for concurrent use.
type Client struct {
	baseURL    string
	auth       *crypto.HMACAuth
	limiter    *rate.Limiter
	recvWindow time.Duration
	httpClient *http.Client
	logger     *slog.Logger

	// symbols maps unified "BASE/QUOTE" to venue ids, filled by LoadMarkets.
	mu      sync.RWMutex
	symbols map[string]string
}

// NewClient creates a Client.
func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = LiveBaseURL
		if cfg.Sandbox {
			baseURL = TestnetBaseURL
		}
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRequestsPerSecond
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = int(rps)
		if burst < 1 {
			burst = 1
		}
	}
	recv := cfg.RecvWindow
	if recv <= 0 {
		recv = defaultRecvWindow
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		auth:       cfg.Auth,
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		recvWindow: recv,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(slog.String("component", "binance")),
		symbols:    make(map[string]string),
	}
}

// LoadMarkets lists every spot symbol. A market is active when its status
// is TRADING.
func (c *Client) LoadMarkets(ctx context.Context) (map[string]domain.Market, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/v3/exchangeInfo", nil, false)
	if err != nil {
		return nil, fmt.Errorf("binance: exchange info: %w", err)
	}

	var resp exchangeInfoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("binance: decode exchange info: %w", err)
	}

	markets := make(map[string]domain.Market, len(resp.Symbols))
	symbols := make(map[string]string, len(resp.Symbols))
	for _, s := range resp.Symbols {
		if s.BaseAsset == "" || s.QuoteAsset == "" {
			continue
		}
		pair := domain.TradingPair{Base: s.BaseAsset, Quote: s.QuoteAsset}
		active := s.Status == statusTrading
		if s.IsSpotTradingAllowed != nil && !*s.IsSpotTradingAllowed {
			active = false
		}
		markets[pair.Symbol()] = domain.Market{
			Symbol:         pair.Symbol(),
			ExchangeSymbol: s.Symbol,
			Base:           s.BaseAsset,
			Quote:          s.QuoteAsset,
			Active:         active,
		}
		symbols[pair.Symbol()] = s.Symbol
	}

	c.mu.Lock()
	c.symbols = symbols
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "markets loaded", slog.Int("symbols", len(markets)))
	return markets, nil
}

// FetchOrderBook returns up to limit levels per side for symbol.
func (c *Client) FetchOrderBook(ctx context.Context, symbol string, limit int) (domain.OrderBook, error) {
	params := url.Values{}
	params.Set("symbol", c.exchangeSymbol(symbol))
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	body, err := c.do(ctx, http.MethodGet, "/api/v3/depth", params, false)
	if err != nil {
		return domain.OrderBook{}, fmt.Errorf("binance: depth %s: %w", symbol, err)
	}

	var resp depthResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.OrderBook{}, fmt.Errorf("binance: decode depth %s: %w", symbol, err)
	}
	return domain.OrderBook{
		Symbol:    symbol,
		Bids:      toLevels(resp.Bids),
		Asks:      toLevels(resp.Asks),
		Timestamp: time.Now(),
	}, nil
}

// CreateMarketBuyOrder buys amount units of symbol's base at market.
func (c *Client) CreateMarketBuyOrder(ctx context.Context, symbol string, amount float64) (domain.OrderResult, error) {
	return c.marketOrder(ctx, symbol, domain.OrderSideBuy, amount)
}

// CreateMarketSellOrder sells amount units of symbol's base at market.
func (c *Client) CreateMarketSellOrder(ctx context.Context, symbol string, amount float64) (domain.OrderResult, error) {
	return c.marketOrder(ctx, symbol, domain.OrderSideSell, amount)
}

func (c *Client) marketOrder(ctx context.Context, symbol string, side domain.OrderSide, amount float64) (domain.OrderResult, error) {
	if !c.auth.Configured() {
		return domain.OrderResult{}, fmt.Errorf("binance: order %s: api credentials not configured: %w", symbol, domain.ErrUnauthorized)
	}
	qty := FormatQuantity(amount)
	if qty == "0" {
		return domain.OrderResult{}, fmt.Errorf("binance: order %s: quantity %v: %w", symbol, amount, domain.ErrInvalidOrder)
	}

	params := url.Values{}
	params.Set("symbol", c.exchangeSymbol(symbol))
	params.Set("side", strings.ToUpper(string(side)))
	params.Set("type", "MARKET")
	params.Set("quantity", qty)
	params.Set("newOrderRespType", "RESULT")

	body, err := c.do(ctx, http.MethodPost, "/api/v3/order", params, true)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("binance: order %s %s: %w", side, symbol, err)
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.OrderResult{}, fmt.Errorf("binance: decode order: %w", err)
	}
	return domain.OrderResult{
		OrderID:  strconv.FormatInt(resp.OrderID, 10),
		Symbol:   symbol,
		Side:     side,
		Status:   mapStatus(resp.Status),
		Amount:   resp.OrigQty.InexactFloat64(),
		Filled:   resp.ExecutedQty.InexactFloat64(),
		QuoteQty: resp.CummulativeQuoteQty.InexactFloat64(),
	}, nil
}

// FormatQuantity renders amount with at most eight decimals, truncated.
func FormatQuantity(amount float64) string {
	return decimal.NewFromFloat(amount).Truncate(quantityDecimals).String()
}

// exchangeSymbol maps "BASE/QUOTE" to the venue id, falling back to the
// concatenation when markets have not been loaded.
func (c *Client) exchangeSymbol(symbol string) string {
	c.mu.RLock()
	id, ok := c.symbols[symbol]
	c.mu.RUnlock()
	if ok {
		return id
	}
	return strings.ReplaceAll(symbol, "/", "")
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// do waits on the client-side limiter, sends the request and returns the
// body. Signed requests carry the API key header and a signed query.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, signed bool) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var query string
	switch {
	case signed:
		query = c.auth.SignQuery(params, c.recvWindow)
	case len(params) > 0:
		query = params.Encode()
	}
	fullURL := c.baseURL + path
	if query != "" {
		fullURL += "?" + query
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if signed {
		req.Header.Set(crypto.HeaderAPIKey, c.auth.Key)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

// checkHTTPStatus maps non-2xx status codes to domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var apiErr apiError
	_ = json.Unmarshal(body, &apiErr)
	detail := strings.TrimSpace(string(body))
	if apiErr.Msg != "" {
		detail = fmt.Sprintf("%s (code %d)", apiErr.Msg, apiErr.Code)
	}

	if apiErr.Code == codeTooManyRequests || apiErr.Code == codeTooManyOrders {
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, detail)
	}
	switch statusCode {
	case http.StatusTooManyRequests, http.StatusTeapot:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, detail)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, detail)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, detail)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, detail)
	}
}

func toLevels(in []apiLevel) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(in))
	for _, l := range in {
		out = append(out, domain.PriceLevel{
			Price: l[0].InexactFloat64(),
			Size:  l[1].InexactFloat64(),
		})
	}
	return out
}

func mapStatus(s string) domain.OrderStatus {
	switch s {
	case "NEW":
		return domain.OrderStatusNew
	case "PARTIALLY_FILLED":
		return domain.OrderStatusPartiallyFilled
	case "FILLED":
		return domain.OrderStatusFilled
	case "CANCELED", "PENDING_CANCEL":
		return domain.OrderStatusCancelled
	case "REJECTED":
		return domain.OrderStatusRejected
	case "EXPIRED", "EXPIRED_IN_MATCH":
		return domain.OrderStatusExpired
	default:
		return domain.OrderStatus(strings.ToLower(s))
	}
}

var _ domain.Exchange = (*Client)(nil)
