package domain

import (
	"sort"
	"strings"
)

// TradingPair is an ordered (base, quote) pair. Buying the pair spends quote
// and receives base; selling does the reverse.
type TradingPair struct {
	Base  string
	Quote string
}

// Symbol renders the pair in the unified "BASE/QUOTE" form.
func (p TradingPair) Symbol() string {
	return p.Base + "/" + p.Quote
}

// ParsePair splits a "BASE/QUOTE" symbol. It reports false for anything that
// is not exactly two non-empty parts.
func ParsePair(symbol string) (TradingPair, bool) {
	base, quote, ok := strings.Cut(symbol, "/")
	if !ok || base == "" || quote == "" || strings.Contains(quote, "/") {
		return TradingPair{}, false
	}
	return TradingPair{Base: base, Quote: quote}, true
}

// Market is one tradable instrument as reported by the exchange.
type Market struct {
	Symbol         string // unified "BASE/QUOTE"
	ExchangeSymbol string // venue-native id, e.g. "BTCUSDT"
	Base           string
	Quote          string
	Active         bool
}

// PairSet is the set of active "BASE/QUOTE" symbols. It is the only input the
// cycle validator needs.
type PairSet map[string]struct{}

// NewPairSet builds a PairSet from the given symbols.
func NewPairSet(symbols ...string) PairSet {
	s := make(PairSet, len(symbols))
	for _, sym := range symbols {
		s[sym] = struct{}{}
	}
	return s
}

// Has reports whether symbol is active.
func (s PairSet) Has(symbol string) bool {
	_, ok := s[symbol]
	return ok
}

// StableSet is the set of currencies every cycle must start and end in.
type StableSet map[string]struct{}

// DefaultStablecoins is used when the configuration does not override it.
var DefaultStablecoins = []string{"USDT", "USDC", "BUSD", "FDUSD"}

// NewStableSet builds a StableSet from the given currency codes.
func NewStableSet(codes ...string) StableSet {
	s := make(StableSet, len(codes))
	for _, c := range codes {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c != "" {
			s[c] = struct{}{}
		}
	}
	return s
}

// Has reports whether code is a stablecoin.
func (s StableSet) Has(code string) bool {
	_, ok := s[code]
	return ok
}

// Sorted returns the members in lexical order.
func (s StableSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// ActiveUniverse extracts the active pair symbols and the set of currencies
// they mention from a market listing. Inactive markets are ignored.
func ActiveUniverse(markets map[string]Market) (PairSet, []string) {
	pairs := make(PairSet, len(markets))
	seen := make(map[string]struct{})
	for _, m := range markets {
		if !m.Active || m.Base == "" || m.Quote == "" {
			continue
		}
		pairs[TradingPair{Base: m.Base, Quote: m.Quote}.Symbol()] = struct{}{}
		seen[m.Base] = struct{}{}
		seen[m.Quote] = struct{}{}
	}
	currencies := make([]string, 0, len(seen))
	for c := range seen {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)
	return pairs, currencies
}
