package domain

import "time"

// Opportunity is the result of simulating one cycle against live books.
type Opportunity struct {
	ID          string
	Cycle       Cycle
	TradeAmount float64
	// Amounts are the liquidity-capped quantities after each leg.
	Amounts    [3]float64
	Ask1       float64
	Bid2       float64
	Bid3       float64
	Profit     float64
	ProfitPct  float64
	Simulated  bool
	Executed   bool
	ExecError  string
	DetectedAt time.Time
}
