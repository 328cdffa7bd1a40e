package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// Event channels shared with the websocket hub.
const (
	ChannelOpportunity = "ch:opportunity"
	ChannelCatalogue   = "ch:catalogue"
)

// Notifier sends operator alerts.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Broadcaster pushes events to locally connected dashboards.
type Broadcaster interface {
	Broadcast(channel string, data []byte) bool
}

// OpportunityView is the JSON form of an opportunity used on the bus, the
// websocket feed and the HTTP API.
type OpportunityView struct {
	ID          string     `json:"id"`
	Cycle       [3]string  `json:"cycle"`
	Stable      string     `json:"stable"`
	TradeAmount float64    `json:"trade_amount"`
	Amounts     [3]float64 `json:"amounts"`
	Ask1        float64    `json:"ask1"`
	Bid2        float64    `json:"bid2"`
	Bid3        float64    `json:"bid3"`
	Profit      float64    `json:"profit"`
	ProfitPct   float64    `json:"profit_pct"`
	Simulated   bool       `json:"simulated"`
	Executed    bool       `json:"executed"`
	ExecError   string     `json:"exec_error,omitempty"`
	DetectedAt  time.Time  `json:"detected_at"`
}

// NewOpportunityView converts a domain opportunity.
func NewOpportunityView(opp domain.Opportunity) OpportunityView {
	return OpportunityView{
		ID:          opp.ID,
		Cycle:       opp.Cycle,
		Stable:      opp.Cycle.Stable(),
		TradeAmount: opp.TradeAmount,
		Amounts:     opp.Amounts,
		Ask1:        opp.Ask1,
		Bid2:        opp.Bid2,
		Bid3:        opp.Bid3,
		Profit:      opp.Profit,
		ProfitPct:   opp.ProfitPct,
		Simulated:   opp.Simulated,
		Executed:    opp.Executed,
		ExecError:   opp.ExecError,
		DetectedAt:  opp.DetectedAt,
	}
}

// eventPublisher routes an event either through the signal bus, which the
// hub relays, or straight to the local hub when no bus is configured.
type eventPublisher struct {
	bus    domain.SignalBus
	hub    Broadcaster
	logger *slog.Logger
}

func (p eventPublisher) publish(ctx context.Context, channel, kind string, payload any) {
	if p.bus == nil && p.hub == nil {
		return
	}
	data, err := json.Marshal(map[string]any{"type": kind, "payload": payload})
	if err != nil {
		p.logger.WarnContext(ctx, "encode event failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		return
	}
	if p.bus != nil {
		if err := p.bus.Publish(ctx, channel, data); err != nil {
			p.logger.WarnContext(ctx, "publish event failed",
				slog.String("channel", channel),
				slog.String("error", err.Error()),
			)
		}
		return
	}
	p.hub.Broadcast(channel, data)
}
