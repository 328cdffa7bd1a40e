// Package notify delivers operator alerts to Telegram and Discord. Events can
// be filtered so operators receive only the alerts they care about.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// Event types the bot emits.
const (
	EventOpportunityDetected = "opportunity_detected"
	EventTradeExecuted       = "trade_executed"
	EventExecutionFailed     = "execution_failed"
	EventCatalogueRebuilt    = "catalogue_rebuilt"
)

// Sender delivers one alert over one channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier fans alerts out to every Sender concurrently. A non-empty event
// filter restricts which events are delivered.
type Notifier struct {
	senders []Sender
	filter  map[string]struct{}
	logger  *slog.Logger
}

// NewNotifier creates a Notifier. Empty events means every event passes.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	n := &Notifier{
		senders: senders,
		logger:  logger.With(slog.String("component", "notifier")),
	}
	for _, e := range events {
		if e = strings.TrimSpace(e); e == "" {
			continue
		}
		if n.filter == nil {
			n.filter = make(map[string]struct{})
		}
		n.filter[e] = struct{}{}
	}
	return n
}

// Enabled reports whether any sender is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && len(n.senders) > 0
}

func (n *Notifier) wants(event string) bool {
	if n.filter == nil {
		return true
	}
	_, ok := n.filter[event]
	return ok
}

// Notify delivers the alert to every sender and joins their failures.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if !n.Enabled() {
		return nil
	}
	if !n.wants(event) {
		n.logger.DebugContext(ctx, "event filtered", slog.String("event", event))
		return nil
	}

	errs := make([]error, len(n.senders))
	var wg sync.WaitGroup
	for i, s := range n.senders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Send(ctx, title, message); err != nil {
				n.logger.ErrorContext(ctx, "alert delivery failed",
					slog.String("sender", s.Name()),
					slog.String("event", event),
					slog.String("error", err.Error()),
				)
				errs[i] = fmt.Errorf("%s: %w", s.Name(), err)
			}
		}()
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("notify: %s: %w", event, err)
	}
	return nil
}

// OpportunityEvent picks the event type for an opportunity.
func OpportunityEvent(opp domain.Opportunity) string {
	switch {
	case opp.ExecError != "":
		return EventExecutionFailed
	case opp.Executed:
		return EventTradeExecuted
	default:
		return EventOpportunityDetected
	}
}

// FormatOpportunity renders the title and body of an opportunity alert.
func FormatOpportunity(opp domain.Opportunity) (string, string) {
	var title string
	switch OpportunityEvent(opp) {
	case EventExecutionFailed:
		title = "Execution failed"
	case EventTradeExecuted:
		title = "Cycle executed"
	default:
		title = "Arbitrage opportunity"
		if opp.Simulated {
			title += " (simulated)"
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", opp.Cycle)
	fmt.Fprintf(&b, "profit %.6f %s (%.4f%%) on %.2f\n", opp.Profit, opp.Cycle.Stable(), opp.ProfitPct*100, opp.TradeAmount)
	fmt.Fprintf(&b, "amounts %.8f / %.8f / %.8f", opp.Amounts[0], opp.Amounts[1], opp.Amounts[2])
	if opp.ExecError != "" {
		fmt.Fprintf(&b, "\nerror: %s", opp.ExecError)
	}
	return title, b.String()
}
