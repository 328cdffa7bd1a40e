package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/triarb/internal/arbitrage"
	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/metrics"
	"github.com/alanyoungcy/triarb/internal/notify"
)

// recentCap is how many opportunities are kept in memory when no database
// is configured.
const recentCap = 200

// OpportunityConfig wires an OpportunityService. Every dependency is
// optional.
type OpportunityConfig struct {
	Store    domain.OpportunityStore
	Bus      domain.SignalBus
	Hub      Broadcaster
	Notifier Notifier
	Logger   *slog.Logger
}

// OpportunityService records the opportunities that end scans: it persists
// them, streams them to dashboards, alerts operators and counts them.
type OpportunityService struct {
	store    domain.OpportunityStore
	notifier Notifier
	events   eventPublisher
	logger   *slog.Logger

	mu     sync.Mutex
	recent []domain.Opportunity
}

// NewOpportunityService creates an OpportunityService.
func NewOpportunityService(cfg OpportunityConfig) *OpportunityService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "opportunity_service"))
	return &OpportunityService{
		store:    cfg.Store,
		notifier: cfg.Notifier,
		events:   eventPublisher{bus: cfg.Bus, hub: cfg.Hub, logger: logger},
		logger:   logger,
	}
}

// Record handles one opportunity. Failures of individual sinks are logged
// and never interrupt the scan loop.
func (s *OpportunityService) Record(ctx context.Context, opp domain.Opportunity) {
	if opp.ID == "" {
		opp.ID = uuid.New().String()
	}
	if opp.DetectedAt.IsZero() {
		opp.DetectedAt = time.Now().UTC()
	}

	s.remember(opp)
	metrics.RecordOpportunity(opp.Cycle.Stable(), opp.Simulated, opp.ProfitPct)

	if s.store != nil {
		if err := s.store.Insert(ctx, opp); err != nil {
			s.logger.WarnContext(ctx, "persist opportunity failed",
				slog.String("opp_id", opp.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.events.publish(ctx, ChannelOpportunity, "opportunity", NewOpportunityView(opp))

	if s.notifier != nil {
		title, body := notify.FormatOpportunity(opp)
		if err := s.notifier.Notify(ctx, notify.OpportunityEvent(opp), title, body); err != nil {
			s.logger.WarnContext(ctx, "notify failed",
				slog.String("opp_id", opp.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "opportunity recorded",
		slog.String("opp_id", opp.ID),
		slog.String("cycle", opp.Cycle.String()),
		slog.Float64("profit_pct", opp.ProfitPct*100),
	)
}

// ListRecent returns up to limit opportunities, newest first. It reads the
// database when one is configured and the in-memory history otherwise.
func (s *OpportunityService) ListRecent(ctx context.Context, limit int) ([]domain.Opportunity, error) {
	if s.store != nil {
		opps, err := s.store.ListRecent(ctx, limit)
		if err != nil {
			return nil, fmt.Errorf("opportunity_service: list recent: %w", err)
		}
		return opps, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.recent)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.Opportunity, 0, n)
	for i := len(s.recent) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.recent[i])
	}
	return out, nil
}

func (s *OpportunityService) remember(opp domain.Opportunity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.recent) == recentCap {
		copy(s.recent, s.recent[1:])
		s.recent = s.recent[:recentCap-1]
	}
	s.recent = append(s.recent, opp)
}

var _ arbitrage.Recorder = (*OpportunityService)(nil)
