// Package pipeline runs the bot's scheduled housekeeping: catalogue rebuild
// requests and cold-storage archiving of opportunity history.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// OpportunityArchiver moves opportunities detected before a cutoff to cold
// storage and reports how many it moved.
type OpportunityArchiver interface {
	ArchiveOpportunities(ctx context.Context, before time.Time) (int64, error)
}

// Archiver archives opportunity history older than the retention period.
type Archiver struct {
	blobArchiver OpportunityArchiver
	retention    time.Duration
	now          func() time.Time
	logger       *slog.Logger
}

// NewArchiver creates a new Archiver.
func NewArchiver(blobArchiver OpportunityArchiver, retention time.Duration, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{
		blobArchiver: blobArchiver,
		retention:    retention,
		now:          time.Now,
		logger:       logger.With(slog.String("component", "archiver")),
	}
}

// Run executes a single archive run.
func (a *Archiver) Run(ctx context.Context) error {
	cutoff := a.now().UTC().Add(-a.retention)
	a.logger.InfoContext(ctx, "starting archive run",
		slog.Time("cutoff", cutoff),
		slog.Duration("retention", a.retention),
	)

	n, err := a.blobArchiver.ArchiveOpportunities(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("pipeline: archive opportunities before %v: %w", cutoff, err)
	}

	a.logger.InfoContext(ctx, "archive run complete", slog.Int64("opportunities_archived", n))
	return nil
}
