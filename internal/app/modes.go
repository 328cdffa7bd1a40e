package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/triarb/internal/arbitrage"
	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/executor"
	"github.com/alanyoungcy/triarb/internal/metrics"
	"github.com/alanyoungcy/triarb/internal/pipeline"
	"github.com/alanyoungcy/triarb/internal/server"
	"github.com/alanyoungcy/triarb/internal/server/handler"
	"github.com/alanyoungcy/triarb/internal/server/ws"
	"github.com/alanyoungcy/triarb/internal/service"
	"github.com/alanyoungcy/triarb/internal/triangle"
)

// core is the scan pipeline shared by every long-running mode.
type core struct {
	catalogues    *service.CatalogueService
	opportunities *service.OpportunityService
	runner        *arbitrage.Runner
}

// ScanMode loads or builds the catalogue and scans until ctx is cancelled.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode")
	c := a.buildCore(deps, nil)
	return c.runner.Run(ctx)
}

// BuildMode rebuilds and persists the catalogue, then returns.
func (a *App) BuildMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting build mode")
	c := a.buildCore(deps, nil)
	cat, err := c.catalogues.Rebuild(ctx)
	if err != nil {
		return err
	}
	a.logger.InfoContext(ctx, "catalogue saved",
		slog.String("path", deps.CatalogueFile.Path()),
		slog.Int("cycles", cat.Len()),
	)
	return nil
}

// FullMode runs the scan loop alongside the HTTP API, the websocket feed and
// the rebuild and archive schedules.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:           a.cfg.Mode,
		StartedAt:      time.Now().UTC(),
		AllowedOrigins: a.cfg.Server.CORSOrigins,
	})
	g.Go(func() error {
		if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	c := a.buildCore(deps, hub)
	g.Go(func() error {
		return c.runner.Run(ctx)
	})

	if spec := a.cfg.Catalogue.RebuildCron; spec != "" {
		g.Go(func() error {
			return pipeline.RunCron(ctx, "catalogue_rebuild", spec, func(ctx context.Context) error {
				if !c.runner.RequestRebuild() {
					a.logger.InfoContext(ctx, "catalogue rebuild already pending")
				}
				return nil
			}, a.logger)
		})
	}

	if deps.Archiver != nil && a.cfg.S3.ArchiveCron != "" {
		archiver := pipeline.NewArchiver(deps.Archiver, a.cfg.S3.ArchiveRetention.Duration, a.logger)
		g.Go(func() error {
			return pipeline.RunCron(ctx, "opportunity_archive", a.cfg.S3.ArchiveCron, archiver.Run, a.logger)
		})
	}

	a.startHTTPServer(ctx, g, deps, hub, c)

	return g.Wait()
}

// buildCore wires the catalogue service, the evaluator and the scanner into
// a runner. hub may be nil.
func (a *App) buildCore(deps *Dependencies, hub *ws.Hub) *core {
	var broadcaster service.Broadcaster
	if hub != nil {
		broadcaster = hub
	}

	builder := triangle.NewBuilder(triangle.BuilderConfig{
		Stablecoins: domain.NewStableSet(a.cfg.Catalogue.Stablecoins...),
		BatchSize:   a.cfg.Catalogue.BatchSize,
		MaxWorkers:  a.cfg.Catalogue.MaxWorkers,
		Logger:      a.logger,
	})
	catalogues := service.NewCatalogueService(service.CatalogueConfig{
		Markets:      deps.Exchange,
		Builder:      builder,
		Store:        deps.CatalogueStore,
		Locks:        deps.LockManager,
		LockTTL:      a.cfg.Catalogue.LockTTL.Duration,
		Audit:        deps.AuditStore,
		Notifier:     deps.Notifier,
		Bus:          deps.SignalBus,
		Hub:          broadcaster,
		ForceRebuild: a.cfg.Catalogue.ForceRebuild,
		Logger:       a.logger,
	})
	opportunities := service.NewOpportunityService(service.OpportunityConfig{
		Store:    deps.OpportunityStore,
		Bus:      deps.SignalBus,
		Hub:      broadcaster,
		Notifier: deps.Notifier,
		Logger:   a.logger,
	})

	books := arbitrage.NewThrottledBooks(arbitrage.ThrottledBooksConfig{
		Fetcher:      deps.Exchange,
		Depth:        a.cfg.Scanner.OrderBookDepth,
		Delay:        a.cfg.Scanner.FetchDelay.Duration,
		Cooldown:     a.cfg.Scanner.RateLimitCooldown.Duration,
		Shared:       deps.RateLimiter,
		SharedLimit:  a.cfg.Scanner.SharedLimit,
		SharedWindow: a.cfg.Scanner.SharedWindow.Duration,
		Logger:       a.logger,
	})
	evalCfg := arbitrage.EvaluatorConfig{
		Books:    books,
		Simulate: a.cfg.Scanner.Simulate,
		Logger:   a.logger,
	}
	if !a.cfg.Scanner.Simulate {
		evalCfg.Gateway = executor.New(executor.Config{
			Placer:      deps.Exchange,
			DedupWindow: a.cfg.Executor.DedupWindow.Duration,
			Logger:      a.logger,
		})
	}
	scanner := arbitrage.NewScanner(arbitrage.ScannerConfig{
		Evaluator: arbitrage.NewEvaluator(evalCfg),
		Recorder:  opportunities,
		Observer:  metrics.Scanner{},
		Logger:    a.logger,
	})

	runner := arbitrage.NewRunner(arbitrage.RunnerConfig{
		Catalogues: catalogues,
		Scanner:    scanner,
		Params: arbitrage.ScanParams{
			TradeAmount:  a.cfg.Scanner.TradeAmount,
			ProfitMargin: a.cfg.Scanner.ProfitMargin,
			MaxParallel:  a.cfg.Scanner.MaxParallelRequests,
		},
		Interval: a.cfg.Scanner.CheckInterval.Duration,
		Logger:   a.logger,
	})

	return &core{catalogues: catalogues, opportunities: opportunities, runner: runner}
}

// startHTTPServer adds the API server and its graceful shutdown to g.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, hub *ws.Hub, c *core) {
	handlers := server.Handlers{
		Health:        handler.NewHealthHandler(a.cfg.Mode, time.Now(), c.runner),
		Catalogue:     handler.NewCatalogueHandler(c.runner, a.logger),
		Opportunities: handler.NewOpportunityHandler(c.opportunities, a.logger),
	}
	if deps.AuditStore != nil {
		handlers.Audit = handler.NewAuditHandler(deps.AuditStore, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
