package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/maruishi/recolte/browser"
	"github.com/maruishi/recolte/extract"
	"github.com/maruishi/recolte/idgen"
	"github.com/maruishi/recolte/pipeline"
	"github.com/maruishi/recolte/sink"
)

// Execute implements the go-flags Commander interface for RunCommand.
func (c *RunCommand) Execute(args []string) error {
	logger := setupLogging(c.globals.LogLevel)

	types, err := parseTypes(c.Types)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(c.globals)
	if err != nil {
		return err
	}
	reg, err := loadRegistry(c.globals.Selectors)
	if err != nil {
		return err
	}
	sessCfg, err := sessionConfig(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	mgr := browser.NewManager(browserConfig(cfg, c.Headless))
	if err := mgr.Start(ctx); err != nil {
		return err
	}
	defer mgr.Close()

	store, err := sink.OpenStore(cfg.Export.StorePath)
	if err != nil {
		return err
	}
	defer store.Close()

	strategy := pipeline.StrategySeparate
	if c.SharedSession {
		strategy = pipeline.StrategyShared
	}
	plan := pipeline.Plan{
		Types:    types,
		Strategy: strategy,
		Targets:  c.Targets,
		MaxPages: c.MaxPages,
	}
	if !c.SkipAggregate {
		plan.Aggregations = aggregationsFor(types)
	}

	runID := idgen.Prefixed("run", idgen.UUIDv7())()
	runner := pipeline.NewRunner(
		&sessionProvider{mgr: mgr, reg: reg, cfg: sessCfg},
		extract.New(reg),
		pipeline.WithLogger(logger),
		pipeline.WithIDGenerator(func() string { return runID }),
		pipeline.WithExporters(
			&storeExporter{store: store},
			&csvExporter{w: sink.NewCSVWriter(cfg.Export.CSVDir)},
		),
		pipeline.WithExtractOptions(extract.Options{
			MaxPages:       cfg.Extract.MaxPages,
			RetryLimit:     cfg.Extract.RetryLimit,
			RetryBase:      cfg.Extract.RetryBase,
			ElementTimeout: cfg.Timeouts.Element,
			Limiter:        rate.NewLimiter(rate.Every(cfg.Extract.PageInterval), 1),
		}),
	)

	if err := store.StartRun(ctx, runID, string(strategy), time.Now()); err != nil {
		return err
	}
	rep := runner.Run(ctx, plan)
	if err := store.FinishRun(ctx, runID, rep.FinishedAt, !rep.Failed(), summarize(rep)); err != nil {
		logger.Warn("recording run outcome failed", "error", err)
	}

	notify(ctx, cfg.Export.WebhookURL, rep)
	renderReport(rep)
	return exitOnFailure(rep)
}

func summarize(rep *pipeline.Report) string {
	errs := rep.Errors()
	if len(errs) == 0 {
		return ""
	}
	out := ""
	for k, v := range errs {
		if out != "" {
			out += "; "
		}
		out += k + ": " + v
	}
	return out
}

func notify(ctx context.Context, url string, rep *pipeline.Report) {
	if url == "" {
		return
	}
	status := "ok"
	if rep.Failed() {
		status = "failed"
	}
	n := sink.NewNotifier(url)
	err := n.Notify(ctx, sink.RunNotice{
		RunID:      rep.RunID,
		Status:     status,
		StartedAt:  rep.StartedAt,
		FinishedAt: rep.FinishedAt,
		Counts:     rep.Counts(),
		Errors:     rep.Errors(),
	})
	if err != nil {
		// Notification failure never fails the run itself.
		slog.Warn("run notification failed", "error", err)
	}
}
