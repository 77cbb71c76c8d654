package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/maruishi/recolte/pipeline"
	"github.com/maruishi/recolte/sink"
)

// Execute implements the go-flags Commander interface for AggregateCommand.
func (c *AggregateCommand) Execute(args []string) error {
	logger := setupLogging(c.globals.LogLevel)

	types, err := parseTypes(c.Types)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(c.globals)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := sink.OpenStore(cfg.Export.StorePath)
	if err != nil {
		return err
	}
	defer store.Close()

	// No browser, no extraction: the plan replays the latest export.
	runner := pipeline.NewRunner(nil, nil,
		pipeline.WithLogger(logger),
		pipeline.WithSource(store),
	)
	rep := runner.Run(ctx, pipeline.Plan{
		Types:          types,
		SkipExtraction: true,
		Aggregations:   aggregationsFor(types),
	})

	renderReport(rep)
	return exitOnFailure(rep)
}
