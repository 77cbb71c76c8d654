// Package cli is the command surface. It only parses flags, builds an
// execution plan and wires the packages together; everything the run does
// is reachable through the plan alone.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	goflags "github.com/jessevdk/go-flags"

	"github.com/maruishi/recolte/extract"
	"github.com/maruishi/recolte/pipeline"
)

type commands struct {
	Run       *RunCommand
	Aggregate *AggregateCommand
}

func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "recolte"
	parser.LongDescription = "Extracts candidate and selection-process records from the recruiting console and aggregates them into phase and daily summaries."

	cmds := &commands{
		Run:       &RunCommand{globals: &globals, version: version},
		Aggregate: &AggregateCommand{globals: &globals, version: version},
	}

	parser.AddCommand("run", "Extract, aggregate and export", "Open a session, extract the selected record types, then aggregate and export the results.", cmds.Run)
	parser.AddCommand("aggregate", "Aggregate a previous export", "Recompute summaries from the most recent export without opening a browser.", cmds.Aggregate)

	return parser, &globals, cmds
}

// Run is the main entry point using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the
// matched subcommand.
func RunWithArgs(version string, args []string) error {
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("recolte %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok && flagsErr.Type == goflags.ErrHelp {
			return nil
		}
		return err
	}
	return nil
}

func setupLogging(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}

// parseTypes maps --type values to record types; no values means both.
func parseTypes(in []string) ([]extract.RecordType, error) {
	if len(in) == 0 {
		return []extract.RecordType{extract.TypeCandidate, extract.TypeEntryProcess}, nil
	}
	out := make([]extract.RecordType, 0, len(in))
	for _, s := range in {
		t := extract.RecordType(s)
		if _, ok := extract.Descriptors(t); !ok {
			return nil, fmt.Errorf("unknown record type %q (candidate | entryprocess)", s)
		}
		out = append(out, t)
	}
	return out, nil
}

// aggregationsFor requests the summaries that make sense for the selected
// types: the phase summary needs candidates, the daily table needs
// selection processes.
func aggregationsFor(types []extract.RecordType) []pipeline.Aggregation {
	var out []pipeline.Aggregation
	for _, t := range types {
		switch t {
		case extract.TypeCandidate:
			out = append(out, pipeline.AggPhaseSummary)
		case extract.TypeEntryProcess:
			out = append(out, pipeline.AggDaily)
		}
	}
	return out
}
