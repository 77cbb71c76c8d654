package cli

import (
	"testing"

	goflags "github.com/jessevdk/go-flags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maruishi/recolte/extract"
	"github.com/maruishi/recolte/pipeline"
)

func TestParseTypesDefaultsToBoth(t *testing.T) {
	types, err := parseTypes(nil)
	require.NoError(t, err)
	assert.Equal(t, []extract.RecordType{extract.TypeCandidate, extract.TypeEntryProcess}, types)
}

func TestParseTypesExplicit(t *testing.T) {
	types, err := parseTypes([]string{"entryprocess"})
	require.NoError(t, err)
	assert.Equal(t, []extract.RecordType{extract.TypeEntryProcess}, types)
}

func TestParseTypesRejectsUnknown(t *testing.T) {
	_, err := parseTypes([]string{"companies"})
	assert.ErrorContains(t, err, "companies")
}

func TestAggregationsFollowTypes(t *testing.T) {
	aggs := aggregationsFor([]extract.RecordType{extract.TypeCandidate})
	assert.Equal(t, []pipeline.Aggregation{pipeline.AggPhaseSummary}, aggs)

	aggs = aggregationsFor([]extract.RecordType{extract.TypeCandidate, extract.TypeEntryProcess})
	assert.Equal(t, []pipeline.Aggregation{pipeline.AggPhaseSummary, pipeline.AggDaily}, aggs)
}

func TestBuildParserRegistersCommands(t *testing.T) {
	parser, _, cmds := buildParser("test")
	assert.NotNil(t, parser.Find("run"))
	assert.NotNil(t, parser.Find("aggregate"))
	assert.NotNil(t, cmds.Run)
	assert.NotNil(t, cmds.Aggregate)
}

func TestRunCommandFlagParsing(t *testing.T) {
	parser, globals, cmds := buildParser("test")
	// ParseArgs stops before Execute only on error, so feed a parse-only
	// failure path: unknown flag.
	_, err := parser.ParseArgs([]string{"run", "--no-such-flag"})
	require.Error(t, err)

	parser, globals, cmds = buildParser("test")
	parser.CommandHandler = func(cmd goflags.Commander, args []string) error { return nil }
	_, err = parser.ParseArgs([]string{
		"run", "--type", "candidate", "--shared-session", "--headless",
		"--target", "1001", "--target", "1002", "--max-pages", "5",
		"--config", "custom.yaml", "--profile", "production", "--log-level", "debug",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"candidate"}, cmds.Run.Types)
	assert.True(t, cmds.Run.SharedSession)
	assert.True(t, cmds.Run.Headless)
	assert.Equal(t, []string{"1001", "1002"}, cmds.Run.Targets)
	assert.Equal(t, 5, cmds.Run.MaxPages)
	assert.Equal(t, "custom.yaml", globals.Config)
	assert.Equal(t, "production", globals.Profile)
	assert.Equal(t, "debug", globals.LogLevel)
}

func TestVersionShortCircuits(t *testing.T) {
	err := RunWithArgs("1.2.3", []string{"--version"})
	assert.NoError(t, err)
}
