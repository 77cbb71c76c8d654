package cli

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config    string `long:"config" description:"Path to config file" default:"config.yaml"`
	Selectors string `long:"selectors" description:"Path to the selector CSV (falls back to built-in selectors)"`
	Profile   string `long:"profile" description:"Environment profile from the config file"`
	LogLevel  string `long:"log-level" description:"Log level: debug | info | warn | error" default:"info"`
	Version   bool   `long:"version" description:"Show version and exit"`
}

// RunCommand — open a session, extract the selected record types,
// aggregate and export.
type RunCommand struct {
	Types         []string `long:"type" description:"Record type to extract: candidate | entryprocess (repeatable; default both)"`
	SharedSession bool     `long:"shared-session" description:"Use one session for all record types instead of one per type"`
	Headless      bool     `long:"headless" description:"Run the browser headless"`
	Targets       []string `long:"target" description:"Restrict extraction to these record identifiers (repeatable)"`
	MaxPages      int      `long:"max-pages" description:"Override the pagination cap"`
	SkipAggregate bool     `long:"skip-aggregate" description:"Extract and export without computing summaries"`

	globals *GlobalFlags
	version string
}

// AggregateCommand — recompute summaries from the most recent export,
// without opening a browser.
type AggregateCommand struct {
	Types []string `long:"type" description:"Record type to aggregate: candidate | entryprocess (repeatable; default both)"`

	globals *GlobalFlags
	version string
}
