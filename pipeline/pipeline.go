// Package pipeline sequences session, extraction, aggregation and export
// into one run. The orchestrator owns nothing downstream: sessions come
// from a provider, records go to exporters, and every outcome lands in
// the run report rather than in a panic or a silent drop.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maruishi/recolte/aggregate"
	"github.com/maruishi/recolte/browser"
	"github.com/maruishi/recolte/extract"
	"github.com/maruishi/recolte/idgen"
	"github.com/maruishi/recolte/session"
)

// Strategy selects how sessions map onto record types.
type Strategy string

const (
	// StrategySeparate opens one session per record type, so one type's
	// auth failure never blocks the other.
	StrategySeparate Strategy = "separate"

	// StrategyShared opens a single session for all record types. Fewer
	// logins, but a lost session aborts every remaining type.
	StrategyShared Strategy = "shared"
)

// Aggregation names one summary the run should compute.
type Aggregation string

const (
	AggPhaseSummary Aggregation = "phase-summary"
	AggDaily        Aggregation = "daily-entryprocess"
)

// ErrPlan marks an execution plan the runner refuses to start.
var ErrPlan = errors.New("pipeline: invalid plan")

// Plan is one run's resolved set of choices. It is built once by the
// caller and never modified during the run.
type Plan struct {
	Types          []extract.RecordType
	Strategy       Strategy
	Aggregations   []Aggregation
	SkipExtraction bool

	// Targets restricts extraction to these record identifiers.
	Targets  []string
	MaxPages int
}

// Validate rejects plans the runner cannot execute.
func (p Plan) Validate() error {
	if len(p.Types) == 0 {
		return fmt.Errorf("%w: no record types", ErrPlan)
	}
	for _, t := range p.Types {
		if _, ok := extract.Descriptors(t); !ok {
			return fmt.Errorf("%w: unknown record type %q", ErrPlan, t)
		}
	}
	switch p.Strategy {
	case StrategySeparate, StrategyShared:
	default:
		if !p.SkipExtraction {
			return fmt.Errorf("%w: unknown strategy %q", ErrPlan, p.Strategy)
		}
	}
	return nil
}

func (p Plan) wants(a Aggregation) bool {
	for _, x := range p.Aggregations {
		if x == a {
			return true
		}
	}
	return false
}

// Session is an authenticated browser session as the orchestrator sees
// it. *session.Controller satisfies this through a small adapter in the
// CLI layer.
type Session interface {
	Page() browser.Page
	Verify(ctx context.Context) error
	Close(ctx context.Context) error
}

// SessionProvider opens fresh authenticated sessions.
type SessionProvider interface {
	Open(ctx context.Context) (Session, error)
}

// RecordSource supplies previously exported records for skip-extraction
// runs. *sink.Store satisfies this.
type RecordSource interface {
	LoadRecords(ctx context.Context, typ extract.RecordType) ([]extract.NormalizedRecord, error)
}

// Exporter receives one record type's finished extraction.
type Exporter interface {
	Export(ctx context.Context, runID string, desc extract.Descriptor, records []extract.NormalizedRecord) error
}

// Runner executes plans.
type Runner struct {
	provider   SessionProvider
	extractor  *extract.Extractor
	source     RecordSource
	exporters  []Exporter
	classifier *aggregate.Classifier
	newID      idgen.Generator
	logger     *slog.Logger

	extractOpts extract.Options
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithSource sets the record source for skip-extraction runs.
func WithSource(s RecordSource) RunnerOption {
	return func(r *Runner) { r.source = s }
}

// WithExporters sets the collaborators receiving extracted records.
func WithExporters(es ...Exporter) RunnerOption {
	return func(r *Runner) { r.exporters = es }
}

// WithClassifier overrides the default phase classification rules.
func WithClassifier(c *aggregate.Classifier) RunnerOption {
	return func(r *Runner) { r.classifier = c }
}

// WithIDGenerator overrides the run ID generator.
func WithIDGenerator(g idgen.Generator) RunnerOption {
	return func(r *Runner) { r.newID = g }
}

// WithLogger sets the runner's logger.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// WithExtractOptions sets base extraction options; the plan's targets and
// page cap are layered on top per run.
func WithExtractOptions(opts extract.Options) RunnerOption {
	return func(r *Runner) { r.extractOpts = opts }
}

// NewRunner creates a Runner drawing sessions from provider and records
// through extractor.
func NewRunner(provider SessionProvider, extractor *extract.Extractor, opts ...RunnerOption) *Runner {
	r := &Runner{
		provider:   provider,
		extractor:  extractor,
		classifier: aggregate.NewClassifier(aggregate.DefaultRules()),
		newID:      idgen.Prefixed("run", idgen.UUIDv7()),
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run executes one plan. The report is never nil: every failure is
// recorded per record type (or on the report itself for plan errors), and
// whatever was extracted before a failure stays in the report.
func (r *Runner) Run(ctx context.Context, plan Plan) *Report {
	rep := &Report{
		RunID:     r.newID(),
		Strategy:  plan.Strategy,
		StartedAt: time.Now(),
	}
	defer func() { rep.FinishedAt = time.Now() }()

	if err := plan.Validate(); err != nil {
		rep.Err = err
		return rep
	}

	log := r.logger.With("run_id", rep.RunID)
	log.Info("pipeline: run starting",
		"types", plan.Types, "strategy", plan.Strategy, "skip_extraction", plan.SkipExtraction)

	switch {
	case plan.SkipExtraction:
		r.runFromSource(ctx, plan, rep, log)
	case plan.Strategy == StrategyShared:
		r.runShared(ctx, plan, rep, log)
	default:
		r.runSeparate(ctx, plan, rep, log)
	}

	r.aggregateReport(plan, rep)
	log.Info("pipeline: run finished", "failed", rep.Failed())
	return rep
}

func (r *Runner) runSeparate(ctx context.Context, plan Plan, rep *Report, log *slog.Logger) {
	for _, typ := range plan.Types {
		tr := rep.add(typ)
		sess, err := r.provider.Open(ctx)
		if err != nil {
			// Isolated per type: the next type still gets its own login.
			tr.Err = err
			log.Error("pipeline: session open failed", "type", typ, "error", err)
			continue
		}
		r.extractType(ctx, sess, plan, tr, log)
		if err := sess.Close(ctx); err != nil {
			log.Warn("pipeline: session close failed", "type", typ, "error", err)
		}
	}
}

func (r *Runner) runShared(ctx context.Context, plan Plan, rep *Report, log *slog.Logger) {
	sess, err := r.provider.Open(ctx)
	if err != nil {
		for _, typ := range plan.Types {
			rep.add(typ).Err = err
		}
		log.Error("pipeline: session open failed", "error", err)
		return
	}
	defer func() {
		if err := sess.Close(ctx); err != nil {
			log.Warn("pipeline: session close failed", "error", err)
		}
	}()

	lost := false
	var lostErr error
	for _, typ := range plan.Types {
		tr := rep.add(typ)
		if lost {
			tr.Err = fmt.Errorf("pipeline: aborted: %w", lostErr)
			continue
		}
		r.extractType(ctx, sess, plan, tr, log)
		if tr.Aborted {
			// An abort in shared mode may mean the session itself died;
			// probe before touching the next type.
			if err := sess.Verify(ctx); errors.Is(err, session.ErrSessionLost) {
				lost = true
				lostErr = err
				log.Error("pipeline: shared session lost", "after_type", typ)
			}
		}
	}
}

func (r *Runner) runFromSource(ctx context.Context, plan Plan, rep *Report, log *slog.Logger) {
	if r.source == nil {
		rep.Err = fmt.Errorf("%w: skip-extraction without a record source", ErrPlan)
		return
	}
	for _, typ := range plan.Types {
		tr := rep.add(typ)
		records, err := r.source.LoadRecords(ctx, typ)
		if err != nil {
			tr.Err = err
			log.Error("pipeline: record load failed", "type", typ, "error", err)
			continue
		}
		tr.Records = records
		tr.Extracted = len(records)
		for _, rec := range records {
			if !rec.Valid {
				tr.Excluded++
			}
		}
		log.Info("pipeline: records loaded", "type", typ, "count", len(records))
	}
}

func (r *Runner) extractType(ctx context.Context, sess Session, plan Plan, tr *TypeReport, log *slog.Logger) {
	desc, _ := extract.Descriptors(tr.Type)

	opts := r.extractOpts
	opts.Targets = plan.Targets
	if plan.MaxPages > 0 {
		opts.MaxPages = plan.MaxPages
	}
	opts.Logger = log

	stream, err := r.extractor.Extract(ctx, sess.Page(), desc, opts)
	if err != nil {
		tr.recordFailure(err)
		log.Error("pipeline: extraction failed to start", "type", tr.Type, "error", err)
		return
	}
	res, err := extract.Collect(ctx, stream)
	tr.Records = res.Records
	tr.Extracted = len(res.Records)
	tr.Excluded = res.Excluded
	tr.Skipped = res.Stats.Skipped
	tr.Pages = res.Stats.Pages
	if err != nil {
		// Partial results stay in the report; only the abort is recorded.
		tr.recordFailure(err)
		log.Error("pipeline: extraction aborted", "type", tr.Type,
			"yielded", tr.Extracted, "error", err)
	} else {
		log.Info("pipeline: extraction done", "type", tr.Type,
			"records", tr.Extracted, "pages", tr.Pages, "skipped", tr.Skipped)
	}

	r.export(ctx, desc, tr, log)
}

func (r *Runner) export(ctx context.Context, desc extract.Descriptor, tr *TypeReport, log *slog.Logger) {
	if len(tr.Records) == 0 {
		return
	}
	for _, ex := range r.exporters {
		if err := ex.Export(ctx, tr.RunID, desc, tr.Records); err != nil {
			tr.ExportErrs = append(tr.ExportErrs, err)
			log.Error("pipeline: export failed", "type", tr.Type, "error", err)
		}
	}
}

// aggregateReport computes requested summaries from whatever was
// extracted or loaded. One type's failure never suppresses another
// type's aggregation.
func (r *Runner) aggregateReport(plan Plan, rep *Report) {
	if plan.wants(AggPhaseSummary) {
		for _, tr := range rep.Types {
			if tr.Type != extract.TypeCandidate || tr.Records == nil {
				continue
			}
			s := aggregate.SummarizePhases(tr.Records, r.classifier)
			if rep.PhaseSummary == nil {
				rep.PhaseSummary = s
			} else {
				rep.PhaseSummary = aggregate.MergeSummaries(rep.PhaseSummary, s)
			}
		}
	}
	if plan.wants(AggDaily) {
		for _, tr := range rep.Types {
			if tr.Type != extract.TypeEntryProcess || tr.Records == nil {
				continue
			}
			t := aggregate.BuildDaily(tr.Records)
			if rep.Daily == nil {
				rep.Daily = t
			} else {
				rep.Daily = aggregate.MergeDaily(rep.Daily, t)
			}
		}
	}
}
