package extract

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/maruishi/recolte/browser"
	"github.com/maruishi/recolte/locator"
)

// Options tunes one extraction.
type Options struct {
	// Targets restricts the yielded records to these identifiers. Empty =
	// all records.
	Targets []string

	// MaxPages caps the pagination loop. Default: 50.
	MaxPages int

	// RetryLimit and RetryBase bound the transient-failure retries.
	// Defaults: 3 retries starting at 500ms.
	RetryLimit int
	RetryBase  time.Duration

	// ElementTimeout bounds each element wait. Default: 10s.
	ElementTimeout time.Duration

	// Limiter paces page advances, nil = no pacing.
	Limiter *rate.Limiter

	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.MaxPages <= 0 {
		o.MaxPages = 50
	}
	if o.RetryLimit <= 0 {
		o.RetryLimit = 3
	}
	if o.RetryBase <= 0 {
		o.RetryBase = 500 * time.Millisecond
	}
	if o.ElementTimeout <= 0 {
		o.ElementTimeout = 10 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Stats summarises a stream's progress so far.
type Stats struct {
	Yielded int // records handed to the caller
	Skipped int // rows skipped with a warning after retries
	Pages   int // pages read
}

// Extractor produces record streams from an authenticated page.
type Extractor struct {
	reg *locator.Registry
}

// New creates an Extractor resolving against reg.
func New(reg *locator.Registry) *Extractor {
	return &Extractor{reg: reg}
}

// Extract navigates to the record type's list view and returns a Stream
// positioned before page 1. Locator resolution failures are configuration
// errors; navigation failures abort with an *AbortError.
func (e *Extractor) Extract(ctx context.Context, page browser.Page, desc Descriptor, opts Options) (*Stream, error) {
	opts.defaults()

	table, err := e.reg.ResolveRef(desc.Table)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	next, err := e.reg.ResolveRef(desc.NextPage)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	nav := make([]locator.Entry, 0, len(desc.Nav))
	for _, ref := range desc.Nav {
		entry, err := e.reg.ResolveRef(ref)
		if err != nil {
			return nil, fmt.Errorf("extract: %w", err)
		}
		nav = append(nav, entry)
	}

	for _, entry := range nav {
		entry := entry
		err := retry(ctx, opts.RetryLimit, opts.RetryBase, func() error {
			return page.Click(ctx, entry, opts.ElementTimeout)
		})
		if err != nil {
			return nil, &AbortError{Type: desc.Type, Err: fmt.Errorf("navigate to list: %w", err)}
		}
	}
	err = retry(ctx, opts.RetryLimit, opts.RetryBase, func() error {
		return page.WaitVisible(ctx, table, opts.ElementTimeout)
	})
	if err != nil {
		return nil, &AbortError{Type: desc.Type, Err: fmt.Errorf("list view not rendered: %w", err)}
	}

	var remaining map[string]bool
	if len(opts.Targets) > 0 {
		remaining = make(map[string]bool, len(opts.Targets))
		for _, t := range opts.Targets {
			remaining[t] = true
		}
	}

	return &Stream{
		page:      page,
		desc:      desc,
		opts:      opts,
		table:     table,
		next:      next,
		remaining: remaining,
	}, nil
}

// Stream is a lazy, forward-only record sequence. It is finite and not
// restartable: a fresh extraction re-reads from page 1.
type Stream struct {
	page      browser.Page
	desc      Descriptor
	opts      Options
	table     locator.Entry
	next      locator.Entry
	remaining map[string]bool

	buf   []NormalizedRecord
	idx   int
	stats Stats
	err   *AbortError
	done  bool
}

// Next yields the next record. It returns false when the stream ends,
// whether normally or by abort; check Err afterwards.
func (s *Stream) Next(ctx context.Context) (NormalizedRecord, bool) {
	for {
		if s.done {
			return NormalizedRecord{}, false
		}
		if s.idx < len(s.buf) {
			rec := s.buf[s.idx]
			s.idx++
			s.stats.Yielded++
			return rec, true
		}
		if !s.advance(ctx) {
			s.done = true
			return NormalizedRecord{}, false
		}
	}
}

// Err reports the abort that ended the stream, or nil for a normal end.
// Valid once Next has returned false.
func (s *Stream) Err() error {
	if s.err == nil {
		return nil
	}
	return s.err
}

// Stats reports progress so far.
func (s *Stream) Stats() Stats { return s.stats }

// advance reads the next page into the buffer. It returns false when the
// stream is finished, normally or not.
func (s *Stream) advance(ctx context.Context) bool {
	log := s.opts.Logger

	if s.err != nil {
		return false
	}
	if s.stats.Pages >= s.opts.MaxPages {
		log.Debug("extract: page budget reached", "type", s.desc.Type, "pages", s.stats.Pages)
		return false
	}
	if s.remaining != nil && len(s.remaining) == 0 && s.desc.UnorderedSafe {
		log.Debug("extract: all targets found, stopping early", "type", s.desc.Type)
		return false
	}

	if s.stats.Pages > 0 {
		ok, err := s.page.Has(ctx, s.next)
		if err != nil {
			s.fail(fmt.Errorf("pagination probe: %w", err))
			return false
		}
		if !ok {
			return false // last page
		}
		if s.opts.Limiter != nil {
			if err := s.opts.Limiter.Wait(ctx); err != nil {
				s.fail(err)
				return false
			}
		}
		err = retry(ctx, s.opts.RetryLimit, s.opts.RetryBase, func() error {
			return s.page.Click(ctx, s.next, s.opts.ElementTimeout)
		})
		if err != nil {
			s.fail(fmt.Errorf("pagination advance: %w", err))
			return false
		}
	}

	var rows []browser.Row
	err := retry(ctx, s.opts.RetryLimit, s.opts.RetryBase, func() error {
		var err error
		rows, err = s.page.Rows(ctx, s.table, s.opts.ElementTimeout)
		return err
	})
	if err != nil {
		s.fail(fmt.Errorf("page read: %w", err))
		return false
	}

	pageNo := s.stats.Pages + 1
	s.buf = s.buf[:0]
	s.idx = 0

	for i, row := range rows {
		var fields map[string]string
		err := retry(ctx, s.opts.RetryLimit, s.opts.RetryBase, func() error {
			var err error
			fields, err = row.Fields(ctx)
			return err
		})
		if err != nil {
			// Partial results beat total failure: drop the rest of this
			// page and move on.
			skipped := len(rows) - i
			s.stats.Skipped += skipped
			log.Warn("extract: skipping remaining rows on page",
				"type", s.desc.Type, "page", pageNo, "skipped", skipped, "error", err)
			break
		}

		raw := RawRecord{Fields: fields, Page: pageNo, ExtractedAt: time.Now()}
		rec := s.desc.Schema.Normalize(s.desc.Type, raw)

		if s.remaining != nil {
			if rec.ID == "" || !s.remaining[rec.ID] {
				continue
			}
			if s.desc.UnorderedSafe {
				delete(s.remaining, rec.ID)
			}
		}
		s.buf = append(s.buf, rec)
	}

	s.stats.Pages = pageNo
	return true
}

func (s *Stream) fail(err error) {
	s.err = &AbortError{
		Type:     s.desc.Type,
		Yielded:  s.stats.Yielded,
		LastPage: s.stats.Pages,
		Err:      err,
	}
}

// Result is a fully drained extraction.
type Result struct {
	Type     RecordType
	Records  []NormalizedRecord
	Excluded int // invalid records among Records
	Stats    Stats
}

// Collect drains a stream. On abort it returns the partial Result together
// with the *AbortError.
func Collect(ctx context.Context, s *Stream) (*Result, error) {
	res := &Result{Type: s.desc.Type}
	for {
		rec, ok := s.Next(ctx)
		if !ok {
			break
		}
		res.Records = append(res.Records, rec)
		if !rec.Valid {
			res.Excluded++
		}
	}
	res.Stats = s.Stats()
	return res, s.Err()
}
