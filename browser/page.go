package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/maruishi/recolte/locator"
)

// Page is the page surface used by the login and extraction flows. Every
// wait is bounded by an explicit timeout; cancellation is honoured at these
// wait boundaries. Implementations other than the Rod one exist only in
// tests.
type Page interface {
	// Navigate loads url and waits for the load event.
	Navigate(ctx context.Context, url string, timeout time.Duration) error

	// CurrentURL reports the page's current URL.
	CurrentURL(ctx context.Context) (string, error)

	// WaitVisible blocks until the element is visible or the timeout expires.
	WaitVisible(ctx context.Context, loc locator.Entry, timeout time.Duration) error

	// Click resolves the element and clicks it.
	Click(ctx context.Context, loc locator.Entry, timeout time.Duration) error

	// Input clears the element and types text into it.
	Input(ctx context.Context, loc locator.Entry, text string, timeout time.Duration) error

	// Has reports element presence without waiting.
	Has(ctx context.Context, loc locator.Entry) (bool, error)

	// Rows reads the table addressed by loc: header names from its first
	// header row, one Row per body row.
	Rows(ctx context.Context, loc locator.Entry, timeout time.Duration) ([]Row, error)

	// Screenshot captures the full page into the manager's screenshot dir.
	Screenshot(ctx context.Context, name string) error

	// Close closes the page.
	Close() error
}

// Row is one table row. Field reads are lazy so that a stale row surfaces
// as an error on read, where the caller's retry policy applies.
type Row interface {
	Fields(ctx context.Context) (map[string]string, error)
}

type rodPage struct {
	page    *rod.Page
	shotDir string
	logger  *slog.Logger
}

func (p *rodPage) within(ctx context.Context, timeout time.Duration) *rod.Page {
	return p.page.Context(ctx).Timeout(timeout)
}

// element resolves a locator entry to a Rod element, waiting until it
// exists or the page deadline expires.
func element(pg *rod.Page, loc locator.Entry) (*rod.Element, error) {
	switch loc.Kind {
	case locator.KindXPath:
		return pg.ElementX(loc.Expression)
	case locator.KindID:
		return pg.Element("#" + loc.Expression)
	default:
		return pg.Element(loc.Expression)
	}
}

func (p *rodPage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	pg := p.within(ctx, timeout)
	if err := pg.Navigate(url); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := pg.WaitLoad(); err != nil {
		return fmt.Errorf("browser: wait load %s: %w", url, err)
	}
	return nil
}

func (p *rodPage) CurrentURL(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("browser: page info: %w", err)
	}
	return info.URL, nil
}

func (p *rodPage) WaitVisible(ctx context.Context, loc locator.Entry, timeout time.Duration) error {
	el, err := element(p.within(ctx, timeout), loc)
	if err != nil {
		return fmt.Errorf("browser: wait %s/%s: %w", loc.Group, loc.Name, err)
	}
	if err := el.WaitVisible(); err != nil {
		return fmt.Errorf("browser: wait visible %s/%s: %w", loc.Group, loc.Name, err)
	}
	return nil
}

func (p *rodPage) Click(ctx context.Context, loc locator.Entry, timeout time.Duration) error {
	el, err := element(p.within(ctx, timeout), loc)
	if err != nil {
		return fmt.Errorf("browser: find %s/%s: %w", loc.Group, loc.Name, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("browser: click %s/%s: %w", loc.Group, loc.Name, err)
	}
	return nil
}

func (p *rodPage) Input(ctx context.Context, loc locator.Entry, text string, timeout time.Duration) error {
	el, err := element(p.within(ctx, timeout), loc)
	if err != nil {
		return fmt.Errorf("browser: find %s/%s: %w", loc.Group, loc.Name, err)
	}
	// Select any prefilled value so the input replaces it.
	if err := el.SelectAllText(); err != nil {
		return fmt.Errorf("browser: select %s/%s: %w", loc.Group, loc.Name, err)
	}
	if err := el.Input(text); err != nil {
		return fmt.Errorf("browser: input %s/%s: %w", loc.Group, loc.Name, err)
	}
	return nil
}

func (p *rodPage) Has(ctx context.Context, loc locator.Entry) (bool, error) {
	pg := p.page.Context(ctx)
	var (
		ok  bool
		err error
	)
	switch loc.Kind {
	case locator.KindXPath:
		ok, _, err = pg.HasX(loc.Expression)
	case locator.KindID:
		ok, _, err = pg.Has("#" + loc.Expression)
	default:
		ok, _, err = pg.Has(loc.Expression)
	}
	if err != nil {
		return false, fmt.Errorf("browser: has %s/%s: %w", loc.Group, loc.Name, err)
	}
	return ok, nil
}

func (p *rodPage) Rows(ctx context.Context, loc locator.Entry, timeout time.Duration) ([]Row, error) {
	pg := p.within(ctx, timeout)
	tbl, err := element(pg, loc)
	if err != nil {
		return nil, fmt.Errorf("browser: find table %s/%s: %w", loc.Group, loc.Name, err)
	}

	headers, err := headerNames(tbl)
	if err != nil {
		return nil, fmt.Errorf("browser: table headers %s/%s: %w", loc.Group, loc.Name, err)
	}

	els, err := tbl.Elements("tbody tr")
	if err != nil {
		return nil, fmt.Errorf("browser: table rows %s/%s: %w", loc.Group, loc.Name, err)
	}
	if len(els) == 0 {
		// No tbody: take all rows and drop the header row.
		all, err := tbl.Elements("tr")
		if err != nil {
			return nil, fmt.Errorf("browser: table rows %s/%s: %w", loc.Group, loc.Name, err)
		}
		if len(all) > 1 {
			els = all[1:]
		}
	}

	rows := make([]Row, 0, len(els))
	for _, el := range els {
		rows = append(rows, &rodRow{el: el, headers: headers})
	}
	return rows, nil
}

func headerNames(tbl *rod.Element) ([]string, error) {
	cells, err := tbl.Elements("thead th")
	if err != nil || len(cells) == 0 {
		cells, err = tbl.Elements("tr:first-child th, tr:first-child td")
		if err != nil {
			return nil, err
		}
	}
	names := make([]string, 0, len(cells))
	for _, c := range cells {
		text, err := c.Text()
		if err != nil {
			return nil, err
		}
		names = append(names, text)
	}
	return names, nil
}

func (p *rodPage) Screenshot(ctx context.Context, name string) error {
	data, err := p.page.Context(ctx).Screenshot(true, nil)
	if err != nil {
		return fmt.Errorf("browser: screenshot: %w", err)
	}
	if err := os.MkdirAll(p.shotDir, 0o755); err != nil {
		return fmt.Errorf("browser: screenshot dir: %w", err)
	}
	path := filepath.Join(p.shotDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("browser: write screenshot: %w", err)
	}
	p.logger.Debug("browser: screenshot saved", "path", path)
	return nil
}

func (p *rodPage) Close() error {
	return p.page.Close()
}

type rodRow struct {
	el      *rod.Element
	headers []string
}

func (r *rodRow) Fields(ctx context.Context) (map[string]string, error) {
	cells, err := r.el.Context(ctx).Elements("td")
	if err != nil {
		return nil, fmt.Errorf("browser: row cells: %w", err)
	}
	fields := make(map[string]string, len(cells))
	for i, c := range cells {
		if i >= len(r.headers) {
			break
		}
		text, err := c.Text()
		if err != nil {
			return nil, fmt.Errorf("browser: cell %q: %w", r.headers[i], err)
		}
		fields[r.headers[i]] = text
	}
	return fields, nil
}
