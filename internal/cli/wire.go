package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/maruishi/recolte/browser"
	"github.com/maruishi/recolte/config"
	"github.com/maruishi/recolte/extract"
	"github.com/maruishi/recolte/locator"
	"github.com/maruishi/recolte/pipeline"
	"github.com/maruishi/recolte/session"
	"github.com/maruishi/recolte/sink"
)

// loadRegistry builds the locator registry: the selector CSV when given,
// backed by the built-in selectors for anything the file omits.
func loadRegistry(path string) (*locator.Registry, error) {
	if path == "" {
		return locator.New(locator.Fallbacks())
	}
	reg, err := locator.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return reg.WithFallbacks(locator.Fallbacks()), nil
}

// sessionProvider opens one authenticated page per call.
type sessionProvider struct {
	mgr *browser.Manager
	reg *locator.Registry
	cfg session.Config
}

func (p *sessionProvider) Open(ctx context.Context) (pipeline.Session, error) {
	page, err := p.mgr.NewPage(ctx)
	if err != nil {
		return nil, err
	}
	ctrl, err := session.New(page, p.reg, p.cfg)
	if err != nil {
		page.Close()
		return nil, err
	}
	h, err := ctrl.Open(ctx)
	if err != nil {
		page.Close()
		return nil, err
	}
	return &managedSession{page: page, ctrl: ctrl, handle: h}, nil
}

type managedSession struct {
	page   browser.Page
	ctrl   *session.Controller
	handle *session.Handle
}

func (s *managedSession) Page() browser.Page { return s.page }

func (s *managedSession) Verify(ctx context.Context) error { return s.ctrl.Verify(ctx) }

func (s *managedSession) Close(ctx context.Context) error {
	err := s.ctrl.Close(ctx, s.handle)
	if cerr := s.page.Close(); err == nil {
		err = cerr
	}
	return err
}

// storeExporter persists extracted records under the current run.
type storeExporter struct {
	store *sink.Store
}

func (e *storeExporter) Export(ctx context.Context, runID string, desc extract.Descriptor, records []extract.NormalizedRecord) error {
	return e.store.SaveRecords(ctx, runID, desc.Type, records)
}

// csvExporter writes one CSV file per record type.
type csvExporter struct {
	w *sink.CSVWriter
}

func (e *csvExporter) Export(_ context.Context, _ string, desc extract.Descriptor, records []extract.NormalizedRecord) error {
	_, err := e.w.Write(desc, records)
	return err
}

// sessionConfig assembles the login sequence's configuration.
func sessionConfig(cfg *config.Config) (session.Config, error) {
	creds, err := cfg.Credentials()
	if err != nil {
		return session.Config{}, err
	}
	return session.Config{
		LoginURL:            cfg.LoginURL(),
		LogoutURL:           cfg.LogoutURL(),
		Credentials:         creds,
		NavigateTimeout:     cfg.Timeouts.Navigate,
		SubmitTimeout:       cfg.Timeouts.Submit,
		InterstitialTimeout: cfg.Timeouts.Interstitial,
		VerifyTimeout:       cfg.Timeouts.Verify,
		LogoutTimeout:       cfg.Timeouts.Logout,
	}, nil
}

func browserConfig(cfg *config.Config, headless bool) browser.Config {
	return browser.Config{
		Remote:           cfg.Browser.Remote,
		Headless:         headless || cfg.Browser.Headless,
		XvfbDisplay:      cfg.Browser.XvfbDisplay,
		ResourceBlocking: cfg.Browser.ResourceBlocking,
		ScreenshotDir:    cfg.Browser.ScreenshotDir,
	}
}

func loadConfig(globals *GlobalFlags) (*config.Config, error) {
	cfg, err := config.Load(globals.Config, globals.Profile)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", globals.Config, err)
	}
	return cfg, nil
}

func exitOnFailure(rep *pipeline.Report) error {
	if rep.Failed() {
		return fmt.Errorf("run %s finished with errors", rep.RunID)
	}
	return nil
}

func renderReport(rep *pipeline.Report) {
	rep.Render(os.Stdout)
}
