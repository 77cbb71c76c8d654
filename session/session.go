// Package session owns one authenticated browser session: login, duplicate
// session takeover, post-login verification, and logout.
//
// The login sequence is a small state machine rather than a chain of
// conditionals because the duplicate-session interstitial makes presence
// and absence both first-class paths:
//
//	Unauthenticated → CredentialsSubmitted → {InterstitialShown → Resolved}
//	               → Authenticated → LoggedOut
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maruishi/recolte/browser"
	"github.com/maruishi/recolte/config"
	"github.com/maruishi/recolte/locator"
)

// Config configures a Controller.
type Config struct {
	LoginURL    string
	LogoutURL   string // direct fallback when the logout control cannot be clicked
	Credentials config.Credentials

	NavigateTimeout     time.Duration
	SubmitTimeout       time.Duration
	InterstitialTimeout time.Duration
	VerifyTimeout       time.Duration
	LogoutTimeout       time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.NavigateTimeout <= 0 {
		c.NavigateTimeout = 30 * time.Second
	}
	if c.SubmitTimeout <= 0 {
		c.SubmitTimeout = 10 * time.Second
	}
	if c.InterstitialTimeout <= 0 {
		c.InterstitialTimeout = 3 * time.Second
	}
	if c.VerifyTimeout <= 0 {
		c.VerifyTimeout = 20 * time.Second
	}
	if c.LogoutTimeout <= 0 {
		c.LogoutTimeout = 10 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Controller drives login and logout on one page. It exclusively owns the
// Handle it returns; callers must not share a handle across concurrent
// extractions.
type Controller struct {
	page browser.Page
	cfg  Config

	companyID locator.Entry
	username  locator.Entry
	password  locator.Entry
	submit    locator.Entry
	dupOK     locator.Entry
	marker    locator.Entry
	logout    locator.Entry
}

// New creates a Controller. All locators are resolved up front so that a
// missing entry fails the run before any browser interaction.
func New(page browser.Page, reg *locator.Registry, cfg Config) (*Controller, error) {
	cfg.defaults()
	c := &Controller{page: page, cfg: cfg}

	for _, bind := range []struct {
		dst *locator.Entry
		ref locator.Ref
	}{
		{&c.companyID, locator.Ref{Group: "login", Name: "company_id"}},
		{&c.username, locator.Ref{Group: "login", Name: "username"}},
		{&c.password, locator.Ref{Group: "login", Name: "password"}},
		{&c.submit, locator.Ref{Group: "login", Name: "submit"}},
		{&c.dupOK, locator.Ref{Group: "login", Name: "duplicate_ok"}},
		{&c.marker, locator.Ref{Group: "menu", Name: "post_login_marker"}},
		{&c.logout, locator.Ref{Group: "menu", Name: "logout"}},
	} {
		e, err := reg.ResolveRef(bind.ref)
		if err != nil {
			return nil, fmt.Errorf("session: %w", err)
		}
		*bind.dst = e
	}
	return c, nil
}

// Open performs the full login sequence and returns an authenticated
// Handle. On any failure it attempts best-effort teardown before returning
// an *AuthError carrying the failed stage, so a half-logged-in session is
// never left behind.
func (c *Controller) Open(ctx context.Context) (*Handle, error) {
	log := c.cfg.Logger
	h := newHandle()

	fail := func(stage Stage, err error) (*Handle, error) {
		_ = c.page.Screenshot(ctx, fmt.Sprintf("login_failed_%s.png", stage))
		c.teardown(ctx, h)
		return h, &AuthError{Stage: stage, Err: err}
	}

	log.Info("session: logging in", "url", c.cfg.LoginURL, "credentials", c.cfg.Credentials)

	if err := c.page.Navigate(ctx, c.cfg.LoginURL, c.cfg.NavigateTimeout); err != nil {
		return fail(StageSubmit, err)
	}
	if err := c.page.Input(ctx, c.companyID, c.cfg.Credentials.CompanyID, c.cfg.SubmitTimeout); err != nil {
		return fail(StageSubmit, err)
	}
	if err := c.page.Input(ctx, c.username, c.cfg.Credentials.UserID, c.cfg.SubmitTimeout); err != nil {
		return fail(StageSubmit, err)
	}
	if err := c.page.Input(ctx, c.password, c.cfg.Credentials.Secret, c.cfg.SubmitTimeout); err != nil {
		return fail(StageSubmit, err)
	}
	if err := c.page.Click(ctx, c.submit, c.cfg.SubmitTimeout); err != nil {
		return fail(StageSubmit, err)
	}
	h.transition(CredentialsSubmitted)

	// The duplicate-session interstitial appears when another login holds
	// the account. Absence within the short timeout is the normal path.
	if err := c.page.WaitVisible(ctx, c.dupOK, c.cfg.InterstitialTimeout); err == nil {
		h.transition(InterstitialShown)
		log.Warn("session: duplicate session interstitial shown, taking over")
		if err := c.page.Click(ctx, c.dupOK, c.cfg.SubmitTimeout); err != nil {
			return fail(StageInterstitial, err)
		}
		h.transition(Resolved)
	} else {
		log.Debug("session: no duplicate session interstitial")
	}

	if err := c.page.WaitVisible(ctx, c.marker, c.cfg.VerifyTimeout); err != nil {
		return fail(StageVerify, err)
	}
	h.transition(Authenticated)
	log.Info("session: authenticated", "created_at", h.CreatedAt())
	return h, nil
}

// Close logs the session out. It is idempotent and safe to call on a
// handle in any state; cleanup is best-effort and an error is only
// informational.
func (c *Controller) Close(ctx context.Context, h *Handle) error {
	if h == nil || h.State() == LoggedOut {
		return nil
	}
	defer h.transition(LoggedOut)

	if err := c.page.Click(ctx, c.logout, c.cfg.LogoutTimeout); err != nil {
		c.cfg.Logger.Warn("session: logout click failed, navigating directly",
			"error", err, "url", c.cfg.LogoutURL)
		if err := c.page.Navigate(ctx, c.cfg.LogoutURL, c.cfg.NavigateTimeout); err != nil {
			return fmt.Errorf("session: logout: %w", err)
		}
	}
	c.cfg.Logger.Info("session: logged out")
	return nil
}

// Verify reports whether the session still looks authenticated by probing
// for the post-login marker. Used to tell a lost session apart from a
// page-local extraction failure.
func (c *Controller) Verify(ctx context.Context) error {
	ok, err := c.page.Has(ctx, c.marker)
	if err != nil {
		return fmt.Errorf("session: verify: %w", err)
	}
	if !ok {
		return ErrSessionLost
	}
	return nil
}

// teardown is the failure-path cleanup: ignore errors, never leave a
// partial login dangling.
func (c *Controller) teardown(ctx context.Context, h *Handle) {
	if err := c.Close(ctx, h); err != nil {
		c.cfg.Logger.Warn("session: teardown", "error", err)
	}
}
