package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/maruishi/recolte/browser"
	"github.com/maruishi/recolte/config"
	"github.com/maruishi/recolte/locator"
)

var errFakeTimeout = errors.New("fake: wait timed out")

// fakePage scripts the browser surface for login tests.
type fakePage struct {
	interstitial    bool
	failSubmitClick bool
	failDupClick    bool
	failVerify      bool
	failLogoutClick bool
	failLogoutNav   bool

	actions []string
}

func (f *fakePage) record(format string, args ...any) {
	f.actions = append(f.actions, fmt.Sprintf(format, args...))
}

func (f *fakePage) Navigate(ctx context.Context, url string, _ time.Duration) error {
	f.record("navigate %s", url)
	if f.failLogoutNav && url == "https://example.test/index/logout" {
		return errFakeTimeout
	}
	return nil
}

func (f *fakePage) CurrentURL(context.Context) (string, error) { return "https://example.test", nil }

func (f *fakePage) WaitVisible(ctx context.Context, loc locator.Entry, _ time.Duration) error {
	f.record("wait %s/%s", loc.Group, loc.Name)
	switch loc.Name {
	case "duplicate_ok":
		if f.interstitial {
			return nil
		}
		return errFakeTimeout
	case "post_login_marker":
		if f.failVerify {
			return errFakeTimeout
		}
		return nil
	}
	return nil
}

func (f *fakePage) Click(ctx context.Context, loc locator.Entry, _ time.Duration) error {
	f.record("click %s/%s", loc.Group, loc.Name)
	switch loc.Name {
	case "submit":
		if f.failSubmitClick {
			return errFakeTimeout
		}
	case "duplicate_ok":
		if f.failDupClick {
			return errFakeTimeout
		}
	case "logout":
		if f.failLogoutClick {
			return errFakeTimeout
		}
	}
	return nil
}

func (f *fakePage) Input(ctx context.Context, loc locator.Entry, text string, _ time.Duration) error {
	f.record("input %s/%s", loc.Group, loc.Name)
	return nil
}

func (f *fakePage) Has(ctx context.Context, loc locator.Entry) (bool, error) {
	return !f.failVerify, nil
}

func (f *fakePage) Rows(context.Context, locator.Entry, time.Duration) ([]browser.Row, error) {
	return nil, nil
}

func (f *fakePage) Screenshot(context.Context, string) error { return nil }
func (f *fakePage) Close() error                             { return nil }

func testController(t *testing.T, page browser.Page) *Controller {
	t.Helper()
	reg, err := locator.New(locator.Fallbacks())
	if err != nil {
		t.Fatal(err)
	}
	c, err := New(page, reg, Config{
		LoginURL:  "https://example.test/index/login",
		LogoutURL: "https://example.test/index/logout",
		Credentials: config.Credentials{
			CompanyID: "maruishi", UserID: "operator", Secret: "s3cret",
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestOpenHappyPath(t *testing.T) {
	page := &fakePage{}
	c := testController(t, page)

	h, err := c.Open(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !h.Authenticated() {
		t.Error("handle not authenticated")
	}
	want := []State{Unauthenticated, CredentialsSubmitted, Authenticated}
	if !slices.Equal(h.History(), want) {
		t.Errorf("history: got %v, want %v", h.History(), want)
	}
}

func TestOpenWithInterstitial(t *testing.T) {
	page := &fakePage{interstitial: true}
	c := testController(t, page)

	h, err := c.Open(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []State{Unauthenticated, CredentialsSubmitted, InterstitialShown, Resolved, Authenticated}
	if !slices.Equal(h.History(), want) {
		t.Errorf("history: got %v, want %v", h.History(), want)
	}
	if !slices.Contains(page.actions, "click login/duplicate_ok") {
		t.Errorf("takeover not confirmed: %v", page.actions)
	}
}

func TestOpenInterstitialClickFailure(t *testing.T) {
	page := &fakePage{interstitial: true, failDupClick: true}
	c := testController(t, page)

	h, err := c.Open(context.Background())
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("got %v, want AuthError", err)
	}
	if authErr.Stage != StageInterstitial {
		t.Errorf("stage: got %s, want interstitial", authErr.Stage)
	}
	if h.State() != LoggedOut {
		t.Errorf("teardown missing, state %s", h.State())
	}
}

func TestOpenVerifyFailure(t *testing.T) {
	page := &fakePage{failVerify: true}
	c := testController(t, page)

	h, err := c.Open(context.Background())
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("got %v, want AuthError", err)
	}
	if authErr.Stage != StageVerify {
		t.Errorf("stage: got %s, want verify", authErr.Stage)
	}
	if h.Authenticated() {
		t.Error("handle authenticated after failure")
	}
	// Best-effort teardown runs before the error propagates.
	if h.State() != LoggedOut {
		t.Errorf("state: got %s, want logged_out", h.State())
	}
}

func TestOpenSubmitFailure(t *testing.T) {
	page := &fakePage{failSubmitClick: true}
	c := testController(t, page)

	_, err := c.Open(context.Background())
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("got %v, want AuthError", err)
	}
	if authErr.Stage != StageSubmit {
		t.Errorf("stage: got %s, want submit", authErr.Stage)
	}
}

func TestCloseIdempotent(t *testing.T) {
	page := &fakePage{}
	c := testController(t, page)

	h, err := c.Open(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Close(context.Background(), h); err != nil {
		t.Fatal(err)
	}
	before := len(page.actions)
	if err := c.Close(context.Background(), h); err != nil {
		t.Fatal(err)
	}
	if len(page.actions) != before {
		t.Error("second Close touched the page")
	}
	if err := c.Close(context.Background(), nil); err != nil {
		t.Error("Close(nil) must be a no-op")
	}
}

func TestCloseFallsBackToLogoutURL(t *testing.T) {
	page := &fakePage{failLogoutClick: true}
	c := testController(t, page)

	h, err := c.Open(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Close(context.Background(), h); err != nil {
		t.Fatal(err)
	}
	if !slices.Contains(page.actions, "navigate https://example.test/index/logout") {
		t.Errorf("no fallback navigation: %v", page.actions)
	}
	if h.State() != LoggedOut {
		t.Errorf("state: got %s", h.State())
	}
}

func TestNewRejectsMissingLocator(t *testing.T) {
	reg, err := locator.New([]locator.Entry{
		{Group: "login", Name: "company_id", Kind: locator.KindCSS, Expression: "#c"},
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = New(&fakePage{}, reg, Config{})
	if !errors.Is(err, locator.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestVerify(t *testing.T) {
	page := &fakePage{}
	c := testController(t, page)
	if err := c.Verify(context.Background()); err != nil {
		t.Fatal(err)
	}
	page.failVerify = true
	if err := c.Verify(context.Background()); !errors.Is(err, ErrSessionLost) {
		t.Fatalf("got %v, want ErrSessionLost", err)
	}
}
