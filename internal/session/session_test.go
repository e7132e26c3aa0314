package session

import (
	"context"
	"errors"
	"testing"

	"erpfetch/internal/browser/browsertest"
	"erpfetch/internal/locators"
	"erpfetch/internal/logging"
	"erpfetch/internal/services"
)

func testOptions() Options {
	return Options{
		BaseURL:            "https://erp.test",
		Email:              "ops@example.com",
		Password:           "secret",
		AuthenticatedTitle: "Dashboard",
		LoginRetries:       3,
	}
}

func loginForm() locators.Login {
	return locators.Login{Email: "[name='email']", Password: "[name='password']"}
}

// acceptingERP shows the login form after every reload and flips the title
// when Enter is pressed on the password field.
func acceptingERP(d *browsertest.Driver) {
	d.OnNavigate = func(d *browsertest.Driver, _ string) {
		d.SetTitle("Sign in")
		d.Show("[name='email']")
		d.Add("[name='password']").OnClick = func(d *browsertest.Driver) { d.SetTitle("ERP | Dashboard") }
	}
}

// rejectingERP never leaves the login page.
func rejectingERP(d *browsertest.Driver) {
	d.OnNavigate = func(d *browsertest.Driver, _ string) {
		d.SetTitle("Sign in")
		d.Show("[name='email']")
		d.Show("[name='password']")
	}
}

func TestLoginSucceeds(t *testing.T) {
	launcher := &browsertest.Launcher{Setup: acceptingERP}
	c := New(launcher, testOptions(), loginForm(), logging.NewNop())

	if err := c.Start(context.Background(), t.TempDir()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if c.State() != StateStarted {
		t.Fatalf("state after start = %s", c.State())
	}
	if err := c.Login(context.Background()); err != nil {
		t.Fatalf("Login: %v", err)
	}
	snap := c.Snapshot()
	if !snap.LoggedIn || snap.AttemptCount != 0 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	d := launcher.Drivers[0]
	if len(d.CallsFor("HardReload")) != 1 {
		t.Fatalf("expected one hard reload, calls=%v", d.Calls)
	}
	if el := d.Element("[name='password']"); el == nil || el.Value != "secret" {
		t.Fatal("password not filled")
	}
}

func TestLoginAlreadyAuthenticatedIsNoop(t *testing.T) {
	launcher := &browsertest.Launcher{Setup: func(d *browsertest.Driver) {
		d.OnNavigate = func(d *browsertest.Driver, _ string) { d.SetTitle("Dashboard") }
	}}
	c := New(launcher, testOptions(), loginForm(), logging.NewNop())
	if err := c.Start(context.Background(), t.TempDir()); err != nil {
		t.Fatal(err)
	}
	if err := c.Login(context.Background()); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if fills := launcher.Drivers[0].CallsFor("Fill"); len(fills) != 0 {
		t.Fatalf("credentials submitted on an authenticated page: %v", fills)
	}
}

func TestLoginThreeFailuresEscalatesWithoutFourthAttempt(t *testing.T) {
	launcher := &browsertest.Launcher{Setup: rejectingERP}
	c := New(launcher, testOptions(), loginForm(), logging.NewNop())
	if err := c.Start(context.Background(), t.TempDir()); err != nil {
		t.Fatal(err)
	}

	err := c.Login(context.Background())
	if !errors.Is(err, services.ErrRetriesExhausted) {
		t.Fatalf("expected ErrRetriesExhausted, got %v", err)
	}
	d := launcher.Drivers[0]
	if n := len(d.CallsFor("WaitForTitle")); n != 3 {
		t.Fatalf("expected 3 login attempts, got %d", n)
	}
	if snap := c.Snapshot(); snap.AttemptCount != 3 || snap.LoggedIn {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	// A second call in the same browser must not attempt again.
	if err := c.Login(context.Background()); !errors.Is(err, services.ErrRetriesExhausted) {
		t.Fatalf("expected exhausted again, got %v", err)
	}
	if n := len(d.CallsFor("WaitForTitle")); n != 3 {
		t.Fatalf("fourth attempt made in the same browser: %d", n)
	}
}

func TestLoginSuccessRestoresAttemptBudget(t *testing.T) {
	rejections := 2
	launcher := &browsertest.Launcher{Setup: func(d *browsertest.Driver) {
		d.OnNavigate = func(d *browsertest.Driver, _ string) {
			d.SetTitle("Sign in")
			d.Show("[name='email']")
			d.Add("[name='password']").OnClick = func(d *browsertest.Driver) {
				if rejections > 0 {
					rejections--
					return
				}
				d.SetTitle("ERP | Dashboard")
			}
		}
	}}
	c := New(launcher, testOptions(), loginForm(), logging.NewNop())
	if err := c.Start(context.Background(), t.TempDir()); err != nil {
		t.Fatal(err)
	}
	if err := c.Login(context.Background()); err != nil {
		t.Fatalf("first Login: %v", err)
	}
	if snap := c.Snapshot(); snap.ContextAttempts != 0 || snap.AttemptCount != 2 {
		t.Fatalf("snapshot after success = %+v", snap)
	}

	// The session expires and the ERP rejects two more submissions.
	rejections = 2
	if err := c.Login(context.Background()); err != nil {
		t.Fatalf("second Login should get the full retry budget: %v", err)
	}
	if snap := c.Snapshot(); snap.AttemptCount != 4 || !snap.LoggedIn {
		t.Fatalf("snapshot after relogin = %+v", snap)
	}
}

func TestRestartProvisionsFreshBrowser(t *testing.T) {
	rejecting := browsertest.New()
	rejectingERP(rejecting)
	accepting := browsertest.New()
	acceptingERP(accepting)
	launcher := &browsertest.Launcher{Drivers: []*browsertest.Driver{rejecting, accepting}}

	c := New(launcher, testOptions(), loginForm(), logging.NewNop())
	dir := t.TempDir()
	if err := c.Start(context.Background(), dir); err != nil {
		t.Fatal(err)
	}
	if err := c.Login(context.Background()); !errors.Is(err, services.ErrRetriesExhausted) {
		t.Fatalf("expected exhaustion, got %v", err)
	}
	if err := c.Restart(context.Background()); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if !rejecting.Closed() {
		t.Fatal("old browser not closed")
	}
	if err := c.Login(context.Background()); err != nil {
		t.Fatalf("Login after restart: %v", err)
	}
	snap := c.Snapshot()
	if snap.AttemptCount != 3 || snap.ContextAttempts != 0 || snap.Restarts != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestEndIsIdempotent(t *testing.T) {
	launcher := &browsertest.Launcher{}
	c := New(launcher, testOptions(), loginForm(), logging.NewNop())
	if err := c.End(); err != nil {
		t.Fatalf("End before start: %v", err)
	}
	if c.State() != StateNotStarted {
		t.Fatalf("state = %s", c.State())
	}
	if err := c.Start(context.Background(), t.TempDir()); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := c.End(); err != nil {
			t.Fatalf("End #%d: %v", i+1, err)
		}
	}
	if c.State() != StateEnded {
		t.Fatalf("state = %s", c.State())
	}
	if _, err := c.Driver(); !errors.Is(err, services.ErrSessionNotStarted) {
		t.Fatalf("expected not started, got %v", err)
	}
}

func TestLoginBeforeStart(t *testing.T) {
	c := New(&browsertest.Launcher{}, testOptions(), loginForm(), logging.NewNop())
	if err := c.Login(context.Background()); !errors.Is(err, services.ErrSessionNotStarted) {
		t.Fatalf("expected ErrSessionNotStarted, got %v", err)
	}
}
