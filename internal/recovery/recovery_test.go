package recovery

import (
	"context"
	"errors"
	"testing"

	"erpfetch/internal/browser"
	"erpfetch/internal/browser/browsertest"
	"erpfetch/internal/locators"
	"erpfetch/internal/logging"
	"erpfetch/internal/services"
)

func newKit(t *testing.T) (*Kit, *browsertest.Driver) {
	t.Helper()
	catalog, err := locators.Default()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	d := browsertest.New()
	return New(d, catalog, 0, 0, logging.NewNop()), d
}

func TestClickFallsBackToScriptClick(t *testing.T) {
	k, d := newKit(t)
	d.Add("#tab").ClickErrs = []error{errors.New("element click intercepted")}

	if err := k.Click(context.Background(), "#tab", browser.ClickOptions{}); err != nil {
		t.Fatalf("Click: %v", err)
	}
	if len(d.CallsFor("ScriptClick")) != 1 {
		t.Fatalf("expected one scripted click, calls=%v", d.Calls)
	}
	evals := d.CallsFor("Evaluate")
	if len(evals) != 1 || evals[0].Arg != k.catalog.OverlayScript {
		t.Fatalf("expected overlay suppression before retry, got %v", evals)
	}
}

func TestClickMissingElementIsTimeout(t *testing.T) {
	k, d := newKit(t)
	err := k.Click(context.Background(), "#absent", browser.ClickOptions{})
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected ErrTimeout marker, got %v", err)
	}
	if len(d.CallsFor("ScriptClick")) != 0 {
		t.Fatal("scripted click attempted for an absent element")
	}
}

func TestClearInputFallsThroughTiers(t *testing.T) {
	k, d := newKit(t)
	// The search box exists only to the scripted reset.
	d.EvaluateFunc = func(_ *browsertest.Driver, selector, _ string, _ any) (any, error) {
		if selector == "#search" {
			return "", nil
		}
		return nil, nil
	}
	if err := k.ClearInput(context.Background(), "#search"); err != nil {
		t.Fatalf("ClearInput: %v", err)
	}
	if len(d.CallsFor("Clear")) != 1 || len(d.CallsFor("Press")) != 0 {
		t.Fatalf("unexpected call sequence %v", d.Calls)
	}
}

func TestClearInputAllTiersFail(t *testing.T) {
	k, d := newKit(t)
	d.EvaluateFunc = func(*browsertest.Driver, string, string, any) (any, error) {
		return nil, errors.New("detached")
	}
	err := k.ClearInput(context.Background(), "#gone")
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout marker, got %v", err)
	}
}

func TestCloseDialogFallback(t *testing.T) {
	k, d := newKit(t)
	if err := k.CloseDialog(context.Background(), "#closeBtn"); err != nil {
		t.Fatalf("CloseDialog: %v", err)
	}
	var sawFallback bool
	for _, c := range d.CallsFor("Evaluate") {
		if c.Arg == k.catalog.CloseDialogsScript {
			sawFallback = true
		}
	}
	if !sawFallback {
		t.Fatalf("fallback close script not run: %v", d.Calls)
	}
}

func TestResetDialogContextReloads(t *testing.T) {
	k, d := newKit(t)
	if err := k.ResetDialogContext(context.Background()); err != nil {
		t.Fatalf("ResetDialogContext: %v", err)
	}
	if len(d.CallsFor("Reload")) != 1 {
		t.Fatalf("expected reload, calls=%v", d.Calls)
	}
}
