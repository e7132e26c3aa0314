package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"erpfetch/internal/report"
	"erpfetch/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrTimeout, "handler", "search", "order cell not visible", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"handler", "search", "order cell not visible"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestFailureStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want report.Status
	}{
		{"nil", nil, report.StatusSuccess},
		{"not found", services.Wrap(services.ErrNotFound, "handler", "select", "no cell", nil), report.StatusItemNotFound},
		{"timeout", services.Wrap(services.ErrTimeout, "handler", "dialog", "", nil), report.StatusTransient},
		{"stale", services.Wrap(services.ErrStaleDialog, "handler", "dialog", "", nil), report.StatusTransient},
		{"intercepted", services.Wrap(services.ErrClickIntercepted, "recovery", "click", "", nil), report.StatusTransient},
		{"ledger", services.Wrap(services.ErrLedger, "ledger", "upsert", "", errors.New("disk full")), report.StatusFatal},
		{"unclassified", errors.New("unexpected"), report.StatusFatal},
		{"wrapped twice", fmt.Errorf("outer: %w", services.Wrap(services.ErrNotFound, "", "", "", nil)), report.StatusItemNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.FailureStatus(tc.err); got != tc.want {
				t.Fatalf("FailureStatus = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestOutcomeCarriesDetail(t *testing.T) {
	out := services.Outcome(services.Wrap(services.ErrNotFound, "handler", "select", "order ORD-9 absent", nil))
	if out.Status != report.StatusItemNotFound {
		t.Fatalf("unexpected status %s", out.Status)
	}
	if !strings.Contains(out.Detail, "ORD-9") {
		t.Fatalf("expected detail to mention order, got %q", out.Detail)
	}
	if ok := services.Outcome(nil); ok.Status != report.StatusSuccess || ok.Detail != "" {
		t.Fatalf("unexpected success outcome %+v", ok)
	}
}
