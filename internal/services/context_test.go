package services_test

import (
	"context"
	"testing"

	"erpfetch/internal/services"
)

func TestContextHelpersRoundTrip(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRunID(ctx, "run-1")
	ctx = services.WithOrderID(ctx, "ORD-42")
	ctx = services.WithReport(ctx, "Settlement Report")
	ctx = services.WithVariant(ctx, "settlement")
	ctx = services.WithState(ctx, "DialogOpened")

	if v, ok := services.RunIDFromContext(ctx); !ok || v != "run-1" {
		t.Fatalf("run id = %q, %v", v, ok)
	}
	if v, ok := services.OrderIDFromContext(ctx); !ok || v != "ORD-42" {
		t.Fatalf("order id = %q, %v", v, ok)
	}
	if v, ok := services.ReportFromContext(ctx); !ok || v != "Settlement Report" {
		t.Fatalf("report = %q, %v", v, ok)
	}
	if v, ok := services.VariantFromContext(ctx); !ok || v != "settlement" {
		t.Fatalf("variant = %q, %v", v, ok)
	}
	if v, ok := services.StateFromContext(ctx); !ok || v != "DialogOpened" {
		t.Fatalf("state = %q, %v", v, ok)
	}
}

func TestContextHelpersIgnoreEmptyValues(t *testing.T) {
	ctx := services.WithOrderID(context.Background(), "")
	if _, ok := services.OrderIDFromContext(ctx); ok {
		t.Fatal("expected empty order id to be ignored")
	}
	if _, ok := services.RunIDFromContext(context.Background()); ok {
		t.Fatal("expected missing run id")
	}
}
