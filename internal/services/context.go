package services

import "context"

type contextKey string

const (
	runIDKey   contextKey = "run_id"
	orderIDKey contextKey = "order_id"
	reportKey  contextKey = "report"
	variantKey contextKey = "variant"
	stateKey   contextKey = "state"
)

func withString(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if v, ok := ctx.Value(key).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRunID annotates context with the orchestrator run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	return withString(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, runIDKey)
}

// WithOrderID annotates context with the order being processed.
func WithOrderID(ctx context.Context, orderID string) context.Context {
	return withString(ctx, orderIDKey, orderID)
}

// OrderIDFromContext returns the order id if present.
func OrderIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, orderIDKey)
}

// WithReport annotates context with the report name being downloaded.
func WithReport(ctx context.Context, name string) context.Context {
	return withString(ctx, reportKey, name)
}

// ReportFromContext returns the report name if present.
func ReportFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, reportKey)
}

// WithVariant annotates context with the resolved page-flow variant.
func WithVariant(ctx context.Context, variant string) context.Context {
	return withString(ctx, variantKey, variant)
}

// VariantFromContext returns the variant if present.
func VariantFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, variantKey)
}

// WithState annotates context with the handler state machine position.
func WithState(ctx context.Context, state string) context.Context {
	return withString(ctx, stateKey, state)
}

// StateFromContext returns the handler state if present.
func StateFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, stateKey)
}
