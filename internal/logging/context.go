package logging

import (
	"context"
	"log/slog"

	"erpfetch/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID identifies one orchestrator run.
	FieldRunID = "run_id"
	// FieldOrderID is the ERP order being processed.
	FieldOrderID = "order_id"
	// FieldReport is the report name being downloaded.
	FieldReport = "report"
	// FieldVariant is the page-flow variant selected by the dispatcher.
	FieldVariant = "variant"
	// FieldState is the handler or session state machine position.
	FieldState = "state"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step for an operator.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 5)
	if id, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if order, ok := services.OrderIDFromContext(ctx); ok {
		fields = append(fields, OrderID(order))
	}
	if name, ok := services.ReportFromContext(ctx); ok {
		fields = append(fields, Report(name))
	}
	if variant, ok := services.VariantFromContext(ctx); ok {
		fields = append(fields, Variant(variant))
	}
	if state, ok := services.StateFromContext(ctx); ok {
		fields = append(fields, State(state))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
