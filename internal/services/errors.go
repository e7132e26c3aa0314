package services

import (
	"errors"
	"fmt"
	"strings"

	"erpfetch/internal/report"
)

var (
	ErrExternalTool      = errors.New("external tool error")
	ErrValidation        = errors.New("validation error")
	ErrConfiguration     = errors.New("configuration error")
	ErrNotFound          = errors.New("not found")
	ErrTimeout           = errors.New("timeout")
	ErrTransient         = errors.New("transient failure")
	ErrStaleDialog       = errors.New("stale dialog context")
	ErrClickIntercepted  = errors.New("click intercepted")
	ErrLoginFailed       = errors.New("login failed")
	ErrRetriesExhausted  = errors.New("login retries exhausted")
	ErrLedger            = errors.New("ledger write failed")
	ErrSessionNotStarted = errors.New("session not started")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later outcome classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FailureStatus maps a handler error to the outcome status the orchestrator
// records for the work item.
func FailureStatus(err error) report.Status {
	switch {
	case err == nil:
		return report.StatusSuccess
	case errors.Is(err, ErrNotFound):
		return report.StatusItemNotFound
	case errors.Is(err, ErrLedger), errors.Is(err, ErrConfiguration), errors.Is(err, ErrValidation):
		return report.StatusFatal
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrTransient), errors.Is(err, ErrStaleDialog),
		errors.Is(err, ErrClickIntercepted), errors.Is(err, ErrExternalTool):
		return report.StatusTransient
	default:
		return report.StatusFatal
	}
}

// Outcome converts an error into a handler outcome carrying the error text.
func Outcome(err error) report.Outcome {
	if err == nil {
		return report.Outcome{Status: report.StatusSuccess}
	}
	return report.Outcome{Status: FailureStatus(err), Detail: err.Error()}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
