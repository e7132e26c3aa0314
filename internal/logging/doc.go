// Package logging assembles structured slog loggers for erpfetch.
//
// It owns the console and JSON handlers, the per-run JSON log file and the
// pruning of old run artifacts. Attribute constructors such as OrderID and
// Report keep field names consistent across packages, and context helpers tag
// log lines with the run, order and report being processed.
package logging
