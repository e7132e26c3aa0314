// Package services defines shared utilities consumed by the session
// controller, page handlers and orchestrator.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, order IDs, report names, variants
//     and handler states for logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent handler outcomes (not found, transient, fatal).
//
// Use these helpers when wiring new handler logic so operational behaviour
// (error handling, observability, retries) stays uniform across page flows.
package services
