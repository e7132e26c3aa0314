// Package preflight checks that a run can start: working directories are
// writable, credentials and the worklist are present, the locator catalog
// parses, the ledger is not held by another process, and the ERP answers.
//
// The doctor command prints these results; run performs a subset before
// launching the browser.
package preflight
