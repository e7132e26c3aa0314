// Package ledger persists per-(order, report) download progress in a flat CSV
// file so an interrupted run can be resumed.
//
// Every Upsert reads the whole file, updates or appends the matching row, and
// atomically replaces the file. At most one row exists per key. A writer
// holds an advisory lock next to the file for as long as the Ledger is open,
// so a second process fails fast instead of interleaving rewrites.
package ledger
