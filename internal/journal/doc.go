// Package journal keeps a sqlite history of every handler attempt.
//
// The journal is diagnostic only. Resume decisions are made from the CSV
// ledger; the journal answers "what happened to this order and when" across
// runs, including attempts that never reached the download step.
package journal
