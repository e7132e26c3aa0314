// Package workflow drives a full download run.
//
// A Runner reads the worklist, groups rows by order, and walks them strictly
// sequentially through one browser session: classify the report, write a
// pending ledger row, hand the item to the page handler, and journal the
// outcome. Per-item failures never abort the run. Only a session that cannot
// be logged in after every restart, a panic, or cancellation ends it early,
// and even then a deferred block captures a screenshot and closes the browser.
package workflow
