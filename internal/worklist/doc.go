// Package worklist turns the navigation spreadsheet into work items.
//
// Rows come from CSV or XLSX files. Column headers are mapped onto work item
// fields through a configurable table, rows without an order id or report
// name are dropped, and exact (order, report) duplicates keep only their
// first occurrence.
package worklist
