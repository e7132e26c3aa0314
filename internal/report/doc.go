// Package report defines the work unit and outcome types shared by the
// orchestrator and page handlers, together with the dispatcher that maps a
// report name onto one of the ERP's page-flow variants.
//
// The dispatcher table is business data: it is enumerable through
// KnownReports so the CLI and tests can inspect it without driving a browser.
package report
