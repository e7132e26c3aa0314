// Package handlers drives the ERP pages that produce report downloads.
//
// Every variant walks the same named steps (EnsurePage, TabOpened,
// OrderSearched, OrderSelected, DialogOpened, DocumentsSelected,
// DownloadTriggered, DialogClosed) and overrides only the steps its page
// does differently. Download never panics and never returns an error: the
// result is always a classified report.Outcome.
package handlers
