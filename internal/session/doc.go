// Package session owns the browser session and the ERP login.
//
// A Controller moves through NotStarted, Started, LoggedIn and Ended. Login
// is a bounded loop: every attempt starts from a hard reload, and once the
// per-browser attempt ceiling is reached the controller reports
// ErrRetriesExhausted so the caller restarts the browser instead of trying
// again in a context that may be poisoned.
package session
