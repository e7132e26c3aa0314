// Package browser is the locator/action surface the page handlers drive.
//
// Driver abstracts one focused browser tab: navigation, bounded waits,
// clicks, typing, script evaluation, popup capture, download collection and
// diagnostic capture. The playwright-backed implementation is created by
// PlaywrightLauncher; tests use the scriptable fake in browsertest.
//
// Every wait takes an explicit timeout. A wait that expires returns an error
// matching ErrTimeout so callers can classify it without knowing the backend.
package browser
