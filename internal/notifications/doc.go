// Package notifications delivers run events via ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// the orchestrator can notify unconditionally. Individual events can be
// switched off in the [notifications] config section.
package notifications
