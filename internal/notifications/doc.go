// Package notifications delivers run failure alerts via pluggable backends.
//
// NewService fans out to every configured backend: a notify-send subprocess
// for desktop alerts, an ntfy topic over HTTP, and Pushbullet note pushes.
// It gracefully degrades to a no-op when nothing is configured, so callers
// publish unconditionally and treat delivery as best-effort.
//
// All run code depends only on the Service interface; extend this package to
// add transports.
package notifications
