// Package apptracker defines the error-reporting hook used across the
// server. HTTP handlers report unexpected failures through it, and the
// background purge scheduler reports sweep errors that would otherwise
// only surface in logs.
package apptracker

type AppTracker interface {
	// CaptureMessage reports a plain-text event.
	CaptureMessage(message string)
	// CaptureException reports an error with whatever context the backing
	// service attaches (stack trace, environment).
	CaptureException(exception error)
}
