// Package sentry implements apptracker.AppTracker on top of the Sentry
// SDK. Captures are flushed eagerly: the tracker only receives rare,
// already-exceptional events (handler panics, purge failures), so
// blocking for the flush window is preferable to losing the event on
// shutdown.
package sentry

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

// The sentry SDK exposes package-level functions rather than a client
// interface, so they are held in vars tests can swap out.
var (
	initFunc             = sentry.Init
	flushFunc            = sentry.Flush
	captureMessageFunc   = sentry.CaptureMessage
	captureExceptionFunc = sentry.CaptureException
)

type sentryTracker struct {
	flushTimeout time.Duration
}

func (t *sentryTracker) CaptureMessage(message string) {
	captureMessageFunc(message)
	flushFunc(t.flushTimeout)
}

func (t *sentryTracker) CaptureException(exception error) {
	captureExceptionFunc(exception)
	flushFunc(t.flushTimeout)
}

// NewSentryTracker initializes the global sentry client. flushFreqSeconds
// bounds how long a capture may block while the SDK drains its buffer.
func NewSentryTracker(dsn, env string, flushFreqSeconds int) (*sentryTracker, error) {
	err := initFunc(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: env,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing sentry client: %w", err)
	}
	return &sentryTracker{flushTimeout: time.Duration(flushFreqSeconds) * time.Second}, nil
}
