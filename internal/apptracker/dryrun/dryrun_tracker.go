package dryrun

import "github.com/sirupsen/logrus"

// DryRunTracker logs instead of reporting to an external tracker. Used when
// no Sentry DSN is configured.
type DryRunTracker struct{}

func (d *DryRunTracker) CaptureMessage(message string) {
	logrus.Warn(message)
}

func (d *DryRunTracker) CaptureException(exception error) {
	logrus.Error(exception)
}
