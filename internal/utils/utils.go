package utils

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"
)

// DeferredClose is a function that closes an `io.Closer` resource and logs an error if it fails.
func DeferredClose(ctx context.Context, closer io.Closer, errMsg string) {
	if err := closer.Close(); err != nil {
		if errMsg == "" {
			errMsg = "closing resource"
		}
		logrus.WithContext(ctx).Errorf("%s: %v", errMsg, err)
	}
}

// PointOf returns a pointer to the given value.
func PointOf[T any](value T) *T {
	return &value
}
