package entities

import (
	"errors"
	"fmt"
)

// MethodErrorCode is one of the expected, modeled failure outcomes of a
// synchronization method, surfaced to clients as a string code.
type MethodErrorCode string

const (
	// ErrCodeCannotCalculateChanges means the presented state token is
	// unparseable or refers to a point the server can no longer diff from.
	// Terminal: the client must refetch the full collection.
	ErrCodeCannotCalculateChanges MethodErrorCode = "cannotCalculateChanges"
	// ErrCodeInvalidArguments means structurally malformed input, or a
	// filter/state mismatch on queryChanges.
	ErrCodeInvalidArguments MethodErrorCode = "invalidArguments"
	// ErrCodeUnsupportedFilter means a filter predicate or combination the
	// query engine does not implement.
	ErrCodeUnsupportedFilter MethodErrorCode = "unsupportedFilter"
	// ErrCodeUnsupportedSort means a sort property outside the allow-list.
	ErrCodeUnsupportedSort MethodErrorCode = "unsupportedSort"
	// ErrCodeAnchorNotFound means the pagination anchor is absent from the
	// current filtered result set.
	ErrCodeAnchorNotFound MethodErrorCode = "anchorNotFound"
	// ErrCodeLimitExceeded means the request exceeds a configured
	// object-count ceiling.
	ErrCodeLimitExceeded MethodErrorCode = "limitExceeded"
	// ErrCodeRequestTooLarge means the request itself is over the accepted
	// size.
	ErrCodeRequestTooLarge MethodErrorCode = "requestTooLarge"
)

// MethodError is a modeled failure returned as a value, never panicked.
type MethodError struct {
	Code        MethodErrorCode `json:"type"`
	Description string          `json:"description,omitempty"`
}

func (e *MethodError) Error() string {
	if e.Description == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func NewMethodError(code MethodErrorCode, format string, args ...interface{}) *MethodError {
	return &MethodError{Code: code, Description: fmt.Sprintf(format, args...)}
}

// AsMethodError unwraps err into a MethodError, if it is one.
func AsMethodError(err error) (*MethodError, bool) {
	var me *MethodError
	if errors.As(err, &me) {
		return me, true
	}
	return nil, false
}
