// Package httperror maps service errors onto JSON HTTP responses.
package httperror

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/corvidmail/mail-backend/internal/apptracker"
	"github.com/corvidmail/mail-backend/internal/entities"
	"github.com/corvidmail/mail-backend/internal/serve/httpjson"
)

type ErrorResponse struct {
	Status int               `json:"status"`
	Error  string            `json:"error"`
	Extras map[string]string `json:"extras,omitempty"`
}

func (e ErrorResponse) Render(w http.ResponseWriter) {
	httpjson.RenderStatus(w, e.Status, e)
}

func NewErrorResponse(status int, message string) ErrorResponse {
	return ErrorResponse{Status: status, Error: message}
}

func BadRequest(message string, extras map[string]string) ErrorResponse {
	if message == "" {
		message = "Invalid request"
	}
	return ErrorResponse{Status: http.StatusBadRequest, Error: message, Extras: extras}
}

func NotFound(message string) ErrorResponse {
	if message == "" {
		message = "Resource not found"
	}
	return ErrorResponse{Status: http.StatusNotFound, Error: message}
}

func Unauthorized(message string) ErrorResponse {
	if message == "" {
		message = "Not authorized"
	}
	return ErrorResponse{Status: http.StatusUnauthorized, Error: message}
}

// InternalServerError reports the error to the tracker and logs it, then
// renders an opaque 500.
func InternalServerError(ctx context.Context, message string, err error, tracker apptracker.AppTracker) ErrorResponse {
	if tracker != nil {
		tracker.CaptureException(fmt.Errorf("%s: %w", message, err))
	}
	log.WithContext(ctx).WithError(err).Error(message)
	return ErrorResponse{Status: http.StatusInternalServerError, Error: "An internal error occurred while processing this request."}
}

// DecodeError maps a request body decoding failure: an oversized body is the
// modeled requestTooLarge outcome, anything else is a plain bad request.
func DecodeError(err error) ErrorResponse {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return MethodError(entities.NewMethodError(entities.ErrCodeRequestTooLarge, "request body exceeds %d bytes", maxBytesErr.Limit))
	}
	return BadRequest("", map[string]string{"body": err.Error()})
}

// MethodError renders a synchronization method-level error. Method errors
// are client mistakes or recoverable protocol conditions, so they map to
// 400 with the machine-readable code in extras.
func MethodError(me *entities.MethodError) ErrorResponse {
	return ErrorResponse{
		Status: http.StatusBadRequest,
		Error:  me.Description,
		Extras: map[string]string{"type": string(me.Code)},
	}
}
