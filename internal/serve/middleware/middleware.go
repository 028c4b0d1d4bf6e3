// Package middleware holds the HTTP middlewares shared by all routes.
package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi"

	"github.com/corvidmail/mail-backend/internal/apptracker"
	"github.com/corvidmail/mail-backend/internal/metrics"
	"github.com/corvidmail/mail-backend/internal/serve/auth"
	"github.com/corvidmail/mail-backend/internal/serve/httperror"
)

// responseWriter captures the status code written by a handler.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, status: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

// MetricsMiddleware counts requests and observes their duration, labeled by
// route pattern rather than raw path so account ids do not explode the
// cardinality.
func MetricsMiddleware(metricsService metrics.MetricsService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := newResponseWriter(w)
			start := time.Now()
			next.ServeHTTP(rw, r)

			endpoint := r.URL.Path
			if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
				if pattern := routeCtx.RoutePattern(); pattern != "" {
					endpoint = pattern
				}
			}
			metricsService.IncNumRequests(endpoint, r.Method, rw.status)
			metricsService.ObserveRequestDuration(endpoint, r.Method, time.Since(start).Seconds())
		})
	}
}

// BodySizeLimit caps request bodies. Reads past the cap fail JSON decoding
// with http.MaxBytesError, which renders as requestTooLarge.
func BodySizeLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// RecoverHandler turns panics into opaque 500s instead of dropped
// connections.
func RecoverHandler(tracker apptracker.AppTracker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				err, ok := rec.(error)
				if !ok {
					err = fmt.Errorf("%v", rec)
				}
				httperror.InternalServerError(r.Context(), "panic while serving request", err, tracker).Render(w)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// AuthenticatedMiddleware requires a bearer token whose subject matches the
// accountID in the route. A token for one account cannot read or mutate
// another. A nil manager disables authentication.
func AuthenticatedMiddleware(jwtManager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if jwtManager == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
			if !found || tokenString == "" {
				httperror.Unauthorized("Missing bearer token").Render(w)
				return
			}

			tokenAccountID, err := jwtManager.ValidateToken(tokenString)
			if err != nil {
				httperror.Unauthorized("Invalid bearer token").Render(w)
				return
			}
			if tokenAccountID != chi.URLParam(r, "accountID") {
				httperror.Unauthorized("Token is not valid for this account").Render(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
