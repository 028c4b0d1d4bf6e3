// Package httpjson renders and decodes JSON request/response bodies.
package httpjson

import (
	"encoding/json"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"
)

const contentType = "application/json; charset=utf-8"

// Render writes v as a JSON response with status 200.
func Render(w http.ResponseWriter, v interface{}) {
	RenderStatus(w, http.StatusOK, v)
}

// RenderStatus writes v as a JSON response with the given status code.
func RenderStatus(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("encoding JSON response")
	}
}

// DecodeJSON decodes the request body into v, rejecting unknown fields.
func DecodeJSON(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("decoding request body: %w", err)
	}
	return nil
}
