// Package api builds the JSON envelopes returned by API endpoints.
package api

import (
	"net/http"

	httpInternal "github.com/onyx-go/dispatch/internal/http"
)

// Envelope is the body of every API response
type Envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    interface{}         `json:"data,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// Success wraps data in a 200 envelope
func Success(data interface{}, message string) (*httpInternal.Response, error) {
	return SuccessWithStatus(http.StatusOK, data, message)
}

// Created wraps data in a 201 envelope
func Created(data interface{}, message string) (*httpInternal.Response, error) {
	return SuccessWithStatus(http.StatusCreated, data, message)
}

// SuccessWithStatus wraps data in a successful envelope with a custom status
func SuccessWithStatus(status int, data interface{}, message string) (*httpInternal.Response, error) {
	return httpInternal.JSON(status, Envelope{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Error builds a failed envelope. errors maps field names to messages and
// may be nil. A status below 400 becomes 400.
func Error(message string, errors map[string][]string, status int) (*httpInternal.Response, error) {
	if status < http.StatusBadRequest {
		status = http.StatusBadRequest
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return httpInternal.JSON(status, Envelope{
		Success: false,
		Message: message,
		Errors:  errors,
	})
}
