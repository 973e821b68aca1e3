package provider

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNoSubscription is returned by subscription-bound calls on a client
	// created without a subscription
	ErrNoSubscription = errors.New("client is not bound to a subscription")
	// ErrSubscriptionItemMissing is returned when a subscription has no item to switch
	ErrSubscriptionItemMissing = errors.New("subscription has no items")
)

// APIError is a non-2xx response from a billing backend
type APIError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("billing API error (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("billing API error (status %d): %s", e.StatusCode, e.Message)
}

// NotFound reports whether the backend rejected an unknown resource
func (e *APIError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsNotFound reports whether err is an APIError with status 404
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.NotFound()
}
