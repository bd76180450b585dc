// Package webclient builds the outbound HTTP clients shared by the bot and
// the verification service.
package webclient

import (
	"net/http"
	"time"
)

// DefaultTimeout applies when a caller passes zero.
const DefaultTimeout = 10 * time.Second

// NewDefault returns an HTTP client bounded by timeout.
func NewDefault(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}
