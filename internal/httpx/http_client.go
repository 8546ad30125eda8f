package httpx

import (
	"net/http"
	"time"
)

const defaultExternalHTTPTimeout = 90 * time.Second

var externalHTTPClient = &http.Client{
	Timeout: defaultExternalHTTPTimeout,
}

// ConfigureExternalHTTPClient applies the configured timeout in seconds to
// the shared outbound client and returns the applied duration.
// Non-positive values fall back to the default.
func ConfigureExternalHTTPClient(seconds int) time.Duration {
	timeout := defaultExternalHTTPTimeout
	if seconds > 0 {
		timeout = time.Duration(seconds) * time.Second
	}
	externalHTTPClient.Timeout = timeout
	return timeout
}

// ExternalHTTPClient returns the shared client for outbound API calls.
func ExternalHTTPClient() *http.Client {
	return externalHTTPClient
}
