package fal

import "fmt"

// ConfigError reports a missing key or missing required input, detected
// before any network call is made.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "fal: " + e.Reason
}

// RemoteError is a non-2xx response from the API. The body is kept verbatim
// so the user can act on it.
type RemoteError struct {
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("fal: API returned status %d, body: %s", e.StatusCode, e.Body)
}

// TransportError wraps a network-level failure (DNS, connection, timeout).
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "fal: request failed: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
