package assess

import (
	"errors"
	"fmt"
	"time"
)

// CallError is the base error type for provider call failures.
type CallError struct {
	Message string
	Cause   error
}

func (e *CallError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *CallError) Unwrap() error {
	return e.Cause
}

// ProviderHTTPError reports a non-success HTTP status from an assessment
// backend.
type ProviderHTTPError struct {
	CallError
	Provider   Provider
	StatusCode int
	Body       string
}

func (e *ProviderHTTPError) Error() string {
	return fmt.Sprintf("[%s] %s (status=%d)", e.Provider, e.Message, e.StatusCode)
}

// ProviderTimeoutError reports a call abandoned at its hard deadline.
type ProviderTimeoutError struct {
	CallError
	Provider Provider
	Timeout  time.Duration
}

func (e *ProviderTimeoutError) Error() string {
	return fmt.Sprintf("[%s] %s (timeout=%s)", e.Provider, e.Message, e.Timeout)
}

// IsTimeout reports whether err is a provider timeout.
func IsTimeout(err error) bool {
	var te *ProviderTimeoutError
	return errors.As(err, &te)
}
