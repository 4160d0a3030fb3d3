package provider

import (
	"errors"
	"fmt"
)

var (
	ErrLoginFailed    = errors.New("login failed")
	ErrUnknown        = errors.New("unknown error")
	ErrSessionExpired = errors.New("session not authenticated")

	ErrParsingFailed = errors.New("failed to parse portal response")
	ErrTimeout       = errors.New("operation timed out")
)

// ScraperError provides detailed error context
type ScraperError struct {
	ProviderCode ProviderCode
	Operation    string
	Cause        error
	Details      string
}

func (e *ScraperError) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("[%s] %s failed: %v", e.ProviderCode, e.Operation, e.Cause)
	}
	return fmt.Sprintf("[%s] %s failed: %v - %s", e.ProviderCode, e.Operation, e.Cause, e.Details)
}

func (e *ScraperError) Unwrap() error {
	return e.Cause
}
