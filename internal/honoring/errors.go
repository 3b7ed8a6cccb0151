package honoring

import (
	"errors"
	"fmt"
)

// ErrorCategory defines the normalized failure taxonomy for provider calls.
type ErrorCategory string

const (
	// ErrorTimeout indicates the provider took too long to respond.
	ErrorTimeout ErrorCategory = "timeout"

	// ErrorNetwork indicates a transient transport failure.
	ErrorNetwork ErrorCategory = "network"

	// ErrorProviderOutage indicates an upstream 5xx or unavailability.
	ErrorProviderOutage ErrorCategory = "provider_outage"

	// ErrorRateLimited indicates too many requests.
	ErrorRateLimited ErrorCategory = "rate_limited"

	// ErrorAuthentication indicates credential or permission issues.
	ErrorAuthentication ErrorCategory = "authentication"

	// ErrorInvalidRecipient indicates the recipient cannot receive funds.
	ErrorInvalidRecipient ErrorCategory = "invalid_recipient"

	// ErrorCompliance indicates a compliance rejection.
	ErrorCompliance ErrorCategory = "compliance"

	// ErrorDeclined indicates a business-rule decline by the provider.
	ErrorDeclined ErrorCategory = "declined"

	// ErrorDuplicate indicates the provider saw this reference before with a
	// conflicting request.
	ErrorDuplicate ErrorCategory = "duplicate"

	// ErrorInternal indicates an unexpected adapter-side error.
	ErrorInternal ErrorCategory = "internal"
)

// AdapterError wraps provider failures with normalized categorization.
type AdapterError struct {
	Category   ErrorCategory
	Adapter    string
	Message    string
	Underlying error
	Retryable  bool
}

func (e *AdapterError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("adapter %s [%s]: %s: %v", e.Adapter, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("adapter %s [%s]: %s", e.Adapter, e.Category, e.Message)
}

func (e *AdapterError) Unwrap() error { return e.Underlying }

// NewAdapterError creates a normalized adapter error. Only timeouts,
// transient network failures, outages, and rate limits consume retry budget;
// everything else terminates the attempt cycle immediately.
func NewAdapterError(category ErrorCategory, adapter, message string, underlying error) *AdapterError {
	retryable := category == ErrorTimeout ||
		category == ErrorNetwork ||
		category == ErrorProviderOutage ||
		category == ErrorRateLimited

	return &AdapterError{
		Category:   category,
		Adapter:    adapter,
		Message:    message,
		Underlying: underlying,
		Retryable:  retryable,
	}
}

// IsRetryable checks if an error is worth retrying. Unclassified errors are
// not: an unknown failure mode must surface, not burn retry budget.
func IsRetryable(err error) bool {
	var ae *AdapterError
	if errors.As(err, &ae) {
		return ae.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error.
func GetCategory(err error) ErrorCategory {
	var ae *AdapterError
	if errors.As(err, &ae) {
		return ae.Category
	}
	return ErrorInternal
}
