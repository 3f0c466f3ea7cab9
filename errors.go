package metered

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound        = errors.New("metered: not found")
	ErrAlreadyExists   = errors.New("metered: already exists")
	ErrInvalidInput    = errors.New("metered: invalid input")
	ErrUnauthenticated = errors.New("metered: unauthenticated")
	ErrForbidden       = errors.New("metered: forbidden")

	// User errors
	ErrUserNotFound      = errors.New("metered: user not found")
	ErrDuplicateUsername = errors.New("metered: username already registered")
	ErrDuplicateEmail    = errors.New("metered: email already registered")
	ErrUserInactive      = errors.New("metered: user is inactive")

	// Ledger errors
	ErrInvalidAmount       = errors.New("metered: amount must be positive")
	ErrInsufficientBalance = errors.New("metered: insufficient balance")

	// Plan errors
	ErrPlanNotFound  = errors.New("metered: plan not found")
	ErrDuplicatePlan = errors.New("metered: plan name already in use")
	ErrPlanArchived  = errors.New("metered: plan is archived")

	// Subscription errors
	ErrSubscriptionNotFound = errors.New("metered: subscription not found")
	ErrNoActiveSubscription = errors.New("metered: no active subscription")

	// Admission errors
	ErrAccessDenied      = errors.New("metered: model not available for your subscription")
	ErrRateLimitExceeded = errors.New("metered: rate limit exceeded")
	ErrChatNotFound      = errors.New("metered: chat not found")

	// Store errors
	ErrStoreUnavailable = errors.New("metered: store unavailable")
	ErrStoreClosed      = errors.New("metered: store is closed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("metered: validation failed for %s: %s", e.Field, e.Message)
}

// IsNotFound returns true if the error is any not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrPlanNotFound) ||
		errors.Is(err, ErrSubscriptionNotFound) ||
		errors.Is(err, ErrChatNotFound)
}

// IsConflict returns true if the error is a uniqueness violation.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrDuplicateUsername) ||
		errors.Is(err, ErrDuplicateEmail) ||
		errors.Is(err, ErrDuplicatePlan)
}

// IsDenied returns true if the error is an admission refusal: the request
// was understood but the caller is not entitled to it right now.
func IsDenied(err error) bool {
	return errors.Is(err, ErrAccessDenied) ||
		errors.Is(err, ErrRateLimitExceeded) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrForbidden)
}

// IsRetryable returns true if the error is transient and the operation can
// be retried by the caller. Every other error in the taxonomy is not.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
