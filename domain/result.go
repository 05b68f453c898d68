package domain

import "fmt"

type ErrorCategory string

const (
	CategoryInvalidToken     ErrorCategory = "invalidToken"
	CategoryExpiredToken     ErrorCategory = "expiredToken"
	CategoryNetworkError     ErrorCategory = "networkError"
	CategoryRateLimited      ErrorCategory = "rateLimited"
	CategoryPermissionDenied ErrorCategory = "permissionDenied"
	CategoryInvalidPayload   ErrorCategory = "invalidPayload"
	CategoryConfigError      ErrorCategory = "configError"
	CategoryUnknown          ErrorCategory = "unknown"
)

// Transient reports whether a retry may succeed. Unknown counts as
// transient so a miscategorized gateway hiccup still gets its retries.
func (c ErrorCategory) Transient() bool {
	switch c {
	case CategoryNetworkError, CategoryRateLimited, CategoryUnknown:
		return true
	}
	return false
}

// TokenRelated reports whether the token itself is dead and should be
// deactivated.
func (c ErrorCategory) TokenRelated() bool {
	return c == CategoryInvalidToken || c == CategoryExpiredToken
}

type DispatchError struct {
	Category ErrorCategory
	Err      error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s: %v", e.Category, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

func NewDispatchError(category ErrorCategory, err error) *DispatchError {
	return &DispatchError{Category: category, Err: err}
}

type DispatchResult struct {
	Token       string
	Success     bool
	Category    ErrorCategory
	RetriesUsed int
}

type AggregateResult struct {
	SentCount   int
	FailedCount int
	Errors      []DispatchResult
}
