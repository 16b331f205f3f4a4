package engine

import "fmt"

// ValidationError reports caller-fixable input problems. Nothing has been
// mutated when one is returned.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// EntitlementError reports that the account's tier does not allow the
// requested mode. Raised before any state is touched; UpgradeURL points the
// caller at the purchase path.
type EntitlementError struct {
	UpgradeURL string
}

func (e *EntitlementError) Error() string {
	return "career coaching requires an active plan"
}

// ProviderError wraps a failed completion call. The user's message has
// already been committed when one is returned; resubmitting the thread will
// include it in history.
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("completion provider failed: %v", e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
