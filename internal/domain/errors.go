package domain

// Error taxonomy shared by the intent service and its adapters.
//
// ValidationError: bad input or an illegal transition, caller-fixable.
// NotFoundError: the referenced intent does not exist.
// DatabaseError: backing-store failure; the message stays generic so storage
// details never leak to callers, the cause is kept for logging.
// OnChainError: the settlement step failed; always paired with a best-effort
// compensating cancellation before it is surfaced.

// ValidationError indicates bad input or an illegal lifecycle transition.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NewValidationError creates a ValidationError with the given message.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// NotFoundError indicates the referenced intent does not exist.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// NewNotFoundError creates a NotFoundError with the given message.
func NewNotFoundError(message string) *NotFoundError {
	return &NotFoundError{Message: message}
}

// DatabaseError indicates a backing-store failure.
type DatabaseError struct {
	Message string
	Cause   error
}

func (e *DatabaseError) Error() string { return e.Message }

func (e *DatabaseError) Unwrap() error { return e.Cause }

// NewDatabaseError creates a DatabaseError with a caller-safe message and
// the underlying cause.
func NewDatabaseError(message string, cause error) *DatabaseError {
	return &DatabaseError{Message: message, Cause: cause}
}

// OnChainError indicates the on-ledger settlement step failed.
type OnChainError struct {
	Message string
	Cause   error
}

func (e *OnChainError) Error() string { return e.Message }

func (e *OnChainError) Unwrap() error { return e.Cause }

// NewOnChainError creates an OnChainError with the given message and cause.
func NewOnChainError(message string, cause error) *OnChainError {
	return &OnChainError{Message: message, Cause: cause}
}
