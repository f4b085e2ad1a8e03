package weighment

import "errors"

// Error kinds. Callers match them with errors.Is; the wrapped message
// carries the detail for the operator.
var (
	// ErrValidation is returned for missing or malformed input. Nothing is written.
	ErrValidation = errors.New("validation failed")

	// ErrIdentityResolution is returned when a farmer or vehicle could not be
	// looked up or created. The gross step is aborted before any transaction insert.
	ErrIdentityResolution = errors.New("identity resolution failed")

	// ErrCaptureUnavailable means no camera frame could be taken. Non-fatal.
	ErrCaptureUnavailable = errors.New("capture unavailable")

	// ErrUpload means a snapshot could not be stored durably. Non-fatal.
	ErrUpload = errors.New("snapshot upload failed")

	// ErrTransactionWrite is returned when inserting or updating a transaction fails.
	ErrTransactionWrite = errors.New("transaction write failed")

	// ErrInvalidTransition is returned when completing a transaction that is
	// missing or not pending tare. It is always joined with one of the two below.
	ErrInvalidTransition = errors.New("invalid transition")

	ErrTransactionNotFound = errors.New("transaction not found")
	ErrAlreadyCompleted    = errors.New("transaction already completed")
)
