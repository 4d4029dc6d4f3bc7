package audit

import "errors"

var (
	// ErrStorageNotAvailable indicates the writer was closed.
	ErrStorageNotAvailable = errors.New("audit storage is unavailable")

	// ErrEventValidation indicates event validation failed.
	ErrEventValidation = errors.New("audit event validation failed")
)
