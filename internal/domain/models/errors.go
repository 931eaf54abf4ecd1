package models

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by services, stores and the HTTP layer.
var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrValidation       = errors.New("validation failed")
	ErrProvider         = errors.New("provider unavailable")
)

var (
	// ErrHousingNotFound is returned when a housing reference does not resolve.
	ErrHousingNotFound = fmt.Errorf("housing %w", ErrNotFound)
	// ErrCapacityExceeded is only returned under the hard capacity policy.
	ErrCapacityExceeded = fmt.Errorf("%w: housing at capacity", ErrValidation)
	// ErrInvalidTransition rejects a lifecycle change the state machine forbids.
	ErrInvalidTransition = fmt.Errorf("%w: status transition not allowed", ErrValidation)
	// ErrDuplicateTag rejects a tag already used inside the farm.
	ErrDuplicateTag = fmt.Errorf("%w: tag already in use", ErrValidation)
)

// Validationf builds an ErrValidation with a formatted detail message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// WarningCode identifies a non-fatal condition surfaced to the user.
type WarningCode string

const (
	WarningCapacity   WarningCode = "capacity"
	WarningInbreeding WarningCode = "inbreeding"
)

// Warning is a non-fatal message returned next to a successful result.
type Warning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
}
