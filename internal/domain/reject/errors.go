package reject

import (
	"errors"
	"fmt"
)

var (
	// ErrNoEligibleServers is the only hard failure of an archive aggregation.
	ErrNoEligibleServers = errors.New("no eligible servers configured")
	ErrUnknownServer     = errors.New("archive server not found")

	ErrMissingTag   = errors.New("required dicom tag missing")
	ErrMalformedTag = errors.New("dicom tag malformed")

	ErrValidation          = errors.New("validation failed")
	ErrInvalidMonth        = errors.New("invalid analysis month")
	ErrInvalidModality     = errors.New("invalid modality")
	ErrInvalidCategoryType = errors.New("invalid category type")
	ErrInvalidSeverity     = errors.New("invalid severity")

	ErrApproverRequired  = errors.New("approver is required")
	ErrSelfApproval      = errors.New("approver must differ from the author of the figures")
	ErrAlreadyApproved   = errors.New("analysis already approved")
	ErrInactiveReason    = errors.New("reject reason is inactive")
	ErrInactiveCategory  = errors.New("reject category is inactive")
	ErrCategoryInUse     = errors.New("reject category still has reasons")
	ErrDuplicateCategory = errors.New("reject category name already exists for type")
	ErrDuplicateReason   = errors.New("reject reason text already exists in category")
	ErrIncidentAssigned  = errors.New("incident already belongs to another analysis")
)

// ValidationError reports a rejected write. It matches ErrValidation with errors.Is.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid builds a ValidationError optionally wrapping a more specific sentinel.
func Invalid(field string, reason string, cause error) error {
	return &ValidationError{Field: field, Reason: reason, Err: cause}
}
