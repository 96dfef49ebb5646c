package normalize

import (
	"errors"
	"fmt"
)

// Reason is a machine-readable validation failure code.
type Reason string

const (
	// ReasonMalformedPayload means the structured payload could not be decoded
	// as a slice document.
	ReasonMalformedPayload Reason = "malformed_payload"
	// ReasonMissingFile means the upload channel was used without content.
	ReasonMissingFile Reason = "missing_file"
	// ReasonEmptyRequest means no input channel was supplied at all.
	ReasonEmptyRequest Reason = "empty_request"
)

// ValidationError rejects a create request before anything is dispatched.
type ValidationError struct {
	Reason Reason
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("invalid create request: %s", e.Reason)
	}
	return fmt.Sprintf("invalid create request: %s: %v", e.Reason, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ReasonOf extracts the validation reason from err, if it is a ValidationError.
func ReasonOf(err error) (Reason, bool) {
	var v *ValidationError
	if errors.As(err, &v) {
		return v.Reason, true
	}
	return "", false
}

// IsReason checks if err is a ValidationError with the given reason.
func IsReason(err error, r Reason) bool {
	got, ok := ReasonOf(err)
	return ok && got == r
}
