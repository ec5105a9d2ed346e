package nfc

import (
	"errors"
	"fmt"
)

// Normalized derivation errors. Callers match them with errors.Is.
var (
	ErrInvalidIdentifier = errors.New("INVALID_IDENTIFIER")
	ErrInvalidBlock      = errors.New("INVALID_BLOCK")
	ErrInternal          = errors.New("INTERNAL")
)

// DeriveError wraps a normalized code with the failure that produced it.
type DeriveError struct {
	Code  error // one of the Err* values above
	Cause error
}

func (e *DeriveError) Error() string {
	if e.Cause == nil {
		return e.Code.Error()
	}
	return fmt.Sprintf("%v: %v", e.Code, e.Cause)
}

func (e *DeriveError) Unwrap() error {
	return e.Code
}

// Code returns the normalized code string for err, "SUCCESS" for nil and
// "INTERNAL" for anything that did not come from this package.
func Code(err error) string {
	switch {
	case err == nil:
		return "SUCCESS"
	case errors.Is(err, ErrInvalidIdentifier):
		return ErrInvalidIdentifier.Error()
	case errors.Is(err, ErrInvalidBlock):
		return ErrInvalidBlock.Error()
	default:
		return ErrInternal.Error()
	}
}
