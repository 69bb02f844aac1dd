package event

import (
	"errors"
	"fmt"
)

// ErrMalformedPayload is matched by every error caused by an inbound event
// whose shape cannot be processed.
var ErrMalformedPayload = errors.New("malformed payload")

// PayloadError describes which part of an inbound event was unusable
type PayloadError struct {
	Field  string
	Reason string
}

// Error implements the error interface
func (e *PayloadError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrMalformedPayload, e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrMalformedPayload
func (e *PayloadError) Unwrap() error {
	return ErrMalformedPayload
}

func malformed(field, reason string) error {
	return &PayloadError{Field: field, Reason: reason}
}
