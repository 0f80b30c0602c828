package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedPayload   = errors.New("malformed_payload")
	ErrInvalidSignature   = errors.New("invalid_signature")
	ErrTransientIO        = errors.New("transient_io")
	ErrRecordNotFound     = errors.New("payment_record_not_found")
	ErrInvalidDecision    = errors.New("invalid_decision")
	ErrSubmissionNotFound = errors.New("submission_not_found")
	ErrTerminalStatus     = errors.New("terminal_status")
	ErrSourceNotFound     = errors.New("source_not_found")
	ErrInvalidConfig      = errors.New("invalid_config")
)

// MalformedPayloadError names the field that made a payload unusable.
type MalformedPayloadError struct {
	Field  string
	Reason string
}

func (e *MalformedPayloadError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("malformed_payload: %s", e.Field)
	}
	return fmt.Sprintf("malformed_payload: %s %s", e.Field, e.Reason)
}

func (e *MalformedPayloadError) Unwrap() error { return ErrMalformedPayload }

func Malformed(field, reason string) error {
	return &MalformedPayloadError{Field: field, Reason: reason}
}
