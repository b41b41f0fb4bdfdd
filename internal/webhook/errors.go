package webhook

import (
	"fmt"

	"github.com/ignite/postmark-bridge/internal/domain"
)

// Plain-text bodies returned to Postmark for rejected requests.
const (
	msgInvalidJSON = "Invalid JSON"
	msgInvalidForm = "Invalid form data"
	msgNoData      = "There is no data to process."

	msgInvalidSuppressSending = "Missing or invalid SuppressSending"
)

// MalformedPayloadError means the body could not be decoded into a single
// object, or a field the record type depends on was missing or unreadable.
type MalformedPayloadError struct {
	Message string
	Err     error
}

func (e *MalformedPayloadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed payload: %s: %v", e.Message, e.Err)
	}
	return "malformed payload: " + e.Message
}

func (e *MalformedPayloadError) Unwrap() error { return e.Err }

// UnsupportedRecordTypeError carries the literal RecordType that was not
// recognized, empty when the field was absent.
type UnsupportedRecordTypeError struct {
	RecordType string
}

func (e *UnsupportedRecordTypeError) Error() string {
	if e.RecordType == "" {
		return "missing RecordType"
	}
	return fmt.Sprintf("unsupported RecordType %q", e.RecordType)
}

// MissingRecipientError means a record type that requires an address came without one.
type MissingRecipientError struct {
	RecordType domain.RecordType
}

func (e *MissingRecipientError) Error() string {
	return fmt.Sprintf("%s notification has no recipient", e.RecordType)
}

// UnknownReasonError is a warning: the record type is handled but its
// reason/type code is not, so no action is taken.
type UnknownReasonError struct {
	RecordType domain.RecordType
	Reason     string
}

func (e *UnknownReasonError) Error() string {
	return fmt.Sprintf("unknown %s reason %q", e.RecordType, e.Reason)
}
