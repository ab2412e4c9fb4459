package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a classified pipeline failure
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeInvalidSignature   = "INVALID_SIGNATURE"
	ErrCodeInvalidJSON        = "INVALID_JSON"
	ErrCodeStorageFailure     = "STORAGE_FAILURE"
	ErrCodeRecordNotFound     = "RECORD_NOT_FOUND"
	ErrCodeInvalidFingerprint = "INVALID_FINGERPRINT"
)

// ErrRecordNotFound is returned by stores when no record carries the requested fingerprint.
var ErrRecordNotFound = errors.New("webhook record not found")

// NewInvalidSignatureError never says which part of the check failed.
func NewInvalidSignatureError() *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidSignature,
		Message: "Invalid signature",
	}
}

func NewInvalidJSONError(err error) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidJSON,
		Message: "Invalid JSON body",
		Err:     err,
	}
}

func NewStorageError(err error) *DomainError {
	return &DomainError{
		Code:    ErrCodeStorageFailure,
		Message: "storage failure",
		Err:     err,
	}
}

func NewRecordNotFoundError(fingerprint string) *DomainError {
	return &DomainError{
		Code:    ErrCodeRecordNotFound,
		Message: fmt.Sprintf("no webhook with fingerprint %s", fingerprint),
		Err:     ErrRecordNotFound,
	}
}

func NewInvalidFingerprintError(fingerprint string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidFingerprint,
		Message: fmt.Sprintf("invalid fingerprint %q", fingerprint),
	}
}

// IsErrorCode checks if an error is a DomainError with a specific code
func IsErrorCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// RejectionState maps a pipeline error to its terminal rejection state.
// Anything unclassified is treated as a storage failure.
func RejectionState(err error) IngestState {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		switch domainErr.Code {
		case ErrCodeInvalidSignature:
			return StateAuthRejected
		case ErrCodeInvalidJSON:
			return StateMalformedBody
		}
	}
	return StateStorageFailed
}
