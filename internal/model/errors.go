package model

import (
	"fmt"
	"time"
)

// Error kind codes. The set is closed; every failure surfaced by the
// emission core carries exactly one of these.
const (
	ErrCodeValidation       = "VALIDATION"
	ErrCodeCertificate      = "CERTIFICATE"
	ErrCodeNetwork          = "NETWORK"
	ErrCodeRejection        = "REJECTION"
	ErrCodeTimeWindow       = "TIME_WINDOW"
	ErrCodeSequenceConflict = "SEQUENCE_CONFLICT"
)

// ValidationError reports malformed input or missing required codes.
// It always fails before any network or cryptographic work.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("[%s] %s: %s (value=%v)", ErrCodeValidation, e.Field, e.Message, e.Value)
	}
	return fmt.Sprintf("[%s] %s: %s", ErrCodeValidation, e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// CertificateError reports a bad passphrase, malformed credential
// bundle, or a bundle without a usable key/certificate pair
type CertificateError struct {
	Message string
	Cause   error
}

func (e *CertificateError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s (%v)", ErrCodeCertificate, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", ErrCodeCertificate, e.Message)
}

func (e *CertificateError) Unwrap() error {
	return e.Cause
}

// NewCertificateError creates a new certificate error
func NewCertificateError(message string, cause error) *CertificateError {
	return &CertificateError{Message: message, Cause: cause}
}

// NetworkError reports a transport-level failure after retries were
// exhausted
type NetworkError struct {
	Endpoint string
	Attempts int
	Cause    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("[%s] %s unreachable after %d attempts (%v)", ErrCodeNetwork, e.Endpoint, e.Attempts, e.Cause)
}

func (e *NetworkError) Unwrap() error {
	return e.Cause
}

// NewNetworkError creates a new network error
func NewNetworkError(endpoint string, attempts int, cause error) *NetworkError {
	return &NetworkError{Endpoint: endpoint, Attempts: attempts, Cause: cause}
}

// ProtocolRejection reports a valid authority response whose status
// code denies the request. Code and reason are surfaced verbatim and
// the request must not be retried.
type ProtocolRejection struct {
	Code   int
	Reason string
}

func (e *ProtocolRejection) Error() string {
	return fmt.Sprintf("[%s] %d: %s", ErrCodeRejection, e.Code, e.Reason)
}

// NewProtocolRejection creates a new protocol rejection
func NewProtocolRejection(code int, reason string) *ProtocolRejection {
	return &ProtocolRejection{Code: code, Reason: reason}
}

// TimeWindowError reports a cancellation attempted after the 24h
// window closed
type TimeWindowError struct {
	IssuedAt time.Time
	Deadline time.Time
}

func (e *TimeWindowError) Error() string {
	return fmt.Sprintf("[%s] cancellation window closed at %s (issued %s); issue a reversal document (NF-e de devolucao) instead of retrying cancellation",
		ErrCodeTimeWindow, e.Deadline.Format(time.RFC3339), e.IssuedAt.Format(time.RFC3339))
}

// NewTimeWindowError creates a new time window error
func NewTimeWindowError(issuedAt time.Time) *TimeWindowError {
	return &TimeWindowError{IssuedAt: issuedAt, Deadline: issuedAt.Add(CancellationWindow)}
}

// SequenceConflictError reports a correction submitted with a stale or
// reused sequence number
type SequenceConflictError struct {
	AccessKey string
	Got       int
	Want      int
}

func (e *SequenceConflictError) Error() string {
	return fmt.Sprintf("[%s] correction sequence %d for %s is stale, next is %d", ErrCodeSequenceConflict, e.Got, e.AccessKey, e.Want)
}

// NewSequenceConflictError creates a new sequence conflict error
func NewSequenceConflictError(accessKey string, got, want int) *SequenceConflictError {
	return &SequenceConflictError{AccessKey: accessKey, Got: got, Want: want}
}
