package collab

import (
	"errors"
	"fmt"
)

// RejectCode categorizes per-operation rejections.
type RejectCode string

const (
	// CodeStaleRevision indicates the submitted base revision is negative
	// or ahead of the document; the client must resync from a snapshot.
	CodeStaleRevision RejectCode = "STALE_REVISION"

	// CodeUnauthorized indicates the client's capability set lacks Write.
	CodeUnauthorized RejectCode = "UNAUTHORIZED"

	// CodeMalformed indicates the operation falls outside document bounds
	// after transformation - a transport or client bug, never coerced.
	CodeMalformed RejectCode = "MALFORMED_OPERATION"
)

// RejectError is a local, non-fatal, per-operation rejection. It is
// reported to the originating client only and never mutates document
// state or the revision log; validation and transformation happen before
// the commit critical section.
type RejectError struct {
	// Code identifies the rejection category.
	Code RejectCode

	// Message is a human-readable description.
	Message string

	// ClientID identifies the submitting client.
	ClientID string

	// OpID identifies the rejected operation, when known.
	OpID string
}

// Error implements the error interface.
func (e *RejectError) Error() string {
	if e.OpID != "" {
		return fmt.Sprintf("%s: %s (client=%s, op=%s)", e.Code, e.Message, e.ClientID, e.OpID)
	}
	return fmt.Sprintf("%s: %s (client=%s)", e.Code, e.Message, e.ClientID)
}

// IsStaleRevision reports whether err is a stale-revision rejection.
// Uses errors.As to handle wrapped errors.
func IsStaleRevision(err error) bool {
	return hasCode(err, CodeStaleRevision)
}

// IsUnauthorized reports whether err is a capability rejection.
func IsUnauthorized(err error) bool {
	return hasCode(err, CodeUnauthorized)
}

// IsMalformed reports whether err is an out-of-bounds rejection.
func IsMalformed(err error) bool {
	return hasCode(err, CodeMalformed)
}

func hasCode(err error, code RejectCode) bool {
	var re *RejectError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

func newStaleRevision(clientID, opID string, base, current int) *RejectError {
	return &RejectError{
		Code:     CodeStaleRevision,
		Message:  fmt.Sprintf("base revision %d unreachable (document at %d)", base, current),
		ClientID: clientID,
		OpID:     opID,
	}
}

func newUnauthorized(clientID, opID string) *RejectError {
	return &RejectError{
		Code:     CodeUnauthorized,
		Message:  "client lacks write capability",
		ClientID: clientID,
		OpID:     opID,
	}
}

func newMalformed(clientID, opID string, cause error) *RejectError {
	return &RejectError{
		Code:     CodeMalformed,
		Message:  cause.Error(),
		ClientID: clientID,
		OpID:     opID,
	}
}
