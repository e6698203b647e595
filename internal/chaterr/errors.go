// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chaterr defines the error taxonomy shared by the streaming,
// conversation and directory layers.
//
// Every failure surfaced to the user is an *Error with a Kind. Errors of the
// same kind compare equal under errors.Is, so callers match against the
// sentinels regardless of message or cause:
//
//	if errors.Is(err, chaterr.ErrNotFound) {
//	    // run the recovery protocol
//	}
package chaterr

import "errors"

// =============================================================================
// ERROR KINDS
// =============================================================================

// Kind categorizes errors for handling.
type Kind int

const (
	KindUnknown Kind = iota
	KindStreamUnavailable
	KindDecodeAnomaly
	KindUnauthorized
	KindNotFound
	KindNotEditable
	KindCancelled
)

// String returns the taxonomy name of the kind.
func (k Kind) String() string {
	switch k {
	case KindStreamUnavailable:
		return "StreamUnavailable"
	case KindDecodeAnomaly:
		return "DecodeAnomaly"
	case KindUnauthorized:
		return "Unauthorized"
	case KindNotFound:
		return "NotFound"
	case KindNotEditable:
		return "NotEditable"
	case KindCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// =============================================================================
// ERROR TYPE
// =============================================================================

// Error is a classified failure.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an error of the given kind around a cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Sentinel errors for easy checking.
var (
	ErrStreamUnavailable = New(KindStreamUnavailable, "stream unavailable")
	ErrDecodeAnomaly     = New(KindDecodeAnomaly, "record is not valid structured JSON")
	ErrUnauthorized      = New(KindUnauthorized, "not signed in or session expired")
	ErrNotFound          = New(KindNotFound, "conversation not found")
	ErrNotEditable       = New(KindNotEditable, "message cannot be edited")
	ErrCancelled         = New(KindCancelled, "stream cancelled")
)

// =============================================================================
// HELPERS
// =============================================================================

// KindOf returns the kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsUnauthorized checks if an error is an authentication failure.
func IsUnauthorized(err error) bool {
	return KindOf(err) == KindUnauthorized
}

// IsNotFound checks if an error is a missing conversation.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsCancelled checks if an error is a user-requested cancellation.
func IsCancelled(err error) bool {
	return KindOf(err) == KindCancelled
}
