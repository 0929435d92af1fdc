/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package errs provides tagged error variants for the orchestrator.
//
// The appliance client and the upgrade state machine both need callers
// to branch on *why* an operation failed without parsing error
// strings. Rather than defining a new exception type per failure mode
// (as the original tooling this system replaces did), every failure is
// a *Error carrying a Code plus enough structured context to explain
// itself, inspected with Is/Code the way the teacher's error package
// is inspected with IsPrimus/GetErrorCode.
package errs

import "fmt"

// Code identifies the category of an error.
type Code string

const (
	// Device client codes (spec §4.3).
	Auth          Code = "auth"
	Connect       Code = "connect"
	Timeout       Code = "timeout"
	Refused       Code = "refused"
	ProtocolError Code = "protocol_error"
	NotFound      Code = "not_found"

	// Policy / orchestration codes (spec §4.9, §7).
	DuplicateJob     Code = "duplicate_job"
	ConflictingJob   Code = "conflicting_job"
	NoUpgradePath    Code = "no_upgrade_path"
	InsufficientDisk Code = "insufficient_disk"
	MissingImage     Code = "missing_image"
	DeviceNotFound   Code = "device_not_found"
	CorruptFile      Code = "corrupt_file"
	BadJob           Code = "bad_job"
	NoPassiveMember  Code = "no_passive_member"
)

// Error is the single error type used across the orchestrator for
// anything a caller needs to branch on programmatically.
type Error struct {
	Code    Code
	Message string
	// Details carries free-form structured context (e.g. the set of
	// missing image versions, or the available/required disk space)
	// for inclusion in DeviceStatus.errors[].details.
	Details string
	// Wrapped is the underlying cause, if any (connect/timeout errors
	// from a real transport). Never required.
	Wrapped error
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// New builds a tagged error with no wrapped cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf builds a tagged error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Wrapped: cause}
}

// WithDetails returns a copy of e with Details set.
func (e *Error) WithDetails(details string) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// Is reports whether err (or anything it wraps) carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// CodeOf extracts the Code from err, or "" if err is not one of ours.
func CodeOf(err error) Code {
	var e *Error
	for err != nil {
		if ce, ok := err.(*Error); ok {
			e = ce
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if e == nil {
		return ""
	}
	return e.Code
}

// Transient reports whether a device-client error code represents a
// condition worth retrying (connect/timeout flaps, common during a
// device reboot), as opposed to a hard policy or protocol failure.
func Transient(code Code) bool {
	switch code {
	case Connect, Timeout, Refused:
		return true
	default:
		return false
	}
}
