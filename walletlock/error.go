// Copyright (c) 2023-2025 The txcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package walletlock

import "fmt"

// ErrorCode identifies a kind of error.
type ErrorCode int

const (
	// ErrBusy indicates the wallet lock could not be acquired within the
	// configured wait bound because another holder kept it.
	ErrBusy ErrorCode = iota

	// ErrStaleLease indicates an operation on a lease that is no longer
	// the current holder, either released already or stolen after its
	// expiry.
	ErrStaleLease

	// lastErr is used in tests to iterate over the error codes and check
	// that they all have entries in errorCodeStrings.
	lastErr
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrBusy:       "ErrBusy",
	ErrStaleLease: "ErrStaleLease",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s, ok := errorCodeStrings[e]; ok {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error is a typed error describing a locking failure.
type Error struct {
	ErrorCode   ErrorCode
	Description string
	Err         error
}

// Error satisfies the error interface.
func (e Error) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

// Unwrap returns the underlying error, if any.
func (e Error) Unwrap() error {
	return e.Err
}

func newError(c ErrorCode, desc string, err error) Error {
	return Error{ErrorCode: c, Description: desc, Err: err}
}
