// Copyright (c) 2023-2025 The txcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coinselect

import "fmt"

// ErrorCode identifies a kind of error.
type ErrorCode int

const (
	// ErrInsufficientFunds indicates that the raw value of the spendable
	// set does not reach the target amount, before fees.
	ErrInsufficientFunds ErrorCode = iota

	// ErrInsufficientFundsForFee indicates that the spendable set covers
	// the target amount but not the fee on top of it.
	ErrInsufficientFundsForFee

	// ErrUTXOsLocked indicates that enough value exists but too much of
	// it is reserved by other in-flight proposals.
	ErrUTXOsLocked

	// ErrTxSizeExceeded indicates that no input combination reaching the
	// target stays under the maximum transaction size.
	ErrTxSizeExceeded

	// ErrNoReplaceInput indicates a replacement selection that retains no
	// input of the transaction being replaced.
	ErrNoReplaceInput

	// ErrInternal indicates an unexpected internal failure, distinct from
	// the funds classification above.
	ErrInternal

	// lastErr is used in tests to iterate over the error codes.
	lastErr
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrInsufficientFunds:       "ErrInsufficientFunds",
	ErrInsufficientFundsForFee: "ErrInsufficientFundsForFee",
	ErrUTXOsLocked:             "ErrUTXOsLocked",
	ErrTxSizeExceeded:          "ErrTxSizeExceeded",
	ErrNoReplaceInput:          "ErrNoReplaceInput",
	ErrInternal:                "ErrInternal",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s, ok := errorCodeStrings[e]; ok {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error is a typed error describing a selection failure.  Callers present
// remediation based on the code: ErrInsufficientFunds means "add funds",
// ErrInsufficientFundsForFee means "reduce outputs or fee rate".
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

// Code extracts the ErrorCode from an error returned by this package.  The
// second return is false if the error did not originate here.
func Code(err error) (ErrorCode, bool) {
	if e, ok := err.(Error); ok {
		return e.ErrorCode, true
	}
	return 0, false
}
