// Copyright (c) 2023-2025 The txcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package legacy

import "fmt"

// ErrorCode identifies a kind of error.
type ErrorCode int

const (
	// ErrMalformedRecord indicates a record that could not be parsed as
	// any known legacy schema.
	ErrMalformedRecord ErrorCode = iota

	// ErrUnsupportedVersion indicates a record version this importer
	// does not convert: version 3 and later records need no conversion,
	// and versions below 1 never existed.
	ErrUnsupportedVersion

	// lastErr is used in tests to iterate over the error codes and check
	// that they all have entries in errorCodeStrings.
	lastErr
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrMalformedRecord:    "ErrMalformedRecord",
	ErrUnsupportedVersion: "ErrUnsupportedVersion",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s, ok := errorCodeStrings[e]; ok {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error is a typed error describing an import failure.
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
