// Copyright (c) 2023-2025 The txcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keyring

import "fmt"

// ErrorCode identifies a kind of error.
type ErrorCode int

const (
	// ErrInvalidRing indicates a public-key ring that violates the
	// 1 <= m <= n <= MaxKeys invariant or carries malformed keys.
	ErrInvalidRing ErrorCode = iota

	// ErrDuplicateKey indicates that the same extended public key appears
	// more than once in a ring.
	ErrDuplicateKey

	// ErrInvalidPath indicates a derivation path that could not be parsed
	// or contains hardened components, which cannot be derived from an
	// extended public key.
	ErrInvalidPath

	// ErrKeyChain indicates a failure deriving a child extended key.
	ErrKeyChain

	// ErrScriptCreation indicates that building an output script for a
	// derived address failed.
	ErrScriptCreation

	// ErrUnsupportedScriptType indicates a script type this ring cannot
	// produce, such as a multisig ring asked for a single-key address.
	ErrUnsupportedScriptType

	// ErrCrypto indicates a failure in a low-level cryptographic
	// operation such as parsing a public key or sealing a memo.
	ErrCrypto

	// lastErr is used in tests to iterate over the error codes and check
	// that they all have entries in errorCodeStrings.
	lastErr
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrInvalidRing:           "ErrInvalidRing",
	ErrDuplicateKey:          "ErrDuplicateKey",
	ErrInvalidPath:           "ErrInvalidPath",
	ErrKeyChain:              "ErrKeyChain",
	ErrScriptCreation:        "ErrScriptCreation",
	ErrUnsupportedScriptType: "ErrUnsupportedScriptType",
	ErrCrypto:                "ErrCrypto",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s, ok := errorCodeStrings[e]; ok {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error is a typed error describing a keyring failure.  The ErrorCode allows
// callers to act on the class of failure without string matching.
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
