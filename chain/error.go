// Copyright (c) 2023-2025 The txcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import "fmt"

// ErrorCode identifies a kind of error.
type ErrorCode int

const (
	// ErrUnsupportedChain indicates an operation on a chain this build
	// has no adapter for.
	ErrUnsupportedChain ErrorCode = iota

	// ErrUnsupportedOperation indicates an operation the chain's adapter
	// cannot perform, such as multisig on a chain without script support.
	ErrUnsupportedOperation

	// ErrInvalidAddress indicates an address that does not parse or does
	// not belong to the requested network.
	ErrInvalidAddress

	// ErrDustOutput indicates an output below the economic dust limit.
	ErrDustOutput

	// ErrScriptOutput indicates a raw script output that is not a plain
	// OP_RETURN data carrier.
	ErrScriptOutput

	// ErrInvalidInput indicates a malformed input reference, such as an
	// unparsable previous transaction id.
	ErrInvalidInput

	// ErrSignatureCount indicates a signature list whose length does not
	// match the transaction's input count.
	ErrSignatureCount

	// ErrSignature indicates a signature that does not verify against
	// the expected public key.
	ErrSignature

	// ErrTxAssembly indicates an internal failure assembling transaction
	// bytes.
	ErrTxAssembly

	// ErrPayload indicates a chain-specific payload that cannot be
	// encoded or decoded.
	ErrPayload

	// lastErr is used in tests to iterate over the error codes.
	lastErr
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrUnsupportedChain:     "ErrUnsupportedChain",
	ErrUnsupportedOperation: "ErrUnsupportedOperation",
	ErrInvalidAddress:       "ErrInvalidAddress",
	ErrDustOutput:           "ErrDustOutput",
	ErrScriptOutput:         "ErrScriptOutput",
	ErrInvalidInput:         "ErrInvalidInput",
	ErrSignatureCount:       "ErrSignatureCount",
	ErrSignature:            "ErrSignature",
	ErrTxAssembly:           "ErrTxAssembly",
	ErrPayload:              "ErrPayload",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s, ok := errorCodeStrings[e]; ok {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error is a typed error describing an adapter failure.
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
