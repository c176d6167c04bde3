// Copyright (c) 2023-2025 The txcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txproposal

import "fmt"

// ErrorCode identifies a kind of error.
type ErrorCode int

const (
	// ErrInvalidProposal indicates creation parameters that violate a
	// proposal invariant, such as a bad quorum or an empty output list.
	ErrInvalidProposal ErrorCode = iota

	// ErrInvalidAddress indicates an output address that fails the
	// chain adapter's validation.
	ErrInvalidAddress

	// ErrDustOutput indicates an output below the chain's dust limit.
	ErrDustOutput

	// ErrScriptOutput indicates misuse of a raw script output.
	ErrScriptOutput

	// ErrUnknownCopayer indicates a vote from an id outside the wallet's
	// key ring.
	ErrUnknownCopayer

	// ErrCopayerVoted indicates a second vote from a copayer that has
	// already voted on the proposal.
	ErrCopayerVoted

	// ErrSignatureCount indicates an accept vote whose signature list
	// does not carry exactly one entry per input.
	ErrSignatureCount

	// ErrSignature indicates an accept vote with a signature that does
	// not verify against the voter's derived keys.
	ErrSignature

	// ErrProposalSignature indicates a creator signature (or delegated
	// key authorization) that does not verify.
	ErrProposalSignature

	// ErrInvalidState indicates an operation that is not legal in the
	// proposal's current status, such as voting on a rejected proposal
	// or broadcasting before acceptance.
	ErrInvalidState

	// ErrMissingTxID indicates a broadcast mark on a proposal with no
	// recorded transaction id.
	ErrMissingTxID

	// ErrUnsupportedFormat indicates a proposal record older than
	// version 3, which must be routed through the legacy importer.
	ErrUnsupportedFormat

	// ErrUnsupportedOperation indicates a capability the proposal's
	// chain does not have.
	ErrUnsupportedOperation

	// ErrInternal indicates an unexpected internal failure.
	ErrInternal

	// lastErr is used in tests to iterate over the error codes.
	lastErr
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrInvalidProposal:      "ErrInvalidProposal",
	ErrInvalidAddress:       "ErrInvalidAddress",
	ErrDustOutput:           "ErrDustOutput",
	ErrScriptOutput:         "ErrScriptOutput",
	ErrUnknownCopayer:       "ErrUnknownCopayer",
	ErrCopayerVoted:         "ErrCopayerVoted",
	ErrSignatureCount:       "ErrSignatureCount",
	ErrSignature:            "ErrSignature",
	ErrProposalSignature:    "ErrProposalSignature",
	ErrInvalidState:         "ErrInvalidState",
	ErrMissingTxID:          "ErrMissingTxID",
	ErrUnsupportedFormat:    "ErrUnsupportedFormat",
	ErrUnsupportedOperation: "ErrUnsupportedOperation",
	ErrInternal:             "ErrInternal",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s, ok := errorCodeStrings[e]; ok {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error is a typed error describing a proposal failure.
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
