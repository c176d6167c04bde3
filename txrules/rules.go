// Copyright (c) 2023-2025 The txcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package txrules provides the transaction policy rules the coordination
// core enforces: dust limits, fee arithmetic and output sanity checks.
package txrules

import (
	"errors"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// DefaultRelayFeePerKb is the default minimum relay fee policy for a mempool.
const DefaultRelayFeePerKb btcutil.Amount = 1e3

// DustThreshold is the output value at or below which an implied change
// amount is folded into the fee instead of creating a change output.
const DustThreshold btcutil.Amount = 546

// MaxStandardTxSize is the maximum serialize size of a standard transaction.
// Selections that would exceed it are rejected.
const MaxStandardTxSize = 100000

// Transaction rule violations.
var (
	ErrAmountNegative   = errors.New("transaction output amount is negative")
	ErrAmountExceedsMax = errors.New("transaction output amount exceeds maximum value")
	ErrOutputIsDust     = errors.New("transaction output is dust")
	ErrNonStandardData  = errors.New("unspendable output is not a data carrier")
)

// IsDustAmount determines whether a transaction output value and script
// length would cause the output to be considered dust.  Transactions with
// dust outputs are not standard and are rejected by mempools with default
// policies.
func IsDustAmount(amount btcutil.Amount, scriptSize int,
	relayFeePerKb btcutil.Amount) bool {

	// The total cost to the network is the serialize size of the output
	// plus the serialize size of the input which redeems it.  The output
	// is assumed to be compressed P2PKH, the most common script type, so
	// the average redeem input size of 165 bytes is used.
	totalSize := 8 + 2 + wire.VarIntSerializeSize(uint64(scriptSize)) +
		scriptSize + 165

	// Dust is defined as an output value where the total cost to the
	// network (output size + input size) is greater than 1/3 of the
	// relay fee.
	return int64(amount)*1000/(3*int64(totalSize)) < int64(relayFeePerKb)
}

// IsDustOutput determines whether a transaction output is considered dust.
func IsDustOutput(output *wire.TxOut, relayFeePerKb btcutil.Amount) bool {
	// Unspendable outputs which solely carry data are not checked for
	// dust.
	if txscript.GetScriptClass(output.PkScript) == txscript.NullDataTy {
		return false
	}

	// All other unspendable outputs are considered dust.
	if txscript.IsUnspendable(output.PkScript) {
		return true
	}

	return IsDustAmount(btcutil.Amount(output.Value), len(output.PkScript),
		relayFeePerKb)
}

// CheckOutput performs simple consensus and policy tests on a transaction
// output.  OP_RETURN data carriers are allowed; every other unspendable
// script is rejected as misuse.
func CheckOutput(output *wire.TxOut, relayFeePerKb btcutil.Amount) error {
	if output.Value < 0 {
		return ErrAmountNegative
	}
	if output.Value > btcutil.MaxSatoshi {
		return ErrAmountExceedsMax
	}
	if txscript.IsUnspendable(output.PkScript) &&
		txscript.GetScriptClass(output.PkScript) != txscript.NullDataTy {

		return ErrNonStandardData
	}
	if IsDustOutput(output, relayFeePerKb) {
		return ErrOutputIsDust
	}
	return nil
}

// FeeForSize calculates the required fee for a transaction of the given
// virtual size.  The result is rounded up, and floored at the fee rate
// itself so a nonzero rate never yields a zero fee.
func FeeForSize(feePerKb btcutil.Amount, sizeVBytes int) btcutil.Amount {
	fee := (feePerKb*btcutil.Amount(sizeVBytes) + 999) / 1000

	if fee == 0 && feePerKb > 0 {
		fee = feePerKb
	}

	if fee < 0 || fee > btcutil.MaxSatoshi {
		fee = btcutil.MaxSatoshi
	}

	return fee
}
