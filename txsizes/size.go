// Copyright (c) 2023-2025 The txcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package txsizes provides worst-case serialize size estimates for the
// transaction shapes the coordination core produces.  All estimates are
// closed-form byte counts; nothing here ever serializes a real transaction.
package txsizes

import (
	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/wire"

	"github.com/coparty/txcoord/keyring"
)

// Worst case script and input/output size estimates.
const (
	// RedeemP2PKHSigScriptSize is the worst case (largest) serialize size
	// of a transaction input script that redeems a compressed P2PKH
	// output.  It is calculated as:
	//
	//   - OP_DATA_73
	//   - 72 bytes DER signature + 1 byte sighash
	//   - OP_DATA_33
	//   - 33 bytes serialized compressed pubkey
	RedeemP2PKHSigScriptSize = 1 + 73 + 1 + 33

	// RedeemP2PKHInputSize is the worst case (largest) serialize size of a
	// transaction input redeeming a compressed P2PKH output.  It is
	// calculated as:
	//
	//   - 32 bytes previous tx
	//   - 4 bytes output index
	//   - 1 byte compact int encoding value 107
	//   - 107 bytes signature script
	//   - 4 bytes sequence
	RedeemP2PKHInputSize = 32 + 4 + 1 + RedeemP2PKHSigScriptSize + 4

	// RedeemP2WPKHInputSize is the worst case size of a transaction input
	// redeeming a P2WPKH output.  The redeem script for native segwit
	// spends is empty.
	RedeemP2WPKHInputSize = 32 + 4 + 1 + 4

	// RedeemP2TRInputSize is the worst case size of a transaction input
	// redeeming a P2TR output.  The redeem script is empty.
	RedeemP2TRInputSize = 32 + 4 + 1 + 4

	// RedeemP2WPKHInputWitnessWeight is the worst case weight of a witness
	// spending a P2WPKH output:
	//
	//   - 1 wu compact int encoding value 2 (number of items)
	//   - 1 wu compact int encoding value 73
	//   - 72 wu DER signature + 1 wu sighash
	//   - 1 wu compact int encoding value 33
	//   - 33 wu serialized compressed pubkey
	RedeemP2WPKHInputWitnessWeight = 1 + 1 + 73 + 1 + 33

	// RedeemP2TRInputWitnessWeight is the worst case weight of a witness
	// spending a P2TR output with a key spend:
	//
	//   - 1 wu compact int encoding value 1 (number of items)
	//   - 1 wu compact int encoding value 65
	//   - 64 wu BIP-340 schnorr signature + 1 wu sighash
	RedeemP2TRInputWitnessWeight = 1 + 1 + 65

	// P2PKHOutputSize is the serialize size of a P2PKH output: 8 bytes
	// value, 1 byte script length, 25 bytes script.
	P2PKHOutputSize = 8 + 1 + 25

	// P2SHOutputSize is the serialize size of a P2SH output: 8 bytes
	// value, 1 byte script length, 23 bytes script.
	P2SHOutputSize = 8 + 1 + 23

	// P2WPKHOutputSize is the serialize size of a P2WPKH output: 8 bytes
	// value, 1 byte script length, 22 bytes script.
	P2WPKHOutputSize = 8 + 1 + 22

	// P2WSHOutputSize is the serialize size of a P2WSH output: 8 bytes
	// value, 1 byte script length, 34 bytes script.
	P2WSHOutputSize = 8 + 1 + 34

	// P2TROutputSize is the serialize size of a P2TR output: 8 bytes
	// value, 1 byte script length, 34 bytes script.
	P2TROutputSize = 8 + 1 + 34

	// sigPushSize is the worst case size of a single pushed multisig
	// signature: 1 byte push opcode, 72 bytes DER signature, 1 byte
	// sighash type.
	sigPushSize = 1 + 73

	// baseTxOverhead covers the 4 byte version and 4 byte locktime.
	baseTxOverhead = 8
)

// MultiSigScriptSize returns the serialize size of an m-of-n multisig redeem
// script over compressed public keys:
//
//   - OP_m
//   - n * (OP_DATA_33 + 33 bytes compressed pubkey)
//   - OP_n
//   - OP_CHECKMULTISIG
func MultiSigScriptSize(n int) int {
	return 1 + n*(1+33) + 1 + 1
}

// scriptPushSize returns the size of the opcodes needed to push a script of
// the given length inside a signature script.
func scriptPushSize(scriptLen int) int {
	switch {
	case scriptLen <= 75:
		return 1
	case scriptLen <= 255:
		return 2
	default:
		return 3
	}
}

// RedeemMultiSigSigScriptSize returns the worst case size of a signature
// script redeeming an m-of-n P2SH multisig output:
//
//   - OP_0 (CHECKMULTISIG off-by-one)
//   - m worst case signature pushes
//   - push of the full redeem script
func RedeemMultiSigSigScriptSize(m, n int) int {
	scriptLen := MultiSigScriptSize(n)
	return 1 + m*sigPushSize + scriptPushSize(scriptLen) + scriptLen
}

// RedeemP2SHMultiSigInputSize returns the worst case serialize size of a
// transaction input redeeming an m-of-n P2SH multisig output.
func RedeemP2SHMultiSigInputSize(m, n int) int {
	sigScript := RedeemMultiSigSigScriptSize(m, n)
	return 32 + 4 + wire.VarIntSerializeSize(uint64(sigScript)) + sigScript + 4
}

// RedeemP2WSHMultiSigWitnessWeight returns the worst case witness weight of
// an input spending an m-of-n P2WSH multisig output.  The witness carries an
// empty dummy item, m signatures and the witness script.
func RedeemP2WSHMultiSigWitnessWeight(m, n int) int {
	scriptLen := MultiSigScriptSize(n)
	return 1 + // number of witness items
		1 + // empty dummy item
		m*sigPushSize +
		wire.VarIntSerializeSize(uint64(scriptLen)) + scriptLen
}

// InputSize returns the worst case virtual size, in vbytes, that one input
// of the given script type adds to a transaction.  For an m-of-n wallet the
// multisig script types grow with both m and n; single-key types ignore them.
func InputSize(scriptType keyring.ScriptType, m, n int) int {
	var baseSize, witnessWeight int
	switch scriptType {
	case keyring.ScriptP2SH:
		baseSize = RedeemP2SHMultiSigInputSize(m, n)

	case keyring.ScriptP2WSH:
		baseSize = RedeemP2WPKHInputSize
		witnessWeight = RedeemP2WSHMultiSigWitnessWeight(m, n)

	case keyring.ScriptP2WPKH:
		baseSize = RedeemP2WPKHInputSize
		witnessWeight = RedeemP2WPKHInputWitnessWeight

	case keyring.ScriptP2TR:
		baseSize = RedeemP2TRInputSize
		witnessWeight = RedeemP2TRInputWitnessWeight

	default:
		baseSize = RedeemP2PKHInputSize
	}

	return baseSize + (witnessWeight+blockchain.WitnessScaleFactor-1)/
		blockchain.WitnessScaleFactor
}

// OutputSize returns the serialize size of one output paying to an address
// of the given script type.
func OutputSize(scriptType keyring.ScriptType) int {
	switch scriptType {
	case keyring.ScriptP2SH:
		return P2SHOutputSize
	case keyring.ScriptP2WPKH:
		return P2WPKHOutputSize
	case keyring.ScriptP2WSH:
		return P2WSHOutputSize
	case keyring.ScriptP2TR:
		return P2TROutputSize
	default:
		return P2PKHOutputSize
	}
}

// EstimateVirtualSize returns a worst case virtual size estimate, in vbytes,
// for a transaction of an m-of-n wallet with the given script type, spending
// inputCount inputs into outputSizes-byte outputs plus, when withChange is
// true, one change output of the wallet's own script type.
func EstimateVirtualSize(scriptType keyring.ScriptType, m, n, inputCount int,
	outputSizes []int, withChange bool) int {

	outputCount := len(outputSizes)
	outputsSize := 0
	for _, s := range outputSizes {
		outputsSize += s
	}
	if withChange {
		outputsSize += OutputSize(scriptType)
		outputCount++
	}

	baseSize := baseTxOverhead +
		wire.VarIntSerializeSize(uint64(inputCount)) +
		wire.VarIntSerializeSize(uint64(outputCount)) +
		outputsSize

	// The witness discount is already folded into InputSize, so the
	// marker/flag weight is the only witness bookkeeping left here.
	switch scriptType {
	case keyring.ScriptP2WPKH, keyring.ScriptP2WSH, keyring.ScriptP2TR:
		if inputCount > 0 {
			baseSize += (2 + wire.VarIntSerializeSize(uint64(inputCount)) +
				blockchain.WitnessScaleFactor - 1) /
				blockchain.WitnessScaleFactor
		}
	}

	return baseSize + inputCount*InputSize(scriptType, m, n)
}
