// Copyright (c) 2023-2025 The txcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package chain defines the adapter contract between the coordination core and
the chains it can spend on.  The supported chains form a closed capability
set: every chain is a Chain enum value, and AdapterFor dispatches on the enum
rather than on free-form name strings.  The UTXO family adapter is
implemented here; account-model adapters satisfy the same Adapter interface
from outside the core.
*/
package chain

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/coparty/txcoord/keyring"
)

// Chain identifies a supported chain.
type Chain uint8

const (
	// BTC is the Bitcoin chain, the reference UTXO-model chain.
	BTC Chain = iota

	// ETH is the Ethereum chain family (account model).
	ETH

	// XRP is the XRP ledger (account model).
	XRP

	// SOL is the Solana chain (account model).
	SOL
)

var chainStrings = map[Chain]string{
	BTC: "btc",
	ETH: "eth",
	XRP: "xrp",
	SOL: "sol",
}

// String returns the lowercase chain ticker.
func (c Chain) String() string {
	if s, ok := chainStrings[c]; ok {
		return s
	}
	return fmt.Sprintf("unknown (%d)", uint8(c))
}

// ParseChain maps a lowercase chain ticker back to its Chain value.
func ParseChain(s string) (Chain, bool) {
	for c, name := range chainStrings {
		if name == s {
			return c, true
		}
	}
	return 0, false
}

// IsUTXOModel reports whether the chain tracks funds as unspent outputs.
func (c Chain) IsUTXOModel() bool {
	return c == BTC
}

// Network selects the chain network.  It is always passed explicitly; the
// core keeps no process-wide network state.
type Network uint8

const (
	// MainNet is the production network.
	MainNet Network = iota

	// TestNet is the public test network.
	TestNet

	// RegTest is a local regression test network.
	RegTest
)

var networkStrings = map[Network]string{
	MainNet: "livenet",
	TestNet: "testnet",
	RegTest: "regtest",
}

// String returns the network name.
func (n Network) String() string {
	if s, ok := networkStrings[n]; ok {
		return s
	}
	return fmt.Sprintf("unknown (%d)", uint8(n))
}

// ParseNetwork maps a network name back to its Network value.
func ParseNetwork(s string) (Network, bool) {
	for n, name := range networkStrings {
		if name == s {
			return n, true
		}
	}
	return 0, false
}

// Params maps a Network onto the UTXO family chain parameters.
func (n Network) Params() *chaincfg.Params {
	switch n {
	case TestNet:
		return &chaincfg.TestNet3Params
	case RegTest:
		return &chaincfg.RegressionNetParams
	default:
		return &chaincfg.MainNetParams
	}
}

// UTXO is one spendable output of a wallet.  Values are integer minor units
// (satoshis for the UTXO family).
type UTXO struct {
	// TxID is the hex id of the transaction that created the output.
	TxID string

	// Vout is the output index within that transaction.
	Vout uint32

	// Address is the owning wallet address.
	Address string

	// Path is the HD derivation path of the owning address, relative to
	// the wallet's account keys.
	Path string

	// Satoshis is the output value.
	Satoshis btcutil.Amount

	// Confirmations is the depth of the creating transaction.
	Confirmations int32

	// Locked marks an output reserved by another in-flight proposal.
	Locked bool
}

// Key returns the canonical "txid:vout" identity of the output.
func (u *UTXO) Key() string {
	return fmt.Sprintf("%s:%d", u.TxID, u.Vout)
}

// Output is one requested payment output of a transaction.
type Output struct {
	// Address is the destination address.  Empty when Script is set.
	Address string

	// Script is a raw output script, used only for OP_RETURN data
	// carriers.
	Script []byte

	// Amount is the output value in minor units.
	Amount btcutil.Amount
}

// TxSpec is the chain-neutral description of a transaction the core wants
// built.  Proposals lower themselves into a TxSpec before calling into their
// chain's adapter.
type TxSpec struct {
	Chain      Chain
	Network    Network
	M          int
	N          int
	ScriptType keyring.ScriptType

	Inputs  []UTXO
	Outputs []Output

	// ChangeAddress and ChangeAmount describe the change output, present
	// only when HasChange is set.
	ChangeAddress string
	ChangeAmount  btcutil.Amount
	HasChange     bool

	// OutputOrder is the privacy permutation applied to the realized
	// output slots.  It is revalidated against the actual output count
	// before use.
	OutputOrder []int

	FeePerKb btcutil.Amount
	Fee      btcutil.Amount

	// EnableRBF opts the transaction into replace-by-fee signaling.
	EnableRBF bool

	// Payload carries the account-model chain fields.  Nil for the UTXO
	// family.
	Payload *Payload
}

// Tx is a built transaction, signed or not.
type Tx interface {
	// TxID returns the transaction id of the current serialization.
	TxID() string

	// Serialize returns the raw transaction bytes.
	Serialize() ([]byte, error)

	// Complete reports whether every input carries a full quorum of
	// signatures.
	Complete() bool
}

// Adapter builds and sizes transactions for one chain family.
type Adapter interface {
	// Chain returns the chain this adapter serves.
	Chain() Chain

	// IsUTXOModel reports whether funds are tracked as unspent outputs.
	IsUTXOModel() bool

	// SupportsMultisig reports whether the chain can encode an M-of-N
	// policy in its own scripts.
	SupportsMultisig() bool

	// EstimateSize returns the worst-case virtual size of the spec's
	// transaction in bytes.
	EstimateSize(spec *TxSpec) (int, error)

	// EstimateFee returns the fee implied by the spec's size and fee
	// rate.
	EstimateFee(spec *TxSpec) (btcutil.Amount, error)

	// BuildTx assembles the spec into concrete transaction bytes.  The
	// returned Tx starts unsigned; signatures are attached with
	// AddSignatures.
	BuildTx(spec *TxSpec, ring *keyring.Ring) (Tx, error)

	// SignatureHashes returns the per-input digests a copayer must sign
	// for the spec's canonical unsigned transaction.
	SignatureHashes(spec *TxSpec, ring *keyring.Ring) ([][]byte, error)

	// AddSignatures attaches one copayer's detached input signatures,
	// given the copayer's derived per-input public keys.  The signature
	// list must carry exactly one entry per input and every signature
	// must verify; otherwise nothing is attached.
	AddSignatures(tx Tx, spec *TxSpec, ring *keyring.Ring,
		pubs []*btcec.PublicKey, sigs [][]byte) error

	// ValidateAddress checks that an address parses and belongs to the
	// given network.
	ValidateAddress(addr string, net Network) error

	// CheckDust rejects outputs below the chain's dust limit.
	CheckDust(out *Output) error

	// CheckScriptOutput rejects raw script outputs that are not plain
	// data carriers.
	CheckScriptOutput(out *Output) error

	// TotalizeUTXOs sums the value of the given outputs.
	TotalizeUTXOs(utxos []UTXO) btcutil.Amount
}

// AdapterFor returns the in-core adapter for the given chain.  Account-model
// chains have no in-core adapter; their implementations are supplied by the
// caller, and asking for one here fails with ErrUnsupportedChain.
func AdapterFor(c Chain) (Adapter, error) {
	switch c {
	case BTC:
		return &utxoAdapter{chain: c}, nil
	default:
		str := fmt.Sprintf("no in-core adapter for chain %v", c)
		return nil, newError(ErrUnsupportedChain, str, nil)
	}
}
