// Copyright (c) 2023-2025 The txcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package verifier re-derives and cross-checks wallet data a client receives
from the coordination service, so a compromised or dishonest server cannot
substitute addresses, copayers or proposal contents without detection.

Every check returns a bare boolean.  The checks deliberately report no
failure detail: a caller that fails a check must distrust the record as a
whole, not negotiate over which field was wrong.
*/
package verifier

import (
	"bytes"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"

	"github.com/coparty/txcoord/chain"
	"github.com/coparty/txcoord/keyring"
	"github.com/coparty/txcoord/txproposal"
)

// Copayer is the joined-copayer record as announced by the service.
type Copayer struct {
	// Name is the copayer's display name, as covered by the join
	// signature.
	Name string

	// XPub is the copayer's extended public key string.
	XPub string

	// RequestPub is the hex compressed request public key.
	RequestPub string

	// Signature is the wallet shared key's signature over the join
	// message (name, xpub, request key).
	Signature []byte
}

// CheckAddress reports whether addr is honestly derived from the wallet's
// key ring at the claimed path.  The service controls address records, so a
// client must re-derive before paying to or displaying any of them.
func CheckAddress(ring *keyring.Ring, addr, path string,
	scriptType keyring.ScriptType, net chain.Network) bool {

	derived, _, err := ring.DeriveAddress(path, scriptType, net.Params())
	if err != nil {
		log.Debugf("Address check: cannot derive %s at %q: %v",
			scriptType, path, err)
		return false
	}
	return derived.EncodeAddress() == addr
}

// CheckEscrowAddress reports whether an escrow address is honestly derived
// from the wallet's key ring at the claimed payment path combined with the
// auxiliary input paths.
func CheckEscrowAddress(ring *keyring.Ring, addr, path string,
	inputPaths []string, net chain.Network) bool {

	derived, err := ring.DeriveEscrowAddress(path, inputPaths, net.Params())
	if err != nil {
		log.Debugf("Escrow address check: cannot derive at %q: %v", path, err)
		return false
	}
	return derived.EncodeAddress() == addr
}

// CheckCopayers reports whether a copayer roster is authentic: every entry
// must carry a valid join signature by the wallet's shared key, no two
// entries may share an extended public key, and the caller's own xpub must
// appear.  A roster failing any of these may have been tampered with to
// route funds into a key set the attacker controls.
func CheckCopayers(walletPub *btcec.PublicKey, ownXPub string,
	copayers []Copayer) bool {

	if walletPub == nil || len(copayers) == 0 {
		return false
	}

	seen := make(map[string]struct{}, len(copayers))
	foundOwn := false
	for i := range copayers {
		c := &copayers[i]
		if _, ok := seen[c.XPub]; ok {
			log.Debugf("Copayer check: duplicate xpub at entry %d", i)
			return false
		}
		seen[c.XPub] = struct{}{}

		if !keyring.VerifyMessage(walletPub, c.Signature,
			c.Name, c.XPub, c.RequestPub) {

			log.Debugf("Copayer check: bad join signature at entry %d", i)
			return false
		}
		if c.XPub == ownXPub {
			foundOwn = true
		}
	}
	return foundOwn
}

// ExpectedOutput is one output of a proposal as the creating client
// requested it, memo in cleartext.
type ExpectedOutput struct {
	Address string
	Script  []byte
	Amount  btcutil.Amount
	Memo    string
}

// Expectation is what the creating client asked the service to build.  It is
// diffed field by field against the proposal the service echoes back.
type Expectation struct {
	Outputs       []ExpectedOutput
	FeePerKb      btcutil.Amount
	ChangeAddress string
	PayProURL     string
}

// CheckProposalCreation reports whether the proposal the service stored
// matches what the creator requested.  Memos are compared after decryption
// under the wallet shared key; an undecryptable memo compares unequal to any
// requested cleartext.
func CheckProposalCreation(p *txproposal.Proposal, want *Expectation,
	shared *btcec.PrivateKey) bool {

	if p == nil || want == nil {
		return false
	}
	if len(p.Outputs) != len(want.Outputs) {
		return false
	}
	for i := range want.Outputs {
		got, exp := &p.Outputs[i], &want.Outputs[i]
		if got.Address != exp.Address ||
			got.Amount != exp.Amount ||
			!bytes.Equal(got.Script, exp.Script) {

			return false
		}
		if exp.Memo != "" &&
			keyring.DecryptMemo(shared, got.EncryptedMemo) != exp.Memo {

			return false
		}
	}
	if want.FeePerKb != 0 && p.FeePerKb != want.FeePerKb {
		return false
	}
	if want.ChangeAddress != "" && p.ChangeAddress != want.ChangeAddress {
		return false
	}
	return p.PayProURL == want.PayProURL
}

// CheckTxProposal reports whether a proposal offered for signing is
// authentic: the creator's proposal signature must verify through any
// delegation level, and when a change output is present and its derivation
// path is known, the change address must re-derive from the wallet's own key
// ring.  Signing a proposal that fails this check could move funds to an
// address the wallet does not control.
func CheckTxProposal(adapter chain.Adapter, ring *keyring.Ring,
	p *txproposal.Proposal, changePath string) bool {

	if p == nil || ring == nil {
		return false
	}
	if !p.VerifyProposalSignature(adapter, ring) {
		log.Debugf("Proposal %s: signature verification failed", p.ID)
		return false
	}
	if p.HasChange && changePath != "" {
		if !CheckAddress(ring, p.ChangeAddress, changePath,
			p.ScriptType, p.Network) {

			log.Debugf("Proposal %s: change address mismatch", p.ID)
			return false
		}
	}
	return true
}

// PayProInvoice is the destination and total of a fetched payment-protocol
// invoice.
type PayProInvoice struct {
	ToAddress string
	Amount    btcutil.Amount
}

// CheckPaypro reports whether a proposal claiming to pay an invoice actually
// does: its first output must pay the invoice destination and the summed
// payment outputs must equal the invoice total.  Addresses are normalized by
// a decode and re-encode round trip so equivalent encodings compare equal.
func CheckPaypro(p *txproposal.Proposal, invoice *PayProInvoice) bool {
	if p == nil || invoice == nil || len(p.Outputs) == 0 {
		return false
	}
	params := p.Network.Params()
	got, err := btcutil.DecodeAddress(p.Outputs[0].Address, params)
	if err != nil {
		return false
	}
	want, err := btcutil.DecodeAddress(invoice.ToAddress, params)
	if err != nil {
		return false
	}
	if got.EncodeAddress() != want.EncodeAddress() {
		return false
	}
	return p.TotalAmount() == invoice.Amount
}
