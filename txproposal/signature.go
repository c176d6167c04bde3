// Copyright (c) 2023-2025 The txcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txproposal

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/coparty/txcoord/chain"
	"github.com/coparty/txcoord/keyring"
)

// HashToSign returns the canonical value the creator signs when committing
// to a proposal.  For chains with transaction-byte determinism this is the
// hex serialization of the canonical unsigned transaction, so any mutation
// of outputs, amounts or input set invalidates the signature.
func (p *Proposal) HashToSign(adapter chain.Adapter, ring *keyring.Ring) (string, error) {
	tx, err := adapter.BuildTx(p.spec(), ring)
	if err != nil {
		return "", newError(ErrInternal, "cannot build unsigned transaction", err)
	}
	raw, err := tx.Serialize()
	if err != nil {
		return "", newError(ErrInternal, "cannot serialize unsigned transaction", err)
	}
	return hex.EncodeToString(raw), nil
}

// Sign attaches the creator's direct proposal signature using the long-lived
// request private key.
func (p *Proposal) Sign(adapter chain.Adapter, ring *keyring.Ring,
	requestPriv *btcec.PrivateKey) error {

	hash, err := p.HashToSign(adapter, ring)
	if err != nil {
		return err
	}
	p.ProposalSignature = keyring.SignMessage(requestPriv, hash)
	p.DelegatedSigningKey = nil
	p.DelegatedKeySignature = nil
	return nil
}

// SignDelegated attaches a proposal signature produced by a one-time
// proposal key, together with the request key's authorization of that key.
// The flow supports offline and hardware signers that cannot expose the
// long-lived request key per proposal: the request key signs only the
// one-time public key, and the one-time key signs the proposal itself.
func (p *Proposal) SignDelegated(adapter chain.Adapter, ring *keyring.Ring,
	proposalPriv *btcec.PrivateKey, keySignature []byte) error {

	hash, err := p.HashToSign(adapter, ring)
	if err != nil {
		return err
	}
	p.ProposalSignature = keyring.SignMessage(proposalPriv, hash)
	p.DelegatedSigningKey = proposalPriv.PubKey().SerializeCompressed()
	p.DelegatedKeySignature = keySignature
	return nil
}

// VerifyProposalSignature walks both delegation levels: when a delegated
// signing key is present, the request key must have signed the delegated
// key, and the delegated key must have signed the proposal hash; otherwise
// the request key must have signed the proposal hash directly.  The result
// is a plain boolean with no failure detail.
func (p *Proposal) VerifyProposalSignature(adapter chain.Adapter, ring *keyring.Ring) bool {
	idx, err := p.copayerIndex(ring, p.CreatorID)
	if err != nil {
		return false
	}
	requestPub := ring.Keys[idx].RequestPub

	hash, err := p.HashToSign(adapter, ring)
	if err != nil {
		return false
	}

	if len(p.DelegatedSigningKey) > 0 {
		delegatedPub, err := keyring.ParsePubKey(p.DelegatedSigningKey)
		if err != nil {
			return false
		}
		if !keyring.VerifyMessage(requestPub, p.DelegatedKeySignature,
			hex.EncodeToString(p.DelegatedSigningKey)) {

			return false
		}
		return keyring.VerifyMessage(delegatedPub, p.ProposalSignature, hash)
	}

	return keyring.VerifyMessage(requestPub, p.ProposalSignature, hash)
}
