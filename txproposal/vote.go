// Copyright (c) 2023-2025 The txcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txproposal

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/coparty/txcoord/chain"
	"github.com/coparty/txcoord/keyring"
)

// copayerIndex resolves a copayer id to its position in the wallet's ring.
func (p *Proposal) copayerIndex(ring *keyring.Ring, copayerID string) (int, error) {
	for i, k := range ring.Keys {
		if keyring.CopayerID(p.Chain.String(), k.XPub.String()) == copayerID {
			return i, nil
		}
	}
	str := fmt.Sprintf("copayer %s is not in the wallet's key ring", copayerID)
	return 0, newError(ErrUnknownCopayer, str, nil)
}

// copayerInputPubs derives the voting copayer's public key at every input's
// derivation path.
func (p *Proposal) copayerInputPubs(ring *keyring.Ring, idx int) ([]*btcec.PublicKey, error) {
	pubs := make([]*btcec.PublicKey, len(p.Inputs))
	for i := range p.Inputs {
		all, err := ring.DerivePubKeys(p.Inputs[i].Path)
		if err != nil {
			return nil, newError(ErrInternal,
				"cannot derive input public keys", err)
		}
		pubs[i] = all[idx]
	}
	return pubs, nil
}

// SignatureHashes returns the per-input digests a copayer must sign to
// accept this proposal.  Every copayer derives the same digests from the
// same proposal.
func (p *Proposal) SignatureHashes(adapter chain.Adapter,
	ring *keyring.Ring) ([][]byte, error) {

	hashes, err := adapter.SignatureHashes(p.spec(), ring)
	if err != nil {
		return nil, newError(ErrInternal,
			"cannot compute signature hashes", err)
	}
	return hashes, nil
}

// Publish moves a temporary proposal to pending, making it visible to the
// other copayers.  The creator's proposal signature must already be attached
// and must verify.
func (p *Proposal) Publish(adapter chain.Adapter, ring *keyring.Ring) error {
	if p.Status != StatusTemporary {
		str := fmt.Sprintf("cannot publish a %v proposal", p.Status)
		return newError(ErrInvalidState, str, nil)
	}
	if !p.VerifyProposalSignature(adapter, ring) {
		return newError(ErrProposalSignature,
			"creator signature does not verify", nil)
	}
	p.Status = StatusPending
	log.Infof("Proposal %s published", p.ID)
	return nil
}

// Vote records one copayer's accept or reject.  Accept votes must carry
// exactly one detached signature per input, each verifying against the
// voter's derived key at that input's path; the call is all-or-nothing and a
// failure leaves the proposal untouched, so retries are always safe.
func (p *Proposal) Vote(adapter chain.Adapter, ring *keyring.Ring,
	copayerID string, kind VoteKind, signatures [][]byte,
	comment []byte) error {

	switch p.Status {
	case StatusPending:
	case StatusAccepted:
		// A late accept vote on an already-accepted proposal is
		// verified and recorded but can no longer change the outcome.
		if kind != VoteAccept {
			return newError(ErrInvalidState,
				"cannot reject an accepted proposal", nil)
		}
	default:
		str := fmt.Sprintf("cannot vote on a %v proposal", p.Status)
		return newError(ErrInvalidState, str, nil)
	}

	idx, err := p.copayerIndex(ring, copayerID)
	if err != nil {
		return err
	}
	if p.actionBy(copayerID) != nil {
		str := fmt.Sprintf("copayer %s has already voted", copayerID)
		return newError(ErrCopayerVoted, str, nil)
	}

	if kind == VoteAccept {
		if err := p.verifyAcceptSignatures(adapter, ring, idx, signatures); err != nil {
			return err
		}
	}

	p.Actions = append(p.Actions, VoteAction{
		CopayerID:  copayerID,
		Kind:       kind,
		Signatures: signatures,
		Comment:    comment,
		CreatedAt:  time.Now().UTC(),
	})

	return p.evaluateQuorum(adapter, ring)
}

// verifyAcceptSignatures checks an accept vote's signature list without
// mutating the proposal.
func (p *Proposal) verifyAcceptSignatures(adapter chain.Adapter,
	ring *keyring.Ring, idx int, signatures [][]byte) error {

	if len(signatures) != len(p.Inputs) {
		str := fmt.Sprintf("got %d signatures for %d inputs",
			len(signatures), len(p.Inputs))
		return newError(ErrSignatureCount, str, nil)
	}
	pubs, err := p.copayerInputPubs(ring, idx)
	if err != nil {
		return err
	}

	// Attach to a scratch transaction; the adapter verifies every
	// signature before any is attached.
	scratch, err := adapter.BuildTx(p.spec(), ring)
	if err != nil {
		return newError(ErrInternal, "cannot rebuild unsigned transaction", err)
	}
	if err := adapter.AddSignatures(scratch, p.spec(), ring, pubs, signatures); err != nil {
		return newError(ErrSignature, "accept signatures do not verify", err)
	}
	return nil
}

// evaluateQuorum recomputes the proposal status after a recorded vote.
// Rejection wins as soon as the reject count makes an accept quorum
// impossible; acceptance assembles the fully signed transaction exactly
// once.
func (p *Proposal) evaluateQuorum(adapter chain.Adapter, ring *keyring.Ring) error {
	if p.Status != StatusPending {
		return nil
	}
	accepts, rejects := p.voteCounts()

	if rejects >= p.RequiredRejections {
		p.Status = StatusRejected
		log.Infof("Proposal %s rejected with %d reject votes", p.ID, rejects)
		return nil
	}
	if accepts < p.RequiredSignatures {
		return nil
	}

	tx, err := p.assembleSigned(adapter, ring)
	if err != nil {
		return newError(ErrInternal, "cannot assemble signed transaction", err)
	}
	raw, err := tx.Serialize()
	if err != nil {
		return newError(ErrInternal, "cannot serialize signed transaction", err)
	}
	p.Status = StatusAccepted
	p.TxID = tx.TxID()
	p.RawTx = raw
	log.Infof("Proposal %s accepted: txid %s", p.ID, p.TxID)
	return nil
}

// assembleSigned replays every accept action onto a fresh transaction.
func (p *Proposal) assembleSigned(adapter chain.Adapter, ring *keyring.Ring) (chain.Tx, error) {
	tx, err := adapter.BuildTx(p.spec(), ring)
	if err != nil {
		return nil, err
	}
	for i := range p.Actions {
		action := &p.Actions[i]
		if action.Kind != VoteAccept {
			continue
		}
		idx, err := p.copayerIndex(ring, action.CopayerID)
		if err != nil {
			return nil, err
		}
		pubs, err := p.copayerInputPubs(ring, idx)
		if err != nil {
			return nil, err
		}
		err = adapter.AddSignatures(tx, p.spec(), ring, pubs, action.Signatures)
		if err != nil {
			return nil, err
		}
	}
	if !tx.Complete() {
		return nil, newError(ErrInternal,
			"accepted proposal did not produce a complete transaction", nil)
	}
	return tx, nil
}

// MarkBroadcasted records that the accepted transaction was handed to the
// network.  It is only legal from accepted and requires a known txid.
func (p *Proposal) MarkBroadcasted(at time.Time) error {
	if p.Status != StatusAccepted {
		str := fmt.Sprintf("cannot broadcast a %v proposal", p.Status)
		return newError(ErrInvalidState, str, nil)
	}
	if p.TxID == "" {
		return newError(ErrMissingTxID,
			"accepted proposal has no transaction id", nil)
	}
	t := at.UTC()
	p.BroadcastedAt = &t
	p.Status = StatusBroadcasted
	log.Infof("Proposal %s broadcasted as %s", p.ID, p.TxID)
	return nil
}
