// Copyright (c) 2023-2025 The txcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package txproposal owns the lifecycle of a spend proposal: creation with coin
selection, publication, signature-carrying vote actions, quorum evaluation
and final assembly of the broadcastable transaction.

A proposal moves temporary → pending → {accepted, rejected}, and accepted →
broadcasted.  Vote actions are append-only; a failed vote never leaves a
partial record.
*/
package txproposal

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/google/uuid"

	"github.com/coparty/txcoord/chain"
	"github.com/coparty/txcoord/coinselect"
	"github.com/coparty/txcoord/keyring"
)

// CurrentVersion is the proposal schema version this core produces.  Records
// below version 3 are rejected and must go through the legacy importer.
const CurrentVersion = 3

// Status is a proposal lifecycle state.
type Status int

const (
	// StatusTemporary is a freshly created proposal, visible only to its
	// creator.
	StatusTemporary Status = iota

	// StatusPending is a published proposal collecting votes.
	StatusPending

	// StatusAccepted has a full quorum of accept votes and a fully
	// signed transaction.
	StatusAccepted

	// StatusRejected has a quorum of reject votes; terminal.
	StatusRejected

	// StatusBroadcasted marks an accepted proposal whose transaction was
	// handed to the network.
	StatusBroadcasted
)

var statusStrings = map[Status]string{
	StatusTemporary:   "temporary",
	StatusPending:     "pending",
	StatusAccepted:    "accepted",
	StatusRejected:    "rejected",
	StatusBroadcasted: "broadcasted",
}

// String returns the status name used on the wire.
func (s Status) String() string {
	if v, ok := statusStrings[s]; ok {
		return v
	}
	return fmt.Sprintf("unknown (%d)", int(s))
}

// VoteKind distinguishes accept from reject actions.
type VoteKind int

const (
	// VoteAccept carries one detached signature per input.
	VoteAccept VoteKind = iota

	// VoteReject carries an optional reason.
	VoteReject
)

var voteKindStrings = map[VoteKind]string{
	VoteAccept: "accept",
	VoteReject: "reject",
}

// String returns the vote type name used on the wire.
func (k VoteKind) String() string {
	if v, ok := voteKindStrings[k]; ok {
		return v
	}
	return fmt.Sprintf("unknown (%d)", int(k))
}

// VoteAction is one copayer's recorded vote.  Actions are appended, never
// mutated or removed.
type VoteAction struct {
	CopayerID  string
	Kind       VoteKind
	Signatures [][]byte
	Comment    []byte // encrypted, optional
	CreatedAt  time.Time
}

// Output is one requested payment output.
type Output struct {
	// Address is the destination.  Empty for raw script outputs.
	Address string

	// Script is a raw output script, only for OP_RETURN data carriers.
	Script []byte

	// Amount is the value in minor units.
	Amount btcutil.Amount

	// EncryptedMemo is the sealed per-output memo, optional.
	EncryptedMemo []byte
}

// Proposal is the coordination record of one spend.  The shared envelope
// carries what every chain has; account-model fields live in the tagged
// Payload.
type Proposal struct {
	ID      string
	Version int

	WalletID  string
	CreatorID string

	Chain      chain.Chain
	Network    chain.Network
	M          int
	N          int
	ScriptType keyring.ScriptType

	Outputs []Output
	Inputs  []chain.UTXO

	FeePerKb btcutil.Amount
	Fee      btcutil.Amount

	ChangeAddress string
	ChangeAmount  btcutil.Amount
	HasChange     bool

	// OutputOrder is the privacy permutation over the realized output
	// slots (payment outputs plus change).
	OutputOrder []int

	RequiredSignatures int
	RequiredRejections int

	Status  Status
	Actions []VoteAction

	// ProposalSignature is the creator's signature over the canonical
	// proposal hash, either by the request key directly or by the
	// delegated signing key below.
	ProposalSignature []byte

	// DelegatedSigningKey is an optional one-time signing key
	// (compressed pubkey); DelegatedKeySignature is the request key's
	// signature authorizing it.
	DelegatedSigningKey   []byte
	DelegatedKeySignature []byte

	// Payload carries account-model chain fields; nil for UTXO chains.
	Payload *chain.Payload

	// ReplaceTxID is the id of the transaction being fee-bumped, if any.
	ReplaceTxID string

	// PayProURL is the payment-protocol invoice this proposal pays, if
	// any.
	PayProURL string

	// CustomData is an opaque caller field echoed through the wire
	// record.
	CustomData string

	// TxID and RawTx are set when the proposal reaches acceptance.
	TxID  string
	RawTx []byte

	CreatedAt     time.Time
	BroadcastedAt *time.Time
}

// CreateParams are the creation-time inputs of a proposal.
type CreateParams struct {
	WalletID  string
	CreatorID string

	Chain      chain.Chain
	Network    chain.Network
	M          int
	N          int
	ScriptType keyring.ScriptType

	Outputs       []Output
	FeePerKb      btcutil.Amount
	ChangeAddress string

	ExcludeUnconfirmed bool

	// ReplaceTxID and ReplaceInputs enable replace-by-fee creation; the
	// listed inputs belong to the transaction being replaced.
	ReplaceTxID   string
	ReplaceInputs []chain.UTXO

	Payload *chain.Payload

	PayProURL  string
	CustomData string
}

// RequiredRejections returns the reject quorum for an m-of-n wallet: the
// smallest count that makes an accept quorum impossible.
func RequiredRejections(m, n int) int {
	if r := n - m + 1; r < m {
		return r
	}
	return m
}

// shuffleOrder returns a uniformly random permutation of [0, n) read from
// the system entropy source.
func shuffleOrder(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	for i := n - 1; i > 0; i-- {
		r, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			// Entropy exhaustion is not survivable; fall back to
			// the identity tail.
			break
		}
		j := int(r.Int64())
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// Create builds a temporary proposal: it validates the outputs through the
// chain adapter, runs coin selection, fixes the quorum arithmetic and
// assigns the randomized output order.  The proposal is append-only
// thereafter except for votes and the final signed payload.
func Create(adapter chain.Adapter, ring *keyring.Ring, utxos []chain.UTXO,
	params *CreateParams) (*Proposal, error) {

	if params.M != ring.M || params.N != ring.N {
		str := fmt.Sprintf("params quorum %d-of-%d does not match ring %d-of-%d",
			params.M, params.N, ring.M, ring.N)
		return nil, newError(ErrInvalidProposal, str, nil)
	}
	if len(params.Outputs) == 0 {
		return nil, newError(ErrInvalidProposal, "proposal has no outputs", nil)
	}
	if params.ScriptType.Multisig() && !adapter.SupportsMultisig() {
		str := fmt.Sprintf("chain %v does not support multisig scripts",
			adapter.Chain())
		return nil, newError(ErrUnsupportedOperation, str, nil)
	}
	if params.Payload != nil && adapter.IsUTXOModel() {
		return nil, newError(ErrUnsupportedOperation,
			"UTXO chains carry no account payload", nil)
	}

	for i := range params.Outputs {
		out := &params.Outputs[i]
		chainOut := chain.Output{
			Address: out.Address,
			Script:  out.Script,
			Amount:  out.Amount,
		}
		if len(out.Script) > 0 {
			if err := adapter.CheckScriptOutput(&chainOut); err != nil {
				return nil, newError(ErrScriptOutput,
					"invalid script output", err)
			}
			continue
		}
		if err := adapter.ValidateAddress(out.Address, params.Network); err != nil {
			str := fmt.Sprintf("invalid output address %q", out.Address)
			return nil, newError(ErrInvalidAddress, str, err)
		}
		if err := adapter.CheckDust(&chainOut); err != nil {
			str := fmt.Sprintf("output %d is dust", i)
			return nil, newError(ErrDustOutput, str, err)
		}
	}
	if params.ChangeAddress != "" {
		err := adapter.ValidateAddress(params.ChangeAddress, params.Network)
		if err != nil {
			return nil, newError(ErrInvalidAddress,
				"invalid change address", err)
		}
	}

	p := &Proposal{
		ID:                 uuid.NewString(),
		Version:            CurrentVersion,
		WalletID:           params.WalletID,
		CreatorID:          params.CreatorID,
		Chain:              params.Chain,
		Network:            params.Network,
		M:                  params.M,
		N:                  params.N,
		ScriptType:         params.ScriptType,
		Outputs:            params.Outputs,
		FeePerKb:           params.FeePerKb,
		ChangeAddress:      params.ChangeAddress,
		RequiredSignatures: params.M,
		RequiredRejections: RequiredRejections(params.M, params.N),
		Status:             StatusTemporary,
		Payload:            params.Payload,
		ReplaceTxID:        params.ReplaceTxID,
		PayProURL:          params.PayProURL,
		CustomData:         params.CustomData,
		CreatedAt:          time.Now().UTC(),
	}

	if adapter.IsUTXOModel() {
		policy := coinselect.DefaultPolicy()
		policy.ExcludeUnconfirmed = params.ExcludeUnconfirmed
		policy.ReplaceInputs = params.ReplaceInputs

		res, err := coinselect.Select(adapter, p.spec(), utxos, policy)
		if err != nil {
			return nil, err
		}
		p.Inputs = res.Inputs
		p.Fee = res.Fee
		p.ChangeAmount = res.Change
		p.HasChange = res.HasChange
	} else {
		fee, err := adapter.EstimateFee(p.spec())
		if err != nil {
			return nil, err
		}
		p.Fee = fee
	}

	slots := len(p.Outputs)
	if p.HasChange {
		slots++
	}
	p.OutputOrder = shuffleOrder(slots)

	log.Debugf("Created proposal %s: %d outputs, %d inputs, fee %v",
		p.ID, len(p.Outputs), len(p.Inputs), p.Fee)
	return p, nil
}

// spec lowers the proposal into the chain-neutral transaction description
// consumed by its chain's adapter.
func (p *Proposal) spec() *chain.TxSpec {
	outs := make([]chain.Output, len(p.Outputs))
	for i := range p.Outputs {
		outs[i] = chain.Output{
			Address: p.Outputs[i].Address,
			Script:  p.Outputs[i].Script,
			Amount:  p.Outputs[i].Amount,
		}
	}
	return &chain.TxSpec{
		Chain:         p.Chain,
		Network:       p.Network,
		M:             p.M,
		N:             p.N,
		ScriptType:    p.ScriptType,
		Inputs:        p.Inputs,
		Outputs:       outs,
		ChangeAddress: p.ChangeAddress,
		ChangeAmount:  p.ChangeAmount,
		HasChange:     p.HasChange,
		OutputOrder:   p.OutputOrder,
		FeePerKb:      p.FeePerKb,
		Fee:           p.Fee,
		EnableRBF:     p.ReplaceTxID != "",
		Payload:       p.Payload,
	}
}

// TotalAmount returns the summed payment output value, change excluded.
func (p *Proposal) TotalAmount() btcutil.Amount {
	var total btcutil.Amount
	for i := range p.Outputs {
		total += p.Outputs[i].Amount
	}
	return total
}

// TotalInput returns the summed value of the selected inputs.
func (p *Proposal) TotalInput() btcutil.Amount {
	var total btcutil.Amount
	for i := range p.Inputs {
		total += p.Inputs[i].Satoshis
	}
	return total
}

// actionBy returns the recorded vote of one copayer, if any.
func (p *Proposal) actionBy(copayerID string) *VoteAction {
	for i := range p.Actions {
		if p.Actions[i].CopayerID == copayerID {
			return &p.Actions[i]
		}
	}
	return nil
}

// voteCounts tallies the recorded actions.
func (p *Proposal) voteCounts() (accepts, rejects int) {
	for i := range p.Actions {
		switch p.Actions[i].Kind {
		case VoteAccept:
			accepts++
		case VoteReject:
			rejects++
		}
	}
	return accepts, rejects
}
