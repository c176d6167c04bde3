// Copyright (c) 2023-2025 The txcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txproposal

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/coparty/txcoord/chain"
	"github.com/coparty/txcoord/keyring"
)

// Wire representation of a proposal, exchanged with clients and persisted by
// the surrounding service.  Only schema version >= 3 is handled here; older
// records are routed through the legacy importer.

// WireOutput is one output of a wire record.
type WireOutput struct {
	ToAddress     string `json:"toAddress,omitempty"`
	Script        []byte `json:"script,omitempty"`
	Amount        int64  `json:"amount"`
	EncryptedMemo []byte `json:"message,omitempty"`
}

// WireInput is one selected input of a wire record.
type WireInput struct {
	TxID          string `json:"txid"`
	Vout          uint32 `json:"vout"`
	Address       string `json:"address"`
	Path          string `json:"path"`
	Satoshis      int64  `json:"satoshis"`
	Confirmations int32  `json:"confirmations"`
	Locked        bool   `json:"locked"`
}

// WireAction is one recorded vote of a wire record.
type WireAction struct {
	CopayerID  string   `json:"copayerId"`
	Type       string   `json:"type"`
	Signatures [][]byte `json:"signatures,omitempty"`
	Comment    []byte   `json:"comment,omitempty"`
	CreatedOn  int64    `json:"createdOn"`
}

// WireRecord is the serialized form of a Proposal.
type WireRecord struct {
	ID        string `json:"id"`
	Version   int    `json:"version"`
	WalletID  string `json:"walletId"`
	CreatorID string `json:"creatorId"`

	Chain      string `json:"chain"`
	Network    string `json:"network"`
	WalletM    int    `json:"walletM"`
	WalletN    int    `json:"walletN"`
	ScriptType string `json:"addressType"`

	Outputs []WireOutput `json:"outputs"`
	Inputs  []WireInput  `json:"inputs"`

	FeePerKb int64 `json:"feePerKb"`
	Fee      int64 `json:"fee"`

	ChangeAddress string `json:"changeAddress,omitempty"`
	ChangeAmount  int64  `json:"changeAmount,omitempty"`
	HasChange     bool   `json:"hasChange,omitempty"`

	OutputOrder []int `json:"outputOrder"`

	RequiredSignatures int `json:"requiredSignatures"`
	RequiredRejections int `json:"requiredRejections"`

	Status  string       `json:"status"`
	Actions []WireAction `json:"actions"`

	ProposalSignature     []byte `json:"proposalSignature,omitempty"`
	DelegatedSigningKey   []byte `json:"delegatedSigningKey,omitempty"`
	DelegatedKeySignature []byte `json:"delegatedKeySignature,omitempty"`

	ChainPayload []byte `json:"chainPayload,omitempty"`

	ReplaceTxID string `json:"replaceTxId,omitempty"`
	PayProURL   string `json:"payProUrl,omitempty"`
	CustomData  string `json:"customData,omitempty"`

	TxID  string `json:"txid,omitempty"`
	RawTx []byte `json:"raw,omitempty"`

	CreatedOn     int64  `json:"createdOn"`
	BroadcastedOn *int64 `json:"broadcastedOn,omitempty"`
}

func parseStatus(s string) (Status, bool) {
	for st, name := range statusStrings {
		if name == s {
			return st, true
		}
	}
	return 0, false
}

func parseVoteKind(s string) (VoteKind, bool) {
	for k, name := range voteKindStrings {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// MarshalWire serializes the proposal into its wire record.
func (p *Proposal) MarshalWire() ([]byte, error) {
	rec := &WireRecord{
		ID:                    p.ID,
		Version:               p.Version,
		WalletID:              p.WalletID,
		CreatorID:             p.CreatorID,
		Chain:                 p.Chain.String(),
		Network:               p.Network.String(),
		WalletM:               p.M,
		WalletN:               p.N,
		ScriptType:            p.ScriptType.String(),
		FeePerKb:              int64(p.FeePerKb),
		Fee:                   int64(p.Fee),
		ChangeAddress:         p.ChangeAddress,
		ChangeAmount:          int64(p.ChangeAmount),
		HasChange:             p.HasChange,
		OutputOrder:           p.OutputOrder,
		RequiredSignatures:    p.RequiredSignatures,
		RequiredRejections:    p.RequiredRejections,
		Status:                p.Status.String(),
		ProposalSignature:     p.ProposalSignature,
		DelegatedSigningKey:   p.DelegatedSigningKey,
		DelegatedKeySignature: p.DelegatedKeySignature,
		ReplaceTxID:           p.ReplaceTxID,
		PayProURL:             p.PayProURL,
		CustomData:            p.CustomData,
		TxID:                  p.TxID,
		RawTx:                 p.RawTx,
		CreatedOn:             p.CreatedAt.Unix(),
	}
	for i := range p.Outputs {
		rec.Outputs = append(rec.Outputs, WireOutput{
			ToAddress:     p.Outputs[i].Address,
			Script:        p.Outputs[i].Script,
			Amount:        int64(p.Outputs[i].Amount),
			EncryptedMemo: p.Outputs[i].EncryptedMemo,
		})
	}
	for i := range p.Inputs {
		in := &p.Inputs[i]
		rec.Inputs = append(rec.Inputs, WireInput{
			TxID:          in.TxID,
			Vout:          in.Vout,
			Address:       in.Address,
			Path:          in.Path,
			Satoshis:      int64(in.Satoshis),
			Confirmations: in.Confirmations,
			Locked:        in.Locked,
		})
	}
	for i := range p.Actions {
		a := &p.Actions[i]
		rec.Actions = append(rec.Actions, WireAction{
			CopayerID:  a.CopayerID,
			Type:       voteKindStrings[a.Kind],
			Signatures: a.Signatures,
			Comment:    a.Comment,
			CreatedOn:  a.CreatedAt.Unix(),
		})
	}
	if p.Payload != nil {
		raw, err := p.Payload.Encode()
		if err != nil {
			return nil, newError(ErrInternal, "cannot encode chain payload", err)
		}
		rec.ChainPayload = raw
	}
	if p.BroadcastedAt != nil {
		ts := p.BroadcastedAt.Unix()
		rec.BroadcastedOn = &ts
	}
	return json.Marshal(rec)
}

// UnmarshalWire parses a version >= 3 wire record back into a Proposal.
// Older versions fail with ErrUnsupportedFormat and must be converted by the
// legacy importer first.
func UnmarshalWire(raw []byte) (*Proposal, error) {
	var rec WireRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, newError(ErrUnsupportedFormat,
			"cannot parse proposal record", err)
	}
	if rec.Version < CurrentVersion {
		str := fmt.Sprintf("unsupported proposal version %d", rec.Version)
		return nil, newError(ErrUnsupportedFormat, str, nil)
	}

	ch, ok := chain.ParseChain(rec.Chain)
	if !ok {
		return nil, newError(ErrUnsupportedFormat,
			fmt.Sprintf("unknown chain %q", rec.Chain), nil)
	}
	net, ok := chain.ParseNetwork(rec.Network)
	if !ok {
		return nil, newError(ErrUnsupportedFormat,
			fmt.Sprintf("unknown network %q", rec.Network), nil)
	}
	scriptType, ok := keyring.ParseScriptType(rec.ScriptType)
	if !ok {
		return nil, newError(ErrUnsupportedFormat,
			fmt.Sprintf("unknown script type %q", rec.ScriptType), nil)
	}
	status, ok := parseStatus(rec.Status)
	if !ok {
		return nil, newError(ErrUnsupportedFormat,
			fmt.Sprintf("unknown status %q", rec.Status), nil)
	}

	p := &Proposal{
		ID:                    rec.ID,
		Version:               rec.Version,
		WalletID:              rec.WalletID,
		CreatorID:             rec.CreatorID,
		Chain:                 ch,
		Network:               net,
		M:                     rec.WalletM,
		N:                     rec.WalletN,
		ScriptType:            scriptType,
		FeePerKb:              btcutil.Amount(rec.FeePerKb),
		Fee:                   btcutil.Amount(rec.Fee),
		ChangeAddress:         rec.ChangeAddress,
		ChangeAmount:          btcutil.Amount(rec.ChangeAmount),
		HasChange:             rec.HasChange,
		OutputOrder:           rec.OutputOrder,
		RequiredSignatures:    rec.RequiredSignatures,
		RequiredRejections:    rec.RequiredRejections,
		Status:                status,
		ProposalSignature:     rec.ProposalSignature,
		DelegatedSigningKey:   rec.DelegatedSigningKey,
		DelegatedKeySignature: rec.DelegatedKeySignature,
		ReplaceTxID:           rec.ReplaceTxID,
		PayProURL:             rec.PayProURL,
		CustomData:            rec.CustomData,
		TxID:                  rec.TxID,
		RawTx:                 rec.RawTx,
		CreatedAt:             time.Unix(rec.CreatedOn, 0).UTC(),
	}
	for i := range rec.Outputs {
		p.Outputs = append(p.Outputs, Output{
			Address:       rec.Outputs[i].ToAddress,
			Script:        rec.Outputs[i].Script,
			Amount:        btcutil.Amount(rec.Outputs[i].Amount),
			EncryptedMemo: rec.Outputs[i].EncryptedMemo,
		})
	}
	for i := range rec.Inputs {
		in := &rec.Inputs[i]
		p.Inputs = append(p.Inputs, chain.UTXO{
			TxID:          in.TxID,
			Vout:          in.Vout,
			Address:       in.Address,
			Path:          in.Path,
			Satoshis:      btcutil.Amount(in.Satoshis),
			Confirmations: in.Confirmations,
			Locked:        in.Locked,
		})
	}
	for i := range rec.Actions {
		a := &rec.Actions[i]
		kind, ok := parseVoteKind(a.Type)
		if !ok {
			return nil, newError(ErrUnsupportedFormat,
				fmt.Sprintf("unknown vote type %q", a.Type), nil)
		}
		p.Actions = append(p.Actions, VoteAction{
			CopayerID:  a.CopayerID,
			Kind:       kind,
			Signatures: a.Signatures,
			Comment:    a.Comment,
			CreatedAt:  time.Unix(a.CreatedOn, 0).UTC(),
		})
	}
	if len(rec.ChainPayload) > 0 {
		payload, err := chain.DecodePayload(rec.ChainPayload)
		if err != nil {
			return nil, newError(ErrUnsupportedFormat,
				"cannot decode chain payload", err)
		}
		p.Payload = payload
	}
	if rec.BroadcastedOn != nil {
		ts := time.Unix(*rec.BroadcastedOn, 0).UTC()
		p.BroadcastedAt = &ts
	}
	return p, nil
}
