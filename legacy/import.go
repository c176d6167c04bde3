// Copyright (c) 2023-2025 The txcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package legacy converts proposal records written under the retired version 1
and 2 schemas into the current version 3 form.

The importer exists for one-time data migration only.  Nothing in the live
proposal paths reaches it: current code rejects sub-version-3 records
outright and callers route them here explicitly.
*/
package legacy

import (
	"encoding/json"
	"fmt"

	"github.com/coparty/txcoord/txproposal"
)

// Version 1 records predate multi-output proposals: a single destination,
// amount and memo at the top level, and no creator proposal signature.
// Version 2 added the outputs array and the proposal signature but still
// predates multi-chain fields and the output order permutation.
type legacyRecord struct {
	ID        string `json:"id"`
	Version   int    `json:"version"`
	WalletID  string `json:"walletId"`
	CreatorID string `json:"creatorId"`

	Network string `json:"network"`

	WalletM int `json:"walletM"`
	WalletN int `json:"walletN"`

	// Version 1 single-destination fields.
	ToAddress     string `json:"toAddress"`
	Amount        int64  `json:"amount"`
	EncryptedMemo []byte `json:"message"`

	// Version 2 multi-output field.
	Outputs []txproposal.WireOutput `json:"outputs"`

	Inputs []txproposal.WireInput `json:"inputs"`

	FeePerKb int64 `json:"feePerKb"`
	Fee      int64 `json:"fee"`

	ChangeAddress string `json:"changeAddress"`
	ChangeAmount  int64  `json:"changeAmount"`
	HasChange     bool   `json:"hasChange"`

	RequiredSignatures int `json:"requiredSignatures"`
	RequiredRejections int `json:"requiredRejections"`

	Status  string                  `json:"status"`
	Actions []txproposal.WireAction `json:"actions"`

	ProposalSignature []byte `json:"proposalSignature"`

	PayProURL  string `json:"payProUrl"`
	CustomData string `json:"customData"`

	TxID  string `json:"txid"`
	RawTx []byte `json:"raw"`

	CreatedOn     int64  `json:"createdOn"`
	BroadcastedOn *int64 `json:"broadcastedOn"`
}

// Import converts a version 1 or 2 proposal record into a current Proposal.
// Records already at version 3 or later are refused; they need no
// conversion and must go through the regular decoder.
func Import(raw []byte) (*txproposal.Proposal, error) {
	var rec legacyRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, newError(ErrMalformedRecord,
			"cannot parse legacy proposal record", err)
	}
	if rec.Version < 1 || rec.Version >= txproposal.CurrentVersion {
		str := fmt.Sprintf("version %d is not a legacy schema", rec.Version)
		return nil, newError(ErrUnsupportedVersion, str, nil)
	}

	outputs := rec.Outputs
	if rec.Version == 1 {
		if rec.ToAddress == "" {
			return nil, newError(ErrMalformedRecord,
				"version 1 record has no destination", nil)
		}
		outputs = []txproposal.WireOutput{{
			ToAddress:     rec.ToAddress,
			Amount:        rec.Amount,
			EncryptedMemo: rec.EncryptedMemo,
		}}
	}
	if len(outputs) == 0 {
		return nil, newError(ErrMalformedRecord,
			"legacy record has no outputs", nil)
	}

	// Legacy schemas predate multi-chain wallets and output shuffling:
	// everything was a Bitcoin P2SH multisig wallet, livenet unless
	// marked, outputs in request order with change last.
	network := rec.Network
	if network == "" {
		network = "livenet"
	}
	slots := len(outputs)
	if rec.HasChange {
		slots++
	}
	order := make([]int, slots)
	for i := range order {
		order[i] = i
	}

	upgraded := txproposal.WireRecord{
		ID:                 rec.ID,
		Version:            txproposal.CurrentVersion,
		WalletID:           rec.WalletID,
		CreatorID:          rec.CreatorID,
		Chain:              "btc",
		Network:            network,
		WalletM:            rec.WalletM,
		WalletN:            rec.WalletN,
		ScriptType:         "P2SH",
		Outputs:            outputs,
		Inputs:             rec.Inputs,
		FeePerKb:           rec.FeePerKb,
		Fee:                rec.Fee,
		ChangeAddress:      rec.ChangeAddress,
		ChangeAmount:       rec.ChangeAmount,
		HasChange:          rec.HasChange,
		OutputOrder:        order,
		RequiredSignatures: rec.RequiredSignatures,
		RequiredRejections: rec.RequiredRejections,
		Status:             rec.Status,
		Actions:            rec.Actions,
		ProposalSignature:  rec.ProposalSignature,
		PayProURL:          rec.PayProURL,
		CustomData:         rec.CustomData,
		TxID:               rec.TxID,
		RawTx:              rec.RawTx,
		CreatedOn:          rec.CreatedOn,
		BroadcastedOn:      rec.BroadcastedOn,
	}
	encoded, err := json.Marshal(&upgraded)
	if err != nil {
		return nil, newError(ErrMalformedRecord,
			"cannot re-encode upgraded record", err)
	}
	p, err := txproposal.UnmarshalWire(encoded)
	if err != nil {
		return nil, newError(ErrMalformedRecord,
			"upgraded record fails current validation", err)
	}
	return p, nil
}
