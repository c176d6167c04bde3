// Copyright (c) 2023-2025 The txcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package legacy

import (
	"fmt"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/stretchr/testify/require"

	"github.com/coparty/txcoord/chain"
	"github.com/coparty/txcoord/keyring"
	"github.com/coparty/txcoord/txproposal"
)

func requireCode(t *testing.T, err error, code ErrorCode) {
	t.Helper()
	var lerr Error
	require.ErrorAs(t, err, &lerr)
	require.Equal(t, code, lerr.ErrorCode)
}

func TestImportVersion1(t *testing.T) {
	raw := []byte(`{
		"id": "txp-001",
		"version": 1,
		"walletId": "wallet-1",
		"creatorId": "deadbeef",
		"walletM": 2,
		"walletN": 3,
		"toAddress": "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa",
		"amount": 50000,
		"inputs": [{
			"txid": "aa00000000000000000000000000000000000000000000000000000000000000",
			"vout": 0,
			"address": "3P14159f73E4gFr7JterCCQh9QjiTjiZrG",
			"path": "0/0",
			"satoshis": 100000,
			"confirmations": 12,
			"locked": false
		}],
		"feePerKb": 1000,
		"fee": 400,
		"changeAddress": "3P14159f73E4gFr7JterCCQh9QjiTjiZrG",
		"changeAmount": 49600,
		"hasChange": true,
		"requiredSignatures": 2,
		"requiredRejections": 2,
		"status": "pending",
		"createdOn": 1700000000
	}`)

	p, err := Import(raw)
	require.NoError(t, err)

	require.Equal(t, "txp-001", p.ID)
	require.Equal(t, txproposal.CurrentVersion, p.Version)
	require.Equal(t, chain.BTC, p.Chain)
	require.Equal(t, chain.MainNet, p.Network)
	require.Equal(t, keyring.ScriptP2SH, p.ScriptType)
	require.Equal(t, txproposal.StatusPending, p.Status)

	// The single destination becomes the one payment output.
	require.Len(t, p.Outputs, 1)
	require.Equal(t, "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", p.Outputs[0].Address)
	require.Equal(t, btcutil.Amount(50_000), p.Outputs[0].Amount)

	require.Len(t, p.Inputs, 1)
	require.Equal(t, "0/0", p.Inputs[0].Path)
	require.Equal(t, btcutil.Amount(100_000), p.Inputs[0].Satoshis)

	// Legacy records never shuffled: identity order, change last.
	require.Equal(t, []int{0, 1}, p.OutputOrder)
	require.True(t, p.HasChange)
	require.Equal(t, int64(1700000000), p.CreatedAt.Unix())
}

func TestImportVersion2(t *testing.T) {
	raw := []byte(`{
		"id": "txp-002",
		"version": 2,
		"walletId": "wallet-1",
		"creatorId": "deadbeef",
		"network": "testnet",
		"walletM": 2,
		"walletN": 2,
		"outputs": [
			{"toAddress": "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", "amount": 30000},
			{"toAddress": "3P14159f73E4gFr7JterCCQh9QjiTjiZrG", "amount": 20000}
		],
		"feePerKb": 2000,
		"fee": 800,
		"requiredSignatures": 2,
		"requiredRejections": 1,
		"status": "broadcasted",
		"actions": [
			{"copayerId": "deadbeef", "type": "accept", "createdOn": 1700000100},
			{"copayerId": "cafebabe", "type": "accept", "createdOn": 1700000200}
		],
		"txid": "bb00000000000000000000000000000000000000000000000000000000000000",
		"createdOn": 1700000000,
		"broadcastedOn": 1700000300
	}`)

	p, err := Import(raw)
	require.NoError(t, err)

	require.Equal(t, txproposal.CurrentVersion, p.Version)
	require.Equal(t, chain.TestNet, p.Network)
	require.Equal(t, txproposal.StatusBroadcasted, p.Status)
	require.Len(t, p.Outputs, 2)
	require.Equal(t, btcutil.Amount(20_000), p.Outputs[1].Amount)

	// No change output: the order covers payment slots only.
	require.False(t, p.HasChange)
	require.Equal(t, []int{0, 1}, p.OutputOrder)

	require.Len(t, p.Actions, 2)
	require.Equal(t, txproposal.VoteAccept, p.Actions[0].Kind)
	require.Equal(t, int64(1700000200), p.Actions[1].CreatedAt.Unix())

	require.NotNil(t, p.BroadcastedAt)
	require.Equal(t, int64(1700000300), p.BroadcastedAt.Unix())
}

func TestImportRejectsNonLegacyVersions(t *testing.T) {
	for _, version := range []int{0, 3, 4} {
		raw := fmt.Sprintf(`{"id": "x", "version": %d, "toAddress": "a", "amount": 1}`,
			version)
		_, err := Import([]byte(raw))
		requireCode(t, err, ErrUnsupportedVersion)
	}
}

func TestImportMalformedRecords(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{truncated`},
		{"v1 without destination", `{"version": 1, "amount": 1000}`},
		{"v2 without outputs", `{"version": 2, "status": "pending"}`},
		{
			"unknown status",
			`{"version": 2, "status": "limbo",
			  "outputs": [{"toAddress": "a", "amount": 1}]}`,
		},
		{
			"unknown vote type",
			`{"version": 2, "status": "pending",
			  "outputs": [{"toAddress": "a", "amount": 1}],
			  "actions": [{"copayerId": "x", "type": "abstain"}]}`,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Import([]byte(test.raw))
			requireCode(t, err, ErrMalformedRecord)
		})
	}
}
