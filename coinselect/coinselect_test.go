// Copyright (c) 2023-2025 The txcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coinselect_test

import (
	"fmt"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"

	"github.com/coparty/txcoord/chain"
	"github.com/coparty/txcoord/coinselect"
	"github.com/coparty/txcoord/keyring"
)

// genesisAddr is a valid mainnet P2PKH destination.
const genesisAddr = "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"

func testAdapter(t *testing.T) chain.Adapter {
	t.Helper()
	adapter, err := chain.AdapterFor(chain.BTC)
	require.NoError(t, err)
	return adapter
}

// testSpec describes a single payment from a 2-of-3 P2SH wallet at
// 1000 sat/kvB.  With these parameters the fee model is 76 satoshis base
// plus 299 satoshis per input.
func testSpec(target btcutil.Amount) *chain.TxSpec {
	return &chain.TxSpec{
		Chain:      chain.BTC,
		Network:    chain.MainNet,
		M:          2,
		N:          3,
		ScriptType: keyring.ScriptP2SH,
		Outputs: []chain.Output{
			{Address: genesisAddr, Amount: target},
		},
		FeePerKb: 1000,
	}
}

var utxoCounter int

func makeUTXO(sats btcutil.Amount, confirmations int32, locked bool) chain.UTXO {
	utxoCounter++
	return chain.UTXO{
		TxID:          fmt.Sprintf("%064x", utxoCounter),
		Vout:          0,
		Address:       genesisAddr,
		Path:          "0/0",
		Satoshis:      sats,
		Confirmations: confirmations,
		Locked:        locked,
	}
}

func requireCode(t *testing.T, err error, want coinselect.ErrorCode) {
	t.Helper()
	code, ok := coinselect.Code(err)
	require.True(t, ok, "error %v carries no selection code", err)
	require.Equal(t, want, code)
}

func TestSelectSingleSufficientInput(t *testing.T) {
	utxos := []chain.UTXO{
		makeUTXO(5000, 10, false),
		makeUTXO(3000, 10, false),
		makeUTXO(1000, 10, false),
	}

	res, err := coinselect.Select(testAdapter(t), testSpec(4000), utxos, nil)
	require.NoError(t, err)

	require.Len(t, res.Inputs, 1)
	require.Equal(t, btcutil.Amount(5000), res.Inputs[0].Satoshis)
	require.Equal(t, btcutil.Amount(375), res.Fee)
	require.True(t, res.HasChange)
	require.Equal(t, btcutil.Amount(625), res.Change)

	// Value conservation.
	require.Equal(t, res.TotalInput, 4000+res.Fee+res.Change)
}

func TestSelectAccumulatesSmalls(t *testing.T) {
	utxos := []chain.UTXO{
		makeUTXO(3000, 10, false),
		makeUTXO(2500, 10, false),
		makeUTXO(2000, 10, false),
	}

	res, err := coinselect.Select(testAdapter(t), testSpec(4000), utxos, nil)
	require.NoError(t, err)

	// Largest first: 3000 alone cannot fund it, 3000+2500 can.
	require.Len(t, res.Inputs, 2)
	require.Equal(t, btcutil.Amount(3000), res.Inputs[0].Satoshis)
	require.Equal(t, btcutil.Amount(2500), res.Inputs[1].Satoshis)
	require.Equal(t, res.TotalInput, 4000+res.Fee+res.Change)
}

func TestSelectDeterminism(t *testing.T) {
	utxos := []chain.UTXO{
		makeUTXO(3000, 10, false),
		makeUTXO(2500, 10, false),
		makeUTXO(5000, 10, false),
	}

	a, err := coinselect.Select(testAdapter(t), testSpec(4000), utxos, nil)
	require.NoError(t, err)
	b, err := coinselect.Select(testAdapter(t), testSpec(4000), utxos, nil)
	require.NoError(t, err)
	require.Equal(t, a, b, "got %s, then %s", spew.Sdump(a), spew.Sdump(b))
}

func TestSelectInsufficientFunds(t *testing.T) {
	utxos := []chain.UTXO{
		makeUTXO(1000, 10, false),
		makeUTXO(500, 10, false),
	}
	_, err := coinselect.Select(testAdapter(t), testSpec(4000), utxos, nil)
	requireCode(t, err, coinselect.ErrInsufficientFunds)
}

func TestSelectInsufficientFundsForFee(t *testing.T) {
	// 4100 covers the 4000 target but not target plus fee.
	utxos := []chain.UTXO{makeUTXO(4100, 10, false)}
	_, err := coinselect.Select(testAdapter(t), testSpec(4000), utxos, nil)
	requireCode(t, err, coinselect.ErrInsufficientFundsForFee)
}

func TestSelectLockedClassification(t *testing.T) {
	utxos := []chain.UTXO{
		makeUTXO(5000, 10, true),
		makeUTXO(1000, 10, false),
	}
	_, err := coinselect.Select(testAdapter(t), testSpec(4000), utxos, nil)
	requireCode(t, err, coinselect.ErrUTXOsLocked)
}

func TestSelectConfirmationLadder(t *testing.T) {
	confirmed := makeUTXO(5000, 10, false)
	unconfirmed := makeUTXO(6000, 0, false)

	// Confirmed funds win even when an unconfirmed output is larger.
	res, err := coinselect.Select(testAdapter(t),
		testSpec(4000), []chain.UTXO{unconfirmed, confirmed}, nil)
	require.NoError(t, err)
	require.Len(t, res.Inputs, 1)
	require.Equal(t, confirmed.Key(), res.Inputs[0].Key())

	// With only unconfirmed funds the last rung picks them up.
	res, err = coinselect.Select(testAdapter(t),
		testSpec(4000), []chain.UTXO{unconfirmed}, nil)
	require.NoError(t, err)
	require.Equal(t, unconfirmed.Key(), res.Inputs[0].Key())

	// Unless the policy excludes the zero-confirmation rung.
	policy := coinselect.DefaultPolicy()
	policy.ExcludeUnconfirmed = true
	_, err = coinselect.Select(testAdapter(t),
		testSpec(4000), []chain.UTXO{unconfirmed}, policy)
	requireCode(t, err, coinselect.ErrInsufficientFunds)
}

func TestSelectFoldsDustChange(t *testing.T) {
	utxos := []chain.UTXO{makeUTXO(5000, 10, false)}

	// Implied change of 425 is below the dust threshold and becomes fee.
	res, err := coinselect.Select(testAdapter(t), testSpec(4200), utxos, nil)
	require.NoError(t, err)
	require.False(t, res.HasChange)
	require.Equal(t, btcutil.Amount(0), res.Change)
	require.Equal(t, btcutil.Amount(800), res.Fee)
	require.Equal(t, res.TotalInput, 4200+res.Fee)
}

func TestSelectExactMatch(t *testing.T) {
	// 4375 funds the 4000 target plus the 375 single-input fee exactly.
	utxos := []chain.UTXO{makeUTXO(4375, 10, false)}

	res, err := coinselect.Select(testAdapter(t), testSpec(4000), utxos, nil)
	require.NoError(t, err)
	require.False(t, res.HasChange)
	require.Equal(t, btcutil.Amount(375), res.Fee)
	require.Equal(t, btcutil.Amount(0), res.Change)
}

func TestSelectBigFallback(t *testing.T) {
	utxos := []chain.UTXO{
		makeUTXO(800, 10, false),
		makeUTXO(5000, 10, false),
	}

	res, err := coinselect.Select(testAdapter(t), testSpec(1000), utxos, nil)
	require.NoError(t, err)
	require.Len(t, res.Inputs, 1)
	require.Equal(t, btcutil.Amount(5000), res.Inputs[0].Satoshis)
}

// TestSelectAbandonsExpensiveAccumulation checks the fee-versus-amount
// heuristic: when combining small outputs drives the fee past the policy
// fraction of the payment and a big output exists, the big output wins.
func TestSelectAbandonsExpensiveAccumulation(t *testing.T) {
	utxos := []chain.UTXO{
		makeUTXO(6000, 10, false),
		makeUTXO(5000, 10, false),
		makeUTXO(25000, 10, false),
	}

	res, err := coinselect.Select(testAdapter(t), testSpec(10000), utxos, nil)
	require.NoError(t, err)
	require.Len(t, res.Inputs, 1)
	require.Equal(t, btcutil.Amount(25000), res.Inputs[0].Satoshis)
}

func TestSelectSizeCap(t *testing.T) {
	policy := coinselect.DefaultPolicy()
	policy.MaxTxVirtualSize = 100

	utxos := []chain.UTXO{makeUTXO(5000, 10, false)}
	_, err := coinselect.Select(testAdapter(t), testSpec(4000), utxos, policy)
	requireCode(t, err, coinselect.ErrTxSizeExceeded)
}

func TestSelectReplacePinsInputs(t *testing.T) {
	replaced := makeUTXO(2000, 0, true)
	utxos := []chain.UTXO{
		makeUTXO(3000, 10, false),
		makeUTXO(2000, 10, false),
		replaced,
	}

	policy := coinselect.DefaultPolicy()
	policy.ReplaceInputs = []chain.UTXO{replaced}

	// The replaced input is selected first despite being locked and
	// unconfirmed.
	res, err := coinselect.Select(testAdapter(t), testSpec(4000), utxos, policy)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(res.Inputs), 2)
	require.Equal(t, replaced.Key(), res.Inputs[0].Key())
}

func TestSelectReplaceRetention(t *testing.T) {
	// The replaced input is too small to carry its own fee cost, so the
	// selection would drop it; that invalidates the replacement.
	replaced := makeUTXO(100, 10, false)
	utxos := []chain.UTXO{
		makeUTXO(5000, 10, false),
		replaced,
	}

	policy := coinselect.DefaultPolicy()
	policy.ReplaceInputs = []chain.UTXO{replaced}

	_, err := coinselect.Select(testAdapter(t), testSpec(4000), utxos, policy)
	requireCode(t, err, coinselect.ErrNoReplaceInput)
}
