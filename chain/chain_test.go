// Copyright (c) 2023-2025 The txcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain_test

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"

	"github.com/coparty/txcoord/chain"
)

func TestChainParseRoundTrip(t *testing.T) {
	for _, c := range []chain.Chain{chain.BTC, chain.ETH, chain.XRP, chain.SOL} {
		parsed, ok := chain.ParseChain(c.String())
		require.True(t, ok)
		require.Equal(t, c, parsed)
	}
	_, ok := chain.ParseChain("doge")
	require.False(t, ok)
}

func TestNetworkParseRoundTrip(t *testing.T) {
	for _, n := range []chain.Network{chain.MainNet, chain.TestNet, chain.RegTest} {
		parsed, ok := chain.ParseNetwork(n.String())
		require.True(t, ok)
		require.Equal(t, n, parsed)
	}
	_, ok := chain.ParseNetwork("simnet")
	require.False(t, ok)
}

func TestNetworkParams(t *testing.T) {
	require.Equal(t, &chaincfg.MainNetParams, chain.MainNet.Params())
	require.Equal(t, &chaincfg.TestNet3Params, chain.TestNet.Params())
	require.Equal(t, &chaincfg.RegressionNetParams, chain.RegTest.Params())
}

func TestAdapterFor(t *testing.T) {
	adapter, err := chain.AdapterFor(chain.BTC)
	require.NoError(t, err)
	require.Equal(t, chain.BTC, adapter.Chain())
	require.True(t, adapter.IsUTXOModel())
	require.True(t, adapter.SupportsMultisig())

	// Account-model adapters are supplied by the caller, never in-core.
	for _, c := range []chain.Chain{chain.ETH, chain.XRP, chain.SOL} {
		_, err := chain.AdapterFor(c)
		requireCode(t, err, chain.ErrUnsupportedChain)
	}
}

func TestUTXOKey(t *testing.T) {
	u := chain.UTXO{TxID: "ab12", Vout: 7}
	require.Equal(t, "ab12:7", u.Key())
}

func TestPayloadRoundTrip(t *testing.T) {
	in := &chain.Payload{
		Nonce:          42,
		GasPrice:       21_000_000_000,
		GasLimit:       21_000,
		DestinationTag: 9001,
		Data:           []byte{0xde, 0xad, 0xbe, 0xef},
	}
	raw, err := in.Encode()
	require.NoError(t, err)

	out, err := chain.DecodePayload(raw)
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestDecodePayloadGarbage(t *testing.T) {
	_, err := chain.DecodePayload([]byte{0xff, 0xff, 0xff})
	requireCode(t, err, chain.ErrPayload)
}
