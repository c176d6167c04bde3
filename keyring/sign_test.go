// Copyright (c) 2023-2025 The txcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keyring_test

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"

	"github.com/coparty/txcoord/keyring"
)

func TestHashMessage(t *testing.T) {
	digest := keyring.HashMessage("hello world")
	require.Len(t, digest, 32)

	// Parts are joined with commas before hashing, so the split is not
	// authenticated; only the joined text is.
	require.Equal(t, keyring.HashMessage("a,b"), keyring.HashMessage("a", "b"))
	require.NotEqual(t, keyring.HashMessage("a"), keyring.HashMessage("b"))
}

func TestSignVerifyMessage(t *testing.T) {
	w := newTestWallet(t, 2, 3)
	priv := w.requestPrivs[0]

	sig := keyring.SignMessage(priv, "create", "proposal-1")
	require.True(t, keyring.VerifyMessage(priv.PubKey(), sig, "create", "proposal-1"))

	// Deterministic signing: identical input, identical signature.
	require.Equal(t, sig, keyring.SignMessage(priv, "create", "proposal-1"))

	require.False(t, keyring.VerifyMessage(priv.PubKey(), sig, "create", "proposal-2"))
	require.False(t, keyring.VerifyMessage(w.requestPrivs[1].PubKey(), sig,
		"create", "proposal-1"))
	require.False(t, keyring.VerifyMessage(priv.PubKey(), nil, "create", "proposal-1"))
	require.False(t, keyring.VerifyMessage(nil, sig, "create", "proposal-1"))
	require.False(t, keyring.VerifyMessage(priv.PubKey(), []byte("junk"),
		"create", "proposal-1"))
}

func TestParsePubKey(t *testing.T) {
	w := newTestWallet(t, 1, 1)
	serialized := w.requestPrivs[0].PubKey().SerializeCompressed()

	pub, err := keyring.ParsePubKey(serialized)
	require.NoError(t, err)
	require.True(t, pub.IsEqual(w.requestPrivs[0].PubKey()))

	_, err = keyring.ParsePubKey([]byte{0x02, 0x03})
	requireCode(t, err, keyring.ErrCrypto)
}

func TestMemoRoundTrip(t *testing.T) {
	shared, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	sealed, err := keyring.EncryptMemo(shared, "rent for march")
	require.NoError(t, err)
	require.Equal(t, "rent for march", keyring.DecryptMemo(shared, sealed))

	// A different shared key yields the sentinel, never an error.
	other, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	require.Equal(t, keyring.UndecryptableMemo, keyring.DecryptMemo(other, sealed))

	// So do truncated and empty boxes.
	require.Equal(t, keyring.UndecryptableMemo, keyring.DecryptMemo(shared, sealed[:10]))
	require.Equal(t, keyring.UndecryptableMemo, keyring.DecryptMemo(shared, nil))
}

func TestEncryptMemoNonceUniqueness(t *testing.T) {
	shared, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	a, err := keyring.EncryptMemo(shared, "same text")
	require.NoError(t, err)
	b, err := keyring.EncryptMemo(shared, "same text")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
	require.Equal(t, "same text", keyring.DecryptMemo(shared, a))
	require.Equal(t, "same text", keyring.DecryptMemo(shared, b))
}
