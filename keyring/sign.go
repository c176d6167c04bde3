// Copyright (c) 2023-2025 The txcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keyring

import (
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// HashMessage produces the digest every signing and verification operation in
// the module uses: the double SHA-256 of the comma-joined message parts, with
// the byte order of the digest reversed.  The convention is fixed and
// versionless; both sides of any check must apply it identically.
func HashMessage(parts ...string) []byte {
	digest := chainhash.DoubleHashB([]byte(strings.Join(parts, ",")))
	for i, j := 0, len(digest)-1; i < j; i, j = i+1, j-1 {
		digest[i], digest[j] = digest[j], digest[i]
	}
	return digest
}

// SignMessage signs the message parts under the fixed hashing convention and
// returns a DER-encoded signature.  Signing is deterministic (RFC6979), so
// identical inputs always produce identical signatures.
func SignMessage(priv *btcec.PrivateKey, parts ...string) []byte {
	return ecdsa.Sign(priv, HashMessage(parts...)).Serialize()
}

// VerifyMessage reports whether sig is a valid signature over the message
// parts by the given public key.  It never reports why verification failed.
func VerifyMessage(pub *btcec.PublicKey, sig []byte, parts ...string) bool {
	if pub == nil || len(sig) == 0 {
		return false
	}
	parsed, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return false
	}
	return parsed.Verify(HashMessage(parts...), pub)
}

// ParsePubKey parses a hex- or byte-encoded compressed secp256k1 public key.
func ParsePubKey(serialized []byte) (*btcec.PublicKey, error) {
	pub, err := btcec.ParsePubKey(serialized)
	if err != nil {
		return nil, newError(ErrCrypto, "malformed public key", err)
	}
	return pub, nil
}
