// Copyright (c) 2023-2025 The txcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keyring

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

// MaxKeys is the largest supported copayer count.  It matches the pubkey
// limit of a standard OP_CHECKMULTISIG script, which every supported script
// type ultimately lowers to.
const MaxKeys = 15

// ScriptType identifies the address/script kind a wallet produces.
type ScriptType int

const (
	// ScriptP2PKH is a pay-to-pubkey-hash single-key address.
	ScriptP2PKH ScriptType = iota

	// ScriptP2SH is a pay-to-script-hash M-of-N multisig address.
	ScriptP2SH

	// ScriptP2WPKH is a native segwit pay-to-witness-pubkey-hash address.
	ScriptP2WPKH

	// ScriptP2WSH is a native segwit M-of-N multisig address.
	ScriptP2WSH

	// ScriptP2TR is a taproot key-spend address.
	ScriptP2TR
)

var scriptTypeStrings = map[ScriptType]string{
	ScriptP2PKH:  "P2PKH",
	ScriptP2SH:   "P2SH",
	ScriptP2WPKH: "P2WPKH",
	ScriptP2WSH:  "P2WSH",
	ScriptP2TR:   "P2TR",
}

// String returns the ScriptType as a human-readable name.
func (t ScriptType) String() string {
	if s, ok := scriptTypeStrings[t]; ok {
		return s
	}
	return fmt.Sprintf("Unknown ScriptType (%d)", int(t))
}

// ParseScriptType maps a script type name back to its ScriptType value.
func ParseScriptType(s string) (ScriptType, bool) {
	for t, name := range scriptTypeStrings {
		if name == s {
			return t, true
		}
	}
	return 0, false
}

// Multisig returns true if the script type encodes an M-of-N policy in the
// script itself rather than paying to a single key.
func (t ScriptType) Multisig() bool {
	return t == ScriptP2SH || t == ScriptP2WSH
}

// RingKey is one copayer's entry in a wallet's public-key ring.
type RingKey struct {
	// XPub is the copayer's account-level extended public key.  Addresses
	// are derived from it along non-hardened paths.
	XPub *hdkeychain.ExtendedKey

	// RequestPub is the copayer's long-lived request public key, used to
	// authenticate proposal creation and delegated signing keys.
	RequestPub *btcec.PublicKey
}

// Ring is the ordered public-key ring of an M-of-N wallet: one RingKey per
// copayer, in wallet join order.
type Ring struct {
	M    int
	N    int
	Keys []RingKey
}

// NewRing builds and validates a Ring from copayer key material.  The xpubs
// and request keys must be in the same (join) order.
func NewRing(m int, xpubs []string, requestPubs []*btcec.PublicKey) (*Ring, error) {
	n := len(xpubs)
	if m < 1 || m > n || n > MaxKeys {
		str := fmt.Sprintf("invalid quorum %d-of-%d", m, n)
		return nil, newError(ErrInvalidRing, str, nil)
	}
	if len(requestPubs) != n {
		str := fmt.Sprintf("got %d request keys for %d copayers",
			len(requestPubs), n)
		return nil, newError(ErrInvalidRing, str, nil)
	}

	seen := make(map[string]struct{}, n)
	keys := make([]RingKey, n)
	for i, s := range xpubs {
		if _, ok := seen[s]; ok {
			return nil, newError(ErrDuplicateKey,
				"duplicate extended public key in ring", nil)
		}
		seen[s] = struct{}{}

		xpub, err := hdkeychain.NewKeyFromString(s)
		if err != nil {
			str := fmt.Sprintf("malformed extended public key #%d", i)
			return nil, newError(ErrInvalidRing, str, err)
		}
		if xpub.IsPrivate() {
			return nil, newError(ErrInvalidRing,
				"ring keys must be public, not private", nil)
		}
		if requestPubs[i] == nil {
			str := fmt.Sprintf("missing request key for copayer #%d", i)
			return nil, newError(ErrInvalidRing, str, nil)
		}
		keys[i] = RingKey{XPub: xpub, RequestPub: requestPubs[i]}
	}

	return &Ring{M: m, N: n, Keys: keys}, nil
}

// CopayerID derives the stable copayer identity for an extended public key.
// The id is the hex-encoded SHA-256 of the xpub string, prefixed with the
// chain name for non-Bitcoin chains so the same seed used on two chains does
// not collide, while legitimate wallet duplication on the same chain does
// correlate.  The id is independent of the wallet's script type.
func CopayerID(chainPrefix, xpub string) string {
	s := xpub
	if chainPrefix != "" && chainPrefix != "btc" {
		s = chainPrefix + xpub
	}
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
