// Copyright (c) 2023-2025 The txcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keyring

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// ParsePath parses a relative BIP32 derivation path such as "m/0/12" or
// "1/7" into its child indexes.  Hardened components are rejected since this
// package only ever derives from extended public keys.
func ParsePath(path string) ([]uint32, error) {
	s := strings.TrimPrefix(path, "m/")
	s = strings.TrimPrefix(s, "M/")
	if s == "" || s == "m" {
		return nil, nil
	}
	parts := strings.Split(s, "/")
	indexes := make([]uint32, len(parts))
	for i, p := range parts {
		if strings.HasSuffix(p, "'") || strings.HasSuffix(p, "h") {
			str := fmt.Sprintf("hardened component %q in path %q", p, path)
			return nil, newError(ErrInvalidPath, str, nil)
		}
		v, err := strconv.ParseUint(p, 10, 32)
		if err != nil || v >= hdkeychain.HardenedKeyStart {
			str := fmt.Sprintf("invalid component %q in path %q", p, path)
			return nil, newError(ErrInvalidPath, str, err)
		}
		indexes[i] = uint32(v)
	}
	return indexes, nil
}

// deriveChild walks an extended public key along the given child indexes.
func deriveChild(xpub *hdkeychain.ExtendedKey, indexes []uint32) (*btcec.PublicKey, error) {
	key := xpub
	for _, i := range indexes {
		child, err := key.Derive(i)
		if err != nil {
			str := fmt.Sprintf("cannot derive child #%d", i)
			return nil, newError(ErrKeyChain, str, err)
		}
		key = child
	}
	pub, err := key.ECPubKey()
	if err != nil {
		return nil, newError(ErrKeyChain, "cannot extract EC pubkey", err)
	}
	return pub, nil
}

// DerivePubKeys derives the child public key of every ring member at path.
// The result preserves ring order.
func (r *Ring) DerivePubKeys(path string) ([]*btcec.PublicKey, error) {
	indexes, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	pubs := make([]*btcec.PublicKey, len(r.Keys))
	for i, k := range r.Keys {
		pub, err := deriveChild(k.XPub, indexes)
		if err != nil {
			return nil, err
		}
		pubs[i] = pub
	}
	return pubs, nil
}

// SortedPubKeys orders public keys by their compressed serialization.
// Multisig scripts use this canonical order so every copayer derives the same
// script regardless of ring order.
func SortedPubKeys(pubs []*btcec.PublicKey) []*btcec.PublicKey {
	sorted := make([]*btcec.PublicKey, len(pubs))
	copy(sorted, pubs)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].SerializeCompressed(),
			sorted[j].SerializeCompressed()) < 0
	})
	return sorted
}

// MultiSigScript builds the canonical m-of-len(pubs) redeem script over the
// given public keys, sorted into canonical order first.
func MultiSigScript(pubs []*btcec.PublicKey, m int,
	params *chaincfg.Params) ([]byte, error) {

	addrPKs := make([]*btcutil.AddressPubKey, len(pubs))
	for i, pub := range SortedPubKeys(pubs) {
		apk, err := btcutil.NewAddressPubKey(pub.SerializeCompressed(), params)
		if err != nil {
			return nil, newError(ErrScriptCreation,
				"cannot encode pubkey", err)
		}
		addrPKs[i] = apk
	}
	script, err := txscript.MultiSigScript(addrPKs, m)
	if err != nil {
		str := fmt.Sprintf("cannot build %d-of-%d multisig script",
			m, len(pubs))
		return nil, newError(ErrScriptCreation, str, err)
	}
	return script, nil
}

// DeriveAddress derives the wallet address at path for the given script type
// and network, returning the address together with the derived child public
// keys (in ring order) that produced it.
//
// Single-key script types use the first ring key; multisig types combine the
// whole ring under the wallet's M.
func (r *Ring) DeriveAddress(path string, scriptType ScriptType,
	params *chaincfg.Params) (btcutil.Address, []*btcec.PublicKey, error) {

	pubs, err := r.DerivePubKeys(path)
	if err != nil {
		return nil, nil, err
	}

	var addr btcutil.Address
	switch scriptType {
	case ScriptP2PKH:
		addr, err = btcutil.NewAddressPubKeyHash(
			btcutil.Hash160(pubs[0].SerializeCompressed()), params)

	case ScriptP2WPKH:
		addr, err = btcutil.NewAddressWitnessPubKeyHash(
			btcutil.Hash160(pubs[0].SerializeCompressed()), params)

	case ScriptP2TR:
		taprootKey := txscript.ComputeTaprootKeyNoScript(pubs[0])
		addr, err = btcutil.NewAddressTaproot(
			schnorr.SerializePubKey(taprootKey), params)

	case ScriptP2SH:
		var script []byte
		script, err = MultiSigScript(pubs, r.M, params)
		if err != nil {
			return nil, nil, err
		}
		addr, err = btcutil.NewAddressScriptHash(script, params)

	case ScriptP2WSH:
		var script []byte
		script, err = MultiSigScript(pubs, r.M, params)
		if err != nil {
			return nil, nil, err
		}
		scriptHash := sha256.Sum256(script)
		addr, err = btcutil.NewAddressWitnessScriptHash(
			scriptHash[:], params)

	default:
		str := fmt.Sprintf("cannot derive an address for %v", scriptType)
		return nil, nil, newError(ErrUnsupportedScriptType, str, nil)
	}
	if err != nil {
		return nil, nil, newError(ErrScriptCreation,
			"cannot construct address", err)
	}

	return addr, pubs, nil
}

// DeriveEscrowAddress derives the escrow (instant-acceptance) variant of an
// address: the payment key at path is combined with the input public keys
// derived at each of inputPaths, and the result is a 1-of-(1+len(inputPaths))
// script-hash address.  Spending it requires either the merchant reclaim path
// or any of the escrowed input keys, which is what secures the guarantee.
func (r *Ring) DeriveEscrowAddress(path string, inputPaths []string,
	params *chaincfg.Params) (btcutil.Address, error) {

	pubs, err := r.DerivePubKeys(path)
	if err != nil {
		return nil, err
	}
	all := []*btcec.PublicKey{pubs[0]}
	for _, p := range inputPaths {
		inputPubs, err := r.DerivePubKeys(p)
		if err != nil {
			return nil, err
		}
		all = append(all, inputPubs[0])
	}

	script, err := MultiSigScript(all, 1, params)
	if err != nil {
		return nil, err
	}
	addr, err := btcutil.NewAddressScriptHash(script, params)
	if err != nil {
		return nil, newError(ErrScriptCreation,
			"cannot construct escrow address", err)
	}
	return addr, nil
}
