// Copyright (c) 2023-2025 The txcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keyring

import (
	"crypto/rand"
	"crypto/sha512"

	"github.com/btcsuite/btcd/btcec/v2"
	"golang.org/x/crypto/nacl/secretbox"
)

// UndecryptableMemo is the sentinel returned when a memo cannot be decrypted.
// Callers diffing records substitute it for the cleartext instead of aborting
// the whole comparison.
const UndecryptableMemo = "<ECANNOTDECRYPT>"

const nonceSize = 24

// memoKey derives the symmetric memo key from the wallet's shared private
// key: the SHA-512 of its serialization truncated to the secretbox key size.
func memoKey(shared *btcec.PrivateKey) [32]byte {
	sum := sha512.Sum512(shared.Serialize())
	var key [32]byte
	copy(key[:], sum[:32])
	return key
}

// EncryptMemo seals a memo under the wallet's shared key.  The output embeds
// the random nonce and can only be opened with the same shared key.
func EncryptMemo(shared *btcec.PrivateKey, memo string) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, newError(ErrCrypto, "cannot generate memo nonce", err)
	}
	key := memoKey(shared)
	return secretbox.Seal(nonce[:], []byte(memo), &nonce, &key), nil
}

// DecryptMemo opens a sealed memo.  Any failure, including a truncated box or
// a key mismatch, yields the UndecryptableMemo sentinel rather than an error.
func DecryptMemo(shared *btcec.PrivateKey, sealed []byte) string {
	if len(sealed) <= nonceSize {
		return UndecryptableMemo
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	key := memoKey(shared)
	memo, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &key)
	if !ok {
		return UndecryptableMemo
	}
	return string(memo)
}
