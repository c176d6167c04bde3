// Copyright (c) 2023-2025 The txcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package keyring provides the key material and derivation primitives shared by
every other package in the module: the ordered public-key ring of an M-of-N
wallet, copayer identities, deterministic message signing, memo encryption and
address derivation along HD paths.

All functions are pure with respect to their inputs.  Nothing in this package
touches the network or global state; the chain network is always an explicit
parameter.
*/
package keyring
