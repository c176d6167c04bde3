// Copyright (c) 2023-2025 The txcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/coparty/txcoord/keyring"
	"github.com/coparty/txcoord/txrules"
	"github.com/coparty/txcoord/txsizes"
)

// rbfSequence signals replace-by-fee per BIP125.
const rbfSequence uint32 = wire.MaxTxInSequenceNum - 2

// utxoAdapter implements Adapter for the UTXO chain family.
type utxoAdapter struct {
	chain Chain
}

func (a *utxoAdapter) Chain() Chain           { return a.chain }
func (a *utxoAdapter) IsUTXOModel() bool      { return true }
func (a *utxoAdapter) SupportsMultisig() bool { return true }

// outputScript resolves one requested output into a concrete pkScript.
func outputScript(out *Output, net Network) ([]byte, error) {
	if len(out.Script) > 0 {
		return out.Script, nil
	}
	addr, err := btcutil.DecodeAddress(out.Address, net.Params())
	if err != nil {
		str := fmt.Sprintf("cannot decode address %q", out.Address)
		return nil, newError(ErrInvalidAddress, str, err)
	}
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, newError(ErrTxAssembly, "cannot build output script", err)
	}
	return script, nil
}

// normalizeOrder revalidates a stored output permutation against the actual
// output count: out-of-range and duplicate entries are dropped, and missing
// slots are appended in ascending order.  The result is always a permutation
// of [0, n).
func normalizeOrder(order []int, n int) []int {
	normalized := make([]int, 0, n)
	seen := make(map[int]struct{}, n)
	for _, idx := range order {
		if idx < 0 || idx >= n {
			continue
		}
		if _, ok := seen[idx]; ok {
			continue
		}
		seen[idx] = struct{}{}
		normalized = append(normalized, idx)
	}
	for i := 0; i < n; i++ {
		if _, ok := seen[i]; !ok {
			normalized = append(normalized, i)
		}
	}
	return normalized
}

// realizedOutputs returns the spec's outputs, change included, in the
// privacy-shuffled order they appear in the transaction.
func realizedOutputs(spec *TxSpec) []Output {
	outs := make([]Output, 0, len(spec.Outputs)+1)
	outs = append(outs, spec.Outputs...)
	if spec.HasChange {
		outs = append(outs, Output{
			Address: spec.ChangeAddress,
			Amount:  spec.ChangeAmount,
		})
	}
	order := normalizeOrder(spec.OutputOrder, len(outs))
	shuffled := make([]Output, len(outs))
	for pos, idx := range order {
		shuffled[pos] = outs[idx]
	}
	return shuffled
}

// EstimateSize returns the worst-case virtual size of the spec's transaction.
func (a *utxoAdapter) EstimateSize(spec *TxSpec) (int, error) {
	outputSizes := make([]int, 0, len(spec.Outputs))
	for i := range spec.Outputs {
		script, err := outputScript(&spec.Outputs[i], spec.Network)
		if err != nil {
			return 0, err
		}
		outputSizes = append(outputSizes,
			8+wire.VarIntSerializeSize(uint64(len(script)))+len(script))
	}
	return txsizes.EstimateVirtualSize(spec.ScriptType, spec.M, spec.N,
		len(spec.Inputs), outputSizes, spec.HasChange), nil
}

// EstimateFee returns the fee implied by the spec's size and fee rate.
func (a *utxoAdapter) EstimateFee(spec *TxSpec) (btcutil.Amount, error) {
	size, err := a.EstimateSize(spec)
	if err != nil {
		return 0, err
	}
	return txrules.FeeForSize(spec.FeePerKb, size), nil
}

// buildMsgTx lowers the spec into an unsigned wire transaction.
func buildMsgTx(spec *TxSpec) (*wire.MsgTx, error) {
	tx := wire.NewMsgTx(wire.TxVersion)

	sequence := uint32(wire.MaxTxInSequenceNum)
	if spec.EnableRBF {
		sequence = rbfSequence
	}
	for i := range spec.Inputs {
		in := &spec.Inputs[i]
		prevHash, err := chainhash.NewHashFromStr(in.TxID)
		if err != nil {
			str := fmt.Sprintf("malformed input txid %q", in.TxID)
			return nil, newError(ErrInvalidInput, str, err)
		}
		txIn := wire.NewTxIn(wire.NewOutPoint(prevHash, in.Vout), nil, nil)
		txIn.Sequence = sequence
		tx.AddTxIn(txIn)
	}

	for _, out := range realizedOutputs(spec) {
		script, err := outputScript(&out, spec.Network)
		if err != nil {
			return nil, err
		}
		tx.AddTxOut(wire.NewTxOut(int64(out.Amount), script))
	}

	return tx, nil
}

// inputSignature is one verified copayer signature for one input.
type inputSignature struct {
	pub *btcec.PublicKey
	sig []byte
}

// UTXOTx is a transaction under construction for the UTXO family.  It
// accumulates per-input copayer signatures until a quorum is reached, at
// which point the unlocking scripts are assembled in place.
type UTXOTx struct {
	msgTx      *wire.MsgTx
	network    Network
	m          int
	scriptType keyring.ScriptType

	// redeemScripts holds the per-input multisig redeem (or witness)
	// script.  Nil entries for single-key script types.
	redeemScripts [][]byte

	// inputPubs holds the per-input derived public keys of the whole
	// ring, used to order collected signatures canonically.
	inputPubs [][]*btcec.PublicKey

	sigs     [][]inputSignature
	complete bool
}

// TxID returns the id of the current serialization.  Before signing this is
// the normalized id of the unsigned transaction.
func (t *UTXOTx) TxID() string {
	return t.msgTx.TxHash().String()
}

// Serialize returns the raw transaction bytes.
func (t *UTXOTx) Serialize() ([]byte, error) {
	var b bytes.Buffer
	if err := t.msgTx.Serialize(&b); err != nil {
		return nil, newError(ErrTxAssembly, "cannot serialize transaction", err)
	}
	return b.Bytes(), nil
}

// Complete reports whether every input carries a full quorum of signatures.
func (t *UTXOTx) Complete() bool {
	return t.complete
}

// MsgTx exposes the underlying wire transaction.
func (t *UTXOTx) MsgTx() *wire.MsgTx {
	return t.msgTx
}

// BuildTx assembles the spec into an unsigned UTXO transaction.
func (a *utxoAdapter) BuildTx(spec *TxSpec, ring *keyring.Ring) (Tx, error) {
	msgTx, err := buildMsgTx(spec)
	if err != nil {
		return nil, err
	}

	t := &UTXOTx{
		msgTx:         msgTx,
		network:       spec.Network,
		m:             spec.M,
		scriptType:    spec.ScriptType,
		redeemScripts: make([][]byte, len(spec.Inputs)),
		inputPubs:     make([][]*btcec.PublicKey, len(spec.Inputs)),
		sigs:          make([][]inputSignature, len(spec.Inputs)),
	}
	for i := range spec.Inputs {
		pubs, err := ring.DerivePubKeys(spec.Inputs[i].Path)
		if err != nil {
			return nil, err
		}
		t.inputPubs[i] = pubs
		if spec.ScriptType.Multisig() {
			script, err := keyring.MultiSigScript(pubs, spec.M,
				spec.Network.Params())
			if err != nil {
				return nil, err
			}
			t.redeemScripts[i] = script
		}
	}
	return t, nil
}

// prevOutFetcher builds the previous-output view the segwit and taproot
// sighash algorithms require.
func prevOutFetcher(spec *TxSpec, tx *wire.MsgTx) (txscript.PrevOutputFetcher, error) {
	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for i := range spec.Inputs {
		in := &spec.Inputs[i]
		script, err := outputScript(&Output{Address: in.Address}, spec.Network)
		if err != nil {
			return nil, err
		}
		fetcher.AddPrevOut(tx.TxIn[i].PreviousOutPoint, &wire.TxOut{
			Value:    int64(in.Satoshis),
			PkScript: script,
		})
	}
	return fetcher, nil
}

// SignatureHashes returns the per-input digests a copayer signs for the
// spec's canonical unsigned transaction.
func (a *utxoAdapter) SignatureHashes(spec *TxSpec, ring *keyring.Ring) ([][]byte, error) {
	tx, err := buildMsgTx(spec)
	if err != nil {
		return nil, err
	}
	fetcher, err := prevOutFetcher(spec, tx)
	if err != nil {
		return nil, err
	}
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)

	hashes := make([][]byte, len(spec.Inputs))
	for i := range spec.Inputs {
		in := &spec.Inputs[i]
		pubs, err := ring.DerivePubKeys(in.Path)
		if err != nil {
			return nil, err
		}

		var hash []byte
		switch spec.ScriptType {
		case keyring.ScriptP2SH:
			script, err := keyring.MultiSigScript(pubs, spec.M,
				spec.Network.Params())
			if err != nil {
				return nil, err
			}
			hash, err = txscript.CalcSignatureHash(script,
				txscript.SigHashAll, tx, i)
			if err != nil {
				return nil, newError(ErrTxAssembly,
					"cannot compute sighash", err)
			}

		case keyring.ScriptP2WSH:
			script, err := keyring.MultiSigScript(pubs, spec.M,
				spec.Network.Params())
			if err != nil {
				return nil, err
			}
			hash, err = txscript.CalcWitnessSigHash(script, sigHashes,
				txscript.SigHashAll, tx, i, int64(in.Satoshis))
			if err != nil {
				return nil, newError(ErrTxAssembly,
					"cannot compute witness sighash", err)
			}

		case keyring.ScriptP2WPKH:
			// BIP143 uses the P2PKH script form of the key hash as
			// the script code.
			scriptCode, err := payToPubKeyHashScript(pubs[0])
			if err != nil {
				return nil, err
			}
			hash, err = txscript.CalcWitnessSigHash(scriptCode, sigHashes,
				txscript.SigHashAll, tx, i, int64(in.Satoshis))
			if err != nil {
				return nil, newError(ErrTxAssembly,
					"cannot compute witness sighash", err)
			}

		case keyring.ScriptP2TR:
			var err error
			hash, err = txscript.CalcTaprootSignatureHash(sigHashes,
				txscript.SigHashDefault, tx, i, fetcher)
			if err != nil {
				return nil, newError(ErrTxAssembly,
					"cannot compute taproot sighash", err)
			}

		default:
			scriptCode, err := payToPubKeyHashScript(pubs[0])
			if err != nil {
				return nil, err
			}
			hash, err = txscript.CalcSignatureHash(scriptCode,
				txscript.SigHashAll, tx, i)
			if err != nil {
				return nil, newError(ErrTxAssembly,
					"cannot compute sighash", err)
			}
		}
		hashes[i] = hash
	}
	return hashes, nil
}

func payToPubKeyHashScript(pub *btcec.PublicKey) ([]byte, error) {
	script, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).AddOp(txscript.OP_HASH160).
		AddData(btcutil.Hash160(pub.SerializeCompressed())).
		AddOp(txscript.OP_EQUALVERIFY).AddOp(txscript.OP_CHECKSIG).
		Script()
	if err != nil {
		return nil, newError(ErrTxAssembly, "cannot build script code", err)
	}
	return script, nil
}

// verifyInputSig checks one detached signature against one sighash digest.
func verifyInputSig(scriptType keyring.ScriptType, pub *btcec.PublicKey,
	sig, hash []byte) bool {

	if scriptType == keyring.ScriptP2TR {
		parsed, err := schnorr.ParseSignature(sig)
		if err != nil {
			return false
		}
		// Key-spend signatures commit to the tweaked output key.
		return parsed.Verify(hash, txscript.ComputeTaprootKeyNoScript(pub))
	}
	parsed, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return false
	}
	return parsed.Verify(hash, pub)
}

// AddSignatures attaches one copayer's detached input signatures.  The
// operation is all-or-nothing: a count mismatch or any verification failure
// leaves the transaction untouched.
func (a *utxoAdapter) AddSignatures(tx Tx, spec *TxSpec, ring *keyring.Ring,
	pubs []*btcec.PublicKey, sigs [][]byte) error {

	t, ok := tx.(*UTXOTx)
	if !ok {
		return newError(ErrTxAssembly, "transaction was not built by this adapter", nil)
	}
	if len(sigs) != len(t.msgTx.TxIn) {
		str := fmt.Sprintf("got %d signatures for %d inputs",
			len(sigs), len(t.msgTx.TxIn))
		return newError(ErrSignatureCount, str, nil)
	}
	if len(pubs) != len(t.msgTx.TxIn) {
		str := fmt.Sprintf("got %d pubkeys for %d inputs",
			len(pubs), len(t.msgTx.TxIn))
		return newError(ErrSignatureCount, str, nil)
	}

	hashes, err := a.SignatureHashes(spec, ring)
	if err != nil {
		return err
	}
	for i := range sigs {
		if !verifyInputSig(t.scriptType, pubs[i], sigs[i], hashes[i]) {
			str := fmt.Sprintf("signature for input %d does not verify", i)
			return newError(ErrSignature, str, nil)
		}
		// A repeated signer must not count towards the quorum twice.
		for _, existing := range t.sigs[i] {
			if existing.pub.IsEqual(pubs[i]) {
				str := fmt.Sprintf("input %d already carries a "+
					"signature by this key", i)
				return newError(ErrSignature, str, nil)
			}
		}
	}

	for i := range sigs {
		t.sigs[i] = append(t.sigs[i], inputSignature{pub: pubs[i], sig: sigs[i]})
	}

	if t.quorumReached() {
		if err := t.finalize(); err != nil {
			return err
		}
	}
	return nil
}

func (t *UTXOTx) quorumReached() bool {
	for i := range t.sigs {
		if len(t.sigs[i]) < t.m {
			return false
		}
	}
	return len(t.sigs) > 0
}

// orderedSigs returns the first m collected signatures for input i, in the
// pubkey order of the input's multisig script.  OP_CHECKMULTISIG requires
// signatures to appear in script key order.
func (t *UTXOTx) orderedSigs(i int) [][]byte {
	type keyed struct {
		pos int
		sig []byte
	}
	canonical := keyring.SortedPubKeys(t.inputPubs[i])
	position := make(map[string]int, len(canonical))
	for pos, pub := range canonical {
		position[string(pub.SerializeCompressed())] = pos
	}

	collected := make([]keyed, 0, len(t.sigs[i]))
	seen := make(map[string]struct{}, len(t.sigs[i]))
	for _, is := range t.sigs[i] {
		key := string(is.pub.SerializeCompressed())
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		collected = append(collected, keyed{pos: position[key], sig: is.sig})
	}
	for a := 1; a < len(collected); a++ {
		for b := a; b > 0 && collected[b].pos < collected[b-1].pos; b-- {
			collected[b], collected[b-1] = collected[b-1], collected[b]
		}
	}

	ordered := make([][]byte, 0, t.m)
	for _, k := range collected {
		if len(ordered) == t.m {
			break
		}
		ordered = append(ordered, k.sig)
	}
	return ordered
}

// finalize assembles the unlocking scripts once every input has a quorum of
// signatures.
func (t *UTXOTx) finalize() error {
	for i, txIn := range t.msgTx.TxIn {
		switch t.scriptType {
		case keyring.ScriptP2SH:
			builder := txscript.NewScriptBuilder()
			// Extra OP_FALSE consumed by the CHECKMULTISIG
			// off-by-one.
			builder.AddOp(txscript.OP_FALSE)
			for _, sig := range t.orderedSigs(i) {
				builder.AddData(append(sig, byte(txscript.SigHashAll)))
			}
			builder.AddData(t.redeemScripts[i])
			script, err := builder.Script()
			if err != nil {
				return newError(ErrTxAssembly,
					"cannot assemble multisig script", err)
			}
			txIn.SignatureScript = script

		case keyring.ScriptP2WSH:
			witness := wire.TxWitness{nil}
			for _, sig := range t.orderedSigs(i) {
				witness = append(witness,
					append(sig, byte(txscript.SigHashAll)))
			}
			witness = append(witness, t.redeemScripts[i])
			txIn.Witness = witness

		case keyring.ScriptP2WPKH:
			sig := t.orderedSigs(i)[0]
			txIn.Witness = wire.TxWitness{
				append(sig, byte(txscript.SigHashAll)),
				t.inputPubs[i][0].SerializeCompressed(),
			}

		case keyring.ScriptP2TR:
			txIn.Witness = wire.TxWitness{t.orderedSigs(i)[0]}

		default:
			sig := t.orderedSigs(i)[0]
			script, err := txscript.NewScriptBuilder().
				AddData(append(sig, byte(txscript.SigHashAll))).
				AddData(t.inputPubs[i][0].SerializeCompressed()).
				Script()
			if err != nil {
				return newError(ErrTxAssembly,
					"cannot assemble signature script", err)
			}
			txIn.SignatureScript = script
		}
	}
	t.complete = true
	return nil
}

// ValidateAddress checks that an address parses and belongs to the given
// network.
func (a *utxoAdapter) ValidateAddress(addr string, net Network) error {
	decoded, err := btcutil.DecodeAddress(addr, net.Params())
	if err != nil {
		str := fmt.Sprintf("cannot decode address %q", addr)
		return newError(ErrInvalidAddress, str, err)
	}
	if !decoded.IsForNet(net.Params()) {
		str := fmt.Sprintf("address %q is not valid on %v", addr, net)
		return newError(ErrInvalidAddress, str, nil)
	}
	return nil
}

// CheckDust rejects outputs at or below the dust limit.  Data carriers are
// exempt.
func (a *utxoAdapter) CheckDust(out *Output) error {
	if len(out.Script) > 0 &&
		txscript.GetScriptClass(out.Script) == txscript.NullDataTy {
		return nil
	}
	if out.Amount <= txrules.DustThreshold {
		str := fmt.Sprintf("output of %v is below the dust limit", out.Amount)
		return newError(ErrDustOutput, str, nil)
	}
	return nil
}

// CheckScriptOutput rejects raw script outputs that are not OP_RETURN data
// carriers.
func (a *utxoAdapter) CheckScriptOutput(out *Output) error {
	if len(out.Script) == 0 {
		return nil
	}
	if txscript.GetScriptClass(out.Script) != txscript.NullDataTy {
		return newError(ErrScriptOutput,
			"raw script outputs must be OP_RETURN data carriers", nil)
	}
	return nil
}

// TotalizeUTXOs sums the value of the given outputs.
func (a *utxoAdapter) TotalizeUTXOs(utxos []UTXO) btcutil.Amount {
	var total btcutil.Amount
	for i := range utxos {
		total += utxos[i].Satoshis
	}
	return total
}
