// Copyright (c) 2023-2025 The txcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package coinselect turns a desired payment into a concrete, minimal-fee input
set.  Selection is a pure function of the spendable set, the transaction
spec and the policy: identical inputs always produce an identical selection
and fee.

The algorithm partitions the spendable set into "big" outputs, any one of
which can fund the payment alone, and "small" outputs that are accumulated
greedily, largest first, while heuristics watch the running fee.  If
combining small outputs becomes more expensive than spending one big output,
the accumulation is abandoned in favor of the single cheapest sufficient big
output.
*/
package coinselect

import (
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/coparty/txcoord/chain"
	"github.com/coparty/txcoord/txrules"
)

// Default policy knobs.
const (
	// DefaultSingleUTXOFactor scales the target amount when deciding
	// whether one output alone counts as "big".
	DefaultSingleUTXOFactor = 2.0

	// DefaultMaxFeeVsAmountFactor bounds the fee as a fraction of the
	// payment amount while small outputs are being accumulated.
	DefaultMaxFeeVsAmountFactor = 0.05

	// DefaultMaxFeeVsSingleInputFeeFactor bounds the accumulated fee
	// against the fee of a hypothetical single-big-input transaction.
	DefaultMaxFeeVsSingleInputFeeFactor = 5.0
)

// confirmationLadder is the sequence of minimum confirmation depths the
// selector attempts, most conservative first.
var confirmationLadder = []int32{6, 1, 0}

// Policy tunes a selection run.  The zero value is not useful; start from
// DefaultPolicy.
type Policy struct {
	// SingleUTXOFactor scales the target amount in the big/small
	// partition threshold.
	SingleUTXOFactor float64

	// MaxFeeVsAmountFactor and MaxFeeVsSingleInputFeeFactor are the
	// early-stop bounds applied while big outputs remain available as an
	// alternative.
	MaxFeeVsAmountFactor         float64
	MaxFeeVsSingleInputFeeFactor float64

	// MaxTxVirtualSize caps the transaction size in vbytes.
	MaxTxVirtualSize int

	// DustThreshold is the change value at or below which change is
	// folded into the fee.
	DustThreshold btcutil.Amount

	// ExcludeUnconfirmed drops the final, zero-confirmation rung of the
	// retry ladder.
	ExcludeUnconfirmed bool

	// ReplaceInputs marks a replace-by-fee selection: the listed inputs
	// belong to the transaction being replaced, bypass the locked and
	// confirmation filters, take selection priority, and at least one of
	// them must appear in the result.
	ReplaceInputs []chain.UTXO
}

// DefaultPolicy returns the standard selection policy.
func DefaultPolicy() *Policy {
	return &Policy{
		SingleUTXOFactor:             DefaultSingleUTXOFactor,
		MaxFeeVsAmountFactor:         DefaultMaxFeeVsAmountFactor,
		MaxFeeVsSingleInputFeeFactor: DefaultMaxFeeVsSingleInputFeeFactor,
		MaxTxVirtualSize:             txrules.MaxStandardTxSize,
		DustThreshold:                txrules.DustThreshold,
	}
}

// Result is a successful selection.
type Result struct {
	// Inputs is the selected input set, in selection order.
	Inputs []chain.UTXO

	// Fee is the concrete fee, dust folding included.
	Fee btcutil.Amount

	// TotalInput is the summed value of Inputs.
	TotalInput btcutil.Amount

	// Change is the change amount, zero when HasChange is false.
	Change    btcutil.Amount
	HasChange bool
}

// sizer precomputes the fee model for one selection run: a base transaction
// cost covering overhead and outputs (change slot included) plus a constant
// marginal cost per input of the wallet's script type.
type sizer struct {
	feePerKb    btcutil.Amount
	baseSize    int
	inputSize   int
	baseFee     btcutil.Amount
	feePerInput btcutil.Amount
}

func newSizer(adapter chain.Adapter, spec *chain.TxSpec) (*sizer, error) {
	zero := *spec
	zero.Inputs = nil
	zero.HasChange = true
	baseSize, err := adapter.EstimateSize(&zero)
	if err != nil {
		return nil, newError(ErrInternal, "cannot estimate base size", err)
	}

	one := zero
	one.Inputs = make([]chain.UTXO, 1)
	oneSize, err := adapter.EstimateSize(&one)
	if err != nil {
		return nil, newError(ErrInternal, "cannot estimate input size", err)
	}

	inputSize := oneSize - baseSize
	return &sizer{
		feePerKb:    spec.FeePerKb,
		baseSize:    baseSize,
		inputSize:   inputSize,
		baseFee:     txrules.FeeForSize(spec.FeePerKb, baseSize),
		feePerInput: txrules.FeeForSize(spec.FeePerKb, inputSize),
	}, nil
}

// sizeFor returns the virtual size of a transaction spending n inputs.
func (s *sizer) sizeFor(n int) int {
	return s.baseSize + n*s.inputSize
}

// feeFor returns the fee for a transaction spending n inputs.
func (s *sizer) feeFor(n int) btcutil.Amount {
	return txrules.FeeForSize(s.feePerKb, s.sizeFor(n))
}

// Select picks an input subset of utxos funding the spec's outputs at the
// spec's fee rate, and returns the selection together with its concrete fee
// and change.  The whole selection is attempted once per confirmation-depth
// rung, most conservative first, stopping at the first success.  Failures
// are classified per the funds taxonomy of this package's error codes.
func Select(adapter chain.Adapter, spec *chain.TxSpec, utxos []chain.UTXO,
	policy *Policy) (*Result, error) {

	if policy == nil {
		policy = DefaultPolicy()
	}

	var target btcutil.Amount
	for i := range spec.Outputs {
		target += spec.Outputs[i].Amount
	}
	if target <= 0 {
		return nil, newError(ErrInternal, "selection target is not positive", nil)
	}

	sz, err := newSizer(adapter, spec)
	if err != nil {
		return nil, err
	}

	replacing := make(map[string]struct{}, len(policy.ReplaceInputs))
	for i := range policy.ReplaceInputs {
		replacing[policy.ReplaceInputs[i].Key()] = struct{}{}
	}

	ladder := confirmationLadder
	if policy.ExcludeUnconfirmed {
		ladder = ladder[:len(ladder)-1]
	}

	var (
		lastErr error
		prevKey string
	)
	for _, minConf := range ladder {
		candidates := eligible(utxos, minConf, replacing)
		key := candidateKey(candidates)
		if key == prevKey && lastErr != nil {
			log.Debugf("Skipping minconf=%d rung: identical candidate set", minConf)
			continue
		}
		prevKey = key

		log.Debugf("Selecting among %d utxos at minconf=%d for target %v",
			len(candidates), minConf, target)
		res, err := attempt(adapter, candidates, target, sz, policy, replacing)
		if err == nil {
			return res, nil
		}
		lastErr = err
	}

	return nil, classifyLocked(adapter, utxos, target, lastErr)
}

// eligible filters the spendable set for one ladder rung.  Replacement
// inputs bypass the locked and confirmation filters.
func eligible(utxos []chain.UTXO, minConf int32,
	replacing map[string]struct{}) []chain.UTXO {

	out := make([]chain.UTXO, 0, len(utxos))
	for i := range utxos {
		u := utxos[i]
		if _, isReplace := replacing[u.Key()]; isReplace {
			out = append(out, u)
			continue
		}
		if u.Locked || u.Confirmations < minConf {
			continue
		}
		out = append(out, u)
	}
	return out
}

func candidateKey(utxos []chain.UTXO) string {
	key := ""
	for i := range utxos {
		key += utxos[i].Key() + ";"
	}
	return key
}

// classifyLocked upgrades an insufficient-funds failure to ErrUTXOsLocked
// when the shortfall is caused by outputs reserved elsewhere.
func classifyLocked(adapter chain.Adapter, utxos []chain.UTXO,
	target btcutil.Amount, err error) error {

	code, ok := Code(err)
	if !ok || code != ErrInsufficientFunds {
		return err
	}
	var unlocked, total btcutil.Amount
	for i := range utxos {
		total += utxos[i].Satoshis
		if !utxos[i].Locked {
			unlocked += utxos[i].Satoshis
		}
	}
	if total >= target && unlocked < target {
		return newError(ErrUTXOsLocked,
			"enough funds exist but are reserved by other proposals", err)
	}
	return err
}

// attempt runs one full selection over a fixed candidate set.
func attempt(adapter chain.Adapter, candidates []chain.UTXO,
	target btcutil.Amount, sz *sizer, policy *Policy,
	replacing map[string]struct{}) (*Result, error) {

	totalAvailable := adapter.TotalizeUTXOs(candidates)
	if totalAvailable < target {
		str := fmt.Sprintf("available %v is below target %v",
			totalAvailable, target)
		return nil, newError(ErrInsufficientFunds, str, nil)
	}

	// Anything that can fund the payment alone, with room to spare, is
	// big; everything else is accumulated.
	bigThreshold := btcutil.Amount(policy.SingleUTXOFactor*float64(target)) +
		sz.baseFee + sz.feePerInput

	var bigs, smalls []chain.UTXO
	for i := range candidates {
		if candidates[i].Satoshis > bigThreshold {
			bigs = append(bigs, candidates[i])
		} else {
			smalls = append(smalls, candidates[i])
		}
	}
	sort.SliceStable(bigs, func(i, j int) bool {
		return bigs[i].Satoshis < bigs[j].Satoshis
	})

	// Replacement inputs take priority over size; the rest go largest
	// first.
	isPinned := func(u *chain.UTXO) bool {
		_, ok := replacing[u.Key()]
		return ok
	}
	sort.SliceStable(smalls, func(i, j int) bool {
		pi, pj := isPinned(&smalls[i]), isPinned(&smalls[j])
		if pi != pj {
			return pi
		}
		return smalls[i].Satoshis > smalls[j].Satoshis
	})

	log.Debugf("Partitioned %d candidates: %d big (threshold %v), %d small",
		len(candidates), len(bigs), bigThreshold, len(smalls))

	var (
		selected     []chain.UTXO
		total        btcutil.Amount
		netTotal     btcutil.Amount
		sizeExceeded bool
		success      bool
	)
	for i := range smalls {
		u := smalls[i]
		netValue := u.Satoshis - sz.feePerInput
		if netValue <= 0 {
			log.Tracef("Skipping %s: %v does not cover its own fee cost",
				u.Key(), u.Satoshis)
			continue
		}

		if sz.sizeFor(len(selected)+1) > policy.MaxTxVirtualSize {
			sizeExceeded = true
			break
		}

		selected = append(selected, u)
		total += u.Satoshis
		netTotal += netValue

		if len(bigs) > 0 {
			fee := sz.feeFor(len(selected))
			singleInputFee := sz.baseFee + sz.feePerInput
			if float64(fee) > policy.MaxFeeVsAmountFactor*float64(target) ||
				float64(fee) > policy.MaxFeeVsSingleInputFeeFactor*
					float64(singleInputFee) {

				log.Debugf("Abandoning accumulation at %d inputs: "+
					"fee %v breaches policy bounds", len(selected), fee)
				break
			}
		}

		if netTotal >= target+sz.baseFee {
			success = true
			break
		}
	}

	if success {
		return finishSelection(selected, total, target, sz, policy, replacing)
	}

	// Fall back to the single cheapest sufficient big output.  A
	// replacement selection cannot use the fallback unless the big output
	// itself belongs to the replaced transaction, since dropping every
	// pinned input would orphan the replacement.
	for i := range bigs {
		u := bigs[i]
		if u.Satoshis < target+sz.baseFee+sz.feePerInput {
			continue
		}
		if len(replacing) > 0 && !isPinned(&u) {
			continue
		}
		log.Debugf("Falling back to single big input %s of %v", u.Key(), u.Satoshis)
		return finishSelection([]chain.UTXO{u}, u.Satoshis, target, sz,
			policy, replacing)
	}

	if sizeExceeded {
		return nil, newError(ErrTxSizeExceeded,
			"no input combination stays under the size cap", nil)
	}
	str := fmt.Sprintf("available %v cannot cover target %v plus fees",
		totalAvailable, target)
	return nil, newError(ErrInsufficientFundsForFee, str, nil)
}

// finishSelection computes the concrete fee for a chosen input set, folds
// dust change into the fee, and enforces replacement retention.
func finishSelection(selected []chain.UTXO, total, target btcutil.Amount,
	sz *sizer, policy *Policy, replacing map[string]struct{}) (*Result, error) {

	fee := sz.feeFor(len(selected))
	if total < target+fee {
		str := fmt.Sprintf("selected %v cannot cover target %v plus fee %v",
			total, target, fee)
		return nil, newError(ErrInsufficientFundsForFee, str, nil)
	}

	if len(replacing) > 0 {
		retained := false
		for i := range selected {
			if _, ok := replacing[selected[i].Key()]; ok {
				retained = true
				break
			}
		}
		if !retained {
			return nil, newError(ErrNoReplaceInput,
				"replacement retains no input of the replaced transaction", nil)
		}
	}

	res := &Result{
		Inputs:     selected,
		TotalInput: total,
		Fee:        fee,
	}
	change := total - target - fee
	switch {
	case change == 0:
		// Exact match, nothing to return.
	case change <= policy.DustThreshold:
		// Dust change is folded into the fee rather than creating an
		// uneconomical output.
		log.Debugf("Folding dust change %v into fee", change)
		res.Fee += change
	default:
		res.Change = change
		res.HasChange = true
	}

	log.Debugf("Selected %d inputs totaling %v, fee %v, change %v",
		len(res.Inputs), res.TotalInput, res.Fee, res.Change)
	return res, nil
}
