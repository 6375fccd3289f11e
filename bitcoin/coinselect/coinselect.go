// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package coinselect picks which UTXOs a spend.Builder should consume to
// cover an output amount plus fee, and estimates the vbyte size a
// Taproot transaction of a given shape will serialize to.
package coinselect

import (
	"errors"
	"math/big"
	"sort"

	"github.com/aaron-recompile/taproot/internal/numbers"
)

// ErrInsufficientBalance is returned when no subset of the candidate
// UTXOs, however selected, covers the requested amount.
var ErrInsufficientBalance = errors.New("coinselect: insufficient balance to cover target amount")

// rough per-item vbyte costs for a Taproot key-path spend, used only to
// estimate a fee before a transaction is actually built (spec §9 supplemental
// feature; the built transaction's real size always takes precedence).
var (
	headerSizeVBytes = big.NewInt(11)
	inputSizeVBytes  = big.NewInt(58) // outpoint + sequence + one schnorr-sig witness, vbyte-weighted
	outputSizeVBytes = big.NewInt(43) // amount + P2TR scriptPubKey
)

// UTXO is a candidate input: a transaction output available to spend.
type UTXO struct {
	TxID   string
	Vout   uint32
	Amount *big.Int // satoshis
}

// RoughTxSizeEstimate returns a rough vbyte size for a transaction with
// the given input/output counts, assuming every input is a Taproot
// key-path spend (one 64-byte witness item).
func RoughTxSizeEstimate(inputs, outputs int) *big.Int {
	size := new(big.Int).Set(headerSizeVBytes)
	size.Add(size, new(big.Int).Mul(inputSizeVBytes, big.NewInt(int64(inputs))))
	size.Add(size, new(big.Int).Mul(outputSizeVBytes, big.NewInt(int64(outputs))))
	return size
}

// Strategy selects which of the sorted candidates to use.
type Strategy int

const (
	// LargestFirst consumes UTXOs from largest to smallest until the
	// target is covered — fewest inputs, simplest to reason about.
	LargestFirst Strategy = iota
	// ClosestMatch picks the single smallest UTXO that alone covers the
	// target, falling back to LargestFirst if none does — minimizes
	// leftover change when a single UTXO is big enough.
	ClosestMatch
)

// Select picks a subset of utxos whose total amount is >= target,
// according to strategy. Returns the selected subset and its total.
func Select(utxos []UTXO, target *big.Int, strategy Strategy) ([]UTXO, *big.Int, error) {
	if len(utxos) == 0 {
		return nil, nil, ErrInsufficientBalance
	}

	sorted := append([]UTXO{}, utxos...)
	sort.Slice(sorted, func(i, j int) bool {
		return numbers.IsGreater(sorted[i].Amount, sorted[j].Amount)
	})

	if strategy == ClosestMatch {
		for i := len(sorted) - 1; i >= 0; i-- {
			if !numbers.IsLess(sorted[i].Amount, target) {
				return sorted[i : i+1], sorted[i].Amount, nil
			}
		}
	}

	selected := make([]UTXO, 0, len(sorted))
	total := big.NewInt(0)
	for _, u := range sorted {
		selected = append(selected, u)
		total.Add(total, u.Amount)
		if !numbers.IsLess(total, target) {
			return selected, total, nil
		}
	}

	return nil, nil, ErrInsufficientBalance
}

// SelectForSpend picks UTXOs to cover a payment of amount plus the
// estimated fee for spending len(selected)+extraInputs inputs into
// outputCount outputs at satoshiPerVByte, growing the input count until
// the rough fee estimate is itself covered (mirrors the teacher's
// PrepareUTXOs loop, generalized over a Strategy instead of a
// hard-coded rune/native amount function).
func SelectForSpend(utxos []UTXO, amount *big.Int, satoshiPerVByte *big.Int, extraInputs, outputCount int, strategy Strategy) ([]UTXO, *big.Int, *big.Int, error) {
	for want := 1; want <= len(utxos); want++ {
		fee := new(big.Int).Mul(RoughTxSizeEstimate(want+extraInputs, outputCount), satoshiPerVByte)

		target := new(big.Int).Add(amount, fee)

		selected, total, err := Select(utxos, target, strategy)
		if err != nil {
			if errors.Is(err, ErrInsufficientBalance) {
				continue
			}
			return nil, nil, nil, err
		}
		if len(selected) > want {
			continue
		}

		return selected, total, fee, nil
	}

	return nil, nil, nil, ErrInsufficientBalance
}
