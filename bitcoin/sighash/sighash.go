// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package sighash computes BIP-341 Taproot signature hashes for both
// key-path and script-path spends.
package sighash

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/aaron-recompile/taproot/bitcoin/script"
	"github.com/aaron-recompile/taproot/bitcoin/tagged"
	"github.com/aaron-recompile/taproot/bitcoin/txn"
)

// ErrAmountMismatch is returned when the supplied per-input amounts or
// scriptPubKeys do not match the transaction's input count (spec §4.6,
// BuildError::AmountMismatch).
var ErrAmountMismatch = errors.New("sighash: amounts/scriptpubkeys count does not match inputs")

const (
	epochByte    = 0x00
	hashTypeByte = 0x00 // SIGHASH_DEFAULT
	keyVersion   = 0x00
	noCodeSepPos = 0xFFFFFFFF
)

// Prevout describes the UTXO being spent by one input, as required to
// compute sha_amounts/sha_scriptpubkeys (spec §4.6).
type Prevout struct {
	Amount       int64
	ScriptPubKey []byte
}

// ScriptPathExtension carries the additional fields mixed into a
// script-path sighash (spec §4.6): the leaf being spent.
type ScriptPathExtension struct {
	LeafHash [32]byte
}

// TaprootSighash computes the BIP-341 SIGHASH_DEFAULT digest for
// spending input inputIndex of tx, given the full set of prevouts for
// every input (amounts and scriptPubKeys must match tx.Inputs 1:1). Pass
// a non-nil ext for a script-path spend; nil selects key-path.
func TaprootSighash(tx *txn.Tx, inputIndex int, prevouts []Prevout, ext *ScriptPathExtension) ([32]byte, error) {
	if len(prevouts) != len(tx.Inputs) {
		return [32]byte{}, fmt.Errorf("%w: have %d inputs, %d prevouts", ErrAmountMismatch, len(tx.Inputs), len(prevouts))
	}
	if inputIndex < 0 || inputIndex >= len(tx.Inputs) {
		return [32]byte{}, fmt.Errorf("sighash: input index %d out of range", inputIndex)
	}

	shaPrevouts := hashPrevouts(tx)
	shaAmounts := hashAmounts(prevouts)
	shaScriptPubKeys := hashScriptPubKeys(prevouts)
	shaSequences := hashSequences(tx)
	shaOutputs := hashOutputs(tx)

	hasAnnex := false // annex is out of scope for this module (spec never requires it)
	spendType := byte(0)
	if ext != nil {
		spendType |= 2
	}
	if hasAnnex {
		spendType |= 1
	}

	var buf []byte
	buf = append(buf, epochByte, hashTypeByte)

	var versionBytes [4]byte
	binary.LittleEndian.PutUint32(versionBytes[:], uint32(tx.Version))
	buf = append(buf, versionBytes[:]...)

	var lockTimeBytes [4]byte
	binary.LittleEndian.PutUint32(lockTimeBytes[:], tx.LockTime)
	buf = append(buf, lockTimeBytes[:]...)

	buf = append(buf, shaPrevouts[:]...)
	buf = append(buf, shaAmounts[:]...)
	buf = append(buf, shaScriptPubKeys[:]...)
	buf = append(buf, shaSequences[:]...)
	buf = append(buf, shaOutputs[:]...)

	buf = append(buf, spendType)

	var inputIndexBytes [4]byte
	binary.LittleEndian.PutUint32(inputIndexBytes[:], uint32(inputIndex))
	buf = append(buf, inputIndexBytes[:]...)

	if ext != nil {
		buf = append(buf, ext.LeafHash[:]...)
		buf = append(buf, keyVersion)

		var codeSepBytes [4]byte
		binary.LittleEndian.PutUint32(codeSepBytes[:], noCodeSepPos)
		buf = append(buf, codeSepBytes[:]...)
	}

	return tagged.Hash("TapSighash", buf), nil
}

func hashPrevouts(tx *txn.Tx) [32]byte {
	var buf []byte
	for _, in := range tx.Inputs {
		buf = append(buf, in.PreviousOutPoint.TxID[:]...)
		var voutBytes [4]byte
		binary.LittleEndian.PutUint32(voutBytes[:], in.PreviousOutPoint.Vout)
		buf = append(buf, voutBytes[:]...)
	}
	return sha256.Sum256(buf)
}

func hashAmounts(prevouts []Prevout) [32]byte {
	var buf []byte
	for _, p := range prevouts {
		var amountBytes [8]byte
		binary.LittleEndian.PutUint64(amountBytes[:], uint64(p.Amount))
		buf = append(buf, amountBytes[:]...)
	}
	return sha256.Sum256(buf)
}

func hashScriptPubKeys(prevouts []Prevout) [32]byte {
	var buf []byte
	for _, p := range prevouts {
		buf = append(buf, script.CompactSize(uint64(len(p.ScriptPubKey)))...)
		buf = append(buf, p.ScriptPubKey...)
	}
	return sha256.Sum256(buf)
}

func hashSequences(tx *txn.Tx) [32]byte {
	var buf []byte
	for _, in := range tx.Inputs {
		var seqBytes [4]byte
		binary.LittleEndian.PutUint32(seqBytes[:], in.Sequence)
		buf = append(buf, seqBytes[:]...)
	}
	return sha256.Sum256(buf)
}

func hashOutputs(tx *txn.Tx) [32]byte {
	var buf []byte
	for _, out := range tx.Outputs {
		var amountBytes [8]byte
		binary.LittleEndian.PutUint64(amountBytes[:], uint64(out.Amount))
		buf = append(buf, amountBytes[:]...)

		buf = append(buf, script.CompactSize(uint64(len(out.ScriptPubKey)))...)
		buf = append(buf, out.ScriptPubKey...)
	}
	return sha256.Sum256(buf)
}
