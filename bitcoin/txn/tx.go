// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package txn implements the native segwit transaction wire codec: no
// wire.MsgTx, no txscript — this is the layer the rest of this module
// exists to own directly.
package txn

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"

	"github.com/aaron-recompile/taproot/bitcoin/script"
	"github.com/aaron-recompile/taproot/internal/reverse"
)

const (
	segwitMarker = 0x00
	segwitFlag   = 0x01
)

// ErrTruncated is returned when a serialized transaction ends before a
// required field has been fully read.
var ErrTruncated = errors.New("txn: truncated")

// OutPoint references a previous transaction's output.
type OutPoint struct {
	TxID [32]byte // internal (non-reversed) byte order, matches wire serialization
	Vout uint32
}

// TxIn is one transaction input.
type TxIn struct {
	PreviousOutPoint OutPoint
	ScriptSig        []byte
	Sequence         uint32
	Witness          [][]byte
}

// TxOut is one transaction output.
type TxOut struct {
	Amount       int64
	ScriptPubKey []byte
}

// Tx is an immutable-once-built Bitcoin transaction, witnesses parallel
// to inputs (spec §3). Serialize writes the segwit marker and flag only
// when at least one input carries a witness.
type Tx struct {
	Version  int32
	Inputs   []TxIn
	Outputs  []TxOut
	LockTime uint32
}

// hasWitness reports whether any input carries a non-empty witness stack.
func (tx *Tx) hasWitness() bool {
	for _, in := range tx.Inputs {
		if len(in.Witness) > 0 {
			return true
		}
	}
	return false
}

// Serialize returns the full segwit wire encoding, including marker/flag
// and witness data whenever any input has a witness stack.
func (tx *Tx) Serialize() []byte {
	if tx.hasWitness() {
		return tx.serialize(true)
	}
	return tx.serialize(false)
}

// SerializeNoWitness returns the legacy (non-witness) encoding used as
// the txid preimage, regardless of whether witnesses are present.
func (tx *Tx) SerializeNoWitness() []byte {
	return tx.serialize(false)
}

func (tx *Tx) serialize(withWitness bool) []byte {
	var buf []byte

	var versionBytes [4]byte
	binary.LittleEndian.PutUint32(versionBytes[:], uint32(tx.Version))
	buf = append(buf, versionBytes[:]...)

	if withWitness {
		buf = append(buf, segwitMarker, segwitFlag)
	}

	buf = append(buf, script.CompactSize(uint64(len(tx.Inputs)))...)
	for _, in := range tx.Inputs {
		buf = append(buf, in.PreviousOutPoint.TxID[:]...)

		var voutBytes [4]byte
		binary.LittleEndian.PutUint32(voutBytes[:], in.PreviousOutPoint.Vout)
		buf = append(buf, voutBytes[:]...)

		buf = append(buf, script.CompactSize(uint64(len(in.ScriptSig)))...)
		buf = append(buf, in.ScriptSig...)

		var seqBytes [4]byte
		binary.LittleEndian.PutUint32(seqBytes[:], in.Sequence)
		buf = append(buf, seqBytes[:]...)
	}

	buf = append(buf, script.CompactSize(uint64(len(tx.Outputs)))...)
	for _, out := range tx.Outputs {
		var amountBytes [8]byte
		binary.LittleEndian.PutUint64(amountBytes[:], uint64(out.Amount))
		buf = append(buf, amountBytes[:]...)

		buf = append(buf, script.CompactSize(uint64(len(out.ScriptPubKey)))...)
		buf = append(buf, out.ScriptPubKey...)
	}

	if withWitness {
		for _, in := range tx.Inputs {
			buf = append(buf, script.CompactSize(uint64(len(in.Witness)))...)
			for _, item := range in.Witness {
				buf = append(buf, script.CompactSize(uint64(len(item)))...)
				buf = append(buf, item...)
			}
		}
	}

	var lockTimeBytes [4]byte
	binary.LittleEndian.PutUint32(lockTimeBytes[:], tx.LockTime)
	buf = append(buf, lockTimeBytes[:]...)

	return buf
}

// Deserialize parses a full transaction from wire bytes, auto-detecting
// the segwit marker/flag.
func Deserialize(data []byte) (*Tx, error) {
	cur := &cursor{data: data}

	versionU32, err := cur.readUint32()
	if err != nil {
		return nil, err
	}
	tx := &Tx{Version: int32(versionU32)}

	withWitness := false
	if len(cur.data) >= cur.pos+2 && cur.data[cur.pos] == segwitMarker && cur.data[cur.pos+1] == segwitFlag {
		withWitness = true
		cur.pos += 2
	}

	numInputs, err := cur.readCompactSize()
	if err != nil {
		return nil, err
	}

	tx.Inputs = make([]TxIn, numInputs)
	for i := range tx.Inputs {
		txid, err := cur.readBytes(32)
		if err != nil {
			return nil, err
		}
		copy(tx.Inputs[i].PreviousOutPoint.TxID[:], txid)

		vout, err := cur.readUint32()
		if err != nil {
			return nil, err
		}
		tx.Inputs[i].PreviousOutPoint.Vout = vout

		scriptSigLen, err := cur.readCompactSize()
		if err != nil {
			return nil, err
		}
		scriptSig, err := cur.readBytes(int(scriptSigLen))
		if err != nil {
			return nil, err
		}
		if len(scriptSig) > 0 {
			tx.Inputs[i].ScriptSig = scriptSig
		}

		sequence, err := cur.readUint32()
		if err != nil {
			return nil, err
		}
		tx.Inputs[i].Sequence = sequence
	}

	numOutputs, err := cur.readCompactSize()
	if err != nil {
		return nil, err
	}

	tx.Outputs = make([]TxOut, numOutputs)
	for i := range tx.Outputs {
		amount, err := cur.readUint64()
		if err != nil {
			return nil, err
		}
		tx.Outputs[i].Amount = int64(amount)

		spkLen, err := cur.readCompactSize()
		if err != nil {
			return nil, err
		}
		spk, err := cur.readBytes(int(spkLen))
		if err != nil {
			return nil, err
		}
		tx.Outputs[i].ScriptPubKey = spk
	}

	if withWitness {
		for i := range tx.Inputs {
			stackCount, err := cur.readCompactSize()
			if err != nil {
				return nil, err
			}

			witness := make([][]byte, stackCount)
			for j := range witness {
				itemLen, err := cur.readCompactSize()
				if err != nil {
					return nil, err
				}
				item, err := cur.readBytes(int(itemLen))
				if err != nil {
					return nil, err
				}
				witness[j] = item
			}
			tx.Inputs[i].Witness = witness
		}
	}

	lockTime, err := cur.readUint32()
	if err != nil {
		return nil, err
	}
	tx.LockTime = lockTime

	return tx, nil
}

// TxID returns the transaction's id: double-SHA256 of the non-witness
// serialization, in the reversed byte order conventionally used for
// display/hex (spec §4.5, testable property 5).
func (tx *Tx) TxID() [32]byte {
	return doubleSHA256Reversed(tx.SerializeNoWitness())
}

// TxIDHex returns TxID as lowercase display hex.
func (tx *Tx) TxIDHex() string {
	id := tx.TxID()
	return hex.EncodeToString(id[:])
}

// WTxID returns the witness transaction id: double-SHA256 of the full
// witness serialization, reversed for display.
func (tx *Tx) WTxID() [32]byte {
	return doubleSHA256Reversed(tx.serialize(true))
}

func doubleSHA256Reversed(data []byte) [32]byte {
	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])

	var out [32]byte
	copy(out[:], second[:])
	reverse.Bytes(out[:])

	return out
}

// cursor is a minimal byte-oriented reader for the tx codec; it never
// copies more than necessary and reports truncation explicitly instead
// of panicking on out-of-range slices.
type cursor struct {
	data []byte
	pos  int
}

func (c *cursor) readBytes(n int) ([]byte, error) {
	if n < 0 || c.pos+n > len(c.data) {
		return nil, ErrTruncated
	}
	out := c.data[c.pos : c.pos+n]
	c.pos += n
	return out, nil
}

func (c *cursor) readUint32() (uint32, error) {
	b, err := c.readBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (c *cursor) readUint64() (uint64, error) {
	b, err := c.readBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (c *cursor) readCompactSize() (uint64, error) {
	v, n, err := script.ReadCompactSize(c.data, c.pos)
	if err != nil {
		return 0, ErrTruncated
	}
	c.pos += n
	return v, nil
}
