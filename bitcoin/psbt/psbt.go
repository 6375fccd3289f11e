// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package psbt implements a native BIP-174 (v0) and BIP-370/371 (v2)
// Partially Signed Bitcoin Transaction codec: the key-value map frame,
// Taproot-specific fields, and the signing/finalizing workflow a
// multi-party script-path or key-path spend needs. It never reaches for
// btcutil/psbt — that package is exactly the layer this one exists to
// replace natively.
package psbt

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/aaron-recompile/taproot/bitcoin/script"
	"github.com/aaron-recompile/taproot/bitcoin/sighash"
	"github.com/aaron-recompile/taproot/bitcoin/txn"
)

// psbtMagic is the fixed 5-byte PSBT magic: "psbt" || 0xff.
var psbtMagic = []byte{0x70, 0x73, 0x62, 0x74, 0xff}

// Global, per-input and per-output key types (BIP-174, extended by
// BIP-370 for v2 and BIP-371 for Taproot fields).
const (
	keyGlobalUnsignedTx       = 0x00
	keyGlobalTxVersion        = 0x02
	keyGlobalFallbackLocktime = 0x03
	keyGlobalInputCount       = 0x04
	keyGlobalOutputCount      = 0x05

	keyInWitnessUTXO        = 0x01
	keyInFinalScriptWitness = 0x08
	keyInPreviousTxID       = 0x0e
	keyInOutputIndex        = 0x0f
	keyInSequence           = 0x10
	keyInTapKeySig          = 0x13
	keyInTapScriptSig       = 0x14
	keyInTapLeafScript      = 0x15
	keyInTapInternalKey     = 0x17
	keyInTapMerkleRoot      = 0x18

	keyOutAmount = 0x03
	keyOutScript = 0x04
)

// ErrUnsupportedVersion is returned by Deserialize when the global map
// names neither an unsigned transaction (v0) nor a tx version (v2).
var ErrUnsupportedVersion = errors.New("psbt: neither UNSIGNED_TX nor TX_VERSION present in global map")

// ErrMalformed is returned for a structurally invalid map (bad key shape,
// wrong value length for a known field).
var ErrMalformed = errors.New("psbt: malformed key-value map")

// KeyValue is a raw, unrecognized map entry preserved verbatim so
// round-tripping a packet never drops data (spec §4.8, §8 property 6/7).
type KeyValue struct {
	Key   []byte // full key bytes, including the leading type byte
	Value []byte
}

// TapScriptSigKey identifies one script-path partial signature: the
// signer's x-only pubkey and the leaf it signs for (BIP-371).
type TapScriptSigKey struct {
	XOnly    [32]byte
	LeafHash [32]byte
}

// Input is one PSBT input map's fields.
type Input struct {
	// v2 fields (spec §4.8, BIP-370).
	PreviousTxID [32]byte
	OutputIndex  uint32
	Sequence     uint32
	HasSequence  bool

	WitnessUTXOAmount int64
	WitnessUTXOScript []byte
	HasWitnessUTXO    bool

	TapInternalKey    [32]byte
	HasTapInternalKey bool

	TapMerkleRoot    []byte
	HasTapMerkleRoot bool

	TapLeafScript       []byte
	TapLeafControlBlock []byte
	TapLeafVersion      byte
	HasTapLeafScript    bool

	TapKeySig []byte

	TapScriptSigs map[TapScriptSigKey][]byte

	FinalScriptWitness    [][]byte
	HasFinalScriptWitness bool

	Unknown []KeyValue
}

// Output is one PSBT output map's fields.
type Output struct {
	// v2 fields.
	Amount    int64
	HasAmount bool
	Script    []byte
	HasScript bool

	Unknown []KeyValue
}

// Packet is a decoded PSBT, either v0 (carrying a global unsigned
// transaction) or v2 (carrying per-input/per-output transaction fields
// instead, per BIP-370).
type Packet struct {
	Version int

	UnsignedTx *txn.Tx // v0 only

	TxVersion        int32  // v2 only
	FallbackLocktime uint32 // v2 only

	Inputs  []*Input
	Outputs []*Output

	GlobalUnknown []KeyValue
}

// NewFromUnsignedTx builds a v0 packet wrapping an already-assembled
// unsigned transaction, with one empty input/output map per tx entry
// ready for field population (spec §4.7 "to_psbt()", §4.8).
func NewFromUnsignedTx(tx *txn.Tx) *Packet {
	p := &Packet{Version: 0, UnsignedTx: tx}

	p.Inputs = make([]*Input, len(tx.Inputs))
	for i := range p.Inputs {
		p.Inputs[i] = &Input{TapScriptSigs: make(map[TapScriptSigKey][]byte)}
	}

	p.Outputs = make([]*Output, len(tx.Outputs))
	for i := range p.Outputs {
		p.Outputs[i] = &Output{}
	}

	return p
}

// NewV2 builds an empty v2 packet; inputs/outputs are added via
// AddInput/AddOutput.
func NewV2(txVersion int32, fallbackLocktime uint32) *Packet {
	return &Packet{Version: 2, TxVersion: txVersion, FallbackLocktime: fallbackLocktime}
}

// AddInput appends a v2 input referencing (previousTxID, outputIndex)
// with the given nSequence.
func (p *Packet) AddInput(previousTxID [32]byte, outputIndex uint32, sequence uint32) *Input {
	in := &Input{
		PreviousTxID:  previousTxID,
		OutputIndex:   outputIndex,
		Sequence:      sequence,
		HasSequence:   true,
		TapScriptSigs: make(map[TapScriptSigKey][]byte),
	}
	p.Inputs = append(p.Inputs, in)
	return in
}

// AddOutput appends a v2 output paying amount to scriptPubKey.
func (p *Packet) AddOutput(amount int64, scriptPubKey []byte) *Output {
	out := &Output{Amount: amount, HasAmount: true, Script: scriptPubKey, HasScript: true}
	p.Outputs = append(p.Outputs, out)
	return out
}

// SetWitnessUTXO records the spent output's amount and scriptPubKey for
// input i, required by every signer to recompute the sighash.
func (p *Packet) SetWitnessUTXO(i int, amount int64, scriptPubKey []byte) {
	p.Inputs[i].WitnessUTXOAmount = amount
	p.Inputs[i].WitnessUTXOScript = scriptPubKey
	p.Inputs[i].HasWitnessUTXO = true
}

// SetTapInternalKey records the key-path internal key for input i.
func (p *Packet) SetTapInternalKey(i int, xonly [32]byte) {
	p.Inputs[i].TapInternalKey = xonly
	p.Inputs[i].HasTapInternalKey = true
}

// SetTapMerkleRoot records the script-tree Merkle root backing input i's
// key-path tweak (may be nil for a key-path-only program).
func (p *Packet) SetTapMerkleRoot(i int, root []byte) {
	p.Inputs[i].TapMerkleRoot = root
	p.Inputs[i].HasTapMerkleRoot = true
}

// SetTapLeafScript records the leaf being spent for input i's
// script-path spend: its tapscript bytes, leaf version, and control
// block.
func (p *Packet) SetTapLeafScript(i int, scriptBytes []byte, leafVersion byte, controlBlock []byte) {
	p.Inputs[i].TapLeafScript = scriptBytes
	p.Inputs[i].TapLeafVersion = leafVersion
	p.Inputs[i].TapLeafControlBlock = controlBlock
	p.Inputs[i].HasTapLeafScript = true
}

func writeKV(buf *bytes.Buffer, keyType byte, keyData []byte, value []byte) {
	key := append([]byte{keyType}, keyData...)
	buf.Write(script.CompactSize(uint64(len(key))))
	buf.Write(key)
	buf.Write(script.CompactSize(uint64(len(value))))
	buf.Write(value)
}

func writeUnknown(buf *bytes.Buffer, kvs []KeyValue) {
	for _, kv := range kvs {
		buf.Write(script.CompactSize(uint64(len(kv.Key))))
		buf.Write(kv.Key)
		buf.Write(script.CompactSize(uint64(len(kv.Value))))
		buf.Write(kv.Value)
	}
}

func endMap(buf *bytes.Buffer) {
	buf.WriteByte(0x00)
}

func le32(v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return b[:]
}

func le64(v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return b[:]
}

// serializeWitnessUTXO encodes a TxOut-shaped value for PSBT_IN_WITNESS_UTXO.
func serializeWitnessUTXO(amount int64, scriptPubKey []byte) []byte {
	var buf bytes.Buffer
	buf.Write(le64(uint64(amount)))
	buf.Write(script.CompactSize(uint64(len(scriptPubKey))))
	buf.Write(scriptPubKey)
	return buf.Bytes()
}

func deserializeWitnessUTXO(value []byte) (int64, []byte, error) {
	if len(value) < 9 {
		return 0, nil, fmt.Errorf("%w: witness utxo too short", ErrMalformed)
	}
	amount := int64(binary.LittleEndian.Uint64(value[:8]))
	spkLen, n, err := script.ReadCompactSize(value, 8)
	if err != nil {
		return 0, nil, err
	}
	start := 8 + n
	if start+int(spkLen) > len(value) {
		return 0, nil, fmt.Errorf("%w: witness utxo script truncated", ErrMalformed)
	}
	return amount, value[start : start+int(spkLen)], nil
}

// serializeWitnessStack encodes a witness stack the same way it appears
// inline in a segwit transaction, for PSBT_IN_FINAL_SCRIPT_WITNESS.
func serializeWitnessStack(stack [][]byte) []byte {
	var buf bytes.Buffer
	buf.Write(script.CompactSize(uint64(len(stack))))
	for _, item := range stack {
		buf.Write(script.CompactSize(uint64(len(item))))
		buf.Write(item)
	}
	return buf.Bytes()
}

func deserializeWitnessStack(value []byte) ([][]byte, error) {
	count, n, err := script.ReadCompactSize(value, 0)
	if err != nil {
		return nil, err
	}
	pos := n

	stack := make([][]byte, count)
	for i := range stack {
		itemLen, m, err := script.ReadCompactSize(value, pos)
		if err != nil {
			return nil, err
		}
		pos += m
		if pos+int(itemLen) > len(value) {
			return nil, fmt.Errorf("%w: witness stack item truncated", ErrMalformed)
		}
		stack[i] = value[pos : pos+int(itemLen)]
		pos += int(itemLen)
	}

	return stack, nil
}

// Serialize encodes the packet to PSBT wire bytes.
func (p *Packet) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(psbtMagic)

	if err := p.writeGlobalMap(&buf); err != nil {
		return nil, err
	}

	for _, in := range p.Inputs {
		if err := p.writeInputMap(&buf, in); err != nil {
			return nil, err
		}
	}

	for _, out := range p.Outputs {
		writeOutputMap(&buf, p.Version, out)
	}

	return buf.Bytes(), nil
}

func (p *Packet) writeGlobalMap(buf *bytes.Buffer) error {
	switch p.Version {
	case 0:
		writeKV(buf, keyGlobalUnsignedTx, nil, p.UnsignedTx.SerializeNoWitness())
	case 2:
		writeKV(buf, keyGlobalTxVersion, nil, le32(uint32(p.TxVersion)))
		writeKV(buf, keyGlobalFallbackLocktime, nil, le32(p.FallbackLocktime))
		writeKV(buf, keyGlobalInputCount, nil, script.CompactSize(uint64(len(p.Inputs))))
		writeKV(buf, keyGlobalOutputCount, nil, script.CompactSize(uint64(len(p.Outputs))))
	default:
		return fmt.Errorf("psbt: unsupported version %d", p.Version)
	}
	writeUnknown(buf, p.GlobalUnknown)
	endMap(buf)
	return nil
}

func (p *Packet) writeInputMap(buf *bytes.Buffer, in *Input) error {
	if p.Version == 2 {
		writeKV(buf, keyInPreviousTxID, nil, in.PreviousTxID[:])
		writeKV(buf, keyInOutputIndex, nil, le32(in.OutputIndex))
		if in.HasSequence {
			writeKV(buf, keyInSequence, nil, le32(in.Sequence))
		}
	}

	if in.HasWitnessUTXO {
		writeKV(buf, keyInWitnessUTXO, nil, serializeWitnessUTXO(in.WitnessUTXOAmount, in.WitnessUTXOScript))
	}
	if in.HasTapInternalKey {
		writeKV(buf, keyInTapInternalKey, nil, in.TapInternalKey[:])
	}
	if in.HasTapMerkleRoot {
		writeKV(buf, keyInTapMerkleRoot, nil, in.TapMerkleRoot)
	}
	if in.HasTapLeafScript {
		value := append(append([]byte{}, in.TapLeafScript...), in.TapLeafVersion)
		writeKV(buf, keyInTapLeafScript, in.TapLeafControlBlock, value)
	}
	if in.TapKeySig != nil {
		writeKV(buf, keyInTapKeySig, nil, in.TapKeySig)
	}
	for k, sig := range in.TapScriptSigs {
		keyData := append(append([]byte{}, k.XOnly[:]...), k.LeafHash[:]...)
		writeKV(buf, keyInTapScriptSig, keyData, sig)
	}
	if in.HasFinalScriptWitness {
		writeKV(buf, keyInFinalScriptWitness, nil, serializeWitnessStack(in.FinalScriptWitness))
	}

	writeUnknown(buf, in.Unknown)
	endMap(buf)
	return nil
}

func writeOutputMap(buf *bytes.Buffer, version int, out *Output) {
	if version == 2 {
		if out.HasAmount {
			writeKV(buf, keyOutAmount, nil, le64(uint64(out.Amount)))
		}
		if out.HasScript {
			writeKV(buf, keyOutScript, nil, out.Script)
		}
	}
	writeUnknown(buf, out.Unknown)
	endMap(buf)
}

// readMap reads key-value pairs until the terminating zero-length key,
// invoking handle for each. handle returns (consumed, err); consumed
// false means the entry should be stashed as an unknown KeyValue.
func readMap(c *byteCursor, handle func(keyType byte, keyData, value []byte) (bool, error)) ([]KeyValue, error) {
	var unknown []KeyValue

	for {
		keyLen, err := c.readCompactSize()
		if err != nil {
			return nil, err
		}
		if keyLen == 0 {
			return unknown, nil
		}

		key, err := c.readN(int(keyLen))
		if err != nil {
			return nil, err
		}

		valLen, err := c.readCompactSize()
		if err != nil {
			return nil, err
		}
		value, err := c.readN(int(valLen))
		if err != nil {
			return nil, err
		}

		keyType := key[0]
		keyData := key[1:]

		consumed, err := handle(keyType, keyData, value)
		if err != nil {
			return nil, err
		}
		if !consumed {
			unknown = append(unknown, KeyValue{Key: append([]byte{}, key...), Value: append([]byte{}, value...)})
		}
	}
}

// Deserialize parses PSBT wire bytes into a Packet, auto-detecting v0
// (UNSIGNED_TX present) vs v2 (TX_VERSION present).
func Deserialize(data []byte) (*Packet, error) {
	if len(data) < len(psbtMagic) || !bytes.Equal(data[:len(psbtMagic)], psbtMagic) {
		return nil, fmt.Errorf("%w: bad magic", ErrMalformed)
	}

	c := newByteCursor(data[len(psbtMagic):])

	p := &Packet{}
	var numInputsV2, numOutputsV2 uint64
	haveTxVersion := false

	unknown, err := readMap(c, func(keyType byte, keyData, value []byte) (bool, error) {
		switch keyType {
		case keyGlobalUnsignedTx:
			tx, err := txn.Deserialize(value)
			if err != nil {
				return false, fmt.Errorf("psbt: global unsigned tx: %w", err)
			}
			p.Version = 0
			p.UnsignedTx = tx
			return true, nil
		case keyGlobalTxVersion:
			if len(value) != 4 {
				return false, fmt.Errorf("%w: tx version", ErrMalformed)
			}
			p.Version = 2
			p.TxVersion = int32(binary.LittleEndian.Uint32(value))
			haveTxVersion = true
			return true, nil
		case keyGlobalFallbackLocktime:
			if len(value) != 4 {
				return false, fmt.Errorf("%w: fallback locktime", ErrMalformed)
			}
			p.FallbackLocktime = binary.LittleEndian.Uint32(value)
			return true, nil
		case keyGlobalInputCount:
			n, _, err := script.ReadCompactSize(value, 0)
			if err != nil {
				return false, err
			}
			numInputsV2 = n
			return true, nil
		case keyGlobalOutputCount:
			n, _, err := script.ReadCompactSize(value, 0)
			if err != nil {
				return false, err
			}
			numOutputsV2 = n
			return true, nil
		default:
			return false, nil
		}
	})
	if err != nil {
		return nil, err
	}
	p.GlobalUnknown = unknown

	if !haveTxVersion && p.UnsignedTx == nil {
		return nil, ErrUnsupportedVersion
	}

	numInputs := numInputsV2
	numOutputs := numOutputsV2
	if p.Version == 0 {
		numInputs = uint64(len(p.UnsignedTx.Inputs))
		numOutputs = uint64(len(p.UnsignedTx.Outputs))
	}

	p.Inputs = make([]*Input, numInputs)
	for i := range p.Inputs {
		in := &Input{TapScriptSigs: make(map[TapScriptSigKey][]byte)}
		if err := readInputMap(c, in); err != nil {
			return nil, err
		}
		p.Inputs[i] = in
	}

	p.Outputs = make([]*Output, numOutputs)
	for i := range p.Outputs {
		out := &Output{}
		if err := readOutputMap(c, out); err != nil {
			return nil, err
		}
		p.Outputs[i] = out
	}

	return p, nil
}

func readInputMap(c *byteCursor, in *Input) error {
	unknown, err := readMap(c, func(keyType byte, keyData, value []byte) (bool, error) {
		switch keyType {
		case keyInPreviousTxID:
			if len(value) != 32 {
				return false, fmt.Errorf("%w: previous txid", ErrMalformed)
			}
			copy(in.PreviousTxID[:], value)
			return true, nil
		case keyInOutputIndex:
			if len(value) != 4 {
				return false, fmt.Errorf("%w: output index", ErrMalformed)
			}
			in.OutputIndex = binary.LittleEndian.Uint32(value)
			return true, nil
		case keyInSequence:
			if len(value) != 4 {
				return false, fmt.Errorf("%w: sequence", ErrMalformed)
			}
			in.Sequence = binary.LittleEndian.Uint32(value)
			in.HasSequence = true
			return true, nil
		case keyInWitnessUTXO:
			amount, spk, err := deserializeWitnessUTXO(value)
			if err != nil {
				return false, err
			}
			in.WitnessUTXOAmount = amount
			in.WitnessUTXOScript = spk
			in.HasWitnessUTXO = true
			return true, nil
		case keyInTapInternalKey:
			if len(value) != 32 {
				return false, fmt.Errorf("%w: tap internal key", ErrMalformed)
			}
			copy(in.TapInternalKey[:], value)
			in.HasTapInternalKey = true
			return true, nil
		case keyInTapMerkleRoot:
			if len(value) != 32 {
				return false, fmt.Errorf("%w: tap merkle root", ErrMalformed)
			}
			in.TapMerkleRoot = append([]byte{}, value...)
			in.HasTapMerkleRoot = true
			return true, nil
		case keyInTapLeafScript:
			if len(value) < 1 {
				return false, fmt.Errorf("%w: tap leaf script", ErrMalformed)
			}
			in.TapLeafScript = append([]byte{}, value[:len(value)-1]...)
			in.TapLeafVersion = value[len(value)-1]
			in.TapLeafControlBlock = append([]byte{}, keyData...)
			in.HasTapLeafScript = true
			return true, nil
		case keyInTapKeySig:
			in.TapKeySig = append([]byte{}, value...)
			return true, nil
		case keyInTapScriptSig:
			if len(keyData) != 64 {
				return false, fmt.Errorf("%w: tap script sig key", ErrMalformed)
			}
			var k TapScriptSigKey
			copy(k.XOnly[:], keyData[:32])
			copy(k.LeafHash[:], keyData[32:])
			in.TapScriptSigs[k] = append([]byte{}, value...)
			return true, nil
		case keyInFinalScriptWitness:
			stack, err := deserializeWitnessStack(value)
			if err != nil {
				return false, err
			}
			in.FinalScriptWitness = stack
			in.HasFinalScriptWitness = true
			return true, nil
		default:
			return false, nil
		}
	})
	if err != nil {
		return err
	}
	in.Unknown = unknown
	return nil
}

func readOutputMap(c *byteCursor, out *Output) error {
	unknown, err := readMap(c, func(keyType byte, keyData, value []byte) (bool, error) {
		switch keyType {
		case keyOutAmount:
			if len(value) != 8 {
				return false, fmt.Errorf("%w: output amount", ErrMalformed)
			}
			out.Amount = int64(binary.LittleEndian.Uint64(value))
			out.HasAmount = true
			return true, nil
		case keyOutScript:
			out.Script = append([]byte{}, value...)
			out.HasScript = true
			return true, nil
		default:
			return false, nil
		}
	})
	if err != nil {
		return err
	}
	out.Unknown = unknown
	return nil
}

// ToBase64 encodes the packet as the base64 string conventionally used to
// exchange PSBTs between signers.
func (p *Packet) ToBase64() (string, error) {
	raw, err := p.Serialize()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// FromBase64 decodes a packet previously produced by ToBase64.
func FromBase64(s string) (*Packet, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return Deserialize(raw)
}

// AssembleTx builds the concrete transaction this packet describes: for
// v0 it is UnsignedTx itself; for v2 it is assembled from every input's
// (PreviousTxID, OutputIndex, Sequence) and every output's
// (Amount, Script), per BIP-370.
func (p *Packet) AssembleTx() (*txn.Tx, error) {
	if p.Version == 0 {
		return p.UnsignedTx, nil
	}

	tx := &txn.Tx{Version: p.TxVersion, LockTime: p.FallbackLocktime}

	tx.Inputs = make([]txn.TxIn, len(p.Inputs))
	for i, in := range p.Inputs {
		seq := in.Sequence
		if !in.HasSequence {
			seq = 0xFFFFFFFF
		}
		tx.Inputs[i] = txn.TxIn{
			PreviousOutPoint: txn.OutPoint{TxID: in.PreviousTxID, Vout: in.OutputIndex},
			Sequence:         seq,
		}
	}

	tx.Outputs = make([]txn.TxOut, len(p.Outputs))
	for i, out := range p.Outputs {
		tx.Outputs[i] = txn.TxOut{Amount: out.Amount, ScriptPubKey: out.Script}
	}

	return tx, nil
}

// Prevouts builds the sighash.Prevout list from every input's recorded
// WITNESS_UTXO, required before any input can be signed.
func (p *Packet) Prevouts() ([]sighash.Prevout, error) {
	out := make([]sighash.Prevout, len(p.Inputs))
	for i, in := range p.Inputs {
		if !in.HasWitnessUTXO {
			return nil, fmt.Errorf("psbt: input %d missing witness utxo", i)
		}
		out[i] = sighash.Prevout{Amount: in.WitnessUTXOAmount, ScriptPubKey: in.WitnessUTXOScript}
	}
	return out, nil
}
