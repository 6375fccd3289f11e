// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package spend implements the fluent transaction-spend builder: it
// selects a leaf (or the key-path) from a compiled taptree.Program,
// gathers inputs/outputs/unlock material, and assembles either a signed
// Transaction directly or an unsigned Psbt for multi-party signing.
package spend

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/aaron-recompile/taproot/bitcoin/address"
	"github.com/aaron-recompile/taproot/bitcoin/keys"
	"github.com/aaron-recompile/taproot/bitcoin/leaf"
	"github.com/aaron-recompile/taproot/bitcoin/psbt"
	"github.com/aaron-recompile/taproot/bitcoin/sighash"
	"github.com/aaron-recompile/taproot/bitcoin/taptree"
	"github.com/aaron-recompile/taproot/bitcoin/txn"
	"github.com/aaron-recompile/taproot/internal/reverse"
)

// Build-time errors (spec §7, BuildError::*).
var (
	ErrMissingUTXO           = errors.New("spend: no UTXO specified, call FromUTXO/FromUTXOs first")
	ErrMissingOutput         = errors.New("spend: no outputs specified, call To first")
	ErrMissingPreimage       = errors.New("spend: hashlock requires Unlock(preimage)")
	ErrMissingSigner         = errors.New("spend: script requires Sign(key)")
	ErrInsufficientSigners   = errors.New("spend: multisig requires more signers to reach its threshold")
	ErrCustomWitnessRequired = errors.New("spend: custom script requires UnlockWith(stack)")
	ErrNegativeFee           = errors.New("spend: outputs exceed inputs")
)

// UTXO is a single input reference: (txid, vout, amount).
type UTXO struct {
	TxID   string // display-order (reversed) hex, as conventionally shown
	Vout   uint32
	Amount int64
}

// Output is a single destination: (address, amount).
type Output struct {
	Address string
	Amount  int64
}

// Builder is the mutable, exclusively-owned fluent spend builder (spec
// §4.7, §5 "owned exclusively by its caller").
type Builder struct {
	program   *taptree.Program
	leaf      *leaf.Descriptor
	isKeyPath bool

	utxos   []UTXO
	outputs []Output

	preimage      []byte
	signingKeys   []keys.Key
	customWitness [][]byte

	sequence *uint32
}

// Spend selects a script-path leaf by label for the builder, per spec
// §4.7 step 1.
func Spend(program *taptree.Program, label string) (*Builder, error) {
	d, err := program.LeafByLabel(label)
	if err != nil {
		return nil, err
	}
	return &Builder{program: program, leaf: d}, nil
}

// KeyPath selects key-path spending for the builder, per spec §4.7 step 1.
func KeyPath(program *taptree.Program) *Builder {
	return &Builder{program: program, isKeyPath: true}
}

// FromUTXO specifies a single input.
func (b *Builder) FromUTXO(txidHex string, vout uint32, amount int64) *Builder {
	b.utxos = []UTXO{{TxID: txidHex, Vout: vout, Amount: amount}}
	return b
}

// FromUTXOs specifies multiple inputs.
func (b *Builder) FromUTXOs(utxos []UTXO) *Builder {
	b.utxos = utxos
	return b
}

// To adds an output.
func (b *Builder) To(addr string, amount int64) *Builder {
	b.outputs = append(b.outputs, Output{Address: addr, Amount: amount})
	return b
}

// Sequence overrides the default nSequence policy.
func (b *Builder) Sequence(value uint32) *Builder {
	b.sequence = &value
	return b
}

// Unlock provides a hashlock preimage.
func (b *Builder) Unlock(preimage []byte) *Builder {
	b.preimage = preimage
	return b
}

// Sign provides signing keys; for MULTISIG order doesn't matter, for
// KEYPATH the key must be the program's internal key.
func (b *Builder) Sign(signers ...keys.Key) *Builder {
	b.signingKeys = append(b.signingKeys, signers...)
	return b
}

// UnlockWith manually provides a raw witness stack, for CUSTOM scripts.
func (b *Builder) UnlockWith(stack [][]byte) *Builder {
	b.customWitness = stack
	return b
}

// defaultSequence returns the nSequence value for this builder's leaf
// per spec §4.7's policy: explicit override wins; CSV_TIMELOCK uses its
// own encoded sequence; everything else defaults to RBF-enabled.
func (b *Builder) defaultSequence() uint32 {
	if b.sequence != nil {
		return *b.sequence
	}
	if !b.isKeyPath {
		if csv, ok := b.leaf.Kind.(leaf.CSVTimelock); ok {
			return csv.Sequence
		}
	}
	return 0xFFFFFFFD
}

func parseTxID(txidHex string) ([32]byte, error) {
	var out [32]byte

	raw, err := hex.DecodeString(txidHex)
	if err != nil || len(raw) != 32 {
		return out, fmt.Errorf("spend: invalid txid %q", txidHex)
	}

	reverse.Bytes(raw)
	copy(out[:], raw)

	return out, nil
}

// buildUnsignedTx assembles inputs/outputs with the right nSequence
// policy and validates the fee is non-negative.
func (b *Builder) buildUnsignedTx() (*txn.Tx, error) {
	if len(b.utxos) == 0 {
		return nil, ErrMissingUTXO
	}
	if len(b.outputs) == 0 {
		return nil, ErrMissingOutput
	}

	seq := b.defaultSequence()

	var totalIn int64
	inputs := make([]txn.TxIn, len(b.utxos))
	for i, u := range b.utxos {
		txid, err := parseTxID(u.TxID)
		if err != nil {
			return nil, err
		}
		inputs[i] = txn.TxIn{
			PreviousOutPoint: txn.OutPoint{TxID: txid, Vout: u.Vout},
			Sequence:         seq,
		}
		totalIn += u.Amount
	}

	var totalOut int64
	outputs := make([]txn.TxOut, len(b.outputs))
	for i, o := range b.outputs {
		spk, err := address.ScriptPubKey(o.Address)
		if err != nil {
			return nil, err
		}
		outputs[i] = txn.TxOut{Amount: o.Amount, ScriptPubKey: spk}
		totalOut += o.Amount
	}

	if totalOut > totalIn {
		return nil, fmt.Errorf("%w: in=%d out=%d", ErrNegativeFee, totalIn, totalOut)
	}

	return &txn.Tx{Version: 2, Inputs: inputs, Outputs: outputs}, nil
}

// ToPSBT assembles the builder's unsigned transaction into a v0 PSBT
// ready for multi-party signing (spec §4.7 step "to_psbt()"): every
// input's WITNESS_UTXO is populated from the program's scriptPubKey, and
// either TAP_INTERNAL_KEY/TAP_MERKLE_ROOT (key-path) or TAP_LEAF_SCRIPT
// (script-path) is set so any signer can recompute the sighash and,
// script-path, order its CHECKSIGADD witness correctly at finalize time.
func (b *Builder) ToPSBT() (*psbt.Packet, error) {
	tx, err := b.buildUnsignedTx()
	if err != nil {
		return nil, err
	}

	pkt := psbt.NewFromUnsignedTx(tx)
	spk := b.program.ScriptPubKey()

	for i, u := range b.utxos {
		pkt.SetWitnessUTXO(i, u.Amount, spk)

		if b.isKeyPath {
			pkt.SetTapInternalKey(i, b.program.InternalKeyXOnly)
			pkt.SetTapMerkleRoot(i, b.program.MerkleRoot)
			continue
		}

		controlBlock, err := b.program.ControlBlock(b.leaf.Index)
		if err != nil {
			return nil, err
		}
		pkt.SetTapLeafScript(i, b.leaf.ScriptBytes, b.leaf.LeafVersion, controlBlock)
	}

	return pkt, nil
}

func (b *Builder) prevouts() []sighash.Prevout {
	spk := b.program.ScriptPubKey()
	out := make([]sighash.Prevout, len(b.utxos))
	for i, u := range b.utxos {
		out[i] = sighash.Prevout{Amount: u.Amount, ScriptPubKey: spk}
	}
	return out
}

// Build assembles and signs the transaction directly (spec §4.7 step 5,
// "build()").
func (b *Builder) Build() (*txn.Tx, error) {
	tx, err := b.buildUnsignedTx()
	if err != nil {
		return nil, err
	}

	prevouts := b.prevouts()

	if b.isKeyPath {
		if err := b.signKeyPath(tx, prevouts); err != nil {
			return nil, err
		}
		return tx, nil
	}

	if err := b.signScriptPath(tx, prevouts); err != nil {
		return nil, err
	}
	return tx, nil
}

func (b *Builder) signKeyPath(tx *txn.Tx, prevouts []sighash.Prevout) error {
	if len(b.signingKeys) == 0 {
		return ErrMissingSigner
	}
	internalKey := b.signingKeys[0]

	tweakedKey, err := keys.TweakPrivateKey(internalKey, b.program.MerkleRoot)
	if err != nil {
		return err
	}

	for i := range b.utxos {
		digest, err := sighash.TaprootSighash(tx, i, prevouts, nil)
		if err != nil {
			return err
		}

		sig, err := keys.Sign(tweakedKey, digest, keys.ZeroAuxRand())
		if err != nil {
			return err
		}

		tx.Inputs[i].Witness = [][]byte{sig[:]}
	}

	return nil
}

func (b *Builder) signScriptPath(tx *txn.Tx, prevouts []sighash.Prevout) error {
	d := b.leaf
	ext := &sighash.ScriptPathExtension{LeafHash: d.LeafHash}

	controlBlock, err := b.program.ControlBlock(d.Index)
	if err != nil {
		return err
	}

	for i := range b.utxos {
		stack, err := b.witnessStack(tx, i, prevouts, ext)
		if err != nil {
			return err
		}

		stack = append(stack, d.ScriptBytes, controlBlock)
		tx.Inputs[i].Witness = stack
	}

	return nil
}

// witnessStack builds the kind-specific portion of the witness, per the
// table in spec §4.7 (script and control block are appended by the
// caller).
func (b *Builder) witnessStack(tx *txn.Tx, inputIndex int, prevouts []sighash.Prevout, ext *sighash.ScriptPathExtension) ([][]byte, error) {
	switch kind := b.leaf.Kind.(type) {
	case leaf.Hashlock:
		if b.preimage == nil {
			return nil, ErrMissingPreimage
		}
		return [][]byte{b.preimage}, nil

	case leaf.Checksig:
		sig, err := b.signWithFirstKey(tx, inputIndex, prevouts, ext)
		if err != nil {
			return nil, err
		}
		return [][]byte{sig}, nil

	case leaf.Multisig:
		return b.multisigWitness(kind, tx, inputIndex, prevouts, ext)

	case leaf.CSVTimelock:
		sig, err := b.signWithFirstKey(tx, inputIndex, prevouts, ext)
		if err != nil {
			return nil, err
		}
		return [][]byte{sig}, nil

	case leaf.Custom:
		if b.customWitness == nil {
			return nil, ErrCustomWitnessRequired
		}
		return b.customWitness, nil

	default:
		return nil, fmt.Errorf("spend: unhandled leaf kind %T", kind)
	}
}

func (b *Builder) signWithFirstKey(tx *txn.Tx, inputIndex int, prevouts []sighash.Prevout, ext *sighash.ScriptPathExtension) ([]byte, error) {
	if len(b.signingKeys) == 0 {
		return nil, ErrMissingSigner
	}

	digest, err := sighash.TaprootSighash(tx, inputIndex, prevouts, ext)
	if err != nil {
		return nil, err
	}

	sig, err := keys.Sign(b.signingKeys[0], digest, keys.ZeroAuxRand())
	if err != nil {
		return nil, err
	}

	return sig[:], nil
}

// multisigWitness signs with every provided key matching one of the
// leaf's pubkeys, then orders the resulting signatures in reverse
// declaration order (Pn first) — the LIFO order OP_CHECKSIGADD consumes
// them in. Signers for pubkeys not in the leaf are ignored; missing
// signers are skipped rather than padded (spec §4.7).
func (b *Builder) multisigWitness(kind leaf.Multisig, tx *txn.Tx, inputIndex int, prevouts []sighash.Prevout, ext *sighash.ScriptPathExtension) ([][]byte, error) {
	if len(b.signingKeys) < int(kind.K) {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientSigners, len(b.signingKeys), kind.K)
	}

	digest, err := sighash.TaprootSighash(tx, inputIndex, prevouts, ext)
	if err != nil {
		return nil, err
	}

	sigsByPubkey := make(map[[32]byte][]byte, len(b.signingKeys))
	for _, signer := range b.signingKeys {
		sig, err := keys.Sign(signer, digest, keys.ZeroAuxRand())
		if err != nil {
			return nil, err
		}
		sigsByPubkey[signer.XOnly()] = sig[:]
	}

	var stack [][]byte
	for i := len(kind.Pubkeys) - 1; i >= 0; i-- {
		if sig, ok := sigsByPubkey[kind.Pubkeys[i]]; ok {
			stack = append(stack, sig)
		}
	}

	if len(stack) < int(kind.K) {
		return nil, fmt.Errorf("%w: have %d matching signers, need %d", ErrInsufficientSigners, len(stack), kind.K)
	}

	return stack, nil
}
