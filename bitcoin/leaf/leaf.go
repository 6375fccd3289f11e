// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package leaf models the closed set of script kinds a Taproot leaf can
// hold and compiles each into tapscript bytes.
package leaf

import (
	"errors"
	"fmt"

	"github.com/aaron-recompile/taproot/bitcoin/script"
	"github.com/aaron-recompile/taproot/bitcoin/tagged"
)

// DefaultLeafVersion is the tapscript leaf version used throughout this
// module (BIP-342).
const DefaultLeafVersion byte = 0xC0

// ErrThresholdOutOfRange is returned when a Multisig threshold k does not
// satisfy 1 <= k <= len(pubkeys).
var ErrThresholdOutOfRange = errors.New("leaf: multisig threshold out of range")

// ErrEmptyCustomScript is returned when Custom wraps a zero-length script.
var ErrEmptyCustomScript = errors.New("leaf: custom script is empty")

// Kind is the closed set of script templates a leaf can compile to. It
// replaces the string-plus-parameter-dict shape of a script-kind
// description with a Go sum type: Compile dispatches directly on the
// concrete type, no shared "kind string" or parameter map.
type Kind interface {
	// Compile returns the tapscript bytes for this kind.
	Compile() ([]byte, error)

	// kindName identifies the variant for diagnostics (Explain, errors).
	kindName() string
}

// Hashlock locks spending behind revealing a SHA256 preimage:
// OP_SHA256 <hash> OP_EQUALVERIFY OP_TRUE.
type Hashlock struct {
	PreimageHash [32]byte
}

func (h Hashlock) Compile() ([]byte, error) {
	return script.NewBuilder().
		AddOp(script.OP_SHA256).
		AddData(h.PreimageHash[:]).
		AddOp(script.OP_EQUALVERIFY).
		AddOp(script.OP_TRUE).
		Script()
}

func (h Hashlock) kindName() string { return "hashlock" }

// Checksig locks spending behind a single Schnorr signature:
// <xonly> OP_CHECKSIG.
type Checksig struct {
	Pubkey [32]byte
}

func (c Checksig) Compile() ([]byte, error) {
	return script.NewBuilder().
		AddData(c.Pubkey[:]).
		AddOp(script.OP_CHECKSIG).
		Script()
}

func (c Checksig) kindName() string { return "checksig" }

// Multisig locks spending behind K of the listed Pubkeys using
// OP_CHECKSIGADD: OP_0 P1 OP_CHECKSIGADD P2 OP_CHECKSIGADD ... Pn
// OP_CHECKSIGADD OP_<k> OP_EQUAL.
type Multisig struct {
	K       uint8
	Pubkeys [][32]byte
}

func (m Multisig) Compile() ([]byte, error) {
	if m.K < 1 || int(m.K) > len(m.Pubkeys) {
		return nil, fmt.Errorf("%w: k=%d pubkeys=%d", ErrThresholdOutOfRange, m.K, len(m.Pubkeys))
	}

	b := script.NewBuilder().AddInt64(0)
	for _, pk := range m.Pubkeys {
		b = b.AddData(pk[:]).AddOp(script.OP_CHECKSIGADD)
	}
	b = b.AddInt64(int64(m.K)).AddOp(script.OP_EQUAL)

	return b.Script()
}

func (m Multisig) kindName() string { return "multisig" }

// CSVTimelock locks spending behind a relative-locktime check followed by
// a signature: <seq> OP_CHECKSEQUENCEVERIFY OP_DROP <xonly> OP_CHECKSIG.
// Sequence is the already-encoded BIP-68 value (block count, or
// 0x400000|(seconds/512) for time-based locks — see EncodeBlocksSequence/
// EncodeSecondsSequence).
type CSVTimelock struct {
	Sequence uint32
	Pubkey   [32]byte
}

// EncodeBlocksSequence returns the BIP-68 sequence value for a block-count
// relative timelock of n blocks.
func EncodeBlocksSequence(n uint16) uint32 {
	return uint32(n)
}

// EncodeSecondsSequence returns the BIP-68 sequence value for a
// time-based relative timelock of the given duration in seconds, rounded
// down to the nearest 512-second unit.
func EncodeSecondsSequence(seconds uint32) uint32 {
	const (
		typeFlag = 0x400000
		unit     = 512
	)
	return typeFlag | (seconds / unit)
}

func (c CSVTimelock) Compile() ([]byte, error) {
	return script.NewBuilder().
		AddInt64(int64(c.Sequence)).
		AddOp(script.OP_CHECKSEQUENCEVERIFY).
		AddOp(script.OP_DROP).
		AddData(c.Pubkey[:]).
		AddOp(script.OP_CHECKSIG).
		Script()
}

func (c CSVTimelock) kindName() string { return "csv_timelock" }

// Custom wraps raw tapscript bytes used verbatim, for scripts this module
// has no dedicated kind for.
type Custom struct {
	ScriptBytes []byte
}

func (c Custom) Compile() ([]byte, error) {
	if len(c.ScriptBytes) == 0 {
		return nil, ErrEmptyCustomScript
	}
	return c.ScriptBytes, nil
}

func (c Custom) kindName() string { return "custom" }

// Descriptor names a leaf within a script tree and carries its compiled
// form once Compile has run.
type Descriptor struct {
	Label       string
	Index       int
	Kind        Kind
	LeafVersion byte

	// ScriptBytes and LeafHash are populated by Compile.
	ScriptBytes []byte
	LeafHash    [32]byte
}

// NewDescriptor builds a Descriptor for the given label/kind, defaulting
// LeafVersion to DefaultLeafVersion.
func NewDescriptor(label string, index int, kind Kind) *Descriptor {
	return &Descriptor{
		Label:       label,
		Index:       index,
		Kind:        kind,
		LeafVersion: DefaultLeafVersion,
	}
}

// Compile compiles the leaf's Kind into tapscript bytes and computes its
// tapleaf hash. It is always run — this module never leaves leaf hashes
// unset or empty.
func (d *Descriptor) Compile() error {
	scriptBytes, err := d.Kind.Compile()
	if err != nil {
		return fmt.Errorf("leaf %q: %w", d.Label, err)
	}

	d.ScriptBytes = scriptBytes
	d.LeafHash = LeafHash(d.LeafVersion, scriptBytes)

	return nil
}

// LeafHash computes tapleaf_hash(script_bytes, leaf_version) per BIP-341:
// TaggedHash("TapLeaf", leaf_version || compact_size(len(script)) || script).
func LeafHash(leafVersion byte, scriptBytes []byte) [32]byte {
	return tagged.Hash("TapLeaf", []byte{leafVersion}, script.CompactSize(uint64(len(scriptBytes))), scriptBytes)
}

// DetectDuplicateLabels returns an error naming the first label that
// appears more than once, or nil if all labels are unique.
func DetectDuplicateLabels(descriptors []*Descriptor) error {
	seen := make(map[string]bool, len(descriptors))
	for _, d := range descriptors {
		if seen[d.Label] {
			return fmt.Errorf("leaf: duplicate label %q", d.Label)
		}
		seen[d.Label] = true
	}
	return nil
}
