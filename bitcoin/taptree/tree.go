// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package taptree compiles a list of leaf descriptors into a balanced
// Taproot script tree: Merkle root, per-leaf proofs, control blocks, the
// tweaked output key, and the resulting bech32m address.
package taptree

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"

	"github.com/aaron-recompile/taproot/bitcoin/keys"
	"github.com/aaron-recompile/taproot/bitcoin/leaf"
	"github.com/aaron-recompile/taproot/bitcoin/tagged"
)

// ErrUnknownLeaf is returned when a lookup by label or index finds no
// matching leaf.
var ErrUnknownLeaf = errors.New("taptree: unknown leaf")

// HRP selects the bech32m human-readable part for an address network.
type HRP string

const (
	HRPMainnet HRP = "bc"
	HRPTestnet HRP = "tb"
	HRPRegtest HRP = "bcrt"
)

// BranchHash computes tapbranch_hash(a, b): the pair is sorted
// lexicographically before concatenation, making the combination
// commutative (spec §4.1, testable property 2).
func BranchHash(a, b [32]byte) [32]byte {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return tagged.Hash("TapBranch", a[:], b[:])
}

// node is an internal build-tree result: its own hash plus the sibling
// path recorded for every leaf beneath it.
type node struct {
	hash  [32]byte
	paths map[int][][32]byte // leaf index -> accumulated sibling path so far
}

// buildTree implements the canonical balanced split of spec §4.3: L=1 is
// the leaf hash itself; L>=2 splits at mid=L/2 and combines via
// BranchHash. Sibling paths are accumulated bottom-up so each leaf ends
// up with the ordered list of siblings from leaf to root.
func buildTree(leafHashes [][32]byte, indices []int) node {
	if len(leafHashes) == 1 {
		return node{
			hash:  leafHashes[0],
			paths: map[int][][32]byte{indices[0]: nil},
		}
	}

	mid := len(leafHashes) / 2
	left := buildTree(leafHashes[:mid], indices[:mid])
	right := buildTree(leafHashes[mid:], indices[mid:])

	combined := node{
		hash:  BranchHash(left.hash, right.hash),
		paths: make(map[int][][32]byte, len(indices)),
	}

	for idx, path := range left.paths {
		combined.paths[idx] = append(append([][32]byte{}, path...), right.hash)
	}
	for idx, path := range right.paths {
		combined.paths[idx] = append(append([][32]byte{}, path...), left.hash)
	}

	return combined
}

// Program is a compiled Taproot script tree: the internal key, its
// leaves, the Merkle root (if any), the tweaked output key, and the
// resulting address. It owns its leaves and is immutable once returned
// by Compile — safe to share across goroutines (spec §5).
type Program struct {
	InternalKeyXOnly [32]byte
	Leaves           []*leaf.Descriptor
	MerkleRoot       []byte // nil for a key-path-only (zero-leaf) program
	OutputKeyXOnly   [32]byte
	OutputYParity    int

	proofs map[int][][32]byte
}

// Compile compiles descriptors (already labeled and indexed) into a
// Program rooted at internalKeyXOnly. Every leaf is compiled (script
// bytes + leaf hash) as part of this call; leaf hashes are never left
// empty (Open Question resolution: always computed).
func Compile(internalKeyXOnly [32]byte, descriptors []*leaf.Descriptor) (*Program, error) {
	if err := leaf.DetectDuplicateLabels(descriptors); err != nil {
		return nil, err
	}

	for _, d := range descriptors {
		if err := d.Compile(); err != nil {
			return nil, err
		}
	}

	prog := &Program{
		InternalKeyXOnly: internalKeyXOnly,
		Leaves:           descriptors,
	}

	var merkleRoot []byte
	if len(descriptors) > 0 {
		leafHashes := make([][32]byte, len(descriptors))
		indices := make([]int, len(descriptors))
		for i, d := range descriptors {
			leafHashes[i] = d.LeafHash
			indices[i] = i
		}

		root := buildTree(leafHashes, indices)
		merkleRoot = root.hash[:]
		prog.proofs = root.paths
	}

	outputXOnly, parity, err := keys.TweakOutputKey(internalKeyXOnly, merkleRoot)
	if err != nil {
		return nil, err
	}

	prog.MerkleRoot = merkleRoot
	prog.OutputKeyXOnly = outputXOnly
	prog.OutputYParity = parity

	return prog, nil
}

// LeafByLabel finds a leaf by label.
func (p *Program) LeafByLabel(label string) (*leaf.Descriptor, error) {
	for _, d := range p.Leaves {
		if d.Label == label {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: label %q", ErrUnknownLeaf, label)
}

// MerkleProof returns the ordered sibling hashes from leaf i to the root.
func (p *Program) MerkleProof(leafIndex int) ([][32]byte, error) {
	path, ok := p.proofs[leafIndex]
	if !ok {
		return nil, fmt.Errorf("%w: index %d", ErrUnknownLeaf, leafIndex)
	}
	return path, nil
}

// ControlBlock builds the control block for spending leaf i:
// (leaf_version & 0xFE | y_parity) || internal_xonly || merkle_proof(i).
// Its length always equals 33 + 32*depth(i) (spec §4.4, testable
// property 4).
func (p *Program) ControlBlock(leafIndex int) ([]byte, error) {
	if leafIndex < 0 || leafIndex >= len(p.Leaves) {
		return nil, fmt.Errorf("%w: index %d", ErrUnknownLeaf, leafIndex)
	}
	d := p.Leaves[leafIndex]

	proof, err := p.MerkleProof(leafIndex)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, 33+32*len(proof))
	out = append(out, (d.LeafVersion&0xFE)|byte(p.OutputYParity))
	out = append(out, p.InternalKeyXOnly[:]...)
	for _, sibling := range proof {
		out = append(out, sibling[:]...)
	}

	return out, nil
}

// ScriptPubKey returns the P2TR scriptPubKey for the program's output
// key: OP_1 <32-byte output key>.
func (p *Program) ScriptPubKey() []byte {
	out := make([]byte, 0, 34)
	out = append(out, 0x51, 0x20)
	out = append(out, p.OutputKeyXOnly[:]...)
	return out
}

// Address encodes the program's output key as a bech32m witness-v1
// address (spec §4.3, §6).
func (p *Program) Address(hrp HRP) (string, error) {
	converted, err := bech32.ConvertBits(p.OutputKeyXOnly[:], 8, 5, true)
	if err != nil {
		return "", err
	}

	data := append([]byte{1}, converted...) // witness version 1
	return bech32.EncodeM(string(hrp), data)
}
