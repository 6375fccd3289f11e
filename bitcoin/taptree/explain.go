// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package taptree

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Explanation is a human-readable and machine-readable description of a
// compiled Program, ported from the Python source's program explainer
// (supplemented feature, not present in the distilled spec).
type Explanation struct {
	InternalKey string        `json:"internal_key"`
	OutputKey   string        `json:"output_key"`
	MerkleRoot  string        `json:"merkle_root,omitempty"`
	Leaves      []LeafSummary `json:"leaves"`
}

// LeafSummary describes one compiled leaf for Explanation.
type LeafSummary struct {
	Label    string `json:"label"`
	Index    int    `json:"index"`
	Script   string `json:"script_hex"`
	LeafHash string `json:"leaf_hash"`
	Depth    int    `json:"depth"`
}

// Explain produces a structured and a textual description of the
// program's tree, ported from ProgramExplanation.to_text/to_dict.
func (p *Program) Explain() Explanation {
	exp := Explanation{
		InternalKey: hex.EncodeToString(p.InternalKeyXOnly[:]),
		OutputKey:   hex.EncodeToString(p.OutputKeyXOnly[:]),
	}
	if len(p.MerkleRoot) > 0 {
		exp.MerkleRoot = hex.EncodeToString(p.MerkleRoot)
	}

	for i, d := range p.Leaves {
		proof, _ := p.MerkleProof(i)
		exp.Leaves = append(exp.Leaves, LeafSummary{
			Label:    d.Label,
			Index:    i,
			Script:   hex.EncodeToString(d.ScriptBytes),
			LeafHash: hex.EncodeToString(d.LeafHash[:]),
			Depth:    len(proof),
		})
	}

	return exp
}

// Text renders Explanation as an indented tree drawing, one line per
// leaf in index order, each indented by its depth.
func (e Explanation) Text() string {
	var b strings.Builder

	fmt.Fprintf(&b, "internal_key: %s\n", e.InternalKey)
	fmt.Fprintf(&b, "output_key:   %s\n", e.OutputKey)
	if e.MerkleRoot != "" {
		fmt.Fprintf(&b, "merkle_root:  %s\n", e.MerkleRoot)
	} else {
		b.WriteString("merkle_root:  (key-path only)\n")
	}

	for _, leafSummary := range e.Leaves {
		fmt.Fprintf(&b, "%sleaf[%d] %q depth=%d script=%s\n",
			strings.Repeat("  ", leafSummary.Depth+1),
			leafSummary.Index, leafSummary.Label, leafSummary.Depth, leafSummary.Script)
	}

	return b.String()
}
