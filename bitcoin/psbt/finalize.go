// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package psbt

import (
	"errors"
	"fmt"

	"github.com/aaron-recompile/taproot/bitcoin/script"
	"github.com/aaron-recompile/taproot/bitcoin/txn"
)

// ErrCannotFinalize is returned by Finalize when an input has neither a
// TAP_KEY_SIG nor enough TAP_SCRIPT_SIG entries to build a witness.
var ErrCannotFinalize = errors.New("psbt: input cannot be finalized, missing signatures")

// Finalize builds FINAL_SCRIPT_WITNESS for every input from its recorded
// signatures (spec §4.8 step 2): a TAP_KEY_SIG input finalizes to a
// single-item key-path witness; a TAP_LEAF_SCRIPT input finalizes to the
// CHECKSIGADD LIFO-ordered signatures (via the script's pubkey
// appearance order, reversed) followed by the script and control block.
// Pubkeys with no recorded signature are skipped, not padded.
func (p *Packet) Finalize() error {
	for i, in := range p.Inputs {
		if err := finalizeInput(in); err != nil {
			return fmt.Errorf("psbt: input %d: %w", i, err)
		}
	}
	return nil
}

func finalizeInput(in *Input) error {
	if in.HasFinalScriptWitness {
		return nil
	}

	if in.TapKeySig != nil {
		in.FinalScriptWitness = [][]byte{in.TapKeySig}
		in.HasFinalScriptWitness = true
		return nil
	}

	if in.HasTapLeafScript && len(in.TapScriptSigs) > 0 {
		pubkeys := script.ExtractPubkeys(in.TapLeafScript)

		sigsByPubkey := make(map[[32]byte][]byte, len(in.TapScriptSigs))
		for k, sig := range in.TapScriptSigs {
			sigsByPubkey[k.XOnly] = sig
		}

		var stack [][]byte
		for i := len(pubkeys) - 1; i >= 0; i-- {
			var xonly [32]byte
			copy(xonly[:], pubkeys[i])
			if sig, ok := sigsByPubkey[xonly]; ok {
				stack = append(stack, sig)
			}
		}

		if len(stack) == 0 {
			return ErrCannotFinalize
		}

		stack = append(stack, in.TapLeafScript, in.TapLeafControlBlock)
		in.FinalScriptWitness = stack
		in.HasFinalScriptWitness = true
		return nil
	}

	return ErrCannotFinalize
}

// ExtractTransaction assembles the final signed transaction: the
// packet's transaction (direct for v0, assembled from v2 fields)
// carrying every input's FINAL_SCRIPT_WITNESS. All inputs must already
// be finalized.
func (p *Packet) ExtractTransaction() (*txn.Tx, error) {
	tx, err := p.AssembleTx()
	if err != nil {
		return nil, err
	}

	if p.Version == 0 {
		// Copy so mutating the extracted tx's witnesses never reaches
		// back into the packet's own UnsignedTx.
		clone := *tx
		clone.Inputs = append([]txn.TxIn{}, tx.Inputs...)
		tx = &clone
	}

	for i, in := range p.Inputs {
		if !in.HasFinalScriptWitness {
			return nil, fmt.Errorf("%w: input %d not finalized", ErrCannotFinalize, i)
		}
		tx.Inputs[i].Witness = in.FinalScriptWitness
	}

	return tx, nil
}
