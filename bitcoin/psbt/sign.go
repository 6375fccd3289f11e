// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package psbt

import (
	"errors"
	"fmt"

	"github.com/aaron-recompile/taproot/bitcoin/keys"
	"github.com/aaron-recompile/taproot/bitcoin/leaf"
	"github.com/aaron-recompile/taproot/bitcoin/sighash"
)

// ErrMissingTapFields is returned by SignWith when an input has neither a
// TAP_LEAF_SCRIPT (script-path) nor a TAP_INTERNAL_KEY (key-path) to sign
// against.
var ErrMissingTapFields = errors.New("psbt: input has no tap leaf script or internal key to sign against")

// SignWith adds key's partial signature to input i, per spec §4.8 step 1:
// if the input carries a TAP_LEAF_SCRIPT, this is a script-path signature
// stored under TAP_SCRIPT_SIG keyed by (signer x-only, leaf hash);
// otherwise it is a key-path signature over the tweaked internal key,
// stored under TAP_KEY_SIG. Re-signing the same (key, input) overwrites
// rather than duplicates the stored signature (spec §8 property 9).
func (p *Packet) SignWith(key keys.Key, inputIndex int) error {
	if inputIndex < 0 || inputIndex >= len(p.Inputs) {
		return fmt.Errorf("psbt: input index %d out of range", inputIndex)
	}
	in := p.Inputs[inputIndex]

	tx, err := p.AssembleTx()
	if err != nil {
		return err
	}

	prevouts, err := p.Prevouts()
	if err != nil {
		return err
	}

	switch {
	case in.HasTapLeafScript:
		leafHash := leaf.LeafHash(in.TapLeafVersion, in.TapLeafScript)
		ext := &sighash.ScriptPathExtension{LeafHash: leafHash}

		digest, err := sighash.TaprootSighash(tx, inputIndex, prevouts, ext)
		if err != nil {
			return err
		}

		sig, err := keys.Sign(key, digest, keys.ZeroAuxRand())
		if err != nil {
			return err
		}

		if in.TapScriptSigs == nil {
			in.TapScriptSigs = make(map[TapScriptSigKey][]byte)
		}
		in.TapScriptSigs[TapScriptSigKey{XOnly: key.XOnly(), LeafHash: leafHash}] = sig[:]
		return nil

	case in.HasTapInternalKey:
		tweaked, err := keys.TweakPrivateKey(key, in.TapMerkleRoot)
		if err != nil {
			return err
		}

		digest, err := sighash.TaprootSighash(tx, inputIndex, prevouts, nil)
		if err != nil {
			return err
		}

		sig, err := keys.Sign(tweaked, digest, keys.ZeroAuxRand())
		if err != nil {
			return err
		}

		in.TapKeySig = sig[:]
		return nil

	default:
		return ErrMissingTapFields
	}
}
