// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package keys

import (
	"crypto/rand"
	"errors"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/aaron-recompile/taproot/bitcoin/tagged"
)

// ErrSignatureVerification is returned by Sign when the internally
// recovered signature fails self-verification — should be unreachable for
// a correctly implemented curve, retained as a hard failure surface rather
// than a silent bad signature (BIP-340 recommends this check).
var ErrSignatureVerification = errors.New("schnorr: signature failed self-verification")

// ErrPointNotOnCurve is returned by LiftX when no point with the given X
// coordinate exists on secp256k1.
var ErrPointNotOnCurve = errors.New("schnorr: x coordinate is not on the curve")

// AuxRandMode selects how Sign sources the 32 bytes of auxiliary
// randomness mixed into BIP-340 nonce generation.
type AuxRandMode struct {
	kind   auxRandKind
	caller [32]byte
}

type auxRandKind int

const (
	auxRandRandom auxRandKind = iota
	auxRandZero
	auxRandCaller
)

// RandomAuxRand draws aux_rand from crypto/rand, the default for
// production signing.
func RandomAuxRand() AuxRandMode { return AuxRandMode{kind: auxRandRandom} }

// ZeroAuxRand fixes aux_rand to all-zero bytes, producing deterministic
// signatures. Used by tests that assert on an exact signature value.
func ZeroAuxRand() AuxRandMode { return AuxRandMode{kind: auxRandZero} }

// CallerAuxRand fixes aux_rand to caller-supplied bytes.
func CallerAuxRand(b [32]byte) AuxRandMode { return AuxRandMode{kind: auxRandCaller, caller: b} }

var (
	curve  = btcec.S256()
	curveP = curve.Params().P
	curveN = curve.Params().N
)

// LiftX implements BIP-340's lift_x: given an X coordinate, returns the
// point (x, y) on secp256k1 with even Y, or ErrPointNotOnCurve if x is not
// a valid X coordinate.
func LiftX(x *big.Int) (px, py *big.Int, err error) {
	if x.Sign() < 0 || x.Cmp(curveP) >= 0 {
		return nil, nil, ErrPointNotOnCurve
	}

	// y^2 = x^3 + 7 mod p
	ySq := new(big.Int).Exp(x, big.NewInt(3), curveP)
	ySq.Add(ySq, big.NewInt(7))
	ySq.Mod(ySq, curveP)

	y := new(big.Int).ModSqrt(ySq, curveP)
	if y == nil {
		return nil, nil, ErrPointNotOnCurve
	}

	if y.Bit(0) != 0 {
		y.Sub(curveP, y)
	}

	return x, y, nil
}

// hasEvenY reports whether y is even.
func hasEvenY(y *big.Int) bool {
	return y.Bit(0) == 0
}

// taggedHashScalar reduces a BIP-340 tagged hash mod the curve order,
// matching the spec's use of tagged hashes as both nonces and challenges.
func taggedHashScalar(tag string, data ...[]byte) *big.Int {
	h := tagged.Hash(tag, data...)
	n := new(big.Int).SetBytes(h[:])
	return n.Mod(n, curveN)
}

// Sign produces a BIP-340 Schnorr signature over msg using priv, following
// the reference algorithm: derive a deterministic nonce from the private
// key, auxiliary randomness and the message, negate as needed for even-Y
// points, then compute s = k + e*d mod n.
func Sign(priv Key, msg [32]byte, auxMode AuxRandMode) ([64]byte, error) {
	var sig [64]byte

	d0 := new(big.Int).SetBytes(priv.ScalarBytes()[:])
	if d0.Sign() == 0 || d0.Cmp(curveN) >= 0 {
		return sig, ErrInvalidKey
	}

	// Normalize d so that the public point has an even Y, per BIP-340.
	px, py := curve.ScalarBaseMult(d0.Bytes())
	d := new(big.Int).Set(d0)
	if !hasEvenY(py) {
		d.Sub(curveN, d)
	}

	auxRand, err := resolveAuxRand(auxMode)
	if err != nil {
		return sig, err
	}

	auxHash := tagged.Hash("BIP0340/aux", auxRand[:])
	var dBytes [32]byte
	d.FillBytes(dBytes[:])

	var t [32]byte
	for i := 0; i < 32; i++ {
		t[i] = dBytes[i] ^ auxHash[i]
	}

	var xOnlyPx [32]byte
	px.FillBytes(xOnlyPx[:])

	k0 := taggedHashScalar("BIP0340/nonce", t[:], xOnlyPx[:], msg[:])
	if k0.Sign() == 0 {
		return sig, ErrInvalidKey
	}

	rx, ry := curve.ScalarBaseMult(k0.Bytes())
	k := new(big.Int).Set(k0)
	if !hasEvenY(ry) {
		k.Sub(curveN, k)
	}

	var rxBytes [32]byte
	rx.FillBytes(rxBytes[:])

	e := taggedHashScalar("BIP0340/challenge", rxBytes[:], xOnlyPx[:], msg[:])

	s := new(big.Int).Mul(e, d)
	s.Add(s, k)
	s.Mod(s, curveN)

	copy(sig[:32], rxBytes[:])
	var sBytes [32]byte
	s.FillBytes(sBytes[:])
	copy(sig[32:], sBytes[:])

	if !Verify(priv.XOnly(), msg, sig) {
		return sig, ErrSignatureVerification
	}

	return sig, nil
}

// resolveAuxRand materializes 32 bytes of auxiliary randomness for the
// chosen AuxRandMode.
func resolveAuxRand(mode AuxRandMode) ([32]byte, error) {
	var out [32]byte
	switch mode.kind {
	case auxRandZero:
		return out, nil
	case auxRandCaller:
		return mode.caller, nil
	default:
		if _, err := rand.Read(out[:]); err != nil {
			return out, err
		}
		return out, nil
	}
}

// Verify checks a BIP-340 Schnorr signature sig over msg against the
// x-only public key pubkey.
func Verify(pubkey [32]byte, msg [32]byte, sig [64]byte) bool {
	px := new(big.Int).SetBytes(pubkey[:])
	_, py, err := LiftX(px)
	if err != nil {
		return false
	}

	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:])
	if r.Cmp(curveP) >= 0 || s.Cmp(curveN) >= 0 {
		return false
	}

	e := taggedHashScalar("BIP0340/challenge", sig[:32], pubkey[:], msg[:])

	// R = s*G - e*P
	sx, sy := curve.ScalarBaseMult(s.Bytes())
	negE := new(big.Int).Sub(curveN, e)
	negE.Mod(negE, curveN)
	ex, ey := curve.ScalarMult(px, py, negE.Bytes())

	rx, ry := curve.Add(sx, sy, ex, ey)
	if rx.Sign() == 0 && ry.Sign() == 0 {
		return false
	}
	if !hasEvenY(ry) {
		return false
	}

	return rx.Cmp(r) == 0
}

// TweakOutputKey applies the BIP-341 output-key tweak to an internal
// x-only key: Q = P + t*G where t = tagged_hash("TapTweak", P || merkleRoot).
// Returns the resulting x-only key and the parity (0 even, 1 odd) of Q's Y
// coordinate, needed for control-block construction.
func TweakOutputKey(internalXOnly [32]byte, merkleRoot []byte) (outputXOnly [32]byte, parity int, err error) {
	px := new(big.Int).SetBytes(internalXOnly[:])
	_, py, err := LiftX(px)
	if err != nil {
		return outputXOnly, 0, err
	}

	t := tapTweakScalar(internalXOnly, merkleRoot)

	tx, ty := curve.ScalarBaseMult(t.Bytes())
	qx, qy := curve.Add(px, py, tx, ty)

	qx.FillBytes(outputXOnly[:])
	if !hasEvenY(qy) {
		parity = 1
	}

	return outputXOnly, parity, nil
}

// tapTweakScalar computes tagged_hash("TapTweak", internalXOnly || merkleRoot)
// reduced mod n. merkleRoot may be empty (key-path-only program, spec §4.3).
func tapTweakScalar(internalXOnly [32]byte, merkleRoot []byte) *big.Int {
	if len(merkleRoot) == 0 {
		return taggedHashScalar("TapTweak", internalXOnly[:])
	}
	return taggedHashScalar("TapTweak", internalXOnly[:], merkleRoot)
}

// TweakPrivateKey applies the corresponding private-key tweak: d' = d + t
// (negating d first if the internal public key has odd Y), producing the
// private key that signs for the tweaked output key.
func TweakPrivateKey(priv Key, merkleRoot []byte) (Key, error) {
	d0 := new(big.Int).SetBytes(priv.ScalarBytes()[:])
	px, py := curve.ScalarBaseMult(d0.Bytes())

	d := new(big.Int).Set(d0)
	if !hasEvenY(py) {
		d.Sub(curveN, d)
	}

	var internalXOnly [32]byte
	px.FillBytes(internalXOnly[:])

	t := tapTweakScalar(internalXOnly, merkleRoot)

	dPrime := new(big.Int).Add(d, t)
	dPrime.Mod(dPrime, curveN)

	var raw [32]byte
	dPrime.FillBytes(raw[:])

	return FromPrivateKeyBytes(raw[:], true, priv.wifVersion)
}
