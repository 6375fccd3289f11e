// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package keys implements Key construction (WIF/hex/raw), BIP-340 tagged
// hashes over elliptic-curve points, and Schnorr sign/verify — the C1
// primitives every other component in this module is built on.
package keys

import (
	"bytes"
	"encoding/hex"
	"errors"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/base58"
)

// ErrInvalidKey is returned for malformed WIF/hex input, a zero scalar, or
// a public key with no valid x-only lift (spec §7, "InvalidKey").
var ErrInvalidKey = errors.New("invalid key")

const (
	wifCompressionFlag = 0x01
)

// Key is an immutable secp256k1 keypair. Equality is by x-only public key
// (spec §3). Obtain one via FromWIF, FromHex, or FromPrivateKeyBytes.
type Key struct {
	priv       *btcec.PrivateKey
	compressed bool
	wifVersion byte
}

// FromWIF parses a Base58Check Wallet Import Format string:
// version || priv32 || [0x01 compression flag] || checksum4.
func FromWIF(wif string) (Key, error) {
	decoded, version, err := base58.CheckDecode(wif)
	if err != nil {
		return Key{}, errors.Join(ErrInvalidKey, err)
	}

	compressed := false
	switch len(decoded) {
	case 32:
		compressed = false
	case 33:
		if decoded[32] != wifCompressionFlag {
			return Key{}, ErrInvalidKey
		}
		compressed = true
		decoded = decoded[:32]
	default:
		return Key{}, ErrInvalidKey
	}

	return FromPrivateKeyBytes(decoded, compressed, version)
}

// FromHex parses a 32-byte hex-encoded private key scalar.
func FromHex(hexPriv string) (Key, error) {
	raw, err := hex.DecodeString(hexPriv)
	if err != nil {
		return Key{}, errors.Join(ErrInvalidKey, err)
	}
	return FromPrivateKeyBytes(raw, true, 0)
}

// FromPrivateKeyBytes constructs a Key from a raw 32-byte scalar. wifVersion
// is retained so WIF() can round-trip the original network byte.
func FromPrivateKeyBytes(raw []byte, compressed bool, wifVersion byte) (Key, error) {
	if len(raw) != 32 {
		return Key{}, ErrInvalidKey
	}

	n := new(big.Int).SetBytes(raw)
	if n.Sign() == 0 || n.Cmp(btcec.S256().N) >= 0 {
		return Key{}, ErrInvalidKey
	}

	priv, pub := btcec.PrivKeyFromBytes(raw)
	_ = pub

	return Key{priv: priv, compressed: compressed, wifVersion: wifVersion}, nil
}

// WIF re-encodes the private key in Base58Check WIF form.
func (k Key) WIF() string {
	raw := k.priv.Serialize()
	if k.compressed {
		raw = append(append([]byte{}, raw...), wifCompressionFlag)
	}
	return base58.CheckEncode(raw, k.wifVersion)
}

// Compressed returns the 33-byte SEC1-compressed public key encoding.
func (k Key) Compressed() []byte {
	return k.priv.PubKey().SerializeCompressed()
}

// XOnly returns the 32-byte x-only public key encoding used throughout
// Taproot (the X coordinate of the public-key point, BIP-340 §"Public Key
// Conversion").
func (k Key) XOnly() [32]byte {
	var out [32]byte
	compressed := k.Compressed()
	copy(out[:], compressed[1:])
	return out
}

// HasEvenY reports whether the non-tweaked public key's Y coordinate is
// even — BIP-340's convention for selecting which of the two points with
// a given X coordinate is "the" public key.
func (k Key) HasEvenY() bool {
	pub := k.priv.PubKey()
	return pub.Y().Bit(0) == 0
}

// ScalarBytes returns the raw 32-byte private scalar. Callers must not log
// or otherwise persist this value; it is security-sensitive material
// (spec §3).
func (k Key) ScalarBytes() [32]byte {
	var out [32]byte
	copy(out[:], k.priv.Serialize())
	return out
}

// Equal compares two keys by x-only public key, per spec §3.
func (k Key) Equal(other Key) bool {
	a := k.XOnly()
	b := other.XOnly()
	return bytes.Equal(a[:], b[:])
}

// Wipe overwrites the key's scalar material with zero bytes. Best-effort:
// Go does not guarantee the backing array isn't already copied elsewhere,
// but this closes the obvious retention window once a Key is no longer
// needed (spec §3, "must be wiped on drop").
func (k *Key) Wipe() {
	if k.priv == nil {
		return
	}
	k.priv.Zero()
}
