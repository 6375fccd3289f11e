// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package address decodes destination addresses (P2PKH, P2WPKH, P2TR)
// into scriptPubKey bytes for use by the spend builder's output side.
// Taproot address *encoding* for a compiled program lives on
// taptree.Program.Address; this package is the decode direction needed
// to pay an arbitrary external address (spec §6).
package address

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/btcutil/bech32"
)

// ErrUnsupportedAddress is returned for an address this module has no
// scriptPubKey template for.
var ErrUnsupportedAddress = errors.New("address: unsupported or malformed address")

const (
	p2pkhOpDup         = 0x76
	p2pkhOpHash160     = 0xa9
	p2pkhPushHash      = 0x14
	p2pkhOpEqualVerify = 0x88
	p2pkhOpCheckSig    = 0xac
)

// ScriptPubKey decodes a destination address string into its
// scriptPubKey bytes. Supports legacy Base58Check P2PKH and SegWit
// bech32/bech32m (P2WPKH witness v0, P2TR witness v1).
func ScriptPubKey(addr string) ([]byte, error) {
	if spk, ok, err := decodeBech32(addr); ok || err != nil {
		return spk, err
	}
	return decodeBase58P2PKH(addr)
}

func decodeBech32(addr string) ([]byte, bool, error) {
	_, data, encoding, err := bech32.DecodeGeneric(addr)
	if err != nil {
		return nil, false, nil // not a bech32 string at all; let base58 try
	}

	if len(data) == 0 {
		return nil, true, fmt.Errorf("%w: empty witness program", ErrUnsupportedAddress)
	}

	witnessVersion := data[0]
	converted, err := bech32.ConvertBits(data[1:], 5, 8, false)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %s", ErrUnsupportedAddress, err)
	}

	isBech32m := encoding == bech32.Bech32m

	switch {
	case witnessVersion == 0 && !isBech32m && len(converted) == 20:
		return append([]byte{0x00, 0x14}, converted...), true, nil
	case witnessVersion == 1 && isBech32m && len(converted) == 32:
		return append([]byte{0x51, 0x20}, converted...), true, nil
	default:
		return nil, true, fmt.Errorf("%w: witness version %d length %d", ErrUnsupportedAddress, witnessVersion, len(converted))
	}
}

// decodeBase58P2PKH decodes a legacy Base58Check address into a P2PKH
// scriptPubKey: OP_DUP OP_HASH160 <20-byte hash> OP_EQUALVERIFY OP_CHECKSIG.
func decodeBase58P2PKH(addr string) ([]byte, error) {
	decoded, _, err := base58.CheckDecode(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAddress, err)
	}
	if len(decoded) != 20 {
		return nil, fmt.Errorf("%w: hash length %d", ErrUnsupportedAddress, len(decoded))
	}

	out := make([]byte, 0, 25)
	out = append(out, p2pkhOpDup, p2pkhOpHash160, p2pkhPushHash)
	out = append(out, decoded...)
	out = append(out, p2pkhOpEqualVerify, p2pkhOpCheckSig)

	return out, nil
}
