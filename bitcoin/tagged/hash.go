// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package tagged implements the BIP-340 tagged hash construction that
// every other domain-separated hash in this module (tapleaf, tapbranch,
// taptweak, the BIP-340 nonce and challenge hashes) is built from.
package tagged

import "crypto/sha256"

// Hash computes the BIP-340 tagged hash:
//
//	SHA256( SHA256(tag) || SHA256(tag) || data )
func Hash(tag string, data ...[]byte) [32]byte {
	tagSum := sha256.Sum256([]byte(tag))

	h := sha256.New()
	h.Write(tagSum[:])
	h.Write(tagSum[:])
	for _, d := range data {
		h.Write(d)
	}

	var out [32]byte
	copy(out[:], h.Sum(nil))

	return out
}
