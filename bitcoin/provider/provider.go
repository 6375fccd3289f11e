// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package provider implements thin HTTP clients over Esplora-style block
// explorer APIs (Blockstream, mempool.space): broadcast a raw
// transaction, fetch an address's UTXOs, and read a fee-rate estimate.
// This is an external collaborator, not part of the core Taproot
// construction logic (spec §5, §6).
package provider

import (
	"context"
)

// UTXOInfo is one unspent output as reported by a block explorer.
type UTXOInfo struct {
	TxID   string
	Vout   uint32
	Amount int64 // satoshis
}

// Provider is a network data source: broadcast, UTXO lookup, fee
// estimation. Implementations must be safe for concurrent use.
type Provider interface {
	// Broadcast submits a raw transaction (hex-encoded) to the network
	// and returns its txid.
	Broadcast(ctx context.Context, txHex string) (string, error)

	// UTXOs returns the unspent outputs currently known for address.
	UTXOs(ctx context.Context, address string) ([]UTXOInfo, error)

	// FeeEstimate returns a fee rate in sat/vB targeting confirmation
	// within targetBlocks blocks.
	FeeEstimate(ctx context.Context, targetBlocks int) (float64, error)
}
