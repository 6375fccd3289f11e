// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package spend_test

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aaron-recompile/taproot/bitcoin/keys"
	"github.com/aaron-recompile/taproot/bitcoin/leaf"
	"github.com/aaron-recompile/taproot/bitcoin/spend"
	"github.com/aaron-recompile/taproot/bitcoin/taptree"
)

const (
	aliceWIF = "cRxebG1hY6vVgS9CSLNaEbEJaXkpZvc6nFeqqGT7v6gcW7MbzKNT"
	bobWIF   = "cSNdLFDf3wjx1rswNL2jKykbVkC6o56o5nYZi4FUkWKjFn2Q5DSG"
)

func s2Program(t *testing.T) (*taptree.Program, keys.Key, keys.Key) {
	alice, err := keys.FromWIF(aliceWIF)
	require.NoError(t, err)
	bob, err := keys.FromWIF(bobWIF)
	require.NoError(t, err)

	preimageHash := sha256.Sum256([]byte("helloworld"))

	descriptors := []*leaf.Descriptor{
		leaf.NewDescriptor("hashlock", 0, leaf.Hashlock{PreimageHash: preimageHash}),
		leaf.NewDescriptor("multisig", 1, leaf.Multisig{K: 2, Pubkeys: [][32]byte{alice.XOnly(), bob.XOnly()}}),
		leaf.NewDescriptor("csv", 2, leaf.CSVTimelock{Sequence: leaf.EncodeBlocksSequence(2), Pubkey: bob.XOnly()}),
		leaf.NewDescriptor("checksig", 3, leaf.Checksig{Pubkey: bob.XOnly()}),
	}

	prog, err := taptree.Compile(alice.XOnly(), descriptors)
	require.NoError(t, err)

	return prog, alice, bob
}

// TestBuilder_S3_HashlockSpend is the spec's scenario S3.
func TestBuilder_S3_HashlockSpend(t *testing.T) {
	prog, _, _ := s2Program(t)

	b, err := spend.Spend(prog, "hashlock")
	require.NoError(t, err)

	tx, err := b.
		FromUTXO("1ac1291483b44528e711af42b2c959b8b06fc467231f6c1f8fb365e9ca3372b3", 1, 3000).
		To("tb1qr65sfajzw8f4rh8d593zm6wryxcukulygv2209", 2500).
		Unlock([]byte("helloworld")).
		Build()
	require.NoError(t, err)

	require.Len(t, tx.Inputs[0].Witness, 3) // preimage, script, control block
	require.Equal(t, []byte("helloworld"), tx.Inputs[0].Witness[0])
	require.Equal(t, "d67cf29fc6cfef1490d39dc4753dc4a3cdac8e69ce7c5b39cfdea1c233dbeea5", tx.TxIDHex())
}

// TestBuilder_S4_TwoOfTwoScriptPath_DirectBuild is the direct-build half
// of the spec's scenario S4; the PSBT path is compared against it in
// psbt's TestS4_PSBTPath_MatchesDirectBuild.
func TestBuilder_S4_TwoOfTwoScriptPath_DirectBuild(t *testing.T) {
	prog, alice, bob := s2Program(t)

	b, err := spend.Spend(prog, "multisig")
	require.NoError(t, err)

	tx, err := b.
		FromUTXO("76906b969d65177c5d8af3103e683aa1c02abafa94368d6a6ae1fe78b8aa49dd", 0, 2888).
		To("tb1qr65sfajzw8f4rh8d593zm6wryxcukulygv2209", 2388).
		Sign(alice, bob).
		Build()
	require.NoError(t, err)

	require.Len(t, tx.Inputs[0].Witness, 4) // sig(bob), sig(alice), script, control block
	require.Equal(t, "93c0e6ab682e2e5d088cc8175aaddc5d62f4b1de2b234dad566085a97b60581d", tx.TxIDHex())
}

// TestBuilder_S5_KeyPath_Build is the spec's scenario S5.
func TestBuilder_S5_KeyPath_Build(t *testing.T) {
	prog, alice, _ := s2Program(t)

	tx, err := spend.KeyPath(prog).
		FromUTXO("a1d7aaff7316fda7dd557632d992c6e57a4bfcf145192b9d618be36d4090638d", 0, 2686).
		To("tb1qr65sfajzw8f4rh8d593zm6wryxcukulygv2209", 2186).
		Sign(alice).
		Build()
	require.NoError(t, err)

	require.Len(t, tx.Inputs[0].Witness, 1)
	require.Len(t, tx.Inputs[0].Witness[0], 64)
	require.Equal(t, "63f444792332bcb173975fa2cf4d88a2620bc47b9d434768bf23477667f963b4", tx.TxIDHex())
}

// TestBuilder_S6_CSVTimelock_Build is the spec's scenario S6.
func TestBuilder_S6_CSVTimelock_Build(t *testing.T) {
	prog, _, bob := s2Program(t)

	b, err := spend.Spend(prog, "csv")
	require.NoError(t, err)

	tx, err := b.
		FromUTXO("3ff99c8eaf9b9e2f42016f2b4c7659e11c8dcb4dc36f24ed7288a63b04c308f0", 1, 2666).
		To("tb1qr65sfajzw8f4rh8d593zm6wryxcukulygv2209", 2166).
		Sign(bob).
		Build()
	require.NoError(t, err)

	require.Equal(t, uint32(2), tx.Inputs[0].Sequence)
	require.Equal(t, "dc48b4b9122b59a92d96dda21796b598e1e1b45388c17b3fd42b7c01dba3a122", tx.TxIDHex())
}

func TestBuilder_MissingUTXO(t *testing.T) {
	prog, _, _ := s2Program(t)

	b, err := spend.Spend(prog, "hashlock")
	require.NoError(t, err)

	_, err = b.To("tb1qr65sfajzw8f4rh8d593zm6wryxcukulygv2209", 100).Build()
	require.ErrorIs(t, err, spend.ErrMissingUTXO)
}

func TestBuilder_MissingOutput(t *testing.T) {
	prog, _, _ := s2Program(t)

	b, err := spend.Spend(prog, "hashlock")
	require.NoError(t, err)

	_, err = b.FromUTXO("1ac1291483b44528e711af42b2c959b8b06fc467231f6c1f8fb365e9ca3372b3", 0, 1000).Build()
	require.ErrorIs(t, err, spend.ErrMissingOutput)
}

func TestBuilder_MissingPreimage(t *testing.T) {
	prog, _, _ := s2Program(t)

	b, err := spend.Spend(prog, "hashlock")
	require.NoError(t, err)

	_, err = b.
		FromUTXO("1ac1291483b44528e711af42b2c959b8b06fc467231f6c1f8fb365e9ca3372b3", 0, 1000).
		To("tb1qr65sfajzw8f4rh8d593zm6wryxcukulygv2209", 900).
		Build()
	require.ErrorIs(t, err, spend.ErrMissingPreimage)
}

func TestBuilder_InsufficientSigners(t *testing.T) {
	prog, alice, _ := s2Program(t)

	b, err := spend.Spend(prog, "multisig")
	require.NoError(t, err)

	_, err = b.
		FromUTXO("1ac1291483b44528e711af42b2c959b8b06fc467231f6c1f8fb365e9ca3372b3", 0, 1000).
		To("tb1qr65sfajzw8f4rh8d593zm6wryxcukulygv2209", 900).
		Sign(alice).
		Build()
	require.ErrorIs(t, err, spend.ErrInsufficientSigners)
}

func TestBuilder_NegativeFee(t *testing.T) {
	prog, _, bob := s2Program(t)

	b, err := spend.Spend(prog, "checksig")
	require.NoError(t, err)

	_, err = b.
		FromUTXO("1ac1291483b44528e711af42b2c959b8b06fc467231f6c1f8fb365e9ca3372b3", 0, 100).
		To("tb1qr65sfajzw8f4rh8d593zm6wryxcukulygv2209", 900).
		Sign(bob).
		Build()
	require.ErrorIs(t, err, spend.ErrNegativeFee)
}
