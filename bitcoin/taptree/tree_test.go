// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package taptree_test

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aaron-recompile/taproot/bitcoin/keys"
	"github.com/aaron-recompile/taproot/bitcoin/leaf"
	"github.com/aaron-recompile/taproot/bitcoin/taptree"
)

const (
	aliceWIF = "cRxebG1hY6vVgS9CSLNaEbEJaXkpZvc6nFeqqGT7v6gcW7MbzKNT"
	bobWIF   = "cSNdLFDf3wjx1rswNL2jKykbVkC6o56o5nYZi4FUkWKjFn2Q5DSG"
)

func aliceAndBobXOnly(t *testing.T) (alice, bob [32]byte) {
	a, err := keys.FromWIF(aliceWIF)
	require.NoError(t, err)
	b, err := keys.FromWIF(bobWIF)
	require.NoError(t, err)
	return a.XOnly(), b.XOnly()
}

func TestBranchHash_Commutative(t *testing.T) {
	var a, b [32]byte
	a[0], b[0] = 0x01, 0x02

	require.Equal(t, taptree.BranchHash(a, b), taptree.BranchHash(b, a))
}

// TestProgram_S2_FourLeafAddress is the spec's scenario S2.
func TestProgram_S2_FourLeafAddress(t *testing.T) {
	alice, bob := aliceAndBobXOnly(t)

	preimageHash := sha256Sum("helloworld")

	descriptors := []*leaf.Descriptor{
		leaf.NewDescriptor("hashlock", 0, leaf.Hashlock{PreimageHash: preimageHash}),
		leaf.NewDescriptor("multisig", 1, leaf.Multisig{K: 2, Pubkeys: [][32]byte{alice, bob}}),
		leaf.NewDescriptor("csv", 2, leaf.CSVTimelock{Sequence: leaf.EncodeBlocksSequence(2), Pubkey: bob}),
		leaf.NewDescriptor("checksig", 3, leaf.Checksig{Pubkey: bob}),
	}

	prog, err := taptree.Compile(alice, descriptors)
	require.NoError(t, err)

	addr, err := prog.Address(taptree.HRPTestnet)
	require.NoError(t, err)
	require.Equal(t, "tb1pjfdm902y2adr08qnn4tahxjvp6x5selgmvzx63yfqk2hdey02yvqjcr29q", addr)
}

func TestProgram_MerkleProof_ReconstructsRoot(t *testing.T) {
	alice, bob := aliceAndBobXOnly(t)

	descriptors := []*leaf.Descriptor{
		leaf.NewDescriptor("a", 0, leaf.Checksig{Pubkey: alice}),
		leaf.NewDescriptor("b", 1, leaf.Checksig{Pubkey: bob}),
		leaf.NewDescriptor("c", 2, leaf.Hashlock{PreimageHash: sha256Sum("x")}),
	}

	prog, err := taptree.Compile(alice, descriptors)
	require.NoError(t, err)

	for i, d := range descriptors {
		proof, err := prog.MerkleProof(i)
		require.NoError(t, err)

		acc := d.LeafHash
		for _, sibling := range proof {
			acc = taptree.BranchHash(acc, sibling)
		}

		require.Equal(t, prog.MerkleRoot, acc[:])
	}
}

func TestProgram_ControlBlock_Shape(t *testing.T) {
	alice, bob := aliceAndBobXOnly(t)

	descriptors := []*leaf.Descriptor{
		leaf.NewDescriptor("a", 0, leaf.Checksig{Pubkey: alice}),
		leaf.NewDescriptor("b", 1, leaf.Checksig{Pubkey: bob}),
		leaf.NewDescriptor("c", 2, leaf.Checksig{Pubkey: alice}),
	}

	prog, err := taptree.Compile(alice, descriptors)
	require.NoError(t, err)

	for i := range descriptors {
		cb, err := prog.ControlBlock(i)
		require.NoError(t, err)

		proof, err := prog.MerkleProof(i)
		require.NoError(t, err)

		require.Equal(t, byte(0xC0), cb[0]&0xFE)
		require.Len(t, cb, 33+32*len(proof))
	}
}

func TestProgram_SingleLeaf_EmptyProof(t *testing.T) {
	alice, _ := aliceAndBobXOnly(t)

	descriptors := []*leaf.Descriptor{
		leaf.NewDescriptor("only", 0, leaf.Checksig{Pubkey: alice}),
	}

	prog, err := taptree.Compile(alice, descriptors)
	require.NoError(t, err)
	require.Equal(t, descriptors[0].LeafHash[:], prog.MerkleRoot)

	cb, err := prog.ControlBlock(0)
	require.NoError(t, err)
	require.Len(t, cb, 33)
}

func TestProgram_KeyPathOnly_EmptyLeaves(t *testing.T) {
	alice, _ := aliceAndBobXOnly(t)

	prog, err := taptree.Compile(alice, nil)
	require.NoError(t, err)
	require.Nil(t, prog.MerkleRoot)

	addr, err := prog.Address(taptree.HRPTestnet)
	require.NoError(t, err)
	require.Len(t, addr, 62)
}

func TestProgram_BalancedTreeCoverage_1to8Leaves(t *testing.T) {
	alice, bob := aliceAndBobXOnly(t)

	for n := 1; n <= 8; n++ {
		descriptors := make([]*leaf.Descriptor, 0, n)
		for i := 0; i < n; i++ {
			pk := alice
			if i%2 == 1 {
				pk = bob
			}
			descriptors = append(descriptors, leaf.NewDescriptor(label(i), i, leaf.Checksig{Pubkey: pk}))
		}

		prog, err := taptree.Compile(alice, descriptors)
		require.NoError(t, err, "n=%d", n)

		addr, err := prog.Address(taptree.HRPTestnet)
		require.NoError(t, err, "n=%d", n)
		require.Len(t, addr, 62, "n=%d", n)
		require.True(t, len(addr) >= 4 && addr[:3] == "tb1", "n=%d addr=%s", n, addr)
	}
}

func TestDuplicateLabel_Rejected(t *testing.T) {
	alice, _ := aliceAndBobXOnly(t)

	descriptors := []*leaf.Descriptor{
		leaf.NewDescriptor("dup", 0, leaf.Checksig{Pubkey: alice}),
		leaf.NewDescriptor("dup", 1, leaf.Checksig{Pubkey: alice}),
	}

	_, err := taptree.Compile(alice, descriptors)
	require.Error(t, err)
}

func label(i int) string {
	return string(rune('a' + i))
}

func sha256Sum(s string) [32]byte {
	return sha256.Sum256([]byte(s))
}
