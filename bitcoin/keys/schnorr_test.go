// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package keys_test

import (
	"crypto/sha256"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aaron-recompile/taproot/bitcoin/keys"
)

func TestSign_Verify_RoundTrip(t *testing.T) {
	k, err := keys.FromWIF(aliceWIF)
	require.NoError(t, err)

	msg := sha256.Sum256([]byte("taproot"))

	sig, err := keys.Sign(k, msg, keys.ZeroAuxRand())
	require.NoError(t, err)

	require.True(t, keys.Verify(k.XOnly(), msg, sig))
}

func TestSign_Deterministic_WithZeroAuxRand(t *testing.T) {
	k, err := keys.FromWIF(bobWIF)
	require.NoError(t, err)

	msg := sha256.Sum256([]byte("deterministic"))

	sig1, err := keys.Sign(k, msg, keys.ZeroAuxRand())
	require.NoError(t, err)
	sig2, err := keys.Sign(k, msg, keys.ZeroAuxRand())
	require.NoError(t, err)

	require.Equal(t, sig1, sig2)
}

func TestVerify_RejectsTamperedMessage(t *testing.T) {
	k, err := keys.FromWIF(aliceWIF)
	require.NoError(t, err)

	msg := sha256.Sum256([]byte("original"))
	sig, err := keys.Sign(k, msg, keys.ZeroAuxRand())
	require.NoError(t, err)

	tampered := sha256.Sum256([]byte("tampered"))
	require.False(t, keys.Verify(k.XOnly(), tampered, sig))
}

func TestVerify_RejectsWrongKey(t *testing.T) {
	alice, err := keys.FromWIF(aliceWIF)
	require.NoError(t, err)
	bob, err := keys.FromWIF(bobWIF)
	require.NoError(t, err)

	msg := sha256.Sum256([]byte("cross-key"))
	sig, err := keys.Sign(alice, msg, keys.ZeroAuxRand())
	require.NoError(t, err)

	require.False(t, keys.Verify(bob.XOnly(), msg, sig))
}

func TestLiftX_EvenY(t *testing.T) {
	alice, err := keys.FromWIF(aliceWIF)
	require.NoError(t, err)

	xonly := alice.XOnly()
	x := new(big.Int).SetBytes(xonly[:])

	_, y, err := keys.LiftX(x)
	require.NoError(t, err)
	require.Equal(t, uint(0), y.Bit(0))
}

func TestLiftX_RejectsOutOfRangeX(t *testing.T) {
	tooLarge := new(big.Int).Lsh(big.NewInt(1), 260)
	_, _, err := keys.LiftX(tooLarge)
	require.ErrorIs(t, err, keys.ErrPointNotOnCurve)
}

func TestTweakOutputKey_MatchesTweakedPrivateKey(t *testing.T) {
	internal, err := keys.FromWIF(aliceWIF)
	require.NoError(t, err)

	merkleRoot := sha256.Sum256([]byte("merkle-root"))

	outputXOnly, parity, err := keys.TweakOutputKey(internal.XOnly(), merkleRoot[:])
	require.NoError(t, err)
	require.Contains(t, []int{0, 1}, parity)

	tweakedPriv, err := keys.TweakPrivateKey(internal, merkleRoot[:])
	require.NoError(t, err)

	require.Equal(t, outputXOnly, tweakedPriv.XOnly())
}

func TestTweakOutputKey_EmptyMerkleRootIsKeyPathOnly(t *testing.T) {
	internal, err := keys.FromWIF(bobWIF)
	require.NoError(t, err)

	outputXOnly, _, err := keys.TweakOutputKey(internal.XOnly(), nil)
	require.NoError(t, err)

	tweakedPriv, err := keys.TweakPrivateKey(internal, nil)
	require.NoError(t, err)

	require.Equal(t, outputXOnly, tweakedPriv.XOnly())
}
