// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package keys_test

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aaron-recompile/taproot/bitcoin/keys"
)

const (
	aliceWIF = "cRxebG1hY6vVgS9CSLNaEbEJaXkpZvc6nFeqqGT7v6gcW7MbzKNT"
	bobWIF   = "cSNdLFDf3wjx1rswNL2jKykbVkC6o56o5nYZi4FUkWKjFn2Q5DSG"

	aliceXOnlyHex = "50be5fc44ec580c387bf45df275aaa8b27e2d7716af31f10eeed357d126bb4d3"
	bobXOnlyHex   = "84b5951609b76619a1ce7f48977b4312ebe226987166ef044bfb374ceef63af5"
)

// TestKey_XOnly_S1 is the spec's scenario S1: x-only public key derivation
// for two known testnet WIF keys.
func TestKey_XOnly_S1(t *testing.T) {
	tests := []struct {
		name string
		wif  string
		want string
	}{
		{"alice", aliceWIF, aliceXOnlyHex},
		{"bob", bobWIF, bobXOnlyHex},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			k, err := keys.FromWIF(test.wif)
			require.NoError(t, err)

			xonly := k.XOnly()
			require.Equal(t, test.want, hex.EncodeToString(xonly[:]))
		})
	}
}

func TestKey_WIF_RoundTrip(t *testing.T) {
	k, err := keys.FromWIF(aliceWIF)
	require.NoError(t, err)
	require.Equal(t, aliceWIF, k.WIF())
}

func TestKey_FromWIF_Invalid(t *testing.T) {
	_, err := keys.FromWIF("not a wif")
	require.ErrorIs(t, err, keys.ErrInvalidKey)
}

func TestKey_Equal(t *testing.T) {
	a1, err := keys.FromWIF(aliceWIF)
	require.NoError(t, err)
	a2, err := keys.FromWIF(aliceWIF)
	require.NoError(t, err)
	b, err := keys.FromWIF(bobWIF)
	require.NoError(t, err)

	require.True(t, a1.Equal(a2))
	require.False(t, a1.Equal(b))
}

func TestKey_FromHex(t *testing.T) {
	wifKey, err := keys.FromWIF(aliceWIF)
	require.NoError(t, err)

	scalar := wifKey.ScalarBytes()
	hexKey, err := keys.FromHex(hex.EncodeToString(scalar[:]))
	require.NoError(t, err)

	require.True(t, wifKey.Equal(hexKey))
}
