// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package script_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aaron-recompile/taproot/bitcoin/script"
)

func TestBuilder_AddData(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want []byte
	}{
		{"empty", []byte{}, []byte{0x00}},
		{"single byte", []byte{0xAB}, []byte{0x01, 0xAB}},
		{"75 bytes", make([]byte, 75), append([]byte{75}, make([]byte, 75)...)},
		{"76 bytes uses PUSHDATA1", make([]byte, 76), append([]byte{script.OP_PUSHDATA1, 76}, make([]byte, 76)...)},
		{"255 bytes uses PUSHDATA1", make([]byte, 255), append([]byte{script.OP_PUSHDATA1, 255}, make([]byte, 255)...)},
	}

	for _, test := range tests {
		got, err := script.NewBuilder().AddData(test.data).Script()
		require.NoError(t, err)
		require.Equal(t, test.want, got)
	}
}

func TestBuilder_AddData_PushData2(t *testing.T) {
	data := make([]byte, 300)
	got, err := script.NewBuilder().AddData(data).Script()
	require.NoError(t, err)
	require.Equal(t, byte(script.OP_PUSHDATA2), got[0])
	require.Equal(t, byte(300&0xff), got[1])
	require.Equal(t, byte(300>>8), got[2])
	require.Len(t, got[3:], 300)
}

func TestBuilder_AddInt64(t *testing.T) {
	tests := []struct {
		n    int64
		want []byte
	}{
		{0, []byte{script.OP_0}},
		{1, []byte{script.OP_1}},
		{16, []byte{script.OP_16}},
		{-1, []byte{script.OP_1NEGATE}},
		{2, []byte{script.OP_1 + 1}},
		{17, []byte{0x01, 0x11}},
		{127, []byte{0x01, 0x7f}},
		{128, []byte{0x02, 0x80, 0x00}},
		{-128, []byte{0x02, 0x80, 0x80}},
		{255, []byte{0x02, 0xff, 0x00}},
	}

	for _, test := range tests {
		got, err := script.NewBuilder().AddInt64(test.n).Script()
		require.NoError(t, err)
		require.Equal(t, test.want, got, "n=%d", test.n)
	}
}

func TestCompactSize_RoundTrip(t *testing.T) {
	values := []uint64{0, 1, 0xfc, 0xfd, 0xff, 0xffff, 0x10000, 0xffffffff, 0x100000000, 1 << 40}

	for _, v := range values {
		encoded := script.CompactSize(v)
		got, n, err := script.ReadCompactSize(encoded, 0)
		require.NoError(t, err)
		require.Equal(t, v, got)
		require.Equal(t, len(encoded), n)
	}
}

func TestCompactSize_Prefixes(t *testing.T) {
	require.Equal(t, []byte{0x00}, script.CompactSize(0))
	require.Equal(t, []byte{0xfc}, script.CompactSize(0xfc))
	require.Equal(t, byte(0xfd), script.CompactSize(0xfd)[0])
	require.Equal(t, byte(0xfe), script.CompactSize(0x10000)[0])
	require.Equal(t, byte(0xff), script.CompactSize(0x100000000)[0])
}

func TestExtractPubkeys(t *testing.T) {
	pk1 := make([]byte, 32)
	pk1[0] = 0x01
	pk2 := make([]byte, 32)
	pk2[0] = 0x02

	scriptBytes, err := script.NewBuilder().
		AddInt64(0).
		AddData(pk1).
		AddOp(script.OP_CHECKSIGADD).
		AddData(pk2).
		AddOp(script.OP_CHECKSIGADD).
		AddInt64(2).
		AddOp(script.OP_EQUAL).
		Script()
	require.NoError(t, err)

	got := script.ExtractPubkeys(scriptBytes)
	require.Equal(t, [][]byte{pk1, pk2}, got)
}
