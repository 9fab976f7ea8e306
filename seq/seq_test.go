package seq

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeClosure(t *testing.T) {
	for code := 0; code < DNA.Size(); code++ {
		c := DNA.Decode(Code(code))
		got, ok := DNA.Encode(c)
		require.True(t, ok, "Encode(%c)", c)
		require.Equal(t, Code(code), got)
	}
}

func TestEncodeRejectsGapsAndAmbiguities(t *testing.T) {
	for _, c := range []byte{'-', '.', 'N', 'R', 'Y', '?'} {
		_, ok := DNA.Encode(c)
		require.False(t, ok, "Encode(%c) should fail", c)
	}
}

func TestEncodeLowercaseAndUracil(t *testing.T) {
	tests := []struct {
		in   byte
		want Code
	}{
		{'a', 0}, {'c', 1}, {'g', 2}, {'t', 3}, {'U', 3}, {'u', 3},
	}
	for _, tt := range tests {
		got, ok := DNA.Encode(tt.in)
		require.True(t, ok, "Encode(%c)", tt.in)
		require.Equal(t, tt.want, got)
	}
}

func TestExpand(t *testing.T) {
	require.Equal(t, []Code{0}, DNA.Expand('A'))
	require.Equal(t, []Code{0, 2}, DNA.Expand('R'))
	require.Equal(t, []Code{0, 1, 2, 3}, DNA.Expand('N'))
	require.Nil(t, DNA.Expand('-'))
}

func TestIsGap(t *testing.T) {
	require.True(t, IsGap('-'))
	require.True(t, IsGap('.'))
	require.False(t, IsGap('A'))
}

func TestAminoAcidAlphabet(t *testing.T) {
	require.Equal(t, 20, AminoAcid.Size())
	code, ok := AminoAcid.Encode('W')
	require.True(t, ok)
	require.Equal(t, byte('W'), AminoAcid.Decode(code))
}
