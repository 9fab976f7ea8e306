package phylokmer

import (
	"math"
	"testing"

	"github.com/PhyloKorp/ipkdb/seq"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, kmer := range []string{"A", "T", "ACGT", "TTTT", "GATTACA", "ACGTACGTACGT"} {
		key, ok := EncodeKmer(kmer, &seq.DNA)
		require.True(t, ok, "EncodeKmer(%s)", kmer)
		require.Equal(t, kmer, DecodeKmer(key, len(kmer), &seq.DNA))
	}
}

func TestEncodeKmerLayout(t *testing.T) {
	// Left-to-right concatenation: the first base lands in the highest bits.
	key, ok := EncodeKmer("ACG", &seq.DNA)
	require.True(t, ok)
	require.Equal(t, Key(0<<4|1<<2|2), key)

	key, ok = EncodeKmer("AAA", &seq.DNA)
	require.True(t, ok)
	require.Equal(t, Key(0), key)

	key, ok = EncodeKmer("TTT", &seq.DNA)
	require.True(t, ok)
	require.Equal(t, Key(0x3F), key)
}

func TestEncodeKmerRejects(t *testing.T) {
	for _, kmer := range []string{"AC-T", "ACNT", "AC.T", "ACRT"} {
		_, ok := EncodeKmer(kmer, &seq.DNA)
		require.False(t, ok, "EncodeKmer(%s) should fail", kmer)
	}
}

func TestEncodeAmbiguousKmer(t *testing.T) {
	// One ambiguity expands into all concrete keys.
	keys, ok := EncodeAmbiguousKmer("ARA", &seq.DNA)
	require.True(t, ok)
	aga, _ := EncodeKmer("AGA", &seq.DNA)
	aaa, _ := EncodeKmer("AAA", &seq.DNA)
	require.ElementsMatch(t, []Key{aaa, aga}, keys)

	// Unambiguous input yields exactly one key.
	keys, ok = EncodeAmbiguousKmer("ACG", &seq.DNA)
	require.True(t, ok)
	acg, _ := EncodeKmer("ACG", &seq.DNA)
	require.Equal(t, []Key{acg}, keys)

	// Two ambiguities are rejected, as are gaps.
	_, ok = EncodeAmbiguousKmer("NRA", &seq.DNA)
	require.False(t, ok)
	_, ok = EncodeAmbiguousKmer("A-A", &seq.DNA)
	require.False(t, ok)
}

func TestScoreThreshold(t *testing.T) {
	// omega=1, k=3, DNA: (1/4)^3
	require.InDelta(t, 1.0/64.0, ScoreThreshold(1.0, 3, &seq.DNA), 1e-12)
	require.InDelta(t, 3*math.Log10(0.25), float64(LogThreshold(1.0, 3, &seq.DNA)), 1e-6)
}

func TestLogScoreToScoreClamps(t *testing.T) {
	require.Equal(t, 1.0, LogScoreToScore(0.5))
	require.InDelta(t, 0.01, LogScoreToScore(-2), 1e-12)
	require.Equal(t, 0.0, LogScoreToScore(-1e10))
}

func TestBatch(t *testing.T) {
	const n = 32
	seen := make(map[int]bool)
	for key := Key(0); key < 1000; key++ {
		b := Batch(key, n)
		require.GreaterOrEqual(t, b, 0)
		require.Less(t, b, n)
		require.Equal(t, int(key%n), b)
		seen[b] = true
	}
	require.Len(t, seen, n)
}
