package filter

import (
	"math"
	"sort"
	"testing"

	"github.com/PhyloKorp/ipkdb/database"
	"github.com/PhyloKorp/ipkdb/phylokmer"
	"github.com/stretchr/testify/require"
)

func batchWith(t *testing.T, entries map[phylokmer.Key][]phylokmer.Score) *database.DB {
	t.Helper()
	db := database.New(3, 1.0, "DNA", "", false)
	for key, scores := range entries {
		for i, score := range scores {
			db.Insert(key, database.Entry{
				Entry: phylokmer.Entry{Branch: phylokmer.Branch(i), Score: score},
			})
		}
	}
	return db
}

func TestParseKind(t *testing.T) {
	for name, want := range map[string]Kind{
		"": Mif0, "mif0": Mif0, "MIF1": Mif1, "random": Random, "none": None,
	} {
		got, err := ParseKind(name)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	for _, retired := range []string{"entropy", "mis", "mif"} {
		_, err := ParseKind(retired)
		require.Error(t, err)
	}
	_, err := ParseKind("bogus")
	require.Error(t, err)
}

func TestCalcValuesSortedAscending(t *testing.T) {
	db := batchWith(t, map[phylokmer.Key][]phylokmer.Score{
		1: {-0.1},
		2: {-0.1, -0.2, -0.3},
		3: {-1.7},
		9: {-0.5, -0.6},
	})

	for _, kind := range []Kind{Mif0, Mif1, Random, None} {
		values := CalcValues(kind, db, 10, 1.0/64)
		require.Len(t, values, 4, "kind %s", kind)
		require.True(t, sort.SliceIsSorted(values, func(i, j int) bool {
			return values[i].Less(values[j])
		}), "kind %s", kind)
	}
}

func TestMif0PrefersConcentratedKmers(t *testing.T) {
	// A k-mer present on a single branch with a strong score is more
	// informative (smaller value) than one spread evenly over many
	// branches.
	concentrated := []database.Entry{
		{Entry: phylokmer.Entry{Branch: 0, Score: -0.05}},
	}
	spread := make([]database.Entry, 10)
	for i := range spread {
		spread[i] = database.Entry{Entry: phylokmer.Entry{Branch: phylokmer.Branch(i), Score: -0.05}}
	}

	threshold := math.Pow(0.25, 3)
	vConcentrated := mif0(concentrated, 10, threshold)
	vSpread := mif0(spread, 10, threshold)
	require.Less(t, vConcentrated, vSpread)
}

func TestRandomIsDeterministic(t *testing.T) {
	db := batchWith(t, map[phylokmer.Key][]phylokmer.Score{
		4: {-0.3}, 8: {-0.4}, 15: {-0.5}, 16: {-0.6}, 23: {-0.7}, 42: {-0.8},
	})

	first := CalcValues(Random, db, 5, 1.0/64)
	second := CalcValues(Random, db, 5, 1.0/64)
	require.Equal(t, first, second)
}

func TestNoneGivesZeroInKeyOrder(t *testing.T) {
	db := batchWith(t, map[phylokmer.Key][]phylokmer.Score{
		30: {-0.3}, 10: {-0.4}, 20: {-0.5},
	})

	values := CalcValues(None, db, 5, 1.0/64)
	require.Equal(t, []database.KmerFV{
		{Key: 10}, {Key: 20}, {Key: 30},
	}, values)
}
