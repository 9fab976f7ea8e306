// Package filter ranks phylo-k-mers by informativeness. Every filter
// produces a value to be minimized: the mutual-information filters negate
// their score so that informative k-mers sort first.
package filter

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"

	"github.com/PhyloKorp/ipkdb/database"
	"github.com/PhyloKorp/ipkdb/phylokmer"
)

// Kind selects the filtering function.
type Kind int

const (
	// None keeps every k-mer with filter value 0.
	None Kind = iota
	// Mif0 is the short mutual-information filter, the default.
	Mif0
	// Mif1 is the full mutual-information filter.
	Mif1
	// Random draws uniform values from a fixed seed, for benchmarks.
	Random
)

// randomSeed makes the random filter reproducible.
const randomSeed = 42

func (k Kind) String() string {
	switch k {
	case None:
		return "no-filter"
	case Mif0:
		return "mif0"
	case Mif1:
		return "mif1"
	case Random:
		return "random"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind resolves a filter name. Filter names of retired variants
// (entropy, mis, mif) are recognized and rejected as unsupported.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(name) {
	case "", "mif0":
		return Mif0, nil
	case "mif1":
		return Mif1, nil
	case "random":
		return Random, nil
	case "none", "no-filter":
		return None, nil
	case "entropy", "mis", "mif":
		return 0, fmt.Errorf("filter %q is no longer supported", name)
	default:
		return 0, fmt.Errorf("unknown filter %q", name)
	}
}

func shannon(x float64) float64 {
	return -x * math.Log2(x)
}

// CalcValues computes the filter value of every key in a batch database and
// returns them ordered by ascending (value, key). totalGroups is the number
// of branches in the original tree; threshold is the linear-space score
// threshold assumed for every branch a key was not found on.
func CalcValues(kind Kind, db *database.DB, totalGroups int, threshold float64) []database.KmerFV {
	keys := sortedKeys(db)

	values := make([]database.KmerFV, 0, len(keys))
	switch kind {
	case Mif0:
		for _, key := range keys {
			values = append(values, database.KmerFV{Key: key, FilterValue: mif0(db.At(key), totalGroups, threshold)})
		}
	case Mif1:
		for _, key := range keys {
			values = append(values, database.KmerFV{Key: key, FilterValue: mif1(db.At(key), totalGroups, threshold)})
		}
	case Random:
		// One generator per batch: values depend only on the key order,
		// which is deterministic.
		rng := rand.New(rand.NewSource(randomSeed))
		for _, key := range keys {
			values = append(values, database.KmerFV{Key: key, FilterValue: float32(rng.Float64())})
		}
	default:
		for _, key := range keys {
			values = append(values, database.KmerFV{Key: key, FilterValue: 0})
		}
	}

	sort.Slice(values, func(i, j int) bool { return values[i].Less(values[j]) })
	return values
}

func sortedKeys(db *database.DB) []phylokmer.Key {
	keys := make([]phylokmer.Key, 0, db.Size())
	db.Keys(func(key phylokmer.Key, entries []database.Entry) {
		keys = append(keys, key)
	})
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// mif0 computes Sw * (H(C|Bw=1) - log2 N), to be minimized.
func mif0(entries []database.Entry, totalGroups int, threshold float64) float32 {
	// Sw: the score mass of the key, counting every absent branch at the
	// threshold score.
	scoreSum := 0.0
	for _, entry := range entries {
		scoreSum += phylokmer.LogScoreToScore(entry.Score)
	}
	scoreSum += float64(totalGroups-len(entries)) * threshold

	weightedThreshold := threshold / scoreSum
	targetThreshold := shannon(weightedThreshold)

	HcBw1 := float64(totalGroups) * targetThreshold
	for _, entry := range entries {
		weightedScore := phylokmer.LogScoreToScore(entry.Score) / scoreSum
		HcBw1 = HcBw1 - targetThreshold + shannon(weightedScore)
	}

	Hc := math.Log2(float64(totalGroups))
	return float32(scoreSum * (HcBw1 - Hc))
}

// mif1 computes -log2 N + P(Bw=1) H(C|Bw=1) + P(Bw=0) H(C|Bw=0), to be
// minimized.
func mif1(entries []database.Entry, totalGroups int, threshold float64) float32 {
	N := float64(totalGroups)

	Sw := 0.0
	for _, entry := range entries {
		Sw += phylokmer.LogScoreToScore(entry.Score)
	}
	Sw += (N - float64(len(entries))) * threshold

	A := math.Log2(N)

	PBw1Threshold := threshold / Sw
	PBw0Threshold := (1 - threshold) / (N - Sw)

	HcBw1 := N * shannon(PBw1Threshold)
	HcBw0 := N * shannon(PBw0Threshold)
	for _, entry := range entries {
		swc := phylokmer.LogScoreToScore(entry.Score)
		HcBw1 = HcBw1 - shannon(PBw1Threshold) + shannon(swc/Sw)
		HcBw0 = HcBw0 - shannon(PBw0Threshold) + shannon((1-swc)/(N-Sw))
	}

	B := (Sw / N) * HcBw1
	C := ((N - Sw) / N) * HcBw0
	return float32(-A + B + C)
}
