package phylokmer

import (
	"math"

	"github.com/PhyloKorp/ipkdb/seq"
)

// Key is a packed k-mer: each base code occupies Alphabet.BitLength bits,
// the first base of the k-mer in the highest used bits.
type Key = uint32

// Score is a log10 posterior probability.
type Score = float32

// Branch identifies a branch of the original tree by its post-order id.
type Branch = uint32

// Pos is a position of a k-mer in the alignment.
type Pos = uint16

const (
	NaKey    Key    = math.MaxUint32
	NaBranch Branch = math.MaxUint32
	NaPos    Pos    = math.MaxUint16
)

// NaScore is the reserved sentinel score.
func NaScore() Score {
	return Score(math.NaN())
}

// PhyloKmer is a (key, score) pair produced by window enumeration. The
// branch it belongs to is implied by the enumeration context.
type PhyloKmer struct {
	Key   Key
	Score Score
}

// PositionedPhyloKmer additionally carries the window position.
type PositionedPhyloKmer struct {
	PhyloKmer
	Position Pos
}

// Entry is one (branch, score) pair of a database record.
type Entry struct {
	Branch Branch
	Score  Score
}

// PositionedEntry is an Entry with the alignment position of the best score.
type PositionedEntry struct {
	Entry
	Position Pos
}

// ScoreThreshold returns (omega / |alphabet|)^k in linear space.
func ScoreThreshold(omega float64, k int, alphabet *seq.Alphabet) float64 {
	return math.Pow(omega/float64(alphabet.Size()), float64(k))
}

// LogThreshold returns log10 of ScoreThreshold, the bound every enumerated
// phylo-k-mer score must exceed.
func LogThreshold(omega float64, k int, alphabet *seq.Alphabet) Score {
	return Score(math.Log10(ScoreThreshold(omega, k, alphabet)))
}

// LogScoreToScore converts a log10 score back to linear space, clamping
// to [0, 1]. Underflow clamps to 0.
func LogScoreToScore(logScore Score) float64 {
	return math.Min(math.Pow(10, float64(logScore)), 1.0)
}

// Batch returns the batch index of a key under numBatches batches.
func Batch(key Key, numBatches int) int {
	return int(key % Key(numBatches))
}

// EncodeKmer packs an ungapped unambiguous k-mer into a key.
// Any gap or ambiguity character makes the whole k-mer unencodable.
func EncodeKmer(kmer string, alphabet *seq.Alphabet) (Key, bool) {
	var key Key
	for i := 0; i < len(kmer); i++ {
		code, ok := alphabet.Encode(kmer[i])
		if !ok {
			return 0, false
		}
		key <<= alphabet.BitLength
		key |= Key(code)
	}
	return key, true
}

// EncodeAmbiguousKmer packs a k-mer that may contain at most one ambiguous
// position, returning every concrete key it stands for. More than one
// ambiguity, or a gap, rejects the k-mer.
func EncodeAmbiguousKmer(kmer string, alphabet *seq.Alphabet) ([]Key, bool) {
	keys := []Key{0}
	numAmbiguities := 0

	for i := 0; i < len(kmer); i++ {
		codes := alphabet.Expand(kmer[i])
		if len(codes) == 0 {
			return nil, false
		}
		if len(codes) > 1 {
			if numAmbiguities > 0 {
				return nil, false
			}
			numAmbiguities++

			old := keys[len(keys)-1]
			keys = keys[:len(keys)-1]
			for _, code := range codes {
				keys = append(keys, old<<alphabet.BitLength|Key(code))
			}
		} else {
			for j := range keys {
				keys[j] = keys[j]<<alphabet.BitLength | Key(codes[0])
			}
		}
	}
	return keys, true
}

// DecodeKmer unpacks a key back into its k-mer string.
func DecodeKmer(key Key, k int, alphabet *seq.Alphabet) string {
	buf := make([]byte, k)
	mask := Key(1)<<alphabet.BitLength - 1
	for i := k - 1; i >= 0; i-- {
		buf[i] = alphabet.Decode(seq.Code(key & mask))
		key >>= alphabet.BitLength
	}
	return string(buf)
}
