package seq

// Code is a numeric code of one base within its alphabet.
type Code uint8

// Alphabet describes a sequence alphabet: its ordered character set and the
// number of bits needed to pack one base code into a k-mer key.
type Alphabet struct {
	Name      string
	Chars     []byte
	BitLength uint
	// MaxKmerLength is the largest k accepted for the alphabet. The DNA
	// bound uses 24 of the 32 key bits; the amino-acid bound needs 60 bits,
	// more than the 32-bit phylokmer.Key holds.
	MaxKmerLength int
}

var DNA = Alphabet{
	Name:          "DNA",
	Chars:         []byte{'A', 'C', 'G', 'T'},
	BitLength:     2,
	MaxKmerLength: 12,
}

var AminoAcid = Alphabet{
	Name:          "AminoAcid",
	Chars:         []byte{'A', 'R', 'N', 'D', 'C', 'Q', 'E', 'G', 'H', 'I', 'L', 'K', 'M', 'F', 'P', 'S', 'T', 'W', 'Y', 'V'},
	BitLength:     5,
	MaxKmerLength: 12,
}

func (a *Alphabet) Size() int {
	return len(a.Chars)
}

// Encode returns the code of a concrete base. Gaps, ambiguity characters and
// anything outside the alphabet return ok == false.
func (a *Alphabet) Encode(c byte) (Code, bool) {
	c = upper(c)
	for i, known := range a.Chars {
		if c == known {
			return Code(i), true
		}
	}
	// DNA sequences routinely use U for T.
	if a.Name == DNA.Name && c == 'U' {
		return Code(3), true
	}
	return 0, false
}

func (a *Alphabet) Decode(code Code) byte {
	return a.Chars[code]
}

// IsGap reports whether the character denotes a gap or a missing base.
func IsGap(c byte) bool {
	switch c {
	case '-', '.', '!', '*':
		return true
	}
	return false
}

// iupac maps DNA ambiguity characters to the set of concrete codes they
// stand for, in A < C < G < T order.
var iupac = map[byte][]Code{
	'R': {0, 2},
	'Y': {1, 3},
	'S': {1, 2},
	'W': {0, 3},
	'K': {2, 3},
	'M': {0, 1},
	'B': {1, 2, 3},
	'D': {0, 2, 3},
	'H': {0, 1, 3},
	'V': {0, 1, 2},
	'N': {0, 1, 2, 3},
}

// Expand returns the concrete codes a DNA character may stand for: one code
// for a concrete base, several for an IUPAC ambiguity, none for a gap.
func (a *Alphabet) Expand(c byte) []Code {
	if code, ok := a.Encode(c); ok {
		return []Code{code}
	}
	if a.Name != DNA.Name {
		return nil
	}
	if codes, ok := iupac[upper(c)]; ok {
		return codes
	}
	return nil
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}
