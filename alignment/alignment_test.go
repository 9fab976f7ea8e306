package alignment

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleFasta = `>A
ACGT-CGT
>B
ACG--CGA
>C
TCGTACGA
`

func TestReadFasta(t *testing.T) {
	a, err := ReadFasta(strings.NewReader(sampleFasta))
	require.NoError(t, err)
	require.Equal(t, 3, a.Height())
	require.Equal(t, 8, a.Width())
	require.Equal(t, "A", a.Records()[0].Header)
	require.Equal(t, "ACGT-CGT", a.Records()[0].Sequence)
}

func TestReadFastaMultilineSequences(t *testing.T) {
	a, err := ReadFasta(strings.NewReader(">A\nACGT\nCGT\nA\n>B\nACGTCGTA\n"))
	require.NoError(t, err)
	require.Equal(t, 2, a.Height())
	require.Equal(t, 8, a.Width())
}

func TestReadFastaErrors(t *testing.T) {
	_, err := ReadFasta(strings.NewReader("ACGT\n"))
	require.ErrorIs(t, err, ErrBadAlignment)

	_, err = ReadFasta(strings.NewReader(">A\nACGT\n>B\nAC\n"))
	require.ErrorIs(t, err, ErrBadAlignment)

	_, err = ReadFasta(strings.NewReader(""))
	require.ErrorIs(t, err, ErrBadAlignment)
}

func TestFastaRoundTrip(t *testing.T) {
	a, err := ReadFasta(strings.NewReader(sampleFasta))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, a.WriteFasta(&buf))

	b, err := ReadFasta(&buf)
	require.NoError(t, err)
	require.Equal(t, a.Records(), b.Records())
}

func TestWritePhylip(t *testing.T) {
	a, err := New([]Record{
		{Header: "seq1", Sequence: "ACGTACGTACGTA"},
		{Header: "seq2", Sequence: "TTTTTTTTTTTTT"},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, a.WritePhylip(&buf))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, "\t2\t13", lines[0])

	// Label column padded to 250, then 10-column blocks.
	require.True(t, strings.HasPrefix(lines[1], "seq1"))
	payload := lines[1][250:]
	require.Equal(t, "ACGTACGTAC GTA", payload)
}

func TestGapRatiosAndReduce(t *testing.T) {
	a, err := New([]Record{
		{Header: "A", Sequence: "A-CT"},
		{Header: "B", Sequence: "A-C-"},
		{Header: "C", Sequence: "A-CT"},
	})
	require.NoError(t, err)

	ratios := a.GapRatios()
	require.InDelta(t, 0.0, ratios[0], 1e-12)
	require.InDelta(t, 1.0, ratios[1], 1e-12)
	require.InDelta(t, 0.0, ratios[2], 1e-12)
	require.InDelta(t, 1.0/3.0, ratios[3], 1e-9)

	reduced, removed := a.Reduce(0.99)
	require.Equal(t, 1, removed)
	require.Equal(t, 3, reduced.Width())
	require.Equal(t, "ACT", reduced.Records()[0].Sequence)

	same, removed := a.Reduce(1.01)
	require.Equal(t, 0, removed)
	require.Equal(t, a, same)
}
