// Package alignment holds the reference multiple sequence alignment and the
// writers used to persist it for the ancestral reconstruction step.
package alignment

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/PhyloKorp/ipkdb/seq"
)

var ErrBadAlignment = errors.New("malformed alignment")

// Record is one aligned sequence.
type Record struct {
	Header   string
	Sequence string
}

// Alignment is an ordered list of equal-width aligned sequences.
type Alignment struct {
	records []Record
}

func New(records []Record) (*Alignment, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no sequences", ErrBadAlignment)
	}
	width := len(records[0].Sequence)
	for _, record := range records {
		if len(record.Sequence) != width {
			return nil, fmt.Errorf("%w: sequence %q has width %d, want %d",
				ErrBadAlignment, record.Header, len(record.Sequence), width)
		}
	}
	return &Alignment{records: records}, nil
}

func (a *Alignment) Height() int {
	return len(a.records)
}

func (a *Alignment) Width() int {
	return len(a.records[0].Sequence)
}

func (a *Alignment) Records() []Record {
	return a.records
}

// ReadFasta parses a FASTA stream into an alignment.
func ReadFasta(r io.Reader) (*Alignment, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1<<16), 1<<24)

	var records []Record
	var header string
	var sb strings.Builder

	flush := func() {
		if header != "" {
			records = append(records, Record{Header: header, Sequence: sb.String()})
		}
		sb.Reset()
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ">") {
			flush()
			header = strings.TrimSpace(line[1:])
			if header == "" {
				return nil, fmt.Errorf("%w: empty FASTA header", ErrBadAlignment)
			}
			continue
		}
		if header == "" {
			return nil, fmt.Errorf("%w: sequence data before first header", ErrBadAlignment)
		}
		sb.WriteString(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()
	return New(records)
}

// ReadFastaFile parses a FASTA file.
func ReadFastaFile(filename string) (*Alignment, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadFasta(f)
}

// WriteFasta serializes the alignment in FASTA.
func (a *Alignment) WriteFasta(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, record := range a.records {
		if _, err := fmt.Fprintf(bw, ">%s\n%s\n", record.Header, record.Sequence); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WritePhylip serializes the alignment in the relaxed PHYLIP layout the
// reconstruction tools consume: a 250-character label column and sequence
// blocks of ten columns.
func (a *Alignment) WritePhylip(w io.Writer) error {
	const labelWidth = 250

	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "\t%d\t%d\n", a.Height(), a.Width()); err != nil {
		return err
	}
	for _, record := range a.records {
		if _, err := bw.WriteString(record.Header); err != nil {
			return err
		}
		for i := len(record.Header); i < labelWidth; i++ {
			if err := bw.WriteByte(' '); err != nil {
				return err
			}
		}
		for pos := 0; pos < len(record.Sequence); pos += 10 {
			end := pos + 10
			if end >= len(record.Sequence) {
				end = len(record.Sequence)
				if _, err := bw.WriteString(record.Sequence[pos:end]); err != nil {
					return err
				}
				break
			}
			if _, err := bw.WriteString(record.Sequence[pos:end]); err != nil {
				return err
			}
			if err := bw.WriteByte(' '); err != nil {
				return err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFastaFile writes the alignment to a FASTA file.
func (a *Alignment) WriteFastaFile(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	return a.WriteFasta(f)
}

// WritePhylipFile writes the alignment to a PHYLIP file.
func (a *Alignment) WritePhylipFile(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	return a.WritePhylip(f)
}

// GapRatios returns, per column, the fraction of sequences with a gap.
func (a *Alignment) GapRatios() []float64 {
	ratios := make([]float64, a.Width())
	for _, record := range a.records {
		for i := 0; i < len(record.Sequence); i++ {
			if seq.IsGap(record.Sequence[i]) {
				ratios[i]++
			}
		}
	}
	for i := range ratios {
		ratios[i] /= float64(a.Height())
	}
	return ratios
}

// Reduce drops the columns whose gap ratio reaches reductionRatio and
// returns the reduced alignment with the number of removed columns.
func (a *Alignment) Reduce(reductionRatio float64) (*Alignment, int) {
	ratios := a.GapRatios()
	keep := make([]bool, len(ratios))
	kept := 0
	for i, ratio := range ratios {
		if ratio < reductionRatio {
			keep[i] = true
			kept++
		}
	}
	if kept == len(ratios) {
		return a, 0
	}

	reduced := make([]Record, 0, len(a.records))
	var sb strings.Builder
	for _, record := range a.records {
		sb.Reset()
		sb.Grow(kept)
		for i := 0; i < len(record.Sequence); i++ {
			if keep[i] {
				sb.WriteByte(record.Sequence[i])
			}
		}
		reduced = append(reduced, Record{Header: record.Header, Sequence: sb.String()})
	}
	out := &Alignment{records: reduced}
	return out, len(ratios) - kept
}
