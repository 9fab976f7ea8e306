package proba

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/PhyloKorp/ipkdb/phylokmer"
)

// Matrices are exchanged with the reconstruction step through a simple
// little-endian container: label, width, depth, then column-major scores.

const matrixExt = ".matrix"

// MatrixFile returns the path of a node's matrix inside a directory.
func MatrixFile(dir, label string) string {
	return filepath.Join(dir, label+matrixExt)
}

// Save writes a matrix to w.
func (m *Matrix) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(m.label))); err != nil {
		return err
	}
	if _, err := bw.WriteString(m.label); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint64(m.Width())); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint64(m.Depth())); err != nil {
		return err
	}
	for _, column := range m.data {
		for _, score := range column {
			if err := binary.Write(bw, binary.LittleEndian, score); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// SaveFile writes a matrix into dir under its label.
func (m *Matrix) SaveFile(dir string) error {
	f, err := os.Create(MatrixFile(dir, m.label))
	if err != nil {
		return err
	}
	defer f.Close()
	return m.Save(f)
}

// Load reads a matrix written by Save.
func Load(r io.Reader) (*Matrix, error) {
	br := bufio.NewReader(r)

	var labelLen uint64
	if err := binary.Read(br, binary.LittleEndian, &labelLen); err != nil {
		return nil, err
	}
	if labelLen > 1<<16 {
		return nil, fmt.Errorf("%w: unreasonable label length %d", ErrBadMatrix, labelLen)
	}
	label := make([]byte, labelLen)
	if _, err := io.ReadFull(br, label); err != nil {
		return nil, err
	}

	var width, depth uint64
	if err := binary.Read(br, binary.LittleEndian, &width); err != nil {
		return nil, err
	}
	if err := binary.Read(br, binary.LittleEndian, &depth); err != nil {
		return nil, err
	}
	if width == 0 || depth == 0 || depth > 64 {
		return nil, fmt.Errorf("%w: node %s declares %dx%d", ErrBadMatrix, label, width, depth)
	}

	columns := make([][]phylokmer.Score, width)
	for j := range columns {
		column := make([]phylokmer.Score, depth)
		for i := range column {
			if err := binary.Read(br, binary.LittleEndian, &column[i]); err != nil {
				return nil, err
			}
		}
		columns[j] = column
	}

	m, err := NewMatrix(string(label), columns)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// LoadFile reads one matrix file.
func LoadFile(filename string) (*Matrix, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// DirStore returns a lazy store over a directory of matrix files, one per
// node label. Matrices stay on disk until a worker takes them.
func DirStore(dir string) *Store {
	return NewLazyStore(func(label string) (*Matrix, error) {
		return LoadFile(MatrixFile(dir, label))
	})
}

// Labels lists the node labels available in a matrix directory.
func Labels(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var labels []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), matrixExt) {
			continue
		}
		labels = append(labels, strings.TrimSuffix(entry.Name(), matrixExt))
	}
	return labels, nil
}
