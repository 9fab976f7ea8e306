package database

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pierrec/lz4/v4"
)

// BatchDBFile returns the on-disk name of a serialized batch database.
func BatchDBFile(workDir string, batchID int) string {
	return filepath.Join(workDir, "hashmaps", fmt.Sprintf("%d.batch", batchID))
}

// SaveBatch serializes a batch database for the on-disk merge: an lz4 frame
// holding a u64 key count, a u8 positions flag, then records in KmerOrder. Batch files are
// internal intermediates, so unlike the final database they are compressed.
func (db *DB) SaveBatch(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	zw := lz4.NewWriter(f)
	w := bufio.NewWriter(zw)

	if err := binary.Write(w, binary.LittleEndian, uint64(len(db.KmerOrder))); err != nil {
		return err
	}
	var positions uint8
	if db.WithPositions {
		positions = 1
	}
	if err := binary.Write(w, binary.LittleEndian, positions); err != nil {
		return err
	}
	for _, fv := range db.KmerOrder {
		if err := SaveRecord(w, fv.Key, fv.FilterValue, db.At(fv.Key), db.WithPositions); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return zw.Close()
}

// BatchLoader streams the records of one serialized batch database in
// filter-value order, holding only the current record in memory.
type BatchLoader struct {
	file          *os.File
	reader        *bufio.Reader
	numKmers      uint64
	read          uint64
	withPositions bool
	current       Record
	valid         bool
}

// OpenBatch opens a batch database for streaming.
func OpenBatch(filename string) (*BatchLoader, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	loader := &BatchLoader{
		file:   f,
		reader: bufio.NewReader(lz4.NewReader(f)),
	}
	if err := binary.Read(loader.reader, binary.LittleEndian, &loader.numKmers); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: truncated batch header: %v", ErrCorrupt, err)
	}
	var positions uint8
	if err := binary.Read(loader.reader, binary.LittleEndian, &positions); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: truncated batch header: %v", ErrCorrupt, err)
	}
	loader.withPositions = positions != 0
	return loader, nil
}

// NumKmers returns the total record count of the batch.
func (l *BatchLoader) NumKmers() uint64 {
	return l.numKmers
}

// HasNext reports whether another record can be read.
func (l *BatchLoader) HasNext() bool {
	return l.read < l.numKmers
}

// Next advances to the next record.
func (l *BatchLoader) Next() error {
	record, err := LoadRecord(l.reader, l.withPositions)
	if err != nil {
		l.valid = false
		return fmt.Errorf("%w: reading batch record %d: %v", ErrCorrupt, l.read, err)
	}
	l.current = record
	l.read++
	l.valid = true
	return nil
}

// Current returns the record loaded by the last Next.
func (l *BatchLoader) Current() (Record, bool) {
	return l.current, l.valid
}

func (l *BatchLoader) Close() error {
	return l.file.Close()
}
