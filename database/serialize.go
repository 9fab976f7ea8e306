package database

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/PhyloKorp/ipkdb/phylokmer"
	"github.com/PhyloKorp/ipkdb/resources"
	"github.com/PhyloKorp/ipkdb/versioning"
)

const FormatVersion = "0.2.0"

func init() {
	versioning.Register(resources.RT_DATABASE, versioning.FromString(FormatVersion))
	versioning.Register(resources.RT_BATCH_DB, versioning.FromString(FormatVersion))
}

const (
	tagFlagPositions = 1 << 0
	tagFlagAminoAcid = 1 << 1
)

// VersionTag packs the format version with the alphabet and positions
// selectors into the leading u32 of a database file.
func VersionTag(withPositions, aminoAcid bool) versioning.Version {
	var flags uint32
	if withPositions {
		flags |= tagFlagPositions
	}
	if aminoAcid {
		flags |= tagFlagAminoAcid
	}
	base := versioning.FromString(FormatVersion)
	return versioning.NewVersion(base.Major(), base.Minor(), flags)
}

// Header is the fixed preamble of a serialized database.
type Header struct {
	Tag          versioning.Version
	SequenceType string
	Tree         string
	KmerSize     uint64
	Omega        float32
	TotalKeys    uint64
	TotalEntries uint64
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint64(len(s))); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

func readString(r io.Reader) (string, error) {
	var length uint64
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return "", err
	}
	if length > 1<<32 {
		return "", fmt.Errorf("%w: unreasonable string length %d", ErrCorrupt, length)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// SaveHeader writes the database preamble.
func SaveHeader(w io.Writer, header Header) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(header.Tag)); err != nil {
		return err
	}
	if err := writeString(w, header.SequenceType); err != nil {
		return err
	}
	if err := writeString(w, header.Tree); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, header.KmerSize); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, header.Omega); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, header.TotalKeys); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, header.TotalEntries)
}

// LoadHeader reads and checks the database preamble. Unknown version tags
// are refused.
func LoadHeader(r io.Reader) (Header, error) {
	var header Header
	var tag uint32
	if err := binary.Read(r, binary.LittleEndian, &tag); err != nil {
		return header, err
	}
	header.Tag = versioning.Version(tag)

	current := versioning.GetCurrentVersion(resources.RT_DATABASE)
	if header.Tag.Major() != current.Major() || header.Tag.Minor() != current.Minor() {
		return header, fmt.Errorf("%w: version tag %s, this build reads %s",
			ErrUnsupportedFormat, header.Tag, current)
	}
	if header.Tag.Patch()&tagFlagAminoAcid != 0 {
		return header, fmt.Errorf("%w: amino-acid databases are not supported by this build",
			ErrUnsupportedFormat)
	}

	var err error
	if header.SequenceType, err = readString(r); err != nil {
		return header, err
	}
	if header.Tree, err = readString(r); err != nil {
		return header, err
	}
	if err = binary.Read(r, binary.LittleEndian, &header.KmerSize); err != nil {
		return header, err
	}
	if err = binary.Read(r, binary.LittleEndian, &header.Omega); err != nil {
		return header, err
	}
	if err = binary.Read(r, binary.LittleEndian, &header.TotalKeys); err != nil {
		return header, err
	}
	if err = binary.Read(r, binary.LittleEndian, &header.TotalEntries); err != nil {
		return header, err
	}
	return header, nil
}

// SaveRecord writes one (key, filter value, entries) record.
func SaveRecord(w io.Writer, key phylokmer.Key, filterValue float32, entries []Entry, withPositions bool) error {
	if err := binary.Write(w, binary.LittleEndian, key); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, filterValue); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(entries))); err != nil {
		return err
	}
	for _, entry := range entries {
		if err := binary.Write(w, binary.LittleEndian, entry.Branch); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, entry.Score); err != nil {
			return err
		}
		if withPositions {
			if err := binary.Write(w, binary.LittleEndian, entry.Position); err != nil {
				return err
			}
		}
	}
	return nil
}

// Record is one deserialized database record.
type Record struct {
	Key         phylokmer.Key
	FilterValue float32
	Entries     []Entry
}

// LoadRecord reads one record written by SaveRecord.
func LoadRecord(r io.Reader, withPositions bool) (Record, error) {
	var record Record
	if err := binary.Read(r, binary.LittleEndian, &record.Key); err != nil {
		return record, err
	}
	if err := binary.Read(r, binary.LittleEndian, &record.FilterValue); err != nil {
		return record, err
	}
	var count uint64
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return record, err
	}
	record.Entries = make([]Entry, 0, count)
	for i := uint64(0); i < count; i++ {
		var entry Entry
		if err := binary.Read(r, binary.LittleEndian, &entry.Branch); err != nil {
			return record, err
		}
		if err := binary.Read(r, binary.LittleEndian, &entry.Score); err != nil {
			return record, err
		}
		if withPositions {
			if err := binary.Read(r, binary.LittleEndian, &entry.Position); err != nil {
				return record, err
			}
		}
		record.Entries = append(record.Entries, entry)
	}
	return record, nil
}

// Save serializes a complete database: header, then records in KmerOrder.
func (db *DB) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	header := Header{
		Tag:          VersionTag(db.WithPositions, false),
		SequenceType: db.SequenceType,
		Tree:         db.Tree,
		KmerSize:     uint64(db.KmerSize),
		Omega:        float32(db.Omega),
		TotalKeys:    uint64(db.Size()),
		TotalEntries: uint64(db.NumEntries()),
	}
	if err := SaveHeader(bw, header); err != nil {
		return err
	}
	for _, fv := range db.KmerOrder {
		if err := SaveRecord(bw, fv.Key, fv.FilterValue, db.At(fv.Key), db.WithPositions); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// SaveFile serializes a database to a file.
func (db *DB) SaveFile(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	return db.Save(f)
}

// Load reads back a database written by Save.
func Load(r io.Reader) (*DB, error) {
	br := bufio.NewReader(r)
	header, err := LoadHeader(br)
	if err != nil {
		return nil, err
	}

	db := New(int(header.KmerSize), float64(header.Omega), header.SequenceType,
		header.Tree, header.Tag.Patch()&tagFlagPositions != 0)

	for i := uint64(0); i < header.TotalKeys; i++ {
		record, err := LoadRecord(br, db.WithPositions)
		if err != nil {
			return nil, err
		}
		db.KmerOrder = append(db.KmerOrder, KmerFV{Key: record.Key, FilterValue: record.FilterValue})
		for _, entry := range record.Entries {
			db.Insert(record.Key, entry)
		}
	}
	return db, nil
}

// LoadFile reads a database from a file.
func LoadFile(filename string) (*DB, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}
