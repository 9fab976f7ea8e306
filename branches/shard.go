package branches

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/PhyloKorp/ipkdb/phylokmer"
	"github.com/zeebo/blake3"
)

// GroupsDir returns the directory holding the shard files of a build.
func GroupsDir(workDir string) string {
	return filepath.Join(workDir, "hashmaps")
}

// GroupMapFile returns the shard file path of one (branch, batch) pair.
func GroupMapFile(workDir string, branch phylokmer.Branch, batchIdx int) string {
	return filepath.Join(GroupsDir(workDir), fmt.Sprintf("%d_%d.hash", branch, batchIdx))
}

// ShardInfo describes a written shard for the build manifest.
type ShardInfo struct {
	Branch   phylokmer.Branch
	Batch    int
	Records  uint64
	Size     uint64
	Checksum string
}

// SaveGroupMap writes a shard file: a u64 record count followed by
// little-endian (key, score[, position]) records in ascending key order.
// The whole stage is idempotent, so no temp-and-rename dance is needed.
func SaveGroupMap(m *GroupMap, filename string) (ShardInfo, error) {
	f, err := os.Create(filename)
	if err != nil {
		return ShardInfo{}, err
	}
	defer f.Close()

	hasher := blake3.New()
	w := bufio.NewWriter(io.MultiWriter(f, hasher))

	keys := make([]phylokmer.Key, 0, len(m.Records))
	for key := range m.Records {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	if err := binary.Write(w, binary.LittleEndian, uint64(len(keys))); err != nil {
		return ShardInfo{}, err
	}
	size := uint64(8)
	for _, key := range keys {
		record := m.Records[key]
		if err := binary.Write(w, binary.LittleEndian, key); err != nil {
			return ShardInfo{}, err
		}
		if err := binary.Write(w, binary.LittleEndian, record.Score); err != nil {
			return ShardInfo{}, err
		}
		size += 8
		if m.WithPositions {
			if err := binary.Write(w, binary.LittleEndian, record.Position); err != nil {
				return ShardInfo{}, err
			}
			size += 2
		}
	}
	if err := w.Flush(); err != nil {
		return ShardInfo{}, err
	}

	return ShardInfo{
		Records:  uint64(len(keys)),
		Size:     size,
		Checksum: fmt.Sprintf("%x", hasher.Sum(nil)),
	}, nil
}

// LoadGroupMap reads a shard file written by SaveGroupMap.
func LoadGroupMap(filename string, withPositions bool) (*GroupMap, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("could not load an auxiliary shard: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var count uint64
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}

	m := NewGroupMap(withPositions)
	for i := uint64(0); i < count; i++ {
		var key phylokmer.Key
		var record Record
		if err := binary.Read(r, binary.LittleEndian, &key); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &record.Score); err != nil {
			return nil, err
		}
		if withPositions {
			if err := binary.Read(r, binary.LittleEndian, &record.Position); err != nil {
				return nil, err
			}
		}
		m.Records[key] = record
	}
	return m, nil
}
