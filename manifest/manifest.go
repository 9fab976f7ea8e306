// Package manifest records what a build run produced: its parameters and
// the inventory of stage-1 shard files with their checksums. The manifest
// lives in the working directory for the lifetime of the intermediates and
// makes interrupted runs diagnosable.
package manifest

import (
	"os"
	"path/filepath"
	"time"

	"github.com/PhyloKorp/ipkdb/resources"
	"github.com/PhyloKorp/ipkdb/versioning"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

const VERSION = "1.0.0"

func init() {
	versioning.Register(resources.RT_MANIFEST, versioning.FromString(VERSION))
}

// Shard describes one written (branch, batch) shard file.
type Shard struct {
	Branch   uint32 `msgpack:"branch"`
	Batch    int    `msgpack:"batch"`
	Records  uint64 `msgpack:"records"`
	Size     uint64 `msgpack:"size"`
	Checksum string `msgpack:"checksum"`
}

// Parameters are the build parameters the shards were computed under.
type Parameters struct {
	KmerSize      int     `msgpack:"k"`
	Omega         float64 `msgpack:"omega"`
	Mu            float64 `msgpack:"mu"`
	Filter        string  `msgpack:"filter"`
	Algorithm     string  `msgpack:"algorithm"`
	NumBatches    int     `msgpack:"num_batches"`
	WithPositions bool    `msgpack:"with_positions"`
}

// Manifest ties a run id to its parameters and shard inventory.
type Manifest struct {
	Version    versioning.Version `msgpack:"version"`
	RunID      uuid.UUID          `msgpack:"run_id"`
	CreatedAt  time.Time          `msgpack:"created_at"`
	Parameters Parameters         `msgpack:"parameters"`
	Shards     []Shard            `msgpack:"shards"`
}

func New(params Parameters) *Manifest {
	return &Manifest{
		Version:    versioning.FromString(VERSION),
		RunID:      uuid.New(),
		CreatedAt:  time.Now().UTC(),
		Parameters: params,
	}
}

// Path returns the manifest location inside a working directory.
func Path(workDir string) string {
	return filepath.Join(workDir, "manifest.mpk")
}

// Save serializes the manifest with msgpack.
func (m *Manifest) Save(filename string) error {
	data, err := msgpack.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}

// Load reads a manifest back.
func Load(filename string) (*Manifest, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
