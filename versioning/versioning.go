package versioning

import (
	"fmt"
	"sync"

	"github.com/PhyloKorp/ipkdb/resources"
)

type Version uint32

func NewVersion(major, minor, patch uint32) Version {
	return Version(major<<16 | minor<<8 | patch)
}

func (v Version) Major() uint32 {
	return uint32(v >> 16 & 0xff)
}

func (v Version) Minor() uint32 {
	return uint32(v >> 8 & 0xff)
}

func (v Version) Patch() uint32 {
	return uint32(v & 0xff)
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Patch())
}

func FromString(s string) Version {
	var major, minor, patch uint32
	_, err := fmt.Sscanf(s, "%d.%d.%d", &major, &minor, &patch)
	if err != nil {
		panic(err)
	}
	return NewVersion(major, minor, patch)
}

var (
	muRegistry sync.Mutex
	registry   = make(map[resources.Type]Version)
)

// Register declares the current version emitted for a resource type.
func Register(resource resources.Type, version Version) {
	muRegistry.Lock()
	defer muRegistry.Unlock()
	registry[resource] = version
}

// GetCurrentVersion returns the registered version for a resource type,
// or zero if none was registered.
func GetCurrentVersion(resource resources.Type) Version {
	muRegistry.Lock()
	defer muRegistry.Unlock()
	return registry[resource]
}
