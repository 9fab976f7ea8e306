package resources

// Type identifies a kind of serialized artifact produced during a build.
type Type uint32

const (
	RT_DATABASE Type = 1
	RT_SHARD    Type = 2
	RT_BATCH_DB Type = 3
	RT_MANIFEST Type = 4
)

func Types() []Type {
	return []Type{
		RT_DATABASE,
		RT_SHARD,
		RT_BATCH_DB,
		RT_MANIFEST,
	}
}

func (r Type) String() string {
	switch r {
	case RT_DATABASE:
		return "database"
	case RT_SHARD:
		return "shard"
	case RT_BATCH_DB:
		return "batch-db"
	case RT_MANIFEST:
		return "manifest"
	default:
		return "unknown"
	}
}
