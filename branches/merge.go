package branches

import (
	"github.com/PhyloKorp/ipkdb/database"
	"github.com/PhyloKorp/ipkdb/phylokmer"
)

// MergeBatch unions the shard files of one batch across all branch groups
// into an in-memory batch database. Scores are never combined across
// branches: each branch kept its own maximum during stage 1, so every
// branch appears at most once per key.
func MergeBatch(workDir string, groupIDs []phylokmer.Branch, batchIdx int,
	withPositions bool) (*database.DB, error) {

	batchDB := database.New(0, 1.0, "", "", withPositions)
	for _, groupID := range groupIDs {
		m, err := LoadGroupMap(GroupMapFile(workDir, groupID, batchIdx), withPositions)
		if err != nil {
			return nil, err
		}
		for key, record := range m.Records {
			batchDB.Insert(key, database.Entry{
				Entry:    phylokmer.Entry{Branch: groupID, Score: record.Score},
				Position: record.Position,
			})
		}
	}
	return batchDB, nil
}
