package builder_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/PhyloKorp/ipkdb/appcontext"
	"github.com/PhyloKorp/ipkdb/builder"
	"github.com/PhyloKorp/ipkdb/config"
	"github.com/PhyloKorp/ipkdb/database"
	"github.com/PhyloKorp/ipkdb/newick"
	"github.com/PhyloKorp/ipkdb/phylokmer"
	"github.com/PhyloKorp/ipkdb/phylotree"
	"github.com/PhyloKorp/ipkdb/proba"
	"github.com/stretchr/testify/require"
)

const refTree = "((A:0.2,B:0.4)I:0.6,C:0.8)root:0;"

func logColumn(probs ...float64) []phylokmer.Score {
	column := make([]phylokmer.Score, len(probs))
	for i, p := range probs {
		column[i] = phylokmer.Score(math.Log10(p))
	}
	return column
}

// testInputs extends the reference tree and attaches one matrix per ghost
// node. columnFor lets each test vary the matrix content per ghost index.
func testInputs(t *testing.T, workDir string, width int,
	columnFor func(ghostIdx, column int) []phylokmer.Score) builder.Inputs {
	t.Helper()

	original, extended, ghostMapping, err := builder.PreprocessTree(refTree, false)
	require.NoError(t, err)

	arTree := extended.Copy()
	arMapping, err := phylotree.MapNodes(extended, arTree)
	require.NoError(t, err)

	store := proba.NewStore()
	ghostIdx := 0
	extended.VisitPostorder(func(id phylotree.NodeID, node *phylotree.Node) {
		if !phylotree.IsGhost(node.Label, phylotree.GhostBoth) {
			return
		}
		columns := make([][]phylokmer.Score, width)
		for j := range columns {
			columns[j] = columnFor(ghostIdx, j)
		}
		m, err := proba.NewMatrix(arMapping[node.Label], columns)
		require.NoError(t, err)
		store.Add(m)
		ghostIdx++
	})

	return builder.Inputs{
		OriginalTree: original,
		ExtendedTree: extended,
		GhostMapping: ghostMapping,
		ARMapping:    arMapping,
		Matrices:     store,
		OutputFile:   filepath.Join(workDir, "db.ipk"),
	}
}

func testContext(t *testing.T, workDir string, cfg *config.Config) *appcontext.AppContext {
	t.Helper()
	ctx := appcontext.NewAppContext()
	t.Cleanup(ctx.Close)
	ctx.Config = cfg
	ctx.WorkDir = workDir
	return ctx
}

func smallConfig() *config.Config {
	cfg := config.Default()
	cfg.KmerSize = 3
	cfg.Omega = 1.0
	cfg.Filter = "none"
	cfg.NumBatches = 4
	cfg.Threads = 2
	return cfg
}

// dominantColumns makes every ghost prefer a fixed base, with the leading
// base varying by ghost so that branches disagree.
func dominantColumns(ghostIdx, column int) []phylokmer.Score {
	probs := []float64{0.01, 0.01, 0.01, 0.01}
	probs[(ghostIdx+column)%4] = 0.97
	return logColumn(probs...)
}

func runBuild(t *testing.T, cfg *config.Config, columnFor func(int, int) []phylokmer.Score) (string, string) {
	t.Helper()
	workDir := t.TempDir()
	ctx := testContext(t, workDir, cfg)
	in := testInputs(t, workDir, 6, columnFor)

	b, err := builder.New(ctx, in)
	require.NoError(t, err)
	require.NoError(t, b.Run())
	return workDir, in.OutputFile
}

func TestBuildProducesLoadableDatabase(t *testing.T) {
	cfg := smallConfig()
	workDir, output := runBuild(t, cfg, dominantColumns)

	db, err := database.LoadFile(output)
	require.NoError(t, err)
	require.Equal(t, 3, db.KmerSize)
	require.InDelta(t, 1.0, db.Omega, 1e-6)
	require.Equal(t, "DNA", db.SequenceType)
	require.False(t, db.WithPositions)

	// The embedded tree parses back to the reference topology.
	tree, err := newick.Parse(db.Tree)
	require.NoError(t, err)
	require.Equal(t, 5, tree.NodeCount())

	require.NotZero(t, db.Size())

	// Threshold correctness and per-branch uniqueness for every record.
	eps := phylokmer.Score(3 * math.Log10(0.25))
	for _, fv := range db.KmerOrder {
		seen := make(map[phylokmer.Branch]bool)
		for _, entry := range db.At(fv.Key) {
			require.Greater(t, entry.Score, eps)
			require.False(t, seen[entry.Branch], "branch %d duplicated for key %d", entry.Branch, fv.Key)
			seen[entry.Branch] = true
			// Branches are post-order ids of non-root original nodes.
			require.Less(t, entry.Branch, phylokmer.Branch(4))
		}
	}

	// The filter-value order is ascending with keys breaking ties.
	for i := 1; i < len(db.KmerOrder); i++ {
		require.True(t, db.KmerOrder[i-1].Less(db.KmerOrder[i]))
	}

	// Intermediates are cleaned up on success.
	_, err = os.Stat(filepath.Join(workDir, "hashmaps"))
	require.True(t, os.IsNotExist(err))
}

func TestBuildUniformMatrixYieldsEmptyDatabase(t *testing.T) {
	cfg := smallConfig()
	uniform := func(int, int) []phylokmer.Score {
		return logColumn(0.25, 0.25, 0.25, 0.25)
	}
	_, output := runBuild(t, cfg, uniform)

	db, err := database.LoadFile(output)
	require.NoError(t, err)
	require.Zero(t, db.Size())
}

func TestBuildOnDiskMatchesRAM(t *testing.T) {
	cfgRAM := smallConfig()
	cfgRAM.Filter = "mif0"
	_, outputRAM := runBuild(t, cfgRAM, dominantColumns)

	cfgDisk := smallConfig()
	cfgDisk.Filter = "mif0"
	cfgDisk.OnDisk = true
	_, outputDisk := runBuild(t, cfgDisk, dominantColumns)

	ramBytes, err := os.ReadFile(outputRAM)
	require.NoError(t, err)
	diskBytes, err := os.ReadFile(outputDisk)
	require.NoError(t, err)
	require.Equal(t, ramBytes, diskBytes)
}

func TestBuildRandomFilterIsDeterministic(t *testing.T) {
	cfgA := smallConfig()
	cfgA.Filter = "random"
	cfgA.Mu = 0.25
	_, outputA := runBuild(t, cfgA, dominantColumns)

	cfgB := smallConfig()
	cfgB.Filter = "random"
	cfgB.Mu = 0.25
	_, outputB := runBuild(t, cfgB, dominantColumns)

	bytesA, err := os.ReadFile(outputA)
	require.NoError(t, err)
	bytesB, err := os.ReadFile(outputB)
	require.NoError(t, err)
	require.Equal(t, bytesA, bytesB)
}

func TestBuildMuBudget(t *testing.T) {
	full := smallConfig()
	full.Filter = "mif0"
	full.Mu = 1.0
	_, fullOutput := runBuild(t, full, dominantColumns)
	fullDB, err := database.LoadFile(fullOutput)
	require.NoError(t, err)

	half := smallConfig()
	half.Filter = "mif0"
	half.Mu = 0.5
	_, halfOutput := runBuild(t, half, dominantColumns)
	halfDB, err := database.LoadFile(halfOutput)
	require.NoError(t, err)

	// The budget stops after the k-mer that crosses mu * total entries, so
	// the selection may overshoot by at most one record's entries.
	maxEntriesPerKey := 4
	budget := fullDB.NumEntries() / 2
	require.LessOrEqual(t, halfDB.NumEntries(), budget+maxEntriesPerKey)
	require.Greater(t, halfDB.NumEntries(), 0)
	require.Less(t, halfDB.Size(), fullDB.Size())

	// The kept k-mers are the best-ranked prefix of the full order.
	for i, fv := range halfDB.KmerOrder {
		require.Equal(t, fullDB.KmerOrder[i].Key, fv.Key)
	}
}

func TestBuildWithPositions(t *testing.T) {
	cfg := smallConfig()
	cfg.WithPositions = true
	_, output := runBuild(t, cfg, dominantColumns)

	db, err := database.LoadFile(output)
	require.NoError(t, err)
	require.True(t, db.WithPositions)
	for _, fv := range db.KmerOrder {
		for _, entry := range db.At(fv.Key) {
			require.LessOrEqual(t, entry.Position, phylokmer.Pos(3))
		}
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	workDir := t.TempDir()
	in := testInputs(t, workDir, 6, dominantColumns)

	cfg := smallConfig()
	cfg.KmerSize = 0
	_, err := builder.New(testContext(t, workDir, cfg), in)
	require.ErrorIs(t, err, builder.ErrInvalidConfig)

	cfg = smallConfig()
	cfg.Omega = -1
	_, err = builder.New(testContext(t, workDir, cfg), in)
	require.ErrorIs(t, err, builder.ErrInvalidConfig)

	cfg = smallConfig()
	cfg.Algorithm = "magic"
	_, err = builder.New(testContext(t, workDir, cfg), in)
	require.ErrorIs(t, err, builder.ErrInvalidConfig)

	cfg = smallConfig()
	cfg.Filter = "entropy"
	_, err = builder.New(testContext(t, workDir, cfg), in)
	require.ErrorIs(t, err, builder.ErrInvalidConfig)

	cfg = smallConfig()
	cfg.KmerSize = 13
	_, err = builder.New(testContext(t, workDir, cfg), in)
	require.ErrorIs(t, err, builder.ErrInvalidConfig)

	cfg = smallConfig()
	cfg.OnDisk = true
	cfg.WithPositions = true
	_, err = builder.New(testContext(t, workDir, cfg), in)
	require.ErrorIs(t, err, builder.ErrUnsupported)
}

func TestBuildFailureKeepsShards(t *testing.T) {
	workDir := t.TempDir()
	cfg := smallConfig()
	ctx := testContext(t, workDir, cfg)
	in := testInputs(t, workDir, 6, dominantColumns)

	// Remove one matrix so stage 1 fails partway.
	var victim string
	for label := range in.ARMapping {
		if phylotree.IsGhost(label, phylotree.GhostBoth) {
			victim = in.ARMapping[label]
			break
		}
	}
	_, err := in.Matrices.Take(victim)
	require.NoError(t, err)

	b, err := builder.New(ctx, in)
	require.NoError(t, err)
	require.Error(t, b.Run())

	// Shards stay behind for debugging.
	_, err = os.Stat(filepath.Join(workDir, "hashmaps"))
	require.NoError(t, err)
}

func TestAllAlgorithmsAgreeEndToEnd(t *testing.T) {
	// The algorithms sum scores in different orders, so databases match as
	// sets with scores equal within float tolerance rather than bytewise.
	var dbs []*database.DB
	for _, algorithm := range []string{"BB", "DC", "DCLA"} {
		cfg := smallConfig()
		cfg.Algorithm = algorithm
		cfg.Threads = 1
		_, output := runBuild(t, cfg, dominantColumns)

		db, err := database.LoadFile(output)
		require.NoError(t, err)
		dbs = append(dbs, db)
	}

	reference := dbs[0]
	for _, other := range dbs[1:] {
		require.Equal(t, reference.Size(), other.Size())
		for _, fv := range reference.KmerOrder {
			want := reference.At(fv.Key)
			got := other.At(fv.Key)
			require.Len(t, got, len(want), "key %d", fv.Key)
			for i := range want {
				require.Equal(t, want[i].Branch, got[i].Branch)
				require.InDelta(t, float64(want[i].Score), float64(got[i].Score), 1e-5)
			}
		}
	}
}
