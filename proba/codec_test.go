package proba

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatrixCodecRoundTrip(t *testing.T) {
	m, err := NewMatrix("N12", [][]float32{
		logColumn(0.97, 0.01, 0.01, 0.01),
		logColumn(0.25, 0.25, 0.25, 0.25),
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, m.Save(&buf))

	loaded, err := Load(&buf)
	require.NoError(t, err)
	require.Equal(t, "N12", loaded.Label())
	require.Equal(t, 2, loaded.Width())
	require.Equal(t, 4, loaded.Depth())
	for j := 0; j < 2; j++ {
		for i := 0; i < 4; i++ {
			require.InDelta(t, float64(m.Get(i, j)), float64(loaded.Get(i, j)), 1e-7)
		}
	}
}

func TestLoadRejectsBadDistribution(t *testing.T) {
	m, err := NewMatrix("bad", [][]float32{
		logColumn(0.5, 0.1, 0.1, 0.1),
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, m.Save(&buf))

	_, err = Load(&buf)
	require.ErrorIs(t, err, ErrBadMatrix)
}

func TestDirStore(t *testing.T) {
	dir := t.TempDir()
	m := uniformMatrix(t, 3)
	require.NoError(t, m.SaveFile(dir))

	labels, err := Labels(dir)
	require.NoError(t, err)
	require.Equal(t, []string{"node"}, labels)

	store := DirStore(dir)
	loaded, err := store.Take("node")
	require.NoError(t, err)
	require.Equal(t, 3, loaded.Width())

	_, err = store.Take("missing")
	require.Error(t, err)
}
