package viz

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestAverageHeads(t *testing.T) {
	h1 := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	h2 := mat.NewDense(2, 2, []float64{0, 1, 1, 0})

	avg, err := AverageHeads([]*mat.Dense{h1, h2})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			assert.InDelta(t, 0.5, avg.At(i, j), 1e-12)
		}
	}
}

func TestAverageHeadsErrors(t *testing.T) {
	_, err := AverageHeads(nil)
	assert.Error(t, err)

	_, err = AverageHeads([]*mat.Dense{
		mat.NewDense(2, 2, nil),
		mat.NewDense(2, 3, nil),
	})
	assert.Error(t, err)
}

func TestAverageHeadsRejectsUnrecordedWeights(t *testing.T) {
	// a freshly built attention layer holds one nil slot per head until its
	// first forward pass
	_, err := AverageHeads(make([]*mat.Dense, 8))
	assert.Error(t, err)

	_, err = AverageHeads([]*mat.Dense{mat.NewDense(2, 2, nil), nil})
	assert.Error(t, err)
}

func TestSaveHeatmapWritesPNG(t *testing.T) {
	w := mat.NewDense(2, 3, []float64{
		0.7, 0.2, 0.1,
		0.1, 0.3, 0.6,
	})
	path := filepath.Join(t.TempDir(), "attn.png")

	err := SaveHeatmap(w, []string{"ein", "hund", "<eos>"}, []string{"<bos>", "a"}, path)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestSaveHeatmapRejectsLabelMismatch(t *testing.T) {
	w := mat.NewDense(2, 3, nil)
	err := SaveHeatmap(w, []string{"nur", "zwei"}, []string{"a", "b"}, "unused.png")
	assert.Error(t, err)
}
