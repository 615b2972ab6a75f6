package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestArgmaxVecTiesToLowestIndex(t *testing.T) {
	v := mat.NewDense(4, 1, []float64{0.5, 2.0, 2.0, 1.0})
	assert.Equal(t, 1, ArgmaxVec(v))

	flat := mat.NewDense(3, 1, []float64{7, 7, 7})
	assert.Equal(t, 0, ArgmaxVec(flat))
}

func TestCrossEntropyPerfectPrediction(t *testing.T) {
	// one dominant logit: loss near zero, gradient near zero at gold
	logits := mat.NewDense(4, 1, []float64{0, 50, 0, 0})
	loss, grad := CrossEntropyWithIndex(logits, 1)

	assert.InDelta(t, 0.0, loss, 1e-6)
	assert.InDelta(t, 0.0, grad.At(1, 0), 1e-6)
}

func TestCrossEntropyUniform(t *testing.T) {
	n := 8
	logits := mat.NewDense(n, 1, nil)
	loss, grad := CrossEntropyWithIndex(logits, 3)

	assert.InDelta(t, math.Log(float64(n)), loss, 1e-9)
	// gradient rows sum to zero (softmax minus one-hot)
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += grad.At(i, 0)
	}
	assert.InDelta(t, 0.0, sum, 1e-12)
}

func TestOneHot(t *testing.T) {
	v := OneHot(4, 2)
	r, c := v.Dims()
	require.Equal(t, 4, r)
	require.Equal(t, 1, c)
	for i := 0; i < 4; i++ {
		want := 0.0
		if i == 2 {
			want = 1.0
		}
		assert.Equal(t, want, v.At(i, 0))
	}
	// out-of-range index leaves the vector all zero
	assert.True(t, mat.EqualApprox(OneHot(3, 5), mat.NewDense(3, 1, nil), 0))
}

func TestSubtract(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{3, 4, 5, 6})
	b := mat.NewDense(2, 2, []float64{1, 1, 2, 2})
	assert.True(t, mat.EqualApprox(Subtract(a, b), mat.NewDense(2, 2, []float64{2, 3, 3, 4}), 1e-12))
}

func TestCrossEntropyOutOfRangePanics(t *testing.T) {
	logits := mat.NewDense(3, 1, nil)
	assert.Panics(t, func() { CrossEntropyWithIndex(logits, 3) })
	assert.Panics(t, func() { CrossEntropyWithIndex(logits, -1) })
}

func TestRowSoftmaxRowsSumToOne(t *testing.T) {
	m := mat.NewDense(2, 3, []float64{1, 2, 3, -5, 0, 5})
	s := RowSoftmax(m)
	for i := 0; i < 2; i++ {
		sum := 0.0
		for j := 0; j < 3; j++ {
			sum += s.At(i, j)
		}
		assert.InDelta(t, 1.0, sum, 1e-12)
	}
}

func TestRowSoftmaxMaskedZeroesForbidden(t *testing.T) {
	m := mat.NewDense(1, 3, []float64{1, 10, 1})
	mask := mat.NewDense(1, 3, []float64{0, NegInf, 0})

	s := RowSoftmaxMasked(m, mask)

	assert.InDelta(t, 0.0, s.At(0, 1), 1e-12)
	assert.InDelta(t, 0.5, s.At(0, 0), 1e-12)
	assert.InDelta(t, 0.5, s.At(0, 2), 1e-12)
}

func TestRowSoftmaxMaskedNilMask(t *testing.T) {
	m := mat.NewDense(1, 2, []float64{0, 0})
	s := RowSoftmaxMasked(m, nil)
	assert.InDelta(t, 0.5, s.At(0, 0), 1e-12)
}

func TestClipGrads(t *testing.T) {
	g := mat.NewDense(1, 2, []float64{3, 4}) // norm 5
	ClipGrads(1.0, g)

	norm := math.Hypot(g.At(0, 0), g.At(0, 1))
	require.InDelta(t, 1.0, norm, 1e-12)

	small := mat.NewDense(1, 2, []float64{0.3, 0.4})
	ClipGrads(1.0, small)
	assert.InDelta(t, 0.3, small.At(0, 0), 1e-12, "below threshold stays untouched")
}

func TestRandomArrayBounded(t *testing.T) {
	fanIn := 16.0
	limit := 1.0 / math.Sqrt(fanIn)
	arr := RandomArray(1000, fanIn)
	require.Len(t, arr, 1000)
	for _, v := range arr {
		assert.LessOrEqual(t, math.Abs(v), limit)
	}
}

func TestGeluZeroAtZero(t *testing.T) {
	assert.Equal(t, 0.0, GeluApply(0, 0, 0))
	// monotone-ish sanity away from the dip
	assert.Greater(t, GeluApply(0, 0, 2.0), GeluApply(0, 0, 1.0))
}
