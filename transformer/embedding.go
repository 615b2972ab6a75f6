package transformer

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/manningwu07/seq2seq/optimizations"
	"github.com/manningwu07/seq2seq/utils"
)

// Embedding maps token indices to (dModel x T) column sequences: a learned
// lookup scaled by sqrt(dModel) plus fixed sinusoidal positional encoding.
type Embedding struct {
	W   *mat.Dense // (dModel x |V|)
	pos *mat.Dense // (dModel x maxLen), fixed
	d   int

	opt Optim

	// Adam state
	t    int
	m, v *mat.Dense
}

func NewEmbedding(dModel, vocabSize, maxLen int, opt Optim) *Embedding {
	return &Embedding{
		W:   mat.NewDense(dModel, vocabSize, utils.RandomArray(dModel*vocabSize, float64(dModel))),
		pos: sinusoidalEncoding(dModel, maxLen),
		d:   dModel,
		opt: opt,
		m:   mat.NewDense(dModel, vocabSize, nil),
		v:   mat.NewDense(dModel, vocabSize, nil),
	}
}

// sinusoidalEncoding builds the (d x maxLen) table: even rows carry
// sin(t / 10000^(i/d)), odd rows cos with the same frequency.
func sinusoidalEncoding(d, maxLen int) *mat.Dense {
	out := mat.NewDense(d, maxLen, nil)
	for t := 0; t < maxLen; t++ {
		for i := 0; i < d; i += 2 {
			denom := math.Pow(10000, float64(i)/float64(d))
			out.Set(i, t, math.Sin(float64(t)/denom))
			if i+1 < d {
				out.Set(i+1, t, math.Cos(float64(t)/denom))
			}
		}
	}
	return out
}

// Forward embeds ids into a (dModel x len(ids)) matrix.
func (e *Embedding) Forward(ids []int) *mat.Dense {
	T := len(ids)
	_, maxLen := e.pos.Dims()
	if T > maxLen {
		panic("Embedding.Forward: sequence exceeds positional encoding length")
	}
	scale := math.Sqrt(float64(e.d))
	out := mat.NewDense(e.d, T, nil)
	for t, id := range ids {
		for i := 0; i < e.d; i++ {
			out.Set(i, t, e.W.At(i, id)*scale+e.pos.At(i, t))
		}
	}
	return out
}

// Backward scatters column gradients back onto the rows of W used by ids and
// applies one AdamW step. The positional table is fixed and takes no
// gradient.
func (e *Embedding) Backward(ids []int, dX *mat.Dense) {
	dW := utils.ZerosLike(e.W)
	scale := math.Sqrt(float64(e.d))
	for t, id := range ids {
		for i := 0; i < e.d; i++ {
			dW.Set(i, id, dW.At(i, id)+dX.At(i, t)*scale)
		}
	}
	if e.opt.GradClip > 0 {
		utils.ClipGrads(e.opt.GradClip, dW)
	}
	e.t++
	optimizations.AdamUpdateInPlace(e.W, dW, e.m, e.v, e.t,
		e.opt.LR, e.opt.Beta1, e.opt.Beta2, e.opt.Eps, e.opt.WeightDecay)
}
