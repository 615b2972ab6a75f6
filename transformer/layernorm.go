package transformer

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/manningwu07/seq2seq/optimizations"
)

// LayerNorm normalizes each column of a (d x T) input to zero mean and unit
// variance, then applies a learned affine (gamma, beta).
type LayerNorm struct {
	d   int
	eps float64

	gamma *mat.Dense // (d x 1)
	beta  *mat.Dense // (d x 1)

	opt Optim

	// cache
	xhat   *mat.Dense // (d x T)
	invStd []float64  // per column

	// Adam state
	t              int
	mGamma, vGamma *mat.Dense
	mBeta, vBeta   *mat.Dense
}

func NewLayerNorm(d int, opt Optim) *LayerNorm {
	g := mat.NewDense(d, 1, nil)
	for i := 0; i < d; i++ {
		g.Set(i, 0, 1)
	}
	return &LayerNorm{
		d:      d,
		eps:    1e-5,
		gamma:  g,
		beta:   mat.NewDense(d, 1, nil),
		opt:    opt,
		mGamma: mat.NewDense(d, 1, nil),
		vGamma: mat.NewDense(d, 1, nil),
		mBeta:  mat.NewDense(d, 1, nil),
		vBeta:  mat.NewDense(d, 1, nil),
	}
}

func (ln *LayerNorm) Forward(X *mat.Dense) *mat.Dense {
	d, T := X.Dims()
	out := mat.NewDense(d, T, nil)
	xhat := mat.NewDense(d, T, nil)
	inv := make([]float64, T)
	for t := 0; t < T; t++ {
		mu := 0.0
		for i := 0; i < d; i++ {
			mu += X.At(i, t)
		}
		mu /= float64(d)
		var v float64
		for i := 0; i < d; i++ {
			diff := X.At(i, t) - mu
			v += diff * diff
		}
		v /= float64(d)
		istd := 1.0 / math.Sqrt(v+ln.eps)
		inv[t] = istd
		for i := 0; i < d; i++ {
			n := (X.At(i, t) - mu) * istd
			xhat.Set(i, t, n)
			out.Set(i, t, ln.gamma.At(i, 0)*n+ln.beta.At(i, 0))
		}
	}
	ln.xhat = xhat
	ln.invStd = inv
	return out
}

// Backward applies Adam updates to gamma/beta and returns dX.
func (ln *LayerNorm) Backward(dY *mat.Dense) *mat.Dense {
	dX, dGamma, dBeta := ln.BackwardGradsOnly(dY)
	ln.t++
	optimizations.AdamUpdateInPlace(ln.gamma, dGamma, ln.mGamma, ln.vGamma, ln.t,
		ln.opt.LR, ln.opt.Beta1, ln.opt.Beta2, ln.opt.Eps, 0.0)
	optimizations.AdamUpdateInPlace(ln.beta, dBeta, ln.mBeta, ln.vBeta, ln.t,
		ln.opt.LR, ln.opt.Beta1, ln.opt.Beta2, ln.opt.Eps, 0.0)
	return dX
}

func (ln *LayerNorm) BackwardGradsOnly(dY *mat.Dense) (dX, dGamma, dBeta *mat.Dense) {
	d, T := dY.Dims()
	dGamma = mat.NewDense(d, 1, nil)
	dBeta = mat.NewDense(d, 1, nil)
	for i := 0; i < d; i++ {
		sumDG := 0.0
		sumDB := 0.0
		for t := 0; t < T; t++ {
			sumDG += dY.At(i, t) * ln.xhat.At(i, t)
			sumDB += dY.At(i, t)
		}
		dGamma.Set(i, 0, sumDG)
		dBeta.Set(i, 0, sumDB)
	}

	dX = mat.NewDense(d, T, nil)
	for t := 0; t < T; t++ {
		istd := ln.invStd[t]
		sum1 := 0.0
		sum2 := 0.0
		for i := 0; i < d; i++ {
			gy := dY.At(i, t) * ln.gamma.At(i, 0)
			sum1 += gy
			sum2 += gy * ln.xhat.At(i, t)
		}
		for i := 0; i < d; i++ {
			gy := dY.At(i, t) * ln.gamma.At(i, 0)
			dxi := (float64(d)*gy - sum1 - ln.xhat.At(i, t)*sum2) * (istd / float64(d))
			dX.Set(i, t, dxi)
		}
	}
	return dX, dGamma, dBeta
}
