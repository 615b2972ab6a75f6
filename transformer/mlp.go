package transformer

import (
	"gonum.org/v1/gonum/mat"

	"github.com/manningwu07/seq2seq/optimizations"
	"github.com/manningwu07/seq2seq/utils"
)

// MLP is the position-wise feed-forward sublayer: GELU between two affine
// maps, applied to every column of a (dModel x T) input.
type MLP struct {
	inputs, hiddens, outputs  int
	hiddenWeights, hiddenBias *mat.Dense
	outputWeights, outputBias *mat.Dense

	opt Optim

	// Adam state
	t                  int
	mHiddenW, vHiddenW *mat.Dense
	mHiddenB, vHiddenB *mat.Dense
	mOutputW, vOutputW *mat.Dense
	mOutputB, vOutputB *mat.Dense

	// cache for backprop
	lastInput, hiddenPreAct, hiddenOutputs *mat.Dense
}

func NewMLP(dModel, hidden int, opt Optim) *MLP {
	return &MLP{
		inputs:  dModel,
		hiddens: hidden,
		outputs: dModel,
		opt:     opt,

		hiddenWeights: mat.NewDense(hidden, dModel, utils.RandomArray(hidden*dModel, float64(dModel))),
		hiddenBias:    mat.NewDense(hidden, 1, nil),
		outputWeights: mat.NewDense(dModel, hidden, utils.RandomArray(dModel*hidden, float64(hidden))),
		outputBias:    mat.NewDense(dModel, 1, nil),

		mHiddenW: mat.NewDense(hidden, dModel, nil),
		vHiddenW: mat.NewDense(hidden, dModel, nil),
		mHiddenB: mat.NewDense(hidden, 1, nil),
		vHiddenB: mat.NewDense(hidden, 1, nil),
		mOutputW: mat.NewDense(dModel, hidden, nil),
		vOutputW: mat.NewDense(dModel, hidden, nil),
		mOutputB: mat.NewDense(dModel, 1, nil),
		vOutputB: mat.NewDense(dModel, 1, nil),
	}
}

func (mlp *MLP) Forward(X *mat.Dense) *mat.Dense {
	mlp.lastInput = X
	hiddenLin := utils.ToDense(utils.Dot(mlp.hiddenWeights, X)) // (h x T)
	mlp.hiddenPreAct = utils.AddBias(hiddenLin, mlp.hiddenBias) // (h x T)
	mlp.hiddenOutputs = utils.ToDense(utils.Apply(utils.GeluApply, mlp.hiddenPreAct))
	finalLin := utils.ToDense(utils.Dot(mlp.outputWeights, mlp.hiddenOutputs)) // (d x T)
	return utils.AddBias(finalLin, mlp.outputBias)
}

// Backward applies AdamW and returns dX.
func (mlp *MLP) Backward(grad *mat.Dense) *mat.Dense {
	dX, dWhid, dbHidden, dWout, dbOut := mlp.BackwardGradsOnly(grad)

	if mlp.opt.GradClip > 0 {
		utils.ClipGrads(mlp.opt.GradClip, dWout, dWhid, dbOut, dbHidden)
	}

	mlp.t++
	optimizations.AdamUpdateInPlace(mlp.outputWeights, dWout, mlp.mOutputW, mlp.vOutputW,
		mlp.t, mlp.opt.LR, mlp.opt.Beta1, mlp.opt.Beta2, mlp.opt.Eps, mlp.opt.WeightDecay)
	optimizations.AdamUpdateInPlace(mlp.outputBias, dbOut, mlp.mOutputB, mlp.vOutputB,
		mlp.t, mlp.opt.LR, mlp.opt.Beta1, mlp.opt.Beta2, mlp.opt.Eps, 0.0)
	optimizations.AdamUpdateInPlace(mlp.hiddenWeights, dWhid, mlp.mHiddenW, mlp.vHiddenW,
		mlp.t, mlp.opt.LR, mlp.opt.Beta1, mlp.opt.Beta2, mlp.opt.Eps, mlp.opt.WeightDecay)
	optimizations.AdamUpdateInPlace(mlp.hiddenBias, dbHidden, mlp.mHiddenB, mlp.vHiddenB,
		mlp.t, mlp.opt.LR, mlp.opt.Beta1, mlp.opt.Beta2, mlp.opt.Eps, 0.0)
	return dX
}

func (mlp *MLP) BackwardGradsOnly(grad *mat.Dense) (dX, dWhid, dbHidden, dWout, dbOut *mat.Dense) {
	dWout = utils.ToDense(utils.Dot(grad, mlp.hiddenOutputs.T()))

	// sum gradients over time for biases
	_, T := grad.Dims()
	dbOut = mat.NewDense(mlp.outputs, 1, nil)
	for i := 0; i < mlp.outputs; i++ {
		s := 0.0
		for t := 0; t < T; t++ {
			s += grad.At(i, t)
		}
		dbOut.Set(i, 0, s)
	}

	hiddenGradOut := utils.ToDense(utils.Dot(mlp.outputWeights.T(), grad))
	hiddenErrors := utils.ToDense(utils.Multiply(hiddenGradOut, utils.GeluPrime(mlp.hiddenPreAct)))

	dWhid = utils.ToDense(utils.Dot(hiddenErrors, mlp.lastInput.T()))
	dbHidden = mat.NewDense(mlp.hiddens, 1, nil)
	for i := 0; i < mlp.hiddens; i++ {
		s := 0.0
		for t := 0; t < T; t++ {
			s += hiddenErrors.At(i, t)
		}
		dbHidden.Set(i, 0, s)
	}

	dX = utils.ToDense(utils.Dot(mlp.hiddenWeights.T(), hiddenErrors))
	return dX, dWhid, dbHidden, dWout, dbOut
}
