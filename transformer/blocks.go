package transformer

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/manningwu07/seq2seq/utils"
)

// Residual branches are scaled by 1/sqrt(2) so the sum keeps unit variance
// through deep stacks.
var resScale = 1 / math.Sqrt(2)

// EncoderBlock: pre-norm self-attention then pre-norm MLP, both with scaled
// residuals. The source side is bidirectional; the mask only excludes
// padding keys.
type EncoderBlock struct {
	Ln1, Ln2 *LayerNorm
	Attn     *Attention
	Mlp      *MLP
}

func NewEncoderBlock(dModel, hidden, nHeads int, opt Optim) *EncoderBlock {
	return &EncoderBlock{
		Ln1:  NewLayerNorm(dModel, opt),
		Ln2:  NewLayerNorm(dModel, opt),
		Attn: NewAttention(dModel, nHeads, opt),
		Mlp:  NewMLP(dModel, hidden, opt),
	}
}

func (b *EncoderBlock) Forward(X *mat.Dense, mask *mat.Dense) *mat.Dense {
	x1 := b.Ln1.Forward(X)
	attnOut := b.Attn.Forward(x1, x1, mask)
	xRes := utils.ToDense(utils.Add(X, utils.Scale(resScale, attnOut)))
	x2 := b.Ln2.Forward(xRes)
	mlpOut := b.Mlp.Forward(x2)
	return utils.ToDense(utils.Add(xRes, utils.Scale(resScale, mlpOut)))
}

// Backward updates weights and returns dX.
//
// Y = xRes + c*MLP(Ln2(xRes)); xRes = X + c*Attn(Ln1(X))
func (b *EncoderBlock) Backward(grad *mat.Dense) *mat.Dense {
	dX2 := b.Mlp.Backward(utils.ToDense(utils.Scale(resScale, grad)))
	dXres := utils.ToDense(utils.Add(grad, b.Ln2.Backward(dX2)))

	dXq, dXkv := b.Attn.Backward(utils.ToDense(utils.Scale(resScale, dXres)))
	dX1 := utils.ToDense(utils.Add(dXq, dXkv)) // self-attention: same input on both ports
	return utils.ToDense(utils.Add(dXres, b.Ln1.Backward(dX1)))
}

// DecoderBlock adds a cross-attention sublayer between the causal
// self-attention and the MLP. Queries come from the target stream,
// keys/values from the encoder memory.
type DecoderBlock struct {
	Ln1, Ln2, Ln3 *LayerNorm
	Self          *Attention
	Cross         *Attention
	Mlp           *MLP
}

func NewDecoderBlock(dModel, hidden, nHeads int, opt Optim) *DecoderBlock {
	return &DecoderBlock{
		Ln1:   NewLayerNorm(dModel, opt),
		Ln2:   NewLayerNorm(dModel, opt),
		Ln3:   NewLayerNorm(dModel, opt),
		Self:  NewAttention(dModel, nHeads, opt),
		Cross: NewAttention(dModel, nHeads, opt),
		Mlp:   NewMLP(dModel, hidden, opt),
	}
}

func (b *DecoderBlock) Forward(X, memory *mat.Dense, tgtMask, memMask *mat.Dense) *mat.Dense {
	x1 := b.Ln1.Forward(X)
	selfOut := b.Self.Forward(x1, x1, tgtMask)
	xRes := utils.ToDense(utils.Add(X, utils.Scale(resScale, selfOut)))

	x2 := b.Ln2.Forward(xRes)
	crossOut := b.Cross.Forward(x2, memory, memMask)
	xRes2 := utils.ToDense(utils.Add(xRes, utils.Scale(resScale, crossOut)))

	x3 := b.Ln3.Forward(xRes2)
	mlpOut := b.Mlp.Forward(x3)
	return utils.ToDense(utils.Add(xRes2, utils.Scale(resScale, mlpOut)))
}

// Backward updates weights and returns (dX, dMemory). The memory gradient is
// this block's cross-attention contribution; the caller accumulates it
// across blocks before backing through the encoder.
func (b *DecoderBlock) Backward(grad *mat.Dense) (dX, dMemory *mat.Dense) {
	dX3 := b.Mlp.Backward(utils.ToDense(utils.Scale(resScale, grad)))
	dXres2 := utils.ToDense(utils.Add(grad, b.Ln3.Backward(dX3)))

	dX2, dMem := b.Cross.Backward(utils.ToDense(utils.Scale(resScale, dXres2)))
	dXres := utils.ToDense(utils.Add(dXres2, b.Ln2.Backward(dX2)))

	dXq, dXkv := b.Self.Backward(utils.ToDense(utils.Scale(resScale, dXres)))
	dX1 := utils.ToDense(utils.Add(dXq, dXkv))
	dX = utils.ToDense(utils.Add(dXres, b.Ln1.Backward(dX1)))
	return dX, dMem
}
