package transformer

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/manningwu07/seq2seq/optimizations"
	"github.com/manningwu07/seq2seq/utils"
)

// Attention is multi-head scaled dot-product attention over column-major
// sequences: inputs are (dModel x T) with one column per position. The same
// type serves self-attention (Xq == Xkv) and cross-attention (queries from
// the decoder, keys/values from encoder memory). Masks are additive
// (Tq x Tk) matrices built by the utils mask helpers; nil means
// all-permitted.
type Attention struct {
	H      int
	dModel int
	dHead  int

	Wquery  []*mat.Dense // per head: (dHead x dModel)
	Wkey    []*mat.Dense
	Wvalue  []*mat.Dense
	Woutput *mat.Dense // (dModel x dModel)

	opt Optim

	// Adam state
	t        int
	mWq, vWq []*mat.Dense
	mWk, vWk []*mat.Dense
	mWv, vWv []*mat.Dense
	mWo, vWo *mat.Dense

	// cache for backprop
	Xq, Xkv *mat.Dense
	Q, K, V []*mat.Dense
	Scores  []*mat.Dense
	A       []*mat.Dense
	OCat    *mat.Dense

	parallel bool // fan out over heads if true
}

func NewAttention(dModel, nHeads int, opt Optim) *Attention {
	if dModel%nHeads != 0 {
		panic("dModel must be divisible by nHeads")
	}
	dHead := dModel / nHeads
	attn := &Attention{
		H:      nHeads,
		dModel: dModel,
		dHead:  dHead,
		opt:    opt,

		Wquery: make([]*mat.Dense, nHeads),
		Wkey:   make([]*mat.Dense, nHeads),
		Wvalue: make([]*mat.Dense, nHeads),

		mWq: make([]*mat.Dense, nHeads),
		vWq: make([]*mat.Dense, nHeads),
		mWk: make([]*mat.Dense, nHeads),
		vWk: make([]*mat.Dense, nHeads),
		mWv: make([]*mat.Dense, nHeads),
		vWv: make([]*mat.Dense, nHeads),

		Q:      make([]*mat.Dense, nHeads),
		K:      make([]*mat.Dense, nHeads),
		V:      make([]*mat.Dense, nHeads),
		Scores: make([]*mat.Dense, nHeads),
		A:      make([]*mat.Dense, nHeads),

		parallel: nHeads > 1,
	}
	for h := 0; h < nHeads; h++ {
		attn.Wquery[h] = mat.NewDense(dHead, dModel, utils.RandomArray(dHead*dModel, float64(dModel)))
		attn.Wkey[h] = mat.NewDense(dHead, dModel, utils.RandomArray(dHead*dModel, float64(dModel)))
		attn.Wvalue[h] = mat.NewDense(dHead, dModel, utils.RandomArray(dHead*dModel, float64(dModel)))
		attn.mWq[h] = mat.NewDense(dHead, dModel, nil)
		attn.vWq[h] = mat.NewDense(dHead, dModel, nil)
		attn.mWk[h] = mat.NewDense(dHead, dModel, nil)
		attn.vWk[h] = mat.NewDense(dHead, dModel, nil)
		attn.mWv[h] = mat.NewDense(dHead, dModel, nil)
		attn.vWv[h] = mat.NewDense(dHead, dModel, nil)
	}
	attn.Woutput = mat.NewDense(dModel, dModel, utils.RandomArray(dModel*dModel, float64(dModel)))
	attn.mWo = mat.NewDense(dModel, dModel, nil)
	attn.vWo = mat.NewDense(dModel, dModel, nil)
	return attn
}

// Forward computes masked attention. Xq is (dModel x Tq), Xkv is
// (dModel x Tk), mask is (Tq x Tk) additive or nil.
func (attn *Attention) Forward(Xq, Xkv *mat.Dense, mask *mat.Dense) *mat.Dense {
	attn.Xq, attn.Xkv = Xq, Xkv
	_, Tq := Xq.Dims()
	headsCat := mat.NewDense(attn.dModel, Tq, nil)
	rescale := 1.0 / math.Sqrt(float64(attn.dHead))

	work := func(h int) {
		Q := utils.ToDense(utils.Dot(attn.Wquery[h], Xq))  // (dHead x Tq)
		K := utils.ToDense(utils.Dot(attn.Wkey[h], Xkv))   // (dHead x Tk)
		V := utils.ToDense(utils.Dot(attn.Wvalue[h], Xkv)) // (dHead x Tk)

		S := utils.ToDense(utils.Scale(rescale, utils.Dot(Q.T(), K))) // (Tq x Tk)
		A := utils.RowSoftmaxMasked(S, mask)                          // (Tq x Tk)
		O := utils.ToDense(utils.Dot(V, A.T()))                       // (dHead x Tq)

		attn.Q[h], attn.K[h], attn.V[h] = Q, K, V
		attn.Scores[h], attn.A[h] = S, A

		base := h * attn.dHead
		dst := headsCat.Slice(base, base+attn.dHead, 0, Tq).(*mat.Dense)
		dst.Copy(O)
	}
	if attn.parallel && attn.H > 1 {
		var wg sync.WaitGroup
		wg.Add(attn.H)
		for h := 0; h < attn.H; h++ {
			go func(hh int) { defer wg.Done(); work(hh) }(h)
		}
		wg.Wait()
	} else {
		for h := 0; h < attn.H; h++ {
			work(h)
		}
	}
	attn.OCat = headsCat
	return utils.ToDense(utils.Dot(attn.Woutput, headsCat)) // (dModel x Tq)
}

// Backward computes grads, applies AdamW in place, and returns the gradients
// w.r.t. the query input and the key/value input. For self-attention the
// caller adds the two.
func (attn *Attention) Backward(dY *mat.Dense) (dXq, dXkv *mat.Dense) {
	dXq, dXkv, dWq, dWk, dWv, dWout := attn.BackwardGradsOnly(dY)

	if attn.opt.GradClip > 0 {
		all := append([]*mat.Dense{dWout}, dWq...)
		all = append(all, dWk...)
		all = append(all, dWv...)
		utils.ClipGrads(attn.opt.GradClip, all...)
	}

	attn.t++
	for h := 0; h < attn.H; h++ {
		optimizations.AdamUpdateInPlace(attn.Wquery[h], dWq[h], attn.mWq[h], attn.vWq[h], attn.t,
			attn.opt.LR, attn.opt.Beta1, attn.opt.Beta2, attn.opt.Eps, attn.opt.WeightDecay)
		optimizations.AdamUpdateInPlace(attn.Wkey[h], dWk[h], attn.mWk[h], attn.vWk[h], attn.t,
			attn.opt.LR, attn.opt.Beta1, attn.opt.Beta2, attn.opt.Eps, attn.opt.WeightDecay)
		optimizations.AdamUpdateInPlace(attn.Wvalue[h], dWv[h], attn.mWv[h], attn.vWv[h], attn.t,
			attn.opt.LR, attn.opt.Beta1, attn.opt.Beta2, attn.opt.Eps, attn.opt.WeightDecay)
	}
	optimizations.AdamUpdateInPlace(attn.Woutput, dWout, attn.mWo, attn.vWo, attn.t,
		attn.opt.LR, attn.opt.Beta1, attn.opt.Beta2, attn.opt.Eps, attn.opt.WeightDecay)

	return dXq, dXkv
}

// BackwardGradsOnly computes gradients without touching the weights.
func (attn *Attention) BackwardGradsOnly(dY *mat.Dense) (
	dXq, dXkv *mat.Dense,
	dWq, dWk, dWv []*mat.Dense,
	dWout *mat.Dense,
) {
	dWq = make([]*mat.Dense, attn.H)
	dWk = make([]*mat.Dense, attn.H)
	dWv = make([]*mat.Dense, attn.H)

	_, Tq := attn.Xq.Dims()
	_, Tk := attn.Xkv.Dims()

	// Y = Wout * OCat
	dWout = utils.ToDense(utils.Dot(dY, attn.OCat.T()))
	dOcat := utils.ToDense(utils.Dot(attn.Woutput.T(), dY))

	dXqTotal := mat.NewDense(attn.dModel, Tq, nil)
	dXkvTotal := mat.NewDense(attn.dModel, Tk, nil)
	rescale := 1.0 / math.Sqrt(float64(attn.dHead))

	for h := 0; h < attn.H; h++ {
		base := h * attn.dHead
		dO := dOcat.Slice(base, base+attn.dHead, 0, Tq).(*mat.Dense)

		// O = V * A^T
		dV := utils.ToDense(utils.Dot(dO, attn.A[h]))      // (dHead x Tk)
		dAT := utils.ToDense(utils.Dot(attn.V[h].T(), dO)) // (Tk x Tq)
		dA := dAT.T()                                      // (Tq x Tk)

		// A = softmax_row(S + mask); mask is constant so it drops out
		dS := utils.SoftmaxBackward(dA, attn.A[h]) // (Tq x Tk)

		// S = Q^T K / sqrt(dHead)
		dQ := utils.ToDense(utils.Scale(rescale, utils.Dot(attn.K[h], dS.T()))) // (dHead x Tq)
		dK := utils.ToDense(utils.Scale(rescale, utils.Dot(attn.Q[h], dS)))     // (dHead x Tk)

		dWq[h] = utils.ToDense(utils.Dot(dQ, attn.Xq.T()))
		dWk[h] = utils.ToDense(utils.Dot(dK, attn.Xkv.T()))
		dWv[h] = utils.ToDense(utils.Dot(dV, attn.Xkv.T()))

		dXqTotal = utils.ToDense(utils.Add(dXqTotal, utils.Dot(attn.Wquery[h].T(), dQ)))
		dXkvH := utils.Add(utils.Dot(attn.Wkey[h].T(), dK), utils.Dot(attn.Wvalue[h].T(), dV))
		dXkvTotal = utils.ToDense(utils.Add(dXkvTotal, dXkvH))
	}
	return dXqTotal, dXkvTotal, dWq, dWk, dWv, dWout
}

// LastWeights exposes the attention matrices of the most recent forward
// pass, one (Tq x Tk) matrix per head. Used for heatmap rendering.
func (attn *Attention) LastWeights() []*mat.Dense {
	return attn.A
}
