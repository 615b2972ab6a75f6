package transformer

import (
	"gonum.org/v1/gonum/mat"

	"github.com/manningwu07/seq2seq/optimizations"
	"github.com/manningwu07/seq2seq/params"
	"github.com/manningwu07/seq2seq/utils"
)

// Generator is the final linear projection from hidden states to vocabulary
// logits. Kept separate from the target embedding (no weight tying).
type Generator struct {
	W *mat.Dense // (|V| x dModel)
	B *mat.Dense // (|V| x 1)

	opt Optim

	t              int
	mW, vW, mB, vB *mat.Dense
	lastH          *mat.Dense
}

func NewGenerator(dModel, vocabSize int, opt Optim) *Generator {
	return &Generator{
		W:   mat.NewDense(vocabSize, dModel, utils.RandomArray(vocabSize*dModel, float64(dModel))),
		B:   mat.NewDense(vocabSize, 1, nil),
		opt: opt,
		mW:  mat.NewDense(vocabSize, dModel, nil),
		vW:  mat.NewDense(vocabSize, dModel, nil),
		mB:  mat.NewDense(vocabSize, 1, nil),
		vB:  mat.NewDense(vocabSize, 1, nil),
	}
}

// Project maps hidden states (dModel x T) to logits (|V| x T).
func (g *Generator) Project(H *mat.Dense) *mat.Dense {
	g.lastH = H
	return utils.AddBias(utils.ToDense(utils.Dot(g.W, H)), g.B)
}

// Backward consumes dLogits (|V| x T), updates W and B, and returns dH.
func (g *Generator) Backward(dLogits *mat.Dense) *mat.Dense {
	dW := utils.ToDense(utils.Dot(dLogits, g.lastH.T()))
	rows, T := dLogits.Dims()
	dB := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		s := 0.0
		for t := 0; t < T; t++ {
			s += dLogits.At(i, t)
		}
		dB.Set(i, 0, s)
	}
	dH := utils.ToDense(utils.Dot(g.W.T(), dLogits))

	if g.opt.GradClip > 0 {
		utils.ClipGrads(g.opt.GradClip, dW, dB)
	}
	g.t++
	optimizations.AdamUpdateInPlace(g.W, dW, g.mW, g.vW, g.t,
		g.opt.LR, g.opt.Beta1, g.opt.Beta2, g.opt.Eps, g.opt.WeightDecay)
	optimizations.AdamUpdateInPlace(g.B, dB, g.mB, g.vB, g.t,
		g.opt.LR, g.opt.Beta1, g.opt.Beta2, g.opt.Eps, 0.0)
	return dH
}

// Model is the encoder-decoder network behind the three-method collaborator
// contract: Encode, Decode, Project. Sequences are token-index slices;
// matrices are column-major (dModel x T).
type Model struct {
	Cfg params.Config

	SrcEmb *Embedding
	TgtEmb *Embedding
	Enc    []*EncoderBlock
	Dec    []*DecoderBlock
	Gen    *Generator

	SrcVocabSize int
	TgtVocabSize int

	// cached inputs of the most recent forward pass, consumed by Backward
	srcIDs []int
	tgtIDs []int
}

func New(cfg params.Config, srcVocabSize, tgtVocabSize int) *Model {
	opt := OptimFromConfig(cfg)
	m := &Model{
		Cfg:          cfg,
		SrcEmb:       NewEmbedding(cfg.DModel, srcVocabSize, cfg.MaxSeqLen, opt),
		TgtEmb:       NewEmbedding(cfg.DModel, tgtVocabSize, cfg.MaxSeqLen, opt),
		Gen:          NewGenerator(cfg.DModel, tgtVocabSize, opt),
		SrcVocabSize: srcVocabSize,
		TgtVocabSize: tgtVocabSize,
	}
	for i := 0; i < cfg.EncLayers; i++ {
		m.Enc = append(m.Enc, NewEncoderBlock(cfg.DModel, cfg.HiddenSize, cfg.NumHeads, opt))
	}
	for i := 0; i < cfg.DecLayers; i++ {
		m.Dec = append(m.Dec, NewDecoderBlock(cfg.DModel, cfg.HiddenSize, cfg.NumHeads, opt))
	}
	return m
}

// Encode runs the source sequence through the encoder stack and returns the
// memory (dModel x len(src)). srcMask is additive (T x T); nil permits all.
func (m *Model) Encode(src []int, srcMask *mat.Dense) *mat.Dense {
	m.srcIDs = src
	X := m.SrcEmb.Forward(src)
	for _, b := range m.Enc {
		X = b.Forward(X, srcMask)
	}
	return X
}

// Decode runs the target prefix against the encoder memory and returns the
// decoder hidden states (dModel x len(tgt)). tgtMask is the causal(+padding)
// mask over target positions; memMask excludes padded memory keys.
func (m *Model) Decode(tgt []int, memory *mat.Dense, tgtMask, memMask *mat.Dense) *mat.Dense {
	m.tgtIDs = tgt
	X := m.TgtEmb.Forward(tgt)
	for _, b := range m.Dec {
		X = b.Forward(X, memory, tgtMask, memMask)
	}
	return X
}

// Project maps decoder hidden states to vocabulary logits.
func (m *Model) Project(H *mat.Dense) *mat.Dense {
	return m.Gen.Project(H)
}

// Backward runs the full reverse pass from dLogits: generator, decoder stack
// (accumulating the memory gradient out of every cross-attention), encoder
// stack, then both embedding tables. Every layer applies its own AdamW step
// as the gradient passes through, teacher-forcing training only.
func (m *Model) Backward(dLogits *mat.Dense) {
	dH := m.Gen.Backward(dLogits)

	dMemTotal := mat.NewDense(m.Cfg.DModel, len(m.srcIDs), nil)
	for i := len(m.Dec) - 1; i >= 0; i-- {
		var dMem *mat.Dense
		dH, dMem = m.Dec[i].Backward(dH)
		dMemTotal = utils.ToDense(utils.Add(dMemTotal, dMem))
	}
	m.TgtEmb.Backward(m.tgtIDs, dH)

	dMemGrad := dMemTotal
	for i := len(m.Enc) - 1; i >= 0; i-- {
		dMemGrad = m.Enc[i].Backward(dMemGrad)
	}
	m.SrcEmb.Backward(m.srcIDs, dMemGrad)
}

// CrossAttention returns the per-head cross-attention weights of the last
// decoder block from the most recent forward pass.
func (m *Model) CrossAttention() []*mat.Dense {
	if len(m.Dec) == 0 {
		return nil
	}
	return m.Dec[len(m.Dec)-1].Cross.LastWeights()
}
