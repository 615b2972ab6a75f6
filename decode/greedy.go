package decode

import (
	"gonum.org/v1/gonum/mat"

	"github.com/manningwu07/seq2seq/IO"
	"github.com/manningwu07/seq2seq/params"
	"github.com/manningwu07/seq2seq/utils"
)

// Model is the numeric collaborator: an encoder-decoder network exposed as
// three calls. Sequences are token indices; matrices are (dModel x T).
type Model interface {
	Encode(src []int, srcMask *mat.Dense) *mat.Dense
	Decode(tgt []int, memory *mat.Dense, tgtMask, memMask *mat.Dense) *mat.Dense
	Project(hidden *mat.Dense) *mat.Dense
}

// greedy decoding is a small state machine: it starts from <bos>, expands
// one token at a time, and is done on <eos> or the length cap. Both exits
// are normal completions.
type greedyState int

const (
	stateStart greedyState = iota
	stateExpanding
	stateDone
)

// Greedy translates src into at most maxLen tokens, <bos> included. Each
// step re-decodes the whole prefix and takes the argmax of the final
// position's logits; ties resolve to the lowest index. The source is
// encoded once with full visibility. maxLen <= 1 leaves no room to expand
// and yields just [<bos>].
func Greedy(m Model, src []int, maxLen int) []int {
	srcPad := utils.PaddingMask(src, params.PadID)
	memMaskRow := func(tq int) *mat.Dense {
		return utils.ApplyKeyPadding(utils.FullMask(tq, len(src)), srcPad)
	}

	memory := m.Encode(src, utils.ApplyKeyPadding(utils.FullMask(len(src), len(src)), srcPad))

	ys := []int{params.BosID}
	state := stateStart
	if maxLen <= 1 {
		state = stateDone
	}

	for state != stateDone {
		state = stateExpanding

		tgtMask := utils.CausalMask(len(ys))
		hidden := m.Decode(ys, memory, tgtMask, memMaskRow(len(ys)))
		logits := m.Project(utils.LastCol(hidden))
		next := utils.ArgmaxVec(logits)
		ys = append(ys, next)

		if next == params.EosID || len(ys) >= maxLen {
			state = stateDone
		}
	}
	return ys
}

// Result carries everything one translation produces. Src and IDs are the
// encoded source and decoded target, markers included, for callers that
// inspect attention alongside the text.
type Result struct {
	Text string
	Src  []int
	IDs  []int
}

// Translate runs the full inference path for one raw sentence: encode the
// source through its pipeline, decode greedily, then map ids back to words.
func Translate(m Model, srcPipe, tgtPipe *IO.Pipeline, sentence string, maxLen int) Result {
	src := srcPipe.Encode(sentence)
	ids := Greedy(m, src, maxLen)
	return Result{
		Text: IO.Detokenize(tgtPipe.Decode(ids)),
		Src:  src,
		IDs:  ids,
	}
}
