package decode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/manningwu07/seq2seq/IO"
	"github.com/manningwu07/seq2seq/params"
	"github.com/manningwu07/seq2seq/vocab"
)

// scriptedModel emits a fixed token per decoding step, ignoring the input.
type scriptedModel struct {
	vocabSize int
	script    []int // token to emit at step 0, 1, ...
	dModel    int

	encodeCalls int
	decodeCalls int
}

func (s *scriptedModel) Encode(src []int, _ *mat.Dense) *mat.Dense {
	s.encodeCalls++
	return mat.NewDense(s.dModel, len(src), nil)
}

func (s *scriptedModel) Decode(tgt []int, _ *mat.Dense, _, _ *mat.Dense) *mat.Dense {
	s.decodeCalls++
	return mat.NewDense(s.dModel, len(tgt), nil)
}

func (s *scriptedModel) Project(hidden *mat.Dense) *mat.Dense {
	_, cols := hidden.Dims()
	out := mat.NewDense(s.vocabSize, cols, nil)
	step := s.decodeCalls - 1
	tok := params.EosID
	if step < len(s.script) {
		tok = s.script[step]
	}
	for j := 0; j < cols; j++ {
		out.Set(tok, j, 1.0)
	}
	return out
}

func TestGreedyStopsOnEos(t *testing.T) {
	m := &scriptedModel{vocabSize: 10, dModel: 4, script: []int{params.EosID}}

	got := Greedy(m, []int{params.BosID, 5, params.EosID}, 50)

	assert.Equal(t, []int{params.BosID, params.EosID}, got)
	assert.Equal(t, 1, m.encodeCalls, "source is encoded exactly once")
	assert.Equal(t, 1, m.decodeCalls)
}

func TestGreedyEmitsScriptThenEos(t *testing.T) {
	m := &scriptedModel{vocabSize: 10, dModel: 4, script: []int{7, 8, params.EosID}}

	got := Greedy(m, []int{params.BosID, params.EosID}, 50)

	assert.Equal(t, []int{params.BosID, 7, 8, params.EosID}, got)
}

func TestGreedyLengthCap(t *testing.T) {
	// never emits <eos>
	m := &scriptedModel{vocabSize: 10, dModel: 4, script: []int{4, 4, 4, 4, 4, 4, 4, 4, 4, 4}}

	got := Greedy(m, []int{params.BosID, params.EosID}, 5)

	require.Len(t, got, 5)
	assert.Equal(t, params.BosID, got[0])
	for _, id := range got[1:] {
		assert.Equal(t, 4, id)
	}
}

func TestGreedyDegenerateMaxLen(t *testing.T) {
	m := &scriptedModel{vocabSize: 10, dModel: 4}

	assert.Equal(t, []int{params.BosID}, Greedy(m, []int{params.BosID, params.EosID}, 1))
	assert.Equal(t, []int{params.BosID}, Greedy(m, []int{params.BosID, params.EosID}, 0))
	assert.Zero(t, m.decodeCalls)
}

func TestTranslate(t *testing.T) {
	srcPipe := &IO.Pipeline{Tok: IO.WordTokenizer{}, Vocab: vocab.Build([]string{"ein", "hund"}, vocab.Options{})}
	tgtPipe := &IO.Pipeline{Tok: IO.WordTokenizer{}, Vocab: vocab.Build([]string{"a", "dog"}, vocab.Options{})}

	// alphabetical tie-break puts "a"/"ein" at 4 and "dog"/"hund" at 5
	m := &scriptedModel{vocabSize: 6, dModel: 4, script: []int{4, 5, params.EosID}}
	res := Translate(m, srcPipe, tgtPipe, "Ein Hund", 20)

	assert.Equal(t, "a dog", res.Text)
	assert.Equal(t, []int{params.BosID, 4, 5, params.EosID}, res.Src)
	assert.Equal(t, []int{params.BosID, 4, 5, params.EosID}, res.IDs)
}

func TestGreedyDeterministic(t *testing.T) {
	src := []int{params.BosID, 3, 4, params.EosID}
	a := Greedy(&scriptedModel{vocabSize: 10, dModel: 4, script: []int{6, params.EosID}}, src, 20)
	b := Greedy(&scriptedModel{vocabSize: 10, dModel: 4, script: []int{6, params.EosID}}, src, 20)
	assert.Equal(t, a, b)
}
