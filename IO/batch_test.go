package IO

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manningwu07/seq2seq/params"
)

func ex(src, tgt []int) Example { return Example{Src: src, Tgt: tgt} }

func TestMakeBatchesRectangular(t *testing.T) {
	examples := []Example{
		ex([]int{2, 5, 3}, []int{2, 9, 9, 3}),
		ex([]int{2, 5, 6, 7, 3}, []int{2, 3}),
		ex([]int{2, 3}, []int{2, 8, 3}),
	}

	batches := MakeBatches(examples, 2)
	require.Len(t, batches, 2)

	first := batches[0]
	require.Len(t, first.Src, 2)
	// every source row padded to the longest source, every target row to the
	// longest target
	assert.Len(t, first.Src[0], 5)
	assert.Len(t, first.Src[1], 5)
	assert.Len(t, first.Tgt[0], 4)
	assert.Len(t, first.Tgt[1], 4)

	// right-padded with <pad>
	assert.Equal(t, []int{2, 5, 3, params.PadID, params.PadID}, first.Src[0])
	assert.Equal(t, []int{2, 3, params.PadID, params.PadID}, first.Tgt[1])

	// final batch holds the remainder
	assert.Len(t, batches[1].Src, 1)
	assert.Equal(t, []int{2, 3}, batches[1].Src[0])
}

func TestMakeBatchesNoPaddingWhenUniform(t *testing.T) {
	examples := []Example{
		ex([]int{2, 4, 3}, []int{2, 5, 3}),
		ex([]int{2, 6, 3}, []int{2, 7, 3}),
	}
	batches := MakeBatches(examples, 2)
	require.Len(t, batches, 1)
	for _, row := range append(batches[0].Src, batches[0].Tgt...) {
		for _, id := range row {
			assert.NotEqual(t, params.PadID, id)
		}
	}
}

func TestMakeBatchesEmptyInput(t *testing.T) {
	assert.Empty(t, MakeBatches(nil, 4))
}

func TestFilterByLength(t *testing.T) {
	examples := []Example{
		ex([]int{2, 3}, []int{2, 3}),
		ex([]int{2, 4, 5, 6, 3}, []int{2, 3}),
		ex([]int{2, 3}, []int{2, 4, 5, 6, 3}),
	}
	got := FilterByLength(examples, 4)
	require.Len(t, got, 1)
	assert.Equal(t, examples[0], got[0])

	assert.Len(t, FilterByLength(examples, 0), 3, "non-positive cap keeps everything")
}

func TestEncodePairs(t *testing.T) {
	tok := WordTokenizer{}
	srcPipe := pipelineFor(t, tok, "ein hund")
	tgtPipe := pipelineFor(t, tok, "a dog")

	pairs := []Pair{{Src: []string{"ein", "hund"}, Tgt: []string{"a", "dog"}}}
	got := EncodePairs(pairs, srcPipe, tgtPipe)

	require.Len(t, got, 1)
	assert.Equal(t, params.BosID, got[0].Src[0])
	assert.Equal(t, params.EosID, got[0].Src[len(got[0].Src)-1])
	assert.Len(t, got[0].Tgt, 4)
}
