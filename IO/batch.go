package IO

import (
	"github.com/manningwu07/seq2seq/params"
)

// Batch is a rectangular group of id sequences. Within one batch every
// source row has the same length and every target row has the same length,
// padded on the right with <pad>.
type Batch struct {
	Src [][]int
	Tgt [][]int
}

// Example is one encoded sentence pair.
type Example struct {
	Src []int
	Tgt []int
}

// EncodePairs runs both pipelines over a tokenized partition.
func EncodePairs(pairs []Pair, srcPipe, tgtPipe *Pipeline) []Example {
	out := make([]Example, len(pairs))
	for i, p := range pairs {
		out[i] = Example{
			Src: srcPipe.EncodeTokens(p.Src),
			Tgt: tgtPipe.EncodeTokens(p.Tgt),
		}
	}
	return out
}

// FilterByLength drops examples whose encoded length on either side exceeds
// maxLen, the longest sequence the positional encoding covers.
func FilterByLength(examples []Example, maxLen int) []Example {
	if maxLen <= 0 {
		return examples
	}
	out := make([]Example, 0, len(examples))
	for _, ex := range examples {
		if len(ex.Src) > maxLen || len(ex.Tgt) > maxLen {
			continue
		}
		out = append(out, ex)
	}
	return out
}

// MakeBatches groups examples into batches of at most batchSize, padding each
// side to its longest sequence in the batch. The final batch may be smaller.
func MakeBatches(examples []Example, batchSize int) []Batch {
	if batchSize <= 0 {
		batchSize = 1
	}
	var batches []Batch
	for start := 0; start < len(examples); start += batchSize {
		end := start + batchSize
		if end > len(examples) {
			end = len(examples)
		}
		group := examples[start:end]

		maxSrc, maxTgt := 0, 0
		for _, ex := range group {
			if len(ex.Src) > maxSrc {
				maxSrc = len(ex.Src)
			}
			if len(ex.Tgt) > maxTgt {
				maxTgt = len(ex.Tgt)
			}
		}

		b := Batch{
			Src: make([][]int, len(group)),
			Tgt: make([][]int, len(group)),
		}
		for i, ex := range group {
			b.Src[i] = padTo(ex.Src, maxSrc)
			b.Tgt[i] = padTo(ex.Tgt, maxTgt)
		}
		batches = append(batches, b)
	}
	return batches
}

func padTo(ids []int, n int) []int {
	out := make([]int, n)
	copy(out, ids)
	for i := len(ids); i < n; i++ {
		out[i] = params.PadID
	}
	return out
}
