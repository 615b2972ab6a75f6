package utils

import "gonum.org/v1/gonum/mat"

// Additive attention masks: 0 where attending is permitted, NegInf where it
// is not. Scores get the mask added before softmax, so a forbidden entry
// contributes e^-inf = 0 weight. All builders are pure functions of shape and
// padding positions.

// NegInf is the additive penalty for forbidden attention entries. A large
// finite value rather than math.Inf(-1) so that a row that mixes forbidden
// and permitted entries can never produce NaN through inf-inf in the
// stabilized softmax.
const NegInf = -1e30

// CausalMask returns a (T x T) mask permitting position i to attend to j only
// when j <= i: zeros on and below the diagonal, NegInf strictly above.
func CausalMask(T int) *mat.Dense {
	out := mat.NewDense(T, T, nil)
	for i := 0; i < T; i++ {
		for j := i + 1; j < T; j++ {
			out.Set(i, j, NegInf)
		}
	}
	return out
}

// FullMask returns a (q x k) all-permitted mask, used for the bidirectional
// source side.
func FullMask(q, k int) *mat.Dense {
	return mat.NewDense(q, k, nil)
}

// PaddingMask marks the positions of a padded sequence that hold the padding
// index. True means "this position is padding".
func PaddingMask(ids []int, padID int) []bool {
	out := make([]bool, len(ids))
	for i, id := range ids {
		out[i] = id == padID
	}
	return out
}

// ApplyKeyPadding returns a copy of mask with every column whose key position
// is padding forced to NegInf, so no query can attend to a padding key. The
// mask's column count must equal len(keyPad).
func ApplyKeyPadding(mask *mat.Dense, keyPad []bool) *mat.Dense {
	r, c := mask.Dims()
	if c != len(keyPad) {
		panic("ApplyKeyPadding: mask columns do not match key positions")
	}
	out := mat.DenseCopyOf(mask)
	for j, pad := range keyPad {
		if !pad {
			continue
		}
		for i := 0; i < r; i++ {
			out.Set(i, j, NegInf)
		}
	}
	return out
}
