package IO

import (
	"github.com/manningwu07/seq2seq/params"
	"github.com/manningwu07/seq2seq/vocab"
)

// Pipeline turns raw sentences into model-ready id sequences. The stages are
// fixed and ordered: tokenize, look up ids, wrap with <bos>/<eos>. One
// Pipeline per language side.
type Pipeline struct {
	Tok   Tokenizer
	Vocab vocab.Vocabulary
}

// Encode runs the full pipeline over one sentence. Unknown tokens map to
// <unk>; the result always starts with <bos> and ends with <eos>.
func (p *Pipeline) Encode(sentence string) []int {
	return p.EncodeTokens(p.Tok.Tokenize(sentence))
}

// EncodeTokens wraps pre-tokenized input, for corpus data that is tokenized
// once up front.
func (p *Pipeline) EncodeTokens(tokens []string) []int {
	ids := make([]int, 0, len(tokens)+2)
	ids = append(ids, params.BosID)
	ids = append(ids, p.Vocab.LookupAll(tokens)...)
	ids = append(ids, params.EosID)
	return ids
}

// Decode maps ids back to surface tokens, dropping the reserved markers.
func (p *Pipeline) Decode(ids []int) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		switch id {
		case params.BosID, params.EosID, params.PadID:
			continue
		}
		out = append(out, p.Vocab.Token(id))
	}
	return out
}
