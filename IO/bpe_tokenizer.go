package IO

import (
	"fmt"
	"os"
	"path/filepath"

	tk "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/models"
	"github.com/sugarme/tokenizer/normalizers"
	"github.com/sugarme/tokenizer/pretokenizers"
	"github.com/sugarme/tokenizer/processors"
	"github.com/sugarme/tokenizer/trainers"

	"github.com/manningwu07/seq2seq/params"
	"github.com/manningwu07/seq2seq/vocab"
)

// BPETokenizer is a subword alternative to WordTokenizer, backed by a
// trained BPE model. Its ID space is the tokenizer's own; use Vocab to get
// a Vocabulary aligned with it.
type BPETokenizer struct {
	t *tk.Tokenizer
}

// TrainBPE trains a BPE tokenizer on corpus files and saves it to tokPath.
func TrainBPE(corpusPaths []string, tokPath string, vocabSize int) (*BPETokenizer, error) {
	bpe := models.NewBPE()
	t := tk.NewTokenizer(bpe)

	t.WithNormalizer(normalizers.NewSequence(
		normalizers.NewNFKC(),
		normalizers.NewLowercase(),
	))
	t.WithPreTokenizer(pretokenizers.NewWhitespaceSplit())

	proc := processors.NewTemplateProcessing(
		fmt.Sprintf("%s $A %s", params.BosToken, params.EosToken),
		"$A",
		map[string]int{
			params.BosToken: params.BosID,
			params.EosToken: params.EosID,
		},
	)
	t.WithPostProcessor(proc)

	tr := trainers.NewBpeTrainer()
	tr.VocabSize = vocabSize
	tr.SpecialTokens = append([]string(nil), params.Specials...)

	if err := t.Train(tr, corpusPaths); err != nil {
		return nil, fmt.Errorf("train bpe: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(tokPath), 0o755); err != nil {
		return nil, err
	}
	if err := t.Save(tokPath); err != nil {
		return nil, fmt.Errorf("save tokenizer: %w", err)
	}
	return &BPETokenizer{t: t}, nil
}

// LoadBPE loads a previously saved tokenizer.json.
func LoadBPE(tokPath string) (*BPETokenizer, error) {
	t, err := tk.FromFile(tokPath)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %s: %w", tokPath, err)
	}
	return &BPETokenizer{t: t}, nil
}

// Tokenize returns the subword surface forms for s.
func (b *BPETokenizer) Tokenize(s string) []string {
	enc, err := b.t.EncodeSingle(s)
	if err != nil {
		return nil
	}
	return append([]string(nil), enc.Tokens...)
}

// Vocab builds a Vocabulary mirroring the tokenizer's own id assignment, so
// pipeline lookups agree with the BPE model.
func (b *BPETokenizer) Vocab() (vocab.Vocabulary, error) {
	m := b.t.GetVocab(true)
	id2tok := make([]string, len(m))
	tok2id := make(map[string]int, len(m))
	for tok, id := range m {
		if id < 0 || id >= len(id2tok) {
			return vocab.Vocabulary{}, fmt.Errorf("bpe vocab: id %d out of range for %d tokens", id, len(id2tok))
		}
		tok2id[tok] = id
		id2tok[id] = tok
	}
	return vocab.Vocabulary{TokenToID: tok2id, IDToToken: id2tok}, nil
}
