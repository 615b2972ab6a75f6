package IO

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manningwu07/seq2seq/params"
	"github.com/manningwu07/seq2seq/vocab"
)

func TestWordTokenizer(t *testing.T) {
	tok := WordTokenizer{}

	assert.Equal(t,
		[]string{"zwei", "hunde", "spielen", "im", "schnee", "."},
		tok.Tokenize("Zwei Hunde spielen im Schnee."))

	assert.Equal(t,
		[]string{"don", "'", "t", "stop", "!"},
		tok.Tokenize("Don't stop!"))

	assert.Empty(t, tok.Tokenize("   "))
}

func TestDetokenize(t *testing.T) {
	assert.Equal(t, "a dog runs .", Detokenize([]string{"a", "dog", "runs", "."}))
	assert.Equal(t, "", Detokenize(nil))
}

func TestPipelineEncodeWrapsMarkers(t *testing.T) {
	tok := WordTokenizer{}
	v := vocab.Build(tok.Tokenize("ein hund läuft"), vocab.Options{})
	p := &Pipeline{Tok: tok, Vocab: v}

	ids := p.Encode("ein Hund läuft")

	require.GreaterOrEqual(t, len(ids), 2)
	assert.Equal(t, params.BosID, ids[0])
	assert.Equal(t, params.EosID, ids[len(ids)-1])
	for _, id := range ids[1 : len(ids)-1] {
		assert.NotEqual(t, params.UnkID, id, "all tokens are in vocabulary")
	}
}

func TestPipelineRoundtrip(t *testing.T) {
	tok := WordTokenizer{}
	sentence := "der kleine hund schläft ."
	v := vocab.Build(tok.Tokenize(sentence), vocab.Options{})
	p := &Pipeline{Tok: tok, Vocab: v}

	got := p.Decode(p.Encode(sentence))
	assert.Equal(t, tok.Tokenize(sentence), got)
}

func TestPipelineUnknownBecomesUnk(t *testing.T) {
	tok := WordTokenizer{}
	v := vocab.Build(tok.Tokenize("nur diese worte"), vocab.Options{})
	p := &Pipeline{Tok: tok, Vocab: v}

	ids := p.Encode("andere worte")
	assert.Equal(t, []int{params.BosID, params.UnkID, v.Lookup("worte"), params.EosID}, ids)

	// <unk> survives decoding as its marker token
	assert.Equal(t, []string{params.UnkToken, "worte"}, p.Decode(ids))
}

func TestPipelineDecodeDropsPadding(t *testing.T) {
	tok := WordTokenizer{}
	v := vocab.Build(tok.Tokenize("wort"), vocab.Options{})
	p := &Pipeline{Tok: tok, Vocab: v}

	ids := append(p.Encode("wort"), params.PadID, params.PadID)
	assert.Equal(t, []string{"wort"}, p.Decode(ids))
}
