package IO

import (
	"regexp"
	"strings"
)

// Tokenizer splits a raw sentence into surface tokens. Implementations must
// be deterministic; vocabulary lookup happens later in the pipeline.
type Tokenizer interface {
	Tokenize(s string) []string
}

// WordTokenizer lowercases and splits on word boundaries, keeping
// punctuation as separate tokens. Works for both German and English text.
type WordTokenizer struct{}

var wordRe = regexp.MustCompile(`[\p{L}\p{N}]+|[^\p{L}\p{N}\s]`)

func (WordTokenizer) Tokenize(s string) []string {
	return wordRe.FindAllString(strings.ToLower(s), -1)
}

// Detokenize joins tokens back into a readable sentence. It is the inverse
// only up to whitespace around punctuation.
func Detokenize(tokens []string) string {
	return strings.Join(tokens, " ")
}
