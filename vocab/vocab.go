package vocab

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/manningwu07/seq2seq/params"
)

// Vocabulary is a fixed two-way mapping between token strings and indices.
// Indices 0..3 are always <unk>, <pad>, <bos>, <eos>. Built once, then
// immutable; lookups for absent tokens resolve to <unk> and never fail.
type Vocabulary struct {
	TokenToID map[string]int
	IDToToken []string
}

// Options controls Build.
type Options struct {
	MaxSize int // cap on total size including specials (<=0: unbounded)
	MinFreq int // drop tokens seen fewer times (<=1: keep all)
}

// Build counts tokens and assigns indices: specials first, then tokens by
// descending frequency with alphabetical tie-break so the result is a
// deterministic function of the stream.
func Build(tokens []string, opts Options) Vocabulary {
	cnt := map[string]int{}
	for _, t := range tokens {
		if t == "" {
			continue
		}
		cnt[t]++
	}
	for _, s := range params.Specials {
		delete(cnt, s)
	}

	type kv struct {
		k string
		v int
	}
	arr := make([]kv, 0, len(cnt))
	for k, v := range cnt {
		if opts.MinFreq > 1 && v < opts.MinFreq {
			continue
		}
		arr = append(arr, kv{k, v})
	}
	sort.Slice(arr, func(i, j int) bool {
		if arr[i].v == arr[j].v {
			return arr[i].k < arr[j].k
		}
		return arr[i].v > arr[j].v
	})

	idToToken := make([]string, 0, len(arr)+len(params.Specials))
	idToToken = append(idToToken, params.Specials...)
	for _, p := range arr {
		if opts.MaxSize > 0 && len(idToToken) >= opts.MaxSize {
			break
		}
		idToToken = append(idToToken, p.k)
	}

	tokenToID := make(map[string]int, len(idToToken))
	for i, t := range idToToken {
		tokenToID[t] = i
	}
	return Vocabulary{TokenToID: tokenToID, IDToToken: idToToken}
}

// Lookup maps a token to its index, falling back to <unk>.
func (v Vocabulary) Lookup(tok string) int {
	if id, ok := v.TokenToID[tok]; ok {
		return id
	}
	return params.UnkID
}

// LookupAll maps a token slice to indices.
func (v Vocabulary) LookupAll(toks []string) []int {
	ids := make([]int, len(toks))
	for i, t := range toks {
		ids[i] = v.Lookup(t)
	}
	return ids
}

// Token maps one index back to its token string, rendering out-of-range
// indices as <unk>.
func (v Vocabulary) Token(id int) string {
	if id < 0 || id >= len(v.IDToToken) {
		return params.UnkToken
	}
	return v.IDToToken[id]
}

// Tokens maps indices back to token strings. Out-of-range indices render as
// <unk> rather than panicking, mirroring Lookup.
func (v Vocabulary) Tokens(ids []int) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		if id < 0 || id >= len(v.IDToToken) {
			out[i] = params.UnkToken
			continue
		}
		out[i] = v.IDToToken[id]
	}
	return out
}

// Size returns |V|.
func (v Vocabulary) Size() int {
	return len(v.IDToToken)
}

type vocabJSON struct {
	IDToToken []string `json:"id_to_token"`
}

// SaveJSON writes the vocabulary to path, creating parent directories.
func (v Vocabulary) SaveJSON(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(vocabJSON{IDToToken: v.IDToToken})
}

// LoadJSON reads a vocabulary written by SaveJSON.
func LoadJSON(path string) (Vocabulary, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Vocabulary{}, err
	}
	var data vocabJSON
	if err := json.Unmarshal(b, &data); err != nil {
		return Vocabulary{}, fmt.Errorf("parsing vocab %s: %w", path, err)
	}
	tokenToID := make(map[string]int, len(data.IDToToken))
	for i, t := range data.IDToToken {
		tokenToID[t] = i
	}
	v := Vocabulary{TokenToID: tokenToID, IDToToken: data.IDToToken}
	for i, s := range params.Specials {
		if i >= len(v.IDToToken) || v.IDToToken[i] != s {
			return Vocabulary{}, fmt.Errorf("vocab %s: special token %q missing at index %d", path, s, i)
		}
	}
	return v, nil
}
