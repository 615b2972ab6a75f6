package vocab

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manningwu07/seq2seq/params"
)

func TestBuildReservesSpecials(t *testing.T) {
	v := Build([]string{"der", "hund", "der"}, Options{})

	require.GreaterOrEqual(t, v.Size(), 4)
	assert.Equal(t, params.UnkToken, v.IDToToken[params.UnkID])
	assert.Equal(t, params.PadToken, v.IDToToken[params.PadID])
	assert.Equal(t, params.BosToken, v.IDToToken[params.BosID])
	assert.Equal(t, params.EosToken, v.IDToToken[params.EosID])
}

func TestBuildFrequencyOrder(t *testing.T) {
	toks := []string{"b", "a", "a", "a", "c", "c"}
	v := Build(toks, Options{})

	// a (3) before c (2) before b (1)
	assert.Equal(t, 4, v.Lookup("a"))
	assert.Equal(t, 5, v.Lookup("c"))
	assert.Equal(t, 6, v.Lookup("b"))
}

func TestBuildTieBreakAlphabetical(t *testing.T) {
	v := Build([]string{"zebra", "apfel"}, Options{})
	assert.Less(t, v.Lookup("apfel"), v.Lookup("zebra"))
}

func TestBuildMinFreqAndMaxSize(t *testing.T) {
	toks := []string{"oft", "oft", "oft", "selten"}

	v := Build(toks, Options{MinFreq: 2})
	assert.Equal(t, params.UnkID, v.Lookup("selten"), "rare token falls to <unk>")
	assert.NotEqual(t, params.UnkID, v.Lookup("oft"))

	capped := Build([]string{"a", "a", "b"}, Options{MaxSize: 5})
	assert.Equal(t, 5, capped.Size())
	assert.Equal(t, params.UnkID, capped.Lookup("b"))
}

func TestLookupUnknownFallsBack(t *testing.T) {
	v := Build([]string{"haus"}, Options{})
	assert.Equal(t, params.UnkID, v.Lookup("nie-gesehen"))
	assert.Equal(t, []int{v.Lookup("haus"), params.UnkID}, v.LookupAll([]string{"haus", "xyz"}))
}

func TestTokenOutOfRange(t *testing.T) {
	v := Build(nil, Options{})
	assert.Equal(t, params.UnkToken, v.Token(-1))
	assert.Equal(t, params.UnkToken, v.Token(v.Size()))
}

func TestJSONRoundtrip(t *testing.T) {
	v := Build([]string{"eins", "zwei", "zwei"}, Options{})
	path := filepath.Join(t.TempDir(), "vocab.json")

	require.NoError(t, v.SaveJSON(path))
	got, err := LoadJSON(path)
	require.NoError(t, err)

	assert.Equal(t, v.IDToToken, got.IDToToken)
	assert.Equal(t, v.Lookup("zwei"), got.Lookup("zwei"))
}

func TestLoadJSONRejectsBadSpecials(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"id_to_token":["a","b","c","d"]}`), 0o644))

	_, err := LoadJSON(path)
	assert.Error(t, err)
}
