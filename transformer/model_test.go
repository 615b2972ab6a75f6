package transformer

import (
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/manningwu07/seq2seq/params"
)

func smallConfig() params.Config {
	cfg := params.Default()
	cfg.DModel = 8
	cfg.HiddenSize = 16
	cfg.NumHeads = 2
	cfg.EncLayers = 2
	cfg.DecLayers = 2
	cfg.MaxSeqLen = 16
	return cfg
}

func TestSinusoidalEncoding(t *testing.T) {
	pe := sinusoidalEncoding(8, 10)

	// row 0 is sin(t), row 1 is cos(t)
	for pos := 0; pos < 10; pos++ {
		if got, want := pe.At(0, pos), math.Sin(float64(pos)); math.Abs(got-want) > 1e-12 {
			t.Fatalf("pe[0,%d] = %g, want sin(%d) = %g", pos, got, pos, want)
		}
		if got, want := pe.At(1, pos), math.Cos(float64(pos)); math.Abs(got-want) > 1e-12 {
			t.Fatalf("pe[1,%d] = %g, want cos(%d) = %g", pos, got, pos, want)
		}
	}
	// all entries bounded
	r, c := pe.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := pe.At(i, j); v < -1 || v > 1 {
				t.Fatalf("pe[%d,%d] = %g out of [-1,1]", i, j, v)
			}
		}
	}
}

func TestModelShapes(t *testing.T) {
	rand.Seed(1)
	cfg := smallConfig()
	m := New(cfg, 11, 13)

	src := []int{params.BosID, 5, 6, params.EosID}
	tgt := []int{params.BosID, 4, 7}

	memory := m.Encode(src, nil)
	if r, c := memory.Dims(); r != cfg.DModel || c != len(src) {
		t.Fatalf("memory is (%d x %d), want (%d x %d)", r, c, cfg.DModel, len(src))
	}

	hidden := m.Decode(tgt, memory, nil, nil)
	if r, c := hidden.Dims(); r != cfg.DModel || c != len(tgt) {
		t.Fatalf("hidden is (%d x %d), want (%d x %d)", r, c, cfg.DModel, len(tgt))
	}

	logits := m.Project(hidden)
	if r, c := logits.Dims(); r != 13 || c != len(tgt) {
		t.Fatalf("logits is (%d x %d), want (13 x %d)", r, c, len(tgt))
	}
}

func TestForwardDeterministic(t *testing.T) {
	rand.Seed(2)
	cfg := smallConfig()
	m := New(cfg, 9, 9)

	src := []int{params.BosID, 4, params.EosID}
	a := m.Project(m.Decode([]int{params.BosID, 5}, m.Encode(src, nil), nil, nil))
	b := m.Project(m.Decode([]int{params.BosID, 5}, m.Encode(src, nil), nil, nil))

	if !mat.EqualApprox(a, b, 1e-12) {
		t.Fatal("forward pass is not deterministic")
	}
}

func TestSaveLoadRoundtrip(t *testing.T) {
	rand.Seed(3)
	cfg := smallConfig()
	m := New(cfg, 9, 11)
	path := filepath.Join(t.TempDir(), "model.gob")

	src := []int{params.BosID, 4, 5, params.EosID}
	tgt := []int{params.BosID, 6}
	want := m.Project(m.Decode(tgt, m.Encode(src, nil), nil, nil))

	if err := Save(m, path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.SrcVocabSize != 9 || loaded.TgtVocabSize != 11 {
		t.Fatalf("vocab sizes not restored: %d, %d", loaded.SrcVocabSize, loaded.TgtVocabSize)
	}

	got := loaded.Project(loaded.Decode(tgt, loaded.Encode(src, nil), nil, nil))
	if !mat.EqualApprox(want, got, 1e-12) {
		t.Fatal("restored model disagrees with the original on the same input")
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.gob")); err == nil {
		t.Fatal("expected an error for a missing checkpoint")
	}
}
