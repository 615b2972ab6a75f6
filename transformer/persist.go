package transformer

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"github.com/manningwu07/seq2seq/params"
)

// Checkpoints are gob files holding every learned matrix plus the Adam
// moment estimates and step counters, so a restored model resumes exactly
// where the saved one stopped. Architecture config travels with the file and
// is used to rebuild the network on load.

type matData struct {
	R, C int
	Data []float64
}

func snap(m *mat.Dense) matData {
	if m == nil {
		return matData{}
	}
	r, c := m.Dims()
	raw := mat.DenseCopyOf(m).RawMatrix()
	return matData{R: r, C: c, Data: append([]float64(nil), raw.Data...)}
}

func restore(md matData, name string) (*mat.Dense, error) {
	if md.R == 0 || md.C == 0 {
		return nil, fmt.Errorf("checkpoint: empty matrix %q", name)
	}
	if len(md.Data) != md.R*md.C {
		return nil, fmt.Errorf("checkpoint: %q has %d values, want %d", name, len(md.Data), md.R*md.C)
	}
	return mat.NewDense(md.R, md.C, md.Data), nil
}

type attnData struct {
	Wq, Wk, Wv         []matData
	MWq, VWq, MWk, VWk []matData
	MWv, VWv           []matData
	Wo, MWo, VWo       matData
	T                  int
}

type mlpData struct {
	HiddenW, HiddenB, OutputW, OutputB     matData
	MHiddenW, VHiddenW, MHiddenB, VHiddenB matData
	MOutputW, VOutputW, MOutputB, VOutputB matData
	T                                      int
}

type lnData struct {
	Gamma, Beta                  matData
	MGamma, VGamma, MBeta, VBeta matData
	T                            int
}

type embData struct {
	W, M, V matData
	T       int
}

type genData struct {
	W, B           matData
	MW, VW, MB, VB matData
	T              int
}

type encBlockData struct {
	Ln1, Ln2 lnData
	Attn     attnData
	Mlp      mlpData
}

type decBlockData struct {
	Ln1, Ln2, Ln3 lnData
	Self, Cross   attnData
	Mlp           mlpData
}

type checkpoint struct {
	Cfg          params.Config
	SrcVocabSize int
	TgtVocabSize int

	SrcEmb, TgtEmb embData
	Enc            []encBlockData
	Dec            []decBlockData
	Gen            genData
}

func snapAttn(a *Attention) attnData {
	d := attnData{
		Wo: snap(a.Woutput), MWo: snap(a.mWo), VWo: snap(a.vWo),
		T: a.t,
	}
	for h := 0; h < a.H; h++ {
		d.Wq = append(d.Wq, snap(a.Wquery[h]))
		d.Wk = append(d.Wk, snap(a.Wkey[h]))
		d.Wv = append(d.Wv, snap(a.Wvalue[h]))
		d.MWq = append(d.MWq, snap(a.mWq[h]))
		d.VWq = append(d.VWq, snap(a.vWq[h]))
		d.MWk = append(d.MWk, snap(a.mWk[h]))
		d.VWk = append(d.VWk, snap(a.vWk[h]))
		d.MWv = append(d.MWv, snap(a.mWv[h]))
		d.VWv = append(d.VWv, snap(a.vWv[h]))
	}
	return d
}

func restoreAttn(a *Attention, d attnData, where string) error {
	if len(d.Wq) != a.H {
		return fmt.Errorf("checkpoint: %s has %d heads, want %d", where, len(d.Wq), a.H)
	}
	var err error
	for h := 0; h < a.H; h++ {
		if a.Wquery[h], err = restore(d.Wq[h], where+".Wq"); err != nil {
			return err
		}
		if a.Wkey[h], err = restore(d.Wk[h], where+".Wk"); err != nil {
			return err
		}
		if a.Wvalue[h], err = restore(d.Wv[h], where+".Wv"); err != nil {
			return err
		}
		if a.mWq[h], err = restore(d.MWq[h], where+".mWq"); err != nil {
			return err
		}
		if a.vWq[h], err = restore(d.VWq[h], where+".vWq"); err != nil {
			return err
		}
		if a.mWk[h], err = restore(d.MWk[h], where+".mWk"); err != nil {
			return err
		}
		if a.vWk[h], err = restore(d.VWk[h], where+".vWk"); err != nil {
			return err
		}
		if a.mWv[h], err = restore(d.MWv[h], where+".mWv"); err != nil {
			return err
		}
		if a.vWv[h], err = restore(d.VWv[h], where+".vWv"); err != nil {
			return err
		}
	}
	if a.Woutput, err = restore(d.Wo, where+".Wo"); err != nil {
		return err
	}
	if a.mWo, err = restore(d.MWo, where+".mWo"); err != nil {
		return err
	}
	if a.vWo, err = restore(d.VWo, where+".vWo"); err != nil {
		return err
	}
	a.t = d.T
	return nil
}

func snapMLP(m *MLP) mlpData {
	return mlpData{
		HiddenW: snap(m.hiddenWeights), HiddenB: snap(m.hiddenBias),
		OutputW: snap(m.outputWeights), OutputB: snap(m.outputBias),
		MHiddenW: snap(m.mHiddenW), VHiddenW: snap(m.vHiddenW),
		MHiddenB: snap(m.mHiddenB), VHiddenB: snap(m.vHiddenB),
		MOutputW: snap(m.mOutputW), VOutputW: snap(m.vOutputW),
		MOutputB: snap(m.mOutputB), VOutputB: snap(m.vOutputB),
		T: m.t,
	}
}

func restoreMLP(m *MLP, d mlpData, where string) error {
	var err error
	if m.hiddenWeights, err = restore(d.HiddenW, where+".hiddenW"); err != nil {
		return err
	}
	if m.hiddenBias, err = restore(d.HiddenB, where+".hiddenB"); err != nil {
		return err
	}
	if m.outputWeights, err = restore(d.OutputW, where+".outputW"); err != nil {
		return err
	}
	if m.outputBias, err = restore(d.OutputB, where+".outputB"); err != nil {
		return err
	}
	if m.mHiddenW, err = restore(d.MHiddenW, where+".mHiddenW"); err != nil {
		return err
	}
	if m.vHiddenW, err = restore(d.VHiddenW, where+".vHiddenW"); err != nil {
		return err
	}
	if m.mHiddenB, err = restore(d.MHiddenB, where+".mHiddenB"); err != nil {
		return err
	}
	if m.vHiddenB, err = restore(d.VHiddenB, where+".vHiddenB"); err != nil {
		return err
	}
	if m.mOutputW, err = restore(d.MOutputW, where+".mOutputW"); err != nil {
		return err
	}
	if m.vOutputW, err = restore(d.VOutputW, where+".vOutputW"); err != nil {
		return err
	}
	if m.mOutputB, err = restore(d.MOutputB, where+".mOutputB"); err != nil {
		return err
	}
	if m.vOutputB, err = restore(d.VOutputB, where+".vOutputB"); err != nil {
		return err
	}
	m.t = d.T
	return nil
}

func snapLN(ln *LayerNorm) lnData {
	return lnData{
		Gamma: snap(ln.gamma), Beta: snap(ln.beta),
		MGamma: snap(ln.mGamma), VGamma: snap(ln.vGamma),
		MBeta: snap(ln.mBeta), VBeta: snap(ln.vBeta),
		T: ln.t,
	}
}

func restoreLN(ln *LayerNorm, d lnData, where string) error {
	var err error
	if ln.gamma, err = restore(d.Gamma, where+".gamma"); err != nil {
		return err
	}
	if ln.beta, err = restore(d.Beta, where+".beta"); err != nil {
		return err
	}
	if ln.mGamma, err = restore(d.MGamma, where+".mGamma"); err != nil {
		return err
	}
	if ln.vGamma, err = restore(d.VGamma, where+".vGamma"); err != nil {
		return err
	}
	if ln.mBeta, err = restore(d.MBeta, where+".mBeta"); err != nil {
		return err
	}
	if ln.vBeta, err = restore(d.VBeta, where+".vBeta"); err != nil {
		return err
	}
	ln.t = d.T
	return nil
}

func snapEmb(e *Embedding) embData {
	return embData{W: snap(e.W), M: snap(e.m), V: snap(e.v), T: e.t}
}

func restoreEmb(e *Embedding, d embData, where string) error {
	var err error
	if e.W, err = restore(d.W, where+".W"); err != nil {
		return err
	}
	if e.m, err = restore(d.M, where+".m"); err != nil {
		return err
	}
	if e.v, err = restore(d.V, where+".v"); err != nil {
		return err
	}
	e.t = d.T
	return nil
}

// Save writes the model to path, creating parent directories as needed.
func Save(m *Model, path string) error {
	ck := checkpoint{
		Cfg:          m.Cfg,
		SrcVocabSize: m.SrcVocabSize,
		TgtVocabSize: m.TgtVocabSize,
		SrcEmb:       snapEmb(m.SrcEmb),
		TgtEmb:       snapEmb(m.TgtEmb),
		Gen: genData{
			W: snap(m.Gen.W), B: snap(m.Gen.B),
			MW: snap(m.Gen.mW), VW: snap(m.Gen.vW),
			MB: snap(m.Gen.mB), VB: snap(m.Gen.vB),
			T: m.Gen.t,
		},
	}
	for _, b := range m.Enc {
		ck.Enc = append(ck.Enc, encBlockData{
			Ln1:  snapLN(b.Ln1),
			Ln2:  snapLN(b.Ln2),
			Attn: snapAttn(b.Attn),
			Mlp:  snapMLP(b.Mlp),
		})
	}
	for _, b := range m.Dec {
		ck.Dec = append(ck.Dec, decBlockData{
			Ln1:   snapLN(b.Ln1),
			Ln2:   snapLN(b.Ln2),
			Ln3:   snapLN(b.Ln3),
			Self:  snapAttn(b.Self),
			Cross: snapAttn(b.Cross),
			Mlp:   snapMLP(b.Mlp),
		})
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(ck); err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// Load reads a checkpoint and rebuilds the model it describes.
func Load(path string) (*Model, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ck checkpoint
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&ck); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", path, err)
	}
	if err := ck.Cfg.Validate(); err != nil {
		return nil, fmt.Errorf("checkpoint config: %w", err)
	}
	if len(ck.Enc) != ck.Cfg.EncLayers || len(ck.Dec) != ck.Cfg.DecLayers {
		return nil, fmt.Errorf("checkpoint: %d/%d blocks, config says %d/%d",
			len(ck.Enc), len(ck.Dec), ck.Cfg.EncLayers, ck.Cfg.DecLayers)
	}

	m := New(ck.Cfg, ck.SrcVocabSize, ck.TgtVocabSize)
	if err := restoreEmb(m.SrcEmb, ck.SrcEmb, "srcEmb"); err != nil {
		return nil, err
	}
	if err := restoreEmb(m.TgtEmb, ck.TgtEmb, "tgtEmb"); err != nil {
		return nil, err
	}
	for i, bd := range ck.Enc {
		b := m.Enc[i]
		where := fmt.Sprintf("enc[%d]", i)
		if err := restoreLN(b.Ln1, bd.Ln1, where+".ln1"); err != nil {
			return nil, err
		}
		if err := restoreLN(b.Ln2, bd.Ln2, where+".ln2"); err != nil {
			return nil, err
		}
		if err := restoreAttn(b.Attn, bd.Attn, where+".attn"); err != nil {
			return nil, err
		}
		if err := restoreMLP(b.Mlp, bd.Mlp, where+".mlp"); err != nil {
			return nil, err
		}
	}
	for i, bd := range ck.Dec {
		b := m.Dec[i]
		where := fmt.Sprintf("dec[%d]", i)
		if err := restoreLN(b.Ln1, bd.Ln1, where+".ln1"); err != nil {
			return nil, err
		}
		if err := restoreLN(b.Ln2, bd.Ln2, where+".ln2"); err != nil {
			return nil, err
		}
		if err := restoreLN(b.Ln3, bd.Ln3, where+".ln3"); err != nil {
			return nil, err
		}
		if err := restoreAttn(b.Self, bd.Self, where+".self"); err != nil {
			return nil, err
		}
		if err := restoreAttn(b.Cross, bd.Cross, where+".cross"); err != nil {
			return nil, err
		}
		if err := restoreMLP(b.Mlp, bd.Mlp, where+".mlp"); err != nil {
			return nil, err
		}
	}
	if m.Gen.W, err = restore(ck.Gen.W, "gen.W"); err != nil {
		return nil, err
	}
	if m.Gen.B, err = restore(ck.Gen.B, "gen.B"); err != nil {
		return nil, err
	}
	if m.Gen.mW, err = restore(ck.Gen.MW, "gen.mW"); err != nil {
		return nil, err
	}
	if m.Gen.vW, err = restore(ck.Gen.VW, "gen.vW"); err != nil {
		return nil, err
	}
	if m.Gen.mB, err = restore(ck.Gen.MB, "gen.mB"); err != nil {
		return nil, err
	}
	if m.Gen.vB, err = restore(ck.Gen.VB, "gen.vB"); err != nil {
		return nil, err
	}
	m.Gen.t = ck.Gen.T
	return m, nil
}
