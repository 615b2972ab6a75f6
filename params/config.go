package params

import (
	"fmt"

	"github.com/spf13/viper"
)

// Reserved vocabulary slots. Every vocabulary built by this project keeps
// these four tokens at fixed indices so that models, checkpoints and masks
// agree without carrying the mapping around.
const (
	UnkID = 0
	PadID = 1
	BosID = 2
	EosID = 3
)

const (
	UnkToken = "<unk>"
	PadToken = "<pad>"
	BosToken = "<bos>"
	EosToken = "<eos>"
)

// Specials in index order 0..3.
var Specials = []string{UnkToken, PadToken, BosToken, EosToken}

// Config carries every knob for training and inference. There are no
// package-level mutable globals; a Config value is handed to each component.
type Config struct {
	// Core transformer parameters
	DModel     int // model width
	HiddenSize int // MLP hidden
	NumHeads   int // attention heads
	EncLayers  int // encoder depth
	DecLayers  int // decoder depth
	MaxSeqLen  int // longest sequence fed to the model (positions)

	// Vocabulary construction
	VocabSize int // cap on |V| per language (<=0: unbounded)
	MinFreq   int // tokens rarer than this become <unk>

	// Optimization
	LR        float64
	AdamBeta1 float64 // default 0.9
	AdamBeta2 float64 // default 0.999
	AdamEps   float64 // default 1e-9
	GradClip  float64 // <=0 disables
	Epochs    int
	BatchSize int

	// Inference
	MaxDecodeLen int // greedy decoding length cap

	// Data locations
	DataDir   string
	ModelPath string
}

// Default returns the hyperparameters of the reference setup: width 512,
// 8 heads, 3+3 layers, FFN width 512, batch 128, 10 epochs, Adam lr 1e-4.
func Default() Config {
	return Config{
		DModel:     512,
		HiddenSize: 512,
		NumHeads:   8,
		EncLayers:  3,
		DecLayers:  3,
		MaxSeqLen:  128,

		VocabSize: 0,
		MinFreq:   2,

		LR:        1e-4,
		AdamBeta1: 0.9,
		AdamBeta2: 0.98,
		AdamEps:   1e-9,
		GradClip:  1.0,
		Epochs:    10,
		BatchSize: 128,

		MaxDecodeLen: 64,

		DataDir:   "data",
		ModelPath: "models/seq2seq.gob",
	}
}

// FromViper overlays any keys present in v onto the defaults.
func FromViper(v *viper.Viper) Config {
	cfg := Default()
	set := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}
	setF := func(key string, dst *float64) {
		if v.IsSet(key) {
			*dst = v.GetFloat64(key)
		}
	}
	setS := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	set("model.d_model", &cfg.DModel)
	set("model.hidden_size", &cfg.HiddenSize)
	set("model.num_heads", &cfg.NumHeads)
	set("model.enc_layers", &cfg.EncLayers)
	set("model.dec_layers", &cfg.DecLayers)
	set("model.max_seq_len", &cfg.MaxSeqLen)
	set("vocab.size", &cfg.VocabSize)
	set("vocab.min_freq", &cfg.MinFreq)
	setF("train.lr", &cfg.LR)
	setF("train.grad_clip", &cfg.GradClip)
	set("train.epochs", &cfg.Epochs)
	set("train.batch_size", &cfg.BatchSize)
	set("decode.max_len", &cfg.MaxDecodeLen)
	setS("data.dir", &cfg.DataDir)
	setS("model.path", &cfg.ModelPath)
	return cfg
}

// Validate catches configurations the numeric layer would only reject with a
// shape panic much later.
func (c Config) Validate() error {
	if c.DModel <= 0 || c.HiddenSize <= 0 {
		return fmt.Errorf("model widths must be positive (d_model=%d hidden=%d)", c.DModel, c.HiddenSize)
	}
	if c.NumHeads <= 0 || c.DModel%c.NumHeads != 0 {
		return fmt.Errorf("d_model (%d) must be divisible by num_heads (%d)", c.DModel, c.NumHeads)
	}
	if c.EncLayers <= 0 || c.DecLayers <= 0 {
		return fmt.Errorf("layer counts must be positive (enc=%d dec=%d)", c.EncLayers, c.DecLayers)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}
	return nil
}
